package main

import (
	"log"

	"github.com/mototrade/trade-service/internal/app"
	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/platform/logger"
)

func main() {
	cfg := config.MustLoad()

	appLogger, err := logger.NewZapLogger(logger.ZapLoggerConfig{
		Level:      cfg.Logger.Level,
		Encoding:   cfg.Logger.Encoding,
		TimeFormat: cfg.Logger.TimeFormat,
	})
	if err != nil {
		log.Fatalf("cannot initialize logger: %v", err)
	}

	if err := app.Run(cfg, appLogger); err != nil {
		appLogger.Fatalf("Service terminated: %v", err)
	}
}
