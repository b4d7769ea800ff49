package http

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/port/http/middleware"
	"github.com/mototrade/trade-service/internal/service"
)

const maxPhotoSizeBytes = 10 << 20

// Handler exposes the trade and listing services over HTTP.
type Handler struct {
	lifecycle    service.TradeLifecycle
	listings     service.ListingService
	listingQuery service.ListingQueryEngine
	tradeQuery   service.TradeQueryEngine
	notifier     *service.ChangeNotifier
	log          logger.Logger
}

func NewHandler(
	lifecycle service.TradeLifecycle,
	listings service.ListingService,
	listingQuery service.ListingQueryEngine,
	tradeQuery service.TradeQueryEngine,
	notifier *service.ChangeNotifier,
	log logger.Logger,
) *Handler {
	return &Handler{
		lifecycle:    lifecycle,
		listings:     listings,
		listingQuery: listingQuery,
		tradeQuery:   tradeQuery,
		notifier:     notifier,
		log:          log,
	}
}

func (h *Handler) Register(e *echo.Echo, jwtSecret string) {
	e.GET("/health", h.health)

	api := e.Group("/api/v1", middleware.JWTAuth(jwtSecret))

	api.POST("/listings", h.createListing)
	api.GET("/listings", h.listListings)
	api.GET("/listings/:id", h.getListing)
	api.PUT("/listings/:id", h.updateListing)
	api.POST("/listings/:id/photos", h.attachPhoto)
	api.DELETE("/listings/:id", h.deleteListing)

	api.POST("/trades", h.createTrade)
	api.GET("/trades", h.listTrades)
	api.GET("/trades/summary/monthly", h.monthlySalesSummary)
	api.GET("/trades/events", h.streamTradeEvents)
	api.POST("/trades/:id/complete", h.completeTrade)
	api.DELETE("/trades/:id", h.cancelTrade)
}

func (h *Handler) health(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

type listingRequest struct {
	Brand   string  `json:"brand"`
	Model   string  `json:"model"`
	Trim    string  `json:"trim"`
	Year    int     `json:"year"`
	Mileage int     `json:"mileage"`
	Price   float64 `json:"price"`
}

func (h *Handler) createListing(c echo.Context) error {
	var req listingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	listing, err := h.listings.CreateListing(c.Request().Context(), middleware.CurrentAccountID(c), service.CreateListingInput{
		Brand:   req.Brand,
		Model:   req.Model,
		Trim:    req.Trim,
		Year:    req.Year,
		Mileage: req.Mileage,
		Price:   req.Price,
	})
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, listing)
}

func (h *Handler) listListings(c echo.Context) error {
	sortBy, err := service.ParseSortOrder(c.QueryParam("sort"))
	if err != nil {
		return h.mapError(err)
	}

	listings, err := h.listingQuery.ListListings(c.Request().Context(), middleware.CurrentAccountID(c), c.QueryParam("search"), sortBy)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, listings)
}

func (h *Handler) getListing(c echo.Context) error {
	listing, err := h.listings.GetListing(c.Request().Context(), c.Param("id"))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *Handler) updateListing(c echo.Context) error {
	var req listingRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}

	listing, err := h.listings.UpdateListing(c.Request().Context(), c.Param("id"), middleware.CurrentAccountID(c), service.CreateListingInput{
		Brand:   req.Brand,
		Model:   req.Model,
		Trim:    req.Trim,
		Year:    req.Year,
		Mileage: req.Mileage,
		Price:   req.Price,
	})
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, listing)
}

func (h *Handler) attachPhoto(c echo.Context) error {
	file, err := c.FormFile("photo")
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "missing photo file")
	}
	if file.Size > maxPhotoSizeBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, "photo exceeds size limit")
	}

	src, err := file.Open()
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read photo file")
	}
	defer src.Close()

	data, err := io.ReadAll(src)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "cannot read photo file")
	}

	url, err := h.listings.AttachPhoto(c.Request().Context(), c.Param("id"), middleware.CurrentAccountID(c), file.Filename, data)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, map[string]string{"url": url})
}

func (h *Handler) deleteListing(c echo.Context) error {
	if err := h.listings.DeleteListing(c.Request().Context(), c.Param("id"), middleware.CurrentAccountID(c)); err != nil {
		return h.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

type createTradeRequest struct {
	ListingID string `json:"listing_id"`
}

func (h *Handler) createTrade(c echo.Context) error {
	var req createTradeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid request body")
	}
	if req.ListingID == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "listing_id is required")
	}

	trade, err := h.lifecycle.CreateTrade(c.Request().Context(), req.ListingID, middleware.CurrentAccountID(c))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusCreated, trade)
}

func (h *Handler) completeTrade(c echo.Context) error {
	trade, err := h.lifecycle.CompleteTrade(c.Request().Context(), c.Param("id"), middleware.CurrentAccountID(c))
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, trade)
}

func (h *Handler) cancelTrade(c echo.Context) error {
	if err := h.lifecycle.CancelTrade(c.Request().Context(), c.Param("id"), middleware.CurrentAccountID(c)); err != nil {
		return h.mapError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) listTrades(c echo.Context) error {
	typeFilter, err := service.ParseTradeTypeFilter(c.QueryParam("type"))
	if err != nil {
		return h.mapError(err)
	}
	statusFilter, err := service.ParseTradeStatusFilter(c.QueryParam("status"))
	if err != nil {
		return h.mapError(err)
	}
	sortBy, err := service.ParseSortOrder(c.QueryParam("sort"))
	if err != nil {
		return h.mapError(err)
	}

	trades, err := h.tradeQuery.ListTrades(c.Request().Context(), middleware.CurrentAccountID(c), c.QueryParam("search"), typeFilter, statusFilter, sortBy)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, trades)
}

func (h *Handler) monthlySalesSummary(c echo.Context) error {
	year, err := strconv.Atoi(c.QueryParam("year"))
	if err != nil || year < 1970 {
		return echo.NewHTTPError(http.StatusBadRequest, "year query parameter is required")
	}

	summary, err := h.tradeQuery.MonthlySalesSummary(c.Request().Context(), middleware.CurrentAccountID(c), year)
	if err != nil {
		return h.mapError(err)
	}
	return c.JSON(http.StatusOK, summary)
}

// streamTradeEvents holds the connection open and writes one SSE event per
// change to a trade the caller is party to. Events carry no payload; the
// client re-fetches its trades on each tick.
func (h *Handler) streamTradeEvents(c echo.Context) error {
	accountID := middleware.CurrentAccountID(c)

	res := c.Response()
	res.Header().Set(echo.HeaderContentType, "text/event-stream")
	res.Header().Set(echo.HeaderCacheControl, "no-cache")
	res.Header().Set(echo.HeaderConnection, "keep-alive")
	res.WriteHeader(http.StatusOK)
	res.Flush()

	changes := make(chan struct{}, 1)
	handle := h.notifier.Subscribe(accountID, func() {
		select {
		case changes <- struct{}{}:
		default:
		}
	})
	defer h.notifier.Unsubscribe(handle)

	ctx := c.Request().Context()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-changes:
			if _, err := fmt.Fprint(res, "event: trades_changed\ndata: {}\n\n"); err != nil {
				return nil
			}
			res.Flush()
		}
	}
}

func (h *Handler) mapError(err error) error {
	switch {
	case errors.Is(err, service.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, service.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrInvalidState):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, err.Error())
	case errors.Is(err, service.ErrInvalidOperation):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrForbidden):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, service.ErrTransient):
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	default:
		h.log.Errorf("Unhandled service error: %v", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "internal server error")
	}
}
