package service

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

const repairMaxRetries = 4

// RepairWorker drains the sold-items repair queue: ledger appends that
// failed after their trade and listing were already settled are re-applied
// here until they land. Each append is idempotent, so replays are safe.
type RepairWorker struct {
	queue       repository.RepairQueue
	accountRepo repository.AccountRepository
	interval    time.Duration
	log         logger.Logger
}

func NewRepairWorker(
	queue repository.RepairQueue,
	accountRepo repository.AccountRepository,
	interval time.Duration,
	log logger.Logger,
) *RepairWorker {
	return &RepairWorker{
		queue:       queue,
		accountRepo: accountRepo,
		interval:    interval,
		log:         log,
	}
}

// Run blocks until ctx is cancelled, draining the queue every interval.
func (w *RepairWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Infof("Sold-items repair worker started (interval %s)", w.interval)
	for {
		select {
		case <-ctx.Done():
			w.log.Info("Sold-items repair worker stopped")
			return
		case <-ticker.C:
			w.drain(ctx)
		}
	}
}

func (w *RepairWorker) drain(ctx context.Context) {
	for {
		repair, err := w.queue.Dequeue(ctx)
		if err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				w.log.Warnf("Failed to dequeue sold-items repair: %v", err)
			}
			return
		}

		if err := w.apply(ctx, repair); err != nil {
			repair.Attempts++
			w.log.Errorf("DATA INTEGRITY ALARM: sold-items repair for trade %s failed (attempt %d): %v", repair.TradeID, repair.Attempts, err)
			if errEnq := w.queue.Enqueue(ctx, *repair); errEnq != nil {
				w.log.Errorf("DATA INTEGRITY ALARM: dropping sold-items repair for trade %s: %v", repair.TradeID, errEnq)
			}
			return
		}

		w.log.Infof("Repaired sold-items ledger for trade %s (seller %s, listing %s)", repair.TradeID, repair.SellerID, repair.ListingID)
	}
}

func (w *RepairWorker) apply(ctx context.Context, repair *repository.SoldItemRepair) error {
	appendItem := func() error {
		account, err := w.accountRepo.GetByID(ctx, repair.SellerID)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return backoff.Permanent(err)
			}
			return err
		}
		// A replayed repair may already have landed.
		if account.HasSold(repair.ListingID) {
			return nil
		}

		err = w.accountRepo.AppendSoldItem(ctx, repair.SellerID, repair.ListingID)
		if errors.Is(err, repository.ErrNotFound) {
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), repairMaxRetries), ctx)
	return backoff.Retry(appendItem, policy)
}
