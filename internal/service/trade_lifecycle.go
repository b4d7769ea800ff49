package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

const (
	compensationMaxRetries = 5
	soldItemsMaxRetries    = 2
)

// TradeLifecycle owns the trade state machine and the completion protocol
// that keeps the trade record, the listing's sold flag, and the seller's
// sold-items set aligned without a cross-record transaction.
type TradeLifecycle interface {
	CreateTrade(ctx context.Context, listingID, buyerID string) (*entity.Trade, error)
	CompleteTrade(ctx context.Context, tradeID, actorID string) (*entity.Trade, error)
	CancelTrade(ctx context.Context, tradeID, actorID string) error
}

// CompletionReceiptSender delivers a best-effort settlement notice after a
// trade completes.
type CompletionReceiptSender interface {
	SendCompletionReceipt(ctx context.Context, trade *entity.Trade) error
}

type tradeLifecycle struct {
	tradeRepo   repository.TradeRepository
	listingRepo repository.ListingRepository
	accountRepo repository.AccountRepository
	repairQueue repository.RepairQueue
	receipts    CompletionReceiptSender
	log         logger.Logger
	tracer      trace.Tracer
}

func NewTradeLifecycle(
	tradeRepo repository.TradeRepository,
	listingRepo repository.ListingRepository,
	accountRepo repository.AccountRepository,
	repairQueue repository.RepairQueue,
	receipts CompletionReceiptSender,
	log logger.Logger,
) TradeLifecycle {
	return &tradeLifecycle{
		tradeRepo:   tradeRepo,
		listingRepo: listingRepo,
		accountRepo: accountRepo,
		repairQueue: repairQueue,
		receipts:    receipts,
		log:         log,
		tracer:      otel.Tracer("trade-lifecycle"),
	}
}

func (s *tradeLifecycle) CreateTrade(ctx context.Context, listingID, buyerID string) (*entity.Trade, error) {
	s.log.Infof("Creating trade on listing %s for buyer %s", listingID, buyerID)

	listing, err := s.listingRepo.GetByID(ctx, listingID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("listing %s: %w", listingID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load listing %s: %w", listingID, wrapTransient(err))
	}

	if listing.Sold {
		return nil, fmt.Errorf("listing %s is already sold: %w", listingID, ErrConflict)
	}
	if buyerID == listing.OwnerID {
		return nil, fmt.Errorf("cannot open a trade on your own listing: %w", ErrInvalidOperation)
	}

	trade, err := entity.NewTrade(listingID, buyerID, listing.OwnerID)
	if err != nil {
		return nil, fmt.Errorf("%v: %w", err, ErrInvalidOperation)
	}

	tradeID, err := s.tradeRepo.Create(ctx, repository.CreateTradeParams{
		ListingID: trade.ListingID,
		BuyerID:   trade.BuyerID,
		SellerID:  trade.SellerID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to save trade: %w", err)
	}
	trade.ID = tradeID

	s.log.Infof("Trade %s created on listing %s (buyer %s, seller %s)", tradeID, listingID, buyerID, trade.SellerID)
	return trade, nil
}

// CompleteTrade runs the completion protocol as an ordered saga:
//
//  1. guarded trade flip pending -> completed (loser of a race gets Conflict);
//  2. guarded listing flip sold false -> true, compensated by reverting
//     step 1 if the guard fails;
//  3. idempotent append to the seller's sold-items set, best effort: a
//     failure here is queued for repair, never rolled back, because the
//     trade and listing are already correctly settled.
//
// Once step 1 commits the protocol runs to the end; it is not cancellable
// mid-flight.
func (s *tradeLifecycle) CompleteTrade(ctx context.Context, tradeID, actorID string) (*entity.Trade, error) {
	s.log.Infof("Account %s attempting to complete trade %s", actorID, tradeID)

	ctx, span := s.tracer.Start(ctx, "CompleteTrade")
	defer span.End()

	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to load trade %s: %w", tradeID, wrapTransient(err))
	}

	if trade.SellerID != actorID {
		s.log.Warnf("Account %s attempted to complete trade %s owned by seller %s", actorID, tradeID, trade.SellerID)
		return nil, fmt.Errorf("only the seller can complete a trade: %w", ErrForbidden)
	}
	if trade.Status != entity.TradeStatusPending {
		return nil, fmt.Errorf("trade %s is %s: %w", tradeID, trade.Status, ErrInvalidState)
	}

	// Step 1: the trade record is the authoritative record of intent. The
	// pending guard makes concurrent complete/cancel mutually exclusive.
	now := time.Now().UTC()
	_, stepSpan := s.tracer.Start(ctx, "CompleteTrade.markTradeCompleted")
	updated, err := s.tradeRepo.UpdateStatus(ctx, repository.UpdateTradeStatusParams{
		TradeID:     tradeID,
		From:        entity.TradeStatusPending,
		To:          entity.TradeStatusCompleted,
		CompletedAt: &now,
	})
	stepSpan.End()
	if err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return nil, fmt.Errorf("trade %s was modified concurrently: %w", tradeID, ErrConflict)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
		}
		return nil, fmt.Errorf("failed to mark trade %s completed: %w", tradeID, err)
	}
	trade = updated

	// Past this point the protocol must finish even if the caller goes
	// away: the remaining steps and any revert run detached from request
	// cancellation.
	ctx = context.WithoutCancel(ctx)

	// Step 2: availability flip. On guard failure the trade must not stay
	// completed, so step 1 is reverted before surfacing the conflict.
	_, stepSpan = s.tracer.Start(ctx, "CompleteTrade.markListingSold")
	err = s.listingRepo.MarkSold(ctx, trade.ListingID)
	stepSpan.End()
	if err != nil {
		s.log.Warnf("Listing write failed while completing trade %s, compensating: %v", tradeID, err)
		s.revertCompletion(ctx, tradeID)
		if errors.Is(err, repository.ErrOptimisticLock) || errors.Is(err, repository.ErrNotFound) {
			return nil, fmt.Errorf("listing %s is no longer available: %w", trade.ListingID, ErrConflict)
		}
		return nil, fmt.Errorf("failed to mark listing %s sold: %w", trade.ListingID, err)
	}

	// Step 3: the sold-items ledger is a secondary index. Failures are
	// repaired asynchronously and never surfaced to the caller.
	_, stepSpan = s.tracer.Start(ctx, "CompleteTrade.appendSoldItem")
	err = s.appendSoldItemWithRetry(ctx, trade)
	stepSpan.End()
	if err != nil {
		s.log.Warnf("Failed to append sold item for trade %s, scheduling repair: %v", tradeID, err)
		s.enqueueRepair(ctx, trade)
	}

	if s.receipts != nil {
		if errReceipt := s.receipts.SendCompletionReceipt(ctx, trade); errReceipt != nil {
			s.log.Warnf("Failed to send completion receipt for trade %s: %v", tradeID, errReceipt)
		}
	}

	s.log.Infof("Trade %s completed: listing %s sold by %s to %s", tradeID, trade.ListingID, trade.SellerID, trade.BuyerID)
	return trade, nil
}

// revertCompletion undoes step 1. A trade left completed with an unsold
// listing is the one inconsistency this design cannot tolerate, so the
// revert retries with backoff and escalates to an alarm if it cannot land.
func (s *tradeLifecycle) revertCompletion(ctx context.Context, tradeID string) {
	revert := func() error {
		_, err := s.tradeRepo.UpdateStatus(ctx, repository.UpdateTradeStatusParams{
			TradeID: tradeID,
			From:    entity.TradeStatusCompleted,
			To:      entity.TradeStatusPending,
		})
		if errors.Is(err, repository.ErrOptimisticLock) || errors.Is(err, repository.ErrNotFound) {
			// Someone else already moved the trade on; nothing to revert.
			return nil
		}
		return err
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), compensationMaxRetries), ctx)
	if err := backoff.Retry(revert, policy); err != nil {
		s.log.Errorf("DATA INTEGRITY ALARM: failed to revert trade %s to pending after listing write failure: %v", tradeID, err)
	}
}

func (s *tradeLifecycle) appendSoldItemWithRetry(ctx context.Context, trade *entity.Trade) error {
	appendItem := func() error {
		err := s.accountRepo.AppendSoldItem(ctx, trade.SellerID, trade.ListingID)
		if errors.Is(err, repository.ErrNotFound) {
			// Missing account will not appear by retrying.
			return backoff.Permanent(err)
		}
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), soldItemsMaxRetries), ctx)
	return backoff.Retry(appendItem, policy)
}

func (s *tradeLifecycle) enqueueRepair(ctx context.Context, trade *entity.Trade) {
	repair := repository.SoldItemRepair{
		TradeID:   trade.ID,
		SellerID:  trade.SellerID,
		ListingID: trade.ListingID,
	}
	if err := s.repairQueue.Enqueue(ctx, repair); err != nil {
		s.log.Errorf("DATA INTEGRITY ALARM: failed to enqueue sold-items repair for trade %s: %v", trade.ID, err)
	}
}

func (s *tradeLifecycle) CancelTrade(ctx context.Context, tradeID, actorID string) error {
	s.log.Infof("Account %s attempting to cancel trade %s", actorID, tradeID)

	trade, err := s.tradeRepo.GetByID(ctx, tradeID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
		}
		return fmt.Errorf("failed to load trade %s: %w", tradeID, wrapTransient(err))
	}

	if !trade.IsParticipant(actorID) {
		s.log.Warnf("Account %s attempted to cancel trade %s without being a party to it", actorID, tradeID)
		return fmt.Errorf("only the buyer or seller can cancel a trade: %w", ErrForbidden)
	}
	if trade.Status != entity.TradeStatusPending {
		return fmt.Errorf("trade %s is %s: %w", tradeID, trade.Status, ErrInvalidState)
	}

	// Pending trades never touched the listing or the seller's ledger, so
	// cancellation is a single guarded delete with no side effects.
	err = s.tradeRepo.Delete(ctx, tradeID, entity.TradeStatusPending)
	if err != nil {
		if errors.Is(err, repository.ErrOptimisticLock) {
			return fmt.Errorf("trade %s was modified concurrently: %w", tradeID, ErrConflict)
		}
		if errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("trade %s: %w", tradeID, ErrNotFound)
		}
		return fmt.Errorf("failed to cancel trade %s: %w", tradeID, err)
	}

	s.log.Infof("Trade %s cancelled by account %s", tradeID, actorID)
	return nil
}
