package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

func newLifecycleForTest(tradeRepo *MockTradeRepository, listingRepo *MockListingRepository, accountRepo *MockAccountRepository, repairQueue *MockRepairQueue) TradeLifecycle {
	return NewTradeLifecycle(tradeRepo, listingRepo, accountRepo, repairQueue, nil, logger.NewNop())
}

func pendingTrade(tradeID string) *entity.Trade {
	return &entity.Trade{
		ID:        tradeID,
		ListingID: "listing1",
		BuyerID:   "buyer1",
		SellerID:  "seller1",
		Status:    entity.TradeStatusPending,
		CreatedAt: time.Now().UTC(),
	}
}

func completedTrade(tradeID string) *entity.Trade {
	t := pendingTrade(tradeID)
	t.Status = entity.TradeStatusCompleted
	now := time.Now().UTC()
	t.CompletedAt = &now
	return t
}

func availableListing(listingID, ownerID string) *entity.Listing {
	return &entity.Listing{
		ID:        listingID,
		OwnerID:   ownerID,
		Brand:     "Yamaha",
		Model:     "MT-07",
		Year:      2021,
		Mileage:   12000,
		Price:     6500,
		CreatedAt: time.Now().UTC(),
	}
}

func TestTradeLifecycle_CreateTrade_Success(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	listingRepo.On("GetByID", mock.Anything, "listing1").Return(availableListing("listing1", "seller1"), nil).Once()
	tradeRepo.On("Create", mock.Anything, repository.CreateTradeParams{
		ListingID: "listing1",
		BuyerID:   "buyer1",
		SellerID:  "seller1",
	}).Return("trade1", nil).Once()

	trade, err := svc.CreateTrade(context.Background(), "listing1", "buyer1")

	assert.NoError(t, err)
	assert.Equal(t, "trade1", trade.ID)
	assert.Equal(t, entity.TradeStatusPending, trade.Status)
	assert.Equal(t, "seller1", trade.SellerID)
	tradeRepo.AssertExpectations(t)
	listingRepo.AssertExpectations(t)
}

func TestTradeLifecycle_CreateTrade_ListingNotFound(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	listingRepo.On("GetByID", mock.Anything, "missing").Return(nil, repository.ErrNotFound).Once()

	trade, err := svc.CreateTrade(context.Background(), "missing", "buyer1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrNotFound)
	tradeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CreateTrade_ListingAlreadySold(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	sold := availableListing("listing1", "seller1")
	sold.Sold = true
	listingRepo.On("GetByID", mock.Anything, "listing1").Return(sold, nil).Once()

	trade, err := svc.CreateTrade(context.Background(), "listing1", "buyer1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrConflict)
	tradeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CreateTrade_OwnListing(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	listingRepo.On("GetByID", mock.Anything, "listing1").Return(availableListing("listing1", "seller1"), nil).Once()

	trade, err := svc.CreateTrade(context.Background(), "listing1", "seller1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrInvalidOperation)
	tradeRepo.AssertNotCalled(t, "Create", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_Success(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	repairQueue := new(MockRepairQueue)
	svc := newLifecycleForTest(tradeRepo, listingRepo, accountRepo, repairQueue)

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p repository.UpdateTradeStatusParams) bool {
		return p.TradeID == "trade1" &&
			p.From == entity.TradeStatusPending &&
			p.To == entity.TradeStatusCompleted &&
			p.CompletedAt != nil
	})).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.Anything, "listing1").Return(nil).Once()
	accountRepo.On("AppendSoldItem", mock.Anything, "seller1", "listing1").Return(nil).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "seller1")

	assert.NoError(t, err)
	assert.Equal(t, entity.TradeStatusCompleted, trade.Status)
	assert.NotNil(t, trade.CompletedAt)
	tradeRepo.AssertExpectations(t)
	listingRepo.AssertExpectations(t)
	accountRepo.AssertExpectations(t)
	repairQueue.AssertNotCalled(t, "Enqueue", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_OnlySeller(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "buyer1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrForbidden)
	tradeRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
	listingRepo.AssertNotCalled(t, "MarkSold", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_AlreadyCompleted(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	svc := newLifecycleForTest(tradeRepo, new(MockListingRepository), new(MockAccountRepository), new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(completedTrade("trade1"), nil).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "seller1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrInvalidState)
	tradeRepo.AssertNotCalled(t, "UpdateStatus", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_LostRace(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(nil, repository.ErrOptimisticLock).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "seller1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrConflict)
	listingRepo.AssertNotCalled(t, "MarkSold", mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_CompensatesOnListingConflict(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, accountRepo, new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p repository.UpdateTradeStatusParams) bool {
		return p.To == entity.TradeStatusCompleted
	})).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.Anything, "listing1").Return(repository.ErrOptimisticLock).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p repository.UpdateTradeStatusParams) bool {
		return p.TradeID == "trade1" &&
			p.From == entity.TradeStatusCompleted &&
			p.To == entity.TradeStatusPending &&
			p.CompletedAt == nil
	})).Return(pendingTrade("trade1"), nil).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "seller1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrConflict)
	tradeRepo.AssertExpectations(t)
	accountRepo.AssertNotCalled(t, "AppendSoldItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_QueuesRepairOnLedgerFailure(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	repairQueue := new(MockRepairQueue)
	svc := newLifecycleForTest(tradeRepo, listingRepo, accountRepo, repairQueue)

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.Anything, "listing1").Return(nil).Once()
	accountRepo.On("AppendSoldItem", mock.Anything, "seller1", "listing1").Return(repository.ErrNotFound).Once()
	repairQueue.On("Enqueue", mock.Anything, repository.SoldItemRepair{
		TradeID:   "trade1",
		SellerID:  "seller1",
		ListingID: "listing1",
	}).Return(nil).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "seller1")

	assert.NoError(t, err)
	assert.Equal(t, entity.TradeStatusCompleted, trade.Status)
	repairQueue.AssertExpectations(t)
}

func TestTradeLifecycle_CompleteTrade_ReceiptFailureDoesNotFail(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	receipts := new(MockReceiptSender)
	svc := NewTradeLifecycle(tradeRepo, listingRepo, accountRepo, new(MockRepairQueue), receipts, logger.NewNop())

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.Anything, "listing1").Return(nil).Once()
	accountRepo.On("AppendSoldItem", mock.Anything, "seller1", "listing1").Return(nil).Once()
	receipts.On("SendCompletionReceipt", mock.Anything, mock.Anything).Return(assert.AnError).Once()

	trade, err := svc.CompleteTrade(context.Background(), "trade1", "seller1")

	assert.NoError(t, err)
	assert.Equal(t, entity.TradeStatusCompleted, trade.Status)
	receipts.AssertExpectations(t)
}

func TestTradeLifecycle_CancelTrade_Success(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, accountRepo, new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("Delete", mock.Anything, "trade1", entity.TradeStatusPending).Return(nil).Once()

	err := svc.CancelTrade(context.Background(), "trade1", "buyer1")

	assert.NoError(t, err)
	tradeRepo.AssertExpectations(t)
	// The listing stays available and the ledger is untouched.
	listingRepo.AssertNotCalled(t, "MarkSold", mock.Anything, mock.Anything)
	accountRepo.AssertNotCalled(t, "AppendSoldItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CancelTrade_OnlyParticipants(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	svc := newLifecycleForTest(tradeRepo, new(MockListingRepository), new(MockAccountRepository), new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()

	err := svc.CancelTrade(context.Background(), "trade1", "stranger")

	assert.ErrorIs(t, err, ErrForbidden)
	tradeRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CancelTrade_CompletedIsFinal(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	svc := newLifecycleForTest(tradeRepo, new(MockListingRepository), new(MockAccountRepository), new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(completedTrade("trade1"), nil).Once()

	err := svc.CancelTrade(context.Background(), "trade1", "seller1")

	assert.ErrorIs(t, err, ErrInvalidState)
	tradeRepo.AssertNotCalled(t, "Delete", mock.Anything, mock.Anything, mock.Anything)
}

func TestTradeLifecycle_CompleteTrade_FinishesAfterCallerCancel(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, accountRepo, new(MockRepairQueue))

	ctx, cancel := context.WithCancel(context.Background())

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	// Caller disconnects the moment the trade flip commits.
	tradeRepo.On("UpdateStatus", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
		cancel()
	}).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.MatchedBy(func(c context.Context) bool {
		return c.Err() == nil
	}), "listing1").Return(nil).Once()
	accountRepo.On("AppendSoldItem", mock.MatchedBy(func(c context.Context) bool {
		return c.Err() == nil
	}), "seller1", "listing1").Return(nil).Once()

	trade, err := svc.CompleteTrade(ctx, "trade1", "seller1")

	assert.NoError(t, err)
	assert.Equal(t, entity.TradeStatusCompleted, trade.Status)
	listingRepo.AssertExpectations(t)
	accountRepo.AssertExpectations(t)
}

func TestTradeLifecycle_CompleteTrade_RevertSurvivesCallerCancel(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, new(MockAccountRepository), new(MockRepairQueue))

	ctx, cancel := context.WithCancel(context.Background())

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p repository.UpdateTradeStatusParams) bool {
		return p.To == entity.TradeStatusCompleted
	})).Run(func(mock.Arguments) {
		cancel()
	}).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.Anything, "listing1").Return(repository.ErrOptimisticLock).Once()
	// The revert still lands on its retries despite the cancelled caller.
	tradeRepo.On("UpdateStatus", mock.MatchedBy(func(c context.Context) bool {
		return c.Err() == nil
	}), mock.MatchedBy(func(p repository.UpdateTradeStatusParams) bool {
		return p.From == entity.TradeStatusCompleted && p.To == entity.TradeStatusPending
	})).Return(nil, assert.AnError).Twice()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.MatchedBy(func(p repository.UpdateTradeStatusParams) bool {
		return p.From == entity.TradeStatusCompleted && p.To == entity.TradeStatusPending
	})).Return(pendingTrade("trade1"), nil).Once()

	trade, err := svc.CompleteTrade(ctx, "trade1", "seller1")

	assert.Nil(t, trade)
	assert.ErrorIs(t, err, ErrConflict)
	tradeRepo.AssertExpectations(t)
}

func TestTradeLifecycle_CreateCompleteThenRecreateBlocked(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	listingRepo := new(MockListingRepository)
	accountRepo := new(MockAccountRepository)
	svc := newLifecycleForTest(tradeRepo, listingRepo, accountRepo, new(MockRepairQueue))

	listingRepo.On("GetByID", mock.Anything, "listing1").Return(availableListing("listing1", "seller1"), nil).Once()
	tradeRepo.On("Create", mock.Anything, mock.Anything).Return("trade1", nil).Once()

	trade, err := svc.CreateTrade(context.Background(), "listing1", "buyer1")
	assert.NoError(t, err)

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("UpdateStatus", mock.Anything, mock.Anything).Return(completedTrade("trade1"), nil).Once()
	listingRepo.On("MarkSold", mock.Anything, "listing1").Return(nil).Once()
	accountRepo.On("AppendSoldItem", mock.Anything, "seller1", "listing1").Return(nil).Once()

	trade, err = svc.CompleteTrade(context.Background(), trade.ID, "seller1")
	assert.NoError(t, err)
	assert.Equal(t, entity.TradeStatusCompleted, trade.Status)

	soldNow := availableListing("listing1", "seller1")
	soldNow.Sold = true
	listingRepo.On("GetByID", mock.Anything, "listing1").Return(soldNow, nil).Once()

	_, err = svc.CreateTrade(context.Background(), "listing1", "buyer2")
	assert.ErrorIs(t, err, ErrConflict)
	tradeRepo.AssertExpectations(t)
	listingRepo.AssertExpectations(t)
}

func TestTradeLifecycle_CancelTrade_LostRace(t *testing.T) {
	tradeRepo := new(MockTradeRepository)
	svc := newLifecycleForTest(tradeRepo, new(MockListingRepository), new(MockAccountRepository), new(MockRepairQueue))

	tradeRepo.On("GetByID", mock.Anything, "trade1").Return(pendingTrade("trade1"), nil).Once()
	tradeRepo.On("Delete", mock.Anything, "trade1", entity.TradeStatusPending).Return(repository.ErrOptimisticLock).Once()

	err := svc.CancelTrade(context.Background(), "trade1", "buyer1")

	assert.ErrorIs(t, err, ErrConflict)
}
