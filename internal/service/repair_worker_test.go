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

func TestRepairWorker_DrainAppliesQueuedRepairs(t *testing.T) {
	queue := new(MockRepairQueue)
	accountRepo := new(MockAccountRepository)
	worker := NewRepairWorker(queue, accountRepo, time.Minute, logger.NewNop())

	repair := &repository.SoldItemRepair{TradeID: "t1", SellerID: "seller1", ListingID: "l1"}
	queue.On("Dequeue", mock.Anything).Return(repair, nil).Once()
	queue.On("Dequeue", mock.Anything).Return(nil, repository.ErrNotFound).Once()
	accountRepo.On("GetByID", mock.Anything, "seller1").Return(&entity.Account{ID: "seller1"}, nil).Once()
	accountRepo.On("AppendSoldItem", mock.Anything, "seller1", "l1").Return(nil).Once()

	worker.drain(context.Background())

	queue.AssertExpectations(t)
	accountRepo.AssertExpectations(t)
}

func TestRepairWorker_SkipsAlreadyAppliedRepairs(t *testing.T) {
	queue := new(MockRepairQueue)
	accountRepo := new(MockAccountRepository)
	worker := NewRepairWorker(queue, accountRepo, time.Minute, logger.NewNop())

	repair := &repository.SoldItemRepair{TradeID: "t1", SellerID: "seller1", ListingID: "l1"}
	queue.On("Dequeue", mock.Anything).Return(repair, nil).Once()
	queue.On("Dequeue", mock.Anything).Return(nil, repository.ErrNotFound).Once()
	accountRepo.On("GetByID", mock.Anything, "seller1").Return(&entity.Account{ID: "seller1", SoldItems: []string{"l1"}}, nil).Once()

	worker.drain(context.Background())

	queue.AssertExpectations(t)
	accountRepo.AssertNotCalled(t, "AppendSoldItem", mock.Anything, mock.Anything, mock.Anything)
}

func TestRepairWorker_RequeuesOnPermanentFailure(t *testing.T) {
	queue := new(MockRepairQueue)
	accountRepo := new(MockAccountRepository)
	worker := NewRepairWorker(queue, accountRepo, time.Minute, logger.NewNop())

	repair := &repository.SoldItemRepair{TradeID: "t1", SellerID: "seller1", ListingID: "l1"}
	queue.On("Dequeue", mock.Anything).Return(repair, nil).Once()
	accountRepo.On("GetByID", mock.Anything, "seller1").Return(nil, repository.ErrNotFound).Once()
	queue.On("Enqueue", mock.Anything, mock.MatchedBy(func(r repository.SoldItemRepair) bool {
		return r.TradeID == "t1" && r.Attempts == 1
	})).Return(nil).Once()

	worker.drain(context.Background())

	queue.AssertExpectations(t)
	accountRepo.AssertExpectations(t)
}

func TestRepairWorker_EmptyQueueIsQuiet(t *testing.T) {
	queue := new(MockRepairQueue)
	accountRepo := new(MockAccountRepository)
	worker := NewRepairWorker(queue, accountRepo, time.Minute, logger.NewNop())

	queue.On("Dequeue", mock.Anything).Return(nil, repository.ErrNotFound).Once()

	worker.drain(context.Background())

	assert.True(t, queue.AssertExpectations(t))
	accountRepo.AssertNotCalled(t, "AppendSoldItem", mock.Anything, mock.Anything, mock.Anything)
}
