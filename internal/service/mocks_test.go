package service

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/repository"
)

type MockTradeRepository struct {
	mock.Mock
}

func (m *MockTradeRepository) Create(ctx context.Context, params repository.CreateTradeParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockTradeRepository) GetByID(ctx context.Context, tradeID string) (*entity.Trade, error) {
	args := m.Called(ctx, tradeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Trade), args.Error(1)
}

func (m *MockTradeRepository) UpdateStatus(ctx context.Context, params repository.UpdateTradeStatusParams) (*entity.Trade, error) {
	args := m.Called(ctx, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Trade), args.Error(1)
}

func (m *MockTradeRepository) Delete(ctx context.Context, tradeID string, ifStatus entity.TradeStatus) error {
	args := m.Called(ctx, tradeID, ifStatus)
	return args.Error(0)
}

func (m *MockTradeRepository) ListByParticipant(ctx context.Context, accountID string) ([]entity.Trade, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Trade), args.Error(1)
}

func (m *MockTradeRepository) CountByListing(ctx context.Context, listingID string, status entity.TradeStatus) (int64, error) {
	args := m.Called(ctx, listingID, status)
	return args.Get(0).(int64), args.Error(1)
}

type MockListingRepository struct {
	mock.Mock
}

func (m *MockListingRepository) Create(ctx context.Context, params repository.CreateListingParams) (string, error) {
	args := m.Called(ctx, params)
	return args.String(0), args.Error(1)
}

func (m *MockListingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	args := m.Called(ctx, listingID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Listing), args.Error(1)
}

func (m *MockListingRepository) Update(ctx context.Context, params repository.UpdateListingParams) error {
	args := m.Called(ctx, params)
	return args.Error(0)
}

func (m *MockListingRepository) AddPhotoURL(ctx context.Context, listingID, url string) error {
	args := m.Called(ctx, listingID, url)
	return args.Error(0)
}

func (m *MockListingRepository) MarkSold(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingRepository) Delete(ctx context.Context, listingID string) error {
	args := m.Called(ctx, listingID)
	return args.Error(0)
}

func (m *MockListingRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.Listing, error) {
	args := m.Called(ctx, ownerID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entity.Listing), args.Error(1)
}

type MockAccountRepository struct {
	mock.Mock
}

func (m *MockAccountRepository) GetByID(ctx context.Context, accountID string) (*entity.Account, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Account), args.Error(1)
}

func (m *MockAccountRepository) AppendSoldItem(ctx context.Context, sellerID, listingID string) error {
	args := m.Called(ctx, sellerID, listingID)
	return args.Error(0)
}

type MockRepairQueue struct {
	mock.Mock
}

func (m *MockRepairQueue) Enqueue(ctx context.Context, repair repository.SoldItemRepair) error {
	args := m.Called(ctx, repair)
	return args.Error(0)
}

func (m *MockRepairQueue) Dequeue(ctx context.Context) (*repository.SoldItemRepair, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*repository.SoldItemRepair), args.Error(1)
}

type MockPartySummaryCache struct {
	mock.Mock
}

func (m *MockPartySummaryCache) Get(ctx context.Context, accountID string) (*entity.AccountSummary, error) {
	args := m.Called(ctx, accountID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.AccountSummary), args.Error(1)
}

func (m *MockPartySummaryCache) Set(ctx context.Context, accountID string, summary *entity.AccountSummary, ttl time.Duration) error {
	args := m.Called(ctx, accountID, summary, ttl)
	return args.Error(0)
}

func (m *MockPartySummaryCache) Delete(ctx context.Context, accountID string) error {
	args := m.Called(ctx, accountID)
	return args.Error(0)
}

type MockReceiptSender struct {
	mock.Mock
}

func (m *MockReceiptSender) SendCompletionReceipt(ctx context.Context, trade *entity.Trade) error {
	args := m.Called(ctx, trade)
	return args.Error(0)
}
