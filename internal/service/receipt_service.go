package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/mototrade/trade-service/internal/adapter/email"
	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
)

// receiptService emails both parties after a completed trade. Everything
// here is best effort; the settlement itself never depends on it.
type receiptService struct {
	listingRepo repository.ListingRepository
	accountRepo repository.AccountRepository
	sender      email.EmailSender
	log         logger.Logger
}

func NewReceiptService(
	listingRepo repository.ListingRepository,
	accountRepo repository.AccountRepository,
	sender email.EmailSender,
	log logger.Logger,
) CompletionReceiptSender {
	return &receiptService{
		listingRepo: listingRepo,
		accountRepo: accountRepo,
		sender:      sender,
		log:         log,
	}
}

func (s *receiptService) SendCompletionReceipt(ctx context.Context, trade *entity.Trade) error {
	listing, err := s.listingRepo.GetByID(ctx, trade.ListingID)
	if err != nil {
		return fmt.Errorf("failed to load listing %s for receipt: %w", trade.ListingID, err)
	}

	recipients := make([]string, 0, 2)
	for _, accountID := range []string{trade.BuyerID, trade.SellerID} {
		account, errGet := s.accountRepo.GetByID(ctx, accountID)
		if errGet != nil {
			if !errors.Is(errGet, repository.ErrNotFound) {
				s.log.Warnf("Failed to load account %s for receipt: %v", accountID, errGet)
			}
			continue
		}
		if account.Email != "" {
			recipients = append(recipients, account.Email)
		}
	}
	if len(recipients) == 0 {
		return fmt.Errorf("no reachable recipients for trade %s receipt", trade.ID)
	}

	subject := fmt.Sprintf("Trade %s completed", trade.ID)
	bodyText := fmt.Sprintf(
		"Trade ID: %s\nMotorcycle: %s %s %s\nPrice: %.2f\nCompleted: %s\n",
		trade.ID,
		listing.Brand, listing.Model, listing.Trim,
		listing.Price,
		trade.SettledAt().Format("2006-01-02 15:04:05 MST"),
	)

	return s.sender.Send(ctx, recipients, subject, "", bodyText)
}
