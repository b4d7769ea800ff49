package repository

import (
	"context"
	"time"

	"github.com/mototrade/trade-service/internal/domain/entity"
)

// PartySummaryCache caches the account display summaries joined into
// enriched trades. A miss is reported as ErrNotFound.
type PartySummaryCache interface {
	Get(ctx context.Context, accountID string) (*entity.AccountSummary, error)
	Set(ctx context.Context, accountID string, summary *entity.AccountSummary, ttl time.Duration) error
	Delete(ctx context.Context, accountID string) error
}
