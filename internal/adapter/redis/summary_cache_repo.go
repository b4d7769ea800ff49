package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

const partySummaryCacheKeyPrefix = "party_summary:"

type partySummaryCacheRepository struct {
	client *redis.Client
}

func NewPartySummaryCacheRepository(client *redis.Client) repository.PartySummaryCache {
	return &partySummaryCacheRepository{client: client}
}

func (r *partySummaryCacheRepository) key(accountID string) string {
	return partySummaryCacheKeyPrefix + accountID
}

func (r *partySummaryCacheRepository) Get(ctx context.Context, accountID string) (*entity.AccountSummary, error) {
	val, err := r.client.Get(ctx, r.key(accountID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get party summary for account %s from redis: %w", accountID, err)
	}

	var summary entity.AccountSummary
	if err := json.Unmarshal(val, &summary); err != nil {
		_ = r.Delete(ctx, accountID)
		return nil, fmt.Errorf("failed to unmarshal party summary for account %s: %w", accountID, err)
	}
	return &summary, nil
}

func (r *partySummaryCacheRepository) Set(ctx context.Context, accountID string, summary *entity.AccountSummary, ttl time.Duration) error {
	if summary == nil || accountID == "" {
		return errors.New("cannot cache nil summary or summary with empty account ID")
	}

	data, err := json.Marshal(summary)
	if err != nil {
		return fmt.Errorf("failed to marshal party summary for account %s: %w", accountID, err)
	}

	if err := r.client.Set(ctx, r.key(accountID), data, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set party summary for account %s to redis: %w", accountID, err)
	}
	return nil
}

func (r *partySummaryCacheRepository) Delete(ctx context.Context, accountID string) error {
	if err := r.client.Del(ctx, r.key(accountID)).Err(); err != nil {
		return fmt.Errorf("failed to delete party summary for account %s from redis: %w", accountID, err)
	}
	return nil
}
