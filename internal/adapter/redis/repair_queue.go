package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mototrade/trade-service/internal/repository"
	"github.com/redis/go-redis/v9"
)

const soldItemRepairQueueKey = "sold_items_repair_queue"

// repairQueueRepository persists sold-items ledger repairs in a Redis list
// so they survive restarts until the repair worker drains them.
type repairQueueRepository struct {
	client *redis.Client
}

func NewRepairQueueRepository(client *redis.Client) repository.RepairQueue {
	return &repairQueueRepository{client: client}
}

func (r *repairQueueRepository) Enqueue(ctx context.Context, repair repository.SoldItemRepair) error {
	data, err := json.Marshal(repair)
	if err != nil {
		return fmt.Errorf("failed to marshal sold-item repair for trade %s: %w", repair.TradeID, err)
	}

	if err := r.client.RPush(ctx, soldItemRepairQueueKey, data).Err(); err != nil {
		return fmt.Errorf("failed to enqueue sold-item repair for trade %s: %w", repair.TradeID, err)
	}
	return nil
}

func (r *repairQueueRepository) Dequeue(ctx context.Context) (*repository.SoldItemRepair, error) {
	val, err := r.client.LPop(ctx, soldItemRepairQueueKey).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to dequeue sold-item repair: %w", err)
	}

	var repair repository.SoldItemRepair
	if err := json.Unmarshal(val, &repair); err != nil {
		return nil, fmt.Errorf("failed to unmarshal sold-item repair: %w", err)
	}
	return &repair, nil
}
