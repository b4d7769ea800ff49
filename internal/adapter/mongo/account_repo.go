package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

const accountCollectionName = "accounts"

// Accounts are created by the registration flow outside this service and
// keyed by the identity provider's uid, so _id is a plain string here.
type accountRepository struct {
	collection *mongo.Collection
}

func NewAccountRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.AccountRepository {
	return &accountRepository{
		collection: client.Database(cfg.Database).Collection(accountCollectionName),
	}
}

func (r *accountRepository) GetByID(ctx context.Context, accountID string) (*entity.Account, error) {
	var account entity.Account
	err := r.collection.FindOne(ctx, bson.M{"_id": accountID}).Decode(&account)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get account by ID %s: %w", accountID, err)
	}
	return &account, nil
}

func (r *accountRepository) AppendSoldItem(ctx context.Context, sellerID, listingID string) error {
	// $addToSet keeps the append idempotent under retries.
	update := bson.M{"$addToSet": bson.M{"sold_items": listingID}}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": sellerID}, update)
	if err != nil {
		return fmt.Errorf("failed to append sold item for account %s: %w", sellerID, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}
