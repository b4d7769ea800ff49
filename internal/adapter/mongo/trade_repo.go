package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	natsadapter "github.com/mototrade/trade-service/internal/adapter/nats"
	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/platform/logger"
	"github.com/mototrade/trade-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const tradeCollectionName = "trades"

// tradeRepository is the trade record store. Status transitions are guarded
// writes: the expected prior status is part of the update filter, so a
// concurrent transition makes the write miss instead of overwriting it.
// Every committed insert/update/delete emits one change-feed event.
type tradeRepository struct {
	collection *mongo.Collection
	feed       natsadapter.MessagePublisher
	log        logger.Logger
}

func NewTradeRepository(client *mongo.Client, cfg config.MongoDBConfig, feed natsadapter.MessagePublisher, log logger.Logger) repository.TradeRepository {
	return &tradeRepository{
		collection: client.Database(cfg.Database).Collection(tradeCollectionName),
		feed:       feed,
		log:        log,
	}
}

func (r *tradeRepository) publishChange(ctx context.Context, op string, trade *entity.Trade) {
	if r.feed == nil || trade == nil {
		return
	}
	event := repository.TradeChangeEvent{
		Op:        op,
		TradeID:   trade.ID,
		ListingID: trade.ListingID,
		BuyerID:   trade.BuyerID,
		SellerID:  trade.SellerID,
	}
	if err := r.feed.Publish(ctx, repository.TradeChangeSubject, event); err != nil {
		r.log.Warnf("Failed to publish trade change event for trade %s: %v", trade.ID, err)
	}
}

func (r *tradeRepository) Create(ctx context.Context, params repository.CreateTradeParams) (string, error) {
	trade := entity.Trade{
		ListingID: params.ListingID,
		BuyerID:   params.BuyerID,
		SellerID:  params.SellerID,
		Status:    entity.TradeStatusPending,
		CreatedAt: time.Now().UTC(),
	}

	res, err := r.collection.InsertOne(ctx, trade)
	if err != nil {
		return "", fmt.Errorf("failed to create trade: %w", err)
	}

	objectID, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("failed to convert inserted ID to ObjectID")
	}
	trade.ID = objectID.Hex()

	r.publishChange(ctx, repository.ChangeOpInsert, &trade)
	return trade.ID, nil
}

func (r *tradeRepository) GetByID(ctx context.Context, tradeID string) (*entity.Trade, error) {
	objID, err := primitive.ObjectIDFromHex(tradeID)
	if err != nil {
		return nil, fmt.Errorf("invalid trade ID format: %w", repository.ErrNotFound)
	}

	var trade entity.Trade
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&trade)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get trade by ID %s: %w", tradeID, err)
	}
	return &trade, nil
}

func (r *tradeRepository) UpdateStatus(ctx context.Context, params repository.UpdateTradeStatusParams) (*entity.Trade, error) {
	objID, err := primitive.ObjectIDFromHex(params.TradeID)
	if err != nil {
		return nil, fmt.Errorf("invalid trade ID format: %w", repository.ErrNotFound)
	}

	filter := bson.M{
		"_id":    objID,
		"status": params.From,
	}
	set := bson.M{"status": params.To}
	if params.CompletedAt != nil {
		set["completed_at"] = params.CompletedAt.UTC()
	}
	update := bson.M{"$set": set}
	if params.To == entity.TradeStatusPending {
		// Reverting a completion also clears the settlement timestamp.
		update["$unset"] = bson.M{"completed_at": ""}
	}

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var trade entity.Trade
	err = r.collection.FindOneAndUpdate(ctx, filter, update, opts).Decode(&trade)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			// Distinguish "trade gone" from "guard no longer holds".
			var existing entity.Trade
			errFind := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing)
			if errors.Is(errFind, mongo.ErrNoDocuments) {
				return nil, repository.ErrNotFound
			}
			if errFind == nil && existing.Status != params.From {
				return nil, repository.ErrOptimisticLock
			}
			return nil, repository.ErrUpdateFailed
		}
		return nil, fmt.Errorf("failed to update status of trade %s: %w", params.TradeID, err)
	}

	r.publishChange(ctx, repository.ChangeOpUpdate, &trade)
	return &trade, nil
}

func (r *tradeRepository) Delete(ctx context.Context, tradeID string, ifStatus entity.TradeStatus) error {
	objID, err := primitive.ObjectIDFromHex(tradeID)
	if err != nil {
		return fmt.Errorf("invalid trade ID format: %w", repository.ErrNotFound)
	}

	filter := bson.M{
		"_id":    objID,
		"status": ifStatus,
	}

	var trade entity.Trade
	err = r.collection.FindOneAndDelete(ctx, filter).Decode(&trade)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			var existing entity.Trade
			errFind := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing)
			if errors.Is(errFind, mongo.ErrNoDocuments) {
				return repository.ErrNotFound
			}
			if errFind == nil && existing.Status != ifStatus {
				return repository.ErrOptimisticLock
			}
			return repository.ErrDeleteFailed
		}
		return fmt.Errorf("failed to delete trade %s: %w", tradeID, err)
	}

	r.publishChange(ctx, repository.ChangeOpDelete, &trade)
	return nil
}

func (r *tradeRepository) ListByParticipant(ctx context.Context, accountID string) ([]entity.Trade, error) {
	filter := bson.M{
		"$or": bson.A{
			bson.M{"buyer_id": accountID},
			bson.M{"seller_id": accountID},
		},
	}

	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, filter, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list trades for account %s: %w", accountID, err)
	}
	defer cursor.Close(ctx)

	var trades []entity.Trade
	if err = cursor.All(ctx, &trades); err != nil {
		return nil, fmt.Errorf("failed to decode listed trades: %w", err)
	}
	return trades, nil
}

func (r *tradeRepository) CountByListing(ctx context.Context, listingID string, status entity.TradeStatus) (int64, error) {
	count, err := r.collection.CountDocuments(ctx, bson.M{
		"listing_id": listingID,
		"status":     status,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count trades for listing %s: %w", listingID, err)
	}
	return count, nil
}
