package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mototrade/trade-service/internal/app/config"
	"github.com/mototrade/trade-service/internal/domain/entity"
	"github.com/mototrade/trade-service/internal/repository"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const listingCollectionName = "listings"

type listingRepository struct {
	collection *mongo.Collection
}

func NewListingRepository(client *mongo.Client, cfg config.MongoDBConfig) repository.ListingRepository {
	return &listingRepository{
		collection: client.Database(cfg.Database).Collection(listingCollectionName),
	}
}

func (r *listingRepository) Create(ctx context.Context, params repository.CreateListingParams) (string, error) {
	now := time.Now().UTC()
	listing := entity.Listing{
		OwnerID:   params.OwnerID,
		Brand:     params.Brand,
		Model:     params.Model,
		Trim:      params.Trim,
		Year:      params.Year,
		Mileage:   params.Mileage,
		Price:     params.Price,
		PhotoURLs: params.PhotoURLs,
		Sold:      false,
		CreatedAt: now,
		UpdatedAt: now,
	}

	res, err := r.collection.InsertOne(ctx, listing)
	if err != nil {
		return "", fmt.Errorf("failed to create listing: %w", err)
	}

	objectID, ok := res.InsertedID.(primitive.ObjectID)
	if !ok {
		return "", fmt.Errorf("failed to convert inserted ID to ObjectID")
	}
	return objectID.Hex(), nil
}

func (r *listingRepository) GetByID(ctx context.Context, listingID string) (*entity.Listing, error) {
	objID, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return nil, fmt.Errorf("invalid listing ID format: %w", repository.ErrNotFound)
	}

	var listing entity.Listing
	err = r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&listing)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get listing by ID %s: %w", listingID, err)
	}
	return &listing, nil
}

func (r *listingRepository) Update(ctx context.Context, params repository.UpdateListingParams) error {
	objID, err := primitive.ObjectIDFromHex(params.ListingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID format: %w", repository.ErrNotFound)
	}

	update := bson.M{
		"$set": bson.M{
			"brand":      params.Brand,
			"model":      params.Model,
			"trim":       params.Trim,
			"year":       params.Year,
			"mileage":    params.Mileage,
			"price":      params.Price,
			"updated_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to update listing %s: %w", params.ListingID, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *listingRepository) AddPhotoURL(ctx context.Context, listingID, url string) error {
	objID, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID format: %w", repository.ErrNotFound)
	}

	update := bson.M{
		"$push": bson.M{"photo_urls": url},
		"$set":  bson.M{"updated_at": time.Now().UTC()},
	}
	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": objID}, update)
	if err != nil {
		return fmt.Errorf("failed to add photo URL to listing %s: %w", listingID, err)
	}
	if result.MatchedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

// MarkSold is the guarded availability flip of the completion protocol: the
// "not already sold" precondition sits in the update filter, so two
// completions racing on one listing cannot both succeed.
func (r *listingRepository) MarkSold(ctx context.Context, listingID string) error {
	objID, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID format: %w", repository.ErrNotFound)
	}

	filter := bson.M{
		"_id":     objID,
		"is_sold": false,
	}
	update := bson.M{
		"$set": bson.M{
			"is_sold":    true,
			"updated_at": time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return fmt.Errorf("failed to mark listing %s as sold: %w", listingID, err)
	}

	if result.MatchedCount == 0 {
		var existing entity.Listing
		errFind := r.collection.FindOne(ctx, bson.M{"_id": objID}).Decode(&existing)
		if errors.Is(errFind, mongo.ErrNoDocuments) {
			return repository.ErrNotFound
		}
		if errFind == nil && existing.Sold {
			return repository.ErrOptimisticLock
		}
		return repository.ErrUpdateFailed
	}
	return nil
}

func (r *listingRepository) Delete(ctx context.Context, listingID string) error {
	objID, err := primitive.ObjectIDFromHex(listingID)
	if err != nil {
		return fmt.Errorf("invalid listing ID format: %w", repository.ErrNotFound)
	}

	result, err := r.collection.DeleteOne(ctx, bson.M{"_id": objID})
	if err != nil {
		return fmt.Errorf("failed to delete listing %s: %w", listingID, err)
	}
	if result.DeletedCount == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (r *listingRepository) ListByOwner(ctx context.Context, ownerID string) ([]entity.Listing, error) {
	findOptions := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := r.collection.Find(ctx, bson.M{"owner_id": ownerID}, findOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to list listings for owner %s: %w", ownerID, err)
	}
	defer cursor.Close(ctx)

	var listings []entity.Listing
	if err = cursor.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode listed listings: %w", err)
	}
	return listings, nil
}
