package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/db"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

type ReviewService struct {
	collection *mongo.Collection
	log        *zap.SugaredLogger
}

func NewReviewService(database *mongo.Database, log *zap.SugaredLogger) *ReviewService {
	return &ReviewService{collection: database.Collection(db.Reviews), log: log}
}

func (s *ReviewService) Create(ctx context.Context, r *models.Review) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	r.ID = primitive.NewObjectID()
	r.CreatedAt = now
	r.UpdatedAt = now
	r.IsActive = true
	if _, err := s.collection.InsertOne(ctx, r); err != nil {
		s.log.Errorf("Failed to create review for property %s: %v", r.Property.Hex(), err)
		return fmt.Errorf("failed to create review: %w", err)
	}
	return nil
}

func (s *ReviewService) ByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.ReviewListing, error) {
	return s.list(ctx, bson.M{"property": propertyID, "isActive": true})
}

func (s *ReviewService) ByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.ReviewListing, error) {
	return s.list(ctx, bson.M{"agent": agentID, "isActive": true})
}

func (s *ReviewService) list(ctx context.Context, match bson.M) ([]models.ReviewListing, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		{{Key: "$lookup", Value: bson.M{
			"from": db.Properties, "localField": "property", "foreignField": "_id", "as": "propertyInfo",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$propertyInfo", "preserveNullAndEmptyArrays": true}}},
	}
	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Errorf("Failed to aggregate reviews: %v", err)
		return nil, fmt.Errorf("failed to fetch reviews: %w", err)
	}
	defer cur.Close(ctx)

	reviews := []models.ReviewListing{}
	if err := cur.All(ctx, &reviews); err != nil {
		return nil, fmt.Errorf("failed to decode reviews: %w", err)
	}
	return reviews, nil
}
