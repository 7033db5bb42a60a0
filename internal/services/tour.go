package services

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/db"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

type TourService struct {
	collection *mongo.Collection
	log        *zap.SugaredLogger
}

func NewTourService(database *mongo.Database, log *zap.SugaredLogger) *TourService {
	return &TourService{collection: database.Collection(db.Tours), log: log}
}

func (s *TourService) Create(ctx context.Context, t *models.Tour) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	t.ID = primitive.NewObjectID()
	t.CreatedAt = now
	t.UpdatedAt = now
	if t.Status == "" {
		t.Status = models.TourPending
	}
	t.IsActive = true
	if _, err := s.collection.InsertOne(ctx, t); err != nil {
		s.log.Errorf("Failed to create tour for property %s: %v", t.Property.Hex(), err)
		return fmt.Errorf("failed to create tour: %w", err)
	}
	return nil
}

func (s *TourService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var t models.Tour
	if err := s.collection.FindOne(ctx, bson.M{"_id": id, "isActive": true}).Decode(&t); err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		s.log.Errorf("Failed to fetch tour %s: %v", id.Hex(), err)
		return nil, fmt.Errorf("failed to fetch tour: %w", err)
	}
	return &t, nil
}

func (s *TourService) Listing(ctx context.Context, id primitive.ObjectID) (*models.TourListing, error) {
	tours, _, err := s.list(ctx, bson.M{"_id": id, "isActive": true}, 0, 1, false)
	if err != nil {
		return nil, err
	}
	if len(tours) == 0 {
		return nil, ErrNotFound
	}
	return &tours[0], nil
}

// List returns the page selected by q and the total number of matches.
func (s *TourService) List(ctx context.Context, q models.TourQuery) ([]models.TourListing, int64, error) {
	return s.list(ctx, tourFilter(q), q.Skip, q.Limit, true)
}

func (s *TourService) list(ctx context.Context, filter bson.M, skip, limit int64, count bool) ([]models.TourListing, int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: filter}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	if skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: skip}})
	}
	pipeline = append(pipeline,
		bson.D{{Key: "$limit", Value: limit}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": db.Properties, "localField": "property", "foreignField": "_id", "as": "propertyInfo",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$propertyInfo", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$lookup", Value: bson.M{
			"from": db.Users, "localField": "agent", "foreignField": "_id", "as": "agentInfo",
		}}},
		bson.D{{Key: "$unwind", Value: bson.M{"path": "$agentInfo", "preserveNullAndEmptyArrays": true}}},
		bson.D{{Key: "$project", Value: bson.M{"agentInfo.password": 0, "agentInfo.favourites": 0}}},
	)

	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Errorf("Failed to aggregate tours: %v", err)
		return nil, 0, fmt.Errorf("failed to fetch tours: %w", err)
	}
	defer cur.Close(ctx)

	tours := []models.TourListing{}
	if err := cur.All(ctx, &tours); err != nil {
		return nil, 0, fmt.Errorf("failed to decode tours: %w", err)
	}
	if !count {
		return tours, int64(len(tours)), nil
	}
	total, err := s.collection.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count tours: %w", err)
	}
	return tours, total, nil
}

func (s *TourService) UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Tour, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	update := bson.M{"$set": bson.M{"status": status, "updatedAt": time.Now()}}
	var t models.Tour
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id, "isActive": true}, update, opts).Decode(&t); err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		s.log.Errorf("Failed to update tour %s: %v", id.Hex(), err)
		return nil, fmt.Errorf("failed to update tour: %w", err)
	}
	return &t, nil
}

// AgentStats counts an agent's tours by status, plus upcoming ones and those
// booked since monthStart.
func (s *TourService) AgentStats(ctx context.Context, agentID primitive.ObjectID, now, monthStart time.Time) (models.TourStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var stats models.TourStats
	base := bson.M{"agent": agentID, "isActive": true}
	counts := []struct {
		extra bson.M
		dst   *int64
	}{
		{bson.M{}, &stats.Total},
		{bson.M{"status": models.TourPending}, &stats.Pending},
		{bson.M{"status": models.TourConfirmed}, &stats.Confirmed},
		{bson.M{"status": models.TourCompleted}, &stats.Completed},
		{bson.M{"status": models.TourCancelled}, &stats.Cancelled},
		{bson.M{"tourDate": bson.M{"$gte": now}, "status": bson.M{"$in": bson.A{models.TourPending, models.TourConfirmed}}}, &stats.Upcoming},
		{bson.M{"createdAt": bson.M{"$gte": monthStart}}, &stats.ThisMonth},
	}
	for _, c := range counts {
		filter := bson.M{}
		for k, v := range base {
			filter[k] = v
		}
		for k, v := range c.extra {
			filter[k] = v
		}
		n, err := s.collection.CountDocuments(ctx, filter)
		if err != nil {
			s.log.Errorf("Failed to count tours for agent %s: %v", agentID.Hex(), err)
			return stats, fmt.Errorf("failed to count tours: %w", err)
		}
		*c.dst = n
	}
	return stats, nil
}

func tourFilter(q models.TourQuery) bson.M {
	filter := bson.M{"isActive": true}
	if q.Agent != nil {
		filter["agent"] = *q.Agent
	}
	if q.Status != "" {
		filter["status"] = q.Status
	}
	if q.Name != "" {
		filter["name"] = q.Name
	}
	if q.Email != "" {
		filter["email"] = q.Email
	}
	return filter
}
