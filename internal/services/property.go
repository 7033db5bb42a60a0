package services

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/db"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/subscription"
)

const DefaultListLimit = 50

type PropertyService struct {
	collection *mongo.Collection
	log        *zap.SugaredLogger
}

func NewPropertyService(database *mongo.Database, log *zap.SugaredLogger) *PropertyService {
	return &PropertyService{collection: database.Collection(db.Properties), log: log}
}

func (s *PropertyService) Create(ctx context.Context, p *models.Property) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	p.ID = primitive.NewObjectID()
	p.CreatedAt = now
	p.UpdatedAt = now
	if p.Images == nil {
		p.Images = []string{}
	}
	if _, err := s.collection.InsertOne(ctx, p); err != nil {
		s.log.Errorf("Failed to create property %q: %v", p.Title, err)
		return fmt.Errorf("failed to create property: %w", err)
	}
	return nil
}

// GetByID returns the property whether or not it is active.
func (s *PropertyService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.Property, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var p models.Property
	if err := s.collection.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		s.log.Errorf("Failed to fetch property %s: %v", id.Hex(), err)
		return nil, fmt.Errorf("failed to fetch property: %w", err)
	}
	return &p, nil
}

// Listing returns one property with its agent. activeOnly hides soft-deleted
// properties.
func (s *PropertyService) Listing(ctx context.Context, id primitive.ObjectID, activeOnly bool) (*models.PropertyListing, error) {
	q := models.PropertyQuery{IDs: []primitive.ObjectID{id}, ActiveOnly: activeOnly, Limit: 1}
	listings, err := s.List(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(listings) == 0 {
		return nil, ErrNotFound
	}
	return &listings[0], nil
}

// Save replaces the stored document with p.
func (s *PropertyService) Save(ctx context.Context, p *models.Property) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	p.UpdatedAt = time.Now()
	res, err := s.collection.ReplaceOne(ctx, bson.M{"_id": p.ID}, p)
	if err != nil {
		s.log.Errorf("Failed to save property %s: %v", p.ID.Hex(), err)
		return fmt.Errorf("failed to save property: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PropertyService) SetActive(ctx context.Context, id primitive.ObjectID, active bool) error {
	return s.set(ctx, id, bson.M{"isActive": active})
}

func (s *PropertyService) SetFeatured(ctx context.Context, id primitive.ObjectID, featured bool) error {
	return s.set(ctx, id, bson.M{"isFeatured": featured})
}

func (s *PropertyService) set(ctx context.Context, id primitive.ObjectID, fields bson.M) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	fields["updatedAt"] = time.Now()
	res, err := s.collection.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$set": fields})
	if err != nil {
		s.log.Errorf("Failed to update property %s: %v", id.Hex(), err)
		return fmt.Errorf("failed to update property: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the document permanently.
func (s *PropertyService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		s.log.Errorf("Failed to delete property %s: %v", id.Hex(), err)
		return fmt.Errorf("failed to delete property: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// List runs q newest first with the owning agent joined in.
func (s *PropertyService) List(ctx context.Context, q models.PropertyQuery) ([]models.PropertyListing, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: PropertyFilter(q)}},
		{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
	}
	if q.Skip > 0 {
		pipeline = append(pipeline, bson.D{{Key: "$skip", Value: q.Skip}})
	}
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	pipeline = append(pipeline, bson.D{{Key: "$limit", Value: limit}})
	pipeline = append(pipeline, withAgent(true)...)

	return s.aggregateListings(ctx, pipeline)
}

func (s *PropertyService) Count(ctx context.Context, q models.PropertyQuery) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	n, err := s.collection.CountDocuments(ctx, PropertyFilter(q))
	if err != nil {
		s.log.Errorf("Failed to count properties: %v", err)
		return 0, fmt.Errorf("failed to count properties: %w", err)
	}
	return n, nil
}

// Featured returns active featured properties whose agent holds a
// subscription that is valid at now. The agent condition is evaluated on
// every call against the joined user document.
func (s *PropertyService) Featured(ctx context.Context, now time.Time, limit int64) ([]models.PropertyListing, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	if limit <= 0 {
		limit = DefaultListLimit
	}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"isActive":   true,
			"isFeatured": true,
			"status":     bson.M{"$in": models.PublicStatuses},
		}}},
	}
	pipeline = append(pipeline, withAgent(false)...)
	pipeline = append(pipeline,
		bson.D{{Key: "$match", Value: subscription.ActiveFilter("agentInfo.", now)}},
		bson.D{{Key: "$sort", Value: bson.D{{Key: "createdAt", Value: -1}}}},
		bson.D{{Key: "$limit", Value: limit}},
	)
	return s.aggregateListings(ctx, pipeline)
}

func (s *PropertyService) aggregateListings(ctx context.Context, pipeline mongo.Pipeline) ([]models.PropertyListing, error) {
	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Errorf("Failed to aggregate properties: %v", err)
		return nil, fmt.Errorf("failed to fetch properties: %w", err)
	}
	defer cur.Close(ctx)

	listings := []models.PropertyListing{}
	if err := cur.All(ctx, &listings); err != nil {
		return nil, fmt.Errorf("failed to decode properties: %w", err)
	}
	for i := range listings {
		listings[i].Flatten()
	}
	return listings, nil
}

// TypeCounts groups public properties by type, optionally within a city.
func (s *PropertyService) TypeCounts(ctx context.Context, city string) ([]models.TypeCount, error) {
	q := models.PropertyQuery{ActiveOnly: true, Statuses: models.PublicStatuses, City: city}
	out := []models.TypeCount{}
	err := s.group(ctx, PropertyFilter(q), "$propertyType", &out)
	return out, err
}

// CityCounts groups public properties by city, optionally of one type.
func (s *PropertyService) CityCounts(ctx context.Context, propertyType string) ([]models.CityCount, error) {
	q := models.PropertyQuery{ActiveOnly: true, Statuses: models.PublicStatuses, PropertyType: propertyType}
	out := []models.CityCount{}
	err := s.group(ctx, PropertyFilter(q), "$location.city", &out)
	return out, err
}

func (s *PropertyService) group(ctx context.Context, match bson.M, field string, out interface{}) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: match}},
		{{Key: "$group", Value: bson.M{"_id": field, "count": bson.M{"$sum": 1}}}},
		{{Key: "$sort", Value: bson.D{{Key: "count", Value: -1}, {Key: "_id", Value: 1}}}},
	}
	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Errorf("Failed to group properties by %s: %v", field, err)
		return fmt.Errorf("failed to group properties: %w", err)
	}
	defer cur.Close(ctx)
	return cur.All(ctx, out)
}

// AgentStats summarises every property an agent owns, active or not.
func (s *PropertyService) AgentStats(ctx context.Context, agentID primitive.ObjectID) (models.PropertyStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	stats := models.PropertyStats{ByType: []models.TypeCount{}}
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"agent": agentID}}},
		{{Key: "$facet", Value: bson.M{
			"totals": bson.A{bson.M{"$group": bson.M{
				"_id":       nil,
				"total":     bson.M{"$sum": 1},
				"active":    sumIf(bson.M{"$eq": bson.A{"$isActive", true}}),
				"available": sumIf(bson.M{"$eq": bson.A{"$status", models.StatusAvailable}}),
				"sold":      sumIf(bson.M{"$eq": bson.A{"$status", models.StatusSold}}),
				"pending":   sumIf(bson.M{"$eq": bson.A{"$status", models.StatusPending}}),
				"rented":    sumIf(bson.M{"$eq": bson.A{"$status", models.StatusRented}}),
				"featured":  sumIf(bson.M{"$eq": bson.A{"$isFeatured", true}}),
			}}},
			"byType": bson.A{
				bson.M{"$group": bson.M{"_id": "$propertyType", "count": bson.M{"$sum": 1}}},
				bson.M{"$sort": bson.M{"count": -1}},
			},
		}}},
	}

	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Errorf("Failed to aggregate stats for agent %s: %v", agentID.Hex(), err)
		return stats, fmt.Errorf("failed to compute property stats: %w", err)
	}
	defer cur.Close(ctx)

	var facets []struct {
		Totals []struct {
			Total     int64 `bson:"total"`
			Active    int64 `bson:"active"`
			Available int64 `bson:"available"`
			Sold      int64 `bson:"sold"`
			Pending   int64 `bson:"pending"`
			Rented    int64 `bson:"rented"`
			Featured  int64 `bson:"featured"`
		} `bson:"totals"`
		ByType []models.TypeCount `bson:"byType"`
	}
	if err := cur.All(ctx, &facets); err != nil {
		return stats, fmt.Errorf("failed to decode property stats: %w", err)
	}
	if len(facets) == 0 {
		return stats, nil
	}
	if len(facets[0].Totals) > 0 {
		t := facets[0].Totals[0]
		stats.Total, stats.Active, stats.Inactive = t.Total, t.Active, t.Total-t.Active
		stats.Available, stats.Sold, stats.Pending, stats.Rented = t.Available, t.Sold, t.Pending, t.Rented
		stats.Featured = t.Featured
	}
	if facets[0].ByType != nil {
		stats.ByType = facets[0].ByType
	}
	return stats, nil
}

// PropertyFilter turns q into a MongoDB match document.
func PropertyFilter(q models.PropertyQuery) bson.M {
	filter := bson.M{}
	if q.ActiveOnly {
		filter["isActive"] = true
	}
	if q.Agent != nil {
		filter["agent"] = *q.Agent
	}
	switch len(q.Statuses) {
	case 0:
	case 1:
		filter["status"] = q.Statuses[0]
	default:
		filter["status"] = bson.M{"$in": q.Statuses}
	}
	if len(q.IDs) > 0 {
		filter["_id"] = bson.M{"$in": q.IDs}
	}
	if q.PropertyType != "" {
		filter["propertyType"] = q.PropertyType
	}
	if q.City != "" {
		filter["location.city"] = primitive.Regex{Pattern: regexp.QuoteMeta(q.City), Options: "i"}
	}
	if q.MinPrice != nil || q.MaxPrice != nil {
		price := bson.M{}
		if q.MinPrice != nil {
			price["$gte"] = *q.MinPrice
		}
		if q.MaxPrice != nil {
			price["$lte"] = *q.MaxPrice
		}
		filter["price"] = price
	}
	if q.MinBedrooms > 0 {
		filter["features.bedrooms"] = bson.M{"$gte": q.MinBedrooms}
	}
	if q.MinBathrooms > 0 {
		filter["features.bathrooms"] = bson.M{"$gte": q.MinBathrooms}
	}
	if q.MinYearBuilt > 0 {
		filter["features.yearBuilt"] = bson.M{"$gte": q.MinYearBuilt}
	}
	if q.MinArea > 0 {
		filter["features.area"] = bson.M{"$gte": q.MinArea}
	}
	for _, a := range q.Amenities {
		filter["amenities."+a] = true
	}
	if q.Keyword != "" {
		kw := primitive.Regex{Pattern: regexp.QuoteMeta(q.Keyword), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": kw},
			bson.M{"description": kw},
			bson.M{"location.address": kw},
			bson.M{"location.city": kw},
		}
	}
	return filter
}

// withAgent joins the owning user as agentInfo. With keepOrphans false,
// properties whose agent no longer exists are dropped.
func withAgent(keepOrphans bool) []bson.D {
	return []bson.D{
		{{Key: "$lookup", Value: bson.M{
			"from":         db.Users,
			"localField":   "agent",
			"foreignField": "_id",
			"as":           "agentInfo",
		}}},
		{{Key: "$unwind", Value: bson.M{"path": "$agentInfo", "preserveNullAndEmptyArrays": keepOrphans}}},
		{{Key: "$project", Value: bson.M{"agentInfo.password": 0, "agentInfo.favourites": 0}}},
	}
}

func sumIf(cond bson.M) bson.M {
	return bson.M{"$sum": bson.M{"$cond": bson.A{cond, 1, 0}}}
}
