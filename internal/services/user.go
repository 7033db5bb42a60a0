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

type UserService struct {
	db         *mongo.Database
	collection *mongo.Collection
	log        *zap.SugaredLogger
}

func NewUserService(database *mongo.Database, log *zap.SugaredLogger) *UserService {
	return &UserService{db: database, collection: database.Collection(db.Users), log: log}
}

func (s *UserService) Create(ctx context.Context, user *models.User) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	user.ID = primitive.NewObjectID()
	user.CreatedAt = now
	user.UpdatedAt = now
	if user.Favourites == nil {
		user.Favourites = []primitive.ObjectID{}
	}

	if _, err := s.collection.InsertOne(ctx, user); err != nil {
		if err = translate(err); err == ErrDuplicate {
			return err
		}
		s.log.Errorf("Failed to create user %s: %v", user.Email, err)
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

func (s *UserService) GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *UserService) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	return s.findOne(ctx, bson.M{"email": email})
}

// FindByStripeRefs resolves a user from processor ids. Empty ids are ignored.
func (s *UserService) FindByStripeRefs(ctx context.Context, customerID, subscriptionID string) (*models.User, error) {
	var or bson.A
	if customerID != "" {
		or = append(or, bson.M{"stripeCustomerId": customerID})
	}
	if subscriptionID != "" {
		or = append(or, bson.M{"stripeSubscriptionId": subscriptionID})
	}
	if len(or) == 0 {
		return nil, ErrNotFound
	}
	return s.findOne(ctx, bson.M{"$or": or})
}

func (s *UserService) findOne(ctx context.Context, filter bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	var user models.User
	if err := s.collection.FindOne(ctx, filter).Decode(&user); err != nil {
		if err = translate(err); err == ErrNotFound {
			return nil, err
		}
		s.log.Errorf("Failed to fetch user %v: %v", filter, err)
		return nil, fmt.Errorf("failed to fetch user: %w", err)
	}
	return &user, nil
}

// ListByRole returns users newest first; no roles means every user.
func (s *UserService) ListByRole(ctx context.Context, roles ...string) ([]models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	filter := bson.M{}
	if len(roles) > 0 {
		filter["role"] = bson.M{"$in": roles}
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "createdAt", Value: -1}}).
		SetProjection(bson.M{"password": 0})
	cur, err := s.collection.Find(ctx, filter, opts)
	if err != nil {
		s.log.Errorf("Failed to list users: %v", err)
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer cur.Close(ctx)

	users := []models.User{}
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("failed to decode users: %w", err)
	}
	return users, nil
}

func (s *UserService) Update(ctx context.Context, id primitive.ObjectID, patch models.UserPatch) (*models.User, error) {
	set := bson.M{"updatedAt": time.Now()}
	if patch.Name != nil {
		set["name"] = *patch.Name
	}
	if patch.Email != nil {
		set["email"] = *patch.Email
	}
	if patch.HPassword != nil {
		set["password"] = *patch.HPassword
	}
	if patch.Role != nil {
		set["role"] = *patch.Role
	}
	if patch.IsApproved != nil {
		set["isApproved"] = *patch.IsApproved
	}
	if patch.ProfileImage != nil {
		set["profileImage"] = *patch.ProfileImage
	}
	return s.updateOne(ctx, id, bson.M{"$set": set})
}

func (s *UserService) AddFavourite(ctx context.Context, id, propertyID primitive.ObjectID) (*models.User, error) {
	return s.updateOne(ctx, id, bson.M{"$addToSet": bson.M{"favourites": propertyID}})
}

func (s *UserService) RemoveFavourite(ctx context.Context, id, propertyID primitive.ObjectID) (*models.User, error) {
	return s.updateOne(ctx, id, bson.M{"$pull": bson.M{"favourites": propertyID}})
}

// UpdateSubscription writes the subscription flag, and the expiry and
// processor ids when they are set on update.
func (s *UserService) UpdateSubscription(ctx context.Context, id primitive.ObjectID, update models.SubscriptionUpdate) (*models.User, error) {
	set := bson.M{"hasSubscription": update.Active, "updatedAt": time.Now()}
	if update.Expiry != nil {
		set["subscriptionExpiry"] = *update.Expiry
	}
	if update.CustomerID != "" {
		set["stripeCustomerId"] = update.CustomerID
	}
	if update.SubscriptionID != "" {
		set["stripeSubscriptionId"] = update.SubscriptionID
	}
	return s.updateOne(ctx, id, bson.M{"$set": set})
}

func (s *UserService) SetStripeCustomer(ctx context.Context, id primitive.ObjectID, customerID string) error {
	_, err := s.updateOne(ctx, id, bson.M{"$set": bson.M{"stripeCustomerId": customerID, "updatedAt": time.Now()}})
	return err
}

func (s *UserService) updateOne(ctx context.Context, id primitive.ObjectID, update bson.M) (*models.User, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var user models.User
	if err := s.collection.FindOneAndUpdate(ctx, bson.M{"_id": id}, update, opts).Decode(&user); err != nil {
		if err = translate(err); err == ErrNotFound || err == ErrDuplicate {
			return nil, err
		}
		s.log.Errorf("Failed to update user %s: %v", id.Hex(), err)
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return &user, nil
}

func (s *UserService) Delete(ctx context.Context, id primitive.ObjectID) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := s.collection.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		s.log.Errorf("Failed to delete user %s: %v", id.Hex(), err)
		return fmt.Errorf("failed to delete user: %w", err)
	}
	if res.DeletedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// PublicAgents lists approved agents with the number of active listings each owns.
func (s *UserService) PublicAgents(ctx context.Context) ([]models.AgentCard, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"role": models.RoleAgent, "isApproved": true}}},
		{{Key: "$lookup", Value: bson.M{
			"from": db.Properties,
			"let":  bson.M{"agentId": "$_id"},
			"pipeline": bson.A{
				bson.M{"$match": bson.M{"$expr": bson.M{"$and": bson.A{
					bson.M{"$eq": bson.A{"$agent", "$$agentId"}},
					bson.M{"$eq": bson.A{"$isActive", true}},
				}}}},
				bson.M{"$count": "n"},
			},
			"as": "listingCount",
		}}},
		{{Key: "$project", Value: bson.M{
			"name":          1,
			"email":         1,
			"profileImage":  1,
			"createdAt":     1,
			"propertyCount": bson.M{"$ifNull": bson.A{bson.M{"$arrayElemAt": bson.A{"$listingCount.n", 0}}, 0}},
		}}},
		{{Key: "$sort", Value: bson.M{"propertyCount": -1}}},
	}

	cur, err := s.collection.Aggregate(ctx, pipeline)
	if err != nil {
		s.log.Errorf("Failed to aggregate public agents: %v", err)
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	defer cur.Close(ctx)

	agents := []models.AgentCard{}
	if err := cur.All(ctx, &agents); err != nil {
		return nil, fmt.Errorf("failed to decode agents: %w", err)
	}
	return agents, nil
}

// Dashboard gathers the admin overview counts.
func (s *UserService) Dashboard(ctx context.Context) (models.DashboardStats, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	var stats models.DashboardStats
	counts := []struct {
		coll   string
		filter bson.M
		dst    *int64
	}{
		{db.Users, bson.M{"role": models.RoleUser}, &stats.TotalUsers},
		{db.Users, bson.M{"role": models.RoleAgent}, &stats.TotalAgents},
		{db.Users, bson.M{"role": models.RoleAgent, "isApproved": false}, &stats.PendingAgents},
		{db.Properties, bson.M{}, &stats.TotalProperties},
		{db.Properties, bson.M{"isActive": true}, &stats.ActiveProperties},
		{db.Properties, bson.M{"isActive": true, "isFeatured": true}, &stats.FeaturedCount},
		{db.Tours, bson.M{"isActive": true}, &stats.TotalTours},
	}
	for _, c := range counts {
		n, err := s.db.Collection(c.coll).CountDocuments(ctx, c.filter)
		if err != nil {
			s.log.Errorf("Failed to count %s: %v", c.coll, err)
			return stats, fmt.Errorf("failed to count %s: %w", c.coll, err)
		}
		*c.dst = n
	}
	return stats, nil
}
