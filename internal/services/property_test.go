package services

import (
	"context"
	"os"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"

	"github.com/markjakearzadon/realestate-gobackend/internal/db"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

func TestPropertyFilter(t *testing.T) {
	agent := primitive.NewObjectID()
	lo, hi := 100.0, 500.0
	f := PropertyFilter(models.PropertyQuery{
		Agent:        &agent,
		ActiveOnly:   true,
		Statuses:     models.PublicStatuses,
		PropertyType: "villa",
		City:         "St. Louis",
		MinPrice:     &lo,
		MaxPrice:     &hi,
		MinBedrooms:  2,
		Amenities:    []string{"wifi", "gym"},
		Keyword:      "pool",
	})

	if f["isActive"] != true || f["agent"] != agent || f["propertyType"] != "villa" {
		t.Errorf("basic clauses wrong: %v", f)
	}
	status, ok := f["status"].(bson.M)
	if !ok || len(status["$in"].([]string)) != 2 {
		t.Errorf("status clause = %v", f["status"])
	}
	city, ok := f["location.city"].(primitive.Regex)
	if !ok || city.Pattern != `St\. Louis` || city.Options != "i" {
		t.Errorf("city regex = %#v", f["location.city"])
	}
	price := f["price"].(bson.M)
	if price["$gte"] != 100.0 || price["$lte"] != 500.0 {
		t.Errorf("price = %v", price)
	}
	if f["amenities.wifi"] != true || f["amenities.gym"] != true {
		t.Errorf("amenities missing: %v", f)
	}
	if or, ok := f["$or"].(bson.A); !ok || len(or) != 4 {
		t.Errorf("keyword clause = %v", f["$or"])
	}
	if _, ok := f["features.bathrooms"]; ok {
		t.Error("zero minimums should not filter")
	}
}

func TestPropertyFilterSingleStatus(t *testing.T) {
	f := PropertyFilter(models.PropertyQuery{Statuses: []string{models.StatusRented}})
	if f["status"] != models.StatusRented {
		t.Errorf("status = %v", f["status"])
	}
	if _, ok := f["isActive"]; ok {
		t.Error("isActive should only be set for ActiveOnly")
	}
}

// setupTestDB connects to MONGO_TEST_URI or skips the test.
func setupTestDB(t *testing.T) *mongo.Database {
	t.Helper()
	uri := os.Getenv("MONGO_TEST_URI")
	if uri == "" {
		t.Skip("MONGO_TEST_URI not set, skipping integration test")
	}
	ctx := context.Background()
	client, err := db.Connect(ctx, uri)
	if err != nil {
		t.Skipf("MongoDB not reachable: %v", err)
	}
	database := client.Database("realestate_test_" + primitive.NewObjectID().Hex())
	t.Cleanup(func() {
		_ = database.Drop(ctx)
		_ = client.Disconnect(ctx)
	})
	if err := db.EnsureIndexes(ctx, database); err != nil {
		t.Fatalf("EnsureIndexes: %v", err)
	}
	return database
}

func TestFeaturedRequiresActiveSubscription(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	log := zap.NewNop().Sugar()
	users := NewUserService(database, log)
	props := NewPropertyService(database, log)
	now := time.Now()

	subscribed := &models.User{Name: "Sub", Email: "sub@x.io", Role: models.RoleAgent, IsApproved: true}
	lapsed := &models.User{Name: "Lapsed", Email: "lapsed@x.io", Role: models.RoleAgent, IsApproved: true}
	for _, u := range []*models.User{subscribed, lapsed} {
		if err := users.Create(ctx, u); err != nil {
			t.Fatal(err)
		}
	}
	future, past := now.Add(24*time.Hour), now.Add(-time.Hour)
	if _, err := users.UpdateSubscription(ctx, subscribed.ID, models.SubscriptionUpdate{Active: true, Expiry: &future}); err != nil {
		t.Fatal(err)
	}
	// Flag still set but the expiry has passed: the reminder job has not run yet.
	if _, err := users.UpdateSubscription(ctx, lapsed.ID, models.SubscriptionUpdate{Active: true, Expiry: &past}); err != nil {
		t.Fatal(err)
	}

	mk := func(agent primitive.ObjectID, status string, active bool) *models.Property {
		p := &models.Property{Title: status, Price: 1, Status: status, PropertyType: "house",
			Agent: agent, IsActive: active, IsFeatured: true}
		if err := props.Create(ctx, p); err != nil {
			t.Fatal(err)
		}
		return p
	}
	visible := mk(subscribed.ID, models.StatusAvailable, true)
	mk(subscribed.ID, models.StatusSold, true)
	mk(subscribed.ID, models.StatusRented, false)
	mk(lapsed.ID, models.StatusAvailable, true)

	got, err := props.Featured(ctx, now, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].ID != visible.ID {
		t.Fatalf("featured = %+v, want only %s", got, visible.ID.Hex())
	}
	if got[0].AgentRef == nil || got[0].AgentRef.Email != "sub@x.io" {
		t.Errorf("agent not joined: %+v", got[0].AgentRef)
	}
}

func TestFavouritesRoundTrip(t *testing.T) {
	database := setupTestDB(t)
	ctx := context.Background()
	users := NewUserService(database, zap.NewNop().Sugar())

	u := &models.User{Name: "U", Email: "u@x.io", Role: models.RoleUser, IsApproved: true}
	if err := users.Create(ctx, u); err != nil {
		t.Fatal(err)
	}
	prop := primitive.NewObjectID()
	if got, err := users.AddFavourite(ctx, u.ID, prop); err != nil || len(got.Favourites) != 1 {
		t.Fatalf("add: %v %+v", err, got)
	}
	got, err := users.RemoveFavourite(ctx, u.ID, prop)
	if err != nil || len(got.Favourites) != 0 {
		t.Fatalf("remove: %v %+v", err, got)
	}
	if err := users.Create(ctx, &models.User{Email: "u@x.io"}); err != ErrDuplicate {
		t.Errorf("duplicate email: %v", err)
	}
}
