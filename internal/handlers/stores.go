package handlers

import (
	"context"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/stripe/stripe-go/v76"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/markjakearzadon/realestate-gobackend/internal/mail"
	"github.com/markjakearzadon/realestate-gobackend/internal/models"
	"github.com/markjakearzadon/realestate-gobackend/internal/payments"
)

// The interfaces below are satisfied by the MongoDB services.

type UserStore interface {
	Create(ctx context.Context, user *models.User) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	ListByRole(ctx context.Context, roles ...string) ([]models.User, error)
	Update(ctx context.Context, id primitive.ObjectID, patch models.UserPatch) (*models.User, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	AddFavourite(ctx context.Context, id, propertyID primitive.ObjectID) (*models.User, error)
	RemoveFavourite(ctx context.Context, id, propertyID primitive.ObjectID) (*models.User, error)
	PublicAgents(ctx context.Context) ([]models.AgentCard, error)
	SetStripeCustomer(ctx context.Context, id primitive.ObjectID, customerID string) error
	Dashboard(ctx context.Context) (models.DashboardStats, error)
}

type PropertyStore interface {
	Create(ctx context.Context, p *models.Property) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Property, error)
	Listing(ctx context.Context, id primitive.ObjectID, activeOnly bool) (*models.PropertyListing, error)
	Save(ctx context.Context, p *models.Property) error
	SetActive(ctx context.Context, id primitive.ObjectID, active bool) error
	SetFeatured(ctx context.Context, id primitive.ObjectID, featured bool) error
	Delete(ctx context.Context, id primitive.ObjectID) error
	List(ctx context.Context, q models.PropertyQuery) ([]models.PropertyListing, error)
	Count(ctx context.Context, q models.PropertyQuery) (int64, error)
	Featured(ctx context.Context, now time.Time, limit int64) ([]models.PropertyListing, error)
	TypeCounts(ctx context.Context, city string) ([]models.TypeCount, error)
	CityCounts(ctx context.Context, propertyType string) ([]models.CityCount, error)
	AgentStats(ctx context.Context, agentID primitive.ObjectID) (models.PropertyStats, error)
}

type TourStore interface {
	Create(ctx context.Context, t *models.Tour) error
	GetByID(ctx context.Context, id primitive.ObjectID) (*models.Tour, error)
	Listing(ctx context.Context, id primitive.ObjectID) (*models.TourListing, error)
	List(ctx context.Context, q models.TourQuery) ([]models.TourListing, int64, error)
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status string) (*models.Tour, error)
	AgentStats(ctx context.Context, agentID primitive.ObjectID, now, monthStart time.Time) (models.TourStats, error)
}

type MessageStore interface {
	Create(ctx context.Context, m *models.Message) error
	ByTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Message, error)
	Counts(ctx context.Context, tourID primitive.ObjectID) (total, unread int64, err error)
	MarkRead(ctx context.Context, tourID primitive.ObjectID) (int64, error)
}

type ReviewStore interface {
	Create(ctx context.Context, r *models.Review) error
	ByProperty(ctx context.Context, propertyID primitive.ObjectID) ([]models.ReviewListing, error)
	ByAgent(ctx context.Context, agentID primitive.ObjectID) ([]models.ReviewListing, error)
}

type ImageStore interface {
	Save(files []*multipart.FileHeader) ([]string, error)
	Remove(names ...string) error
	Handler() http.Handler
}

// Notifier sends mail; Go never reports failures to the caller.
type Notifier interface {
	Go(msg mail.Message)
	Send(ctx context.Context, msg mail.Message) error
}

type EventApplier interface {
	Apply(ctx context.Context, event stripe.Event) (payments.Outcome, error)
}
