package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	RoleUser  = "user"
	RoleAgent = "agent"
	RoleAdmin = "admin"
)

// User model
type User struct {
	ID                   primitive.ObjectID   `bson:"_id,omitempty" json:"_id"`
	Name                 string               `bson:"name" json:"name"`
	Email                string               `bson:"email" json:"email"`
	HPassword            string               `bson:"password" json:"-"`
	Role                 string               `bson:"role" json:"role"`
	IsApproved           bool                 `bson:"isApproved" json:"isApproved"`
	ProfileImage         string               `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	Favourites           []primitive.ObjectID `bson:"favourites" json:"favourites"`
	HasSubscription      bool                 `bson:"hasSubscription" json:"hasSubscription"`
	SubscriptionExpiry   *time.Time           `bson:"subscriptionExpiry,omitempty" json:"subscriptionExpiry,omitempty"`
	StripeCustomerID     string               `bson:"stripeCustomerId,omitempty" json:"stripeCustomerId,omitempty"`
	StripeSubscriptionID string               `bson:"stripeSubscriptionId,omitempty" json:"stripeSubscriptionId,omitempty"`
	CreatedAt            time.Time            `bson:"createdAt" json:"createdAt"`
	UpdatedAt            time.Time            `bson:"updatedAt" json:"updatedAt"`
}

// HasFavourite reports whether id is already in the user's favourites.
func (u *User) HasFavourite(id primitive.ObjectID) bool {
	for _, f := range u.Favourites {
		if f == id {
			return true
		}
	}
	return false
}

// UserPatch carries the editable profile fields; nil means unchanged.
type UserPatch struct {
	Name         *string
	Email        *string
	HPassword    *string
	Role         *string
	IsApproved   *bool
	ProfileImage *string
}

// SubscriptionUpdate is written by the webhook processor and the reminder job.
type SubscriptionUpdate struct {
	Active         bool
	Expiry         *time.Time
	CustomerID     string
	SubscriptionID string
}

// AgentCard is the public agent directory entry.
type AgentCard struct {
	ID            primitive.ObjectID `bson:"_id" json:"_id"`
	Name          string             `bson:"name" json:"name"`
	Email         string             `bson:"email" json:"email"`
	ProfileImage  string             `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	PropertyCount int64              `bson:"propertyCount" json:"propertyCount"`
	CreatedAt     time.Time          `bson:"createdAt" json:"createdAt"`
}

// AgentSummary is the agent projection joined onto listings.
type AgentSummary struct {
	ID                 primitive.ObjectID `bson:"_id" json:"_id"`
	Name               string             `bson:"name" json:"name"`
	Email              string             `bson:"email" json:"email"`
	ProfileImage       string             `bson:"profileImage,omitempty" json:"profileImage,omitempty"`
	HasSubscription    bool               `bson:"hasSubscription" json:"hasSubscription"`
	SubscriptionExpiry *time.Time         `bson:"subscriptionExpiry,omitempty" json:"subscriptionExpiry,omitempty"`
}

type DashboardStats struct {
	TotalUsers       int64 `json:"totalUsers"`
	TotalAgents      int64 `json:"totalAgents"`
	PendingAgents    int64 `json:"pendingAgents"`
	TotalProperties  int64 `json:"totalProperties"`
	ActiveProperties int64 `json:"activeProperties"`
	FeaturedCount    int64 `json:"featuredProperties"`
	TotalTours       int64 `json:"totalTours"`
}
