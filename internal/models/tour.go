package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	TourPending   = "pending"
	TourConfirmed = "confirmed"
	TourCompleted = "completed"
	TourCancelled = "cancelled"
)

var TourStatuses = []string{TourPending, TourConfirmed, TourCompleted, TourCancelled}

func ValidTourStatus(s string) bool { return contains(TourStatuses, s) }

// Tour is a viewing request made by a visitor without an account.
type Tour struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Name      string             `bson:"name" json:"name"`
	Email     string             `bson:"email" json:"email"`
	Phone     string             `bson:"phone" json:"phone"`
	Message   string             `bson:"message,omitempty" json:"message,omitempty"`
	TourDate  time.Time          `bson:"tourDate" json:"tourDate"`
	TourTime  string             `bson:"tourTime" json:"tourTime"`
	Status    string             `bson:"status" json:"status"`
	Property  primitive.ObjectID `bson:"property" json:"property"`
	Agent     primitive.ObjectID `bson:"agent" json:"agent"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// Requester reports whether name and email identify the visitor who booked the tour.
func (t *Tour) Requester(name, email string) bool {
	return name != "" && email != "" && t.Name == name && t.Email == email
}

// PropertyBrief is the property projection joined onto tours and reviews.
type PropertyBrief struct {
	ID           primitive.ObjectID `bson:"_id" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	PropertyType string             `bson:"propertyType" json:"propertyType"`
	Location     Location           `bson:"location" json:"location"`
	Price        float64            `bson:"price" json:"price"`
	Images       []string           `bson:"images" json:"images"`
	Status       string             `bson:"status" json:"status"`
}

type TourListing struct {
	Tour        `bson:",inline"`
	PropertyRef *PropertyBrief `bson:"propertyInfo,omitempty" json:"property,omitempty"`
	AgentRef    *AgentSummary  `bson:"agentInfo,omitempty" json:"agent,omitempty"`
}

type TourQuery struct {
	Agent  *primitive.ObjectID
	Status string
	Name   string
	Email  string
	Skip   int64
	Limit  int64
}

type TourStats struct {
	Total     int64 `json:"total"`
	Pending   int64 `json:"pending"`
	Confirmed int64 `json:"confirmed"`
	Completed int64 `json:"completed"`
	Cancelled int64 `json:"cancelled"`
	Upcoming  int64 `json:"upcoming"`
	ThisMonth int64 `json:"thisMonth"`
}
