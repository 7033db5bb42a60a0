package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	SenderUser  = "user"
	SenderAgent = "agent"
)

// Message belongs to exactly one tour.
type Message struct {
	ID         primitive.ObjectID  `bson:"_id,omitempty" json:"_id"`
	Tour       primitive.ObjectID  `bson:"tour" json:"tour"`
	Sender     string              `bson:"sender" json:"sender"`
	SenderID   *primitive.ObjectID `bson:"senderId,omitempty" json:"senderId,omitempty"`
	ReceiverID *primitive.ObjectID `bson:"receiverId,omitempty" json:"receiverId,omitempty"`
	Message    string              `bson:"message" json:"message"`
	IsRead     bool                `bson:"isRead" json:"isRead"`
	IsActive   bool                `bson:"isActive" json:"isActive"`
	CreatedAt  time.Time           `bson:"createdAt" json:"createdAt"`
	UpdatedAt  time.Time           `bson:"updatedAt" json:"updatedAt"`
}

// TourThread is an agent inbox entry.
type TourThread struct {
	Tour   TourListing `json:"tour"`
	Total  int64       `json:"messageCount"`
	Unread int64       `json:"unreadCount"`
}
