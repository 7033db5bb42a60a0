package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Review struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Property  primitive.ObjectID `bson:"property" json:"property"`
	Agent     primitive.ObjectID `bson:"agent" json:"agent"`
	Name      string             `bson:"name" json:"name"`
	Comment   string             `bson:"comment" json:"comment"`
	IsActive  bool               `bson:"isActive" json:"isActive"`
	CreatedAt time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time          `bson:"updatedAt" json:"updatedAt"`
}

type ReviewListing struct {
	Review      `bson:",inline"`
	PropertyRef *PropertyBrief `bson:"propertyInfo,omitempty" json:"property,omitempty"`
}
