package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	StatusAvailable = "available"
	StatusSold      = "sold"
	StatusPending   = "pending"
	StatusRented    = "rented"
)

var (
	PropertyTypes    = []string{"house", "apartment", "office", "townhouse", "villa"}
	PropertyStatuses = []string{StatusAvailable, StatusSold, StatusPending, StatusRented}
	// PublicStatuses are the statuses visible on public listings.
	PublicStatuses = []string{StatusAvailable, StatusRented}
)

func ValidPropertyType(t string) bool { return contains(PropertyTypes, t) }

func ValidPropertyStatus(s string) bool { return contains(PropertyStatuses, s) }

func PublicStatus(s string) bool { return contains(PublicStatuses, s) }

type Location struct {
	Address string `bson:"address" json:"address" validate:"required"`
	City    string `bson:"city" json:"city" validate:"required"`
	State   string `bson:"state" json:"state" validate:"required"`
	ZipCode string `bson:"zipCode" json:"zipCode" validate:"required"`
}

type Features struct {
	Bedrooms  int     `bson:"bedrooms" json:"bedrooms" validate:"gte=0"`
	Bathrooms int     `bson:"bathrooms" json:"bathrooms" validate:"gte=0"`
	Area      float64 `bson:"area" json:"area" validate:"gte=0"`
	YearBuilt int     `bson:"yearBuilt,omitempty" json:"yearBuilt,omitempty"`
}

type Amenities struct {
	Parking         bool `bson:"parking" json:"parking"`
	Furnished       bool `bson:"furnished" json:"furnished"`
	AirConditioning bool `bson:"airConditioning" json:"airConditioning"`
	Barbeque        bool `bson:"barbeque" json:"barbeque"`
	Dryer           bool `bson:"dryer" json:"dryer"`
	Gym             bool `bson:"gym" json:"gym"`
	Lawn            bool `bson:"lawn" json:"lawn"`
	Microwave       bool `bson:"microwave" json:"microwave"`
	OutdoorShower   bool `bson:"outdoorShower" json:"outdoorShower"`
	Refrigerator    bool `bson:"refrigerator" json:"refrigerator"`
	SwimmingPool    bool `bson:"swimmingPool" json:"swimmingPool"`
	TvCable         bool `bson:"tvCable" json:"tvCable"`
	Washer          bool `bson:"washer" json:"washer"`
	Wifi            bool `bson:"wifi" json:"wifi"`
	Garage          bool `bson:"garage" json:"garage"`
}

// AmenityKeys lists the bson keys accepted by the amenities search filter.
var AmenityKeys = []string{
	"parking", "furnished", "airConditioning", "barbeque", "dryer", "gym", "lawn", "microwave",
	"outdoorShower", "refrigerator", "swimmingPool", "tvCable", "washer", "wifi", "garage",
}

// Property represents a listing document in the MongoDB database
type Property struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Title        string             `bson:"title" json:"title"`
	Description  string             `bson:"description" json:"description"`
	Price        float64            `bson:"price" json:"price"`
	IsFeatured   bool               `bson:"isFeatured" json:"isFeatured"`
	Location     Location           `bson:"location" json:"location"`
	PropertyType string             `bson:"propertyType" json:"propertyType"`
	Status       string             `bson:"status" json:"status"`
	Features     Features           `bson:"features" json:"features"`
	Amenities    Amenities          `bson:"amenities" json:"amenities"`
	Images       []string           `bson:"images" json:"images"`
	Agent        primitive.ObjectID `bson:"agent" json:"agent"`
	IsActive     bool               `bson:"isActive" json:"isActive"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// PropertyListing is a property with its owning agent joined in.
type PropertyListing struct {
	Property `bson:",inline"`
	AgentRef *AgentSummary `bson:"agentInfo,omitempty" json:"agent,omitempty"`
	Beds     int           `bson:"-" json:"beds"`
	Baths    int           `bson:"-" json:"baths"`
	Area     float64       `bson:"-" json:"area"`
}

// Flatten copies the feature counts the listing cards read directly.
func (l *PropertyListing) Flatten() {
	l.Beds = l.Features.Bedrooms
	l.Baths = l.Features.Bathrooms
	l.Area = l.Features.Area
}

// PropertyQuery describes a listing filter. Zero values are ignored.
type PropertyQuery struct {
	Agent        *primitive.ObjectID
	ActiveOnly   bool
	Statuses     []string
	PropertyType string
	City         string
	Keyword      string
	MinPrice     *float64
	MaxPrice     *float64
	MinBedrooms  int
	MinBathrooms int
	MinYearBuilt int
	MinArea      float64
	Amenities    []string
	IDs          []primitive.ObjectID
	Skip         int64
	Limit        int64
}

type TypeCount struct {
	Type  string `bson:"_id" json:"type"`
	Count int64  `bson:"count" json:"count"`
}

type CityCount struct {
	City  string `bson:"_id" json:"city"`
	Count int64  `bson:"count" json:"count"`
}

type PropertyStats struct {
	Total     int64       `json:"total"`
	Active    int64       `json:"active"`
	Inactive  int64       `json:"inactive"`
	Available int64       `json:"available"`
	Sold      int64       `json:"sold"`
	Pending   int64       `json:"pending"`
	Rented    int64       `json:"rented"`
	Featured  int64       `json:"featured"`
	ByType    []TypeCount `json:"byType"`
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
