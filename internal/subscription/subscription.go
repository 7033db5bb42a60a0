// Package subscription holds the featured-listing subscription rules: the
// active-subscription predicate, its renewal period and the daily reminder job.
package subscription

import (
	"time"

	"go.mongodb.org/mongo-driver/bson"

	"github.com/markjakearzadon/realestate-gobackend/internal/models"
)

// NextExpiry is the expiry granted by a successful payment received at now.
func NextExpiry(now time.Time) time.Time {
	return now.AddDate(0, 1, 0)
}

// Active reports whether a subscription is valid at now: the flag is set and
// the expiry lies strictly after now.
//
// ActiveFilter is the same predicate rendered as a MongoDB filter; the two
// must change together.
func Active(hasSubscription bool, expiry *time.Time, now time.Time) bool {
	return hasSubscription && expiry != nil && expiry.After(now)
}

// ActiveFilter renders Active as a match document over a user sub-document.
// prefix is the path of the joined user ("" for the users collection itself,
// "agentInfo." after a $lookup).
func ActiveFilter(prefix string, now time.Time) bson.M {
	return bson.M{
		prefix + "hasSubscription":    true,
		prefix + "subscriptionExpiry": bson.M{"$gt": now},
	}
}

// UserActive applies Active to a user document.
func UserActive(u *models.User, now time.Time) bool {
	if u == nil {
		return false
	}
	return Active(u.HasSubscription, u.SubscriptionExpiry, now)
}
