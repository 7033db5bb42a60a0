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

type MessageService struct {
	collection *mongo.Collection
	log        *zap.SugaredLogger
}

func NewMessageService(database *mongo.Database, log *zap.SugaredLogger) *MessageService {
	return &MessageService{collection: database.Collection(db.Messages), log: log}
}

func (s *MessageService) Create(ctx context.Context, m *models.Message) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	now := time.Now()
	m.ID = primitive.NewObjectID()
	m.CreatedAt = now
	m.UpdatedAt = now
	m.IsActive = true
	if _, err := s.collection.InsertOne(ctx, m); err != nil {
		s.log.Errorf("Failed to create message on tour %s: %v", m.Tour.Hex(), err)
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// ByTour returns a tour's messages oldest first.
func (s *MessageService) ByTour(ctx context.Context, tourID primitive.ObjectID) ([]models.Message, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}})
	cur, err := s.collection.Find(ctx, bson.M{"tour": tourID, "isActive": true}, opts)
	if err != nil {
		s.log.Errorf("Failed to fetch messages for tour %s: %v", tourID.Hex(), err)
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	defer cur.Close(ctx)

	messages := []models.Message{}
	if err := cur.All(ctx, &messages); err != nil {
		return nil, fmt.Errorf("failed to decode messages: %w", err)
	}
	return messages, nil
}

// Counts returns the number of messages on a tour and how many user messages
// the agent has not read.
func (s *MessageService) Counts(ctx context.Context, tourID primitive.ObjectID) (total, unread int64, err error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	base := bson.M{"tour": tourID, "isActive": true}
	if total, err = s.collection.CountDocuments(ctx, base); err != nil {
		return 0, 0, fmt.Errorf("failed to count messages: %w", err)
	}
	unreadFilter := bson.M{"tour": tourID, "isActive": true, "sender": models.SenderUser, "isRead": false}
	if unread, err = s.collection.CountDocuments(ctx, unreadFilter); err != nil {
		return 0, 0, fmt.Errorf("failed to count unread messages: %w", err)
	}
	return total, unread, nil
}

// MarkRead flags every unread user message on the tour as read in one update.
func (s *MessageService) MarkRead(ctx context.Context, tourID primitive.ObjectID) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	filter := bson.M{"tour": tourID, "sender": models.SenderUser, "isRead": false}
	res, err := s.collection.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"isRead": true, "updatedAt": time.Now()}})
	if err != nil {
		s.log.Errorf("Failed to mark messages read on tour %s: %v", tourID.Hex(), err)
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return res.ModifiedCount, nil
}
