package repository

import (
	"context"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/hilthontt/parley/internal/persistence/db"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const auditRetention = 90 * 24 * time.Hour

type chatAuditLogRepository struct {
	db *mongo.Database
}

func NewChatAuditLogRepository(db *mongo.Database) domain.ChatAuditRepository {
	return &chatAuditLogRepository{
		db: db,
	}
}

func (r *chatAuditLogRepository) DeleteOlderThan(ctx context.Context, before time.Time) error {
	collection := r.db.Collection(db.ChatAuditLogsCollection)

	filter := bson.M{
		"timestamp": bson.M{
			"$lt": before,
		},
	}

	_, err := collection.DeleteMany(ctx, filter)
	return err
}

func (r *chatAuditLogRepository) GetByRoomID(ctx context.Context, roomID string, limit int) ([]domain.ChatAuditLog, error) {
	collection := r.db.Collection(db.ChatAuditLogsCollection)

	filter := bson.M{"room_id": roomID}
	opts := options.Find().
		SetSort(bson.D{{Key: "timestamp", Value: -1}}).
		SetLimit(int64(limit))

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []domain.ChatAuditLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

func (r *chatAuditLogRepository) Log(ctx context.Context, log *domain.ChatAuditLog) error {
	collection := r.db.Collection(db.ChatAuditLogsCollection)

	_, err := collection.InsertOne(ctx, log)
	return err
}

func (r *chatAuditLogRepository) EnsureIndexes(ctx context.Context) error {
	collection := r.db.Collection(db.ChatAuditLogsCollection)

	indexes := []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "room_id", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys: bson.D{
				{Key: "event_type", Value: 1},
				{Key: "timestamp", Value: -1},
			},
		},
		{
			Keys:    bson.D{{Key: "timestamp", Value: 1}},
			Options: options.Index().SetExpireAfterSeconds(int32(auditRetention.Seconds())),
		},
	}

	_, err := collection.Indexes().CreateMany(ctx, indexes)
	return err
}
