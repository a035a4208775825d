package repository

import (
	"context"
	"testing"
	"time"

	"github.com/hilthontt/parley/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func TestChatAuditLogRepository(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))

	mt.Run("log inserts document", func(mt *mtest.T) {
		repo := NewChatAuditLogRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateSuccessResponse())

		event := domain.NewChatEvent(domain.EventMemberJoined, "r1", "c1", nil)
		require.NoError(mt, repo.Log(context.Background(), domain.NewAuditLog(event)))
	})

	mt.Run("get by room decodes documents", func(mt *mtest.T) {
		repo := NewChatAuditLogRepository(mt.DB)
		ts := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		ns := mt.Coll.Database().Name() + ".chat_audit_logs"

		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			bson.D{
				{Key: "_id", Value: "a1"},
				{Key: "room_id", Value: "r1"},
				{Key: "event_type", Value: "message_sent"},
				{Key: "timestamp", Value: ts},
			},
		))

		logs, err := repo.GetByRoomID(context.Background(), "r1", 10)
		require.NoError(mt, err)
		require.Len(mt, logs, 1)
		assert.Equal(mt, "a1", logs[0].ID)
		assert.Equal(mt, domain.EventMessageSent, logs[0].EventType)
		assert.True(mt, ts.Equal(logs[0].Timestamp))
	})

	mt.Run("insert error surfaces", func(mt *mtest.T) {
		repo := NewChatAuditLogRepository(mt.DB)
		mt.AddMockResponses(mtest.CreateWriteErrorsResponse(mtest.WriteError{
			Index:   0,
			Code:    11000,
			Message: "duplicate key error",
		}))

		event := domain.NewChatEvent(domain.EventMemberLeft, "r1", "c1", nil)
		assert.Error(mt, repo.Log(context.Background(), domain.NewAuditLog(event)))
	})
}
