package notify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

func setupTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})
	return mr, client
}

func TestPublish_Success(t *testing.T) {
	_, client := setupTestRedis(t)
	publisher := NewPublisher(client, "notifications", zap.NewNop())

	ctx := context.Background()
	req := domain.NotificationRequest{
		Type:         domain.NotificationIncidentAssigned,
		EmployeeID:   "EMP-1",
		EmployeeName: "Nurse Park",
		IncidentID:   "INC-1",
		Title:        "New Incident Assigned",
		Message:      "CARDIAC_ARREST incident assigned to you.",
		Data:         map[string]string{"incident_id": "INC-1", "role": "NURSE"},
		Timestamp:    time.Now().Format(time.RFC3339),
	}

	err := publisher.Publish(ctx, req)
	require.NoError(t, err)

	// 验证消息已写入 stream，data 字段可反序列化
	msgs, err := client.XRange(ctx, "notifications", "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 1)

	data, ok := msgs[0].Values["data"].(string)
	require.True(t, ok)

	var decoded domain.NotificationRequest
	require.NoError(t, json.Unmarshal([]byte(data), &decoded))
	assert.Equal(t, domain.NotificationIncidentAssigned, decoded.Type)
	assert.Equal(t, "EMP-1", decoded.EmployeeID)
	assert.Equal(t, "INC-1", decoded.IncidentID)
}

func TestPublish_RedisDown(t *testing.T) {
	mr, client := setupTestRedis(t)
	publisher := NewPublisher(client, "notifications", zap.NewNop())

	mr.Close()

	err := publisher.Publish(context.Background(), domain.NotificationRequest{
		Type:       domain.NotificationIncidentAssigned,
		EmployeeID: "EMP-1",
		IncidentID: "INC-1",
	})

	assert.Error(t, err)
}

func TestMarkIncidentRead_Success(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPatch, r.Method)
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewMarkReadClient(server.URL, 3*time.Second, zap.NewNop())

	err := client.MarkIncidentRead(context.Background(), "INC-1", "EMP-1")

	require.NoError(t, err)
	assert.Equal(t, "/notifications/incident/INC-1/mark-read", gotPath)
	assert.Equal(t, "EMP-1", gotBody["employee_id"])
}

func TestMarkIncidentRead_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewMarkReadClient(server.URL, 3*time.Second, zap.NewNop())

	err := client.MarkIncidentRead(context.Background(), "INC-1", "EMP-1")

	assert.Error(t, err)
}
