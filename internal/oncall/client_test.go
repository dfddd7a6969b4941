package oncall

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/MrMsnawi/healthguard-ops/internal/domain"
)

func TestCurrentOnCall_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oncall/current", r.URL.Path)
		assert.Equal(t, "NURSE", r.URL.Query().Get("role"))

		staff := []domain.StaffMember{
			{EmployeeID: "EMP-1", Name: "Nurse Park", Role: "NURSE"},
			{EmployeeID: "EMP-2", Name: "Nurse Lee", Role: "NURSE"},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(staff)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	staff, err := client.CurrentOnCall(context.Background(), "NURSE")

	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.Equal(t, "EMP-1", staff[0].EmployeeID)
	assert.Equal(t, "Nurse Park", staff[0].Name)
}

func TestCurrentOnCall_NobodyLoggedIn(t *testing.T) {
	// 值班服务对无人在线返回 404，客户端转为空列表
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		json.NewEncoder(w).Encode(map[string]string{"error": "No one currently logged in for role CARDIOLOGIST"})
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	staff, err := client.CurrentOnCall(context.Background(), "CARDIOLOGIST")

	require.NoError(t, err)
	assert.Empty(t, staff)
}

func TestCurrentOnCall_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	staff, err := client.CurrentOnCall(context.Background(), "NURSE")

	assert.Error(t, err)
	assert.Nil(t, staff)
}

func TestCurrentOnCall_EmptyRole(t *testing.T) {
	client := NewClient("http://localhost:0", time.Second, zap.NewNop())

	_, err := client.CurrentOnCall(context.Background(), "")

	assert.Error(t, err)
	assert.Contains(t, err.Error(), "role is required")
}

func TestCurrentOnCall_Timeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer server.Close()

	client := NewClient(server.URL, 50*time.Millisecond, zap.NewNop())

	_, err := client.CurrentOnCall(context.Background(), "NURSE")

	assert.Error(t, err)
}

func TestAllSchedules_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/oncall/schedules", r.URL.Path)

		staff := []domain.StaffMember{
			{EmployeeID: "EMP-1", Name: "Nurse Park", Role: "NURSE", IsLoggedIn: true},
			{EmployeeID: "EMP-3", Name: "Dr. Webb", Role: "SURGEON", IsLoggedIn: false},
		}
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(staff)
	}))
	defer server.Close()

	client := NewClient(server.URL, 5*time.Second, zap.NewNop())

	staff, err := client.AllSchedules(context.Background())

	require.NoError(t, err)
	require.Len(t, staff, 2)
	assert.True(t, staff[0].IsLoggedIn)
	assert.False(t, staff[1].IsLoggedIn)
}
