package server

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/cvrf/internal/database"
	"github.com/frontieralpha/cvrf/internal/events"
)

func setupTestDB(t *testing.T, name string) (*database.DB, func()) {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "test_"+name+"_*.db")
	require.NoError(t, err)
	tmpPath := tmpFile.Name()
	_ = tmpFile.Close()

	db, err := database.New(database.Config{
		Path:    tmpPath,
		Profile: database.ProfileStandard,
		Name:    name,
	})
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	cleanup := func() {
		_ = db.Close()
		_ = os.Remove(tmpPath)
		_ = os.Remove(tmpPath + "-wal")
		_ = os.Remove(tmpPath + "-shm")
	}

	return db, cleanup
}

func newTestServer(t *testing.T) (*Server, *events.Bus, func()) {
	t.Helper()
	db, cleanup := setupTestDB(t, "episodes")

	bus := events.NewBus()
	srv := New(Config{
		Port:      0,
		DevMode:   true,
		Log:       zerolog.Nop(),
		Databases: map[string]*database.DB{"episodes": db},
		EventBus:  bus,
	})
	return srv, bus, cleanup
}

func TestLivenessEndpoint(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestSystemHealthEndpoint(t *testing.T) {
	srv, _, cleanup := newTestServer(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/system/health", nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var health HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "ok", health.Status)
	require.Contains(t, health.Databases, "episodes")
	assert.True(t, health.Databases["episodes"].Healthy)
}

func TestEventsStream(t *testing.T) {
	srv, bus, cleanup := newTestServer(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events/stream", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	go func() {
		// Give the handler time to subscribe before emitting
		time.Sleep(50 * time.Millisecond)
		bus.Emit(events.CycleCompleted, "beliefs", map[string]interface{}{"user_id": "user-1"})
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	srv.Router().ServeHTTP(rec, req)

	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	body := rec.Body.String()
	assert.Contains(t, body, `"type":"connected"`)
	assert.Contains(t, body, `"type":"cycle_completed"`)
}

func TestEventsStream_TypeFilter(t *testing.T) {
	srv, bus, cleanup := newTestServer(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events/stream?types=belief_updated", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	go func() {
		time.Sleep(50 * time.Millisecond)
		bus.Emit(events.CycleCompleted, "beliefs", nil)
		bus.Emit(events.BeliefUpdated, "beliefs", nil)
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	srv.Router().ServeHTTP(rec, req)

	body := rec.Body.String()
	assert.Contains(t, body, `"type":"belief_updated"`)
	assert.NotContains(t, body, `"type":"cycle_completed"`)
}
