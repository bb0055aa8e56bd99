package episodes

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/frontieralpha/cvrf/internal/domain"
)

func newTestRouter(t *testing.T) (chi.Router, func()) {
	t.Helper()
	svc, _, cleanup := newTestService(t)
	handlers := NewHandlers(svc, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handlers.RegisterRoutes(r)
	})
	return router, cleanup
}

func postJSON(t *testing.T, router chi.Router, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleStart(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	rec := postJSON(t, router, "/api/episodes/start", StartRequest{UserID: "user-1"})
	require.Equal(t, http.StatusCreated, rec.Code)

	var episode domain.Episode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &episode))
	assert.NotEmpty(t, episode.ID)
	assert.Equal(t, domain.EpisodeStatusActive, episode.Status)

	// Second start for the same user conflicts
	rec = postJSON(t, router, "/api/episodes/start", StartRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleStart_InvalidBody(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodPost, "/api/episodes/start", bytes.NewReader([]byte("{not json")))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleGetActive(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/episodes/active?user_id=user-1", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	postJSON(t, router, "/api/episodes/start", StartRequest{UserID: "user-1"})

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var episode domain.Episode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &episode))
	assert.Equal(t, "user-1", episode.UserID)
}

func TestHandleGetActive_MissingUserID(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	req := httptest.NewRequest(http.MethodGet, "/api/episodes/active", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRecordDecision(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	// No active episode yet
	rec := postJSON(t, router, "/api/episodes/decisions", RecordDecisionRequest{
		UserID:   "user-1",
		Decision: testDecision("", "AAPL"),
	})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	postJSON(t, router, "/api/episodes/start", StartRequest{UserID: "user-1"})

	rec = postJSON(t, router, "/api/episodes/decisions", RecordDecisionRequest{
		UserID:   "user-1",
		Decision: testDecision("", "AAPL"),
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var decision domain.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decision))
	assert.NotEmpty(t, decision.ID)
	assert.Equal(t, "AAPL", decision.Symbol)

	// Invalid decision is rejected before storage
	bad := testDecision("", "AAPL")
	bad.Confidence = 1.5
	rec = postJSON(t, router, "/api/episodes/decisions", RecordDecisionRequest{
		UserID:   "user-1",
		Decision: bad,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleClose(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	postJSON(t, router, "/api/episodes/start", StartRequest{UserID: "user-1"})

	ret := 0.021
	rec := postJSON(t, router, "/api/episodes/close", CloseRequest{
		UserID:  "user-1",
		Metrics: domain.EpisodeMetrics{PortfolioReturn: &ret},
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var result CloseResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	require.NotNil(t, result.Episode)
	assert.Equal(t, domain.EpisodeStatusCompleted, result.Episode.Status)
	assert.Nil(t, result.CycleResult)

	// Closing again is unprocessable
	rec = postJSON(t, router, "/api/episodes/close", CloseRequest{UserID: "user-1"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestHandleGetCompleted(t *testing.T) {
	router, cleanup := newTestRouter(t)
	defer cleanup()

	postJSON(t, router, "/api/episodes/start", StartRequest{UserID: "user-1"})
	postJSON(t, router, "/api/episodes/close", CloseRequest{UserID: "user-1"})

	req := httptest.NewRequest(http.MethodGet, "/api/episodes/completed?user_id=user-1&limit=5", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var episodes []domain.Episode
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &episodes))
	assert.Len(t, episodes, 1)
}
