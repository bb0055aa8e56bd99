package cycles

import (
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

func newTestRouter(t *testing.T) (chi.Router, *CycleRepository, func()) {
	t.Helper()
	db, cleanup := setupTestDB(t)

	repo := NewCycleRepository(db.Conn(), zerolog.Nop())
	service := NewService(repo, NewAnalyzer(repo, zerolog.Nop()), zerolog.Nop())
	handlers := NewHandlers(service, zerolog.Nop())

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handlers.RegisterRoutes(r)
	})
	return router, repo, cleanup
}

func get(router chi.Router, path string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func TestHandleGetHistory(t *testing.T) {
	router, repo, cleanup := newTestRouter(t)
	defer cleanup()

	rec := get(router, "/api/cycles/history")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = get(router, "/api/cycles/history?user_id=user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, repo.Append(testCycleRecord("user-1", 1)))
	require.NoError(t, repo.Append(testCycleRecord("user-1", 2)))

	rec = get(router, "/api/cycles/history?user_id=user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var history []domain.CycleRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &history))
	require.Len(t, history, 2)
	assert.Equal(t, int64(1), history[0].CycleNumber)
}

func TestHandleGetCorrelations(t *testing.T) {
	router, repo, cleanup := newTestRouter(t)
	defer cleanup()

	rec := get(router, "/api/cycles/correlations")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	require.NoError(t, repo.Append(testCycleRecord("user-1", 1)))
	require.NoError(t, repo.Append(testCycleRecord("user-1", 2)))

	rec = get(router, "/api/cycles/correlations?user_id=user-1")
	require.Equal(t, http.StatusOK, rec.Code)

	var result CorrelationResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, 2, result.CycleCount)
	assert.Equal(t, []string{"momentum"}, result.Factors)
	require.Len(t, result.Matrix, 1)
	assert.Equal(t, 1.0, result.Matrix[0][0])
}
