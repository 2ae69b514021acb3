package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/aristath/reckon/internal/database"
	"github.com/aristath/reckon/internal/domain"
	"github.com/aristath/reckon/internal/modules/ledger"
	"github.com/aristath/reckon/internal/modules/snapshots"
)

// stubBroker returns one fixed position row
type stubBroker struct {
	err error
}

func (b *stubBroker) Positions() ([]ledger.Snapshot, error) {
	if b.err != nil {
		return nil, b.err
	}
	return []ledger.Snapshot{
		{
			AsOfDate:   "2024-06-14",
			Symbol:     "RELIANCE",
			Exchange:   "NSE",
			Product:    "CNC",
			CapturedAt: time.Date(2024, 6, 14, 15, 30, 0, 0, time.UTC),
			Fields:     ledger.Fields{"day_buy_quantity": 10, "day_buy_average_price": 2500},
		},
	}, nil
}

func (b *stubBroker) IsConnected() bool { return true }

func (b *stubBroker) HealthCheck() (*domain.BrokerHealthResult, error) {
	return &domain.BrokerHealthResult{Connected: true}, nil
}

func (b *stubBroker) SetCredentials(apiKey, accessToken string) {}

// setupTestHandler creates a handler backed by an in-memory database
func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	ledgerDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledgerDB.Close() })

	ddl, ok := database.Schema("ledger")
	require.True(t, ok)
	_, err = ledgerDB.Exec(ddl)
	require.NoError(t, err)

	repo := snapshots.NewRepository(ledgerDB, logger)
	service := snapshots.NewService(repo, &stubBroker{}, nil, snapshots.Defaults{StartingCash: 100000}, logger)
	return NewHandler(service, logger)
}

func setupTestRouter(t *testing.T) *chi.Mux {
	t.Helper()
	handler := setupTestHandler(t)
	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})
	return router
}

func TestHandleListSnapshots_Empty(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/snapshots", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var rows []snapshots.StoredSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	assert.Empty(t, rows)
}

func TestHandleIngestThenList(t *testing.T) {
	router := setupTestRouter(t)

	body := `[
		{"as_of_date": "2024-06-14", "symbol": "RELIANCE", "exchange": "NSE", "product": "CNC",
		 "day_buy_quantity": 10, "day_buy_average_price": 2500, "last_price": null},
		{"as_of_date": "2024-06-14", "symbol": "INFY", "quantity": 5, "last_price": 1400}
	]`

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", strings.NewReader(body))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code)
	var run snapshots.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, snapshots.SourceImport, run.Source)
	assert.Equal(t, snapshots.SyncStatusOK, run.Status)
	assert.Equal(t, 2, run.RowCount)

	req = httptest.NewRequest(http.MethodGet, "/api/snapshots?symbol=RELIANCE", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var rows []snapshots.StoredSnapshot
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
	require.Len(t, rows, 1)
	assert.Equal(t, "RELIANCE", rows[0].Symbol)
	assert.Equal(t, float64(10), rows[0].Fields["day_buy_quantity"])
	_, hasLast := rows[0].Fields["last_price"]
	assert.False(t, hasLast, "null field must not be stored")
}

func TestHandleIngest_InvalidBody(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", strings.NewReader("not json"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleIngest_EmptyArray(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots", strings.NewReader("[]"))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleSync_NoBroker(t *testing.T) {
	logger := zerolog.New(nil).Level(zerolog.Disabled)

	ledgerDB, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { ledgerDB.Close() })

	ddl, ok := database.Schema("ledger")
	require.True(t, ok)
	_, err = ledgerDB.Exec(ddl)
	require.NoError(t, err)

	repo := snapshots.NewRepository(ledgerDB, logger)
	service := snapshots.NewService(repo, nil, nil, snapshots.Defaults{}, logger)
	handler := NewHandler(service, logger)

	router := chi.NewRouter()
	router.Route("/api", func(r chi.Router) {
		handler.RegisterRoutes(r)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestHandleSyncThenRuns(t *testing.T) {
	router := setupTestRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/snapshots/sync", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var run snapshots.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &run))
	assert.Equal(t, snapshots.SourceBroker, run.Source)
	assert.Equal(t, 1, run.RowCount)

	req = httptest.NewRequest(http.MethodGet, "/api/snapshots/runs", nil)
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var runs []snapshots.SyncRun
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &runs))
	require.Len(t, runs, 1)
	assert.Equal(t, snapshots.SyncStatusOK, runs[0].Status)
}
