package server

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Nzyazin/bankflow/internal/core/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type stubUsecase struct {
	pingErr error
}

func (s *stubUsecase) ListOperations(ctx context.Context, accountNumber string) ([]models.Operation, error) {
	return []models.Operation{}, nil
}

func (s *stubUsecase) ListOperationSummaryFields(ctx context.Context) ([]models.OperationSummary, error) {
	return []models.OperationSummary{}, nil
}

func (s *stubUsecase) Stats(ctx context.Context) (models.StatsSnapshot, error) {
	return models.StatsSnapshot{TotalDeposits: decimal.Zero, TotalWithdrawals: decimal.Zero, TotalLoans: decimal.Zero}, nil
}

func (s *stubUsecase) CreateOperation(ctx context.Context, form models.OperationForm) (*models.Operation, error) {
	return nil, errors.New("not implemented")
}

func (s *stubUsecase) Ping(ctx context.Context) error {
	return s.pingErr
}

func newTestServer(t *testing.T, uc *stubUsecase, log *zap.Logger) *Server {
	t.Helper()
	srv, err := newServer(uc, time.UTC, newRegistry(), log)
	require.NoError(t, err)
	return srv
}

func get(h http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Run("healthy", func(t *testing.T) {
		srv := newTestServer(t, &stubUsecase{}, zap.NewNop())

		rec := get(srv.Handler(), "/healthz")
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "ok", rec.Body.String())
	})

	t.Run("store unreachable", func(t *testing.T) {
		srv := newTestServer(t, &stubUsecase{pingErr: errors.New("connection refused")}, zap.NewNop())

		rec := get(srv.Handler(), "/healthz")
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{}, zap.NewNop())

	require.Equal(t, http.StatusOK, get(srv.Handler(), "/api/v1/stats").Code)

	rec := get(srv.Handler(), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "http_request_duration_seconds")
	assert.Contains(t, body, "go_goroutines")
}

func TestRoutesAreMounted(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{}, zap.NewNop())

	for _, target := range []string{"/", "/actions", "/fragments/stats", "/fragments/operations", "/api/v1/operations", "/api/v1/operations/summary"} {
		rec := get(srv.Handler(), target)
		assert.Equal(t, http.StatusOK, rec.Code, target)
	}
	assert.Equal(t, http.StatusNotFound, get(srv.Handler(), "/unknown").Code)
}

func TestLoggingMiddleware(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	srv := newTestServer(t, &stubUsecase{}, zap.New(core))

	get(srv.Handler(), "/fragments/operations?account=ACC-1")

	entries := logs.FilterMessage("HTTP request").All()
	require.NotEmpty(t, entries)
	fields := entries[0].ContextMap()
	assert.Equal(t, http.MethodGet, fields["method"])
	assert.True(t, strings.HasPrefix(fields["path"].(string), "/fragments/operations"))
}

func TestShutdownWithoutRunning(t *testing.T) {
	srv := newTestServer(t, &stubUsecase{}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	assert.NoError(t, srv.Shutdown(ctx))
}
