package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/fortune/internal/domain"
	"github.com/hanko-field/fortune/internal/services"
)

type routerStubSystemService struct {
	report services.SystemHealthReport
	err    error
}

func (s *routerStubSystemService) HealthReport(context.Context) (services.SystemHealthReport, error) {
	return s.report, s.err
}

func TestNewRouter_DefaultMounts(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	healthHandlers := NewHealthHandlers(
		WithHealthSystemService(&routerStubSystemService{
			report: services.SystemHealthReport{
				Status:      domain.HealthStatusOK,
				GeneratedAt: now,
				Checks: map[string]domain.SystemHealthCheck{
					"destiny_dataset": {Status: domain.HealthStatusOK},
				},
			},
		}),
		WithHealthClock(func() time.Time { return now }),
	)
	router := NewRouter(WithHealthHandlers(healthHandlers))

	t.Run("healthz", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/healthz", "")
		require.Equal(t, http.StatusOK, rr.Code)
		require.Equal(t, "application/json; charset=utf-8", rr.Header().Get("Content-Type"))
	})

	t.Run("readyz", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/readyz", "")
		require.Equal(t, http.StatusOK, rr.Code)
	})

	t.Run("internal group not implemented", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/internal/six-star/compare", "")
		require.Equal(t, http.StatusNotImplemented, rr.Code)
	})

	t.Run("unknown route", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/nope", "")
		require.Equal(t, http.StatusNotFound, rr.Code)

		var body map[string]any
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
		require.Equal(t, "not_found", body["error"])
		require.NotEmpty(t, body["request_id"])
	})
}

func TestNewRouter_MethodNotAllowed(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/api/v1/five-grades", "")
	require.Equal(t, http.StatusMethodNotAllowed, rr.Code)
}

func TestNewRouter_InternalMiddlewares(t *testing.T) {
	blocked := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusForbidden)
		})
	}
	router := NewRouter(WithInternalMiddlewares(blocked))

	rr := serve(router, http.MethodGet, "/api/v1/internal/anything", "")
	require.Equal(t, http.StatusForbidden, rr.Code)

	rr = serve(router, http.MethodGet, "/healthz", "")
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthHandlers_ReadyzErrorStatus(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&routerStubSystemService{
		report: services.SystemHealthReport{Status: domain.HealthStatusError},
	}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthHandlers_ReadyzDegradedStillReady(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&routerStubSystemService{
		report: services.SystemHealthReport{Status: domain.HealthStatusDegraded},
	}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rr.Code)
}

func TestHealthHandlers_ReadyzServiceError(t *testing.T) {
	h := NewHealthHandlers(WithHealthSystemService(&routerStubSystemService{err: context.DeadlineExceeded}))
	rr := httptest.NewRecorder()
	h.Readyz(rr, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealthHandlers_HealthzReportsBuild(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	h := NewHealthHandlers(
		WithHealthBuildInfo(services.BuildInfo{Version: "1.0.0", CommitSHA: "abc", StartedAt: start}),
		WithHealthClock(func() time.Time { return start.Add(90 * time.Second) }),
	)
	rr := httptest.NewRecorder()
	h.Healthz(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	var resp healthzResponse
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	require.Equal(t, "1.0.0", resp.Version)
	require.Equal(t, "1m30s", resp.Uptime)
}
