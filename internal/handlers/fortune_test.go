package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	domain "github.com/hanko-field/fortune/internal/domain"
	"github.com/hanko-field/fortune/internal/services"
	"github.com/hanko-field/fortune/internal/sixstar"
)

const testDataset = "year,month,day,destinyNumber,star,polarity,zodiac,element\n" +
	"2000,9,22,17,木星,-,辰,木\n"

func newTestRouter(t *testing.T) chi.Router {
	t.Helper()
	ds, err := sixstar.NewDataset(sixstar.SourceFunc(func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(strings.NewReader(testDataset)), nil
	}))
	require.NoError(t, err)

	fortune := services.NewFortuneService(services.FortuneServiceDeps{SixStar: sixstar.NewResolver(ds)})
	h := NewFortuneHandlers(fortune)
	return NewRouter(WithFortuneRoutes(h.Routes), WithInternalRoutes(h.InternalRoutes))
}

func serve(router http.Handler, method, target, body string) *httptest.ResponseRecorder {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func decodeBody(t *testing.T, rr *httptest.ResponseRecorder, dst any) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), dst), rr.Body.String())
}

func TestFortuneHandlers_NameStrokes(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, http.MethodPost, "/api/v1/name-strokes", `{"text":"ABC"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp nameStrokesResponse
	decodeBody(t, rr, &resp)
	require.Equal(t, 3, resp.Strokes)
	require.Len(t, resp.Breakdown, 3)
	require.False(t, resp.Breakdown[0].Known)
}

func TestFortuneHandlers_NameStrokesEmptyText(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodPost, "/api/v1/name-strokes", `{"text":""}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var resp nameStrokesResponse
	decodeBody(t, rr, &resp)
	require.Zero(t, resp.Strokes)
	require.NotNil(t, resp.Breakdown)
}

func TestFortuneHandlers_NameStrokesValidation(t *testing.T) {
	router := newTestRouter(t)

	tests := []struct {
		name   string
		body   string
		status int
		code   string
	}{
		{name: "empty body", body: "", status: http.StatusBadRequest, code: "invalid_request"},
		{name: "malformed", body: `{"text":`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "unknown field", body: `{"name":"山田"}`, status: http.StatusBadRequest, code: "invalid_request"},
		{name: "too long", body: `{"text":"` + strings.Repeat("山", maxNameRunes+1) + `"}`, status: http.StatusBadRequest, code: "invalid_name"},
		{name: "oversized", body: `{"text":"` + strings.Repeat("a", maxRequestBodySize) + `"}`, status: http.StatusRequestEntityTooLarge, code: "payload_too_large"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rr := serve(router, http.MethodPost, "/api/v1/name-strokes", tc.body)
			require.Equal(t, tc.status, rr.Code)

			var body map[string]any
			decodeBody(t, rr, &body)
			require.Equal(t, tc.code, body["error"])
		})
	}
}

func TestFortuneHandlers_FiveGrades(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodPost, "/api/v1/five-grades", `{"surname":"山田","givenName":"太郎"}`)
	require.Equal(t, http.StatusOK, rr.Code)

	var result domain.FiveGradeResult
	decodeBody(t, rr, &result)
	require.Equal(t, 8, result.SurnameSum)
	require.Equal(t, 13, result.GivenNameSum)
	require.Equal(t, 9, result.Heaven)
	require.Equal(t, 21, result.OuterRelation)
	require.Len(t, result.Categories, 5)
}

func TestFortuneHandlers_SixStar(t *testing.T) {
	router := newTestRouter(t)

	t.Run("dataset", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/six-star?date=2000-09-22", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var result domain.SixStarResult
		decodeBody(t, rr, &result)
		require.Equal(t, domain.SixStarSourceDataset, result.Source)
		require.Equal(t, "木星人-", result.StarType)
		require.Equal(t, 1.0, result.Confidence)
	})

	t.Run("formula", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/six-star?date=1972-06-14", "")
		require.Equal(t, http.StatusOK, rr.Code)

		var result domain.SixStarResult
		decodeBody(t, rr, &result)
		require.Equal(t, domain.SixStarSourceFormula, result.Source)
		require.Equal(t, "土星人+", result.StarType)
		require.Equal(t, 0.3, result.Confidence)
	})

	t.Run("invalid date", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/six-star?date=2023-02-30", "")
		require.Equal(t, http.StatusBadRequest, rr.Code)

		var body map[string]any
		decodeBody(t, rr, &body)
		require.Equal(t, "invalid_date", body["error"])
	})

	t.Run("missing date", func(t *testing.T) {
		rr := serve(router, http.MethodGet, "/api/v1/six-star", "")
		require.Equal(t, http.StatusBadRequest, rr.Code)
	})
}

func TestFortuneHandlers_Compare(t *testing.T) {
	rr := serve(newTestRouter(t), http.MethodGet, "/api/v1/internal/six-star/compare?date=2000-09-22", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var comparison domain.SixStarComparison
	decodeBody(t, rr, &comparison)
	require.False(t, comparison.Match)
	require.NotNil(t, comparison.Dataset)
	require.Contains(t, comparison.Differences, "star: dataset=木星 formula=水星")
}

func TestFortuneHandlers_CompareRange(t *testing.T) {
	router := newTestRouter(t)

	rr := serve(router, http.MethodGet, "/api/v1/internal/six-star/compare-range?from=2000-09-21&to=2000-09-23", "")
	require.Equal(t, http.StatusOK, rr.Code)

	var resp compareRangeResponse
	decodeBody(t, rr, &resp)
	require.Equal(t, 3, resp.Days)
	require.Equal(t, 1, resp.Mismatches)
	require.Equal(t, 2, resp.Missing)

	rr = serve(router, http.MethodGet, "/api/v1/internal/six-star/compare-range?from=2000-01-01&to=2002-01-01", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)

	rr = serve(router, http.MethodGet, "/api/v1/internal/six-star/compare-range?from=2000-02-01&to=2000-01-01", "")
	require.Equal(t, http.StatusBadRequest, rr.Code)
}
