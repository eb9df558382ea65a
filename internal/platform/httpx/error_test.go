package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/require"

	"github.com/hanko-field/fortune/internal/platform/requestctx"
)

func TestWriteErrorEnvelope(t *testing.T) {
	ctx := requestctx.WithTrace(context.Background(), requestctx.TraceInfo{TraceID: "trace-1"})
	rec := httptest.NewRecorder()

	WriteError(ctx, rec, NewError(CodeInvalidDate, "invalid date 2023-02-30\n", http.StatusBadRequest).
		WithRequestID("req-1").
		WithDetails(map[string]any{"field": "date"}))

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/json; charset=utf-8", rec.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, CodeInvalidDate, body["error"])
	require.Equal(t, "invalid date 2023-02-30", body["message"])
	require.Equal(t, "req-1", body["request_id"])
	require.Equal(t, "trace-1", body["trace_id"])
	require.Equal(t, map[string]any{"field": "date"}, body["details"])
}

func TestWriteJSONKeepsJapaneseReadable(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteJSON(rec, http.StatusOK, map[string]string{"starType": "土星人+"})

	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), "土星人+")
}

func TestSanitizeDoesNotSplitRunes(t *testing.T) {
	value := strings.Repeat("吉", 10)
	got := sanitize(value, 7)
	require.True(t, utf8.ValidString(got))
	require.Equal(t, "吉吉", got)
}
