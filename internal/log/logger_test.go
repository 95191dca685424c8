package log

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBufferLogger(buf *bytes.Buffer, component string) *Logger {
	return New(Config{
		Component: component,
		Handler:   slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}),
	})
}

func records(t *testing.T, buf *bytes.Buffer) []map[string]any {
	t.Helper()
	var out []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		if line == "" {
			continue
		}
		var rec map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &rec))
		out = append(out, rec)
	}
	return out
}

func TestLogger_TagsComponentOnce(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentApp).WithComponent(ComponentAggregator)

	logger.Info("Aggregation finished", FieldSource, "participants")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, ComponentAggregator, recs[0][FieldComponent])
	assert.Equal(t, "participants", recs[0][FieldSource])
	assert.Equal(t, 1, strings.Count(buf.String(), `"component"`))
}

func TestLogger_WithKeepsComponent(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentWorker).With(FieldEventID, 7)

	logger.WarnContext(context.Background(), "Sweep failed")

	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, ComponentWorker, recs[0][FieldComponent])
	assert.Equal(t, float64(7), recs[0][FieldEventID])
	assert.Equal(t, ComponentWorker, logger.Component())
}

func TestParseLevel(t *testing.T) {
	tests := map[string]slog.Level{
		"debug":   slog.LevelDebug,
		"":        slog.LevelInfo,
		"INFO":    slog.LevelInfo,
		"warning": slog.LevelWarn,
		" error ": slog.LevelError,
	}
	for in, want := range tests {
		got, err := ParseLevel(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseLevel("trace")
	assert.Error(t, err)
}

func TestLogFields(t *testing.T) {
	fields := NewFields().
		WithComponent(ComponentReconciler).
		WithOperation(OpSnapshot).
		WithScope(1, 10).
		WithRole("event_admin").
		WithError(errors.New("boom")).
		WithErrorType(ErrorTypeDataAccess)

	assert.Equal(t, int64(1), fields[FieldEventID])
	assert.Equal(t, int64(10), fields[FieldInstitutionID])
	assert.Equal(t, "boom", fields[FieldError])
	assert.Len(t, fields.ToSlice(), len(fields)*2)

	assert.NotContains(t, NewFields().WithError(nil), FieldError)
}

func TestMiddleware_FromContext(t *testing.T) {
	var buf bytes.Buffer
	logger := newBufferLogger(&buf, ComponentHTTP)

	var got *Logger
	handler := Middleware(logger)(RequestIDMiddleware(func(*http.Request) string { return "req-1" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got = FromContext(r.Context())
			got.Info("inside handler")
		})))

	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))

	require.NotNil(t, got)
	recs := records(t, &buf)
	require.Len(t, recs, 1)
	assert.Equal(t, "req-1", recs[0][FieldRequestID])

	assert.Equal(t, "unknown", FromContext(context.Background()).Component())
}

func TestStructuredLogger_LevelFollowsStatus(t *testing.T) {
	var buf bytes.Buffer
	sl := NewStructuredLogger(newBufferLogger(&buf, ComponentApp))
	req := httptest.NewRequest(http.MethodGet, "/api/events/1/report", nil)

	sl.LogHTTPEnd(context.Background(), req, http.StatusOK, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), req, http.StatusNotFound, 3, "10.0.0.1")
	sl.LogHTTPEnd(context.Background(), req, http.StatusServiceUnavailable, 3, "10.0.0.1")

	recs := records(t, &buf)
	require.Len(t, recs, 3)
	assert.Equal(t, "INFO", recs[0]["level"])
	assert.Equal(t, "WARN", recs[1]["level"])
	assert.Equal(t, "ERROR", recs[2]["level"])
	assert.Equal(t, ComponentHTTP, recs[2][FieldComponent])
	assert.Equal(t, float64(http.StatusServiceUnavailable), recs[2][FieldStatusCode])
	assert.Equal(t, false, recs[2][FieldSuccess])
}
