package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/riverqueue/river/rivertype"
)

func riverJobRow(id int64) *rivertype.JobRow {
	return &rivertype.JobRow{ID: id, Kind: "batch_prediction"}
}

func TestInit(t *testing.T) {
	// Test that Init doesn't panic
	Init("v1.0.0", "abc123", "2026-08-30")

	// Verify app_info metric exists
	if testutil.CollectAndCount(AppInfo) == 0 {
		t.Error("AppInfo metric should be registered")
	}
}

func TestHTTPMiddleware(t *testing.T) {
	// Create a test handler
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Wrap with metrics middleware
	wrapped := HTTPMiddleware(handler)

	// Create test request
	req := httptest.NewRequest("GET", "/test", nil)
	rec := httptest.NewRecorder()

	// Execute request
	wrapped.ServeHTTP(rec, req)

	// Verify response
	if rec.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rec.Code)
	}

	// Verify metrics were recorded
	if testutil.CollectAndCount(HTTPRequestsTotal) == 0 {
		t.Error("HTTPRequestsTotal should have recorded at least one request")
	}

	if testutil.CollectAndCount(HTTPRequestDuration) == 0 {
		t.Error("HTTPRequestDuration should have recorded at least one request")
	}
}

func TestHTTPMiddlewareStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
	}{
		{"OK", http.StatusOK},
		{"Not Found", http.StatusNotFound},
		{"Internal Server Error", http.StatusInternalServerError},
		{"Payload Too Large", http.StatusRequestEntityTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			wrapped := HTTPMiddleware(handler)
			req := httptest.NewRequest("GET", "/test", nil)
			rec := httptest.NewRecorder()

			wrapped.ServeHTTP(rec, req)

			if rec.Code != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, rec.Code)
			}
		})
	}
}

func TestDBCollector(t *testing.T) {
	// Create collector with nil pool (should not panic)
	collector := NewDBCollector(nil)

	// Collect should not panic with nil pool
	collector.collect()

	// Stop should not panic
	collector.Stop()
}

func TestRecordQuery(t *testing.T) {
	// Test successful query
	start := time.Now()
	RecordQuery("test_select", start, nil)

	// Verify metric was recorded
	if testutil.CollectAndCount(DBQueryDuration) == 0 {
		t.Error("DBQueryDuration should have recorded at least one query")
	}

	// Test failed query
	start = time.Now()
	RecordQuery("test_failed", start, context.Canceled)

	// Verify error was recorded
	if testutil.CollectAndCount(DBErrors) == 0 {
		t.Error("DBErrors should have recorded at least one error")
	}

	// No rows is a result, not an error
	before := testutil.CollectAndCount(DBErrors)
	RecordQuery("test_no_rows", time.Now(), pgx.ErrNoRows)
	if testutil.CollectAndCount(DBErrors) != before {
		t.Error("pgx.ErrNoRows should not be counted as a database error")
	}
}

func TestRiverMetricsHookTracksDuration(t *testing.T) {
	hook := NewRiverMetricsHook()

	if len(hook.startTime) != 0 {
		t.Fatalf("new hook should track no jobs, got %d", len(hook.startTime))
	}

	hook.mu.Lock()
	hook.startTime[42] = time.Now().Add(-time.Second)
	hook.mu.Unlock()

	if err := hook.WorkEnd(context.Background(), riverJobRow(42), nil); err != nil {
		t.Fatalf("WorkEnd() error = %v", err)
	}

	if len(hook.startTime) != 0 {
		t.Error("WorkEnd should release the tracked start time")
	}
}

func TestResponseWriterStatusCode(t *testing.T) {
	// Test that default status code is 200 when WriteHeader is not called
	rec := httptest.NewRecorder()
	rw := &responseWriter{
		ResponseWriter: rec,
		statusCode:     0,
		bytesWritten:   0,
	}

	_, _ = rw.Write([]byte("test"))

	if rw.statusCode != http.StatusOK {
		t.Errorf("Expected status code 200, got %d", rw.statusCode)
	}
}

func TestResponseWriterBytesWritten(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := &responseWriter{
		ResponseWriter: rec,
		statusCode:     0,
		bytesWritten:   0,
	}

	content := []byte("Hello, World!")
	_, _ = rw.Write(content)

	if rw.bytesWritten != len(content) {
		t.Errorf("Expected %d bytes written, got %d", len(content), rw.bytesWritten)
	}
}
