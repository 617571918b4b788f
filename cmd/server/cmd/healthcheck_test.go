package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func TestCheckHealth(t *testing.T) {
	tests := []struct {
		name           string
		statusCode     int
		responseBody   interface{}
		expectError    bool
		expectedStatus string
	}{
		{
			name:       "healthy server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "healthy",
				Checks: map[string]interface{}{
					"database": map[string]string{"status": "pass"},
				},
			},
			expectedStatus: "healthy",
		},
		{
			name:       "degraded server",
			statusCode: http.StatusOK,
			responseBody: HealthResponse{
				Status: "degraded",
				Checks: map[string]interface{}{
					"database":  map[string]string{"status": "pass"},
					"job_queue": map[string]string{"status": "warn"},
				},
			},
			expectedStatus: "degraded",
		},
		{
			name:         "unhealthy server (503)",
			statusCode:   http.StatusServiceUnavailable,
			responseBody: HealthResponse{Status: "unhealthy"},
			expectError:  true,
		},
		{
			name:         "invalid response",
			statusCode:   http.StatusOK,
			responseBody: "not json",
			expectError:  true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
				if str, ok := tt.responseBody.(string); ok {
					fmt.Fprint(w, str)
				} else {
					_ = json.NewEncoder(w).Encode(tt.responseBody)
				}
			}))
			defer server.Close()

			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()

			health, err := checkHealth(ctx, server.URL+"/health")

			if tt.expectError {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if health.Status != tt.expectedStatus {
				t.Errorf("expected status %q, got %q", tt.expectedStatus, health.Status)
			}
		})
	}
}

func TestCheckHealthUnreachableServer(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	_, err := checkHealth(ctx, "http://127.0.0.1:1/health")
	if err == nil {
		t.Fatal("expected error for unreachable server")
	}
	if healthcheckExitCode(err) != 1 {
		t.Errorf("expected exit code 1, got %d", healthcheckExitCode(err))
	}
}

func TestHealthcheckExitCodes(t *testing.T) {
	if code := healthcheckExitCode(errors.New("connection refused")); code != 1 {
		t.Errorf("expected exit code 1 for transport error, got %d", code)
	}
	if code := healthcheckExitCode(&decodeError{err: errors.New("bad json")}); code != 2 {
		t.Errorf("expected exit code 2 for decode error, got %d", code)
	}
}

func TestHealthcheckCommandFlags(t *testing.T) {
	flags := []string{"timeout", "url"}
	for _, flag := range flags {
		if f := healthcheckCmd.Flags().Lookup(flag); f == nil {
			t.Errorf("expected flag %q to be defined on healthcheck command", flag)
		}
	}
}
