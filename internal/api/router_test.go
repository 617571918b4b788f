package api

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMethodMux(t *testing.T) {
	handlers := map[string]http.Handler{
		http.MethodGet: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("list"))
		}),
		http.MethodPost: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusAccepted)
			_, _ = w.Write([]byte("submitted"))
		}),
	}

	mux := methodMux(handlers)

	tests := []struct {
		name         string
		method       string
		expectStatus int
		expectBody   string
		expectAllow  string
	}{
		{name: "GET dispatched", method: http.MethodGet, expectStatus: http.StatusOK, expectBody: "list"},
		{name: "POST dispatched", method: http.MethodPost, expectStatus: http.StatusAccepted, expectBody: "submitted"},
		{name: "PUT rejected", method: http.MethodPut, expectStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
		{name: "DELETE rejected", method: http.MethodDelete, expectStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
		{name: "OPTIONS rejected", method: http.MethodOptions, expectStatus: http.StatusMethodNotAllowed, expectAllow: "GET, POST"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, "/api/v1/predictions", nil)
			w := httptest.NewRecorder()

			mux.ServeHTTP(w, req)

			if w.Code != tt.expectStatus {
				t.Errorf("expected status %d, got %d", tt.expectStatus, w.Code)
			}
			if tt.expectBody != "" && w.Body.String() != tt.expectBody {
				t.Errorf("expected body %q, got %q", tt.expectBody, w.Body.String())
			}
			if tt.expectAllow != "" && w.Header().Get("Allow") != tt.expectAllow {
				t.Errorf("expected Allow header %q, got %q", tt.expectAllow, w.Header().Get("Allow"))
			}
		})
	}
}

func TestAllowedMethodsSorted(t *testing.T) {
	noop := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	tests := []struct {
		name     string
		handlers map[string]http.Handler
		expected string
	}{
		{
			name:     "single method",
			handlers: map[string]http.Handler{http.MethodGet: noop},
			expected: "GET",
		},
		{
			name: "two methods sorted",
			handlers: map[string]http.Handler{
				http.MethodPost: noop,
				http.MethodGet:  noop,
			},
			expected: "GET, POST",
		},
		{
			name: "multiple methods sorted",
			handlers: map[string]http.Handler{
				http.MethodPut:    noop,
				http.MethodGet:    noop,
				http.MethodDelete: noop,
				http.MethodPost:   noop,
			},
			expected: "DELETE, GET, POST, PUT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := allowedMethods(tt.handlers); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestMethodMuxEmptyHandlers(t *testing.T) {
	mux := methodMux(map[string]http.Handler{})

	req := httptest.NewRequest(http.MethodGet, "/api/v1/predictions", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	if w.Code != http.StatusMethodNotAllowed {
		t.Errorf("expected status %d for empty handlers, got %d", http.StatusMethodNotAllowed, w.Code)
	}
	if allow := w.Header().Get("Allow"); allow != "" {
		t.Errorf("expected empty Allow header, got %q", allow)
	}
}
