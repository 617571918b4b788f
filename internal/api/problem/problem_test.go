package problem

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestWrite_DevIncludesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/predictions", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusBadRequest, TypeValidation, "Invalid request", errors.New("boom"), "development")

	if got := res.Result().Header.Get("Content-Type"); got != "application/problem+json" {
		t.Fatalf("expected content type problem+json, got %s", got)
	}

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Type != TypeValidation {
		t.Fatalf("expected type %s, got %s", TypeValidation, body.Type)
	}
	if body.Detail != "boom" {
		t.Fatalf("expected detail boom, got %s", body.Detail)
	}
	if body.Instance != "/api/v1/predictions" {
		t.Fatalf("expected instance /api/v1/predictions, got %s", body.Instance)
	}
}

func TestWrite_ProdSanitizesDetail(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/predictions", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusInternalServerError, TypeServerError, "Server error", errors.New("pq: connection reset"), "production")

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Detail != http.StatusText(http.StatusInternalServerError) {
		t.Fatalf("expected sanitized detail, got %s", body.Detail)
	}
}

func TestWrite_CarriesFieldErrors(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "http://example.com/api/v1/predictions/batches", nil)
	res := httptest.NewRecorder()

	Write(res, req, http.StatusUnprocessableEntity, TypeInvalidDataset, "Invalid dataset", errors.New("missing required columns"), "test",
		WithErrors(map[string]interface{}{"missing_columns": []string{"company_name"}}))

	var body ProblemDetails
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %d", body.Status)
	}
	if _, ok := body.Errors["missing_columns"]; !ok {
		t.Fatalf("expected missing_columns in errors, got %v", body.Errors)
	}
}
