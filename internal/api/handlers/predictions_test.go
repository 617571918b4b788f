package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

type fakeCompanyRepo struct {
	bySymbol   map[string]*companies.Company
	listResult companies.ListResult
	listErr    error
	nextID     int64
}

func (f *fakeCompanyRepo) List(ctx context.Context, filters companies.Filters, pagination companies.Pagination) (companies.ListResult, error) {
	return f.listResult, f.listErr
}

func (f *fakeCompanyRepo) GetBySymbol(ctx context.Context, symbol string) (*companies.Company, error) {
	if c, ok := f.bySymbol[symbol]; ok {
		return c, nil
	}
	return nil, companies.ErrNotFound
}

func (f *fakeCompanyRepo) Create(ctx context.Context, params companies.ResolveParams) (*companies.Company, error) {
	f.nextID++
	c := &companies.Company{
		ID:        f.nextID,
		ULID:      "01HYX3KQW7ERTV9XNBM2P8QJZF",
		Symbol:    params.Symbol,
		Name:      params.Name,
		MarketCap: params.MarketCap,
		Sector:    params.Sector,
		CreatedAt: time.Now().UTC(),
	}
	if f.bySymbol == nil {
		f.bySymbol = map[string]*companies.Company{}
	}
	f.bySymbol[params.Symbol] = c
	return c, nil
}

type fakePredictionRepo struct {
	latest     *predictions.Prediction
	created    *predictions.CreateParams
	listResult predictions.ListResult
	snapResult predictions.SnapshotListResult
}

func (f *fakePredictionRepo) Create(ctx context.Context, params predictions.CreateParams) (*predictions.Prediction, error) {
	f.created = &params
	return &predictions.Prediction{
		ID:          1,
		ULID:        "01HYX3KQW7ERTV9XNBM2P8QJZG",
		CompanyID:   params.CompanyID,
		RiskLevel:   params.Result.RiskLevel,
		Probability: params.Result.Probability,
		Confidence:  params.Result.Confidence,
		Ratios:      params.Ratios,
		PredictedAt: params.PredictedAt,
	}, nil
}

func (f *fakePredictionRepo) LatestForCompany(ctx context.Context, companyID int64, since time.Time) (*predictions.Prediction, error) {
	if f.latest == nil {
		return nil, predictions.ErrNotFound
	}
	return f.latest, nil
}

func (f *fakePredictionRepo) ListByCompany(ctx context.Context, companyID int64, pagination predictions.Pagination) (predictions.ListResult, error) {
	return f.listResult, nil
}

func (f *fakePredictionRepo) ListSnapshotsByCompany(ctx context.Context, companyID int64, pagination predictions.Pagination) (predictions.SnapshotListResult, error) {
	return f.snapResult, nil
}

func newPredictionsHandler(t *testing.T, companyRepo *fakeCompanyRepo, predictionRepo *fakePredictionRepo) *PredictionsHandler {
	t.Helper()
	model, err := scoring.Load("")
	require.NoError(t, err)
	return NewPredictionsHandler(
		companies.NewService(companyRepo),
		predictions.NewService(predictionRepo, model),
		"test",
	)
}

func TestPredictionCreateScoresNewCompany(t *testing.T) {
	companyRepo := &fakeCompanyRepo{}
	predictionRepo := &fakePredictionRepo{}
	handler := newPredictionsHandler(t, companyRepo, predictionRepo)

	body := `{
		"stock_symbol": "aapl",
		"company_name": "Apple Inc.",
		"profit_margin": 25.3,
		"debt_to_equity_ratio": 1.45
	}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Equal(t, "AAPL", resp.Company.Symbol)
	require.Equal(t, "Apple Inc.", resp.Company.Name)
	require.NotEmpty(t, resp.RiskLevel)
	require.False(t, resp.Reused)
	require.NotNil(t, resp.Ratios.ProfitMargin)
	require.InDelta(t, 25.3, *resp.Ratios.ProfitMargin, 1e-9)
	require.Nil(t, resp.Ratios.CurrentRatio)
	require.NotNil(t, predictionRepo.created)
}

func TestPredictionCreateReusesFreshPrediction(t *testing.T) {
	company := &companies.Company{ID: 7, ULID: "01HYX3KQW7ERTV9XNBM2P8QJZF", Symbol: "AAPL", Name: "Apple Inc."}
	companyRepo := &fakeCompanyRepo{bySymbol: map[string]*companies.Company{"AAPL": company}}
	predictionRepo := &fakePredictionRepo{latest: &predictions.Prediction{
		ID:        42,
		ULID:      "01HYX3KQW7ERTV9XNBM2P8QJZG",
		CompanyID: 7,
		RiskLevel: scoring.RiskLow,
	}}
	handler := newPredictionsHandler(t, companyRepo, predictionRepo)

	body := `{"stock_symbol": "AAPL", "company_name": "Apple Inc."}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var resp predictionResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.True(t, resp.Reused)
	require.Nil(t, predictionRepo.created)
}

func TestPredictionCreateRejectsMissingFields(t *testing.T) {
	handler := newPredictionsHandler(t, &fakeCompanyRepo{}, &fakePredictionRepo{})

	body := `{"stock_symbol": "AAPL"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))

	var resp struct {
		Errors map[string]any `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp.Errors, "company_name")
}

func TestPredictionCreateRejectsMalformedJSON(t *testing.T) {
	handler := newPredictionsHandler(t, &fakeCompanyRepo{}, &fakePredictionRepo{})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictionCreateRejectsNegativeMarketCap(t *testing.T) {
	handler := newPredictionsHandler(t, &fakeCompanyRepo{}, &fakePredictionRepo{})

	body := `{"stock_symbol": "AAPL", "company_name": "Apple Inc.", "market_cap": -5}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/predictions", strings.NewReader(body))
	rec := httptest.NewRecorder()

	handler.Create(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)

	var resp struct {
		Errors map[string]any `json:"errors"`
	}
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Contains(t, resp.Errors, "market_cap")
}
