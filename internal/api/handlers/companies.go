package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/Fairlead-Analytics/riskserver/internal/api/problem"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

type CompaniesHandler struct {
	Companies   *companies.Service
	Predictions *predictions.Service
	Env         string
}

func NewCompaniesHandler(companySvc *companies.Service, predictionSvc *predictions.Service, env string) *CompaniesHandler {
	return &CompaniesHandler{Companies: companySvc, Predictions: predictionSvc, Env: env}
}

type companyPayload struct {
	ID        string    `json:"id"`
	Symbol    string    `json:"symbol"`
	Name      string    `json:"name"`
	MarketCap *float64  `json:"market_cap"`
	Sector    *string   `json:"sector"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type ratiosPayload struct {
	DebtToEquity       *float64 `json:"debt_to_equity_ratio"`
	CurrentRatio       *float64 `json:"current_ratio"`
	QuickRatio         *float64 `json:"quick_ratio"`
	ReturnOnEquity     *float64 `json:"return_on_equity"`
	ReturnOnAssets     *float64 `json:"return_on_assets"`
	ProfitMargin       *float64 `json:"profit_margin"`
	InterestCoverage   *float64 `json:"interest_coverage"`
	FixedAssetTurnover *float64 `json:"fixed_asset_turnover"`
	TotalDebtEBITDA    *float64 `json:"total_debt_ebitda"`
}

type listResponse[T any] struct {
	Items      []T    `json:"items"`
	NextCursor string `json:"next_cursor,omitempty"`
}

func companyToPayload(c *companies.Company) companyPayload {
	return companyPayload{
		ID:        c.ULID,
		Symbol:    c.Symbol,
		Name:      c.Name,
		MarketCap: c.MarketCap,
		Sector:    c.Sector,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}

func ratiosToPayload(r scoring.Ratios) ratiosPayload {
	return ratiosPayload{
		DebtToEquity:       r.DebtToEquity,
		CurrentRatio:       r.CurrentRatio,
		QuickRatio:         r.QuickRatio,
		ReturnOnEquity:     r.ReturnOnEquity,
		ReturnOnAssets:     r.ReturnOnAssets,
		ProfitMargin:       r.ProfitMargin,
		InterestCoverage:   r.InterestCoverage,
		FixedAssetTurnover: r.FixedAssetTurnover,
		TotalDebtEBITDA:    r.TotalDebtEBITDA,
	}
}

func (h *CompaniesHandler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Companies == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", nil, h.Env)
		return
	}

	filters, pagination, err := companies.ParseFilters(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	result, err := h.Companies.List(r.Context(), filters, pagination)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	items := make([]companyPayload, 0, len(result.Companies))
	for i := range result.Companies {
		items = append(items, companyToPayload(&result.Companies[i]))
	}
	writeJSON(w, http.StatusOK, listResponse[companyPayload]{Items: items, NextCursor: result.NextCursor})
}

func (h *CompaniesHandler) Get(w http.ResponseWriter, r *http.Request) {
	company, ok := h.companyFromPath(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, companyToPayload(company))
}

type historyItem struct {
	ID          string        `json:"id"`
	RiskLevel   string        `json:"risk_level"`
	Probability float64       `json:"probability"`
	Confidence  float64       `json:"confidence"`
	Ratios      ratiosPayload `json:"ratios"`
	PredictedAt time.Time     `json:"predicted_at"`
}

// History lists a company's predictions, newest first.
func (h *CompaniesHandler) History(w http.ResponseWriter, r *http.Request) {
	company, ok := h.companyFromPath(w, r)
	if !ok {
		return
	}

	pagination, err := predictions.ParsePagination(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	result, err := h.Predictions.History(r.Context(), company.ID, pagination)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	items := make([]historyItem, 0, len(result.Predictions))
	for _, p := range result.Predictions {
		items = append(items, historyItem{
			ID:          p.ULID,
			RiskLevel:   p.RiskLevel,
			Probability: p.Probability,
			Confidence:  p.Confidence,
			Ratios:      ratiosToPayload(p.Ratios),
			PredictedAt: p.PredictedAt,
		})
	}
	writeJSON(w, http.StatusOK, listResponse[historyItem]{Items: items, NextCursor: result.NextCursor})
}

type snapshotItem struct {
	Ratios    ratiosPayload `json:"ratios"`
	CreatedAt time.Time     `json:"created_at"`
}

// Ratios lists a company's raw ratio snapshots, newest first.
func (h *CompaniesHandler) Ratios(w http.ResponseWriter, r *http.Request) {
	company, ok := h.companyFromPath(w, r)
	if !ok {
		return
	}

	pagination, err := predictions.ParseSnapshotPagination(r.URL.Query())
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}

	result, err := h.Predictions.RatioHistory(r.Context(), company.ID, pagination)
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	items := make([]snapshotItem, 0, len(result.Snapshots))
	for _, s := range result.Snapshots {
		items = append(items, snapshotItem{Ratios: ratiosToPayload(s.Ratios), CreatedAt: s.CreatedAt})
	}
	writeJSON(w, http.StatusOK, listResponse[snapshotItem]{Items: items, NextCursor: result.NextCursor})
}

func (h *CompaniesHandler) companyFromPath(w http.ResponseWriter, r *http.Request) (*companies.Company, bool) {
	if h == nil || h.Companies == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", nil, h.Env)
		return nil, false
	}

	symbol, err := symbolParam(r)
	if err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return nil, false
	}

	company, err := h.Companies.GetBySymbol(r.Context(), symbol)
	if err != nil {
		if errors.Is(err, companies.ErrNotFound) {
			problem.Write(w, r, http.StatusNotFound, problem.TypeNotFound, "Not found", err, h.Env)
			return nil, false
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return nil, false
	}
	return company, true
}
