package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/Fairlead-Analytics/riskserver/internal/api/problem"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/companies"
	"github.com/Fairlead-Analytics/riskserver/internal/domain/predictions"
	"github.com/Fairlead-Analytics/riskserver/internal/scoring"
)

var validate = newValidator()

// newValidator reports field names by json tag so validation errors line
// up with the wire payload.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type PredictionsHandler struct {
	Companies   *companies.Service
	Predictions *predictions.Service
	Env         string
}

func NewPredictionsHandler(companySvc *companies.Service, predictionSvc *predictions.Service, env string) *PredictionsHandler {
	return &PredictionsHandler{Companies: companySvc, Predictions: predictionSvc, Env: env}
}

type predictionRequest struct {
	StockSymbol string   `json:"stock_symbol" validate:"required,max=12"`
	CompanyName string   `json:"company_name" validate:"required,max=255"`
	MarketCap   *float64 `json:"market_cap" validate:"omitempty,gte=0"`
	Sector      *string  `json:"sector" validate:"omitempty,max=100"`

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

func (req *predictionRequest) ratios() scoring.Ratios {
	return scoring.Ratios{
		DebtToEquity:       req.DebtToEquity,
		CurrentRatio:       req.CurrentRatio,
		QuickRatio:         req.QuickRatio,
		ReturnOnEquity:     req.ReturnOnEquity,
		ReturnOnAssets:     req.ReturnOnAssets,
		ProfitMargin:       req.ProfitMargin,
		InterestCoverage:   req.InterestCoverage,
		FixedAssetTurnover: req.FixedAssetTurnover,
		TotalDebtEBITDA:    req.TotalDebtEBITDA,
	}
}

type predictionResponse struct {
	ID          string         `json:"id"`
	Company     companyPayload `json:"company"`
	RiskLevel   string         `json:"risk_level"`
	Probability float64        `json:"probability"`
	Confidence  float64        `json:"confidence"`
	Reused      bool           `json:"reused"`
	Ratios      ratiosPayload  `json:"ratios"`
	PredictedAt time.Time      `json:"predicted_at"`
}

// Create scores one company synchronously. The company is resolved by
// symbol (created on first sighting) and a prediction from the last 24
// hours is reused instead of re-running the model.
func (h *PredictionsHandler) Create(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Companies == nil || h.Predictions == nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", nil, h.Env)
		return
	}

	var req predictionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
		return
	}
	if err := validate.Struct(&req); err != nil {
		problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env,
			problem.WithErrors(validationErrors(err)))
		return
	}

	company, err := h.Companies.Resolve(r.Context(), companies.ResolveParams{
		Symbol:    req.StockSymbol,
		Name:      req.CompanyName,
		MarketCap: req.MarketCap,
		Sector:    req.Sector,
	})
	if err != nil {
		if errors.Is(err, companies.ErrMissingSymbol) || errors.Is(err, companies.ErrMissingName) {
			problem.Write(w, r, http.StatusBadRequest, problem.TypeValidation, "Invalid request", err, h.Env)
			return
		}
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	outcome, err := h.Predictions.Predict(r.Context(), company.ID, req.ratios())
	if err != nil {
		problem.Write(w, r, http.StatusInternalServerError, problem.TypeServerError, "Server error", err, h.Env)
		return
	}

	prediction := outcome.Prediction
	writeJSON(w, http.StatusOK, predictionResponse{
		ID:          prediction.ULID,
		Company:     companyToPayload(company),
		RiskLevel:   prediction.RiskLevel,
		Probability: prediction.Probability,
		Confidence:  prediction.Confidence,
		Reused:      outcome.Reused,
		Ratios:      ratiosToPayload(prediction.Ratios),
		PredictedAt: prediction.PredictedAt,
	})
}

// validationErrors flattens validator output into a field-keyed map for
// the problem+json errors member.
func validationErrors(err error) map[string]any {
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return nil
	}
	out := make(map[string]any, len(fieldErrs))
	for _, fe := range fieldErrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func pathParam(r *http.Request, key string) string {
	if r == nil {
		return ""
	}
	return r.PathValue(key)
}
