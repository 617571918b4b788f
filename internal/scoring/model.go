// Package scoring implements the binned logistic default-risk model.
//
// The model is pure and deterministic: five of the nine snapshot ratios are
// mapped to historical default rates through per-variable interval bins, and
// the binned rates feed a logistic function. An absent input is a first-class
// model input that maps to the variable's dedicated missing-bin rate; it is
// never coerced to zero.
package scoring

import (
	"fmt"
	"math"
)

// Risk levels ordered by severity.
const (
	RiskLow      = "LOW"
	RiskMedium   = "MEDIUM"
	RiskHigh     = "HIGH"
	RiskCritical = "CRITICAL"
)

// Ratios are the financial ratio inputs for one company at one point in
// time. A nil field means the ratio was not reported.
type Ratios struct {
	DebtToEquity       *float64
	CurrentRatio       *float64
	QuickRatio         *float64
	ReturnOnEquity     *float64
	ReturnOnAssets     *float64
	ProfitMargin       *float64
	InterestCoverage   *float64
	FixedAssetTurnover *float64
	TotalDebtEBITDA    *float64
}

// Result is the immutable outcome of scoring one ratio snapshot.
type Result struct {
	Probability float64
	RiskLevel   string
	Confidence  float64
	// Features holds the binned default rate chosen for each model
	// variable, keyed by variable name.
	Features map[string]float64
}

// Model scores ratio snapshots against a fixed parameter set.
type Model struct {
	params Parameters
	byName map[string]Variable
}

// NewModel validates the parameter set and builds a scoring model.
func NewModel(params Parameters) (*Model, error) {
	if err := params.validate(); err != nil {
		return nil, fmt.Errorf("invalid model parameters: %w", err)
	}
	byName := make(map[string]Variable, len(params.Variables))
	for _, v := range params.Variables {
		byName[v.Name] = v
	}
	return &Model{params: params, byName: byName}, nil
}

// Load builds a model from a parameter file, or from the embedded defaults
// when path is empty.
func Load(path string) (*Model, error) {
	params, err := LoadParameters(path)
	if err != nil {
		return nil, err
	}
	return NewModel(params)
}

// Score computes the default probability, risk level, and confidence for
// one ratio snapshot. It fails only when a present value falls outside
// every bin of its variable, which indicates a value the model was never
// fitted for.
func (m *Model) Score(r Ratios) (Result, error) {
	features := make(map[string]float64, len(m.params.Variables))
	linear := m.params.Intercept
	for _, v := range m.params.Variables {
		rate, err := binnedRate(v, modelInput(r, v.Name))
		if err != nil {
			return Result{}, err
		}
		features[v.Name] = rate
		linear += v.Coefficient * rate
	}

	probability := 1.0 / (1.0 + math.Exp(-linear))
	confidence := math.Abs(probability-0.5) * 2
	if confidence < 0.5 {
		confidence = 0.5
	}

	return Result{
		Probability: probability,
		RiskLevel:   m.riskLevel(probability),
		Confidence:  confidence,
		Features:    features,
	}, nil
}

func (m *Model) riskLevel(probability float64) string {
	pct := probability * 100
	switch {
	case pct > m.params.Thresholds.Critical:
		return RiskCritical
	case pct >= m.params.Thresholds.High:
		return RiskHigh
	case pct >= m.params.Thresholds.Medium:
		return RiskMedium
	default:
		return RiskLow
	}
}

func binnedRate(v Variable, value *float64) (float64, error) {
	if value == nil || math.IsNaN(*value) || math.IsInf(*value, 0) {
		return v.MissingRate, nil
	}
	for _, b := range v.Bins {
		if *value > b.Low && *value <= b.High {
			return b.Rate, nil
		}
	}
	return 0, fmt.Errorf("%s: value %v outside model bins", v.Name, *value)
}

func modelInput(r Ratios, name string) *float64 {
	switch name {
	case VarDebtToEquity:
		return r.DebtToEquity
	case VarTotalDebtEBITDA:
		return r.TotalDebtEBITDA
	case VarProfitMargin:
		return r.ProfitMargin
	case VarInterestCoverage:
		return r.InterestCoverage
	case VarReturnOnAssets:
		return r.ReturnOnAssets
	default:
		return nil
	}
}
