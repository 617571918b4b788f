package scoring

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Model variable names. These are the five ratios the logistic model was
// fitted on; the remaining snapshot ratios are stored but not scored.
const (
	VarDebtToEquity     = "debt_to_equity_ratio"
	VarTotalDebtEBITDA  = "total_debt_ebitda"
	VarProfitMargin     = "profit_margin"
	VarInterestCoverage = "interest_coverage"
	VarReturnOnAssets   = "return_on_assets"
)

//go:embed defaults.yaml
var defaultParamsYAML []byte

// Bin maps the half-open interval (low, high] to a historical default rate.
type Bin struct {
	Low  float64 `yaml:"low"`
	High float64 `yaml:"high"`
	Rate float64 `yaml:"rate"`
}

// Variable is one model input: its binning table, the rate assigned when
// the input is absent, and its logistic coefficient.
type Variable struct {
	Name        string  `yaml:"name"`
	Coefficient float64 `yaml:"coefficient"`
	MissingRate float64 `yaml:"missing_rate"`
	Bins        []Bin   `yaml:"bins"`
}

// Thresholds are risk-level cutoffs in probability percentage points.
type Thresholds struct {
	Critical float64 `yaml:"critical"`
	High     float64 `yaml:"high"`
	Medium   float64 `yaml:"medium"`
}

// Parameters is the full parameter set for the binned logistic model.
type Parameters struct {
	Intercept  float64    `yaml:"intercept"`
	Variables  []Variable `yaml:"variables"`
	Thresholds Thresholds `yaml:"thresholds"`
}

// DefaultParameters returns the embedded parameter set.
func DefaultParameters() (Parameters, error) {
	return parseParameters(defaultParamsYAML)
}

// LoadParameters reads a parameter file, falling back to the embedded
// defaults when path is empty. A malformed file fails here, at load time.
func LoadParameters(path string) (Parameters, error) {
	if path == "" {
		return DefaultParameters()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Parameters{}, fmt.Errorf("read model parameters: %w", err)
	}
	return parseParameters(data)
}

func parseParameters(data []byte) (Parameters, error) {
	var params Parameters
	if err := yaml.Unmarshal(data, &params); err != nil {
		return Parameters{}, fmt.Errorf("parse model parameters: %w", err)
	}
	if err := params.validate(); err != nil {
		return Parameters{}, fmt.Errorf("invalid model parameters: %w", err)
	}
	return params, nil
}

func (p Parameters) validate() error {
	if len(p.Variables) == 0 {
		return fmt.Errorf("no model variables")
	}
	seen := make(map[string]bool, len(p.Variables))
	for _, v := range p.Variables {
		if v.Name == "" {
			return fmt.Errorf("variable with empty name")
		}
		if seen[v.Name] {
			return fmt.Errorf("duplicate variable %q", v.Name)
		}
		seen[v.Name] = true
		if len(v.Bins) == 0 {
			return fmt.Errorf("variable %q has no bins", v.Name)
		}
		for i, b := range v.Bins {
			if b.Low >= b.High {
				return fmt.Errorf("variable %q bin %d: low %v >= high %v", v.Name, i, b.Low, b.High)
			}
		}
	}
	if p.Thresholds.Critical <= p.Thresholds.High || p.Thresholds.High <= p.Thresholds.Medium {
		return fmt.Errorf("risk thresholds must be strictly decreasing (critical > high > medium)")
	}
	return nil
}
