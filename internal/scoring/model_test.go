package scoring

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func ptr(v float64) *float64 { return &v }

func defaultModel(t *testing.T) *Model {
	t.Helper()
	model, err := Load("")
	require.NoError(t, err)
	return model
}

func TestScoreHealthyCompanyIsLowRisk(t *testing.T) {
	model := defaultModel(t)

	result, err := model.Score(Ratios{
		DebtToEquity:     ptr(0.2),
		TotalDebtEBITDA:  ptr(1.0),
		ProfitMargin:     ptr(15.0),
		InterestCoverage: ptr(12.0),
		ReturnOnAssets:   ptr(9.0),
	})

	require.NoError(t, err)
	require.Equal(t, RiskLow, result.RiskLevel)
	require.Less(t, result.Probability, 0.02)
	require.GreaterOrEqual(t, result.Confidence, 0.5)
	require.Len(t, result.Features, 5)
}

func TestScoreDistressedCompanyIsElevatedRisk(t *testing.T) {
	model := defaultModel(t)

	result, err := model.Score(Ratios{
		DebtToEquity:     ptr(6.0),
		TotalDebtEBITDA:  ptr(11.0),
		ProfitMargin:     ptr(-22.0),
		InterestCoverage: ptr(-1.5),
		ReturnOnAssets:   ptr(-9.0),
	})

	require.NoError(t, err)
	require.Contains(t, []string{RiskHigh, RiskCritical}, result.RiskLevel)
	require.Greater(t, result.Probability, 0.05)
}

func TestScoreAbsentInputsUseMissingBin(t *testing.T) {
	model := defaultModel(t)

	result, err := model.Score(Ratios{})

	require.NoError(t, err)
	for _, v := range model.params.Variables {
		require.Equal(t, v.MissingRate, result.Features[v.Name], "variable %s", v.Name)
	}
}

func TestScoreAbsentDiffersFromZero(t *testing.T) {
	model := defaultModel(t)

	absent, err := model.Score(Ratios{})
	require.NoError(t, err)

	zeros, err := model.Score(Ratios{
		DebtToEquity:     ptr(0),
		TotalDebtEBITDA:  ptr(0),
		ProfitMargin:     ptr(0),
		InterestCoverage: ptr(0),
		ReturnOnAssets:   ptr(0),
	})
	require.NoError(t, err)

	require.NotEqual(t, absent.Probability, zeros.Probability)
}

func TestScoreIsDeterministic(t *testing.T) {
	model := defaultModel(t)
	input := Ratios{
		DebtToEquity:     ptr(1.4),
		TotalDebtEBITDA:  ptr(3.2),
		ProfitMargin:     ptr(2.1),
		InterestCoverage: ptr(2.8),
		ReturnOnAssets:   ptr(1.0),
	}

	first, err := model.Score(input)
	require.NoError(t, err)
	second, err := model.Score(input)
	require.NoError(t, err)

	require.Equal(t, first, second)
}

func TestRiskLevelThresholds(t *testing.T) {
	model := defaultModel(t)

	cases := []struct {
		probability float64
		want        string
	}{
		{0.001, RiskLow},
		{0.02, RiskMedium},
		{0.049, RiskMedium},
		{0.05, RiskHigh},
		{0.15, RiskHigh},
		{0.151, RiskCritical},
		{0.90, RiskCritical},
	}
	for _, tc := range cases {
		require.Equal(t, tc.want, model.riskLevel(tc.probability), "probability %v", tc.probability)
	}
}

func TestLoadRejectsMalformedParameters(t *testing.T) {
	dir := t.TempDir()

	cases := map[string]string{
		"not yaml":        "{{{",
		"no variables":    "intercept: 1.0\nthresholds: {critical: 15, high: 5, medium: 2}\n",
		"empty bins":      "intercept: 1.0\nthresholds: {critical: 15, high: 5, medium: 2}\nvariables:\n  - name: profit_margin\n    coefficient: 1.0\n    missing_rate: 0.02\n    bins: []\n",
		"inverted bin":    "intercept: 1.0\nthresholds: {critical: 15, high: 5, medium: 2}\nvariables:\n  - name: profit_margin\n    coefficient: 1.0\n    missing_rate: 0.02\n    bins:\n      - {low: 5, high: 1, rate: 0.1}\n",
		"bad thresholds":  "intercept: 1.0\nthresholds: {critical: 2, high: 5, medium: 15}\nvariables:\n  - name: profit_margin\n    coefficient: 1.0\n    missing_rate: 0.02\n    bins:\n      - {low: 0, high: 1, rate: 0.1}\n",
		"duplicate names": "intercept: 1.0\nthresholds: {critical: 15, high: 5, medium: 2}\nvariables:\n  - name: profit_margin\n    coefficient: 1.0\n    missing_rate: 0.02\n    bins:\n      - {low: 0, high: 1, rate: 0.1}\n  - name: profit_margin\n    coefficient: 1.0\n    missing_rate: 0.02\n    bins:\n      - {low: 0, high: 1, rate: 0.1}\n",
	}

	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, "params.yaml")
			require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

			_, err := Load(path)

			require.Error(t, err)
		})
	}
}

func TestLoadMissingFileFails(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestScoreOutOfBinValueFails(t *testing.T) {
	params, err := DefaultParameters()
	require.NoError(t, err)
	// Truncate profit_margin's bins so large values fall outside the model.
	for i := range params.Variables {
		if params.Variables[i].Name == VarProfitMargin {
			params.Variables[i].Bins = []Bin{{Low: 0, High: 1, Rate: 0.01}}
		}
	}
	model, err := NewModel(params)
	require.NoError(t, err)

	_, err = model.Score(Ratios{ProfitMargin: ptr(50.0)})

	require.ErrorContains(t, err, "outside model bins")
}
