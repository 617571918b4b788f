// Package testdata generates synthetic company datasets for batch
// pipeline and integration tests. Generated ratios stay within plausible
// reporting ranges so scored predictions land in every risk band.
package testdata

import (
	"fmt"
	"math/rand"
	"os"
	"strings"

	"github.com/xuri/excelize/v2"
)

// CompanyRow is one spreadsheet line of a synthetic dataset.
type CompanyRow struct {
	Symbol            string
	Name              string
	Sector            string
	MarketCap         float64
	DebtToEquity      float64
	CurrentRatio      float64
	QuickRatio        float64
	ReturnOnEquity    float64
	ReturnOnAssets    float64
	ProfitMargin      float64
	InterestCoverage  float64
	FixedAssetTurn    float64
	TotalDebtToEBITDA float64
}

// DatasetHeader is the canonical header row for generated datasets.
var DatasetHeader = []string{
	"stock_symbol", "company_name", "sector", "market_cap",
	"debt_to_equity_ratio", "current_ratio", "quick_ratio",
	"return_on_equity", "return_on_assets", "profit_margin",
	"interest_coverage", "fixed_asset_turnover", "total_debt_ebitda",
}

var sectors = []string{"Technology", "Energy", "Healthcare", "Financials", "Industrials", "Utilities", "Materials"}

// Generator produces deterministic synthetic datasets from a seed.
type Generator struct {
	rng *rand.Rand
}

func NewGenerator(seed int64) *Generator {
	return &Generator{rng: rand.New(rand.NewSource(seed))}
}

// Companies generates n rows with distinct symbols.
func (g *Generator) Companies(n int) []CompanyRow {
	rows := make([]CompanyRow, 0, n)
	for i := 0; i < n; i++ {
		symbol := fmt.Sprintf("TST%03d", i)
		rows = append(rows, CompanyRow{
			Symbol:            symbol,
			Name:              fmt.Sprintf("Test Company %03d Inc.", i),
			Sector:            sectors[g.rng.Intn(len(sectors))],
			MarketCap:         float64(g.rng.Intn(500_000))*1e6 + 1e8,
			DebtToEquity:      g.between(0.05, 5.0),
			CurrentRatio:      g.between(0.3, 3.5),
			QuickRatio:        g.between(0.2, 2.5),
			ReturnOnEquity:    g.between(-0.5, 0.6),
			ReturnOnAssets:    g.between(-0.25, 0.35),
			ProfitMargin:      g.between(-0.4, 0.45),
			InterestCoverage:  g.between(-3.0, 25.0),
			FixedAssetTurn:    g.between(0.2, 8.0),
			TotalDebtToEBITDA: g.between(0.0, 9.0),
		})
	}
	return rows
}

func (g *Generator) between(min, max float64) float64 {
	return min + g.rng.Float64()*(max-min)
}

func (r CompanyRow) values() []string {
	return []string{
		r.Symbol,
		r.Name,
		r.Sector,
		fmt.Sprintf("%.0f", r.MarketCap),
		fmt.Sprintf("%.4f", r.DebtToEquity),
		fmt.Sprintf("%.4f", r.CurrentRatio),
		fmt.Sprintf("%.4f", r.QuickRatio),
		fmt.Sprintf("%.4f", r.ReturnOnEquity),
		fmt.Sprintf("%.4f", r.ReturnOnAssets),
		fmt.Sprintf("%.4f", r.ProfitMargin),
		fmt.Sprintf("%.4f", r.InterestCoverage),
		fmt.Sprintf("%.4f", r.FixedAssetTurn),
		fmt.Sprintf("%.4f", r.TotalDebtToEBITDA),
	}
}

// CSV renders rows as CSV text with the canonical header.
func CSV(rows []CompanyRow) string {
	var b strings.Builder
	b.WriteString(strings.Join(DatasetHeader, ","))
	b.WriteByte('\n')
	for _, row := range rows {
		b.WriteString(strings.Join(row.values(), ","))
		b.WriteByte('\n')
	}
	return b.String()
}

// WriteCSV writes rows to a CSV file at path.
func WriteCSV(path string, rows []CompanyRow) error {
	return os.WriteFile(path, []byte(CSV(rows)), 0o644)
}

// WriteXLSX writes rows to an XLSX workbook at path, data on the first
// sheet with the canonical header in row 1.
func WriteXLSX(path string, rows []CompanyRow) error {
	book := excelize.NewFile()
	defer func() { _ = book.Close() }()

	sheet := book.GetSheetName(0)
	for col, name := range DatasetHeader {
		cell, err := excelize.CoordinatesToCellName(col+1, 1)
		if err != nil {
			return err
		}
		if err := book.SetCellValue(sheet, cell, name); err != nil {
			return err
		}
	}
	for i, row := range rows {
		for col, value := range row.values() {
			cell, err := excelize.CoordinatesToCellName(col+1, i+2)
			if err != nil {
				return err
			}
			if err := book.SetCellValue(sheet, cell, value); err != nil {
				return err
			}
		}
	}
	return book.SaveAs(path)
}

// InvalidSchemaCSV is a dataset whose header is missing the required
// company_name column; schema validation must reject it before enqueue.
const InvalidSchemaCSV = "stock_symbol,debt_to_equity_ratio\nAAPL,1.5\nMSFT,0.8\n"

// MixedValidityCSV has one clean row, one row with a malformed number,
// and one row missing its symbol. Two records should fail, one succeed.
const MixedValidityCSV = `stock_symbol,company_name,debt_to_equity_ratio,current_ratio
AAPL,Apple Inc.,1.51,0.94
MSFT,Microsoft Corporation,not-a-number,2.5
,No Symbol Corp,0.5,1.1
`
