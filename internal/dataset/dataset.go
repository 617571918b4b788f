// Package dataset reads uploaded spreadsheets into position-addressed
// records. Parsing is format-aware (CSV and XLSX) but semantics-free:
// values stay as strings until extraction, so a bad cell fails the one
// record it belongs to rather than the whole file.
package dataset

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Column names recognized in upload headers. Headers are matched after
// lower-casing and trimming, so "Stock_Symbol" and "stock_symbol" are the
// same column.
const (
	ColumnSymbol    = "stock_symbol"
	ColumnName      = "company_name"
	ColumnMarketCap = "market_cap"
	ColumnSector    = "sector"

	ColumnDebtToEquity       = "debt_to_equity_ratio"
	ColumnCurrentRatio       = "current_ratio"
	ColumnQuickRatio         = "quick_ratio"
	ColumnReturnOnEquity     = "return_on_equity"
	ColumnReturnOnAssets     = "return_on_assets"
	ColumnProfitMargin       = "profit_margin"
	ColumnInterestCoverage   = "interest_coverage"
	ColumnFixedAssetTurnover = "fixed_asset_turnover"
	ColumnTotalDebtEBITDA    = "total_debt_ebitda"
)

// RequiredColumns must be present in the header row for the upload to be
// accepted at all. Everything else is optional per record.
var RequiredColumns = []string{ColumnSymbol, ColumnName}

// RatioColumns lists the financial ratio columns in snapshot order.
var RatioColumns = []string{
	ColumnDebtToEquity,
	ColumnCurrentRatio,
	ColumnQuickRatio,
	ColumnReturnOnEquity,
	ColumnReturnOnAssets,
	ColumnProfitMargin,
	ColumnInterestCoverage,
	ColumnFixedAssetTurnover,
	ColumnTotalDebtEBITDA,
}

// Record is one data row, keyed by normalized column name. Cells are kept
// verbatim; interpretation happens in Text and Number.
type Record map[string]string

// Dataset is a parsed upload: the normalized header set plus all data rows
// in file order.
type Dataset struct {
	Columns []string
	Records []Record
}

// HasColumn reports whether the header row contained the named column.
func (d *Dataset) HasColumn(name string) bool {
	for _, c := range d.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// absentTokens are spreadsheet markers for "not reported". They normalize
// to a nil value, which is distinct from zero everywhere downstream.
var absentTokens = map[string]bool{
	"":     true,
	"nm":   true,
	"n/a":  true,
	"na":   true,
	"nan":  true,
	"null": true,
}

// Text returns the trimmed cell value, or "" when the cell is empty or the
// column is absent.
func (r Record) Text(column string) string {
	return strings.TrimSpace(r[column])
}

// Number interprets a cell as an optional float. Absent markers (empty,
// NM, N/A, NA, NaN, null) yield nil; anything else must parse as a finite
// number.
func (r Record) Number(column string) (*float64, error) {
	raw := r.Text(column)
	if absentTokens[strings.ToLower(raw)] {
		return nil, nil
	}
	v, err := strconv.ParseFloat(strings.ReplaceAll(raw, ",", ""), 64)
	if err != nil {
		return nil, fmt.Errorf("column %s: %q is not a number", column, raw)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return nil, nil
	}
	return &v, nil
}

func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(h))
}
