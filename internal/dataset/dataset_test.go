package dataset

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const sampleCSV = `Stock_Symbol,Company_Name,Market_Cap,Sector,Debt_To_Equity_Ratio,Profit_Margin
AAPL,Apple Inc.,2800000000000,Technology,1.45,25.3
msft,Microsoft,2500000000000,Technology,NM,
`

func TestParseCSVNormalizesHeaders(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader(sampleCSV))

	require.NoError(t, err)
	require.Equal(t, []string{
		ColumnSymbol, ColumnName, ColumnMarketCap, ColumnSector,
		ColumnDebtToEquity, ColumnProfitMargin,
	}, ds.Columns)
	require.Len(t, ds.Records, 2)
	require.Equal(t, "AAPL", ds.Records[0].Text(ColumnSymbol))
	require.Equal(t, "Apple Inc.", ds.Records[0].Text(ColumnName))
}

func TestParseCSVPadsShortRows(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("stock_symbol,company_name,profit_margin\nAAPL,Apple\n"))

	require.NoError(t, err)
	require.Len(t, ds.Records, 1)
	require.Equal(t, "", ds.Records[0].Text(ColumnProfitMargin))
}

func TestParseCSVHeaderOnlyIsEmptyDataset(t *testing.T) {
	ds, err := ParseCSV(strings.NewReader("stock_symbol,company_name\n"))

	require.NoError(t, err)
	require.Empty(t, ds.Records)
	require.NoError(t, ds.Validate())
}

func TestParseCSVNoHeaderFails(t *testing.T) {
	_, err := ParseCSV(strings.NewReader(""))

	require.ErrorContains(t, err, "no header row")
}

func TestParseDispatchesOnExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "upload.csv")
	require.NoError(t, os.WriteFile(path, []byte(sampleCSV), 0o600))

	ds, err := Parse(path)

	require.NoError(t, err)
	require.Len(t, ds.Records, 2)

	_, err = Parse(filepath.Join(dir, "upload.csv.bak"))
	require.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParseXLSXReadsFirstSheet(t *testing.T) {
	wb := excelize.NewFile()
	sheet := wb.GetSheetName(0)
	require.NoError(t, wb.SetSheetRow(sheet, "A1", &[]any{"Stock_Symbol", "Company_Name", "Current_Ratio"}))
	require.NoError(t, wb.SetSheetRow(sheet, "A2", &[]any{"GOOG", "Alphabet", 2.1}))
	require.NoError(t, wb.SetSheetRow(sheet, "A3", &[]any{"TSLA", "Tesla", "N/A"}))

	path := filepath.Join(t.TempDir(), "upload.xlsx")
	require.NoError(t, wb.SaveAs(path))
	require.NoError(t, wb.Close())

	ds, err := Parse(path)

	require.NoError(t, err)
	require.Equal(t, []string{ColumnSymbol, ColumnName, ColumnCurrentRatio}, ds.Columns)
	require.Len(t, ds.Records, 2)
	require.Equal(t, "GOOG", ds.Records[0].Text(ColumnSymbol))

	ratio, err := ds.Records[0].Number(ColumnCurrentRatio)
	require.NoError(t, err)
	require.NotNil(t, ratio)
	require.InDelta(t, 2.1, *ratio, 1e-9)

	absent, err := ds.Records[1].Number(ColumnCurrentRatio)
	require.NoError(t, err)
	require.Nil(t, absent)
}

func TestValidateReportsMissingColumns(t *testing.T) {
	ds := &Dataset{Columns: []string{ColumnName, ColumnProfitMargin}}

	err := ds.Validate()

	var schemaErr *SchemaError
	require.ErrorAs(t, err, &schemaErr)
	require.Equal(t, []string{ColumnSymbol}, schemaErr.Missing)
	require.Contains(t, schemaErr.Error(), "stock_symbol")
}

func TestSupportedExtension(t *testing.T) {
	require.True(t, SupportedExtension(".csv"))
	require.True(t, SupportedExtension(".CSV"))
	require.True(t, SupportedExtension(".xlsx"))
	require.False(t, SupportedExtension(".xls"))
	require.False(t, SupportedExtension(".txt"))
	require.False(t, SupportedExtension(""))
}

func TestRecordNumber(t *testing.T) {
	record := Record{
		"plain":     "1.45",
		"grouped":   "2,800,000",
		"negative":  "-3.2",
		"spaces":    "  4.5  ",
		"nm":        "NM",
		"na":        "n/a",
		"null":      "null",
		"nan":       "NaN",
		"empty":     "",
		"malformed": "12.3.4",
		"text":      "pending",
	}

	for column, want := range map[string]float64{
		"plain":    1.45,
		"grouped":  2800000,
		"negative": -3.2,
		"spaces":   4.5,
	} {
		v, err := record.Number(column)
		require.NoError(t, err, column)
		require.NotNil(t, v, column)
		require.InDelta(t, want, *v, 1e-9, column)
	}

	for _, column := range []string{"nm", "na", "null", "nan", "empty", "missing_column"} {
		v, err := record.Number(column)
		require.NoError(t, err, column)
		require.Nil(t, v, column)
	}

	for _, column := range []string{"malformed", "text"} {
		_, err := record.Number(column)
		require.ErrorContains(t, err, "is not a number", column)
	}
}
