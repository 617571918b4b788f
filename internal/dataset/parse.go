package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrUnsupportedFormat means the file extension is not one Parse can read.
var ErrUnsupportedFormat = errors.New("unsupported file format")

// SupportedExtension reports whether the extension (with leading dot,
// any case) names a parseable spreadsheet format.
func SupportedExtension(ext string) bool {
	switch strings.ToLower(ext) {
	case ".csv", ".xlsx":
		return true
	default:
		return false
	}
}

// Parse reads a staged upload, dispatching on file extension. The header
// row is required; a file with headers but no data rows parses to an
// empty dataset rather than an error.
func Parse(path string) (*Dataset, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer f.Close()

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".csv":
		return ParseCSV(f)
	case ".xlsx":
		return ParseXLSX(f)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
}

// ParseCSV reads comma-separated data. Rows shorter than the header are
// padded with empty cells; longer rows are an error from the csv reader.
func ParseCSV(r io.Reader) (*Dataset, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("empty file: no header row")
	}
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}

	ds := &Dataset{Columns: normalizeHeaders(header)}
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row %d: %w", len(ds.Records)+1, err)
		}
		ds.Records = append(ds.Records, rowRecord(ds.Columns, row))
	}
	return ds, nil
}

// ParseXLSX reads the first sheet of a workbook.
func ParseXLSX(r io.Reader) (*Dataset, error) {
	wb, err := excelize.OpenReader(r)
	if err != nil {
		return nil, fmt.Errorf("open workbook: %w", err)
	}
	defer wb.Close()

	sheets := wb.GetSheetList()
	if len(sheets) == 0 {
		return nil, fmt.Errorf("workbook has no sheets")
	}
	rows, err := wb.GetRows(sheets[0])
	if err != nil {
		return nil, fmt.Errorf("read sheet %q: %w", sheets[0], err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("empty file: no header row")
	}

	ds := &Dataset{Columns: normalizeHeaders(rows[0])}
	for _, row := range rows[1:] {
		ds.Records = append(ds.Records, rowRecord(ds.Columns, row))
	}
	return ds, nil
}

func normalizeHeaders(header []string) []string {
	columns := make([]string, len(header))
	for i, h := range header {
		columns[i] = normalizeHeader(h)
	}
	return columns
}

func rowRecord(columns []string, row []string) Record {
	record := make(Record, len(columns))
	for i, column := range columns {
		if column == "" {
			continue
		}
		if i < len(row) {
			record[column] = row[i]
		} else {
			record[column] = ""
		}
	}
	return record
}
