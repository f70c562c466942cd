// Package spreadsheet reads tabular uploads (CSV, TSV, XLSX) and maps their
// free-form headers onto canonical field names.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"
)

var (
	// ErrUnsupportedFormat is returned for extensions other than csv, tsv and xlsx.
	ErrUnsupportedFormat = errors.New("unsupported spreadsheet format")
	// ErrEmpty is returned when the file has no header row.
	ErrEmpty = errors.New("spreadsheet is empty")
	// ErrTooManyRows is returned when the data rows exceed the configured limit.
	ErrTooManyRows = errors.New("spreadsheet has too many rows")
)

// Sheet is a header row plus data rows. Rows may be shorter than Headers.
type Sheet struct {
	Headers []string
	Rows    [][]string
}

// Cell returns the trimmed value at column idx, or "" when the row is short.
func Cell(row []string, idx int) string {
	if idx < 0 || idx >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[idx])
}

// BlankRow reports whether every cell is empty after trimming.
func BlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Read parses r according to the extension of name. maxRows <= 0 means unlimited.
func Read(name string, r io.Reader, maxRows int) (*Sheet, error) {
	var (
		rows [][]string
		err  error
	)
	switch ext := strings.ToLower(filepath.Ext(name)); ext {
	case ".csv":
		rows, err = readDelimited(r, ',')
	case ".tsv", ".tab":
		rows, err = readDelimited(r, '\t')
	case ".xlsx":
		rows, err = readXLSX(r)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, ext)
	}
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 || BlankRow(rows[0]) {
		return nil, ErrEmpty
	}

	headers := make([]string, len(rows[0]))
	for i, h := range rows[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	data := rows[1:]
	for len(data) > 0 && BlankRow(data[len(data)-1]) {
		data = data[:len(data)-1]
	}
	if maxRows > 0 && len(data) > maxRows {
		return nil, fmt.Errorf("%w: %d rows, limit %d", ErrTooManyRows, len(data), maxRows)
	}
	return &Sheet{Headers: headers, Rows: data}, nil
}

func readDelimited(r io.Reader, comma rune) ([][]string, error) {
	reader := csv.NewReader(r)
	reader.Comma = comma
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true
	rows, err := reader.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("parse delimited file: %w", err)
	}
	return rows, nil
}

// readXLSX reads the first sheet with raw cell values so date cells arrive as serials.
func readXLSX(r io.Reader) ([][]string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read xlsx: %w", err)
	}
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("open xlsx: %w", err)
	}
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(0)
	if sheet == "" {
		return nil, ErrEmpty
	}
	rows, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, fmt.Errorf("read sheet %s: %w", sheet, err)
	}
	return rows, nil
}
