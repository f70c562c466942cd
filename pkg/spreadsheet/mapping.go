package spreadsheet

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/xuri/excelize/v2"

	"github.com/noah-isme/edu-crm-api/pkg/table"
)

// NormalizeHeader lower-cases h and drops everything but letters and digits,
// so "E-mail", "e mail" and "EMAIL" all read "email".
func NormalizeHeader(h string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(h) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// Rule maps any header whose normalized form contains one of Contains onto Field.
// A header equal to an Exact entry, or to a Contains needle, is an exact match.
// A rule with an empty Field claims headers so that later rules never see them.
type Rule struct {
	Field    string
	Contains []string
	Exact    []string
}

// Mapping is an ordered rule list. Exact matches are tried before substring
// matches, and among substring matches the first rule wins. Each field binds to
// the first column that claims it, unless a later column matches it exactly.
type Mapping []Rule

// Field returns the canonical field for a header, or "".
func (m Mapping) Field(header string) string {
	field, _ := m.resolve(header)
	return field
}

func (m Mapping) resolve(header string) (string, bool) {
	norm := NormalizeHeader(header)
	if norm == "" {
		return "", false
	}
	for _, rule := range m {
		if containsString(rule.Exact, norm) || containsString(rule.Contains, norm) {
			return rule.Field, true
		}
	}
	for _, rule := range m {
		for _, needle := range rule.Contains {
			if strings.Contains(norm, needle) {
				return rule.Field, false
			}
		}
	}
	return "", false
}

// Columns resolves headers to a field -> column index map plus the headers left unmapped.
func (m Mapping) Columns(headers []string) (map[string]int, []string) {
	cols := make(map[string]int, len(headers))
	exact := make(map[string]bool, len(headers))
	for i, h := range headers {
		field, isExact := m.resolve(h)
		if field == "" {
			continue
		}
		if _, taken := cols[field]; taken && (exact[field] || !isExact) {
			continue
		}
		cols[field] = i
		exact[field] = isExact
	}

	bound := make(map[int]bool, len(cols))
	for _, i := range cols {
		bound[i] = true
	}
	unmapped := make([]string, 0)
	for i, h := range headers {
		if !bound[i] && strings.TrimSpace(h) != "" {
			unmapped = append(unmapped, h)
		}
	}
	return cols, unmapped
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// Row is one data row addressed by canonical field.
type Row struct {
	Number int
	cols   map[string]int
	values []string
}

// BindRows binds every data row of s to cols. Numbers are 1-based and include the header row.
func (s *Sheet) BindRows(cols map[string]int) []Row {
	out := make([]Row, len(s.Rows))
	for i, values := range s.Rows {
		out[i] = Row{Number: i + 2, cols: cols, values: values}
	}
	return out
}

// Get returns the trimmed value of field, or "".
func (r Row) Get(field string) string {
	idx, ok := r.cols[field]
	if !ok {
		return ""
	}
	return Cell(r.values, idx)
}

// Blank reports whether the row has no content at all.
func (r Row) Blank() bool {
	return BlankRow(r.values)
}

// Date reads field as a date. Excel serials in a plausible range are converted;
// everything else goes through the table date layouts.
func (r Row) Date(field string) (*time.Time, bool) {
	raw := r.Get(field)
	if raw == "" {
		return nil, true
	}
	if serial, err := strconv.ParseFloat(raw, 64); err == nil {
		if serial >= 1 && serial <= 80000 {
			if t, err := excelize.ExcelDateToTime(serial, false); err == nil {
				return &t, true
			}
		}
		return nil, false
	}
	if t, ok := table.ParseDate(raw); ok {
		return &t, true
	}
	return nil, false
}

// Float reads field as a number. Empty yields nil.
func (r Row) Float(field string) (*float64, bool) {
	raw := strings.TrimSuffix(r.Get(field), "%")
	if raw == "" {
		return nil, true
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return nil, false
	}
	return &v, true
}
