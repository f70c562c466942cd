package table

import (
	"strings"
	"time"
)

// Criteria holds the active search and filter values of a table.
type Criteria struct {
	Search   string
	Status   string
	Category string
	From     *time.Time
	To       *time.Time
}

// ApplyFilters returns the records matching every active criterion, in input order.
// Search runs first, then status, then category, then the date range.
func ApplyFilters[R Record](records []R, schema Schema, c Criteria) []R {
	out := make([]R, 0, len(records))
	out = append(out, records...)

	if term := strings.ToLower(strings.TrimSpace(c.Search)); term != "" && len(schema.SearchFields) > 0 {
		out = keep(out, func(r R) bool { return matchesSearch(r, schema.SearchFields, term) })
	}
	if status := filterValue(c.Status); status != "" && schema.StatusField != "" {
		out = keep(out, func(r R) bool { return equalsTrimmed(r.Field(schema.StatusField), status) })
	}
	if category := filterValue(c.Category); category != "" && schema.CategoryField != "" {
		out = keep(out, func(r R) bool { return equalsFold(r.Field(schema.CategoryField), category) })
	}
	if (c.From != nil || c.To != nil) && schema.DateField != "" {
		out = keep(out, func(r R) bool { return inRange(r.Field(schema.DateField), c.From, c.To) })
	}
	return out
}

// filterValue treats "all" as no filter, matching the dashboard dropdowns.
func filterValue(raw string) string {
	v := strings.TrimSpace(raw)
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

func keep[R any](in []R, pred func(R) bool) []R {
	out := in[:0]
	for _, r := range in {
		if pred(r) {
			out = append(out, r)
		}
	}
	return out
}

func matchesSearch(r Record, fields []string, term string) bool {
	for _, f := range fields {
		if strings.Contains(strings.ToLower(stringify(r.Field(f))), term) {
			return true
		}
	}
	return false
}

func equalsTrimmed(v interface{}, want string) bool {
	return strings.TrimSpace(stringify(v)) == want
}

// equalsFold compares categories such as country without regard to case.
func equalsFold(v interface{}, want string) bool {
	return strings.EqualFold(strings.TrimSpace(stringify(v)), want)
}

func inRange(v interface{}, from, to *time.Time) bool {
	d, ok := ParseDate(v)
	if !ok {
		return false
	}
	if from != nil && d.Before(*from) {
		return false
	}
	if to != nil && d.After(*to) {
		return false
	}
	return true
}
