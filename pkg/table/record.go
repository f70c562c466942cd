package table

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Record is a row that can be searched, filtered and sorted by field key.
// Field returns nil when the value is absent.
type Record interface {
	RecordID() string
	Field(key string) interface{}
}

// Schema names the fields an entity table searches, filters and sorts on.
type Schema struct {
	SearchFields  []string
	StatusField   string
	CategoryField string
	DateField     string
	SortFields    []string
}

// Sortable reports whether key may be used as a sort key. An empty SortFields list allows any key.
func (s Schema) Sortable(key string) bool {
	if key == "" {
		return false
	}
	if len(s.SortFields) == 0 {
		return true
	}
	for _, f := range s.SortFields {
		if f == key {
			return true
		}
	}
	return false
}

// IDs returns the identifiers of records in order.
func IDs[R Record](records []R) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.RecordID())
	}
	return ids
}

// normalize dereferences pointer values so nil pointers read as nil.
func normalize(v interface{}) interface{} {
	switch val := v.(type) {
	case *string:
		if val == nil {
			return nil
		}
		return *val
	case *time.Time:
		if val == nil {
			return nil
		}
		return *val
	case *int:
		if val == nil {
			return nil
		}
		return *val
	case *int64:
		if val == nil {
			return nil
		}
		return *val
	case *float64:
		if val == nil {
			return nil
		}
		return *val
	case *bool:
		if val == nil {
			return nil
		}
		return *val
	}
	return v
}

func isNull(v interface{}) bool {
	switch val := v.(type) {
	case nil:
		return true
	case time.Time:
		return val.IsZero()
	}
	return false
}

func stringify(v interface{}) string {
	switch val := normalize(v).(type) {
	case nil:
		return ""
	case string:
		return val
	case time.Time:
		if val.IsZero() {
			return ""
		}
		return val.Format(time.RFC3339)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	case fmt.Stringer:
		return val.String()
	default:
		return fmt.Sprint(val)
	}
}

func toFloat(v interface{}) (float64, bool) {
	switch val := v.(type) {
	case int:
		return float64(val), true
	case int32:
		return float64(val), true
	case int64:
		return float64(val), true
	case float32:
		return float64(val), true
	case float64:
		return val, true
	}
	return 0, false
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006",
}

var dayLayouts = []string{"2006-01-02", "02/01/2006"}

// ParseUpperBound reads the inclusive end of a date range. A bare day covers
// that whole day, so it becomes the last instant before midnight.
func ParseUpperBound(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dayLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.AddDate(0, 0, 1).Add(-time.Nanosecond), true
		}
	}
	return ParseDate(raw)
}

// ParseDate reads a date from a time value or one of the accepted string layouts.
func ParseDate(v interface{}) (time.Time, bool) {
	switch val := normalize(v).(type) {
	case time.Time:
		return val, !val.IsZero()
	case string:
		raw := strings.TrimSpace(val)
		if raw == "" {
			return time.Time{}, false
		}
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, raw); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}
