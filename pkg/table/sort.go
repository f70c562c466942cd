package table

import (
	"slices"
	"strings"
	"time"

	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// Direction is a sort direction.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// ParseDirection maps user input to a Direction, defaulting to ascending.
func ParseDirection(raw string) Direction {
	if strings.EqualFold(strings.TrimSpace(raw), string(Desc)) {
		return Desc
	}
	return Asc
}

// SortSpec is a sort key plus direction. An empty Key keeps input order.
type SortSpec struct {
	Key string    `json:"key"`
	Dir Direction `json:"dir"`
}

// Toggle returns the ordering after a header click on key: the same key flips direction,
// a new key starts ascending.
func (s SortSpec) Toggle(key string) SortSpec {
	if key == "" {
		return s
	}
	if key == s.Key {
		if s.Dir == Desc {
			return SortSpec{Key: key, Dir: Asc}
		}
		return SortSpec{Key: key, Dir: Desc}
	}
	return SortSpec{Key: key, Dir: Asc}
}

// ApplySort returns a stably sorted copy of records. Null values sort last in both directions.
func ApplySort[R Record](records []R, s SortSpec) []R {
	out := make([]R, 0, len(records))
	out = append(out, records...)
	if s.Key == "" || len(out) < 2 {
		return out
	}
	// Collators keep scratch buffers, so each sort gets its own.
	col := collate.New(language.English)
	desc := s.Dir == Desc
	slices.SortStableFunc(out, func(a, b R) int {
		return compareValues(col, a.Field(s.Key), b.Field(s.Key), desc)
	})
	return out
}

func compareValues(col *collate.Collator, a, b interface{}, desc bool) int {
	a, b = normalize(a), normalize(b)
	aNull, bNull := isNull(a), isNull(b)
	switch {
	case aNull && bNull:
		return 0
	case aNull:
		return 1
	case bNull:
		return -1
	}
	c := compareNonNull(col, a, b)
	if desc {
		return -c
	}
	return c
}

func compareNonNull(col *collate.Collator, a, b interface{}) int {
	if af, ok := toFloat(a); ok {
		if bf, ok := toFloat(b); ok {
			switch d := af - bf; {
			case d < 0:
				return -1
			case d > 0:
				return 1
			}
			return 0
		}
	}
	if at, ok := a.(time.Time); ok {
		if bt, ok := b.(time.Time); ok {
			return at.Compare(bt)
		}
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			switch {
			case ab == bb:
				return 0
			case !ab:
				return -1
			}
			return 1
		}
	}
	return col.CompareString(stringify(a), stringify(b))
}
