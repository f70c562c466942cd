package contentapi

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/noah-isme/edu-crm-api/pkg/table"
)

// Record is one content entry with flat and attributes-wrapped shapes folded
// into a single attribute map.
type Record struct {
	ID         string
	Attributes map[string]interface{}
}

// RecordID implements table.Record.
func (r Record) RecordID() string { return r.ID }

// Field implements table.Record.
func (r Record) Field(key string) interface{} {
	if key == "id" {
		return r.ID
	}
	return r.Attributes[key]
}

// String returns a trimmed string attribute. Numbers and booleans are formatted.
func (r Record) String(key string) string {
	switch v := r.Attributes[key].(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(v)
	case json.Number:
		return v.String()
	case bool:
		return strconv.FormatBool(v)
	default:
		return strings.TrimSpace(fmt.Sprint(v))
	}
}

// Time parses a date attribute; absent or unparsable values yield nil.
func (r Record) Time(key string) *time.Time {
	t, ok := table.ParseDate(r.String(key))
	if !ok {
		return nil
	}
	return &t
}

// Float parses a numeric attribute.
func (r Record) Float(key string) *float64 {
	switch v := r.Attributes[key].(type) {
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return &f
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			return &f
		}
	}
	return nil
}

// Relation returns the ids referenced by a relation attribute. It accepts a bare
// id, a record, a list of either, and the {"data": ...} wrapper around any of them.
func (r Record) Relation(key string) []string {
	return relationIDs(r.Attributes[key])
}

func relationIDs(v interface{}) []string {
	switch val := v.(type) {
	case nil:
		return nil
	case []interface{}:
		ids := make([]string, 0, len(val))
		for _, item := range val {
			ids = append(ids, relationIDs(item)...)
		}
		return ids
	case map[string]interface{}:
		if data, ok := val["data"]; ok && len(val) == 1 {
			return relationIDs(data)
		}
		if rec, ok := normalize(val); ok {
			return []string{rec.ID}
		}
		return nil
	default:
		if id := idString(val); id != "" {
			return []string{id}
		}
		return nil
	}
}

// normalize folds {id, attributes:{...}} and flat {id, ...} objects into a Record.
func normalize(raw map[string]interface{}) (Record, bool) {
	id := idString(raw["id"])
	if id == "" {
		id = idString(raw["documentId"])
	}
	if id == "" {
		return Record{}, false
	}
	attrs := make(map[string]interface{}, len(raw))
	if wrapped, ok := raw["attributes"].(map[string]interface{}); ok {
		for k, v := range wrapped {
			attrs[k] = v
		}
	} else {
		for k, v := range raw {
			if k == "id" || k == "documentId" {
				continue
			}
			attrs[k] = v
		}
	}
	return Record{ID: id, Attributes: attrs}, true
}

func idString(v interface{}) string {
	switch id := v.(type) {
	case string:
		return strings.TrimSpace(id)
	case json.Number:
		return id.String()
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64)
	}
	return ""
}
