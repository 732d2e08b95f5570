// Package diff computes the changed-field set between an original catalog
// entity and a proposed partial update, using canonical forms that tolerate
// cosmetic differences (array order, object key order, time-of-day).
package diff

import (
	"encoding/json"
	"sort"
	"time"
)

// dateLayouts are the formats accepted as date-like values. First match wins.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02",
}

// Normalize canonicalizes a JSON-representable value for comparison:
// nil stays nil, date-like values collapse to their calendar date (time of
// day and timezone are intentionally discarded, so two timestamps on the
// same day compare equal), arrays are sorted copies (duplicates preserved),
// and objects are normalized recursively. Scalars pass through unchanged.
func Normalize(value any) any {
	switch v := value.(type) {
	case nil:
		return nil
	case time.Time:
		return v.Format("2006-01-02")
	case *time.Time:
		if v == nil {
			return nil
		}
		return v.Format("2006-01-02")
	case string:
		if day, ok := calendarDate(v); ok {
			return day
		}
		return v
	case json.Number:
		if f, err := v.Float64(); err == nil {
			return f
		}
		return v.String()
	case []any:
		normalized := make([]any, len(v))
		for i, item := range v {
			normalized[i] = Normalize(item)
		}
		sort.SliceStable(normalized, func(i, j int) bool {
			return Canonical(normalized[i]) < Canonical(normalized[j])
		})
		return normalized
	case map[string]any:
		normalized := make(map[string]any, len(v))
		for key, item := range v {
			normalized[key] = Normalize(item)
		}
		return normalized
	default:
		return v
	}
}

// Canonical renders the normalized form of a value as a deterministic
// string. Object keys are emitted in lexicographic order (encoding/json
// sorts map keys), so structurally equal values produce equal strings.
func Canonical(value any) string {
	encoded, err := json.Marshal(Normalize(value))
	if err != nil {
		// Non-JSON values are outside the contract; fall back to a tag
		// that never collides with encoded JSON.
		return "!unencodable"
	}
	return string(encoded)
}

// calendarDate reports whether s is a date-like string and, if so, returns
// its ISO calendar date.
func calendarDate(s string) (string, bool) {
	if len(s) < len("2006-01-02") || len(s) > len(time.RFC3339Nano)+5 {
		return "", false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.Format("2006-01-02"), true
		}
	}
	return "", false
}
