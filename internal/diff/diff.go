package diff

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Pair is a changed field formatted for review display.
type Pair struct {
	Field    string `json:"field"`
	Original string `json:"original"`
	Proposed string `json:"proposed"`
}

// Changed returns the keys of proposed whose normalized value differs from
// original, in the order given by keys. Only keys present in proposed are
// candidates; a key absent from original is always reported as changed.
func Changed(original, proposed map[string]any, keys []string) []string {
	changed := make([]string, 0, len(keys))
	for _, key := range keys {
		proposedValue, ok := proposed[key]
		if !ok {
			continue
		}
		originalValue, exists := original[key]
		if !exists || Canonical(originalValue) != Canonical(proposedValue) {
			changed = append(changed, key)
		}
	}
	return changed
}

// Pairs formats the original and proposed values for each changed key.
func Pairs(original, proposed map[string]any, keys []string) []Pair {
	pairs := make([]Pair, 0, len(keys))
	for _, key := range keys {
		originalValue, exists := original[key]
		if !exists {
			originalValue = nil
		}
		pairs = append(pairs, Pair{
			Field:    key,
			Original: FormatValue(originalValue),
			Proposed: FormatValue(proposed[key]),
		})
	}
	return pairs
}

// FormatValue renders a value for side-by-side display: objects and arrays
// as indented JSON, nil as the literal "null", scalars via plain coercion.
func FormatValue(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case map[string]any, []any:
		encoded, err := json.MarshalIndent(v, "", "  ")
		if err != nil {
			return fmt.Sprintf("%v", v)
		}
		return string(encoded)
	default:
		return fmt.Sprintf("%v", v)
	}
}

// OrderedKeys extracts the top-level keys of a JSON object in their
// insertion order. The changed-field set preserves this order, which map
// decoding would otherwise lose.
func OrderedKeys(raw json.RawMessage) ([]string, error) {
	decoder := json.NewDecoder(strings.NewReader(string(raw)))
	token, err := decoder.Token()
	if err != nil {
		return nil, fmt.Errorf("decode object: %w", err)
	}
	if delim, ok := token.(json.Delim); !ok || delim != '{' {
		return nil, fmt.Errorf("expected JSON object")
	}

	var keys []string
	for decoder.More() {
		token, err := decoder.Token()
		if err != nil {
			return nil, fmt.Errorf("decode object: %w", err)
		}
		key, ok := token.(string)
		if !ok {
			return nil, fmt.Errorf("expected object key, got %v", token)
		}
		keys = append(keys, key)
		// Skip the value so nested object keys are not collected.
		if err := skipValue(decoder); err != nil {
			return nil, err
		}
	}
	return keys, nil
}

func skipValue(decoder *json.Decoder) error {
	token, err := decoder.Token()
	if err != nil {
		return fmt.Errorf("decode value: %w", err)
	}
	delim, ok := token.(json.Delim)
	if !ok || (delim != '{' && delim != '[') {
		return nil
	}
	depth := 1
	for depth > 0 {
		token, err := decoder.Token()
		if err != nil {
			return fmt.Errorf("decode value: %w", err)
		}
		if d, ok := token.(json.Delim); ok {
			switch d {
			case '{', '[':
				depth++
			case '}', ']':
				depth--
			}
		}
	}
	return nil
}
