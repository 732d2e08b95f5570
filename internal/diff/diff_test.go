package diff

import (
	"encoding/json"
	"reflect"
	"testing"
	"time"
)

func TestNormalizeDeterministic(t *testing.T) {
	values := []any{
		nil,
		"plain string",
		float64(42),
		true,
		[]any{"b", "a", "a"},
		map[string]any{"z": 1.0, "a": []any{"y", "x"}},
		"2024-03-01T10:30:00Z",
	}
	for _, v := range values {
		first := Canonical(v)
		second := Canonical(v)
		if first != second {
			t.Errorf("Canonical not deterministic for %v: %q vs %q", v, first, second)
		}
		// normalize(normalize(v)) == normalize(v)
		if again := Canonical(Normalize(v)); again != first {
			t.Errorf("Normalize not idempotent for %v: %q vs %q", v, again, first)
		}
	}
}

func TestNormalizeDates(t *testing.T) {
	morning := "2024-03-01T08:00:00Z"
	evening := "2024-03-01T23:59:00+09:00"
	if Canonical(morning) != Canonical("2024-03-01") {
		t.Fatalf("timestamp should normalize to its calendar date")
	}
	if Canonical(morning) != Canonical(evening) {
		t.Fatalf("same-day timestamps should normalize identically")
	}
	if Canonical("2024-03-01") == Canonical("2024-03-02") {
		t.Fatalf("different days must stay different")
	}
	if got := Normalize(time.Date(2024, 3, 1, 18, 0, 0, 0, time.UTC)); got != "2024-03-01" {
		t.Fatalf("time.Time should normalize to calendar date, got %v", got)
	}
	if got := Normalize("not a date"); got != "not a date" {
		t.Fatalf("plain strings must pass through, got %v", got)
	}
}

func TestNormalizeArrays(t *testing.T) {
	a := []any{"b", "a"}
	b := []any{"a", "b"}
	if Canonical(a) != Canonical(b) {
		t.Fatalf("array element order must not matter")
	}
	// Multiset semantics: duplicates are preserved, not deduplicated.
	withDup := []any{"a", "a", "b"}
	if Canonical(withDup) == Canonical(b) {
		t.Fatalf("duplicates must be preserved")
	}
}

func TestNormalizeNestedObjects(t *testing.T) {
	a := map[string]any{"outer": map[string]any{"x": []any{"2", "1"}, "y": nil}}
	b := map[string]any{"outer": map[string]any{"y": nil, "x": []any{"1", "2"}}}
	if Canonical(a) != Canonical(b) {
		t.Fatalf("key order and nested array order must not matter")
	}
}

func TestChangedIdenticalObjects(t *testing.T) {
	o := map[string]any{"title": "A", "episodes": float64(12)}
	if changed := Changed(o, o, []string{"title", "episodes"}); len(changed) != 0 {
		t.Fatalf("diff of identical objects should be empty, got %v", changed)
	}
}

func TestChangedNewKey(t *testing.T) {
	original := map[string]any{"title": "A"}
	proposed := map[string]any{"title": "A", "synopsis": "fresh"}
	changed := Changed(original, proposed, []string{"title", "synopsis"})
	if !reflect.DeepEqual(changed, []string{"synopsis"}) {
		t.Fatalf("key absent from original must be changed, got %v", changed)
	}
}

func TestChangedIgnoresKeysAbsentFromProposed(t *testing.T) {
	original := map[string]any{"title": "A", "episodes": float64(12)}
	proposed := map[string]any{"title": "B"}
	changed := Changed(original, proposed, []string{"title", "episodes"})
	if !reflect.DeepEqual(changed, []string{"title"}) {
		t.Fatalf("fields absent from proposed are never candidates, got %v", changed)
	}
}

func TestChangedArrayOrderInsensitive(t *testing.T) {
	original := map[string]any{"tags": []any{"a", "b"}}
	proposed := map[string]any{"tags": []any{"b", "a"}}
	if changed := Changed(original, proposed, []string{"tags"}); len(changed) != 0 {
		t.Fatalf("reordered arrays are not a change, got %v", changed)
	}
}

func TestChangedSameDayTimestamps(t *testing.T) {
	original := map[string]any{"startDate": "2024-03-01T08:00:00Z"}
	proposed := map[string]any{"startDate": "2024-03-01T20:15:00Z"}
	if changed := Changed(original, proposed, []string{"startDate"}); len(changed) != 0 {
		t.Fatalf("same-day timestamps are not a change, got %v", changed)
	}
}

func TestChangedPreservesProposedKeyOrder(t *testing.T) {
	original := map[string]any{}
	proposed := map[string]any{"zeta": "1", "alpha": "2", "mid": "3"}
	order := []string{"zeta", "alpha", "mid"}
	changed := Changed(original, proposed, order)
	if !reflect.DeepEqual(changed, order) {
		t.Fatalf("changed keys must follow proposed insertion order, got %v", changed)
	}
}

func TestOrderedKeys(t *testing.T) {
	raw := json.RawMessage(`{"zeta": 1, "alpha": {"nested": true, "more": [1, {"deep": 2}]}, "mid": [1,2,3]}`)
	keys, err := OrderedKeys(raw)
	if err != nil {
		t.Fatalf("OrderedKeys: %v", err)
	}
	if !reflect.DeepEqual(keys, []string{"zeta", "alpha", "mid"}) {
		t.Fatalf("expected top-level keys in insertion order, got %v", keys)
	}
}

func TestOrderedKeysRejectsNonObject(t *testing.T) {
	if _, err := OrderedKeys(json.RawMessage(`[1,2,3]`)); err == nil {
		t.Fatalf("expected error for non-object payload")
	}
}

func TestFormatValue(t *testing.T) {
	if got := FormatValue(nil); got != "null" {
		t.Errorf("nil should render as the literal null, got %q", got)
	}
	if got := FormatValue("title"); got != "title" {
		t.Errorf("strings render as-is, got %q", got)
	}
	if got := FormatValue(float64(24)); got != "24" {
		t.Errorf("numbers render via plain coercion, got %q", got)
	}
	object := map[string]any{"large": "a.png"}
	got := FormatValue(object)
	want := "{\n  \"large\": \"a.png\"\n}"
	if got != want {
		t.Errorf("objects render as indented JSON, got %q", got)
	}
}

func TestPairs(t *testing.T) {
	original := map[string]any{"episodes": float64(12)}
	proposed := map[string]any{"episodes": float64(24), "synopsis": "x"}
	pairs := Pairs(original, proposed, []string{"episodes", "synopsis"})
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Original != "12" || pairs[0].Proposed != "24" {
		t.Errorf("unexpected episodes pair: %+v", pairs[0])
	}
	if pairs[1].Original != "null" || pairs[1].Proposed != "x" {
		t.Errorf("missing original must render as null: %+v", pairs[1])
	}
}
