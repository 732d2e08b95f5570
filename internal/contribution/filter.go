package contribution

// excludedFields are admin-only or system-managed keys stripped from a
// contributor's proposed payload before it reaches the review pipeline.
// The list is fixed and closed; review never re-applies it, so an admin
// always sees exactly what was submitted.
var excludedFields = map[string]struct{}{
	"locked":          {},
	"approved":        {},
	"featured":        {},
	"averageScore":    {},
	"popularity":      {},
	"favourites":      {},
	"trending":        {},
	"moderationNotes": {},
	"notes":           {},
}

// FilterExcluded returns a copy of payload without admin/system-managed
// keys, and the key order with the same keys removed. Runs once, at
// submission time.
func FilterExcluded(payload map[string]any, order []string) (map[string]any, []string) {
	filtered := make(map[string]any, len(payload))
	for key, value := range payload {
		if _, excluded := excludedFields[key]; excluded {
			continue
		}
		filtered[key] = value
	}
	filteredOrder := make([]string, 0, len(order))
	for _, key := range order {
		if _, excluded := excludedFields[key]; excluded {
			continue
		}
		if _, kept := filtered[key]; kept {
			filteredOrder = append(filteredOrder, key)
		}
	}
	return filtered, filteredOrder
}

// Excluded reports whether a field is admin/system-managed.
func Excluded(field string) bool {
	_, ok := excludedFields[field]
	return ok
}
