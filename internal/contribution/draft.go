package contribution

import (
	"time"
)

// MaxNoteLength bounds the contributor note supplied at submission.
const MaxNoteLength = 2000

// Action is what a contribution does to its target entity.
type Action string

const (
	ActionCreate Action = "CREATE"
	ActionUpdate Action = "UPDATE"
)

// ValidAction reports whether a is a known contribution action.
func ValidAction(a Action) bool {
	return a == ActionCreate || a == ActionUpdate
}

// Draft is the single unified in-memory object a contribution session edits
// across wizard steps. Category selection is a view filter over the draft,
// not a data partition: deselecting a category hides its fields but keeps
// their values, so re-selecting brings prior edits back. Drafts are updated
// immutably and may be persisted for recovery, keyed by user and entity,
// and cleared on submit.
type Draft struct {
	EntityType EntityType     `json:"entityType"`
	EntityID   string         `json:"entityId"`
	Action     Action         `json:"action"`
	Categories []Category     `json:"categories"`
	Fields     map[string]any `json:"fields"`
	FieldOrder []string       `json:"fieldOrder"`
	Note       string         `json:"note"`
	UpdatedAt  time.Time      `json:"updatedAt"`
}

// NewDraft starts an empty edit session for an entity.
func NewDraft(entityType EntityType, entityID string, action Action) Draft {
	return Draft{
		EntityType: entityType,
		EntityID:   entityID,
		Action:     action,
		Fields:     map[string]any{},
		UpdatedAt:  time.Now().UTC(),
	}
}

// Selected reports whether a category is currently selected.
func (d Draft) Selected(c Category) bool {
	for _, selected := range d.Categories {
		if selected == c {
			return true
		}
	}
	return false
}

// Toggle returns a copy of the draft with the category selection flipped.
// Field values are untouched either way.
func (d Draft) Toggle(c Category) Draft {
	next := d.clone()
	if d.Selected(c) {
		kept := make([]Category, 0, len(d.Categories)-1)
		for _, selected := range d.Categories {
			if selected != c {
				kept = append(kept, selected)
			}
		}
		next.Categories = kept
	} else {
		next.Categories = append(next.Categories, c)
	}
	return next
}

// SelectAll returns a copy with every category of the entity type selected.
func (d Draft) SelectAll() Draft {
	next := d.clone()
	next.Categories = Categories(d.EntityType)
	return next
}

// DeselectAll returns a copy with no categories selected. Zero selected
// categories is a valid, if useless, state.
func (d Draft) DeselectAll() Draft {
	next := d.clone()
	next.Categories = nil
	return next
}

// SetField returns a copy with one field edited.
func (d Draft) SetField(key string, value any) Draft {
	next := d.clone()
	if _, seen := next.Fields[key]; !seen {
		next.FieldOrder = append(next.FieldOrder, key)
	}
	next.Fields[key] = value
	return next
}

// SetNote returns a copy with the contributor note replaced.
func (d Draft) SetNote(note string) Draft {
	next := d.clone()
	next.Note = note
	return next
}

// VisibleFields returns the fields whose category is currently selected,
// in draft insertion order. Hidden fields keep their values.
func (d Draft) VisibleFields() map[string]any {
	visible := make(map[string]any)
	for _, key := range d.FieldOrder {
		category, known := FieldCategory(d.EntityType, key)
		if !known {
			continue
		}
		if d.Selected(category) {
			visible[key] = d.Fields[key]
		}
	}
	return visible
}

func (d Draft) clone() Draft {
	next := d
	next.Fields = make(map[string]any, len(d.Fields))
	for key, value := range d.Fields {
		next.Fields[key] = value
	}
	next.FieldOrder = append([]string(nil), d.FieldOrder...)
	next.Categories = append([]Category(nil), d.Categories...)
	next.UpdatedAt = time.Now().UTC()
	return next
}
