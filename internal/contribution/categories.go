// Package contribution holds the contributor-side domain rules: entity
// categories, the admin-field exclusion filter, and the edit-session draft.
package contribution

// EntityType is the closed set of contributable catalog entity kinds.
type EntityType string

const (
	EntitySeries    EntityType = "series"
	EntityCharacter EntityType = "character"
	EntityStaff     EntityType = "staff"
	EntityStudio    EntityType = "studio"
)

// Category is a named grouping of an entity's editable fields, used to
// scope a contribution session. Purely client-facing; never persisted on
// the contribution record.
type Category string

const (
	CategoryBasicInfo   Category = "BASIC_INFO"
	CategoryMedia       Category = "MEDIA"
	CategoryContent     Category = "CONTENT"
	CategoryReleaseInfo Category = "RELEASE_INFO"
	CategoryAdvanced    Category = "ADVANCED"
)

// categoryFields is a static lookup table, not computed from entity data.
var categoryFields = map[EntityType]map[Category][]string{
	EntitySeries: {
		CategoryBasicInfo:   {"title", "nativeTitle", "romajiTitle", "synonyms", "format", "countryOfOrigin", "source"},
		CategoryMedia:       {"coverImage", "bannerImage", "trailer", "externalLinks"},
		CategoryContent:     {"synopsis", "genres", "tags"},
		CategoryReleaseInfo: {"status", "season", "seasonYear", "startDate", "endDate", "episodes", "duration"},
		CategoryAdvanced:    {"studios", "relations", "hashtag", "ageRating"},
	},
	EntityCharacter: {
		CategoryBasicInfo: {"name", "nativeName", "alternativeNames", "gender", "age", "bloodType"},
		CategoryMedia:     {"image"},
		CategoryContent:   {"description"},
		CategoryAdvanced:  {"dateOfBirth", "favouriteOrder"},
	},
	EntityStaff: {
		CategoryBasicInfo: {"name", "nativeName", "language", "homeTown"},
		CategoryMedia:     {"image"},
		CategoryContent:   {"description", "primaryOccupations"},
		CategoryAdvanced:  {"dateOfBirth", "yearsActive"},
	},
	EntityStudio: {
		CategoryBasicInfo: {"name", "isAnimationStudio"},
		CategoryMedia:     {"logo"},
		CategoryContent:   {"description"},
		CategoryAdvanced:  {"externalLinks"},
	},
}

// categoryOrder fixes the presentation order of categories.
var categoryOrder = []Category{
	CategoryBasicInfo,
	CategoryMedia,
	CategoryContent,
	CategoryReleaseInfo,
	CategoryAdvanced,
}

// ValidEntityType reports whether t names a contributable entity kind.
func ValidEntityType(t EntityType) bool {
	_, ok := categoryFields[t]
	return ok
}

// Categories returns the ordered category list defined for an entity type.
func Categories(t EntityType) []Category {
	fields, ok := categoryFields[t]
	if !ok {
		return nil
	}
	out := make([]Category, 0, len(fields))
	for _, c := range categoryOrder {
		if _, defined := fields[c]; defined {
			out = append(out, c)
		}
	}
	return out
}

// CategoryFields returns the fixed field list of a category, or nil when
// the entity type or category is unknown.
func CategoryFields(t EntityType, c Category) []string {
	fields, ok := categoryFields[t]
	if !ok {
		return nil
	}
	return fields[c]
}

// FieldCategory returns the category a field belongs to, if any.
func FieldCategory(t EntityType, field string) (Category, bool) {
	for _, c := range Categories(t) {
		for _, name := range categoryFields[t][c] {
			if name == field {
				return c, true
			}
		}
	}
	return "", false
}

// EditableFields returns every field of the entity type across categories,
// in category order.
func EditableFields(t EntityType) []string {
	var out []string
	for _, c := range Categories(t) {
		out = append(out, categoryFields[t][c]...)
	}
	return out
}
