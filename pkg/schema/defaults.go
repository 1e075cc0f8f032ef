package schema

import "github.com/terranova-labs/listingd/pkg/database"

// ApplyCreateDefaults fills optional fields missing from a create body.
// body uses external names and is modified in place.
func ApplyCreateDefaults(collection string, body map[string]any) {
	switch collection {
	case database.CollectionUsers:
		setDefault(body, "email", nil)
		setDefault(body, "is_active", true)
	case database.CollectionSessions:
		setDefault(body, "is_valid", true)
	case database.CollectionListings:
		setDefault(body, "developmentName", nil)
		setDefault(body, "isFeatured", false)
		setDefault(body, "madeVisibleAt", nil)
		setDefault(body, "photos", []any{})
		setDefault(body, "description", "")
	}
}

func setDefault(body map[string]any, key string, value any) {
	if _, ok := body[key]; !ok {
		body[key] = value
	}
}
