package seed

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/schema"
)

//go:embed data/listings.json
var listingsJSON []byte

// ErrMissingID is returned when a feed entry has no usable id.
var ErrMissingID = errors.New("listing has no id")

// Listings returns a fresh copy of the bundled listing feed.
func Listings() ([]map[string]any, error) {
	var out []map[string]any
	if err := json.Unmarshal(listingsJSON, &out); err != nil {
		return nil, fmt.Errorf("failed to parse bundled listings: %w", err)
	}
	return out, nil
}

// Transform converts one feed entry into the store's internal listing shape.
func Transform(raw map[string]any) (database.Record, error) {
	listingID, err := feedID(raw["id"])
	if err != nil {
		return nil, err
	}

	rec := schema.ToInternal(database.CollectionListings, raw)
	rec[database.FieldID] = listingID

	setDefault(rec, "development_name", nil)
	setDefault(rec, "is_featured", false)
	setDefault(rec, "made_visible_at", nil)
	setDefault(rec, "photos", []any{})

	if addr, ok := rec["address_details"].(map[string]any); ok {
		setDefault(addr, "address_line2", "")
		if region, ok := addr["region"].(string); ok {
			addr["region"] = NormalizeRegion(region)
		}
	}
	return rec, nil
}

// Load transforms each listing and appends it to the listings collection.
// It returns the number of listings stored. Loading stops at the first error.
func Load(store *database.Store, listings []map[string]any) (int, error) {
	for i, raw := range listings {
		rec, err := Transform(raw)
		if err != nil {
			return i, fmt.Errorf("listing %d: %w", i, err)
		}
		if _, err := store.Insert(database.CollectionListings, rec); err != nil {
			return i, fmt.Errorf("listing %d: %w", i, err)
		}
	}
	return len(listings), nil
}

// LoadDefault loads the bundled feed into store.
func LoadDefault(store *database.Store) (int, error) {
	listings, err := Listings()
	if err != nil {
		return 0, err
	}
	return Load(store, listings)
}

// NormalizeRegion title-cases a region name ("north west" -> "North West").
func NormalizeRegion(region string) string {
	trimmed := strings.Join(strings.Fields(region), " ")
	return cases.Title(language.English).String(strings.ToLower(trimmed))
}

func feedID(v any) (string, error) {
	switch id := v.(type) {
	case string:
		if strings.TrimSpace(id) == "" {
			return "", ErrMissingID
		}
		return id, nil
	case float64:
		return strconv.FormatFloat(id, 'f', -1, 64), nil
	case int:
		return strconv.Itoa(id), nil
	case int64:
		return strconv.FormatInt(id, 10), nil
	case uint64:
		return strconv.FormatUint(id, 10), nil
	case nil:
		return "", ErrMissingID
	default:
		return "", fmt.Errorf("%w: unsupported id type %T", ErrMissingID, v)
	}
}

func setDefault(m map[string]any, key string, value any) {
	if _, ok := m[key]; !ok {
		m[key] = value
	}
}
