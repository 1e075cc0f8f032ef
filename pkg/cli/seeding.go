package cli

import (
	"fmt"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/seed"
)

// seedSource selects which listing feeds populate a store.
type seedSource struct {
	bundled bool
	files   []string
}

// listings returns the raw feed entries from every selected source.
func (src seedSource) listings() ([]map[string]any, error) {
	var out []map[string]any
	if src.bundled {
		bundled, err := seed.Listings()
		if err != nil {
			return nil, err
		}
		out = append(out, bundled...)
	}
	if len(src.files) > 0 {
		extra, err := seed.LoadFiles(src.files)
		if err != nil {
			return nil, err
		}
		out = append(out, extra...)
	}
	return out, nil
}

// load inserts every selected listing into store.
func (src seedSource) load(store *database.Store) (int, error) {
	listings, err := src.listings()
	if err != nil {
		return 0, err
	}
	n, err := seed.Load(store, listings)
	if err != nil {
		return n, fmt.Errorf("seeding listings: %w", err)
	}
	return n, nil
}
