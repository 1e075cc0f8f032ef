// Package database implements the in-memory record store behind listingd.
//
// A Store holds a fixed set of named collections. Each collection is an
// ordered slice of records kept in insertion order. A single mutex guards
// the whole store and every operation holds it for its full duration, so
// callers never observe a partially applied mutation.
//
// # Records
//
// A Record is a JSON-like map. Every stored record carries three system
// fields:
//
//   - id: a random UUID assigned by Create, or the feed id for seeded rows
//   - created_at: RFC 3339 UTC timestamp stamped once
//   - updated_at: RFC 3339 UTC timestamp refreshed on every Update
//
// All reads return deep copies. Mutating a returned record never affects
// the store.
//
// # Missing records
//
// GetByID and Update return a nil record and Delete returns false when no
// record matches. Only an unknown collection name is reported as an error.
//
// # Usage
//
//	store := database.New()
//	rec, err := store.Create(database.CollectionUsers, database.Record{"username": "alice"})
//	if err != nil {
//	    return err
//	}
//	store.Update(database.CollectionUsers, rec.ID(), database.Record{"is_active": false})
package database
