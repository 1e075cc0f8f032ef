// Package schema defines the wire shapes of listingd and validates request
// payloads against them.
//
// Records are stored with snake_case field names. Listings are exposed to
// clients with camelCase names matching the listing feed, so this package
// owns the alias tables that translate in both directions (ToExternal and
// ToInternal). Other collections use identity mapping.
//
// Request bodies are validated with JSON Schema documents embedded from the
// schemas directory. Validation always runs on the external (client-facing)
// shape, before translation.
package schema
