// Package seed loads the sample listing feed into a record store.
//
// The feed is a JSON array of listings in the nested camelCase shape used by
// the listing API (addressDetails, priceInCents, photos[].originalURL, ...).
// The bundled feed is embedded at build time; extra feeds in the same shape
// can be read from JSON or YAML files matched by glob patterns.
//
// Seeded listings keep their feed id as a decimal string and bypass the
// store's id generation.
package seed
