// Package id provides identifier generation for stored records.
//
// Records created through the store receive a random UUID v4. Seeded
// listings keep their numeric feed id and never pass through this package.
//
//   - UUID: random UUID v4 string, the default record id
//   - Short: 16-character hex id for request correlation in logs
package id
