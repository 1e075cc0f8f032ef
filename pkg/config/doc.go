// Package config holds the runtime settings of listingd.
//
// Settings are resolved in layers, each overriding the previous one:
//
//  1. Defaults (see Default)
//  2. An optional YAML or JSON settings file
//  3. A .env file in the working directory, if present
//  4. Process environment variables prefixed with LISTINGD_
//  5. Command-line flags, applied by the cli package
//
// Environment variable names are matched case-insensitively, so
// LISTINGD_PORT and listingd_port are equivalent.
package config
