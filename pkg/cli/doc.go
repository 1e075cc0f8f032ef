// Package cli implements the listingd command line.
//
//	listingd [serve]   run the HTTP API (default)
//	listingd version   print build information
//	listingd config    print the effective settings as YAML
//	listingd seed      validate and summarise seed data
//	listingd export    seed a fresh store and write a snapshot file
package cli
