package database

import (
	"errors"
	"fmt"
	"net/http"
)

// Sentinel errors for store operations.
var (
	// ErrUnknownCollection is returned when a collection name is not one of
	// the fixed collections.
	ErrUnknownCollection = errors.New("unknown collection")

	// ErrDuplicateID is returned by Insert when a record with the same id
	// already exists in the collection.
	ErrDuplicateID = errors.New("duplicate record id")

	// ErrInvalidSnapshot is returned by ImportData when a snapshot is malformed.
	ErrInvalidSnapshot = errors.New("invalid snapshot")

	// ErrInvalidFilter is returned by Find when a JSONPath filter key does not parse.
	ErrInvalidFilter = errors.New("invalid filter")
)

// CollectionError reports an operation on a collection that does not exist.
type CollectionError struct {
	Name string
}

func (e *CollectionError) Error() string {
	return fmt.Sprintf("collection %q: %v", e.Name, ErrUnknownCollection)
}

// Unwrap allows errors.Is(err, ErrUnknownCollection).
func (e *CollectionError) Unwrap() error {
	return ErrUnknownCollection
}

// StatusCode returns the HTTP status code for this error.
func (e *CollectionError) StatusCode() int {
	return http.StatusBadRequest
}

// Hint returns a user-friendly suggestion for resolving this error.
func (e *CollectionError) Hint() string {
	return fmt.Sprintf("Collection %q does not exist. Valid collections: %v.", e.Name, Collections())
}

// DuplicateIDError is returned when inserting a record whose id is taken.
type DuplicateIDError struct {
	Collection string
	ID         string
}

func (e *DuplicateIDError) Error() string {
	return fmt.Sprintf("collection %q record %q: %v", e.Collection, e.ID, ErrDuplicateID)
}

// Unwrap allows errors.Is(err, ErrDuplicateID).
func (e *DuplicateIDError) Unwrap() error {
	return ErrDuplicateID
}

// StatusCode returns the HTTP status code for this error.
func (e *DuplicateIDError) StatusCode() int {
	return http.StatusConflict
}

func unknownCollection(name string) error {
	return &CollectionError{Name: name}
}
