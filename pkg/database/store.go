package database

import (
	"log/slog"
	"sync"
	"time"

	"github.com/terranova-labs/listingd/internal/id"
	"github.com/terranova-labs/listingd/pkg/logging"
)

// Fixed collection names.
const (
	CollectionUsers    = "users"
	CollectionSessions = "sessions"
	CollectionListings = "listings"
	CollectionData     = "data"
)

var collectionNames = []string{
	CollectionUsers,
	CollectionSessions,
	CollectionListings,
	CollectionData,
}

// Collections returns the fixed collection names in canonical order.
func Collections() []string {
	out := make([]string, len(collectionNames))
	copy(out, collectionNames)
	return out
}

// IsCollection reports whether name is one of the fixed collections.
func IsCollection(name string) bool {
	for _, c := range collectionNames {
		if c == name {
			return true
		}
	}
	return false
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

// WithIDGenerator sets the function used to assign ids in Create.
func WithIDGenerator(gen func() string) Option {
	return func(s *Store) {
		if gen != nil {
			s.newID = gen
		}
	}
}

// WithLogger sets the logger for store diagnostics.
func WithLogger(log *slog.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// Store is a mutex-guarded map of collection name to ordered records.
type Store struct {
	mu          sync.Mutex
	collections map[string][]Record
	now         func() time.Time
	newID       func() string
	log         *slog.Logger
}

// New creates an empty store holding every fixed collection.
func New(opts ...Option) *Store {
	s := &Store{
		now:   time.Now,
		newID: id.UUID,
		log:   logging.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.collections = emptyCollections()
	return s
}

func emptyCollections() map[string][]Record {
	m := make(map[string][]Record, len(collectionNames))
	for _, name := range collectionNames {
		m[name] = []Record{}
	}
	return m
}

// collection returns the live slice for name. Caller must hold s.mu.
func (s *Store) collection(name string) ([]Record, error) {
	records, ok := s.collections[name]
	if !ok {
		return nil, unknownCollection(name)
	}
	return records, nil
}

func (s *Store) timestamp() string {
	return FormatTime(s.now())
}

// GetAll returns copies of every record in the collection in insertion order.
func (s *Store) GetAll(collection string) ([]Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	return cloneAll(records), nil
}

// GetByID returns a copy of the first record whose id matches.
// A nil record with a nil error means not found.
func (s *Store) GetByID(collection, recordID string) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	if i := indexOf(records, recordID); i >= 0 {
		return records[i].Clone(), nil
	}
	return nil, nil
}

// Create stores a copy of fields with a fresh id and timestamps.
// Caller-supplied system fields are overwritten.
func (s *Store) Create(collection string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	rec := fields.Clone()
	if rec == nil {
		rec = Record{}
	}
	now := s.timestamp()
	rec[FieldID] = s.newID()
	rec[FieldCreatedAt] = now
	rec[FieldUpdatedAt] = now

	s.collections[collection] = append(records, rec)
	s.log.Debug("record created", "collection", collection, "id", rec.ID())
	return rec.Clone(), nil
}

// Insert appends a pre-built record that already carries an id, stamping
// both timestamps. It is used for seeding and bypasses id generation.
func (s *Store) Insert(collection string, rec Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	stored := rec.Clone()
	if stored == nil {
		stored = Record{}
	}
	if stored.ID() == "" {
		stored[FieldID] = s.newID()
	}
	stored[FieldID] = stored.ID()
	if indexOf(records, stored.ID()) >= 0 {
		return nil, &DuplicateIDError{Collection: collection, ID: stored.ID()}
	}

	now := s.timestamp()
	stored[FieldCreatedAt] = now
	stored[FieldUpdatedAt] = now

	s.collections[collection] = append(records, stored)
	return stored.Clone(), nil
}

// Update merges fields over the matching record and refreshes updated_at.
// id and created_at are preserved. A nil record means not found.
func (s *Store) Update(collection, recordID string, fields Record) (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return nil, err
	}
	i := indexOf(records, recordID)
	if i < 0 {
		return nil, nil
	}

	rec := records[i]
	for k, v := range fields {
		switch k {
		case FieldID, FieldCreatedAt, FieldUpdatedAt:
			continue
		}
		rec[k] = copyValue(v)
	}

	now := s.timestamp()
	if now < rec.CreatedAt() {
		now = rec.CreatedAt()
	}
	rec[FieldUpdatedAt] = now

	s.log.Debug("record updated", "collection", collection, "id", recordID)
	return rec.Clone(), nil
}

// Delete removes the first record whose id matches and reports whether
// anything was removed.
func (s *Store) Delete(collection, recordID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return false, err
	}
	i := indexOf(records, recordID)
	if i < 0 {
		return false, nil
	}

	s.collections[collection] = append(records[:i:i], records[i+1:]...)
	s.log.Debug("record deleted", "collection", collection, "id", recordID)
	return true, nil
}

// Find returns copies of every record matching all filters. Keys starting
// with "$" are JSONPath expressions; other keys compare the top-level field.
// An empty filter returns the whole collection in insertion order.
func (s *Store) Find(collection string, filters map[string]any) ([]Record, error) {
	matcher, err := compileFilters(filters)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.collection(collection)
	if err != nil {
		return nil, err
	}

	out := make([]Record, 0, len(records))
	for _, rec := range records {
		if matcher.match(rec) {
			out = append(out, rec.Clone())
		}
	}
	return out, nil
}

// CollectionNames returns the collection names held by the store.
func (s *Store) CollectionNames() []string {
	return Collections()
}

// Reset empties every collection.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.collections = emptyCollections()
	s.log.Info("store reset")
}

// Status summarizes record counts per collection.
type Status struct {
	Collections  []string       `json:"collections" yaml:"collections"`
	TotalRecords int            `json:"total_records" yaml:"total_records"`
	RecordCounts map[string]int `json:"record_counts" yaml:"record_counts"`
}

// Status returns collection names and record counts.
func (s *Store) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()

	st := Status{
		Collections:  Collections(),
		RecordCounts: make(map[string]int, len(collectionNames)),
	}
	for _, name := range collectionNames {
		n := len(s.collections[name])
		st.RecordCounts[name] = n
		st.TotalRecords += n
	}
	return st
}

func indexOf(records []Record, recordID string) int {
	for i, rec := range records {
		if rec.ID() == recordID {
			return i
		}
	}
	return -1
}

func cloneAll(records []Record) []Record {
	out := make([]Record, len(records))
	for i, rec := range records {
		out[i] = rec.Clone()
	}
	return out
}

// RecordCounts returns the number of records per collection.
func (s *Store) RecordCounts() map[string]int {
	return s.Status().RecordCounts
}
