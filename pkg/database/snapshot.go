package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Snapshot is a full copy of store state keyed by collection name.
type Snapshot map[string][]Record

// ExportData returns a deep copy of every collection.
func (s *Store) ExportData() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := make(Snapshot, len(s.collections))
	for name, records := range s.collections {
		snap[name] = cloneAll(records)
	}
	return snap
}

// ImportData replaces the whole store with snap. Fixed collections absent
// from snap become empty. The store is left untouched when snap is invalid.
func (s *Store) ImportData(snap Snapshot) error {
	next := emptyCollections()
	for name, records := range snap {
		if !IsCollection(name) {
			return fmt.Errorf("%w: %w", ErrInvalidSnapshot, unknownCollection(name))
		}
		seen := make(map[string]bool, len(records))
		out := make([]Record, 0, len(records))
		for i, rec := range records {
			if err := validateSnapshotRecord(rec); err != nil {
				return fmt.Errorf("%w: %s[%d]: %v", ErrInvalidSnapshot, name, i, err)
			}
			if seen[rec.ID()] {
				return fmt.Errorf("%w: %w", ErrInvalidSnapshot, &DuplicateIDError{Collection: name, ID: rec.ID()})
			}
			seen[rec.ID()] = true
			c := rec.Clone()
			c[FieldID] = rec.ID()
			out = append(out, c)
		}
		next[name] = out
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.collections = next
	s.log.Info("store imported", "collections", len(snap))
	return nil
}

func validateSnapshotRecord(rec Record) error {
	if rec == nil {
		return errors.New("record is null")
	}
	for _, field := range []string{FieldID, FieldCreatedAt, FieldUpdatedAt} {
		if stringField(rec, field) == "" {
			return fmt.Errorf("missing %s", field)
		}
	}
	if _, err := ParseTime(rec.CreatedAt()); err != nil {
		return fmt.Errorf("created_at: %w", err)
	}
	if _, err := ParseTime(rec.UpdatedAt()); err != nil {
		return fmt.Errorf("updated_at: %w", err)
	}
	return nil
}

// SaveSnapshot writes the current state to path using atomic rename.
// The format is YAML for .yaml/.yml and JSON otherwise.
func (s *Store) SaveSnapshot(path string) error {
	snap := s.ExportData()

	var data []byte
	var err error
	if isYAML(path) {
		data, err = yaml.Marshal(snap)
	} else {
		data, err = json.MarshalIndent(snap, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// LoadSnapshot reads a snapshot file written by SaveSnapshot and imports it.
func (s *Store) LoadSnapshot(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read snapshot: %w", err)
	}

	var snap Snapshot
	if isYAML(path) {
		err = yaml.Unmarshal(data, &snap)
	} else {
		err = json.Unmarshal(data, &snap)
	}
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
	}
	return s.ImportData(snap)
}

func isYAML(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".yaml" || ext == ".yml"
}
