package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/httputil"
	"github.com/terranova-labs/listingd/pkg/logging"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// MaxImportBytes bounds the body of POST {prefix}/database/import.
const MaxImportBytes = 16 << 20

func (s *Server) databaseStatus() schema.DatabaseStatus {
	st := s.store.Status()
	return schema.DatabaseStatus{
		Collections:  st.Collections,
		TotalRecords: st.TotalRecords,
		RecordCounts: st.RecordCounts,
	}
}

func (s *Server) handleDatabaseStatus(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, s.databaseStatus())
}

// handleDatabaseReset empties every collection. With ?reseed=true the store
// is replaced by a freshly seeded one instead.
func (s *Server) handleDatabaseReset(w http.ResponseWriter, r *http.Request) {
	reseed := false
	if v := r.URL.Query().Get("reseed"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			s.writeStatusError(w, http.StatusBadRequest, "reseed must be a boolean")
			return
		}
		reseed = b
	}

	message := "Database reset"
	if reseed && s.reseed != nil {
		// seed a scratch store so the live one is swapped in one step and
		// left untouched when seeding fails
		fresh := database.New(database.WithLogger(s.log))
		n, err := s.reseed(fresh)
		if err != nil {
			s.writeInternalError(w, r, fmt.Errorf("reseed after reset: %w", err))
			return
		}
		if err := s.store.ImportData(fresh.ExportData()); err != nil {
			s.writeInternalError(w, r, fmt.Errorf("reseed after reset: %w", err))
			return
		}
		message = fmt.Sprintf("Database reset and reseeded with %d listings", n)
	} else {
		s.store.Reset()
	}
	logging.FromContext(r.Context(), s.log).Info("database reset", "reseed", reseed)
	httputil.WriteSuccess(w, http.StatusOK, message, s.databaseStatus())
}

func (s *Server) handleDatabaseExport(w http.ResponseWriter, r *http.Request) {
	httputil.WriteOK(w, s.store.ExportData())
}

func (s *Server) handleDatabaseImport(w http.ResponseWriter, r *http.Request) {
	body, err := httputil.DecodeJSON(w, r, MaxImportBytes)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	snap, err := snapshotFromBody(body)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if err := s.store.ImportData(snap); err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Database imported", s.databaseStatus())
}

// snapshotFromBody converts a decoded JSON object into a snapshot. Every
// value must be an array of objects.
func snapshotFromBody(body map[string]any) (database.Snapshot, error) {
	snap := make(database.Snapshot, len(body))
	for name, v := range body {
		items, ok := v.([]any)
		if !ok {
			return nil, fmt.Errorf("%w: %s must be an array", database.ErrInvalidSnapshot, name)
		}
		recs := make([]database.Record, 0, len(items))
		for i, item := range items {
			obj, ok := item.(map[string]any)
			if !ok {
				return nil, fmt.Errorf("%w: %s[%d] must be an object", database.ErrInvalidSnapshot, name, i)
			}
			recs = append(recs, database.Record(obj))
		}
		snap[name] = recs
	}
	return snap, nil
}
