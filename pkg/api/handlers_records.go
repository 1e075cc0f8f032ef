package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/httputil"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// Pagination bounds for list endpoints.
const (
	DefaultLimit = 100
	MaxLimit     = 1000
)

// Query parameters that are not record filters.
const (
	paramSkip  = "skip"
	paramLimit = "limit"
	paramQuery = "q"
)

type page struct {
	skip  int
	limit int
}

func parsePage(r *http.Request) (page, string) {
	p := page{skip: 0, limit: DefaultLimit}
	q := r.URL.Query()

	if v := q.Get(paramSkip); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return p, "skip must be a non-negative integer"
		}
		p.skip = n
	}
	if v := q.Get(paramLimit); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > MaxLimit {
			return p, "limit must be an integer between 1 and " + strconv.Itoa(MaxLimit)
		}
		p.limit = n
	}
	return p, ""
}

func (p page) apply(recs []database.Record) []database.Record {
	if p.skip >= len(recs) {
		return []database.Record{}
	}
	end := min(p.skip+p.limit, len(recs))
	return recs[p.skip:end]
}

// queryFilters turns the remaining query parameters into store filters.
// Keys use external names and may be dotted ("addressDetails.city") or
// JSONPath ("$.photos[*].mimeType").
func queryFilters(collection string, r *http.Request) map[string]any {
	filters := map[string]any{}
	for key, values := range r.URL.Query() {
		if key == paramSkip || key == paramLimit || key == paramQuery || len(values) == 0 {
			continue
		}
		internal := schema.InternalKey(collection, key)
		if !strings.HasPrefix(internal, "$") && strings.Contains(internal, ".") {
			internal = "$." + internal
		}
		filters[internal] = queryValue(internal, values[len(values)-1])
	}
	return filters
}

// queryValue turns a query string value into a filter value. Values that
// decode as JSON match either the decoded value or the raw string, so
// ?bedrooms=3 finds the number 3 and ?username=12345 still finds the
// string "12345". Identifiers always stay strings.
func queryValue(key, raw string) any {
	last := key[strings.LastIndexAny(key, ".$")+1:]
	if last == database.FieldID || strings.HasSuffix(last, "_id") {
		return raw
	}
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}
	return database.AnyOf{v, raw}
}

func (s *Server) handleList(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	p, problem := parsePage(r)
	if problem != "" {
		s.writeStatusError(w, http.StatusBadRequest, problem)
		return
	}

	recs, err := s.store.Find(collection, queryFilters(collection, r))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	httputil.WriteOK(w, schema.ListPage{
		Data:  schema.ToExternalAll(collection, p.apply(recs)),
		Total: len(recs),
		Skip:  p.skip,
		Limit: p.limit,
	})
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	rec, err := s.store.GetByID(collection, r.PathValue("id"))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if rec == nil {
		s.writeNotFound(w, ErrMsgRecordNotFound)
		return
	}
	httputil.WriteOK(w, schema.ToExternal(collection, rec))
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	body, err := httputil.DecodeJSON(w, r, 0)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	if err := s.validator.Validate(collection, schema.OpCreate, body); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	schema.ApplyCreateDefaults(collection, body)
	if collection == database.CollectionSessions {
		if err := s.prepareSession(body); err != nil {
			s.writeInternalError(w, r, err)
			return
		}
	}

	rec, err := s.store.Create(collection, schema.ToInternal(collection, body))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	httputil.WriteCreated(w, schema.ToExternal(collection, rec))
}

// prepareSession fills expires_at and mints a signed session_token when
// the client did not supply them.
func (s *Server) prepareSession(body map[string]any) error {
	expiresAt := s.tokens.DefaultExpiry()
	if v, ok := body["expires_at"].(string); ok && v != "" {
		t, err := time.Parse(time.RFC3339Nano, v)
		if err == nil {
			expiresAt = t
		}
	}
	body["expires_at"] = database.FormatTime(expiresAt)

	if v, ok := body["session_token"].(string); ok && v != "" {
		return nil
	}
	userID, _ := body["user_id"].(string)
	token, err := s.tokens.Issue(userID, expiresAt)
	if err != nil {
		return err
	}
	body["session_token"] = token
	return nil
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	body, err := httputil.DecodeJSON(w, r, 0)
	if err != nil {
		s.writeBodyError(w, err)
		return
	}
	if err := s.validator.Validate(collection, schema.OpUpdate, body); err != nil {
		s.writeStoreError(w, r, err)
		return
	}

	rec, err := s.store.Update(collection, r.PathValue("id"), schema.ToInternal(collection, body))
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if rec == nil {
		s.writeNotFound(w, ErrMsgRecordNotFound)
		return
	}
	httputil.WriteOK(w, schema.ToExternal(collection, rec))
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	collection, ok := s.requireCollection(w, r)
	if !ok {
		return
	}
	recordID := r.PathValue("id")
	deleted, err := s.store.Delete(collection, recordID)
	if err != nil {
		s.writeStoreError(w, r, err)
		return
	}
	if !deleted {
		s.writeNotFound(w, ErrMsgRecordNotFound)
		return
	}
	httputil.WriteSuccess(w, http.StatusOK, "Record deleted successfully", map[string]string{"id": recordID})
}
