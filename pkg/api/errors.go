package api

import (
	"errors"
	"net/http"
	"strings"

	"github.com/terranova-labs/listingd/pkg/database"
	"github.com/terranova-labs/listingd/pkg/httputil"
	"github.com/terranova-labs/listingd/pkg/logging"
	"github.com/terranova-labs/listingd/pkg/schema"
)

// Error codes carried in the error_code field. Plain HTTP failures use
// HTTP_<status>.
const (
	CodeUnknownCollection = "UNKNOWN_COLLECTION"
	CodeInvalidJSON       = "INVALID_JSON"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidExpression = "INVALID_EXPRESSION"
	CodeInvalidFilter     = "INVALID_FILTER"
	CodeInvalidSnapshot   = "INVALID_SNAPSHOT"
	CodeDuplicateID       = "DUPLICATE_ID"
	CodeInternal          = "INTERNAL_ERROR"
)

// Generic messages returned in place of internal error text.
const (
	ErrMsgInternal       = "Internal server error"
	ErrMsgNotFound       = "Not Found"
	ErrMsgRecordNotFound = "Record not found"
	ErrMsgMethodNotAllow = "Method Not Allowed"
	ErrMsgValidation     = "Validation failed"
)

// writeError writes the error envelope and counts the error code.
func (s *Server) writeError(w http.ResponseWriter, status int, code, message string, details any) {
	_ = s.metrics.ErrorsTotal.Inc(code)
	httputil.WriteErrorWithDetails(w, status, code, message, details)
}

func (s *Server) writeStatusError(w http.ResponseWriter, status int, message string) {
	s.writeError(w, status, httputil.StatusCode(status), message, nil)
}

func (s *Server) writeNotFound(w http.ResponseWriter, message string) {
	s.writeStatusError(w, http.StatusNotFound, message)
}

func (s *Server) writeMethodNotAllowed(w http.ResponseWriter, allowed []string) {
	w.Header().Set("Allow", strings.Join(allowed, ", "))
	s.writeStatusError(w, http.StatusMethodNotAllowed, ErrMsgMethodNotAllow)
}

// writeBodyError maps a DecodeJSON failure.
func (s *Server) writeBodyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, httputil.ErrBodyTooLarge):
		s.writeStatusError(w, http.StatusRequestEntityTooLarge, err.Error())
	case errors.Is(err, httputil.ErrEmptyBody),
		errors.Is(err, httputil.ErrInvalidJSON),
		errors.Is(err, httputil.ErrNotAnObject):
		s.writeError(w, http.StatusBadRequest, CodeInvalidJSON, err.Error(), nil)
	default:
		s.writeStatusError(w, http.StatusBadRequest, err.Error())
	}
}

// writeStoreError maps errors from the store and the validator onto the
// envelope. Anything unrecognised is logged and reported as a 500 with a
// generic message.
func (s *Server) writeStoreError(w http.ResponseWriter, r *http.Request, err error) {
	var validation *schema.ValidationError
	var collection *database.CollectionError
	var duplicate *database.DuplicateIDError

	switch {
	case errors.As(err, &validation):
		s.writeError(w, validation.StatusCode(), CodeValidation, ErrMsgValidation,
			map[string]any{"errors": validation.Errors})
	case errors.Is(err, database.ErrInvalidSnapshot):
		s.writeError(w, http.StatusBadRequest, CodeInvalidSnapshot, err.Error(), nil)
	case errors.As(err, &collection):
		s.writeError(w, collection.StatusCode(), CodeUnknownCollection, err.Error(),
			map[string]any{"collections": database.Collections(), "hint": collection.Hint()})
	case errors.As(err, &duplicate):
		s.writeError(w, duplicate.StatusCode(), CodeDuplicateID, err.Error(), nil)
	case errors.Is(err, database.ErrInvalidFilter):
		s.writeError(w, http.StatusBadRequest, CodeInvalidFilter, err.Error(), nil)
	default:
		s.writeInternalError(w, r, err)
	}
}

func (s *Server) writeInternalError(w http.ResponseWriter, r *http.Request, err error) {
	logging.FromContext(r.Context(), s.log).Error("request failed",
		"method", r.Method,
		"path", r.URL.Path,
		"error", err,
	)
	s.writeError(w, http.StatusInternalServerError, CodeInternal, ErrMsgInternal, nil)
}

// requireCollection writes an error and returns false when the {collection}
// path value is not a known collection. A path that exists under another
// method, such as POST {prefix}/ping, is reported as 405.
func (s *Server) requireCollection(w http.ResponseWriter, r *http.Request) (string, bool) {
	name := r.PathValue("collection")
	if database.IsCollection(name) {
		return name, true
	}
	if allowed := s.allowedMethods(r, false); len(allowed) > 0 {
		s.writeMethodNotAllowed(w, allowed)
		return "", false
	}
	s.writeStoreError(w, r, &database.CollectionError{Name: name})
	return "", false
}

// handleFallback answers every request no route claims.
func (s *Server) handleFallback(w http.ResponseWriter, r *http.Request) {
	if allowed := s.allowedMethods(r, true); len(allowed) > 0 {
		s.writeMethodNotAllowed(w, allowed)
		return
	}
	s.writeNotFound(w, ErrMsgNotFound)
}
