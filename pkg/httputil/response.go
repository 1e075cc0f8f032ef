// Package httputil provides shared HTTP utilities for consistent response handling.
package httputil

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// TimestampFormat is the layout of the timestamp field in every envelope.
const TimestampFormat = "2006-01-02T15:04:05.000000Z07:00"

// DefaultMaxBodyBytes caps request bodies read by DecodeJSON.
const DefaultMaxBodyBytes = 1 << 20

// Decode errors.
var (
	ErrEmptyBody    = errors.New("request body is empty")
	ErrInvalidJSON  = errors.New("request body is not valid JSON")
	ErrBodyTooLarge = errors.New("request body too large")
	ErrNotAnObject  = errors.New("request body must be a JSON object")
)

// Timestamp returns the current UTC time in TimestampFormat.
func Timestamp() string {
	return time.Now().UTC().Format(TimestampFormat)
}

// ErrorEnvelope is the body of every error reply.
type ErrorEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	ErrorCode string `json:"error_code,omitempty"`
	Details   any    `json:"details,omitempty"`
}

// SuccessEnvelope wraps a successful result with a message.
type SuccessEnvelope struct {
	Success   bool   `json:"success"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
	Data      any    `json:"data,omitempty"`
}

// WriteJSON writes a JSON response with the given status code.
// It sets the Content-Type header to application/json.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		_ = json.NewEncoder(w).Encode(data)
	}
}

// WriteError writes an error envelope with the given status code.
func WriteError(w http.ResponseWriter, status int, errCode, message string) {
	WriteErrorWithDetails(w, status, errCode, message, nil)
}

// WriteErrorWithDetails writes an error envelope carrying extra details,
// such as per-field validation errors.
func WriteErrorWithDetails(w http.ResponseWriter, status int, errCode, message string, details any) {
	WriteJSON(w, status, ErrorEnvelope{
		Success:   false,
		Message:   message,
		Timestamp: Timestamp(),
		ErrorCode: errCode,
		Details:   details,
	})
}

// WriteSuccess writes a success envelope.
func WriteSuccess(w http.ResponseWriter, status int, message string, data any) {
	WriteJSON(w, status, SuccessEnvelope{
		Success:   true,
		Message:   message,
		Timestamp: Timestamp(),
		Data:      data,
	})
}

// WriteOK writes a 200 OK response with data.
func WriteOK(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusOK, data)
}

// WriteCreated writes a 201 Created response with the created resource.
func WriteCreated(w http.ResponseWriter, data any) {
	WriteJSON(w, http.StatusCreated, data)
}

// StatusCode returns the HTTP_<status> error code used for plain HTTP errors.
func StatusCode(status int) string {
	return fmt.Sprintf("HTTP_%d", status)
}

// WriteStatusError writes an envelope whose error code is HTTP_<status>.
func WriteStatusError(w http.ResponseWriter, status int, message string) {
	WriteError(w, status, StatusCode(status), message)
}

// DecodeJSON reads a JSON object from r into a map, limiting the body to
// maxBytes (DefaultMaxBodyBytes when <= 0).
func DecodeJSON(w http.ResponseWriter, r *http.Request, maxBytes int64) (map[string]any, error) {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBodyBytes
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return nil, fmt.Errorf("%w: max %d bytes", ErrBodyTooLarge, maxBytes)
		}
		return nil, fmt.Errorf("failed to read request body: %w", err)
	}
	if len(body) == 0 {
		return nil, ErrEmptyBody
	}

	var v any
	if err := json.Unmarshal(body, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	obj, ok := v.(map[string]any)
	if !ok {
		return nil, ErrNotAnObject
	}
	return obj, nil
}
