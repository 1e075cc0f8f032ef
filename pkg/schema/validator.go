package schema

import (
	"embed"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/terranova-labs/listingd/pkg/database"
)

//go:embed schemas/*.json
var schemaFS embed.FS

// Operation selects which request schema applies.
type Operation string

// Request operations.
const (
	OpCreate Operation = "create"
	OpUpdate Operation = "update"
)

// FieldError is a single validation failure.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every problem found in a request body.
type ValidationError struct {
	Errors []FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, 0, len(e.Errors))
	for _, fe := range e.Errors {
		if fe.Field == "" {
			msgs = append(msgs, fe.Message)
			continue
		}
		msgs = append(msgs, fmt.Sprintf("%s: %s", fe.Field, fe.Message))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// StatusCode returns the HTTP status code for this error.
func (e *ValidationError) StatusCode() int {
	return http.StatusUnprocessableEntity
}

var schemaNames = map[string]string{
	database.CollectionUsers:    "user",
	database.CollectionSessions: "session",
	database.CollectionListings: "listing",
}

// Validator checks request bodies against the embedded JSON Schemas.
type Validator struct {
	schemas map[string]*jsonschema.Schema
}

// NewValidator compiles every embedded schema.
func NewValidator() (*Validator, error) {
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft2020
	compiler.AssertFormat = true

	entries, err := schemaFS.ReadDir("schemas")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded schemas: %w", err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := path.Join("schemas", e.Name())
		f, err := schemaFS.Open(name)
		if err != nil {
			return nil, fmt.Errorf("failed to open schema %s: %w", name, err)
		}
		err = compiler.AddResource(name, f)
		_ = f.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to add schema resource %s: %w", name, err)
		}
		names = append(names, name)
	}

	v := &Validator{schemas: make(map[string]*jsonschema.Schema, len(names))}
	for _, name := range names {
		s, err := compiler.Compile(name)
		if err != nil {
			return nil, fmt.Errorf("failed to compile schema %s: %w", name, err)
		}
		v.schemas[strings.TrimSuffix(path.Base(name), ".json")] = s
	}
	return v, nil
}

// MustNewValidator is like NewValidator but panics on error.
// The schemas are embedded, so failure means a broken build.
func MustNewValidator() *Validator {
	v, err := NewValidator()
	if err != nil {
		panic(err)
	}
	return v
}

func (v *Validator) schemaFor(collection string, op Operation) *jsonschema.Schema {
	base, ok := schemaNames[collection]
	if !ok {
		return v.schemas["record"]
	}
	return v.schemas[base+"."+string(op)]
}

// Validate checks body for the given collection and operation. It returns
// nil or a *ValidationError.
func (v *Validator) Validate(collection string, op Operation, body map[string]any) error {
	s := v.schemaFor(collection, op)
	if s == nil {
		return nil
	}

	err := s.Validate(normalize(body))
	if err == nil {
		return nil
	}

	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return &ValidationError{Errors: []FieldError{{Message: err.Error()}}}
	}

	result := &ValidationError{}
	collectSchemaErrors(verr, result)
	sort.SliceStable(result.Errors, func(i, j int) bool {
		return result.Errors[i].Field < result.Errors[j].Field
	})
	return result
}

// normalize converts a decoded body into plain JSON value types.
func normalize(body map[string]any) any {
	if body == nil {
		return nil
	}
	return map[string]any(database.Record(body).Clone())
}

func collectSchemaErrors(err *jsonschema.ValidationError, result *ValidationError) {
	if len(err.Causes) == 0 {
		result.Errors = append(result.Errors, FieldError{
			Field:   fieldFromPointer(err.InstanceLocation),
			Message: err.Message,
		})
		return
	}
	for _, cause := range err.Causes {
		collectSchemaErrors(cause, result)
	}
}

// fieldFromPointer converts a JSON Pointer to dot notation.
func fieldFromPointer(ptr string) string {
	if ptr == "" || ptr == "/" {
		return ""
	}
	return strings.ReplaceAll(strings.TrimPrefix(ptr, "/"), "/", ".")
}
