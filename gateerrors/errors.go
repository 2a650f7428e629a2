// Package gateerrors provides structured error types for oasgate.
//
// These error types enable programmatic error handling via errors.Is() and
// errors.As(), allowing callers to distinguish between the distinct failure
// modes of the dispatch pipeline and react to each appropriately.
package gateerrors

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel errors for use with errors.Is().
// These allow quick checks without type assertions.
var (
	// ErrNotFound indicates no path template matched the request path.
	ErrNotFound = errors.New("no matching operation")

	// ErrMethodNotAllowed indicates a path matched but defines no operation
	// for the request method.
	ErrMethodNotAllowed = errors.New("method not allowed")

	// ErrBadRequest indicates request parameter or body validation failed.
	ErrBadRequest = errors.New("request validation failed")

	// ErrControllerMissing indicates no controller resolves for the operation.
	ErrControllerMissing = errors.New("controller missing")

	// ErrResponseInvalid indicates the outgoing response violates the contract.
	ErrResponseInvalid = errors.New("response validation failed")

	// ErrGeneration indicates mock synthesis failed against a declared schema.
	ErrGeneration = errors.New("mock generation failed")

	// ErrBinding matches any BindingError.
	ErrBinding = errors.New("binding error")

	// ErrConfig matches any ConfigError.
	ErrConfig = errors.New("configuration error")
)

// Kind identifies the category of a per-request pipeline failure.
type Kind int

// Request error kinds, in pipeline order.
const (
	KindNotFound Kind = iota
	KindMethodNotAllowed
	KindBadRequest
	KindControllerMissing
	KindResponseInvalid
	KindGeneration
)

// String returns the kind name used in logs and diagnostic bodies.
func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindMethodNotAllowed:
		return "method_not_allowed"
	case KindBadRequest:
		return "bad_request"
	case KindControllerMissing:
		return "controller_missing"
	case KindResponseInvalid:
		return "response_invalid"
	case KindGeneration:
		return "generation_failed"
	default:
		return "unknown"
	}
}

// sentinel returns the sentinel error matching this kind.
func (k Kind) sentinel() error {
	switch k {
	case KindNotFound:
		return ErrNotFound
	case KindMethodNotAllowed:
		return ErrMethodNotAllowed
	case KindBadRequest:
		return ErrBadRequest
	case KindControllerMissing:
		return ErrControllerMissing
	case KindResponseInvalid:
		return ErrResponseInvalid
	case KindGeneration:
		return ErrGeneration
	default:
		return nil
	}
}

// DefaultStatus returns the HTTP status the pipeline emits for a kind when
// the caller has not overridden it. Generation and ResponseInvalid failures
// are internal faults and map to 500, as does a missing controller observed
// at request time.
func DefaultStatus(k Kind) int {
	switch k {
	case KindNotFound:
		return http.StatusNotFound
	case KindMethodNotAllowed:
		return http.StatusMethodNotAllowed
	case KindBadRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// FieldError is a single field-level validation failure nested inside a
// RequestError of kind BadRequest or ResponseInvalid.
type FieldError struct {
	// Path locates the offending field (e.g., "parameters.query.status"
	// or "response.body.items[2].name")
	Path string
	// Message describes the violation
	Message string
}

// Error returns a human-readable error message.
func (e FieldError) Error() string {
	if e.Path == "" {
		return e.Message
	}
	return e.Path + ": " + e.Message
}

// RequestError represents a per-request failure in the dispatch pipeline.
// It carries everything the error-handling chain needs: the kind, the HTTP
// status to emit, a human-readable detail, and field-level sub-errors for
// validation failures.
type RequestError struct {
	// Kind is the failure category
	Kind Kind
	// Status is the HTTP status code to emit
	Status int
	// Detail is a human-readable description of the failure
	Detail string
	// Fields holds field-level sub-errors for validation failures
	Fields []FieldError
	// Allow lists the methods defined for the matched path; populated only
	// for MethodNotAllowed so the response can carry an Allow header
	Allow []string
	// Cause is the underlying error, if any
	Cause error
}

// NewRequestError creates a RequestError with the default status for its kind.
func NewRequestError(kind Kind, detail string) *RequestError {
	return &RequestError{
		Kind:   kind,
		Status: DefaultStatus(kind),
		Detail: detail,
	}
}

// Error returns a human-readable error message.
func (e *RequestError) Error() string {
	msg := e.Kind.String()
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if len(e.Fields) > 0 {
		parts := make([]string, len(e.Fields))
		for i, f := range e.Fields {
			parts[i] = f.Error()
		}
		msg += " (" + strings.Join(parts, "; ") + ")"
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *RequestError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error's kind sentinel.
func (e *RequestError) Is(target error) bool {
	return target == e.Kind.sentinel()
}

// BindingError represents a controller binding that cannot be resolved to a
// registered callable. Outside development mode this is fatal at load time.
type BindingError struct {
	// Method and PathTemplate identify the operation
	Method       string
	PathTemplate string
	// Module and Function are the resolved binding that failed to look up
	Module   string
	Function string
	// Message provides additional context
	Message string
}

// Error returns a human-readable error message.
func (e *BindingError) Error() string {
	msg := fmt.Sprintf("binding error: %s %s -> %s.%s", e.Method, e.PathTemplate, e.Module, e.Function)
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Is reports whether target matches this error type.
func (e *BindingError) Is(target error) bool {
	return target == ErrBinding
}

// ConfigError represents invalid configuration or contract wiring detected
// at construction time.
type ConfigError struct {
	// Option is the configuration option or contract element at fault
	Option string
	// Message describes the problem
	Message string
	// Cause is the underlying error, if any
	Cause error
}

// Error returns a human-readable error message.
func (e *ConfigError) Error() string {
	msg := "configuration error"
	if e.Option != "" {
		msg += ": " + e.Option
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}
	return msg
}

// Unwrap returns the underlying cause for error chaining.
func (e *ConfigError) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error type.
func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig
}
