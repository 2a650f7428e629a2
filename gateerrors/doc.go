// Package gateerrors provides structured error types for the oasgate library.
//
// Import path: github.com/erraggy/oasgate/gateerrors
//
// This package enables programmatic error handling via [errors.Is] and
// [errors.As], allowing callers to distinguish between the error kinds the
// dispatch pipeline produces and implement appropriate recovery strategies.
//
// # Error Types
//
// The package provides three core error types:
//
//   - [RequestError]: a per-request pipeline failure carrying a Kind, the
//     HTTP status to emit, and optional field-level sub-errors
//   - [BindingError]: a load-time controller binding that cannot be
//     resolved to a registered callable
//   - [ConfigError]: invalid configuration or contract wiring detected at
//     construction time (for example, ambiguous path templates)
//
// # Sentinel Errors
//
// Each request error kind has a corresponding sentinel for use with
// errors.Is():
//
//   - [ErrNotFound]: no path template matches the request path
//   - [ErrMethodNotAllowed]: the path matched but not the method
//   - [ErrBadRequest]: request parameter or body validation failed
//   - [ErrControllerMissing]: no controller resolves for the operation
//   - [ErrResponseInvalid]: the outgoing response violates the contract
//   - [ErrGeneration]: mock synthesis failed against a declared schema
//
// # Usage Examples
//
// Check the error category with errors.Is():
//
//	if errors.Is(err, gateerrors.ErrBadRequest) {
//	    // request-side validation failure
//	}
//
// Extract details with errors.As():
//
//	var reqErr *gateerrors.RequestError
//	if errors.As(err, &reqErr) {
//	    for _, f := range reqErr.Fields {
//	        log.Printf("%s: %s", f.Path, f.Message)
//	    }
//	}
package gateerrors
