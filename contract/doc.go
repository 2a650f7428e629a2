// Package contract models a loaded OpenAPI document as an enforceable API contract.
//
// A Contract wraps a dereferenced kin-openapi document and precomputes
// everything the dispatch pipeline needs per request: compiled path template
// matchers sorted by specificity, per-operation parameter sets merged across
// path and operation levels, controller bindings resolved through the
// three-level override hierarchy (operation > path > root), and response
// definition lookup keyed by status code and content type.
//
// The Contract is immutable after construction and safe for concurrent use
// by any number of requests without locking.
//
// # Construction
//
//	doc, err := contract.Load(ctx, "openapi.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	c, err := contract.New(doc)
//
// Configuration problems that cannot change per request — ambiguous path
// templates, malformed parameter placeholders — are surfaced as
// [gateerrors.ConfigError] values at construction time, never at request time.
//
// # Controller overrides
//
// Contracts bind operations to controllers through vendor extensions. The
// default keys are "x-controller" and "x-operation"; both are configurable:
//
//	c, err := contract.New(doc,
//	    contract.WithControllerKey("x-router-controller"),
//	    contract.WithOperationKey("x-router-operation"),
//	)
package contract
