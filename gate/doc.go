// Package gate implements the contract-enforcement dispatch pipeline.
//
// A [Gate] wraps an HTTP request pipeline and guarantees that every request
// it admits and every response it emits conform to the loaded OpenAPI
// contract. Each request walks an explicit state machine:
//
//	Matching -> Validating -> Resolving -> {Controller | Mock} -> Guarding -> Done
//
// with an Errored absorbing state reachable from every stage. Matching
// resolves the request to exactly one documented operation (404 for an
// unknown path, 405 with an Allow header for an unknown method). Validating
// coerces and checks every declared parameter and the body, producing the
// [RequestContext] controllers consume. Resolving locates the controller
// bound to the operation, or routes to the mock synthesizer when a mock was
// requested or no controller exists and mock fallback is enabled. Guarding
// buffers whatever the controller or mock wrote and validates it against the
// declared response schema before a single byte reaches the wire.
//
// Construct a Gate with functional options:
//
//	g, err := gate.New(
//		gate.WithContractFile("openapi.yaml"),
//		gate.WithController("Pets", "listPets", listPets),
//		gate.WithMockFallback(true),
//	)
//
// The contract loads asynchronously; requests block until it resolves and
// [Gate.Wait] surfaces load errors. Controllers are plain HTTP handlers that
// read their validated input from the request context:
//
//	func listPets(w http.ResponseWriter, r *http.Request) {
//		rc, _ := gate.FromContext(r.Context())
//		limit, _ := rc.Param("query", "limit")
//		...
//	}
package gate
