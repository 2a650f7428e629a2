// Package oasgate enforces an OpenAPI contract around an HTTP request pipeline.
//
// oasgate sits in front of application handlers and guarantees that every
// request it admits and every response it emits conform to a declared
// OpenAPI 3.x document: requests are matched to exactly one documented
// operation, validated and coerced against the operation's parameter and
// body schemas, dispatched to a registered controller (or answered with a
// schema-valid mock), and responses are validated against the declared
// response schema before a single byte reaches the wire.
//
// # Overview
//
// The library consists of five primary packages:
//
//   - contract: the loaded contract document, path template matching, and
//     controller binding resolution
//   - schema: validation and coercion of values against OpenAPI schemas
//   - mock: synthesis of schema-valid mock payloads
//   - gate: the dispatch pipeline middleware tying the above together
//   - gateerrors: structured error types shared across packages
//
// # Installation
//
// Install the library using go get:
//
//	go get github.com/erraggy/oasgate
//
// # Quick Start
//
// Load a contract and serve traffic through the gate:
//
//	import (
//		"github.com/erraggy/oasgate/gate"
//	)
//
//	g, err := gate.New(
//		gate.WithContractFile("openapi.yaml"),
//		gate.WithController("Pets", "listPets", listPets),
//		gate.WithMockFallback(true),
//	)
//	if err != nil {
//		log.Fatal(err)
//	}
//	http.ListenAndServe(":8080", g)
//
// The gate can also wrap an existing handler chain, deferring unmatched
// requests to it when fall-through is enabled:
//
//	mux := chi.NewRouter()
//	mux.Get("/healthz", healthz)
//	http.ListenAndServe(":8080", g.Handler(mux))
//
// # Command Line
//
// The oasgate CLI serves a fully mocked API directly from a contract:
//
//	oasgate serve --contract openapi.yaml --addr :8080
//	oasgate check --contract openapi.yaml
package oasgate
