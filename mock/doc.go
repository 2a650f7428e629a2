// Package mock synthesizes contract-valid payloads from OpenAPI schemas.
//
// The generator produces values satisfying a schema's type, format, enum,
// range, and length constraints. Literal examples and defaults embedded in
// the schema are preferred over synthetic values so mocked APIs look
// realistic. Generation is pseudo-random by default; supply a seed for
// reproducible output in tests:
//
//	g := mock.New(mock.WithSeed(42))
//	value, err := g.Generate(schema)
//
// A schema that claims to be satisfiable but defeats the generator (for
// example contradictory bounds, or a regex pattern with no example to fall
// back on) produces a [gateerrors.RequestError] of kind Generation rather
// than silently returning an empty value. Generated payloads are expected
// to pass the same validation the response guard applies to real responses.
package mock
