// Package schema validates and coerces values against OpenAPI schemas.
//
// This package implements the subset of JSON Schema validation needed to
// hold HTTP parameters, request bodies, and response bodies to an OpenAPI
// 3.x contract. It operates directly on kin-openapi schema nodes so no
// intermediate representation is required.
//
// # Features
//
//   - Type checking with OAS 3.0 nullable and 3.1 type-array handling
//   - String constraints: minLength, maxLength, pattern, format
//   - Numeric constraints: minimum, maximum, exclusive bounds, multipleOf
//   - Array constraints: minItems, maxItems, uniqueItems, items schema
//   - Object constraints: required, min/maxProperties, additionalProperties
//   - Enum membership with numeric normalization
//   - Composition: allOf, anyOf, oneOf
//   - Coercion of raw parameter strings to typed values
//
// # Usage
//
//	v := schema.NewValidator()
//	sch, _ := op.BodySchema("application/json")
//	errs := v.Validate(decodedBody, sch, "parameters.body")
//	if len(errs) > 0 {
//	    // each entry carries the offending field path and a message
//	}
//
// Validation errors are reported as [gateerrors.FieldError] values so they
// can be nested directly into a BadRequest or ResponseInvalid error.
package schema
