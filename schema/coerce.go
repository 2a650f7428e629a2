package schema

import (
	"strconv"

	"github.com/getkin/kin-openapi/openapi3"
)

// Coerce converts a raw string value to the Go type the schema declares.
// Strings that fail to parse as the declared type are returned unchanged so
// the validator can report the mismatch with the original value intact.
func Coerce(raw string, schema *openapi3.Schema) any {
	switch TypeOf(schema) {
	case openapi3.TypeInteger:
		if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return i
		}
		return raw
	case openapi3.TypeNumber:
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f
		}
		return raw
	case openapi3.TypeBoolean:
		if b, err := strconv.ParseBool(raw); err == nil {
			return b
		}
		return raw
	default:
		return raw
	}
}

// CoerceSlice converts raw string values to a slice of typed values using
// the array schema's items schema.
func CoerceSlice(raw []string, schema *openapi3.Schema) []any {
	var item *openapi3.Schema
	if schema != nil {
		item = Deref(schema.Items)
	}
	result := make([]any, len(raw))
	for i, v := range raw {
		result[i] = Coerce(v, item)
	}
	return result
}

// PropertySchema returns the declared schema for a property of an object
// schema, or nil when the property is undeclared.
func PropertySchema(schema *openapi3.Schema, name string) *openapi3.Schema {
	if schema == nil || schema.Properties == nil {
		return nil
	}
	return Deref(schema.Properties[name])
}
