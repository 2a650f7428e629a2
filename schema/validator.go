package schema

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"

	"github.com/erraggy/oasgate/gateerrors"
)

// FieldError is re-exported for convenience; validation results are reported
// in the shape the gate's error model consumes.
type FieldError = gateerrors.FieldError

// Validator validates data values against OpenAPI schemas.
// It implements the subset of JSON Schema validation suitable for holding
// HTTP parameters and bodies to a contract.
type Validator struct {
	// patternCache caches compiled regex patterns (sync.Map[string, *regexp.Regexp])
	patternCache sync.Map

	// patternCount tracks the approximate number of cached patterns for size capping
	patternCount atomic.Int32

	// redactValues controls whether actual values appear in error messages.
	// When true, error messages describe the violation without exposing the value.
	// This should be enabled when validating potentially sensitive data like headers.
	redactValues bool
}

// NewValidator creates a new Validator.
func NewValidator() *Validator {
	return &Validator{}
}

// NewRedactingValidator creates a Validator that omits actual values from
// error messages. Use this when validating potentially sensitive data like
// HTTP headers and cookies that may contain credentials.
func NewRedactingValidator() *Validator {
	return &Validator{
		redactValues: true,
	}
}

// Validate validates data against an OpenAPI schema.
// Returns a slice of field errors (empty if valid).
func (v *Validator) Validate(data any, schema *openapi3.Schema, path string) []FieldError {
	if schema == nil {
		return nil
	}

	var errs []FieldError

	// Handle nullable
	if data == nil {
		if isNullable(schema) {
			return nil
		}
		errs = append(errs, FieldError{
			Path:    path,
			Message: "value cannot be null",
		})
		return errs
	}

	// Validate type
	typeErrs := v.validateType(data, schema, path)
	errs = append(errs, typeErrs...)

	// If type validation failed, skip constraint validation
	if len(typeErrs) > 0 {
		return errs
	}

	// Validate constraints based on data type
	switch d := data.(type) {
	case string:
		errs = append(errs, v.validateString(d, schema, path)...)
	case float64:
		errs = append(errs, v.validateNumber(d, schema, path)...)
	case int, int32, int64:
		errs = append(errs, v.validateNumber(toFloat64(d), schema, path)...)
	case bool:
		// No additional constraints for boolean
	case []any:
		errs = append(errs, v.validateArray(d, schema, path)...)
	case map[string]any:
		errs = append(errs, v.validateObject(d, schema, path)...)
	}

	// Validate enum
	if len(schema.Enum) > 0 {
		errs = append(errs, v.validateEnum(data, schema, path)...)
	}

	// Validate composition (allOf, anyOf, oneOf)
	errs = append(errs, v.validateComposition(data, schema, path)...)

	return errs
}

// isNullable checks if a schema allows null values.
func isNullable(schema *openapi3.Schema) bool {
	// OAS 3.0 style: nullable: true
	if schema.Nullable {
		return true
	}

	// OAS 3.1+ style: type includes "null"
	if schema.Type != nil && schema.Type.Includes(openapi3.TypeNull) {
		return true
	}

	return false
}

// validateType validates that the data matches the schema type(s).
func (v *Validator) validateType(data any, schema *openapi3.Schema, path string) []FieldError {
	types := schemaTypes(schema)
	if len(types) == 0 {
		// No type specified, any type is valid
		return nil
	}

	dataType := dataTypeOf(data)

	for _, schemaType := range types {
		if typeMatches(dataType, schemaType) {
			// Additional check: if schema expects integer but data is a float64,
			// verify it has no fractional part
			if schemaType == openapi3.TypeInteger && dataType == openapi3.TypeNumber {
				if f, ok := data.(float64); ok && f != float64(int64(f)) {
					msg := "value must be an integer"
					if !v.redactValues {
						msg = fmt.Sprintf("value must be an integer, got %v", f)
					}
					return []FieldError{{Path: path, Message: msg}}
				}
			}
			return nil
		}
	}

	return []FieldError{{
		Path:    path,
		Message: fmt.Sprintf("expected type %s but got %s", strings.Join(types, " or "), dataType),
	}}
}

// validateString validates string-specific constraints.
func (v *Validator) validateString(s string, schema *openapi3.Schema, path string) []FieldError {
	var errs []FieldError

	// minLength
	if uint64(len(s)) < schema.MinLength {
		errs = append(errs, FieldError{
			Path:    path,
			Message: fmt.Sprintf("string length %d is less than minimum %d", len(s), schema.MinLength),
		})
	}

	// maxLength
	if schema.MaxLength != nil && uint64(len(s)) > *schema.MaxLength {
		errs = append(errs, FieldError{
			Path:    path,
			Message: fmt.Sprintf("string length %d exceeds maximum %d", len(s), *schema.MaxLength),
		})
	}

	// pattern
	if schema.Pattern != "" {
		matched, err := v.matchPattern(schema.Pattern, s)
		if err != nil {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("invalid pattern %q: %v", schema.Pattern, err),
			})
		} else if !matched {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("string does not match pattern %q", schema.Pattern),
			})
		}
	}

	// format (basic validation for common formats)
	if schema.Format != "" {
		errs = append(errs, v.validateFormat(s, schema.Format, path)...)
	}

	return errs
}

// validateNumber validates numeric constraints.
func (v *Validator) validateNumber(n float64, schema *openapi3.Schema, path string) []FieldError {
	var errs []FieldError

	// minimum
	if schema.Min != nil {
		if schema.ExclusiveMin && n <= *schema.Min {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("value %v must be greater than %v", n, *schema.Min),
			})
		} else if !schema.ExclusiveMin && n < *schema.Min {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("value %v is less than minimum %v", n, *schema.Min),
			})
		}
	}

	// maximum
	if schema.Max != nil {
		if schema.ExclusiveMax && n >= *schema.Max {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("value %v must be less than %v", n, *schema.Max),
			})
		} else if !schema.ExclusiveMax && n > *schema.Max {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("value %v exceeds maximum %v", n, *schema.Max),
			})
		}
	}

	// multipleOf
	if schema.MultipleOf != nil && *schema.MultipleOf != 0 {
		// Use division with tolerance for floating point precision
		quotient := n / *schema.MultipleOf
		if quotient != float64(int64(quotient)) {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("value %v is not a multiple of %v", n, *schema.MultipleOf),
			})
		}
	}

	return errs
}

// validateArray validates array-specific constraints.
func (v *Validator) validateArray(arr []any, schema *openapi3.Schema, path string) []FieldError {
	var errs []FieldError

	// minItems
	if uint64(len(arr)) < schema.MinItems {
		errs = append(errs, FieldError{
			Path:    path,
			Message: fmt.Sprintf("array has %d items, minimum is %d", len(arr), schema.MinItems),
		})
	}

	// maxItems
	if schema.MaxItems != nil && uint64(len(arr)) > *schema.MaxItems {
		errs = append(errs, FieldError{
			Path:    path,
			Message: fmt.Sprintf("array has %d items, maximum is %d", len(arr), *schema.MaxItems),
		})
	}

	// uniqueItems
	if schema.UniqueItems && hasDuplicates(arr) {
		errs = append(errs, FieldError{
			Path:    path,
			Message: "array items must be unique",
		})
	}

	// items schema
	if itemSchema := Deref(schema.Items); itemSchema != nil {
		for i, item := range arr {
			itemPath := fmt.Sprintf("%s[%d]", path, i)
			errs = append(errs, v.Validate(item, itemSchema, itemPath)...)
		}
	}

	return errs
}

// validateObject validates object-specific constraints.
func (v *Validator) validateObject(obj map[string]any, schema *openapi3.Schema, path string) []FieldError {
	var errs []FieldError

	// required properties
	for _, req := range schema.Required {
		if _, exists := obj[req]; !exists {
			errs = append(errs, FieldError{
				Path:    path + "." + req,
				Message: fmt.Sprintf("required property %q is missing", req),
			})
		}
	}

	// minProperties
	if uint64(len(obj)) < schema.MinProps {
		errs = append(errs, FieldError{
			Path:    path,
			Message: fmt.Sprintf("object has %d properties, minimum is %d", len(obj), schema.MinProps),
		})
	}

	// maxProperties
	if schema.MaxProps != nil && uint64(len(obj)) > *schema.MaxProps {
		errs = append(errs, FieldError{
			Path:    path,
			Message: fmt.Sprintf("object has %d properties, maximum is %d", len(obj), *schema.MaxProps),
		})
	}

	// property schemas
	for name, value := range obj {
		if propSchema := Deref(schema.Properties[name]); propSchema != nil {
			propPath := path + "." + name
			errs = append(errs, v.Validate(value, propSchema, propPath)...)
		}
	}

	// additionalProperties enforcement
	if schema.AdditionalProperties.Has != nil && !*schema.AdditionalProperties.Has {
		for name := range obj {
			if _, defined := schema.Properties[name]; !defined {
				errs = append(errs, FieldError{
					Path:    path + "." + name,
					Message: fmt.Sprintf("additional property %q is not allowed", name),
				})
			}
		}
	} else if addlSchema := Deref(schema.AdditionalProperties.Schema); addlSchema != nil {
		for name, value := range obj {
			if _, defined := schema.Properties[name]; !defined {
				errs = append(errs, v.Validate(value, addlSchema, path+"."+name)...)
			}
		}
	}

	return errs
}

// validateEnum validates that the value is one of the allowed enum values.
func (v *Validator) validateEnum(data any, schema *openapi3.Schema, path string) []FieldError {
	for _, allowed := range schema.Enum {
		if enumEqual(data, allowed) {
			return nil
		}
	}

	msg := "value is not one of the allowed values"
	if !v.redactValues {
		msg = fmt.Sprintf("value %v is not one of the allowed values", data)
	}

	return []FieldError{{Path: path, Message: msg}}
}

// validateComposition validates allOf, anyOf, oneOf.
func (v *Validator) validateComposition(data any, schema *openapi3.Schema, path string) []FieldError {
	var errs []FieldError

	// allOf - all schemas must match
	for i, ref := range schema.AllOf {
		sub := Deref(ref)
		if sub == nil {
			continue
		}
		subErrs := v.Validate(data, sub, path)
		if len(subErrs) > 0 {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("allOf[%d] validation failed", i),
			})
			errs = append(errs, subErrs...)
		}
	}

	// anyOf - at least one schema must match
	if len(schema.AnyOf) > 0 {
		matched := false
		for _, ref := range schema.AnyOf {
			if sub := Deref(ref); sub != nil && len(v.Validate(data, sub, path)) == 0 {
				matched = true
				break
			}
		}
		if !matched {
			errs = append(errs, FieldError{
				Path:    path,
				Message: "value does not match any of the anyOf schemas",
			})
		}
	}

	// oneOf - exactly one schema must match
	if len(schema.OneOf) > 0 {
		matchCount := 0
		for _, ref := range schema.OneOf {
			if sub := Deref(ref); sub != nil && len(v.Validate(data, sub, path)) == 0 {
				matchCount++
			}
		}
		if matchCount == 0 {
			errs = append(errs, FieldError{
				Path:    path,
				Message: "value does not match any of the oneOf schemas",
			})
		} else if matchCount > 1 {
			errs = append(errs, FieldError{
				Path:    path,
				Message: fmt.Sprintf("value matches %d oneOf schemas, expected exactly 1", matchCount),
			})
		}
	}

	return errs
}

// validateFormat validates common string formats.
func (v *Validator) validateFormat(s, format, path string) []FieldError {
	var ok bool
	var expected string

	switch format {
	case "email":
		ok, expected = isValidEmail(s), "email address"
	case "uri", "uri-reference":
		ok, expected = isValidURI(s), "URI"
	case "date":
		ok, expected = dateRegex.MatchString(s), "date (YYYY-MM-DD)"
	case "date-time":
		ok, expected = dateTimeRegex.MatchString(s), "date-time (RFC 3339)"
	case "uuid":
		ok, expected = uuid.Validate(s) == nil, "UUID"
	default:
		// Unknown formats are ignored (as per JSON Schema spec)
		return nil
	}

	if ok {
		return nil
	}

	msg := fmt.Sprintf("value is not a valid %s", expected)
	if !v.redactValues {
		msg = fmt.Sprintf("%q is not a valid %s", s, expected)
	}
	return []FieldError{{Path: path, Message: msg}}
}

// maxPatternCacheSize is the upper bound on cached compiled regex patterns.
// When exceeded, the cache is cleared to prevent unbounded memory growth
// from contracts with many unique patterns.
const maxPatternCacheSize = 1000

// matchPattern compiles and matches a regex pattern.
func (v *Validator) matchPattern(pattern, s string) (bool, error) {
	if cached, ok := v.patternCache.Load(pattern); ok {
		return cached.(*regexp.Regexp).MatchString(s), nil
	}

	re, err := regexp.Compile(pattern)
	if err != nil {
		return false, err
	}

	// Size cap: if cache exceeds limit, clear and start fresh.
	// NOTE: The count check and clear are not atomic — under high concurrency,
	// multiple goroutines may clear simultaneously. This is acceptable because
	// the cache is a performance optimization; worst case is extra recompilation.
	if v.patternCount.Add(1) > maxPatternCacheSize {
		v.patternCache.Range(func(key, _ any) bool {
			v.patternCache.Delete(key)
			return true
		})
		v.patternCount.Store(1)
	}
	v.patternCache.Store(pattern, re)
	return re.MatchString(s), nil
}

// Helper functions

// Deref unwraps a schema reference, returning nil for nil refs.
func Deref(ref *openapi3.SchemaRef) *openapi3.Schema {
	if ref == nil {
		return nil
	}
	return ref.Value
}

// schemaTypes returns the type(s) declared in a schema.
func schemaTypes(schema *openapi3.Schema) []string {
	if schema.Type == nil {
		return nil
	}
	return schema.Type.Slice()
}

// TypeOf returns the primary non-null type declared in a schema, or ""
// when the schema declares no type.
func TypeOf(schema *openapi3.Schema) string {
	if schema == nil {
		return ""
	}
	for _, t := range schemaTypes(schema) {
		if t != openapi3.TypeNull {
			return t
		}
	}
	return ""
}

// dataTypeOf returns the JSON Schema type of a Go value.
func dataTypeOf(data any) string {
	if data == nil {
		return openapi3.TypeNull
	}

	switch data.(type) {
	case string:
		return openapi3.TypeString
	case float64, float32:
		return openapi3.TypeNumber
	case int, int32, int64, uint, uint32, uint64:
		return openapi3.TypeInteger
	case bool:
		return openapi3.TypeBoolean
	case []any:
		return openapi3.TypeArray
	case map[string]any:
		return openapi3.TypeObject
	default:
		rv := reflect.ValueOf(data)
		switch rv.Kind() {
		case reflect.Slice, reflect.Array:
			return openapi3.TypeArray
		case reflect.Map:
			return openapi3.TypeObject
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
			return openapi3.TypeInteger
		case reflect.Float32, reflect.Float64:
			return openapi3.TypeNumber
		case reflect.String:
			return openapi3.TypeString
		case reflect.Bool:
			return openapi3.TypeBoolean
		}
		return "unknown"
	}
}

// typeMatches checks if a data type matches a schema type.
func typeMatches(dataType, schemaType string) bool {
	if dataType == schemaType {
		return true
	}
	// "integer" is a subset of "number"
	if schemaType == openapi3.TypeNumber && dataType == openapi3.TypeInteger {
		return true
	}
	// JSON numbers that are whole numbers can match "integer"
	// This is a common case since JSON only has one number type
	if schemaType == openapi3.TypeInteger && dataType == openapi3.TypeNumber {
		return true // Fractional part is checked separately
	}
	return false
}

// toFloat64 converts numeric types to float64.
func toFloat64(v any) float64 {
	switch n := v.(type) {
	case int:
		return float64(n)
	case int64:
		return float64(n)
	case int32:
		return float64(n)
	case float64:
		return n
	case float32:
		return float64(n)
	}
	return 0
}

// enumEqual compares a value to an enum member, normalizing numeric types so
// that coerced int64 parameter values match JSON-decoded float64 enum values.
func enumEqual(a, b any) bool {
	if reflect.DeepEqual(a, b) {
		return true
	}
	an, aok := asFloat64(a)
	bn, bok := asFloat64(b)
	return aok && bok && an == bn
}

func asFloat64(v any) (float64, bool) {
	switch n := v.(type) {
	case int, int32, int64, float32, float64:
		return toFloat64(n), true
	}
	return 0, false
}

// hasDuplicates checks if an array has duplicate values.
func hasDuplicates(arr []any) bool {
	seen := make(map[string]bool)
	for _, item := range arr {
		key := fmt.Sprintf("%T:%v", item, item)
		if seen[key] {
			return true
		}
		seen[key] = true
	}
	return false
}

// Format validation helpers

var (
	dateRegex     = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	dateTimeRegex = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}T\d{2}:\d{2}:\d{2}`)
	emailRegex    = regexp.MustCompile(`^[^@\s]+@[^@\s]+\.[^@\s]+$`)
)

func isValidEmail(s string) bool {
	return emailRegex.MatchString(s)
}

func isValidURI(s string) bool {
	return strings.Contains(s, "://") || strings.HasPrefix(s, "/")
}
