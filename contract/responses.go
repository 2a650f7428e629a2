package contract

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
)

// ResponseSpec is the declared response definition for one concrete
// (status code, content type) pair on an operation.
type ResponseSpec struct {
	// Status is the concrete status code being looked up
	Status int
	// ContentType is the concrete media type being looked up; empty for
	// bodyless lookups
	ContentType string
	// Response is the matched response definition
	Response *openapi3.Response
	// Media is the matched content entry; nil when the response declares no
	// content (bodyless response)
	Media *openapi3.MediaType
}

// Schema returns the declared body schema, or nil for bodyless responses.
func (rs *ResponseSpec) Schema() *openapi3.Schema {
	if rs.Media == nil || rs.Media.Schema == nil {
		return nil
	}
	return rs.Media.Schema.Value
}

// Example returns a literal example for this (status, content type) pair,
// preferring the media-type example, then the first named example, then the
// schema-level example. The bool reports whether one was found.
func (rs *ResponseSpec) Example() (any, bool) {
	if rs.Media == nil {
		return nil, false
	}
	if rs.Media.Example != nil {
		return rs.Media.Example, true
	}
	if len(rs.Media.Examples) > 0 {
		names := make([]string, 0, len(rs.Media.Examples))
		for name := range rs.Media.Examples {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			if ref := rs.Media.Examples[name]; ref != nil && ref.Value != nil && ref.Value.Value != nil {
				return ref.Value.Value, true
			}
		}
	}
	if s := rs.Schema(); s != nil && s.Example != nil {
		return s.Example, true
	}
	return nil, false
}

// Response looks up the declared response definition for a concrete
// (status code, content type) pair.
//
// Status resolution tries the exact code ("404"), then the wildcard pattern
// for its class ("4XX", upper or lower case), then the "default" response.
// Content resolution honors wildcard media type declarations. An undeclared
// pair returns ok=false: the response guard treats that as a contract
// violation, not a pass-through.
func (op *Operation) Response(status int, contentType string) (*ResponseSpec, bool) {
	def := op.responseDefinition(status)
	if def == nil || def.Value == nil {
		return nil, false
	}

	spec := &ResponseSpec{
		Status:      status,
		ContentType: contentType,
		Response:    def.Value,
	}

	// A response with no declared content holds only bodyless sends.
	if len(def.Value.Content) == 0 {
		return spec, contentType == ""
	}
	if contentType == "" {
		return spec, false
	}

	media := lookupContent(def.Value.Content, contentType)
	if media == nil {
		return nil, false
	}
	spec.Media = media
	return spec, true
}

// responseDefinition finds the response entry for a status code.
func (op *Operation) responseDefinition(status int) *openapi3.ResponseRef {
	responses := op.op.Responses
	if responses == nil {
		return nil
	}

	if ref := responses.Value(strconv.Itoa(status)); ref != nil {
		return ref
	}

	wildcard := fmt.Sprintf("%dXX", status/100)
	if ref := responses.Value(wildcard); ref != nil {
		return ref
	}
	if ref := responses.Value(strings.ToLower(wildcard)); ref != nil {
		return ref
	}

	return responses.Default()
}

// SuccessStatus returns the numerically smallest declared 2xx status code.
// Wildcard "2XX" declarations resolve to 200. The bool reports whether the
// operation declares any success response.
func (op *Operation) SuccessStatus() (int, bool) {
	responses := op.op.Responses
	if responses == nil {
		return 0, false
	}

	best := 0
	for key := range responses.Map() {
		var code int
		switch {
		case strings.EqualFold(key, "2XX"):
			code = 200
		default:
			n, err := strconv.Atoi(key)
			if err != nil || n < 200 || n > 299 {
				continue
			}
			code = n
		}
		if best == 0 || code < best {
			best = code
		}
	}
	if best == 0 {
		return 0, false
	}
	return best, true
}

// ResponseContentTypes returns the declared content types for a status code,
// sorted. Used by the mock synthesizer to pick a concrete media type and by
// the round-trip tests.
func (op *Operation) ResponseContentTypes(status int) []string {
	def := op.responseDefinition(status)
	if def == nil || def.Value == nil {
		return nil
	}
	types := make([]string, 0, len(def.Value.Content))
	for ct := range def.Value.Content {
		types = append(types, ct)
	}
	sort.Strings(types)
	return types
}

// DeclaredResponses returns every declared (status key, content type) pair
// on the operation, for mock round-trip verification. Status keys may be
// concrete ("200"), wildcard ("4XX"), or "default".
func (op *Operation) DeclaredResponses() map[string][]string {
	responses := op.op.Responses
	if responses == nil {
		return nil
	}

	result := make(map[string][]string)
	for key, ref := range responses.Map() {
		if ref == nil || ref.Value == nil {
			continue
		}
		var types []string
		for ct := range ref.Value.Content {
			types = append(types, ct)
		}
		sort.Strings(types)
		result[key] = types
	}
	return result
}
