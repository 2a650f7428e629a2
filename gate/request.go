package gate

import (
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/gateerrors"
	"github.com/erraggy/oasgate/schema"
)

// standardHeaders are never rejected under strict mode even when the
// operation does not declare them.
var standardHeaders = map[string]bool{
	"Accept":            true,
	"Accept-Encoding":   true,
	"Accept-Language":   true,
	"Authorization":     true,
	"Cache-Control":     true,
	"Connection":        true,
	"Content-Length":    true,
	"Content-Type":      true,
	"Cookie":            true,
	"Host":              true,
	"Origin":            true,
	"Referer":           true,
	"User-Agent":        true,
	"X-Forwarded-For":   true,
	"X-Forwarded-Proto": true,
	"X-Request-Id":      true,
}

// validateRequest validates and coerces every declared parameter and the
// request body, producing the RequestContext the controller sees. Raw
// strings are discarded on success; downstream code only ever sees typed
// values.
func (g *Gate) validateRequest(op *contract.Operation, r *http.Request, rawPath map[string]string) (*RequestContext, *gateerrors.RequestError) {
	rc := &RequestContext{
		Operation:    op,
		PathParams:   make(map[string]any),
		QueryParams:  make(map[string]any),
		HeaderParams: make(map[string]any),
		CookieParams: make(map[string]any),
	}

	var fields []gateerrors.FieldError

	fields = append(fields, g.validatePathParams(op, rawPath, rc)...)
	fields = append(fields, g.validateQueryParams(op, r, rc)...)
	fields = append(fields, g.validateHeaderParams(op, r, rc)...)
	fields = append(fields, g.validateCookieParams(op, r, rc)...)
	fields = append(fields, g.validateBody(op, r, rc)...)

	if len(fields) > 0 {
		err := gateerrors.NewRequestError(gateerrors.KindBadRequest, "request does not conform to the contract")
		err.Fields = fields
		return nil, err
	}
	return rc, nil
}

func (g *Gate) validatePathParams(op *contract.Operation, raw map[string]string, rc *RequestContext) []gateerrors.FieldError {
	var fields []gateerrors.FieldError
	for _, p := range op.ParametersIn("path") {
		path := "parameters.path." + p.Name
		value, ok := raw[p.Name]
		if !ok {
			fields = append(fields, gateerrors.FieldError{Path: path, Message: "required parameter is missing"})
			continue
		}
		sch := schema.Deref(p.Schema)
		coerced := schema.Coerce(value, sch)
		fields = append(fields, g.validator.Validate(coerced, sch, path)...)
		rc.PathParams[p.Name] = coerced
	}
	return fields
}

func (g *Gate) validateQueryParams(op *contract.Operation, r *http.Request, rc *RequestContext) []gateerrors.FieldError {
	var fields []gateerrors.FieldError
	query := r.URL.Query()
	declared := make(map[string]bool)

	for _, p := range op.ParametersIn("query") {
		declared[p.Name] = true
		path := "parameters.query." + p.Name
		sch := schema.Deref(p.Schema)

		values, ok := query[p.Name]
		if !ok || len(values) == 0 {
			fields = append(fields, absentParam(p, sch, path, rc.QueryParams)...)
			continue
		}

		coerced := coerceValues(values, sch)
		fields = append(fields, g.validator.Validate(coerced, sch, path)...)
		rc.QueryParams[p.Name] = coerced
	}

	if g.strict {
		for name := range query {
			if declared[name] || name == g.mockQuery {
				continue
			}
			fields = append(fields, gateerrors.FieldError{
				Path:    "parameters.query." + name,
				Message: "parameter is not declared for this operation",
			})
		}
	}
	return fields
}

func (g *Gate) validateHeaderParams(op *contract.Operation, r *http.Request, rc *RequestContext) []gateerrors.FieldError {
	var fields []gateerrors.FieldError
	declared := make(map[string]bool)

	for _, p := range op.ParametersIn("header") {
		canonical := http.CanonicalHeaderKey(p.Name)
		declared[canonical] = true
		path := "parameters.header." + p.Name
		sch := schema.Deref(p.Schema)

		values := r.Header.Values(canonical)
		if len(values) == 0 {
			fields = append(fields, absentParam(p, sch, path, rc.HeaderParams)...)
			continue
		}

		coerced := coerceValues(values, sch)
		// Header and cookie values are validated with redaction so secrets
		// never land in error messages or logs
		fields = append(fields, g.redactor.Validate(coerced, sch, path)...)
		rc.HeaderParams[p.Name] = coerced
	}

	if g.strict {
		mockHeader := http.CanonicalHeaderKey(g.mockHeader)
		for name := range r.Header {
			if declared[name] || standardHeaders[name] || name == mockHeader {
				continue
			}
			fields = append(fields, gateerrors.FieldError{
				Path:    "parameters.header." + name,
				Message: "header is not declared for this operation",
			})
		}
	}
	return fields
}

func (g *Gate) validateCookieParams(op *contract.Operation, r *http.Request, rc *RequestContext) []gateerrors.FieldError {
	var fields []gateerrors.FieldError
	cookies := make(map[string]string)
	for _, c := range r.Cookies() {
		if _, ok := cookies[c.Name]; !ok {
			cookies[c.Name] = c.Value
		}
	}
	declared := make(map[string]bool)

	for _, p := range op.ParametersIn("cookie") {
		declared[p.Name] = true
		path := "parameters.cookie." + p.Name
		sch := schema.Deref(p.Schema)

		value, ok := cookies[p.Name]
		if !ok {
			fields = append(fields, absentParam(p, sch, path, rc.CookieParams)...)
			continue
		}

		coerced := schema.Coerce(value, sch)
		fields = append(fields, g.redactor.Validate(coerced, sch, path)...)
		rc.CookieParams[p.Name] = coerced
	}

	if g.strict {
		for name := range cookies {
			if declared[name] {
				continue
			}
			fields = append(fields, gateerrors.FieldError{
				Path:    "parameters.cookie." + name,
				Message: "cookie is not declared for this operation",
			})
		}
	}
	return fields
}

func (g *Gate) validateBody(op *contract.Operation, r *http.Request, rc *RequestContext) []gateerrors.FieldError {
	if !op.HasBody() {
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(r.Body, g.maxBodySize+1))
	if err != nil {
		return []gateerrors.FieldError{{Path: "parameters.body", Message: "failed to read request body"}}
	}
	if int64(len(data)) > g.maxBodySize {
		return []gateerrors.FieldError{{
			Path:    "parameters.body",
			Message: fmt.Sprintf("request body exceeds the %d byte limit", g.maxBodySize),
		}}
	}

	if len(data) == 0 {
		if op.BodyRequired() {
			return []gateerrors.FieldError{{Path: "parameters.body", Message: "required request body is missing"}}
		}
		return nil
	}

	contentType := r.Header.Get("Content-Type")
	mediaType, _, mimeErr := mime.ParseMediaType(contentType)
	if mimeErr != nil {
		return []gateerrors.FieldError{{
			Path:    "parameters.body",
			Message: fmt.Sprintf("malformed content type %q", contentType),
		}}
	}

	sch, ok := op.BodySchema(mediaType)
	if !ok {
		return []gateerrors.FieldError{{
			Path:    "parameters.body",
			Message: fmt.Sprintf("content type %q is not declared for this operation", mediaType),
		}}
	}

	var body any
	if isJSONMediaType(mediaType) {
		if err := json.Unmarshal(data, &body); err != nil {
			return []gateerrors.FieldError{{
				Path:    "parameters.body",
				Message: "request body is not valid JSON",
			}}
		}
	} else {
		body = string(data)
	}

	fields := g.validator.Validate(body, sch, "parameters.body")
	if len(fields) > 0 {
		return fields
	}

	rc.Body = body
	rc.ContentType = mediaType
	return nil
}

// absentParam handles a parameter the request did not supply: a declared
// default is applied when present, a missing required parameter yields a
// field error, and absent optionals are simply skipped.
func absentParam(p *openapi3.Parameter, sch *openapi3.Schema, path string, into map[string]any) []gateerrors.FieldError {
	if sch != nil && sch.Default != nil {
		into[p.Name] = sch.Default
		return nil
	}
	if p.Required {
		return []gateerrors.FieldError{{Path: path, Message: "required parameter is missing"}}
	}
	return nil
}

// coerceValues coerces raw parameter strings: array schemas consume every
// raw value, scalar schemas take the first.
func coerceValues(values []string, sch *openapi3.Schema) any {
	if schema.TypeOf(sch) == openapi3.TypeArray {
		return schema.CoerceSlice(values, sch)
	}
	return schema.Coerce(values[0], sch)
}

func isJSONMediaType(mediaType string) bool {
	return strings.Contains(mediaType, "json")
}
