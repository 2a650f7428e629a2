package gate

import (
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"sort"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/gateerrors"
	"github.com/erraggy/oasgate/schema"
)

// guard validates the captured response against the contract before anything
// reaches the wire. An undeclared (status, content type) pair is a contract
// violation, not a pass-through. Returns nil when the response conforms.
func (g *Gate) guard(op *contract.Operation, rw *responder) *gateerrors.RequestError {
	status := rw.Status()
	body := rw.Body()

	contentType := rw.Header().Get("Content-Type")
	mediaType := ""
	if contentType != "" {
		mt, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return responseInvalid(fmt.Sprintf("malformed response content type %q", contentType))
		}
		mediaType = mt
	}
	spec, ok := op.Response(status, mediaType)
	if !ok {
		return responseInvalid(fmt.Sprintf(
			"response %d with content type %q is not declared for %s", status, mediaType, op.ID()))
	}

	if fields := g.guardHeaders(spec, rw.Header()); len(fields) > 0 {
		err := responseInvalid("response headers do not conform to the contract")
		err.Fields = fields
		return err
	}

	sch := spec.Schema()
	if sch == nil {
		return nil
	}

	var value any
	if isJSONMediaType(mediaType) {
		if err := json.Unmarshal(body, &value); err != nil {
			return responseInvalid("response body is not valid JSON")
		}
	} else {
		value = string(body)
	}

	if fields := g.validator.Validate(value, sch, "response.body"); len(fields) > 0 {
		err := responseInvalid(fmt.Sprintf("response body does not conform to the declared schema for %d", status))
		err.Fields = fields
		return err
	}
	return nil
}

// guardHeaders validates declared response headers: required headers must be
// present, and present values must satisfy their schemas.
func (g *Gate) guardHeaders(spec *contract.ResponseSpec, h http.Header) []gateerrors.FieldError {
	var fields []gateerrors.FieldError
	names := make([]string, 0, len(spec.Response.Headers))
	for name := range spec.Response.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := spec.Response.Headers[name]
		if ref == nil || ref.Value == nil {
			continue
		}
		header := ref.Value
		path := "response.headers." + name

		value := h.Get(name)
		if value == "" {
			if header.Required {
				fields = append(fields, gateerrors.FieldError{Path: path, Message: "required response header is missing"})
			}
			continue
		}

		sch := schema.Deref(header.Schema)
		coerced := schema.Coerce(value, sch)
		fields = append(fields, g.redactor.Validate(coerced, sch, path)...)
	}
	return fields
}

func responseInvalid(detail string) *gateerrors.RequestError {
	return gateerrors.NewRequestError(gateerrors.KindResponseInvalid, detail)
}
