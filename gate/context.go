package gate

import (
	"context"

	"github.com/erraggy/oasgate/contract"
)

// RequestContext carries the matched operation and every validated, coerced
// request value through the pipeline and into the controller. It is created
// fresh for each request and is exclusively owned by that request's
// execution; controllers never see raw parameter strings.
type RequestContext struct {
	// Operation is the matched contract operation
	Operation *contract.Operation

	// PathParams, QueryParams, HeaderParams, and CookieParams hold the
	// coerced parameter values keyed by declared parameter name
	PathParams   map[string]any
	QueryParams  map[string]any
	HeaderParams map[string]any
	CookieParams map[string]any

	// Body is the decoded request body, nil when the operation declares none
	// or the request carried none
	Body any

	// ContentType is the request body media type, without parameters
	ContentType string
}

// Param returns the coerced value for a declared parameter by location
// (path, query, header, or cookie) and name.
func (rc *RequestContext) Param(location, name string) (any, bool) {
	var m map[string]any
	switch location {
	case "path":
		m = rc.PathParams
	case "query":
		m = rc.QueryParams
	case "header":
		m = rc.HeaderParams
	case "cookie":
		m = rc.CookieParams
	}
	v, ok := m[name]
	return v, ok
}

type requestContextKey struct{}

// ContextWith returns a copy of ctx carrying the RequestContext.
func ContextWith(ctx context.Context, rc *RequestContext) context.Context {
	return context.WithValue(ctx, requestContextKey{}, rc)
}

// FromContext returns the RequestContext attached to ctx by the dispatch
// pipeline. Inside a controller invoked by the gate it is always present.
func FromContext(ctx context.Context) (*RequestContext, bool) {
	rc, ok := ctx.Value(requestContextKey{}).(*RequestContext)
	return rc, ok
}
