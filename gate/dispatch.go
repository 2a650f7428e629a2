package gate

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/gateerrors"
	"github.com/erraggy/oasgate/mock"
	"github.com/erraggy/oasgate/schema"
)

// state is one stage of the dispatch pipeline. Every request walks
// Matching -> Validating -> Resolving -> {Controller | Mock} -> Guarding ->
// Done, with Errored absorbing failures from any stage.
type state int

const (
	stateMatching state = iota
	stateValidating
	stateResolving
	stateController
	stateMock
	stateGuarding
	stateDone
	stateErrored
)

// String returns the state name used in logs.
func (s state) String() string {
	switch s {
	case stateMatching:
		return "matching"
	case stateValidating:
		return "validating"
	case stateResolving:
		return "resolving"
	case stateController:
		return "controller"
	case stateMock:
		return "mock"
	case stateGuarding:
		return "guarding"
	case stateDone:
		return "done"
	case stateErrored:
		return "errored"
	default:
		return "unknown"
	}
}

// dispatch carries one request through the pipeline. It is created fresh per
// request and never shared.
type dispatch struct {
	gate *Gate
	w    http.ResponseWriter
	r    *http.Request
	next http.Handler

	op      *contract.Operation
	rawPath map[string]string
	rc      *RequestContext
	handler Handler
	rw      *responder

	mockRequested bool
	mockStatus    int

	err *gateerrors.RequestError
}

func (g *Gate) dispatch(w http.ResponseWriter, r *http.Request, next http.Handler) {
	d := &dispatch{gate: g, w: w, r: r, next: next}
	defer func() {
		if d.rw != nil {
			d.rw.Release()
		}
	}()

	for s := stateMatching; s != stateDone; {
		switch s {
		case stateMatching:
			s = d.match()
		case stateValidating:
			s = d.validate()
		case stateResolving:
			s = d.resolve()
		case stateController:
			s = d.runController()
		case stateMock:
			s = d.runMock()
		case stateGuarding:
			s = d.runGuard()
		case stateErrored:
			s = d.fail()
		}
	}
}

func (d *dispatch) match() state {
	op, params, err := d.gate.contract.Match(d.r.Method, d.r.URL.Path)
	if err != nil {
		d.err = err
		return stateErrored
	}
	d.op = op
	d.rawPath = params
	d.gate.logger.Debug("matched operation", "operation", op.ID())
	return stateValidating
}

func (d *dispatch) validate() state {
	rc, err := d.gate.validateRequest(d.op, d.r, d.rawPath)
	if err != nil {
		d.err = err
		return stateErrored
	}
	d.rc = rc
	d.r = d.r.WithContext(ContextWith(d.r.Context(), rc))
	return stateResolving
}

func (d *dispatch) resolve() state {
	d.mockRequested, d.mockStatus = d.mockTrigger()

	handler, bound := d.gate.registry.lookup(d.op.Binding)
	switch {
	case d.mockRequested:
		return stateMock
	case bound:
		d.handler = handler
		return stateController
	case d.gate.mockFallback:
		return stateMock
	case d.gate.development:
		// A development instance degrades a missing controller to a mock
		// whenever the operation declares something mockable
		if _, ok := d.op.SuccessStatus(); ok {
			d.gate.logger.Warn("no controller bound, serving mock",
				"operation", d.op.ID(), "module", d.op.Binding.Module, "function", d.op.Binding.Function)
			return stateMock
		}
	}

	if !d.gate.development {
		// Outside development the absence of a controller is indistinguishable
		// from an unroutable path: same kind, same status, same body, no
		// binding names leaked
		d.gate.logger.Error("no controller bound outside development",
			"operation", d.op.ID(), "module", d.op.Binding.Module, "function", d.op.Binding.Function)
		d.err = gateerrors.NewRequestError(gateerrors.KindNotFound,
			fmt.Sprintf("no matching path for %s", d.r.URL.Path))
		return stateErrored
	}

	d.err = gateerrors.NewRequestError(gateerrors.KindControllerMissing,
		fmt.Sprintf("no controller registered for %s.%s", d.op.Binding.Module, d.op.Binding.Function))
	return stateErrored
}

// mockTrigger inspects the configured mock header and query parameter. The
// trigger value, when it parses as an HTTP status code, selects the mocked
// response status.
func (d *dispatch) mockTrigger() (bool, int) {
	var raw string
	present := false

	if name := d.gate.mockHeader; name != "" {
		if vals := d.r.Header.Values(name); len(vals) > 0 {
			present, raw = true, vals[0]
		}
	}
	if !present && d.gate.mockQuery != "" {
		if q := d.r.URL.Query(); q.Has(d.gate.mockQuery) {
			present, raw = true, q.Get(d.gate.mockQuery)
		}
	}
	if !present {
		return false, 0
	}
	if n, err := strconv.Atoi(raw); err == nil && n >= 100 && n <= 599 {
		return true, n
	}
	return true, 0
}

func (d *dispatch) runController() state {
	d.rw = newResponder(d.w)
	d.handler(d.rw, d.r)
	return stateGuarding
}

func (d *dispatch) runMock() state {
	// A mock controller registered for the operation supersedes synthesis.
	// Its response still passes the guard like any other.
	if h, ok := d.gate.mockRegistry.lookup(d.op.Binding); ok {
		d.gate.logger.Debug("serving mock controller", "operation", d.op.ID())
		d.rw = newResponder(d.w)
		h(d.rw, d.r)
		return stateGuarding
	}

	status := d.mockStatus
	if status == 0 {
		s, ok := d.op.SuccessStatus()
		if !ok {
			d.err = responseInvalid("no success response declared to mock for " + d.op.ID())
			return stateErrored
		}
		status = s
	}

	contentType := pickMockContentType(d.op.ResponseContentTypes(status))
	spec, ok := d.op.Response(status, contentType)
	if !ok {
		d.err = responseInvalid(fmt.Sprintf(
			"no response declared for mock status %d on %s", status, d.op.ID()))
		return stateErrored
	}

	d.rw = newResponder(d.w)
	gen := d.gate.newGenerator()

	if err := d.mockHeaders(gen, spec); err != nil {
		d.err = err
		return stateErrored
	}

	if contentType == "" {
		d.rw.WriteHeader(status)
		return stateGuarding
	}

	value, found := spec.Example()
	if !found {
		sch := spec.Schema()
		if sch == nil {
			d.err = responseInvalid(fmt.Sprintf(
				"response %d %s declares neither an example nor a schema to mock", status, contentType))
			return stateErrored
		}
		v, err := gen.Generate(sch)
		if err != nil {
			d.err = asRequestError(err)
			return stateErrored
		}
		value = v
	}

	d.rw.Header().Set("Content-Type", contentType)
	d.rw.WriteHeader(status)
	if isJSONMediaType(contentType) {
		data, err := json.Marshal(value)
		if err != nil {
			d.err = asRequestError(err)
			return stateErrored
		}
		d.rw.Write(data)
	} else {
		fmt.Fprint(d.rw, value)
	}
	return stateGuarding
}

// mockHeaders synthesizes the required response headers declared for the
// mocked response so the guard's header check holds for mocks too.
func (d *dispatch) mockHeaders(gen *mock.Generator, spec *contract.ResponseSpec) *gateerrors.RequestError {
	names := make([]string, 0, len(spec.Response.Headers))
	for name := range spec.Response.Headers {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ref := spec.Response.Headers[name]
		if ref == nil || ref.Value == nil || !ref.Value.Required {
			continue
		}
		sch := schema.Deref(ref.Value.Schema)
		if sch == nil {
			d.rw.Header().Set(name, "mocked")
			continue
		}
		v, err := gen.Generate(sch)
		if err != nil {
			return asRequestError(err)
		}
		d.rw.Header().Set(name, fmt.Sprint(v))
	}
	return nil
}

func (d *dispatch) runGuard() state {
	// A cancelled request skips validation and serialization entirely; no
	// bytes are written after cancellation is observed
	if d.r.Context().Err() != nil {
		d.gate.logger.Debug("request cancelled before response guard", "operation", d.op.ID())
		return stateDone
	}

	if err := d.gate.guard(d.op, d.rw); err != nil {
		d.err = err
		return stateErrored
	}

	if err := d.rw.Flush(); err != nil {
		d.gate.logger.Debug("failed to write response", "operation", d.op.ID(), "error", err)
	}
	return stateDone
}

func (d *dispatch) fail() state {
	err := d.err

	if err.Kind == gateerrors.KindNotFound && d.gate.fallThrough && d.next != nil {
		d.next.ServeHTTP(d.w, d.r)
		return stateDone
	}

	for _, h := range d.gate.errorHandlers {
		if h(d.w, d.r, err) {
			return stateDone
		}
	}

	d.gate.writeError(d.w, d.r, err)
	return stateDone
}

// pickMockContentType chooses the concrete media type for a mock response:
// JSON when declared, otherwise the first declared type. Wildcard
// declarations resolve to JSON. Empty means a bodyless response.
func pickMockContentType(declared []string) string {
	if len(declared) == 0 {
		return ""
	}
	for _, ct := range declared {
		if isJSONMediaType(ct) {
			return ct
		}
	}
	for _, ct := range declared {
		if strings.Contains(ct, "*") {
			return "application/json"
		}
	}
	return declared[0]
}

func asRequestError(err error) *gateerrors.RequestError {
	var reqErr *gateerrors.RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}
	out := gateerrors.NewRequestError(gateerrors.KindGeneration, "mock synthesis failed")
	out.Cause = err
	return out
}
