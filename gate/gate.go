package gate

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/gateerrors"
	"github.com/erraggy/oasgate/mock"
	"github.com/erraggy/oasgate/schema"
)

// Gate is the contract-enforcement middleware. It matches every request to a
// documented operation, validates and coerces it, dispatches to a registered
// controller or a mock, and validates the response before it reaches the
// wire.
//
// A Gate loads its contract asynchronously: New returns immediately and
// requests block on readiness. Use [Gate.Wait] to surface load errors before
// serving traffic. After a successful load the contract, bindings, and
// registry are immutable and shared lock-free across requests.
type Gate struct {
	// configuration snapshot
	development  bool
	fallThrough  bool
	strict       bool
	mockHeader   string
	mockQuery    string
	mockFallback bool
	mockSeed     *int64
	maxBodySize  int64

	logger        Logger
	errorHandlers []ErrorHandler

	validator *schema.Validator
	redactor  *schema.Validator

	// populated by load; valid only after ready is closed
	contract     *contract.Contract
	registry     *registry
	mockRegistry *registry
	loadErr      error
	ready        chan struct{}
}

// New creates a Gate and starts loading its contract in the background.
// Configuration errors are returned synchronously; contract load and binding
// errors surface through [Gate.Wait] and, failing that, as a fixed startup
// error response on every request.
func New(opts ...Option) (*Gate, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	sources := 0
	if cfg.contractFile != "" {
		sources++
	}
	if len(cfg.contractData) > 0 {
		sources++
	}
	if cfg.doc != nil {
		sources++
	}
	if sources != 1 {
		return nil, &gateerrors.ConfigError{
			Option:  "contract",
			Message: "exactly one of WithContractFile, WithContractData, or WithContract must be given",
		}
	}

	g := &Gate{
		development:   cfg.development,
		fallThrough:   cfg.fallThrough,
		strict:        cfg.strict,
		mockHeader:    cfg.mockHeader,
		mockQuery:     cfg.mockQuery,
		mockFallback:  cfg.mockFallback,
		mockSeed:      cfg.mockSeed,
		maxBodySize:   cfg.maxBodySize,
		logger:        cfg.logger,
		errorHandlers: cfg.errorHandlers,
		validator:     schema.NewValidator(),
		redactor:      schema.NewRedactingValidator(),
		ready:         make(chan struct{}),
	}

	go g.load(cfg)
	return g, nil
}

// load resolves the contract document, computes bindings, and builds the
// registry. It runs exactly once; a failure is fatal to the whole Gate, not
// per-request.
func (g *Gate) load(cfg *config) {
	defer close(g.ready)

	doc, err := g.loadDocument(cfg)
	if err != nil {
		g.loadErr = err
		return
	}

	var contractOpts []contract.Option
	if cfg.controllerKey != "" {
		contractOpts = append(contractOpts, contract.WithControllerKey(cfg.controllerKey))
	}
	if cfg.operationKey != "" {
		contractOpts = append(contractOpts, contract.WithOperationKey(cfg.operationKey))
	}

	c, err := contract.New(doc, contractOpts...)
	if err != nil {
		g.loadErr = err
		return
	}

	reg, err := discoverInto(newRegistry(), cfg.roots, "WithControllersRoot")
	if err != nil {
		g.loadErr = err
		return
	}
	// Explicit registrations win over discovered ones
	for module, fns := range cfg.controllers {
		for function, h := range fns {
			reg.register(module, function, h)
		}
	}

	mocks, err := discoverInto(newRegistry(), cfg.mockRoots, "WithMockControllersRoot")
	if err != nil {
		g.loadErr = err
		return
	}

	// Outside development every operation must resolve before traffic flows
	if !cfg.development {
		if err := reg.checkBindings(c, cfg.mockFallback, mocks); err != nil {
			g.loadErr = err
			return
		}
	}

	g.contract = c
	g.registry = reg
	g.mockRegistry = mocks
	g.logger.Info("contract loaded",
		"paths", len(c.Templates()), "modules", len(reg.moduleNames()))
}

// discoverInto runs each discovery root and merges the results into reg.
func discoverInto(reg *registry, roots []discoveryRoot, option string) (*registry, error) {
	for _, root := range roots {
		discovered, err := root.discoverer.Discover(root.root)
		if err != nil {
			return nil, &gateerrors.ConfigError{
				Option:  option,
				Message: "controller discovery failed for " + root.root,
				Cause:   err,
			}
		}
		for module, fns := range discovered {
			for function, h := range fns {
				reg.register(module, function, h)
			}
		}
	}
	return reg, nil
}

func (g *Gate) loadDocument(cfg *config) (*openapi3.T, error) {
	switch {
	case cfg.doc != nil:
		return cfg.doc, nil
	case len(cfg.contractData) > 0:
		return contract.LoadData(context.Background(), cfg.contractData)
	default:
		return contract.Load(context.Background(), cfg.contractFile)
	}
}

// Ready returns a channel that is closed once the contract load has
// finished, successfully or not.
func (g *Gate) Ready() <-chan struct{} {
	return g.ready
}

// Wait blocks until the contract load finishes or ctx is done, and returns
// the load error, if any.
func (g *Gate) Wait(ctx context.Context) error {
	select {
	case <-g.ready:
		return g.loadErr
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Contract returns the loaded contract. It is nil until [Gate.Ready] closes,
// and stays nil when loading failed.
func (g *Gate) Contract() *contract.Contract {
	select {
	case <-g.ready:
		return g.contract
	default:
		return nil
	}
}

// ServeHTTP implements http.Handler. Requests arriving before readiness
// block until the contract load resolves.
func (g *Gate) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	g.serve(w, r, nil)
}

// Handler wraps next in the gate: matched requests run the pipeline, and
// unmatched requests fall through to next when fall-through is enabled.
func (g *Gate) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.serve(w, r, next)
	})
}

func (g *Gate) serve(w http.ResponseWriter, r *http.Request, next http.Handler) {
	select {
	case <-g.ready:
	case <-r.Context().Done():
		return
	}

	if g.loadErr != nil {
		// Loading failure is fatal to the instance: every request gets the
		// same fixed startup error
		g.logger.Error("rejecting request, contract failed to load", "error", g.loadErr)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"startup_failed","detail":"contract failed to load"}`))
		return
	}

	g.dispatch(w, r, next)
}

// newGenerator returns the mock generator for one request: seeded and
// reproducible when WithMockSeed was used, pseudo-random otherwise.
func (g *Gate) newGenerator() *mock.Generator {
	if g.mockSeed != nil {
		return mock.New(mock.WithSeed(*g.mockSeed))
	}
	return mock.New()
}

// writeError is the terminal link of the error-handling chain. Client errors
// carry their detail and field paths; server errors expose a generic body
// unless the gate runs in development mode.
func (g *Gate) writeError(w http.ResponseWriter, r *http.Request, err *gateerrors.RequestError) {
	if r.Context().Err() != nil {
		return
	}

	if err.Status >= http.StatusInternalServerError {
		g.logger.Error("request failed", "kind", err.Kind.String(), "status", err.Status, "error", err.Error())
	} else {
		g.logger.Debug("request rejected", "kind", err.Kind.String(), "status", err.Status, "detail", err.Detail)
	}

	h := w.Header()
	h.Set("Content-Type", "application/json")
	if err.Kind == gateerrors.KindMethodNotAllowed && len(err.Allow) > 0 {
		h.Set("Allow", strings.Join(err.Allow, ", "))
	}

	body := map[string]any{"error": err.Kind.String()}
	if err.Status < http.StatusInternalServerError || g.development {
		body["detail"] = err.Detail
		if len(err.Fields) > 0 {
			fields := make([]map[string]string, len(err.Fields))
			for i, f := range err.Fields {
				fields[i] = map[string]string{"path": f.Path, "message": f.Message}
			}
			body["fields"] = fields
		}
	} else {
		body["detail"] = "internal server error"
	}

	w.WriteHeader(err.Status)
	if encodeErr := json.NewEncoder(w).Encode(body); encodeErr != nil {
		g.logger.Debug("failed to write error response", "error", encodeErr)
	}
}
