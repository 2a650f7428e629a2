package contract

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/erraggy/oasgate"
	"github.com/erraggy/oasgate/gateerrors"
)

// Default vendor extension keys for controller binding overrides.
const (
	DefaultControllerKey = "x-controller"
	DefaultOperationKey  = "x-operation"
)

// Contract is an immutable, request-ready view of an OpenAPI document.
// All lookups the dispatch pipeline performs per request are precomputed
// here once, at construction time.
type Contract struct {
	doc      *openapi3.T
	matchers *MatcherSet

	// paths maps template -> Path
	paths map[string]*Path

	controllerKey string
	operationKey  string

	// rootController is the document-level controller override, if any
	rootController string
}

// Path is one path template together with its operations.
type Path struct {
	// Template is the OpenAPI path template (e.g., "/pets/{petId}")
	Template string

	// Allow lists the methods defined for this path, sorted, for use in
	// 405 responses
	Allow []string

	item       *openapi3.PathItem
	operations map[string]*Operation
}

// Operation is one (path template, method) pair with its merged parameter
// set and resolved controller binding.
type Operation struct {
	// Method is the upper-case HTTP method
	Method string

	// Path is the owning path entry
	Path *Path

	// Binding is the resolved controller binding for this operation
	Binding Binding

	op *openapi3.Operation

	// params is the merged parameter list: path-level parameters overridden
	// by operation-level parameters with the same (name, location)
	params []*openapi3.Parameter
}

// Option configures Contract construction.
type Option func(*config) error

type config struct {
	controllerKey string
	operationKey  string
}

func defaultConfig() *config {
	return &config{
		controllerKey: DefaultControllerKey,
		operationKey:  DefaultOperationKey,
	}
}

// WithControllerKey sets the vendor extension key used for controller
// overrides. Default is "x-controller".
func WithControllerKey(key string) Option {
	return func(c *config) error {
		if key == "" {
			return &gateerrors.ConfigError{Option: "controllerKey", Message: "cannot be empty"}
		}
		c.controllerKey = key
		return nil
	}
}

// WithOperationKey sets the vendor extension key used for operation
// (function name) overrides. Default is "x-operation".
func WithOperationKey(key string) Option {
	return func(c *config) error {
		if key == "" {
			return &gateerrors.ConfigError{Option: "operationKey", Message: "cannot be empty"}
		}
		c.operationKey = key
		return nil
	}
}

// Load reads and dereferences an OpenAPI document from a local file path or
// an HTTP(S) URL, then validates it structurally.
func Load(ctx context.Context, location string) (*openapi3.T, error) {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}

	var (
		doc *openapi3.T
		err error
	)
	if u, uerr := url.Parse(location); uerr == nil && (u.Scheme == "http" || u.Scheme == "https") {
		doc, err = loadFromURL(ctx, loader, u)
	} else {
		doc, err = loader.LoadFromFile(location)
	}
	if err != nil {
		return nil, fmt.Errorf("contract: loading %q: %w", location, err)
	}

	if err := doc.Validate(ctx); err != nil {
		return nil, fmt.Errorf("contract: validating %q: %w", location, err)
	}
	return doc, nil
}

// loadFromURL fetches the document itself so the request identifies the
// library via User-Agent; external refs still resolve through the loader.
func loadFromURL(ctx context.Context, loader *openapi3.Loader, u *url.URL) (*openapi3.T, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", oasgate.UserAgent())

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching %s: unexpected status %s", u, resp.Status)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	return loader.LoadFromDataWithPath(data, u)
}

// LoadData parses and dereferences an OpenAPI document from bytes
// (JSON or YAML).
func LoadData(ctx context.Context, data []byte) (*openapi3.T, error) {
	loader := &openapi3.Loader{Context: ctx, IsExternalRefsAllowed: true}
	doc, err := loader.LoadFromData(data)
	if err != nil {
		return nil, fmt.Errorf("contract: parsing document: %w", err)
	}
	return doc, nil
}

// New builds a Contract from a dereferenced OpenAPI document.
// Path matchers are compiled, parameters merged, and controller bindings
// resolved once here; the result is read-only.
func New(doc *openapi3.T, opts ...Option) (*Contract, error) {
	if doc == nil {
		return nil, &gateerrors.ConfigError{Option: "document", Message: "cannot be nil"}
	}

	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt(cfg); err != nil {
			return nil, err
		}
	}

	c := &Contract{
		doc:           doc,
		paths:         make(map[string]*Path),
		controllerKey: cfg.controllerKey,
		operationKey:  cfg.operationKey,
	}
	c.rootController, _ = stringExtension(doc.Extensions, cfg.controllerKey)

	var templates []string
	if doc.Paths != nil {
		for template, item := range doc.Paths.Map() {
			if item == nil {
				continue
			}
			templates = append(templates, template)
			c.paths[template] = c.newPath(template, item)
		}
	}

	matchers, err := NewMatcherSet(templates)
	if err != nil {
		return nil, err
	}
	c.matchers = matchers

	return c, nil
}

// newPath indexes one path item: operations per method, merged parameters,
// resolved bindings, and the Allow list.
func (c *Contract) newPath(template string, item *openapi3.PathItem) *Path {
	p := &Path{
		Template:   template,
		item:       item,
		operations: make(map[string]*Operation),
	}

	for method, op := range item.Operations() {
		if op == nil {
			continue
		}
		method = strings.ToUpper(method)
		p.operations[method] = &Operation{
			Method:  method,
			Path:    p,
			Binding: c.resolveBinding(template, item, method, op),
			op:      op,
			params:  mergeParameters(item.Parameters, op.Parameters),
		}
		p.Allow = append(p.Allow, method)
	}
	sort.Strings(p.Allow)

	return p
}

// mergeParameters merges path-level and operation-level parameters.
// Operation parameters override path parameters with the same name and location.
func mergeParameters(pathParams, opParams openapi3.Parameters) []*openapi3.Parameter {
	merged := make(map[string]*openapi3.Parameter)
	order := make([]string, 0, len(pathParams)+len(opParams))

	add := func(refs openapi3.Parameters) {
		for _, ref := range refs {
			if ref == nil || ref.Value == nil {
				continue
			}
			key := ref.Value.In + ":" + ref.Value.Name
			if _, seen := merged[key]; !seen {
				order = append(order, key)
			}
			merged[key] = ref.Value
		}
	}
	add(pathParams)
	add(opParams)

	result := make([]*openapi3.Parameter, 0, len(order))
	for _, key := range order {
		result = append(result, merged[key])
	}
	return result
}

// Match resolves (method, path) to the unique documented operation and the
// extracted raw path parameters.
//
// Misses are typed: an unmatched path returns a NotFound error; a matched
// path without the method returns a MethodNotAllowed error carrying the
// path's Allow list.
func (c *Contract) Match(method, path string) (*Operation, map[string]string, *gateerrors.RequestError) {
	template, params, found := c.matchers.Match(path)
	if !found {
		return nil, nil, gateerrors.NewRequestError(
			gateerrors.KindNotFound,
			fmt.Sprintf("no matching path for %s", path),
		)
	}

	p := c.paths[template]
	op, ok := p.operations[strings.ToUpper(method)]
	if !ok {
		err := gateerrors.NewRequestError(
			gateerrors.KindMethodNotAllowed,
			fmt.Sprintf("method %s not allowed for path %s", method, template),
		)
		err.Allow = p.Allow
		return nil, nil, err
	}

	return op, params, nil
}

// Path returns the path entry for a template, or nil.
func (c *Contract) Path(template string) *Path {
	return c.paths[template]
}

// Templates returns all path templates in specificity order.
func (c *Contract) Templates() []string {
	return c.matchers.Templates()
}

// Operations calls fn for every operation in the contract, in deterministic
// (template, method) order. Iteration stops early if fn returns false.
func (c *Contract) Operations(fn func(op *Operation) bool) {
	templates := make([]string, 0, len(c.paths))
	for t := range c.paths {
		templates = append(templates, t)
	}
	sort.Strings(templates)

	for _, t := range templates {
		p := c.paths[t]
		methods := make([]string, 0, len(p.operations))
		for m := range p.operations {
			methods = append(methods, m)
		}
		sort.Strings(methods)
		for _, m := range methods {
			if !fn(p.operations[m]) {
				return
			}
		}
	}
}

// ID returns a stable identifier for logs, e.g. "GET /pets/{petId}".
func (op *Operation) ID() string {
	return op.Method + " " + op.Path.Template
}

// OperationID returns the operationId declared in the document, if any.
func (op *Operation) OperationID() string {
	return op.op.OperationID
}

// Parameters returns the merged parameter definitions for this operation.
// Within one operation, (name, location) is unique.
func (op *Operation) Parameters() []*openapi3.Parameter {
	return op.params
}

// ParametersIn returns the merged parameters declared at the given location
// (path, query, header, or cookie).
func (op *Operation) ParametersIn(location string) []*openapi3.Parameter {
	var result []*openapi3.Parameter
	for _, p := range op.params {
		if p.In == location {
			result = append(result, p)
		}
	}
	return result
}

// BodyRequired reports whether the operation declares a required request body.
func (op *Operation) BodyRequired() bool {
	return op.op.RequestBody != nil && op.op.RequestBody.Value != nil && op.op.RequestBody.Value.Required
}

// HasBody reports whether the operation declares a request body at all.
func (op *Operation) HasBody() bool {
	return op.op.RequestBody != nil && op.op.RequestBody.Value != nil
}

// BodySchema returns the request body schema declared for the given media
// type, trying an exact match first and then wildcard declarations such as
// "application/*". The bool reports whether the media type is declared.
func (op *Operation) BodySchema(mediaType string) (*openapi3.Schema, bool) {
	if !op.HasBody() {
		return nil, false
	}
	mt := lookupContent(op.op.RequestBody.Value.Content, mediaType)
	if mt == nil {
		return nil, false
	}
	if mt.Schema == nil {
		return nil, true
	}
	return mt.Schema.Value, true
}

// lookupContent finds the media type entry for a concrete media type,
// honoring wildcard declarations ("application/*", "*/*").
func lookupContent(content openapi3.Content, mediaType string) *openapi3.MediaType {
	if len(content) == 0 {
		return nil
	}
	mediaType = strings.ToLower(mediaType)

	if mt, ok := content[mediaType]; ok {
		return mt
	}
	for declared, mt := range content {
		if matchMediaType(strings.ToLower(declared), mediaType) {
			return mt
		}
	}
	return nil
}

// matchMediaType checks if a declared media type pattern covers a concrete
// media type. Supports wildcards like "application/*" and "*/*".
func matchMediaType(pattern, mediaType string) bool {
	if pattern == "*/*" {
		return true
	}
	if strings.HasSuffix(pattern, "/*") {
		return strings.HasPrefix(mediaType, pattern[:len(pattern)-1])
	}
	return pattern == mediaType
}
