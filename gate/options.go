package gate

import (
	"net/http"

	"github.com/getkin/kin-openapi/openapi3"

	"github.com/erraggy/oasgate/gateerrors"
)

// DefaultMockHeader and DefaultMockQuery are the request fields that trigger
// a mock response when no option overrides them. Their value, when it parses
// as an HTTP status code, selects the mocked response status.
const (
	DefaultMockHeader = "X-Oasgate-Mock"
	DefaultMockQuery  = "_mock"
)

// defaultMaxBodySize is the request body limit when WithMaxBodySize is not
// used (10 MiB).
const defaultMaxBodySize = 10 << 20

// ErrorHandler is one link in the error-handling chain. It receives every
// request-terminating pipeline error before the gate's built-in response
// writer. Returning true marks the error handled, suppressing the built-in
// response.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err *gateerrors.RequestError) bool

// Option is a functional option for configuring a Gate.
type Option func(*config) error

// config holds the configuration for a Gate.
type config struct {
	// Contract source (exactly one must be set)
	contractFile string
	contractData []byte
	doc          *openapi3.T

	// Pipeline behavior
	development  bool
	fallThrough  bool
	strict       bool
	mockHeader   string
	mockQuery    string
	mockFallback bool
	mockSeed     *int64
	maxBodySize  int64

	// Contract extension keys
	controllerKey string
	operationKey  string

	// Controller wiring
	controllers map[string]map[string]Handler
	roots       []discoveryRoot
	mockRoots   []discoveryRoot

	// Ambient
	logger        Logger
	errorHandlers []ErrorHandler
}

type discoveryRoot struct {
	root       string
	discoverer Discoverer
}

// defaultConfig returns the default configuration.
func defaultConfig() *config {
	return &config{
		mockHeader:  DefaultMockHeader,
		mockQuery:   DefaultMockQuery,
		maxBodySize: defaultMaxBodySize,
		controllers: make(map[string]map[string]Handler),
		logger:      NopLogger{},
	}
}

// WithContractFile loads the contract from a file path or URL.
func WithContractFile(location string) Option {
	return func(c *config) error {
		c.contractFile = location
		return nil
	}
}

// WithContractData loads the contract from raw YAML or JSON bytes.
func WithContractData(data []byte) Option {
	return func(c *config) error {
		if len(data) == 0 {
			return &gateerrors.ConfigError{Option: "WithContractData", Message: "data cannot be empty"}
		}
		c.contractData = data
		return nil
	}
}

// WithContract uses an already-loaded OpenAPI document.
func WithContract(doc *openapi3.T) Option {
	return func(c *config) error {
		if doc == nil {
			return &gateerrors.ConfigError{Option: "WithContract", Message: "document cannot be nil"}
		}
		c.doc = doc
		return nil
	}
}

// WithDevelopment relaxes load-time fatality and enables diagnostic error
// bodies: missing controllers degrade to mocks per request instead of
// failing at load, and response-contract violations are reported to the
// client with the offending field paths. Default is false.
func WithDevelopment(dev bool) Option {
	return func(c *config) error {
		c.development = dev
		return nil
	}
}

// WithFallThrough makes unmatched paths yield control to the handler passed
// to [Gate.Handler] instead of emitting a 404. Default is false.
func WithFallThrough(enabled bool) Option {
	return func(c *config) error {
		c.fallThrough = enabled
		return nil
	}
}

// WithStrict rejects requests carrying query parameters, non-standard
// headers, or cookies that the matched operation does not declare.
// Default is false: undeclared values are ignored.
func WithStrict(strict bool) Option {
	return func(c *config) error {
		c.strict = strict
		return nil
	}
}

// WithMockHeader sets the header name that triggers a mock response.
// An empty name disables the header trigger.
func WithMockHeader(name string) Option {
	return func(c *config) error {
		c.mockHeader = name
		return nil
	}
}

// WithMockQuery sets the query parameter name that triggers a mock response.
// An empty name disables the query trigger.
func WithMockQuery(name string) Option {
	return func(c *config) error {
		c.mockQuery = name
		return nil
	}
}

// WithMockFallback serves a schema-valid mock for operations with no
// registered controller. Default is false.
func WithMockFallback(enabled bool) Option {
	return func(c *config) error {
		c.mockFallback = enabled
		return nil
	}
}

// WithMockSeed makes mock generation deterministic. Without it generation is
// pseudo-random per request.
func WithMockSeed(seed int64) Option {
	return func(c *config) error {
		c.mockSeed = &seed
		return nil
	}
}

// WithMaxBodySize sets the maximum request body size in bytes. Bodies
// exceeding the limit are rejected with a 400. Default: 10 MiB.
func WithMaxBodySize(n int64) Option {
	return func(c *config) error {
		if n <= 0 {
			return &gateerrors.ConfigError{Option: "WithMaxBodySize", Message: "size must be positive"}
		}
		c.maxBodySize = n
		return nil
	}
}

// WithControllerKey sets the vendor extension key consulted for controller
// module overrides. Default is "x-controller".
func WithControllerKey(key string) Option {
	return func(c *config) error {
		if key == "" {
			return &gateerrors.ConfigError{Option: "WithControllerKey", Message: "key cannot be empty"}
		}
		c.controllerKey = key
		return nil
	}
}

// WithOperationKey sets the vendor extension key consulted for function name
// overrides. Default is "x-operation".
func WithOperationKey(key string) Option {
	return func(c *config) error {
		if key == "" {
			return &gateerrors.ConfigError{Option: "WithOperationKey", Message: "key cannot be empty"}
		}
		c.operationKey = key
		return nil
	}
}

// WithController registers a single handler under a (module, function)
// binding pair.
func WithController(module, function string, h Handler) Option {
	return func(c *config) error {
		if h == nil {
			return &gateerrors.ConfigError{Option: "WithController", Message: "handler cannot be nil"}
		}
		fns, ok := c.controllers[module]
		if !ok {
			fns = make(map[string]Handler)
			c.controllers[module] = fns
		}
		fns[function] = h
		return nil
	}
}

// WithControllersRoot registers a discovery root: at load time the
// discoverer is asked to locate every controller module under the root, and
// the results are merged into the registry. Explicit [WithController]
// registrations win on conflict.
func WithControllersRoot(root string, d Discoverer) Option {
	return func(c *config) error {
		if d == nil {
			return &gateerrors.ConfigError{Option: "WithControllersRoot", Message: "discoverer cannot be nil"}
		}
		c.roots = append(c.roots, discoveryRoot{root: root, discoverer: d})
		return nil
	}
}

// WithMockControllersRoot registers a discovery root for mock-specific
// controllers. Handlers found here are consulted only when a request is
// served as a mock (manual trigger or fallback), taking precedence over
// synthetic generation; this lets an operation carry a scripted mock while
// the rest of the contract is synthesized.
func WithMockControllersRoot(root string, d Discoverer) Option {
	return func(c *config) error {
		if d == nil {
			return &gateerrors.ConfigError{Option: "WithMockControllersRoot", Message: "discoverer cannot be nil"}
		}
		c.mockRoots = append(c.mockRoots, discoveryRoot{root: root, discoverer: d})
		return nil
	}
}

// WithLogger sets the logger used by the pipeline. Default is a no-op logger.
func WithLogger(logger Logger) Option {
	return func(c *config) error {
		if logger == nil {
			return &gateerrors.ConfigError{Option: "WithLogger", Message: "logger cannot be nil"}
		}
		c.logger = logger
		return nil
	}
}

// WithErrorHandler appends a handler to the error-handling chain. Handlers
// run in registration order; the first to return true stops the chain and
// suppresses the gate's built-in error response.
func WithErrorHandler(h ErrorHandler) Option {
	return func(c *config) error {
		if h == nil {
			return &gateerrors.ConfigError{Option: "WithErrorHandler", Message: "handler cannot be nil"}
		}
		c.errorHandlers = append(c.errorHandlers, h)
		return nil
	}
}
