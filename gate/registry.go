package gate

import (
	"errors"
	"net/http"
	"sort"

	"github.com/erraggy/oasgate/contract"
	"github.com/erraggy/oasgate/gateerrors"
)

// Handler is the application callable bound to a contract operation. It is
// an ordinary HTTP handler: the validated [RequestContext] is available via
// [FromContext], and everything written to w passes through the response
// guard before reaching the wire.
type Handler func(w http.ResponseWriter, r *http.Request)

// Discoverer locates controller modules under a root path. It is the
// pluggable equivalent of file-system handler discovery: the returned map is
// keyed by module name, then function name.
type Discoverer interface {
	Discover(root string) (map[string]map[string]Handler, error)
}

// registry maps (module, function) binding pairs to registered handlers.
// It is populated once at load time and read-only thereafter.
type registry struct {
	modules map[string]map[string]Handler
}

func newRegistry() *registry {
	return &registry{modules: make(map[string]map[string]Handler)}
}

func (reg *registry) register(module, function string, h Handler) {
	fns, ok := reg.modules[module]
	if !ok {
		fns = make(map[string]Handler)
		reg.modules[module] = fns
	}
	fns[function] = h
}

func (reg *registry) lookup(b contract.Binding) (Handler, bool) {
	fns, ok := reg.modules[b.Module]
	if !ok {
		return nil, false
	}
	h, ok := fns[b.Function]
	return h, ok
}

// checkBindings verifies that every operation in the contract resolves to a
// registered handler, or — when mockFallback is set — to a mock controller
// or at least a mockable success response. Returns all failures joined.
func (reg *registry) checkBindings(c *contract.Contract, mockFallback bool, mocks *registry) error {
	var errs []error
	c.Operations(func(op *contract.Operation) bool {
		if _, ok := reg.lookup(op.Binding); ok {
			return true
		}
		if mockFallback {
			if _, ok := mocks.lookup(op.Binding); ok {
				return true
			}
			if _, ok := op.SuccessStatus(); ok {
				return true
			}
		}
		msg := "no registered controller"
		if mockFallback {
			msg = "no registered controller and no success response to mock"
		}
		errs = append(errs, &gateerrors.BindingError{
			Method:       op.Method,
			PathTemplate: op.Path.Template,
			Module:       op.Binding.Module,
			Function:     op.Binding.Function,
			Message:      msg,
		})
		return true
	})
	return errors.Join(errs...)
}

// moduleNames returns the registered module names, sorted. Used by the CLI
// check report.
func (reg *registry) moduleNames() []string {
	names := make([]string, 0, len(reg.modules))
	for name := range reg.modules {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
