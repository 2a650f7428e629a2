package contract

import (
	"github.com/getkin/kin-openapi/openapi3"

	"github.com/erraggy/oasgate/internal/naming"
)

// Binding is the resolved (controller module, function) pair for an
// operation. It is computed once at construction time by the three-level
// override hierarchy and never mutated afterwards.
type Binding struct {
	// Module is the controller module name
	Module string
	// Function is the function name within the module
	Function string
}

// resolveBinding computes the controller binding for one operation.
//
// The two axes resolve independently: the module name through
// operation-level, then path-level, then document-level x-controller
// extensions, falling back to a name derived from the path template; the
// function name through the operation-level x-operation extension, falling
// back to operationId, then the lowercase method. A path can therefore
// override the controller while an operation overrides only the function.
func (c *Contract) resolveBinding(template string, item *openapi3.PathItem, method string, op *openapi3.Operation) Binding {
	module, ok := stringExtension(op.Extensions, c.controllerKey)
	if !ok {
		module, ok = stringExtension(item.Extensions, c.controllerKey)
	}
	if !ok {
		module = c.rootController
	}
	if module == "" {
		module = naming.ControllerName(template)
	}

	function, ok := stringExtension(op.Extensions, c.operationKey)
	if !ok {
		function = naming.FunctionName(op.OperationID, method)
	}

	return Binding{Module: module, Function: function}
}

// stringExtension extracts a non-empty string vendor extension value.
func stringExtension(ext map[string]any, key string) (string, bool) {
	if ext == nil {
		return "", false
	}
	s, ok := ext[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
