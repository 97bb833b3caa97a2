// Package tool implements the function calling subsystem: a registry of
// schema-validated callables plus the resolver that turns a model-requested
// call descriptor into something executable.
package tool

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/hupe1980/chatloop/internal/util"
	"github.com/hupe1980/chatloop/model"
)

// Entrypoint is the signature of a user supplied function implementation.
// Arguments arrive parsed from JSON and validated against the declared schema.
type Entrypoint func(ctx context.Context, args map[string]any) (any, error)

// ValidationError represents parameter validation errors with detailed information.
type ValidationError = util.ValidationError

// ToolError represents errors that occur during function execution.
type ToolError struct {
	Tool    string `json:"tool"`              // Name of the function that failed
	Message string `json:"message"`           // Error message
	Code    string `json:"code"`              // Error code for categorization
	Details any    `json:"details,omitempty"` // Additional error details
}

func (e *ToolError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("tool error [%s] in %s: %s", e.Code, e.Tool, e.Message)
	}
	return fmt.Sprintf("tool error in %s: %s", e.Tool, e.Message)
}

// Function exposes a plain Go function to the model.
//
// It holds a lightweight JSON-Schema-like parameter specification, validates
// supplied arguments against it before execution and normalizes failures to
// *ToolError with consistent codes:
//
//	VALIDATION_ERROR -> schema / argument mismatch
//	EXECUTION_ERROR  -> underlying function returned an error (non-ToolError)
//	(custom codes preserved if the function returns *ToolError directly)
//
// A Function has no internal mutable state after construction and is safe for
// concurrent use by multiple goroutines.
type Function struct {
	// Function identifier (snake_case recommended)
	name string
	// Human-readable description shown to models
	description string
	// JSON schema describing accepted arguments
	parameters map[string]any
	// User supplied implementation
	fn Entrypoint
}

// NewFunction constructs a Function from explicit schema and implementation.
//
// Example:
//
//	sum := NewFunction(
//	  "calculate_sum",
//	  "Calculate the sum of two numbers",
//	  map[string]any{
//	    "type": "object",
//	    "properties": map[string]any{
//	      "a": map[string]any{"type": "number"},
//	      "b": map[string]any{"type": "number"},
//	    },
//	    "required": []string{"a", "b"},
//	  },
//	  func(ctx context.Context, args map[string]any) (any, error) {
//	    return args["a"].(float64) + args["b"].(float64), nil
//	  },
//	)
func NewFunction(name, description string, parameters map[string]any, fn Entrypoint) *Function {
	return &Function{
		name:        name,
		description: description,
		parameters:  parameters,
		fn:          fn,
	}
}

// NewFunctionFromStruct derives the parameter schema from a struct using
// reflection, equivalent to util.CreateSchema(structType).
func NewFunctionFromStruct(name, description string, structType any, fn Entrypoint) *Function {
	return NewFunction(name, description, util.CreateSchema(structType), fn)
}

// Name returns the unique function name used in call declarations and routing.
func (f *Function) Name() string { return f.name }

// Description returns the short natural language description exposed to models.
func (f *Function) Description() string { return f.description }

// Parameters returns the (minimal) JSON schema describing expected arguments.
func (f *Function) Parameters() map[string]any { return f.parameters }

// Definition renders the function as a model-facing tool definition.
func (f *Function) Definition() model.ToolDefinition {
	return model.ToolDefinition{
		Type: "function",
		Function: model.FunctionDefinition{
			Name:        f.name,
			Description: f.description,
			Parameters:  f.parameters,
		},
	}
}

// Call validates the provided args against the declared schema then invokes
// the underlying implementation. Validation or execution failures are wrapped
// (or passed through) as *ToolError for uniform downstream handling.
func (f *Function) Call(ctx context.Context, args map[string]any) (any, error) {
	if err := util.ValidateParameters(args, f.parameters); err != nil {
		return nil, &ToolError{
			Tool:    f.name,
			Message: fmt.Sprintf("parameter validation failed: %v", err),
			Code:    "VALIDATION_ERROR",
			Details: err,
		}
	}

	result, err := f.fn(ctx, args)
	if err != nil {
		if toolErr, ok := err.(*ToolError); ok { // Already a ToolError -> forward
			return nil, toolErr
		}
		return nil, &ToolError{
			Tool:    f.name,
			Message: err.Error(),
			Code:    "EXECUTION_ERROR",
		}
	}
	return result, nil
}

// Registry is a named collection of functions the model may call. It is safe
// for concurrent use; registration typically happens once at setup time.
type Registry struct {
	mu  sync.RWMutex
	fns map[string]*Function
}

// NewRegistry constructs a registry pre-populated with the given functions.
// Duplicate names overwrite silently; use Register to detect collisions.
func NewRegistry(fns ...*Function) *Registry {
	r := &Registry{fns: make(map[string]*Function, len(fns))}
	for _, f := range fns {
		r.fns[f.Name()] = f
	}
	return r
}

// Register adds a function, rejecting duplicate names.
func (r *Registry) Register(f *Function) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.fns[f.Name()]; exists {
		return fmt.Errorf("function %q already registered", f.Name())
	}
	r.fns[f.Name()] = f
	return nil
}

// Lookup returns the function registered under name, if any.
func (r *Registry) Lookup(name string) (*Function, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.fns[name]
	return f, ok
}

// Names returns the registered function names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Definitions renders all registered functions as model-facing tool
// definitions, ordered by name.
func (r *Registry) Definitions() []model.ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.fns))
	for name := range r.fns {
		names = append(names, name)
	}
	sort.Strings(names)
	defs := make([]model.ToolDefinition, 0, len(names))
	for _, name := range names {
		defs = append(defs, r.fns[name].Definition())
	}
	return defs
}

// Len reports the number of registered functions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.fns)
}
