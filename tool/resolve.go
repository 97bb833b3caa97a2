package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/internal/util"
)

// NotFoundError reports a call to a function name absent from the registry.
type NotFoundError struct {
	Name string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("function %q is not registered", e.Name)
}

// ArgumentDecodeError reports a raw argument payload that is not valid JSON
// or does not satisfy the function's declared parameter schema.
type ArgumentDecodeError struct {
	Name string
	Raw  string
	Err  error
}

func (e *ArgumentDecodeError) Error() string {
	return fmt.Sprintf("invalid arguments for function %q: %v", e.Name, e.Err)
}

func (e *ArgumentDecodeError) Unwrap() error { return e.Err }

// Call is a resolved, runnable invocation: a located function bound to its
// decoded arguments and, on the tool-call path, the originating call ID.
type Call struct {
	Function *Function
	Args     map[string]any
	CallID   string
}

// Execute invokes the bound function. Resolution has already validated the
// arguments; failures here are execution failures.
func (c *Call) Execute(ctx context.Context) (any, error) {
	return c.Function.Call(ctx, c.Args)
}

// CallString renders a human-readable call signature, e.g. "sum(a=2, b=3)".
// Argument order is stable (sorted by key).
func (c *Call) CallString() string {
	keys := make([]string, 0, len(c.Args))
	for k := range c.Args {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	b.WriteString(c.Function.Name())
	b.WriteString("(")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(&b, "%s=%v", k, c.Args[k])
	}
	b.WriteString(")")
	return b.String()
}

// Resolve maps a call descriptor (name + raw argument string) onto a runnable
// Call. It is a pure function of the registry and descriptor: no execution,
// no side effects. Failures are *NotFoundError or *ArgumentDecodeError.
func Resolve(reg *Registry, name, arguments string) (*Call, error) {
	fn, ok := reg.Lookup(name)
	if !ok {
		return nil, &NotFoundError{Name: name}
	}

	args := map[string]any{}
	if arguments != "" {
		if err := json.Unmarshal([]byte(arguments), &args); err != nil {
			return nil, &ArgumentDecodeError{Name: name, Raw: arguments, Err: err}
		}
	}
	if err := util.ValidateParameters(args, fn.Parameters()); err != nil {
		return nil, &ArgumentDecodeError{Name: name, Raw: arguments, Err: err}
	}

	return &Call{Function: fn, Args: args}, nil
}

// ResolveToolCall resolves one entry of a parallel tool call list, carrying
// the call ID through for result correlation.
func ResolveToolCall(reg *Registry, tc chat.ToolCall) (*Call, error) {
	call, err := Resolve(reg, tc.Function.Name, tc.Function.Arguments)
	if err != nil {
		return nil, err
	}
	call.CallID = tc.ID
	return call, nil
}
