package tool

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/chat"
)

func TestResolve(t *testing.T) {
	reg := NewRegistry(sumFunction())

	call, err := Resolve(reg, "calculate_sum", `{"a":2,"b":3}`)
	require.NoError(t, err)
	assert.Equal(t, "calculate_sum", call.Function.Name())
	assert.Equal(t, map[string]any{"a": 2.0, "b": 3.0}, call.Args)

	result, err := call.Execute(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5.0, result)
}

func TestResolve_NotFound(t *testing.T) {
	reg := NewRegistry()

	_, err := Resolve(reg, "missing", "{}")
	require.Error(t, err)

	var notFound *NotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Name)
}

func TestResolve_InvalidJSON(t *testing.T) {
	reg := NewRegistry(sumFunction())

	_, err := Resolve(reg, "calculate_sum", `{"a":`)
	require.Error(t, err)

	var decodeErr *ArgumentDecodeError
	require.ErrorAs(t, err, &decodeErr)
	assert.Equal(t, "calculate_sum", decodeErr.Name)
	assert.Equal(t, `{"a":`, decodeErr.Raw)
	assert.NotNil(t, decodeErr.Unwrap())
}

func TestResolve_SchemaViolation(t *testing.T) {
	reg := NewRegistry(sumFunction())

	_, err := Resolve(reg, "calculate_sum", `{"a":"two","b":3}`)
	require.Error(t, err)

	var decodeErr *ArgumentDecodeError
	require.ErrorAs(t, err, &decodeErr)

	var validationErr *ValidationError
	assert.ErrorAs(t, decodeErr.Err, &validationErr)
	assert.Equal(t, "a", validationErr.Field)
}

func TestResolve_EmptyArguments(t *testing.T) {
	noop := NewFunction("noop", "No parameters",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, args map[string]any) (any, error) {
			return len(args), nil
		},
	)
	reg := NewRegistry(noop)

	call, err := Resolve(reg, "noop", "")
	require.NoError(t, err)
	assert.Empty(t, call.Args)
}

func TestResolveToolCall_CarriesID(t *testing.T) {
	reg := NewRegistry(sumFunction())

	call, err := ResolveToolCall(reg, chat.ToolCall{
		ID:       "call_42",
		Type:     "function",
		Function: chat.ToolCallFunction{Name: "calculate_sum", Arguments: `{"a":1,"b":1}`},
	})
	require.NoError(t, err)
	assert.Equal(t, "call_42", call.CallID)
}

func TestCall_CallString(t *testing.T) {
	reg := NewRegistry(sumFunction())

	call, err := Resolve(reg, "calculate_sum", `{"b":3,"a":2}`)
	require.NoError(t, err)
	assert.Equal(t, "calculate_sum(a=2, b=3)", call.CallString())

	noArgs := &Call{Function: sumFunction(), Args: map[string]any{}}
	assert.Equal(t, "calculate_sum()", noArgs.CallString())
}
