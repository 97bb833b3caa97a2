package model

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/chat"
)

func collect(t *testing.T, s Stream) []Fragment {
	t.Helper()
	var fragments []Fragment
	for s.Next() {
		fragments = append(fragments, s.Current())
	}
	require.NoError(t, s.Err())
	require.NoError(t, s.Close())
	return fragments
}

func TestMockClient_Invoke(t *testing.T) {
	client := NewMockClient("mock-1")
	assert.Equal(t, "mock-1", client.Info().Name)
	assert.True(t, client.Info().SupportsTools)

	client.QueueCompletion(chat.Assistant("first"), &Usage{TotalTokens: 3})
	client.QueueCompletion(chat.Assistant("second"), nil)

	c, err := client.Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "first", c.Message.ContentString())
	assert.Equal(t, 3, c.Usage.TotalTokens)

	c, err = client.Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "second", c.Message.ContentString())

	// Exhausted scripts produce a canned answer.
	c, err = client.Invoke(context.Background(), Request{})
	require.NoError(t, err)
	assert.Equal(t, "Mock response.", c.Message.ContentString())
}

func TestMockClient_InvokeStream(t *testing.T) {
	client := NewMockClient("mock-1")
	client.QueueFragments(TextFragment("a"), TextFragment("b"))

	s, err := client.InvokeStream(context.Background(), Request{})
	require.NoError(t, err)
	fragments := collect(t, s)
	require.Len(t, fragments, 2)
	assert.Equal(t, "a", *fragments[0].Content)
	assert.Equal(t, "b", *fragments[1].Content)
}

func TestMockClient_CompletionRoundServesStreaming(t *testing.T) {
	client := NewMockClient("mock-1")
	client.QueueCompletion(chat.Message{
		Role:    chat.RoleAssistant,
		Content: ptr("hi"),
		ToolCalls: []chat.ToolCall{{
			ID: "c1", Index: 0, Type: "function",
			Function: chat.ToolCallFunction{Name: "noop", Arguments: "{}"},
		}},
	}, nil)

	s, err := client.InvokeStream(context.Background(), Request{})
	require.NoError(t, err)
	fragments := collect(t, s)
	require.Len(t, fragments, 2)
	assert.Equal(t, "hi", *fragments[0].Content)
	require.Len(t, fragments[1].ToolCalls, 1)
	assert.Equal(t, "c1", fragments[1].ToolCalls[0].ID)
}

func TestMockClient_ToolChoiceNoneStripsCalls(t *testing.T) {
	client := NewMockClient("mock-1")
	client.QueueCompletion(chat.Message{
		Role:    chat.RoleAssistant,
		Content: ptr("done"),
		ToolCalls: []chat.ToolCall{{
			ID: "c1", Type: "function",
			Function: chat.ToolCallFunction{Name: "noop", Arguments: "{}"},
		}},
		FunctionCall: &chat.FunctionCall{Name: "noop", Arguments: "{}"},
	}, nil)

	c, err := client.Invoke(context.Background(), Request{ToolChoice: ToolChoiceNone})
	require.NoError(t, err)
	assert.Equal(t, "done", c.Message.ContentString())
	assert.Nil(t, c.Message.FunctionCall)
	assert.Empty(t, c.Message.ToolCalls)
}

func TestAssembleFragments(t *testing.T) {
	msg := assembleFragments([]Fragment{
		TextFragment("Hel"),
		TextFragment("lo"),
		{ToolCalls: []ToolCallDelta{{Index: 1, ID: "c2", Function: FunctionCallDelta{Name: "second"}}}},
		{ToolCalls: []ToolCallDelta{{Index: 0, ID: "c1", Function: FunctionCallDelta{Name: "first", Arguments: "{}"}}}},
		{ToolCalls: []ToolCallDelta{{Index: 1, Function: FunctionCallDelta{Arguments: "{}"}}}},
	})

	assert.Equal(t, "Hello", msg.ContentString())
	require.Len(t, msg.ToolCalls, 2)
	assert.Equal(t, "c1", msg.ToolCalls[0].ID)
	assert.Equal(t, "first", msg.ToolCalls[0].Function.Name)
	assert.Equal(t, "c2", msg.ToolCalls[1].ID)
	assert.Equal(t, "{}", msg.ToolCalls[1].Function.Arguments)
	// Gap padding keeps list index and call index aligned.
	assert.Equal(t, 0, msg.ToolCalls[0].Index)
	assert.Equal(t, 1, msg.ToolCalls[1].Index)
}

func TestNewFragmentStream_Empty(t *testing.T) {
	s := NewFragmentStream(nil)
	assert.False(t, s.Next())
	assert.NoError(t, s.Err())
	assert.NoError(t, s.Close())
}

func ptr(s string) *string { return &s }
