package model

import (
	"context"

	"github.com/hupe1980/chatloop/chat"
)

// ToolChoice values accepted on a Request. An empty string leaves the
// provider default in place.
const (
	ToolChoiceAuto = "auto"
	ToolChoiceNone = "none"
)

// ToolDefinition declaratively exposes a callable function to the model.
type ToolDefinition struct {
	Type     string             `json:"type"` // "function"
	Function FunctionDefinition `json:"function"`
}

// FunctionDefinition describes an individual function (tool) exposed to the model.
// Parameters is a JSON Schema object (draft agnostic, minimal subset expected).
type FunctionDefinition struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"` // JSON Schema
}

// Request captures the normalized model input produced by the runner.
type Request struct {
	Messages   []chat.Message   `json:"messages"`
	Tools      []ToolDefinition `json:"tools,omitempty"`
	ToolChoice string           `json:"tool_choice,omitempty"`
}

// Usage captures token usage statistics for a completion.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is the chosen message of one blocking model invocation plus
// optional usage counts.
type Completion struct {
	Message chat.Message `json:"message"`
	Usage   *Usage       `json:"usage,omitempty"`
}

// FunctionCallDelta is a piece of a streamed legacy function call. Name and
// Arguments carry the new characters only, never the accumulated value.
type FunctionCallDelta struct {
	Name      string `json:"name,omitempty"`
	Arguments string `json:"arguments,omitempty"`
}

// ToolCallDelta is a piece of one entry of a streamed parallel call list.
// Index correlates pieces of the same call across fragments; ID and Type may
// be absent on early pieces and supplied later.
type ToolCallDelta struct {
	Index    int               `json:"index"`
	ID       string            `json:"id,omitempty"`
	Type     string            `json:"type,omitempty"`
	Function FunctionCallDelta `json:"function"`
}

// Fragment is one partial update unit of a streaming response. Every field is
// optional; a fragment may carry any subset of content, function call and
// tool call pieces.
type Fragment struct {
	Content      *string            `json:"content,omitempty"`
	FunctionCall *FunctionCallDelta `json:"function_call,omitempty"`
	ToolCalls    []ToolCallDelta    `json:"tool_calls,omitempty"`
}

// Stream is a lazy, ordered, finite sequence of fragments. The iteration
// protocol mirrors the provider SDK streams: call Next, read Current, check
// Err once Next returns false. Streams are not restartable.
type Stream interface {
	Next() bool
	Current() Fragment
	Err() error
	Close() error
}

// Info contains metadata about a client implementation.
type Info struct {
	Name          string `json:"name"`
	Provider      string `json:"provider"` // "openai", "anthropic", "mock", etc.
	SupportsTools bool   `json:"supports_tools"`
}

// Client is the minimal interface the runner needs to drive generation.
// Implementations adapt a concrete provider SDK; transport failures are
// returned as errors and are never retried here.
type Client interface {
	Invoke(ctx context.Context, req Request) (*Completion, error)
	InvokeStream(ctx context.Context, req Request) (Stream, error)

	// Info returns information about the client implementation.
	Info() Info
}

// fragmentStream iterates over an in-memory fragment slice.
type fragmentStream struct {
	fragments []Fragment
	pos       int
}

// NewFragmentStream wraps pre-built fragments in a Stream. Useful for tests
// and mock clients.
func NewFragmentStream(fragments []Fragment) Stream {
	return &fragmentStream{fragments: fragments}
}

func (s *fragmentStream) Next() bool {
	if s.pos >= len(s.fragments) {
		return false
	}
	s.pos++
	return true
}

func (s *fragmentStream) Current() Fragment { return s.fragments[s.pos-1] }

func (s *fragmentStream) Err() error { return nil }

func (s *fragmentStream) Close() error { return nil }

// TextFragment builds a content-only fragment.
func TextFragment(text string) Fragment { return Fragment{Content: &text} }
