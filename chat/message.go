package chat

import "fmt"

// Role identifies the author of a conversation turn.
type Role string

// Conversation roles understood by chat-completion style APIs. RoleFunction
// is the legacy single-call result role; RoleTool carries results for the
// list-based tool call form.
const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleFunction  Role = "function"
	RoleTool      Role = "tool"
)

// FunctionCall is the legacy single-call-per-turn invocation request. Name
// and Arguments are built incrementally during streaming and are only
// meaningful once the producing stream has ended.
type FunctionCall struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"` // Raw serialized payload, usually JSON
}

// ToolCallFunction is the function target of a tool call. Both fields are
// append-only while the call is being streamed.
type ToolCallFunction struct {
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

// ToolCall is one entry of an assistant turn's parallel call list.
//
// Index is the only correlation key that is guaranteed to be present on every
// streamed fragment of the call; ID may arrive late and is overwritten when a
// later fragment supplies one.
type ToolCall struct {
	ID       string           `json:"id,omitempty"`
	Index    int              `json:"index"`
	Type     string           `json:"type,omitempty"` // currently always "function"
	Function ToolCallFunction `json:"function"`
}

// Message is one turn in a conversation.
//
// Content is a pointer so "absent" and "empty string" stay distinguishable;
// the streaming assembler only sets it when at least one content delta was
// seen. Metrics holds per-message observations (round time, token counts)
// written once when the message is finalized.
type Message struct {
	Role         Role               `json:"role"`
	Content      *string            `json:"content,omitempty"`
	Name         string             `json:"name,omitempty"` // function name on legacy results
	FunctionCall *FunctionCall      `json:"function_call,omitempty"`
	ToolCalls    []ToolCall         `json:"tool_calls,omitempty"`
	ToolCallID   string             `json:"tool_call_id,omitempty"` // links a tool result to its call
	Metrics      map[string]float64 `json:"metrics,omitempty"`
}

// System constructs a system message.
func System(content string) Message {
	return Message{Role: RoleSystem, Content: &content}
}

// User constructs a user message.
func User(content string) Message {
	return Message{Role: RoleUser, Content: &content}
}

// Assistant constructs a plain-text assistant message.
func Assistant(content string) Message {
	return Message{Role: RoleAssistant, Content: &content}
}

// FunctionResult constructs a legacy function-result message.
func FunctionResult(name, content string) Message {
	return Message{Role: RoleFunction, Name: name, Content: &content}
}

// ToolResult constructs a tool-result message referencing the originating call.
func ToolResult(toolCallID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: toolCallID, Content: &content}
}

// ContentString returns the message content or "" when absent.
func (m Message) ContentString() string {
	if m.Content == nil {
		return ""
	}
	return *m.Content
}

// HasCalls reports whether the message requests any function or tool execution.
func (m Message) HasCalls() bool {
	return m.FunctionCall != nil || len(m.ToolCalls) > 0
}

// SetMetric records a per-message observation, allocating the map lazily.
func (m *Message) SetMetric(key string, value float64) {
	if m.Metrics == nil {
		m.Metrics = map[string]float64{}
	}
	m.Metrics[key] = value
}

// String renders a compact single-line description for logging.
func (m Message) String() string {
	switch {
	case m.FunctionCall != nil:
		return fmt.Sprintf("%s: function_call %s(%s)", m.Role, m.FunctionCall.Name, m.FunctionCall.Arguments)
	case len(m.ToolCalls) > 0:
		return fmt.Sprintf("%s: %d tool call(s)", m.Role, len(m.ToolCalls))
	default:
		return fmt.Sprintf("%s: %s", m.Role, m.ContentString())
	}
}
