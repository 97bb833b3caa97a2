package runner

import (
	"strings"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/model"
)

// assembler folds an ordered fragment sequence into one assistant message.
// Content, function name and function arguments accumulate by concatenation;
// tool call pieces are routed to an index-addressed record list. Fragments
// must be added in arrival order since later pieces extend earlier state.
type assembler struct {
	content   strings.Builder
	fnName    strings.Builder
	fnArgs    strings.Builder
	toolCalls []chat.ToolCall
}

func (a *assembler) add(f model.Fragment) {
	if f.Content != nil {
		a.content.WriteString(*f.Content)
	}
	if f.FunctionCall != nil {
		a.fnName.WriteString(f.FunctionCall.Name)
		a.fnArgs.WriteString(f.FunctionCall.Arguments)
	}
	for _, d := range f.ToolCalls {
		a.addToolCall(d)
	}
}

// addToolCall merges one tool call piece into the record at its index. The
// upstream stream assigns indices in non-decreasing order, but the list is
// grown defensively so a piece for a not-yet-seen higher index pads the gap
// with placeholder records instead of misfiling; toolCalls[i].Index == i
// always holds.
func (a *assembler) addToolCall(d model.ToolCallDelta) {
	if d.Index < 0 {
		return
	}
	for len(a.toolCalls) <= d.Index {
		a.toolCalls = append(a.toolCalls, chat.ToolCall{Index: len(a.toolCalls)})
	}
	tc := &a.toolCalls[d.Index]
	if d.ID != "" {
		tc.ID = d.ID
	}
	if d.Type != "" {
		tc.Type = d.Type
	}
	tc.Function.Name += d.Function.Name
	tc.Function.Arguments += d.Function.Arguments
}

// message finalizes the draft. Fields are only set when at least one piece
// arrived for them; a message with none of content / function call / tool
// calls is a legal degenerate empty turn.
func (a *assembler) message() chat.Message {
	msg := chat.Message{Role: chat.RoleAssistant}
	if a.content.Len() > 0 {
		content := a.content.String()
		msg.Content = &content
	}
	if a.fnName.Len() > 0 {
		msg.FunctionCall = &chat.FunctionCall{
			Name:      a.fnName.String(),
			Arguments: a.fnArgs.String(),
		}
	}
	if len(a.toolCalls) > 0 {
		msg.ToolCalls = a.toolCalls
	}
	return msg
}
