package model

import (
	"context"
	"sync"

	"github.com/hupe1980/chatloop/chat"
)

// mockRound is one scripted model turn, either a completion or a fragment
// sequence depending on which invocation style the test exercises.
type mockRound struct {
	completion *Completion
	fragments  []Fragment
}

// MockClient is a scriptable in-memory Client for tests and examples. Rounds
// are consumed in FIFO order, one per invocation; when the script is
// exhausted a canned final answer is produced. A request with tool choice
// "none" has all call pieces stripped from the round, matching a provider
// that honors the directive.
type MockClient struct {
	mu     sync.Mutex
	info   Info
	rounds []mockRound
}

// NewMockClient constructs a MockClient with tool support enabled.
func NewMockClient(name string) *MockClient {
	return &MockClient{
		info: Info{Name: name, Provider: "mock", SupportsTools: true},
	}
}

// QueueCompletion appends a scripted blocking round.
func (m *MockClient) QueueCompletion(msg chat.Message, usage *Usage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, mockRound{completion: &Completion{Message: msg, Usage: usage}})
}

// QueueFragments appends a scripted streaming round.
func (m *MockClient) QueueFragments(fragments ...Fragment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rounds = append(m.rounds, mockRound{fragments: fragments})
}

func (m *MockClient) next() (mockRound, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.rounds) == 0 {
		return mockRound{}, false
	}
	r := m.rounds[0]
	m.rounds = m.rounds[1:]
	return r, true
}

// Invoke implements Client. Scripted streaming rounds are assembled into a
// single completion so the same script can serve both invocation styles.
func (m *MockClient) Invoke(ctx context.Context, req Request) (*Completion, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := m.next()
	if !ok {
		return &Completion{Message: chat.Assistant("Mock response.")}, nil
	}
	var c Completion
	if r.completion != nil {
		c = *r.completion
	} else {
		c = Completion{Message: assembleFragments(r.fragments)}
	}
	if req.ToolChoice == ToolChoiceNone {
		c.Message.FunctionCall = nil
		c.Message.ToolCalls = nil
	}
	return &c, nil
}

// InvokeStream implements Client. A scripted completion round is converted to
// a single fragment carrying the full message shape.
func (m *MockClient) InvokeStream(ctx context.Context, req Request) (Stream, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r, ok := m.next()
	if !ok {
		return NewFragmentStream([]Fragment{TextFragment("Mock response.")}), nil
	}
	fragments := r.fragments
	if r.completion != nil {
		fragments = fragmentize(r.completion.Message)
	}
	if req.ToolChoice == ToolChoiceNone {
		stripped := make([]Fragment, 0, len(fragments))
		for _, f := range fragments {
			f.FunctionCall = nil
			f.ToolCalls = nil
			if f.Content == nil && len(fragments) > 1 {
				continue
			}
			stripped = append(stripped, f)
		}
		fragments = stripped
	}
	return NewFragmentStream(fragments), nil
}

// Info implements Client.
func (m *MockClient) Info() Info { return m.info }

// assembleFragments folds scripted fragments into one message the way a
// non-streaming endpoint would report them.
func assembleFragments(fragments []Fragment) chat.Message {
	msg := chat.Message{Role: chat.RoleAssistant}
	var content string
	var haveContent bool
	var fc FunctionCallDelta
	var haveFC bool
	var calls []chat.ToolCall
	for _, f := range fragments {
		if f.Content != nil {
			content += *f.Content
			haveContent = true
		}
		if f.FunctionCall != nil {
			fc.Name += f.FunctionCall.Name
			fc.Arguments += f.FunctionCall.Arguments
			haveFC = true
		}
		for _, d := range f.ToolCalls {
			for len(calls) <= d.Index {
				calls = append(calls, chat.ToolCall{Index: len(calls), Type: "function"})
			}
			tc := &calls[d.Index]
			if d.ID != "" {
				tc.ID = d.ID
			}
			if d.Type != "" {
				tc.Type = d.Type
			}
			tc.Function.Name += d.Function.Name
			tc.Function.Arguments += d.Function.Arguments
		}
	}
	if haveContent {
		msg.Content = &content
	}
	if haveFC {
		msg.FunctionCall = &chat.FunctionCall{Name: fc.Name, Arguments: fc.Arguments}
	}
	msg.ToolCalls = calls
	return msg
}

// fragmentize converts a full message into the minimal fragment sequence that
// reproduces it through a streaming consumer.
func fragmentize(msg chat.Message) []Fragment {
	var fragments []Fragment
	if msg.Content != nil {
		fragments = append(fragments, Fragment{Content: msg.Content})
	}
	if msg.FunctionCall != nil {
		fragments = append(fragments, Fragment{FunctionCall: &FunctionCallDelta{
			Name:      msg.FunctionCall.Name,
			Arguments: msg.FunctionCall.Arguments,
		}})
	}
	for _, tc := range msg.ToolCalls {
		fragments = append(fragments, Fragment{ToolCalls: []ToolCallDelta{{
			Index: tc.Index,
			ID:    tc.ID,
			Type:  tc.Type,
			Function: FunctionCallDelta{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		}}})
	}
	if len(fragments) == 0 {
		fragments = []Fragment{{}}
	}
	return fragments
}
