package runner

import (
	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/internal/util"
	"github.com/hupe1980/chatloop/tool"
)

// Conversation is the mutable state of one logical conversation thread: the
// message history, the metrics accumulator, the call-depth stack and the
// tools-disabled flag set once the call limit is exceeded.
//
// A Conversation must not be shared between concurrent runs. Concurrent
// independent conversations are fine since each owns its state; give each
// goroutine its own Conversation or serialize access externally.
type Conversation struct {
	id            string
	messages      []chat.Message
	metrics       *Metrics
	callStack     []*tool.Call
	toolsDisabled bool
}

// NewConversation creates a conversation seeded with the given history.
func NewConversation(messages ...chat.Message) *Conversation {
	return &Conversation{
		id:       util.NewID(),
		messages: append([]chat.Message{}, messages...),
		metrics:  NewMetrics(),
	}
}

// ID returns the opaque run identifier attached to log records.
func (c *Conversation) ID() string { return c.id }

// Messages returns a copy of the conversation history.
func (c *Conversation) Messages() []chat.Message {
	return append([]chat.Message{}, c.messages...)
}

// Len reports the number of messages in the history.
func (c *Conversation) Len() int { return len(c.messages) }

// Metrics returns the run's accumulator. The returned pointer stays live
// across rounds; read it after the run completes.
func (c *Conversation) Metrics() *Metrics { return c.metrics }

// Append adds a user-provided turn to the history.
func (c *Conversation) Append(messages ...chat.Message) {
	c.messages = append(c.messages, messages...)
}

// CallDepth reports the number of function calls executed so far in this run.
func (c *Conversation) CallDepth() int { return len(c.callStack) }

func (c *Conversation) push(call *tool.Call) {
	c.callStack = append(c.callStack, call)
}
