// Package chatloop provides a high-level façade over the runner and service
// abstractions (history, logging) for driving chat-completion style models
// with transparent multi-round function calling. Most applications interact
// with this package by:
//  1. Creating a ChatLoop via New() with a model client (OpenAI, Anthropic, mock)
//  2. Registering callable functions through a tool.Registry
//  3. Asking questions per session (Ask) or driving a runner.Conversation directly
//
// The façade delegates orchestration to runner.Runner while keeping setup and
// usage ergonomics concise. All defaults are safe for local development and
// testing; production deployments typically supply a durable history store
// and a structured logger.
package chatloop

import (
	"context"

	"github.com/hupe1980/chatloop/history"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/runner"
	"github.com/hupe1980/chatloop/tool"
)

// Options configures the ChatLoop instance.
type Options struct {
	// Registry of functions exposed to the model.
	Registry *tool.Registry
	// FunctionCallLimit bounds function executions per run.
	FunctionCallLimit int
	// ShowToolCalls enables "Running: ..." narration in run output.
	ShowToolCalls bool
	// Store persists per-session conversation history (defaults to in-memory).
	Store history.Store
	// Logger (defaults to NoOp logger if nil).
	Logger logging.Logger
}

// ChatLoop is the high-level façade aggregating the runner and history store.
type ChatLoop struct {
	runner *runner.Runner
	store  history.Store
}

// New creates a new ChatLoop instance with optional overrides. Any unset
// service is initialized with an in-memory implementation.
func New(client model.Client, optFns ...func(o *Options)) *ChatLoop {
	opts := Options{
		Registry:          tool.NewRegistry(),
		FunctionCallLimit: 10,
		Store:             history.NewInMemoryStore(),
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	r := runner.New(client, func(o *runner.Options) {
		o.Registry = opts.Registry
		o.FunctionCallLimit = opts.FunctionCallLimit
		o.ShowToolCalls = opts.ShowToolCalls
		o.Logger = opts.Logger
	})

	return &ChatLoop{runner: r, store: opts.Store}
}

// Ask appends the user text to the session's history, runs the conversation
// to completion and persists the extended history.
func (c *ChatLoop) Ask(ctx context.Context, sessionID, text string) (string, error) {
	return c.runner.Continue(ctx, c.store, sessionID, text)
}

// Runner exposes the underlying runner for direct Conversation control.
func (c *ChatLoop) Runner() *runner.Runner { return c.runner }

// Store exposes the configured history store.
func (c *ChatLoop) Store() history.Store { return c.store }
