package runner

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/history"
	"github.com/hupe1980/chatloop/logging"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/tool"
)

// fallbackOutput is returned when a terminal assistant message carries no
// content (degenerate empty turn).
const fallbackOutput = "Something went wrong, please try again."

// Options holds configuration overrides passed to New().
type Options struct {
	// Registry of functions the model may call. Defaults to an empty registry.
	Registry *tool.Registry
	// FunctionCallLimit bounds the number of function executions per run.
	FunctionCallLimit int
	// ShowToolCalls prefixes output with a "Running: ..." narration per call.
	ShowToolCalls bool
	// RunTools toggles function execution; when false, call requests are
	// treated as terminal responses.
	RunTools bool
	// Logger receives structured run events. Defaults to NoOpLogger.
	Logger logging.Logger
}

// Runner drives the multi-round conversation loop against a model client:
// invoke the model, assemble the assistant message, execute any requested
// function calls, feed results back and repeat until the model produces a
// final answer or the call limit cuts further requests off.
//
// A Runner holds no per-run state and is safe for concurrent use; all run
// state lives on the Conversation.
type Runner struct {
	client        model.Client
	registry      *tool.Registry
	limit         int
	showToolCalls bool
	runTools      bool
	logger        logging.Logger
}

// New constructs a Runner with optional overrides.
func New(client model.Client, optFns ...func(o *Options)) *Runner {
	opts := Options{
		Registry:          tool.NewRegistry(),
		FunctionCallLimit: 10,
		RunTools:          true,
		Logger:            logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Runner{
		client:        client,
		registry:      opts.Registry,
		limit:         opts.FunctionCallLimit,
		showToolCalls: opts.ShowToolCalls,
		runTools:      opts.RunTools,
		logger:        opts.Logger,
	}
}

// Run drives the conversation to completion in batch mode and returns the
// final textual answer. The conversation history is extended in place with
// every assistant and result turn produced along the way.
func (r *Runner) Run(ctx context.Context, conv *Conversation) (string, error) {
	r.logger.Debug("runner.round.start", "run_id", conv.id, "model", r.client.Info().Name, "messages", conv.Len())

	start := time.Now()
	completion, err := r.client.Invoke(ctx, r.buildRequest(conv))
	if err != nil {
		return "", err
	}
	elapsed := time.Since(start)

	asst := completion.Message
	if asst.Role == "" {
		asst.Role = chat.RoleAssistant
	}
	r.finishRound(conv, &asst, elapsed, completion.Usage)

	if !r.runTools || !asst.HasCalls() {
		if asst.Content != nil {
			return asst.ContentString(), nil
		}
		return fallbackOutput, nil
	}

	if asst.FunctionCall != nil {
		call, errMsg := r.resolveLegacyFunction(conv, *asst.FunctionCall)
		if errMsg != nil {
			conv.Append(*errMsg)
		} else {
			conv.Append(r.executeFunctionCall(ctx, conv, call))
		}
		var output string
		if r.showToolCalls && call != nil {
			output = fmt.Sprintf("\n - Running: %s\n\n", call.CallString())
		}
		rest, err := r.Run(ctx, conv)
		if err != nil {
			return "", err
		}
		return output + rest, nil
	}

	calls := r.resolveToolCalls(conv, asst.ToolCalls)
	output := r.narration(calls)
	for _, call := range calls {
		conv.Append(r.executeToolCall(ctx, conv, call))
	}
	rest, err := r.Run(ctx, conv)
	if err != nil {
		return "", err
	}
	return output + rest, nil
}

// RunStream drives the conversation in streaming mode. Content deltas are
// sent on the returned channel as they arrive from the transport; narration
// lines (when enabled) are sent before each recursive round. The channel is
// closed when the run terminates; a transport failure is delivered on the
// error channel.
func (r *Runner) RunStream(ctx context.Context, conv *Conversation) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)
		if err := r.runStream(ctx, conv, out); err != nil {
			errCh <- err
		}
	}()
	return out, errCh
}

func (r *Runner) runStream(ctx context.Context, conv *Conversation, out chan<- string) error {
	r.logger.Debug("runner.round.start", "run_id", conv.id, "model", r.client.Info().Name, "messages", conv.Len())

	start := time.Now()
	stream, err := r.client.InvokeStream(ctx, r.buildRequest(conv))
	if err != nil {
		return err
	}
	defer stream.Close()

	var asm assembler
	completionTokens := 0
	for stream.Next() {
		fragment := stream.Current()
		completionTokens++
		asm.add(fragment)
		if fragment.Content != nil {
			if err := send(ctx, out, *fragment.Content); err != nil {
				return err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return err
	}
	elapsed := time.Since(start)

	asst := asm.message()
	// Prompt tokens are unknown on the streaming path; completion tokens are
	// estimated as one per fragment.
	usage := &model.Usage{CompletionTokens: completionTokens, TotalTokens: completionTokens}
	r.finishRound(conv, &asst, elapsed, usage)

	if !r.runTools || !asst.HasCalls() {
		return nil
	}

	if asst.FunctionCall != nil {
		call, errMsg := r.resolveLegacyFunction(conv, *asst.FunctionCall)
		if errMsg != nil {
			conv.Append(*errMsg)
		} else {
			conv.Append(r.executeFunctionCall(ctx, conv, call))
		}
		if r.showToolCalls && call != nil {
			if err := send(ctx, out, fmt.Sprintf("\n - Running: %s\n\n", call.CallString())); err != nil {
				return err
			}
		}
		return r.runStream(ctx, conv, out)
	}

	calls := r.resolveToolCalls(conv, asst.ToolCalls)
	if narration := r.narration(calls); narration != "" {
		if err := send(ctx, out, narration); err != nil {
			return err
		}
	}
	for _, call := range calls {
		conv.Append(r.executeToolCall(ctx, conv, call))
	}
	return r.runStream(ctx, conv, out)
}

// Generate performs a single batch round and returns the raw assembled
// assistant message without executing any requested calls. The message is
// appended to the history so a caller-managed loop can feed results back.
func (r *Runner) Generate(ctx context.Context, conv *Conversation) (chat.Message, error) {
	start := time.Now()
	completion, err := r.client.Invoke(ctx, r.buildRequest(conv))
	if err != nil {
		return chat.Message{}, err
	}
	elapsed := time.Since(start)

	asst := completion.Message
	if asst.Role == "" {
		asst.Role = chat.RoleAssistant
	}
	r.finishRound(conv, &asst, elapsed, completion.Usage)
	return asst, nil
}

// GenerateStream performs a single streaming round, mirroring the raw
// transport fragments on the returned channel. The assembled assistant
// message is appended to the history when the stream ends; no calls run.
func (r *Runner) GenerateStream(ctx context.Context, conv *Conversation) (<-chan model.Fragment, <-chan error) {
	out := make(chan model.Fragment, 32)
	errCh := make(chan error, 1)
	go func() {
		defer close(out)
		defer close(errCh)

		start := time.Now()
		stream, err := r.client.InvokeStream(ctx, r.buildRequest(conv))
		if err != nil {
			errCh <- err
			return
		}
		defer stream.Close()

		var asm assembler
		completionTokens := 0
		for stream.Next() {
			fragment := stream.Current()
			completionTokens++
			asm.add(fragment)
			select {
			case out <- fragment:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- err
			return
		}
		elapsed := time.Since(start)

		asst := asm.message()
		usage := &model.Usage{CompletionTokens: completionTokens, TotalTokens: completionTokens}
		r.finishRound(conv, &asst, elapsed, usage)
	}()
	return out, errCh
}

// Continue loads a session's history from the store, appends the user turn,
// runs the conversation to completion and persists the extended history.
func (r *Runner) Continue(ctx context.Context, store history.Store, sessionID, userText string) (string, error) {
	messages, err := store.Get(sessionID)
	if err != nil {
		return "", fmt.Errorf("load session %q: %w", sessionID, err)
	}
	conv := NewConversation(messages...)
	conv.Append(chat.User(userText))

	output, err := r.Run(ctx, conv)
	if err != nil {
		return "", err
	}
	if err := store.Save(sessionID, conv.Messages()); err != nil {
		return "", fmt.Errorf("save session %q: %w", sessionID, err)
	}
	return output, nil
}

// buildRequest assembles the model request for the next round, attaching tool
// definitions and the tool choice directive.
func (r *Runner) buildRequest(conv *Conversation) model.Request {
	req := model.Request{Messages: conv.messages}
	if r.runTools && r.registry.Len() > 0 {
		req.Tools = r.registry.Definitions()
		if conv.toolsDisabled {
			req.ToolChoice = model.ToolChoiceNone
		} else {
			req.ToolChoice = model.ToolChoiceAuto
		}
	}
	return req
}

// finishRound records round metrics on the assistant message and the run
// accumulator, then freezes the message into the history.
func (r *Runner) finishRound(conv *Conversation, asst *chat.Message, elapsed time.Duration, usage *model.Usage) {
	asst.SetMetric("time", elapsed.Seconds())
	if usage != nil {
		asst.SetMetric("prompt_tokens", float64(usage.PromptTokens))
		asst.SetMetric("completion_tokens", float64(usage.CompletionTokens))
		asst.SetMetric("total_tokens", float64(usage.TotalTokens))
	}
	conv.metrics.addResponseTime(elapsed)
	conv.metrics.addUsage(usage)
	conv.Append(*asst)

	r.logger.Debug("runner.round.complete",
		"run_id", conv.id,
		"duration_ms", elapsed.Milliseconds(),
		"has_calls", asst.HasCalls(),
	)
}

// narration renders the "Running: ..." lines for the resolved calls of one
// round, or "" when narration is disabled or nothing runs.
func (r *Runner) narration(calls []*tool.Call) string {
	if !r.showToolCalls || len(calls) == 0 {
		return ""
	}
	if len(calls) == 1 {
		return fmt.Sprintf("\n - Running: %s\n\n", calls[0].CallString())
	}
	var b strings.Builder
	b.WriteString("\nRunning:")
	for _, call := range calls {
		b.WriteString(fmt.Sprintf("\n - %s", call.CallString()))
	}
	b.WriteString("\n\n")
	return b.String()
}

// send delivers one chunk, honoring cancellation.
func send(ctx context.Context, out chan<- string, chunk string) error {
	select {
	case out <- chunk:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
