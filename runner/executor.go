package runner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/tool"
)

const (
	notFoundContent  = "Could not find function to call."
	limitExceededFmt = "Function call limit (%d) exceeded."
)

// executeCall runs one resolved call against the depth limit, returning the
// textual result content. Execution failures and panics are converted to
// error-descriptive content, never propagated; the model is expected to read
// its own mistakes as conversational feedback.
//
// Side effects: pushes the call onto the conversation's call stack and
// records one timing entry under the function's name. When the stack already
// exceeds the limit the call is skipped, tools are disabled for the rest of
// the run and only the limit notice is returned.
func (r *Runner) executeCall(ctx context.Context, conv *Conversation, call *tool.Call) (string, float64) {
	if conv.CallDepth() > r.limit {
		conv.toolsDisabled = true
		r.logger.Warn("runner.function.limit_exceeded",
			"run_id", conv.id,
			"function", call.Function.Name(),
			"limit", r.limit,
		)
		return fmt.Sprintf(limitExceededFmt, r.limit), 0
	}
	conv.push(call)

	start := time.Now()
	var (
		result any
		err    error
	)
	func() { // panic safety
		defer func() {
			if rec := recover(); rec != nil {
				err = fmt.Errorf("panic during function execution: %v", rec)
			}
		}()
		result, err = call.Execute(ctx)
	}()
	elapsed := time.Since(start)

	conv.metrics.addFunctionCallTime(call.Function.Name(), elapsed)
	r.logger.Info("runner.function.executed",
		"run_id", conv.id,
		"function", call.Function.Name(),
		"duration_ms", elapsed.Milliseconds(),
		"error", err != nil,
	)

	if err != nil {
		return err.Error(), elapsed.Seconds()
	}
	return stringify(result), elapsed.Seconds()
}

// executeFunctionCall runs a legacy single call and wraps the result as a
// role "function" message carrying the function name.
func (r *Runner) executeFunctionCall(ctx context.Context, conv *Conversation, call *tool.Call) chat.Message {
	content, secs := r.executeCall(ctx, conv, call)
	msg := chat.FunctionResult(call.Function.Name(), content)
	msg.SetMetric("time", secs)
	return msg
}

// executeToolCall runs one entry of a parallel call list and wraps the result
// as a role "tool" message referencing the originating call ID.
func (r *Runner) executeToolCall(ctx context.Context, conv *Conversation, call *tool.Call) chat.Message {
	content, secs := r.executeCall(ctx, conv, call)
	msg := chat.ToolResult(call.CallID, content)
	msg.SetMetric("time", secs)
	return msg
}

// resolveLegacyFunction resolves the legacy single function call. Resolution
// failures come back as a ready-to-append result message and a nil call.
func (r *Runner) resolveLegacyFunction(conv *Conversation, fc chat.FunctionCall) (*tool.Call, *chat.Message) {
	call, err := tool.Resolve(r.registry, fc.Name, fc.Arguments)
	if err != nil {
		r.logger.Warn("runner.function.unresolved",
			"run_id", conv.id,
			"function", fc.Name,
			"error", err.Error(),
		)
		msg := chat.FunctionResult(fc.Name, resolutionContent(err))
		return nil, &msg
	}
	return call, nil
}

// resolveToolCalls resolves every entry of a parallel call list. Entries that
// fail to resolve get an immediate error result appended to the history and
// are excluded from execution; the runnable remainder is returned in order.
func (r *Runner) resolveToolCalls(conv *Conversation, toolCalls []chat.ToolCall) []*tool.Call {
	runnable := make([]*tool.Call, 0, len(toolCalls))
	for _, tc := range toolCalls {
		call, err := tool.ResolveToolCall(r.registry, tc)
		if err != nil {
			r.logger.Warn("runner.tool_call.unresolved",
				"run_id", conv.id,
				"function", tc.Function.Name,
				"tool_call_id", tc.ID,
				"error", err.Error(),
			)
			conv.Append(chat.ToolResult(tc.ID, resolutionContent(err)))
			continue
		}
		runnable = append(runnable, call)
	}
	return runnable
}

// resolutionContent converts a resolution failure to the content surfaced to
// the model.
func resolutionContent(err error) string {
	if _, ok := err.(*tool.NotFoundError); ok {
		return notFoundContent
	}
	return err.Error()
}

// stringify coerces a function result to message content.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case fmt.Stringer:
		return t.String()
	default:
		if b, err := json.Marshal(t); err == nil {
			return string(b)
		}
		return fmt.Sprintf("%v", t)
	}
}
