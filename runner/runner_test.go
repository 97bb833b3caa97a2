package runner

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/history"
	"github.com/hupe1980/chatloop/model"
	"github.com/hupe1980/chatloop/tool"
)

func calculatorFunction() *tool.Function {
	return tool.NewFunction("calculator", "Add two numbers",
		map[string]any{
			"type": "object",
			"properties": map[string]any{
				"a": map[string]any{"type": "number"},
				"b": map[string]any{"type": "number"},
			},
			"required": []string{"a", "b"},
		},
		func(_ context.Context, args map[string]any) (any, error) {
			return args["a"].(float64) + args["b"].(float64), nil
		},
	)
}

func toolCallMessage(id, name, args string) chat.Message {
	return chat.Message{
		Role: chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{{
			ID:       id,
			Index:    0,
			Type:     "function",
			Function: chat.ToolCallFunction{Name: name, Arguments: args},
		}},
	}
}

func TestRun_ToolCallScenario(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(toolCallMessage("call_1", "calculator", `{"a":2,"b":2}`), &model.Usage{
		PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15,
	})
	client.QueueCompletion(chat.Assistant("The answer is 4."), &model.Usage{
		PromptTokens: 20, CompletionTokens: 6, TotalTokens: 26,
	})

	r := New(client, func(o *Options) { o.Registry = tool.NewRegistry(calculatorFunction()) })
	conv := NewConversation(chat.User("What's 2+2 using the calc tool?"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "The answer is 4.", output)

	msgs := conv.Messages()
	require.Len(t, msgs, 4) // user, assistant-with-tool-call, tool-result, assistant-final
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, chat.RoleTool, msgs[2].Role)
	assert.Equal(t, "call_1", msgs[2].ToolCallID)
	assert.Equal(t, "4", msgs[2].ContentString())
	assert.Equal(t, chat.RoleAssistant, msgs[3].Role)

	m := conv.Metrics()
	assert.Equal(t, 2, m.Rounds())
	assert.Equal(t, 1, m.FunctionCalls())
	assert.Equal(t, 30, m.PromptTokens)
	assert.Equal(t, 11, m.CompletionTokens)
	assert.Equal(t, 41, m.TotalTokens)
}

func TestRun_LegacyFunctionCallScenario(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(chat.Message{
		Role:         chat.RoleAssistant,
		FunctionCall: &chat.FunctionCall{Name: "calculator", Arguments: `{"a":1,"b":2}`},
	}, nil)
	client.QueueCompletion(chat.Assistant("It is 3."), nil)

	r := New(client, func(o *Options) { o.Registry = tool.NewRegistry(calculatorFunction()) })
	conv := NewConversation(chat.User("1+2?"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "It is 3.", output)

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, chat.RoleFunction, msgs[2].Role)
	assert.Equal(t, "calculator", msgs[2].Name)
	assert.Equal(t, "3", msgs[2].ContentString())
}

func TestRun_NarrationPrefix(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(toolCallMessage("call_1", "calculator", `{"a":2,"b":3}`), nil)
	client.QueueCompletion(chat.Assistant("5"), nil)

	r := New(client, func(o *Options) {
		o.Registry = tool.NewRegistry(calculatorFunction())
		o.ShowToolCalls = true
	})
	conv := NewConversation(chat.User("2+3?"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "\n - Running: calculator(a=2, b=3)\n\n5", output)
}

func TestRun_NarrationMultipleCalls(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(chat.Message{
		Role: chat.RoleAssistant,
		ToolCalls: []chat.ToolCall{
			{ID: "c1", Index: 0, Type: "function", Function: chat.ToolCallFunction{Name: "calculator", Arguments: `{"a":1,"b":1}`}},
			{ID: "c2", Index: 1, Type: "function", Function: chat.ToolCallFunction{Name: "calculator", Arguments: `{"a":2,"b":2}`}},
		},
	}, nil)
	client.QueueCompletion(chat.Assistant("2 and 4"), nil)

	r := New(client, func(o *Options) {
		o.Registry = tool.NewRegistry(calculatorFunction())
		o.ShowToolCalls = true
	})
	conv := NewConversation(chat.User("go"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(output, "\nRunning:\n - calculator(a=1, b=1)\n - calculator(a=2, b=2)\n\n"))
	assert.True(t, strings.HasSuffix(output, "2 and 4"))

	// Sequential execution, order preserved.
	msgs := conv.Messages()
	require.Len(t, msgs, 5)
	assert.Equal(t, "c1", msgs[2].ToolCallID)
	assert.Equal(t, "2", msgs[2].ContentString())
	assert.Equal(t, "c2", msgs[3].ToolCallID)
	assert.Equal(t, "4", msgs[3].ContentString())
}

func TestRun_UnknownFunctionSurfacesErrorAndContinues(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(toolCallMessage("call_1", "does_not_exist", "{}"), nil)
	client.QueueCompletion(chat.Assistant("Sorry, wrong tool."), nil)

	r := New(client, func(o *Options) { o.Registry = tool.NewRegistry(calculatorFunction()) })
	conv := NewConversation(chat.User("hi"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, "Sorry, wrong tool.", output)

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "Could not find function to call.", msgs[2].ContentString())
	// Nothing executed, so no timing entries.
	assert.Zero(t, conv.Metrics().FunctionCalls())
}

func TestRun_DepthLimitTerminates(t *testing.T) {
	selfCalling := tool.NewFunction("again", "Ask for another round",
		map[string]any{"type": "object", "properties": map[string]any{}},
		func(_ context.Context, _ map[string]any) (any, error) {
			return "call me again", nil
		},
	)

	limit := 2
	client := model.NewMockClient("test-model")
	// The scripted model keeps requesting the function until tool choice
	// "none" strips the request; queue more rounds than the limit permits.
	for i := 0; i < limit+3; i++ {
		client.QueueCompletion(toolCallMessage("call_x", "again", "{}"), nil)
	}

	r := New(client, func(o *Options) {
		o.Registry = tool.NewRegistry(selfCalling)
		o.FunctionCallLimit = limit
	})
	conv := NewConversation(chat.User("loop forever"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	// The terminal round carries no content once calls are stripped.
	assert.Equal(t, fallbackOutput, output)

	// Executions stop once the stack exceeds the limit.
	assert.Equal(t, limit+1, conv.Metrics().FunctionCalls())

	var limitMessages int
	for _, msg := range conv.Messages() {
		if msg.Role == chat.RoleTool && strings.Contains(msg.ContentString(), "Function call limit (2) exceeded.") {
			limitMessages++
		}
	}
	assert.Equal(t, 1, limitMessages)
}

func TestRun_DegenerateEmptyResponse(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(chat.Message{Role: chat.RoleAssistant}, nil)

	r := New(client)
	conv := NewConversation(chat.User("hi"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	assert.Equal(t, fallbackOutput, output)
}

func TestRun_RunToolsDisabled(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(toolCallMessage("call_1", "calculator", `{"a":2,"b":2}`), nil)

	r := New(client, func(o *Options) {
		o.Registry = tool.NewRegistry(calculatorFunction())
		o.RunTools = false
	})
	conv := NewConversation(chat.User("2+2?"))

	output, err := r.Run(context.Background(), conv)
	require.NoError(t, err)
	// The call request is treated as a terminal turn without content.
	assert.Equal(t, fallbackOutput, output)
	assert.Len(t, conv.Messages(), 2)
	assert.Zero(t, conv.Metrics().FunctionCalls())
}

func TestRunStream_ToolCallScenario(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueFragments(
		model.Fragment{ToolCalls: []model.ToolCallDelta{
			{Index: 0, ID: "call_1", Type: "function", Function: model.FunctionCallDelta{Name: "calculator"}},
		}},
		model.Fragment{ToolCalls: []model.ToolCallDelta{
			{Index: 0, Function: model.FunctionCallDelta{Arguments: `{"a":2,`}},
		}},
		model.Fragment{ToolCalls: []model.ToolCallDelta{
			{Index: 0, Function: model.FunctionCallDelta{Arguments: `"b":2}`}},
		}},
	)
	client.QueueFragments(
		model.TextFragment("The answer"),
		model.TextFragment(" is 4."),
	)

	r := New(client, func(o *Options) {
		o.Registry = tool.NewRegistry(calculatorFunction())
		o.ShowToolCalls = true
	})
	conv := NewConversation(chat.User("2+2?"))

	chunks, errs := r.RunStream(context.Background(), conv)
	var got []string
	for chunk := range chunks {
		got = append(got, chunk)
	}
	require.NoError(t, <-errs)

	assert.Equal(t, []string{
		"\n - Running: calculator(a=2, b=2)\n\n",
		"The answer",
		" is 4.",
	}, got)

	msgs := conv.Messages()
	require.Len(t, msgs, 4)
	assert.Equal(t, "4", msgs[2].ContentString())
	assert.Equal(t, 2, conv.Metrics().Rounds())
	assert.Equal(t, 1, conv.Metrics().FunctionCalls())
	// Streaming token estimate: one completion token per fragment.
	assert.Equal(t, 5, conv.Metrics().CompletionTokens)
	assert.Zero(t, conv.Metrics().PromptTokens)
}

func TestRunStream_ContentOnly(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueFragments(
		model.TextFragment("Hel"),
		model.TextFragment("lo"),
	)

	r := New(client)
	conv := NewConversation(chat.User("hi"))

	chunks, errs := r.RunStream(context.Background(), conv)
	var b strings.Builder
	for chunk := range chunks {
		b.WriteString(chunk)
	}
	require.NoError(t, <-errs)
	assert.Equal(t, "Hello", b.String())

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello", msgs[1].ContentString())
}

func TestGenerate_SingleRoundNoToolLoop(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(toolCallMessage("call_1", "calculator", `{"a":2,"b":2}`), &model.Usage{
		PromptTokens: 7, CompletionTokens: 3, TotalTokens: 10,
	})

	r := New(client, func(o *Options) { o.Registry = tool.NewRegistry(calculatorFunction()) })
	conv := NewConversation(chat.User("2+2?"))

	msg, err := r.Generate(context.Background(), conv)
	require.NoError(t, err)
	require.Len(t, msg.ToolCalls, 1)
	assert.Equal(t, "calculator", msg.ToolCalls[0].Function.Name)

	// The call was surfaced, not executed.
	assert.Len(t, conv.Messages(), 2)
	assert.Zero(t, conv.Metrics().FunctionCalls())
	assert.Equal(t, 1, conv.Metrics().Rounds())
	assert.Equal(t, 7, conv.Metrics().PromptTokens)
}

func TestGenerateStream_MirrorsFragments(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueFragments(
		model.TextFragment("a"),
		model.TextFragment("b"),
		model.Fragment{ToolCalls: []model.ToolCallDelta{
			{Index: 0, ID: "c1", Function: model.FunctionCallDelta{Name: "calculator", Arguments: "{}"}},
		}},
	)

	r := New(client)
	conv := NewConversation(chat.User("hi"))

	fragments, errs := r.GenerateStream(context.Background(), conv)
	var n int
	for range fragments {
		n++
	}
	require.NoError(t, <-errs)
	assert.Equal(t, 3, n)

	msgs := conv.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "ab", msgs[1].ContentString())
	require.Len(t, msgs[1].ToolCalls, 1)
	assert.Equal(t, 1, conv.Metrics().Rounds())
}

func TestRun_RoundMetricsOnAssistantMessage(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(chat.Assistant("hi"), &model.Usage{PromptTokens: 3, CompletionTokens: 1, TotalTokens: 4})

	r := New(client)
	conv := NewConversation(chat.User("hello"))

	_, err := r.Run(context.Background(), conv)
	require.NoError(t, err)

	asst := conv.Messages()[1]
	require.NotNil(t, asst.Metrics)
	assert.Contains(t, asst.Metrics, "time")
	assert.Equal(t, 3.0, asst.Metrics["prompt_tokens"])
	assert.Equal(t, 1.0, asst.Metrics["completion_tokens"])
	assert.Equal(t, 4.0, asst.Metrics["total_tokens"])
}

func TestContinue_PersistsHistory(t *testing.T) {
	client := model.NewMockClient("test-model")
	client.QueueCompletion(chat.Assistant("Hi there!"), nil)

	store := history.NewInMemoryStore()
	r := New(client)

	output, err := r.Continue(context.Background(), store, "sess-1", "Hello")
	require.NoError(t, err)
	assert.Equal(t, "Hi there!", output)

	msgs, err := store.Get("sess-1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, chat.RoleUser, msgs[0].Role)
	assert.Equal(t, chat.RoleAssistant, msgs[1].Role)

	// A second turn sees the persisted context.
	client.QueueCompletion(chat.Assistant("Still here."), nil)
	_, err = r.Continue(context.Background(), store, "sess-1", "Again")
	require.NoError(t, err)
	msgs, _ = store.Get("sess-1")
	assert.Len(t, msgs, 4)
}

func TestConversation_Isolation(t *testing.T) {
	conv := NewConversation(chat.User("a"))
	assert.NotEmpty(t, conv.ID())
	assert.Equal(t, 1, conv.Len())

	// Messages returns a copy; mutating it must not leak back.
	msgs := conv.Messages()
	msgs[0] = chat.User("mutated")
	assert.Equal(t, "a", conv.Messages()[0].ContentString())

	other := NewConversation()
	assert.NotEqual(t, conv.ID(), other.ID())
	assert.Zero(t, other.Metrics().Rounds())
}
