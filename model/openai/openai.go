// Package openai implements model.Client using the OpenAI Chat Completions
// API (including streaming + function/tool calling). It adapts the chatloop
// message shapes into the SDK's message format and back.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/packages/ssestream"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/model"
)

// Options configure the OpenAI client adapter.
// Fields mirror a subset of Chat Completion parameters intentionally kept
// minimal; extend via functional options without breaking callers.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Client wraps the OpenAI Chat Completions API behind the generic model.Client interface.
type Client struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI client using the official SDK with ambient credentials.
func New(optFns ...func(o *Options)) *Client {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI client from an existing SDK client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.7,
		MaxCompletionTokens: 4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Invoke implements model.Client via a blocking completion request.
func (c *Client) Invoke(ctx context.Context, req model.Request) (*model.Completion, error) {
	resp, err := c.client.Chat.Completions.New(ctx, c.buildParams(req))
	if err != nil {
		return nil, fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("no choices returned")
	}
	ch0 := resp.Choices[0]

	msg := chat.Message{Role: chat.RoleAssistant}
	if ch0.Message.Content != "" {
		content := ch0.Message.Content
		msg.Content = &content
	}
	if ch0.Message.FunctionCall.Name != "" {
		msg.FunctionCall = &chat.FunctionCall{
			Name:      ch0.Message.FunctionCall.Name,
			Arguments: ch0.Message.FunctionCall.Arguments,
		}
	}
	for i, tc := range ch0.Message.ToolCalls {
		msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
			ID:    tc.ID,
			Index: i,
			Type:  "function",
			Function: chat.ToolCallFunction{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}

	completion := &model.Completion{Message: msg}
	if resp.Usage.TotalTokens > 0 {
		completion.Usage = &model.Usage{
			PromptTokens:     int(resp.Usage.PromptTokens),
			CompletionTokens: int(resp.Usage.CompletionTokens),
			TotalTokens:      int(resp.Usage.TotalTokens),
		}
	}
	return completion, nil
}

// InvokeStream implements model.Client; fragments are produced lazily as SSE
// chunks arrive from the API.
func (c *Client) InvokeStream(ctx context.Context, req model.Request) (model.Stream, error) {
	return &stream{inner: c.client.Chat.Completions.NewStreaming(ctx, c.buildParams(req))}, nil
}

// Info returns metadata describing this OpenAI client implementation.
func (c *Client) Info() model.Info {
	return model.Info{Name: c.opts.Model, Provider: "openai", SupportsTools: true}
}

// buildParams assembles the OpenAI request parameters including tool definitions.
func (c *Client) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Messages:            buildMessages(req.Messages),
		Model:               c.opts.Model,
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxCompletionTokens),
	}
	if len(req.Tools) > 0 {
		tools := make([]openai.ChatCompletionToolParam, len(req.Tools))
		for i, tdef := range req.Tools {
			tools[i] = openai.ChatCompletionToolParam{
				Type: "function",
				Function: openai.FunctionDefinitionParam{
					Name:        tdef.Function.Name,
					Description: openai.String(tdef.Function.Description),
					Parameters:  tdef.Function.Parameters,
				},
			}
		}
		params.Tools = tools
	}
	if req.ToolChoice != "" {
		params.ToolChoice = openai.ChatCompletionToolChoiceOptionUnionParam{
			OfAuto: openai.String(req.ToolChoice),
		}
	}
	return params
}

// buildMessages converts conversation history into OpenAI chat messages.
func buildMessages(history []chat.Message) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(history))
	for _, m := range history {
		switch m.Role {
		case chat.RoleSystem:
			messages = append(messages, openai.SystemMessage(m.ContentString()))
		case chat.RoleUser:
			messages = append(messages, openai.UserMessage(m.ContentString()))
		case chat.RoleAssistant:
			messages = append(messages, buildAssistantMessage(m))
		case chat.RoleTool:
			messages = append(messages, openai.ToolMessage(m.ContentString(), m.ToolCallID))
		case chat.RoleFunction:
			messages = append(messages, openai.ChatCompletionMessageParamUnion{
				OfFunction: &openai.ChatCompletionFunctionMessageParam{
					Name:    m.Name,
					Content: openai.String(m.ContentString()),
				},
			})
		default:
			if m.Content != nil {
				messages = append(messages, openai.UserMessage(m.ContentString()))
			}
		}
	}
	return messages
}

// buildAssistantMessage preserves tool call and legacy function call markers
// so the provider can correlate the result turns that follow.
func buildAssistantMessage(m chat.Message) openai.ChatCompletionMessageParamUnion {
	if !m.HasCalls() {
		return openai.AssistantMessage(m.ContentString())
	}
	assistant := openai.ChatCompletionAssistantMessageParam{}
	if m.Content != nil {
		assistant.Content = openai.ChatCompletionAssistantMessageParamContentUnion{
			OfString: openai.String(*m.Content),
		}
	}
	if m.FunctionCall != nil {
		assistant.FunctionCall = openai.ChatCompletionAssistantMessageParamFunctionCall{
			Name:      m.FunctionCall.Name,
			Arguments: m.FunctionCall.Arguments,
		}
	}
	for _, tc := range m.ToolCalls {
		assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallParam{
			ID:   tc.ID,
			Type: "function",
			Function: openai.ChatCompletionMessageToolCallFunctionParam{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant}
}

// stream adapts the SDK's SSE stream to model.Stream, converting one chunk
// into one fragment.
type stream struct {
	inner   *ssestream.Stream[openai.ChatCompletionChunk]
	current model.Fragment
}

func (s *stream) Next() bool {
	if !s.inner.Next() {
		return false
	}
	s.current = convertChunk(s.inner.Current())
	return true
}

func (s *stream) Current() model.Fragment { return s.current }

func (s *stream) Err() error {
	if err := s.inner.Err(); err != nil {
		return fmt.Errorf("openai streaming error: %w", err)
	}
	return nil
}

func (s *stream) Close() error { return s.inner.Close() }

func convertChunk(ck openai.ChatCompletionChunk) model.Fragment {
	var f model.Fragment
	if len(ck.Choices) == 0 {
		return f
	}
	delta := ck.Choices[0].Delta
	if delta.Content != "" {
		content := delta.Content
		f.Content = &content
	}
	if delta.FunctionCall.Name != "" || delta.FunctionCall.Arguments != "" {
		f.FunctionCall = &model.FunctionCallDelta{
			Name:      delta.FunctionCall.Name,
			Arguments: delta.FunctionCall.Arguments,
		}
	}
	for _, tc := range delta.ToolCalls {
		f.ToolCalls = append(f.ToolCalls, model.ToolCallDelta{
			Index: int(tc.Index),
			ID:    tc.ID,
			Type:  string(tc.Type),
			Function: model.FunctionCallDelta{
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			},
		})
	}
	return f
}
