// Package anthropic implements model.Client on the Anthropic Messages API.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/hupe1980/chatloop/chat"
	"github.com/hupe1980/chatloop/model"
)

// ErrStreamingNotSupported is returned by InvokeStream until the Messages
// streaming event protocol is adapted.
var ErrStreamingNotSupported = fmt.Errorf("anthropic: streaming not supported")

// Options configures the Anthropic client adapter (model id, temperature,
// max tokens, API key). Extend via functional options to preserve stability.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
}

// Client wraps the Anthropic Messages API behind the generic model.Client interface.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic client using the official SDK.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic adapter from an existing SDK client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Invoke implements model.Client via a blocking Messages request. Tool calls
// surface as tool_use blocks and are mapped onto chat.ToolCall entries.
func (c *Client) Invoke(ctx context.Context, req model.Request) (*model.Completion, error) {
	params := anthropic.MessageNewParams{
		Model:       c.opts.Model,
		Messages:    buildMessages(req.Messages),
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
	}
	if systemBlocks := extractSystemBlocks(req.Messages); len(systemBlocks) > 0 {
		params.System = systemBlocks
	}
	if len(req.Tools) > 0 && req.ToolChoice != model.ToolChoiceNone {
		params.Tools = buildTools(req.Tools)
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return nil, fmt.Errorf("anthropic api error: %w", err)
	}

	msg := chat.Message{Role: chat.RoleAssistant}
	var text string
	for _, block := range resp.Content {
		switch block.Type {
		case "text":
			text += block.AsText().Text
		case "tool_use":
			toolBlock := block.AsToolUse()
			args := ""
			if toolBlock.Input != nil {
				if argsBytes, err := json.Marshal(toolBlock.Input); err == nil {
					args = string(argsBytes)
				}
			}
			msg.ToolCalls = append(msg.ToolCalls, chat.ToolCall{
				ID:    toolBlock.ID,
				Index: len(msg.ToolCalls),
				Type:  "function",
				Function: chat.ToolCallFunction{
					Name:      toolBlock.Name,
					Arguments: args,
				},
			})
		}
	}
	if text != "" {
		msg.Content = &text
	}

	completion := &model.Completion{Message: msg}
	if resp.Usage.InputTokens > 0 || resp.Usage.OutputTokens > 0 {
		completion.Usage = &model.Usage{
			PromptTokens:     int(resp.Usage.InputTokens),
			CompletionTokens: int(resp.Usage.OutputTokens),
			TotalTokens:      int(resp.Usage.InputTokens + resp.Usage.OutputTokens),
		}
	}
	return completion, nil
}

// InvokeStream implements model.Client.
//
// TODO: adapt anthropic.MessageStreamEvent deltas onto model.Fragment.
func (c *Client) InvokeStream(_ context.Context, _ model.Request) (model.Stream, error) {
	return nil, ErrStreamingNotSupported
}

// Info returns metadata describing this Anthropic client implementation.
func (c *Client) Info() model.Info {
	return model.Info{
		Name:          string(c.opts.Model),
		Provider:      "anthropic",
		SupportsTools: true,
	}
}

// buildMessages converts conversation history to Anthropic message format.
// Tool results are indexed by call ID and emitted as tool_result user blocks
// directly after the assistant turn that requested them.
func buildMessages(history []chat.Message) []anthropic.MessageParam {
	toolResults := make(map[string]string)
	for _, m := range history {
		if m.Role == chat.RoleTool && m.ToolCallID != "" {
			if _, exists := toolResults[m.ToolCallID]; !exists {
				toolResults[m.ToolCallID] = m.ContentString()
			}
		}
	}

	var messages []anthropic.MessageParam
	for _, m := range history {
		switch m.Role {
		case chat.RoleSystem, chat.RoleTool, chat.RoleFunction:
			continue // System handled separately, tool results embedded below
		case chat.RoleAssistant:
			content, callIDs := buildAssistantContent(m)
			if len(content) > 0 {
				messages = append(messages, anthropic.NewAssistantMessage(content...))
			}
			var results []anthropic.ContentBlockParamUnion
			for _, id := range callIDs {
				if resp, ok := toolResults[id]; ok {
					results = append(results, anthropic.NewToolResultBlock(id, resp, false))
					delete(toolResults, id)
				}
			}
			if len(results) > 0 {
				messages = append(messages, anthropic.NewUserMessage(results...))
			}
		default:
			if text := m.ContentString(); text != "" {
				messages = append(messages, anthropic.NewUserMessage(anthropic.NewTextBlock(text)))
			}
		}
	}
	return messages
}

func buildAssistantContent(m chat.Message) ([]anthropic.ContentBlockParamUnion, []string) {
	var content []anthropic.ContentBlockParamUnion
	var callIDs []string
	if text := m.ContentString(); text != "" {
		content = append(content, anthropic.NewTextBlock(text))
	}
	for _, tc := range m.ToolCalls {
		var input any
		if tc.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(tc.Function.Arguments), &input); err != nil {
				input = tc.Function.Arguments // fallback to string
			}
		}
		content = append(content, anthropic.NewToolUseBlock(tc.ID, input, tc.Function.Name))
		callIDs = append(callIDs, tc.ID)
	}
	return content, callIDs
}

func extractSystemBlocks(history []chat.Message) []anthropic.TextBlockParam {
	var blocks []anthropic.TextBlockParam
	for _, m := range history {
		if m.Role == chat.RoleSystem && m.ContentString() != "" {
			blocks = append(blocks, anthropic.TextBlockParam{Text: m.ContentString()})
		}
	}
	return blocks
}

// buildTools converts tool definitions to the Anthropic tool format.
func buildTools(tools []model.ToolDefinition) []anthropic.ToolUnionParam {
	anthropicTools := make([]anthropic.ToolUnionParam, len(tools))
	for i, tdef := range tools {
		inputSchema := anthropic.ToolInputSchemaParam{
			Type: constant.Object("object"),
		}
		if params := tdef.Function.Parameters; params != nil {
			if properties, exists := params["properties"]; exists {
				inputSchema.Properties = properties
			}
			if required, exists := params["required"]; exists {
				switch req := required.(type) {
				case []string:
					inputSchema.Required = req
				case []any:
					for _, r := range req {
						if s, ok := r.(string); ok {
							inputSchema.Required = append(inputSchema.Required, s)
						}
					}
				}
			}
		}
		anthropicTools[i] = anthropic.ToolUnionParamOfTool(inputSchema, tdef.Function.Name)
	}
	return anthropicTools
}
