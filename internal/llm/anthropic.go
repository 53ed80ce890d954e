package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	anthropic "github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/RahimMirani/scheduling-agent/internal/config"
)

// anthropicProvider maps the history turn model onto the Messages API:
// assistant tool calls become tool_use blocks, tool results become
// tool_result blocks inside user messages.
type anthropicProvider struct {
	client anthropic.Client
	model  anthropic.Model
}

func newAnthropicProvider(cfg config.LLMProviderConfig, extra ...option.RequestOption) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, fmt.Errorf("anthropic api key is required")
	}
	if strings.TrimSpace(cfg.Model) == "" {
		return nil, fmt.Errorf("anthropic model is required")
	}

	opts := append([]option.RequestOption{option.WithAPIKey(cfg.APIKey)}, extra...)
	return &anthropicProvider{
		client: anthropic.NewClient(opts...),
		model:  anthropic.Model(cfg.Model),
	}, nil
}

func (p *anthropicProvider) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	history, err := anthropicHistory(req.Messages)
	if err != nil {
		return nil, err
	}

	params := anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: int64(normalizeMaxTokens(req.MaxTokens)),
		Messages:  history,
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}
	if len(req.Tools) > 0 {
		params.Tools = anthropicToolset(req.Tools)
	}

	msg, err := p.client.Messages.New(ctx, params)
	if err != nil {
		return nil, err
	}
	return decodeAnthropicMessage(msg), nil
}

// decodeAnthropicMessage flattens the content blocks into the normalized
// response: text blocks joined into Content, tool_use blocks into ToolCalls.
func decodeAnthropicMessage(msg *anthropic.Message) *ChatResponse {
	var text []string
	var calls []ToolCall
	for _, block := range msg.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			if b.Text != "" {
				text = append(text, b.Text)
			}
		case anthropic.ToolUseBlock:
			calls = append(calls, ToolCall{
				ID:        b.ID,
				Name:      b.Name,
				Arguments: string(b.Input),
			})
		}
	}

	in, out := int(msg.Usage.InputTokens), int(msg.Usage.OutputTokens)
	return &ChatResponse{
		Content:   strings.Join(text, "\n"),
		ToolCalls: calls,
		Usage:     TokenUsage{InputTokens: in, OutputTokens: out, TotalTokens: in + out},
	}
}

func anthropicHistory(messages []ChatMessage) ([]anthropic.MessageParam, error) {
	history := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case RoleUser:
			history = append(history, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		case RoleAssistant:
			turn, err := anthropicAssistantTurn(msg)
			if err != nil {
				return nil, err
			}
			history = append(history, turn)
		case RoleTool:
			// The API addresses tool results as user-side blocks keyed by
			// the originating tool_use ID.
			if msg.ToolCallID == "" {
				return nil, fmt.Errorf("tool message requires tool_call_id")
			}
			history = append(history, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false)))
		default:
			return nil, fmt.Errorf("unsupported message role %q", msg.Role)
		}
	}
	return history, nil
}

func anthropicAssistantTurn(msg ChatMessage) (anthropic.MessageParam, error) {
	blocks := make([]anthropic.ContentBlockParamUnion, 0, len(msg.ToolCalls)+1)
	if msg.Content != "" {
		blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
	}
	for _, call := range msg.ToolCalls {
		input := map[string]any{}
		if call.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Arguments), &input); err != nil {
				return anthropic.MessageParam{}, fmt.Errorf("parse assistant tool call args for %q: %w", call.Name, err)
			}
		}
		blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, input, call.Name))
	}
	if len(blocks) == 0 {
		blocks = append(blocks, anthropic.NewTextBlock(""))
	}
	return anthropic.NewAssistantMessage(blocks...), nil
}

func anthropicToolset(defs []ToolDefinition) []anthropic.ToolUnionParam {
	toolset := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		toolset = append(toolset, anthropic.ToolUnionParam{OfTool: &anthropic.ToolParam{
			Name:        def.Name,
			Description: anthropic.String(def.Description),
			InputSchema: anthropicSchema(def.Parameters),
		}})
	}
	return toolset
}

// anthropicSchema splits a JSON Schema object into the typed param fields.
// Keys beyond type/properties/required (enum, description, defaults) ride
// along as extra fields so the model still sees them.
func anthropicSchema(schema map[string]any) anthropic.ToolInputSchemaParam {
	if len(schema) == 0 {
		return anthropic.ToolInputSchemaParam{}
	}

	param := anthropic.ToolInputSchemaParam{
		Required: stringList(schema["required"]),
	}
	if props, ok := schema["properties"]; ok {
		param.Properties = props
	}

	extras := map[string]any{}
	for key, val := range schema {
		switch key {
		case "type", "properties", "required":
		default:
			extras[key] = val
		}
	}
	if len(extras) > 0 {
		param.ExtraFields = extras
	}
	return param
}

// stringList accepts either a []string or the []any a JSON decode yields.
func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
