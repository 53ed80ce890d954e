// Package llm normalizes the model backends (Gemini, Anthropic) behind one
// chat interface so the rest of the system reasons about turns, tool calls,
// and tool results without provider-specific wire shapes.
package llm

import "context"

// Provider executes one chat completion against a model backend. The
// request carries the entire history view; providers are stateless.
type Provider interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}

// ChatRequest is one completion request: the scheduling system prompt, the
// history view, and the toolset the model may call.
type ChatRequest struct {
	SystemPrompt string
	Messages     []ChatMessage
	Tools        []ToolDefinition
	MaxTokens    int
}

// ChatResponse is the normalized model output: assistant text and zero or
// more tool calls, plus token accounting.
type ChatResponse struct {
	Content   string
	ToolCalls []ToolCall
	Usage     TokenUsage
}

// Role is the author of a history message.
type Role string

const (
	// RoleUser marks a message typed by the person being assisted.
	RoleUser Role = "user"
	// RoleAssistant marks model output, including tool-call requests.
	RoleAssistant Role = "assistant"
	// RoleTool marks a tool result answering one assistant ToolCall.
	RoleTool Role = "tool"
)

// ChatMessage is one entry in the history view sent to the model. An
// assistant message may carry ToolCalls; a tool message answers exactly one
// of them via ToolCallID.
type ChatMessage struct {
	Role       Role
	Content    string
	ToolCallID string
	ToolCalls  []ToolCall
}

// ToolDefinition advertises one callable tool to the model. Parameters is
// the tool's JSON Schema argument object.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  map[string]any
}

// ToolCall is a model request to execute a tool. Arguments is the raw JSON
// argument object exactly as the model produced it; parsing and validation
// happen downstream.
type ToolCall struct {
	ID        string
	Name      string
	Arguments string
}

// TokenUsage is per-response token accounting as reported by the backend.
type TokenUsage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}
