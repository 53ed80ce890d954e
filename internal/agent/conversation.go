package agent

import (
	"sync"

	"github.com/RahimMirani/scheduling-agent/internal/llm"
)

// Turn is one immutable entry in the conversation history: a user message,
// an assistant reply (optionally carrying tool calls), or a tool result.
type Turn struct {
	Role       llm.Role
	Content    string
	ToolCalls  []llm.ToolCall // set on assistant turns that requested tools
	ToolCallID string         // set on tool-result turns
}

// Conversation is the append-only turn history for one chat session.
// Reset is the only destructive operation.
type Conversation struct {
	mu    sync.Mutex
	turns []Turn
}

// NewConversation creates an empty conversation.
func NewConversation() *Conversation {
	return &Conversation{}
}

// Append adds a turn to the end of the history.
func (c *Conversation) Append(turns ...Turn) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turns...)
}

// Snapshot returns a copy of the history in append order.
func (c *Conversation) Snapshot() []Turn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]Turn(nil), c.turns...)
}

// Len returns the number of turns.
func (c *Conversation) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.turns)
}

// Reset clears the entire history.
func (c *Conversation) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = nil
}

// chatMessages converts turns into provider messages.
func chatMessages(turns []Turn) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(turns))
	for _, turn := range turns {
		out = append(out, llm.ChatMessage{
			Role:       turn.Role,
			Content:    turn.Content,
			ToolCallID: turn.ToolCallID,
			ToolCalls:  turn.ToolCalls,
		})
	}
	return out
}
