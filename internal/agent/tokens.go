package agent

import "github.com/RahimMirani/scheduling-agent/internal/llm"

// charsPerToken is the average number of characters per token. Real
// tokenizers vary, but 4 chars/token is a workable approximation for
// context budgeting.
const charsPerToken = 4

func estimateTokens(s string) int {
	if len(s) == 0 {
		return 0
	}
	return (len(s) + charsPerToken - 1) / charsPerToken
}

// estimateMessageTokens accounts for content, tool calls, and per-message
// framing overhead.
func estimateMessageTokens(m llm.ChatMessage) int {
	tokens := 4 // role and delimiter overhead
	tokens += estimateTokens(m.Content)
	for _, tc := range m.ToolCalls {
		tokens += estimateTokens(tc.Name)
		tokens += estimateTokens(tc.Arguments)
		tokens += 4
	}
	if m.ToolCallID != "" {
		tokens += estimateTokens(m.ToolCallID) + 2
	}
	return tokens
}
