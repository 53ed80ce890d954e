package agent

import "github.com/RahimMirani/scheduling-agent/internal/llm"

// trimMessages bounds the history view sent to the model to a token budget.
// The stored conversation is never modified; only the request view shrinks.
//
// Messages are grouped into logical units — a lone user or assistant
// message, or an assistant tool-request plus all of its tool results — and
// the oldest groups are dropped first. Tool-call pairs are never split:
// either the whole exchange stays or goes. The most recent group always
// survives so the active turn is intact.
func trimMessages(messages []llm.ChatMessage, maxTokens int) []llm.ChatMessage {
	if len(messages) == 0 || maxTokens <= 0 {
		return messages
	}

	groups := groupMessages(messages)

	total := 0
	for _, g := range groups {
		total += g.tokens
	}
	if total <= maxTokens {
		return messages
	}

	kept := total
	dropUntil := 0
	for dropUntil < len(groups)-1 && kept > maxTokens {
		kept -= groups[dropUntil].tokens
		dropUntil++
	}

	var trimmed []llm.ChatMessage
	for _, g := range groups[dropUntil:] {
		trimmed = append(trimmed, g.messages...)
	}
	return trimmed
}

type messageGroup struct {
	messages []llm.ChatMessage
	tokens   int
}

func groupMessages(messages []llm.ChatMessage) []messageGroup {
	var groups []messageGroup
	i := 0
	for i < len(messages) {
		msg := messages[i]

		// An assistant tool-request owns the tool results that follow it.
		if msg.Role == llm.RoleAssistant && len(msg.ToolCalls) > 0 {
			group := messageGroup{
				messages: []llm.ChatMessage{msg},
				tokens:   estimateMessageTokens(msg),
			}
			i++
			for i < len(messages) && messages[i].Role == llm.RoleTool {
				group.messages = append(group.messages, messages[i])
				group.tokens += estimateMessageTokens(messages[i])
				i++
			}
			groups = append(groups, group)
			continue
		}

		groups = append(groups, messageGroup{
			messages: []llm.ChatMessage{msg},
			tokens:   estimateMessageTokens(msg),
		})
		i++
	}
	return groups
}
