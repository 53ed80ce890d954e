// Package agent implements the orchestration loop: it turns one user
// message into a reply by alternating LLM decisions with tool execution,
// while owning the conversation history.
package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
	"github.com/RahimMirani/scheduling-agent/internal/llm"
	"github.com/RahimMirani/scheduling-agent/internal/logging"
	"github.com/RahimMirani/scheduling-agent/internal/metrics"
)

const defaultMaxRounds = 10

const (
	roundLimitReply = "I'm sorry, I wasn't able to complete that request within a reasonable number of steps. Could you rephrase it or break it into smaller parts?"
	upstreamReply   = "I'm sorry, I'm having trouble reaching the language model right now. Please try again in a moment."
)

// Agent sequences the resolver and dispatcher for one conversation.
// One Agent serves one user session; concurrent messages are serialized so
// each turn's tool calls and results land in the history as one block.
type Agent struct {
	resolver   *Resolver
	dispatcher *Dispatcher
	conv       *Conversation
	maxRounds  int
	now        func() time.Time

	mu sync.Mutex // serializes turns
}

// New creates an Agent with an empty conversation.
func New(resolver *Resolver, dispatcher *Dispatcher, maxRounds int) *Agent {
	if maxRounds <= 0 {
		maxRounds = defaultMaxRounds
	}
	return &Agent{
		resolver:   resolver,
		dispatcher: dispatcher,
		conv:       NewConversation(),
		maxRounds:  maxRounds,
		now:        time.Now,
	}
}

// HandleMessage runs the full loop for one user message and returns the
// assistant's reply. Upstream model failures abort the turn with an
// apologetic reply while preserving history; they never crash the process.
func (a *Agent) HandleMessage(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", errors.New("message is empty")
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	a.conv.Append(Turn{Role: llm.RoleUser, Content: text})
	prompt := systemPrompt(a.now())

	for round := 1; round <= a.maxRounds; round++ {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		decision, err := a.resolver.Resolve(ctx, prompt, a.conv.Snapshot())
		if err != nil {
			var modelErr *UpstreamModelError
			if errors.As(err, &modelErr) {
				logging.Logger().Error("turn aborted", "round", round, "err", err)
				metrics.ChatTurns.WithLabelValues("upstream_error").Inc()
				a.conv.Append(Turn{Role: llm.RoleAssistant, Content: upstreamReply})
				return upstreamReply, nil
			}
			return "", err
		}

		if decision.IsFinal() {
			answer := decision.Answer
			if strings.TrimSpace(answer) == "" {
				answer = "Done!"
			}
			a.conv.Append(Turn{Role: llm.RoleAssistant, Content: answer})
			metrics.ChatTurns.WithLabelValues("ok").Inc()
			metrics.ResolverRounds.Observe(float64(round))
			return answer, nil
		}

		logging.Logger().Info("dispatching tool calls",
			"round", round, "call_count", len(decision.Calls))
		a.conv.Append(Turn{Role: llm.RoleAssistant, Content: decision.Answer, ToolCalls: decision.Calls})

		// The round does not complete until every call has a result, so the
		// model never observes a dangling tool call.
		results := a.dispatcher.Execute(ctx, decision.Calls)
		var authErr error
		for _, result := range results {
			a.conv.Append(Turn{
				Role:       llm.RoleTool,
				Content:    result.Content(),
				ToolCallID: result.CallID,
			})
			if result.Err != nil && errors.Is(result.Err, googleauth.ErrAuthRequired) {
				authErr = result.Err
			}
		}
		// Credential loss is not something the model can talk its way out
		// of; surface it once every call in the round has its result turn.
		if authErr != nil {
			logging.Logger().Warn("turn aborted: Google session expired", "round", round)
			metrics.ChatTurns.WithLabelValues("auth_required").Inc()
			return "", authErr
		}
	}

	logging.Logger().Warn("round limit exceeded", "max_rounds", a.maxRounds)
	metrics.ChatTurns.WithLabelValues("round_limit").Inc()
	a.conv.Append(Turn{Role: llm.RoleAssistant, Content: roundLimitReply})
	return roundLimitReply, nil
}

// Reset clears the conversation, starting a new chat. It waits for any
// in-flight turn to finish first.
func (a *Agent) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.conv.Reset()
}

// History returns a copy of the conversation turns.
func (a *Agent) History() []Turn {
	return a.conv.Snapshot()
}
