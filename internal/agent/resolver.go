package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"

	"github.com/RahimMirani/scheduling-agent/internal/llm"
	"github.com/RahimMirani/scheduling-agent/internal/logging"
	"github.com/RahimMirani/scheduling-agent/internal/metrics"
	"github.com/RahimMirani/scheduling-agent/internal/tools"
)

// Decision is the resolver's output for one round: either a final textual
// answer (no tool calls) or a batch of validated tool calls.
type Decision struct {
	Answer string
	Calls  []llm.ToolCall
}

// IsFinal reports whether the decision carries no tool calls.
func (d *Decision) IsFinal() bool { return len(d.Calls) == 0 }

// Resolver sends the conversation and tool registry to the LLM and parses
// the structured reply into a Decision.
type Resolver struct {
	provider    llm.Provider
	registry    *tools.Registry
	maxTokens   int
	tokenBudget int
	timeout     time.Duration
}

// NewResolver creates a resolver bound to one provider and registry.
// tokenBudget caps the estimated size of the history view sent to the model;
// requestTimeout bounds each LLM call.
func NewResolver(provider llm.Provider, registry *tools.Registry, maxTokens, tokenBudget int, requestTimeout time.Duration) *Resolver {
	if requestTimeout <= 0 {
		requestTimeout = 60 * time.Second
	}
	return &Resolver{
		provider:    provider,
		registry:    registry,
		maxTokens:   maxTokens,
		tokenBudget: tokenBudget,
		timeout:     requestTimeout,
	}
}

// Resolve sends the full history plus tool definitions in a single request
// and parses the model output. Any transport failure, timeout, or output
// that names an unregistered tool or carries malformed argument JSON is an
// UpstreamModelError.
func (r *Resolver) Resolve(ctx context.Context, systemPrompt string, turns []Turn) (*Decision, error) {
	defs := r.registry.Definitions()
	messages := trimMessages(chatMessages(turns), r.tokenBudget)
	if len(messages) < len(turns) {
		logging.Logger().Info("history trimmed for model request",
			"turns", len(turns), "sent", len(messages))
	}

	req := llm.ChatRequest{
		SystemPrompt: systemPrompt,
		Messages:     messages,
		Tools:        defs,
		MaxTokens:    r.maxTokens,
	}

	resp, err := r.request(ctx, req)
	if err != nil {
		if delay, ok := retryDelay(err); ok {
			logging.Logger().Warn("transient model failure, retrying once",
				"delay", delay, "err", err)
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return nil, &UpstreamModelError{Reason: "model request failed", Err: err}
			}
			resp, err = r.request(ctx, req)
		}
	}
	if err != nil {
		if errors.Is(err, timeout.ErrExceeded) {
			return nil, &UpstreamModelError{Reason: fmt.Sprintf("model request timed out after %s", r.timeout), Err: err}
		}
		var apiErr *llm.APIError
		if errors.As(err, &apiErr) && apiErr.IsAuth() {
			return nil, &UpstreamModelError{Reason: "model API key rejected", Err: err}
		}
		return nil, &UpstreamModelError{Reason: "model request failed", Err: err}
	}

	metrics.LLMTokens.WithLabelValues("input").Add(float64(resp.Usage.InputTokens))
	metrics.LLMTokens.WithLabelValues("output").Add(float64(resp.Usage.OutputTokens))

	if len(resp.ToolCalls) == 0 {
		return &Decision{Answer: resp.Content}, nil
	}

	// Every requested call must name a registered tool and carry a parsable
	// JSON argument object before the dispatcher sees it.
	for _, call := range resp.ToolCalls {
		if _, ok := r.registry.Lookup(call.Name); !ok {
			return nil, &UpstreamModelError{Reason: fmt.Sprintf("model requested unregistered tool %q", call.Name)}
		}
		if call.Arguments == "" {
			continue
		}
		var args map[string]any
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			return nil, &UpstreamModelError{Reason: fmt.Sprintf("malformed arguments for tool %q", call.Name), Err: err}
		}
	}

	return &Decision{Answer: resp.Content, Calls: resp.ToolCalls}, nil
}

func (r *Resolver) request(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	started := time.Now()
	resp, err := failsafe.With[*llm.ChatResponse](timeout.New[*llm.ChatResponse](r.timeout)).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[*llm.ChatResponse]) (*llm.ChatResponse, error) {
			return r.provider.Chat(exec.Context(), req)
		})
	metrics.LLMRequestDuration.Observe(time.Since(started).Seconds())
	return resp, err
}

const (
	rateLimitRetryDelay = 2 * time.Second
	serverRetryDelay    = time.Second
	maxRetryDelay       = 10 * time.Second
)

// retryDelay reports whether err is a transient backend failure worth one
// retry, and how long to wait before it. Rate-limit responses that carry a
// backend-suggested delay use it, bounded by maxRetryDelay.
func retryDelay(err error) (time.Duration, bool) {
	var apiErr *llm.APIError
	if !errors.As(err, &apiErr) || !apiErr.IsTransient() {
		return 0, false
	}
	if apiErr.RetryAfter > 0 {
		return min(apiErr.RetryAfter, maxRetryDelay), true
	}
	if apiErr.IsRateLimit() {
		return rateLimitRetryDelay, true
	}
	return serverRetryDelay, true
}
