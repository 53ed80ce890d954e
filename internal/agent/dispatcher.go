package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/timeout"

	"github.com/RahimMirani/scheduling-agent/internal/llm"
	"github.com/RahimMirani/scheduling-agent/internal/logging"
	"github.com/RahimMirani/scheduling-agent/internal/metrics"
	"github.com/RahimMirani/scheduling-agent/internal/tools"
)

const (
	defaultToolConcurrency = 5
	defaultToolTimeout     = 30 * time.Second
)

// ToolResult is the outcome of executing one ToolCall.
type ToolResult struct {
	CallID  string
	Name    string
	Success bool
	Output  string // payload on success
	Error   string // human-readable description on failure
	Err     error  // underlying execution error, kept for sentinel checks
}

// Content returns the text fed back to the model as the tool-result turn.
func (r ToolResult) Content() string {
	if r.Success {
		return r.Output
	}
	return "tool execution error: " + r.Error
}

// Dispatcher validates and executes one round of tool calls against the
// registry. Tool failures never escape as errors; they become failed
// results the model can explain back to the user.
type Dispatcher struct {
	registry    *tools.Registry
	concurrency int
	timeout     time.Duration
	outputLimit int
}

// NewDispatcher creates a dispatcher with a bounded worker fan-out and a
// per-call timeout. outputLimit truncates oversized tool output (0 keeps it
// unbounded).
func NewDispatcher(registry *tools.Registry, concurrency int, callTimeout time.Duration, outputLimit int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = defaultToolConcurrency
	}
	if callTimeout <= 0 {
		callTimeout = defaultToolTimeout
	}
	return &Dispatcher{
		registry:    registry,
		concurrency: concurrency,
		timeout:     callTimeout,
		outputLimit: outputLimit,
	}
}

// Execute runs every call in the round and returns results in input order,
// one per call. Calls within a round are independent and run concurrently
// up to the configured limit; Execute does not return until all are done.
func (d *Dispatcher) Execute(ctx context.Context, calls []llm.ToolCall) []ToolResult {
	results := make([]ToolResult, len(calls))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.concurrency)
	for i, call := range calls {
		wg.Add(1)
		go func(i int, call llm.ToolCall) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()
			results[i] = d.executeOne(ctx, call)
		}(i, call)
	}
	wg.Wait()

	return results
}

func (d *Dispatcher) executeOne(ctx context.Context, call llm.ToolCall) ToolResult {
	result := ToolResult{CallID: call.ID, Name: call.Name}

	tool, ok := d.registry.Lookup(call.Name)
	if !ok {
		// The resolver rejects unregistered tools before dispatch; this
		// guards direct callers.
		result.Error = "unknown tool " + call.Name
		metrics.ToolExecutions.WithLabelValues(call.Name, "invalid").Inc()
		return result
	}

	args := map[string]any{}
	if call.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Arguments), &args); err != nil {
			result.Error = "invalid argument JSON: " + err.Error()
			metrics.ToolExecutions.WithLabelValues(call.Name, "invalid").Inc()
			return result
		}
	}

	// Schema validation failures never reach the adapter.
	if err := tools.ValidateArgs(tool.Schema(), args); err != nil {
		logging.Logger().Warn("tool call rejected",
			"tool", call.Name, "tool_call_id", call.ID, "err", err)
		result.Error = err.Error()
		metrics.ToolExecutions.WithLabelValues(call.Name, "invalid").Inc()
		return result
	}

	started := time.Now()
	output, err := failsafe.With[string](timeout.New[string](d.timeout)).
		WithContext(ctx).
		GetWithExecution(func(exec failsafe.Execution[string]) (string, error) {
			return tool.Execute(exec.Context(), args)
		})
	duration := time.Since(started)

	if err != nil {
		result.Err = err
		if errors.Is(err, timeout.ErrExceeded) {
			result.Error = "timed out after " + d.timeout.String()
		} else {
			result.Error = err.Error()
		}
		logging.Logger().Warn("tool call failed",
			"tool", call.Name, "tool_call_id", call.ID,
			"duration_ms", duration.Milliseconds(), "err", err)
		metrics.ToolExecutions.WithLabelValues(call.Name, "error").Inc()
		return result
	}

	if d.outputLimit > 0 && len(output) > d.outputLimit {
		output = output[:d.outputLimit] + "\n... (truncated)"
	}

	logging.Logger().Info("tool call complete",
		"tool", call.Name, "tool_call_id", call.ID,
		"duration_ms", duration.Milliseconds())
	metrics.ToolExecutions.WithLabelValues(call.Name, "ok").Inc()

	result.Success = true
	result.Output = output
	return result
}
