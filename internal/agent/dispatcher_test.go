package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/RahimMirani/scheduling-agent/internal/llm"
	"github.com/RahimMirani/scheduling-agent/internal/tools"
)

// gauge tracks the high-water mark of concurrent executions.
type gauge struct {
	mu      sync.Mutex
	current int
	peak    int
}

func (g *gauge) enter() {
	g.mu.Lock()
	g.current++
	if g.current > g.peak {
		g.peak = g.current
	}
	g.mu.Unlock()
}

func (g *gauge) leave() {
	g.mu.Lock()
	g.current--
	g.mu.Unlock()
}

type gaugedTool struct {
	name  string
	g     *gauge
	delay time.Duration
}

func (t *gaugedTool) Name() string        { return t.name }
func (t *gaugedTool) Description() string { return "gauged tool" }
func (t *gaugedTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *gaugedTool) Execute(context.Context, map[string]any) (string, error) {
	t.g.enter()
	defer t.g.leave()
	time.Sleep(t.delay)
	return "done " + t.name, nil
}

func TestExecutePreservesOrderAndIDs(t *testing.T) {
	registry := tools.NewRegistry()
	g := &gauge{}
	// Later calls finish first so completion order differs from input order.
	delays := []time.Duration{60 * time.Millisecond, 30 * time.Millisecond, 5 * time.Millisecond}
	var calls []llm.ToolCall
	for i, delay := range delays {
		name := fmt.Sprintf("tool_%d", i)
		if err := registry.Register(&gaugedTool{name: name, g: g, delay: delay}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		calls = append(calls, llm.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: name, Arguments: "{}"})
	}

	d := NewDispatcher(registry, 3, time.Second, 0)
	results := d.Execute(context.Background(), calls)

	if len(results) != len(calls) {
		t.Fatalf("expected %d results, got %d", len(calls), len(results))
	}
	for i, result := range results {
		if result.CallID != calls[i].ID {
			t.Fatalf("result %d has call ID %q, want %q", i, result.CallID, calls[i].ID)
		}
		if !result.Success || result.Output != "done "+calls[i].Name {
			t.Fatalf("result %d: %#v", i, result)
		}
	}
}

func TestExecuteBoundsConcurrency(t *testing.T) {
	registry := tools.NewRegistry()
	g := &gauge{}
	var calls []llm.ToolCall
	for i := 0; i < 6; i++ {
		name := fmt.Sprintf("tool_%d", i)
		if err := registry.Register(&gaugedTool{name: name, g: g, delay: 20 * time.Millisecond}); err != nil {
			t.Fatalf("register %s: %v", name, err)
		}
		calls = append(calls, llm.ToolCall{ID: fmt.Sprintf("call_%d", i), Name: name, Arguments: "{}"})
	}

	d := NewDispatcher(registry, 2, time.Second, 0)
	d.Execute(context.Background(), calls)

	if g.peak > 2 {
		t.Fatalf("expected at most 2 concurrent executions, observed %d", g.peak)
	}
}

func TestExecuteValidationFailureSkipsAdapter(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{
		name: "send_email",
		schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"to": map[string]any{"type": "string"},
			},
			"required": []string{"to"},
		},
	}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1, time.Second, 0)
	results := d.Execute(context.Background(), []llm.ToolCall{
		{ID: "call_1", Name: "send_email", Arguments: `{"subject":"no recipient"}`},
	})

	if results[0].Success {
		t.Fatalf("expected validation failure, got %#v", results[0])
	}
	if !strings.Contains(results[0].Error, "to") {
		t.Fatalf("expected missing-field error, got %q", results[0].Error)
	}
	if got := tool.calls.Load(); got != 0 {
		t.Fatalf("adapter must not run on validation failure, got %d calls", got)
	}
}

func TestExecuteUnknownToolFails(t *testing.T) {
	d := NewDispatcher(tools.NewRegistry(), 1, time.Second, 0)
	results := d.Execute(context.Background(), []llm.ToolCall{
		{ID: "call_1", Name: "no_such_tool", Arguments: "{}"},
	})
	if results[0].Success || !strings.Contains(results[0].Error, "no_such_tool") {
		t.Fatalf("expected unknown tool failure, got %#v", results[0])
	}
}

func TestExecuteMalformedArgsFail(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "get_emails"}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1, time.Second, 0)
	results := d.Execute(context.Background(), []llm.ToolCall{
		{ID: "call_1", Name: "get_emails", Arguments: "{not json"},
	})
	if results[0].Success {
		t.Fatalf("expected JSON failure, got %#v", results[0])
	}
	if got := tool.calls.Load(); got != 0 {
		t.Fatalf("adapter must not run on malformed args, got %d calls", got)
	}
}

func TestExecuteAdapterErrorBecomesFailedResult(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "delete_email", err: errors.New("message not found")}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1, time.Second, 0)
	results := d.Execute(context.Background(), []llm.ToolCall{
		{ID: "call_1", Name: "delete_email", Arguments: "{}"},
	})
	if results[0].Success || !strings.Contains(results[0].Error, "message not found") {
		t.Fatalf("expected adapter error result, got %#v", results[0])
	}
	if !strings.Contains(results[0].Content(), "tool execution error") {
		t.Fatalf("expected marked failure content, got %q", results[0].Content())
	}
}

func TestExecuteTimesOutSlowTool(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "slow_tool", delay: 500 * time.Millisecond}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1, 20*time.Millisecond, 0)
	results := d.Execute(context.Background(), []llm.ToolCall{
		{ID: "call_1", Name: "slow_tool", Arguments: "{}"},
	})
	if results[0].Success || !strings.Contains(results[0].Error, "timed out") {
		t.Fatalf("expected timeout failure, got %#v", results[0])
	}
}

func TestExecuteTruncatesOversizedOutput(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "get_emails", output: strings.Repeat("x", 100)}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register: %v", err)
	}

	d := NewDispatcher(registry, 1, time.Second, 40)
	results := d.Execute(context.Background(), []llm.ToolCall{
		{ID: "call_1", Name: "get_emails", Arguments: "{}"},
	})
	if !results[0].Success {
		t.Fatalf("expected success, got %#v", results[0])
	}
	if !strings.HasSuffix(results[0].Output, "(truncated)") {
		t.Fatalf("expected truncation marker, got %q", results[0].Output)
	}
	if !strings.HasPrefix(results[0].Output, strings.Repeat("x", 40)) {
		t.Fatalf("expected 40-char prefix kept, got %q", results[0].Output)
	}
}
