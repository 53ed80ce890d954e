package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
	"github.com/RahimMirani/scheduling-agent/internal/llm"
	"github.com/RahimMirani/scheduling-agent/internal/tools"
)

// recordingProvider replays scripted responses and captures every request.
type recordingProvider struct {
	responses []*llm.ChatResponse
	err       error
	requests  []llm.ChatRequest
}

func (p *recordingProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.requests = append(p.requests, req)
	if p.err != nil {
		return nil, p.err
	}
	if len(p.responses) == 0 {
		return &llm.ChatResponse{Content: "out of script"}, nil
	}
	resp := p.responses[0]
	p.responses = p.responses[1:]
	return resp, nil
}

// loopingProvider always requests the same tool call, never finishing.
type loopingProvider struct {
	call  llm.ToolCall
	count int
}

func (p *loopingProvider) Chat(context.Context, llm.ChatRequest) (*llm.ChatResponse, error) {
	p.count++
	return &llm.ChatResponse{ToolCalls: []llm.ToolCall{p.call}}, nil
}

// stubTool returns a fixed output and counts invocations.
type stubTool struct {
	name   string
	schema map[string]any
	output string
	err    error
	delay  time.Duration
	calls  atomic.Int64
}

func (t *stubTool) Name() string        { return t.name }
func (t *stubTool) Description() string { return "stub tool for tests" }

func (t *stubTool) Schema() map[string]any {
	if t.schema != nil {
		return t.schema
	}
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *stubTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	t.calls.Add(1)
	if t.delay > 0 {
		select {
		case <-time.After(t.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return t.output, t.err
}

func newTestAgent(t *testing.T, provider llm.Provider, registry *tools.Registry, maxRounds int) *Agent {
	t.Helper()
	if registry == nil {
		registry = tools.NewRegistry()
	}
	resolver := NewResolver(provider, registry, 1024, 8000, time.Second)
	dispatcher := NewDispatcher(registry, 2, time.Second, 0)
	return New(resolver, dispatcher, maxRounds)
}

func TestHandleMessageDirectAnswer(t *testing.T) {
	provider := &recordingProvider{
		responses: []*llm.ChatResponse{{Content: "hello"}},
	}
	ag := newTestAgent(t, provider, nil, 0)

	reply, err := ag.HandleMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply != "hello" {
		t.Fatalf("expected reply %q, got %q", "hello", reply)
	}

	history := ag.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Role != llm.RoleUser || history[1].Role != llm.RoleAssistant {
		t.Fatalf("unexpected turn roles: %#v", history)
	}
}

func TestHandleMessageToolRoundTrip(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "get_today_events", output: `[{"summary":"standup"},{"summary":"lunch"}]`}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	provider := &recordingProvider{
		responses: []*llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "get_today_events", Arguments: "{}"}}},
			{Content: "You have 2 events"},
		},
	}
	ag := newTestAgent(t, provider, registry, 0)

	reply, err := ag.HandleMessage(context.Background(), "what's on today?")
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply != "You have 2 events" {
		t.Fatalf("expected final answer, got %q", reply)
	}
	if got := tool.calls.Load(); got != 1 {
		t.Fatalf("expected 1 tool execution, got %d", got)
	}

	history := ag.History()
	if len(history) != 4 {
		t.Fatalf("expected 4 turns (user, assistant, tool, assistant), got %d", len(history))
	}
	if history[2].Role != llm.RoleTool || history[2].ToolCallID != "call_1" {
		t.Fatalf("expected tool result turn linked to call_1, got %#v", history[2])
	}

	// The second request must carry the tool result back to the model.
	if len(provider.requests) != 2 {
		t.Fatalf("expected 2 provider requests, got %d", len(provider.requests))
	}
	second := provider.requests[1].Messages
	last := second[len(second)-1]
	if last.Role != llm.RoleTool || !strings.Contains(last.Content, "standup") {
		t.Fatalf("expected tool result in second request, got %#v", last)
	}
}

func TestHandleMessageFailedToolFedBackToModel(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "send_email", err: errors.New("recipient rejected")}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}

	provider := &recordingProvider{
		responses: []*llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "send_email", Arguments: "{}"}}},
			{Content: "I couldn't send that email."},
		},
	}
	ag := newTestAgent(t, provider, registry, 0)

	reply, err := ag.HandleMessage(context.Background(), "email bob")
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply != "I couldn't send that email." {
		t.Fatalf("unexpected reply %q", reply)
	}

	second := provider.requests[1].Messages
	last := second[len(second)-1]
	if !strings.Contains(last.Content, "recipient rejected") {
		t.Fatalf("expected failure text in tool result, got %q", last.Content)
	}
}

func TestHandleMessageUpstreamErrorApologizes(t *testing.T) {
	provider := &recordingProvider{err: errors.New("503 from upstream")}
	ag := newTestAgent(t, provider, nil, 0)

	reply, err := ag.HandleMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("upstream failure must not surface as an error: %v", err)
	}
	if !strings.Contains(reply, "sorry") {
		t.Fatalf("expected apologetic reply, got %q", reply)
	}

	// History keeps the user turn so a retry has context.
	history := ag.History()
	if len(history) != 2 || history[0].Content != "hi" {
		t.Fatalf("expected preserved history, got %#v", history)
	}
	// The failed request is not retried.
	if len(provider.requests) != 1 {
		t.Fatalf("expected exactly 1 provider request, got %d", len(provider.requests))
	}
}

func TestHandleMessageRoundLimit(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "get_emails", output: "[]"}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	provider := &loopingProvider{call: llm.ToolCall{ID: "call_x", Name: "get_emails", Arguments: "{}"}}
	ag := newTestAgent(t, provider, registry, 3)

	reply, err := ag.HandleMessage(context.Background(), "loop forever")
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply != roundLimitReply {
		t.Fatalf("expected round limit reply, got %q", reply)
	}
	if provider.count != 3 {
		t.Fatalf("expected exactly 3 resolver rounds, got %d", provider.count)
	}
}

func TestHandleMessageEmptyTextRejected(t *testing.T) {
	ag := newTestAgent(t, &recordingProvider{}, nil, 0)
	if _, err := ag.HandleMessage(context.Background(), "   "); err == nil {
		t.Fatal("expected error for blank message")
	}
	if got := len(ag.History()); got != 0 {
		t.Fatalf("blank message must not be recorded, got %d turns", got)
	}
}

func TestHandleMessageBlankAnswerBecomesDone(t *testing.T) {
	provider := &recordingProvider{responses: []*llm.ChatResponse{{Content: "  "}}}
	ag := newTestAgent(t, provider, nil, 0)

	reply, err := ag.HandleMessage(context.Background(), "hi")
	if err != nil {
		t.Fatalf("handle message: %v", err)
	}
	if reply != "Done!" {
		t.Fatalf("expected placeholder reply, got %q", reply)
	}
}

func TestHandleMessageSurfacesAuthLoss(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &stubTool{name: "get_emails", err: fmt.Errorf("refresh token: %w", googleauth.ErrAuthRequired)}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	provider := &recordingProvider{
		responses: []*llm.ChatResponse{
			{ToolCalls: []llm.ToolCall{{ID: "call_1", Name: "get_emails", Arguments: "{}"}}},
		},
	}
	ag := newTestAgent(t, provider, registry, 0)

	_, err := ag.HandleMessage(context.Background(), "check my inbox")
	if !errors.Is(err, googleauth.ErrAuthRequired) {
		t.Fatalf("expected auth-required error, got %v", err)
	}

	// The tool-call turn keeps its result so the next message resumes from
	// a well-formed history.
	history := ag.History()
	if len(history) != 3 {
		t.Fatalf("expected 3 turns (user, assistant, tool), got %d", len(history))
	}
	if history[2].Role != llm.RoleTool || history[2].ToolCallID != "call_1" {
		t.Fatalf("expected tool result turn, got %#v", history[2])
	}
	// The model is not asked to explain a missing session.
	if len(provider.requests) != 1 {
		t.Fatalf("expected 1 provider request, got %d", len(provider.requests))
	}
}

// gatedTool blocks mid-execution until released, holding a turn open so a
// second message can race against it.
type gatedTool struct {
	started chan struct{}
	release chan struct{}
	once    sync.Once
}

func (t *gatedTool) Name() string        { return "hold_slot" }
func (t *gatedTool) Description() string { return "gated tool for tests" }

func (t *gatedTool) Schema() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *gatedTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	t.once.Do(func() { close(t.started) })
	select {
	case <-t.release:
		return "held", nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// gateProvider answers "first" with a tool call and everything else with a
// final reply, recording every request it sees.
type gateProvider struct {
	mu       sync.Mutex
	requests []llm.ChatRequest
}

func (p *gateProvider) Chat(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	p.mu.Lock()
	p.requests = append(p.requests, req)
	p.mu.Unlock()

	last := req.Messages[len(req.Messages)-1]
	if last.Role == llm.RoleUser && last.Content == "first" {
		return &llm.ChatResponse{ToolCalls: []llm.ToolCall{{ID: "call_hold", Name: "hold_slot", Arguments: "{}"}}}, nil
	}
	return &llm.ChatResponse{Content: "done"}, nil
}

func TestHandleMessageSerializesConcurrentTurns(t *testing.T) {
	registry := tools.NewRegistry()
	tool := &gatedTool{started: make(chan struct{}), release: make(chan struct{})}
	if err := registry.Register(tool); err != nil {
		t.Fatalf("register tool: %v", err)
	}
	provider := &gateProvider{}
	ag := newTestAgent(t, provider, registry, 0)

	errs := make(chan error, 2)
	go func() {
		_, err := ag.HandleMessage(context.Background(), "first")
		errs <- err
	}()
	<-tool.started
	go func() {
		_, err := ag.HandleMessage(context.Background(), "second")
		errs <- err
	}()
	// Give the second message time to arrive while the tool is held open.
	time.Sleep(20 * time.Millisecond)
	close(tool.release)
	for i := 0; i < 2; i++ {
		if err := <-errs; err != nil {
			t.Fatalf("handle message: %v", err)
		}
	}

	// No request may show an assistant tool call without its matching result.
	provider.mu.Lock()
	defer provider.mu.Unlock()
	for _, req := range provider.requests {
		for i, msg := range req.Messages {
			for _, call := range msg.ToolCalls {
				if !hasToolResult(req.Messages[i+1:], call.ID) {
					t.Fatalf("dangling tool call %q in request: %#v", call.ID, req.Messages)
				}
			}
		}
	}
}

func hasToolResult(rest []llm.ChatMessage, callID string) bool {
	for _, msg := range rest {
		if msg.Role == llm.RoleTool && msg.ToolCallID == callID {
			return true
		}
	}
	return false
}

func TestResetClearsHistory(t *testing.T) {
	provider := &recordingProvider{responses: []*llm.ChatResponse{{Content: "a"}, {Content: "b"}}}
	ag := newTestAgent(t, provider, nil, 0)

	if _, err := ag.HandleMessage(context.Background(), "one"); err != nil {
		t.Fatalf("handle message: %v", err)
	}
	ag.Reset()
	if got := len(ag.History()); got != 0 {
		t.Fatalf("expected empty history after reset, got %d turns", got)
	}

	if _, err := ag.HandleMessage(context.Background(), "two"); err != nil {
		t.Fatalf("handle message after reset: %v", err)
	}
	// A fresh conversation sends only the new user message.
	lastReq := provider.requests[len(provider.requests)-1]
	if len(lastReq.Messages) != 1 {
		t.Fatalf("expected 1 message after reset, got %d", len(lastReq.Messages))
	}
}
