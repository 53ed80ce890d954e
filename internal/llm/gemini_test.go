package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestGeminiChatParsesAnswer(t *testing.T) {
	var gotReq chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("unexpected auth header %q", got)
		}
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {"role": "assistant", "content": "hello there"}}],
			"usage": {"prompt_tokens": 12, "completion_tokens": 4, "total_tokens": 16}
		}`))
	}))
	defer server.Close()

	p, err := newGeminiProviderForTest("test-key", "gemini-2.5-flash", server.URL, server.Client())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	resp, err := p.Chat(context.Background(), ChatRequest{
		SystemPrompt: "be helpful",
		Messages:     []ChatMessage{{Role: RoleUser, Content: "hi"}},
		MaxTokens:    512,
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if resp.Content != "hello there" {
		t.Fatalf("unexpected content %q", resp.Content)
	}
	if resp.Usage.InputTokens != 12 || resp.Usage.OutputTokens != 4 {
		t.Fatalf("unexpected usage %#v", resp.Usage)
	}

	if gotReq.Model != "gemini-2.5-flash" {
		t.Fatalf("unexpected model %q", gotReq.Model)
	}
	if len(gotReq.Messages) != 2 || gotReq.Messages[0].Role != "system" {
		t.Fatalf("expected system message first, got %#v", gotReq.Messages)
	}
}

func TestGeminiChatParsesToolCalls(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{
			"choices": [{"message": {
				"role": "assistant",
				"tool_calls": [
					{"id": "call_abc", "type": "function", "function": {"name": "get_emails", "arguments": "{\"max_results\": 5}"}},
					{"type": "function", "function": {"name": "get_today_events", "arguments": "{}"}}
				]
			}}]
		}`))
	}))
	defer server.Close()

	p, err := newGeminiProviderForTest("k", "m", server.URL, server.Client())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	resp, err := p.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "check my stuff"}},
		Tools: []ToolDefinition{
			{Name: "get_emails", Parameters: map[string]any{"type": "object"}},
			{Name: "get_today_events", Parameters: map[string]any{"type": "object"}},
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}
	if len(resp.ToolCalls) != 2 {
		t.Fatalf("expected 2 tool calls, got %d", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "call_abc" || resp.ToolCalls[0].Name != "get_emails" {
		t.Fatalf("unexpected first call %#v", resp.ToolCalls[0])
	}
	// A missing ID gets backfilled so results can still correlate.
	if !strings.HasPrefix(resp.ToolCalls[1].ID, "call_") || len(resp.ToolCalls[1].ID) <= len("call_") {
		t.Fatalf("expected generated call ID, got %q", resp.ToolCalls[1].ID)
	}
}

func TestGeminiChatSendsToolResults(t *testing.T) {
	var gotReq chatCompletionRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&gotReq); err != nil {
			t.Errorf("decode request: %v", err)
		}
		w.Write([]byte(`{"choices": [{"message": {"content": "ok"}}]}`))
	}))
	defer server.Close()

	p, err := newGeminiProviderForTest("k", "m", server.URL, server.Client())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = p.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{
			{Role: RoleUser, Content: "check email"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{{ID: "call_1", Name: "get_emails", Arguments: "{}"}}},
			{Role: RoleTool, Content: "[]", ToolCallID: "call_1"},
		},
	})
	if err != nil {
		t.Fatalf("chat: %v", err)
	}

	if len(gotReq.Messages) != 3 {
		t.Fatalf("expected 3 wire messages, got %d", len(gotReq.Messages))
	}
	assistant := gotReq.Messages[1]
	if len(assistant.ToolCalls) != 1 || assistant.ToolCalls[0].Function.Name != "get_emails" {
		t.Fatalf("assistant tool call not forwarded: %#v", assistant)
	}
	toolMsg := gotReq.Messages[2]
	if toolMsg.Role != "tool" || toolMsg.ToolCallID != "call_1" {
		t.Fatalf("tool result not linked: %#v", toolMsg)
	}
}

func TestGeminiChatErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		w.Write([]byte(`{"error": {"message": "quota exceeded", "details": [{"metadata": {"retryDelay": "7s"}}]}}`))
	}))
	defer server.Close()

	p, err := newGeminiProviderForTest("k", "m", server.URL, server.Client())
	if err != nil {
		t.Fatalf("new provider: %v", err)
	}

	_, err = p.Chat(context.Background(), ChatRequest{
		Messages: []ChatMessage{{Role: RoleUser, Content: "hi"}},
	})
	if err == nil {
		t.Fatal("expected error for 429 response")
	}
	apiErr, ok := err.(*APIError)
	if !ok {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if !apiErr.IsRateLimit() || !apiErr.IsTransient() {
		t.Fatalf("expected rate limit classification, got %#v", apiErr)
	}
	if apiErr.RetryAfter.Seconds() != 7 {
		t.Fatalf("expected 7s retry delay, got %s", apiErr.RetryAfter)
	}
}

func TestNewGeminiProviderRequiresKeyAndModel(t *testing.T) {
	if _, err := newGeminiProvider(testProviderConfig("", "gemini-2.5-flash")); err == nil {
		t.Fatal("expected error for missing api key")
	}
	if _, err := newGeminiProvider(testProviderConfig("key", "")); err == nil {
		t.Fatal("expected error for missing model")
	}
}
