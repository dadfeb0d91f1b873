package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAnthropicComplete(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "test-key" {
			t.Errorf("api key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicAPIVersion {
			t.Errorf("version = %q", r.Header.Get("anthropic-version"))
		}

		var req anthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if req.System != "You are helpful." {
			t.Errorf("system = %q", req.System)
		}
		if len(req.Messages) != 1 || req.Messages[0].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}

		resp := anthResponse{
			ID:    "msg_1",
			Model: "claude-sonnet-4",
			Content: []anthContentBlock{
				{Type: "text", Text: "Hello!"},
			},
			Usage: anthUsage{InputTokens: 12, OutputTokens: 3},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropicProvider("anthropic", server.URL, "test-key", nil)

	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model: "claude-sonnet-4",
		Messages: []Message{
			{Role: RoleSystem, Content: "You are helpful."},
			{Role: RoleUser, Content: "Hi"},
		},
	})
	if err != nil {
		t.Fatal(err)
	}
	if resp.Content != "Hello!" {
		t.Errorf("content = %q", resp.Content)
	}
}

func TestAnthropicCompleteToolUse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req anthRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatal(err)
		}
		if len(req.Tools) != 1 || req.Tools[0].Name != "lookup_client" {
			t.Errorf("tools = %+v", req.Tools)
		}

		resp := anthResponse{
			ID:         "msg_2",
			StopReason: "tool_use",
			Content: []anthContentBlock{
				{Type: "text", Text: "Let me look that up."},
				{Type: "tool_use", ID: "toolu_1", Name: "lookup_client", Input: json.RawMessage(`{"client_name":"Acme"}`)},
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	defer server.Close()

	p := NewAnthropicProvider("anthropic", server.URL, "test-key", nil)

	resp, err := p.Complete(context.Background(), &CompletionRequest{
		Model:    "claude-sonnet-4",
		Messages: []Message{{Role: RoleUser, Content: "Who is Acme?"}},
		Tools: []ToolSchema{{
			Name:        "lookup_client",
			Description: "Look up a client",
			Parameters:  map[string]any{"type": "object"},
		}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(resp.ToolCalls) != 1 {
		t.Fatalf("tool calls = %d, want 1", len(resp.ToolCalls))
	}
	if resp.ToolCalls[0].ID != "toolu_1" || resp.ToolCalls[0].Name != "lookup_client" {
		t.Errorf("tool call = %+v", resp.ToolCalls[0])
	}
}

func TestAnthropicToolResultsCollapseIntoOneUserTurn(t *testing.T) {
	p := NewAnthropicProvider("anthropic", "", "k", nil)

	req := p.toAnthRequest(&CompletionRequest{
		Model: "claude-sonnet-4",
		Messages: []Message{
			{Role: RoleUser, Content: "Who is Acme?"},
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "toolu_1", Name: "lookup_client", Arguments: json.RawMessage(`{"client_name":"Acme"}`)},
				{ID: "toolu_2", Name: "all_client_names", Arguments: json.RawMessage(`{}`)},
			}},
			{Role: RoleTool, ToolCallID: "toolu_1", Content: `{"name":"Acme"}`},
			{Role: RoleTool, ToolCallID: "toolu_2", Content: `["Acme","Globex"]`},
		},
	})

	// user, assistant, then a single user turn with both tool_result blocks
	if len(req.Messages) != 3 {
		t.Fatalf("messages = %d, want 3", len(req.Messages))
	}
	last := req.Messages[2]
	if last.Role != "user" || len(last.Content) != 2 {
		t.Fatalf("last turn = %+v", last)
	}
	if last.Content[0].ToolUseID != "toolu_1" || last.Content[1].ToolUseID != "toolu_2" {
		t.Errorf("tool_result order = %q, %q", last.Content[0].ToolUseID, last.Content[1].ToolUseID)
	}
}

func TestAnthropicInvalidToolArgumentsWrapped(t *testing.T) {
	p := NewAnthropicProvider("anthropic", "", "k", nil)

	req := p.toAnthRequest(&CompletionRequest{
		Model: "claude-sonnet-4",
		Messages: []Message{
			{Role: RoleAssistant, ToolCalls: []ToolCall{
				{ID: "toolu_1", Name: "lookup_client", Arguments: json.RawMessage(`{"broken`)},
			}},
		},
	})
	if len(req.Messages) != 1 {
		t.Fatalf("messages = %d", len(req.Messages))
	}
	input := req.Messages[0].Content[0].Input
	if !json.Valid(input) {
		t.Errorf("input not repaired to valid JSON: %s", input)
	}
}
