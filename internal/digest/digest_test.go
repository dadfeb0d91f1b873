package digest

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/briefops/briefops/internal/config"
	"github.com/briefops/briefops/internal/orchestrator"
	"github.com/briefops/briefops/internal/slack"
)

type stubAgent struct {
	mu       sync.Mutex
	answer   string
	err      error
	requests []orchestrator.Request
}

func (a *stubAgent) Process(ctx context.Context, req orchestrator.Request) (string, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.requests = append(a.requests, req)
	return a.answer, a.err
}

type stubPoster struct {
	mu       sync.Mutex
	channels []string
	texts    []string
}

func (p *stubPoster) PostMessage(ctx context.Context, channelID, text, threadTS string) (*slack.MessageRef, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels = append(p.channels, channelID)
	p.texts = append(p.texts, text)
	return &slack.MessageRef{Channel: channelID, TS: "1.0"}, nil
}

func TestRunPostsAnswer(t *testing.T) {
	agent := &stubAgent{answer: "*Weekly status:* all clients on track."}
	poster := &stubPoster{}
	s := NewScheduler(agent, poster, nil)

	s.run(config.DigestConfig{
		Name:      "weekly-status",
		Schedule:  "0 9 * * MON",
		Prompt:    "Summarize what changed across all clients last week.",
		ChannelID: "C0LEADS",
	})

	if len(agent.requests) != 1 {
		t.Fatalf("agent calls = %d", len(agent.requests))
	}
	req := agent.requests[0]
	if req.Text != "Summarize what changed across all clients last week." {
		t.Errorf("prompt = %q", req.Text)
	}
	if req.Context["digest"] != "weekly-status" || req.Context["scheduled"] != true {
		t.Errorf("context = %v", req.Context)
	}
	if runID, _ := req.Context["run_id"].(string); runID == "" {
		t.Error("run_id missing from context")
	}

	if len(poster.texts) != 1 || poster.texts[0] != agent.answer {
		t.Errorf("posted = %v", poster.texts)
	}
	if poster.channels[0] != "C0LEADS" {
		t.Errorf("channel = %q", poster.channels[0])
	}
}

func TestRunSkipsPostOnAgentFailure(t *testing.T) {
	agent := &stubAgent{err: errors.New("model unavailable")}
	poster := &stubPoster{}
	s := NewScheduler(agent, poster, nil)

	s.run(config.DigestConfig{
		Name: "d", Schedule: "@daily", Prompt: "p", ChannelID: "C1",
	})
	if len(poster.texts) != 0 {
		t.Errorf("posted despite agent failure: %v", poster.texts)
	}
}

func TestAddValidatesConfig(t *testing.T) {
	s := NewScheduler(&stubAgent{}, &stubPoster{}, nil)

	if err := s.Add(config.DigestConfig{Name: "incomplete"}); err == nil {
		t.Error("expected error for missing fields")
	}
	err := s.Add(config.DigestConfig{
		Name: "bad", Schedule: "not a schedule", Prompt: "p", ChannelID: "C1",
	})
	if err == nil || !strings.Contains(err.Error(), "bad schedule") {
		t.Errorf("err = %v", err)
	}
	if err := s.Add(config.DigestConfig{
		Name: "good", Schedule: "0 9 * * MON", Prompt: "p", ChannelID: "C1",
	}); err != nil {
		t.Errorf("valid digest rejected: %v", err)
	}
}
