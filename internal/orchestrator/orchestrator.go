package orchestrator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/briefops/briefops/internal/provider"
)

// DefaultMaxTurns bounds the tool-call loop. High enough for long tool
// chains, low enough that a model stuck requesting tools terminates.
const DefaultMaxTurns = 100

// ModelClient is the one operation the loop needs from the language-model
// service: submit a transcript plus tool schemas, get back either a final
// text answer or requested tool invocations.
type ModelClient interface {
	Complete(ctx context.Context, req *provider.CompletionRequest) (*provider.CompletionResponse, error)
}

// Options tune one orchestrator instance. Zero values pick sane defaults.
type Options struct {
	Model       string
	MaxTurns    int
	MaxTokens   int
	Temperature *float64
	Now         func() time.Time // injectable clock for tests
}

// Request is one inbound user question plus the caller-assembled context.
// Context is injected verbatim as a system message; the orchestrator does
// not interpret it.
type Request struct {
	Text      string
	UserID    string
	ChannelID string
	Context   map[string]any
}

// Orchestrator drives the bounded multi-turn exchange between the model and
// the capability registry. One Process call owns its transcript exclusively;
// concurrent calls share only the read-only registry.
type Orchestrator struct {
	llm        ModelClient
	registry   *Registry
	dispatcher *Dispatcher
	opts       Options
	logger     *slog.Logger
	metrics    *Metrics
}

func New(llm ModelClient, registry *Registry, dispatcher *Dispatcher, opts Options, logger *slog.Logger, metrics *Metrics) *Orchestrator {
	if opts.MaxTurns <= 0 {
		opts.MaxTurns = DefaultMaxTurns
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{
		llm:        llm,
		registry:   registry,
		dispatcher: dispatcher,
		opts:       opts,
		logger:     logger,
		metrics:    metrics,
	}
}

// Process answers one user message, invoking tools as the model requests
// until it produces a final text answer or the turn bound is hit. Tool
// failures stay inside the loop as model-visible envelopes; only a failed
// model call itself escapes as an error.
func (o *Orchestrator) Process(ctx context.Context, req Request) (string, error) {
	o.logger.Info("processing user message",
		"user_id", req.UserID,
		"channel_id", req.ChannelID,
		"text_len", len(req.Text))

	messages := []provider.Message{
		{Role: provider.RoleSystem, Content: systemPrompt(o.opts.Now())},
	}
	if len(req.Context) > 0 {
		messages = append(messages, provider.Message{
			Role:    provider.RoleSystem,
			Content: contextMessage(req.Context),
		})
	}
	messages = append(messages, provider.Message{Role: provider.RoleUser, Content: req.Text})

	schemas := o.registry.Schemas()

	// Names of tools that succeeded in the most recent turn that had any
	// success; decides whether exhaustion is worth a grace call.
	var lastSuccessful []string

	for turn := 1; turn <= o.opts.MaxTurns; turn++ {
		resp, err := o.complete(ctx, messages, schemas)
		if err != nil {
			o.metrics.ObserveRun(turn, "transport_error")
			return "", fmt.Errorf("model completion: %w", err)
		}

		if len(resp.ToolCalls) == 0 {
			o.metrics.ObserveRun(turn, "done")
			if resp.Content == "" {
				return emptyAnswerFallback, nil
			}
			return resp.Content, nil
		}

		messages = append(messages, provider.Message{
			Role:      provider.RoleAssistant,
			Content:   resp.Content,
			ToolCalls: resp.ToolCalls,
		})

		var succeeded []string
		for _, call := range resp.ToolCalls {
			result := o.dispatcher.Execute(ctx, call.Name, call.Arguments)
			if !result.Failed() {
				succeeded = append(succeeded, call.Name)
			}
			messages = append(messages, provider.Message{
				Role:       provider.RoleTool,
				ToolCallID: call.ID,
				Content:    result.Payload(),
			})
		}
		if len(succeeded) > 0 {
			lastSuccessful = succeeded
		}
	}

	o.logger.Warn("turn bound reached", "max_turns", o.opts.MaxTurns, "user_id", req.UserID)

	if len(lastSuccessful) > 0 {
		if text := o.graceCall(ctx, messages, lastSuccessful); text != "" {
			o.metrics.ObserveRun(o.opts.MaxTurns+1, "grace")
			return text, nil
		}
	}
	o.metrics.ObserveRun(o.opts.MaxTurns, "exhausted")
	return exhaustedApology, nil
}

// graceCall makes one final, tool-free model call to salvage an answer from
// tool work already done. Any failure here degrades to the apology path;
// nothing propagates.
func (o *Orchestrator) graceCall(ctx context.Context, messages []provider.Message, succeeded []string) string {
	o.logger.Info("attempting final response after successful tool calls", "tools", succeeded)

	final := append(append([]provider.Message{}, messages...), provider.Message{
		Role:    provider.RoleSystem,
		Content: graceInstruction,
	})

	resp, err := o.complete(ctx, final, nil)
	if err != nil {
		o.logger.Error("grace call failed", "error", err)
		return ""
	}
	return resp.Content
}

func (o *Orchestrator) complete(ctx context.Context, messages []provider.Message, tools []provider.ToolSchema) (*provider.CompletionResponse, error) {
	o.logger.Debug("calling model", "messages", len(messages), "tools", len(tools), "model", o.opts.Model)

	start := time.Now()
	resp, err := o.llm.Complete(ctx, &provider.CompletionRequest{
		Model:       o.opts.Model,
		Messages:    messages,
		Tools:       tools,
		MaxTokens:   o.opts.MaxTokens,
		Temperature: o.opts.Temperature,
	})
	o.metrics.ObserveCompletion(time.Since(start))
	if err != nil {
		return nil, err
	}

	o.logger.Debug("model call completed",
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens,
		"tool_calls", len(resp.ToolCalls))
	return resp, nil
}
