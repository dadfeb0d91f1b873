// Package digest runs scheduled briefings: on a cron schedule it asks
// the agent a canned question and posts the answer to a channel.
package digest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/briefops/briefops/internal/config"
	"github.com/briefops/briefops/internal/orchestrator"
	"github.com/briefops/briefops/internal/slack"
)

const runTimeout = 10 * time.Minute

// Agent runs one conversation turn. The orchestrator implements it.
type Agent interface {
	Process(ctx context.Context, req orchestrator.Request) (string, error)
}

// Poster posts a channel message. The Slack client implements it.
type Poster interface {
	PostMessage(ctx context.Context, channelID, text, threadTS string) (*slack.MessageRef, error)
}

// Scheduler owns the cron table of configured digests.
type Scheduler struct {
	cron   *cron.Cron
	agent  Agent
	poster Poster
	logger *slog.Logger
}

func NewScheduler(agent Agent, poster Poster, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cron:   cron.New(),
		agent:  agent,
		poster: poster,
		logger: logger,
	}
}

// Add registers one digest. The schedule uses standard five-field cron
// syntax.
func (s *Scheduler) Add(cfg config.DigestConfig) error {
	if cfg.Name == "" || cfg.Schedule == "" || cfg.Prompt == "" || cfg.ChannelID == "" {
		return fmt.Errorf("digest: name, schedule, prompt and channel_id are required")
	}
	_, err := s.cron.AddFunc(cfg.Schedule, func() {
		s.run(cfg)
	})
	if err != nil {
		return fmt.Errorf("digest %s: bad schedule %q: %w", cfg.Name, cfg.Schedule, err)
	}
	s.logger.Info("digest scheduled", "name", cfg.Name, "schedule", cfg.Schedule, "channel", cfg.ChannelID)
	return nil
}

// Start begins firing schedules. Stop waits for in-flight runs.
func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

func (s *Scheduler) run(cfg config.DigestConfig) {
	runID := uuid.NewString()
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()

	s.logger.Info("digest run starting", "name", cfg.Name, "run_id", runID)

	answer, err := s.agent.Process(ctx, orchestrator.Request{
		Text:      cfg.Prompt,
		UserID:    "digest:" + cfg.Name,
		ChannelID: cfg.ChannelID,
		Context: map[string]any{
			"digest":     cfg.Name,
			"run_id":     runID,
			"channel_id": cfg.ChannelID,
			"scheduled":  true,
		},
	})
	if err != nil {
		s.logger.Error("digest run failed", "name", cfg.Name, "run_id", runID, "error", err)
		return
	}
	if _, err := s.poster.PostMessage(ctx, cfg.ChannelID, answer, ""); err != nil {
		s.logger.Error("digest post failed", "name", cfg.Name, "run_id", runID, "error", err)
		return
	}
	s.logger.Info("digest run complete", "name", cfg.Name, "run_id", runID)
}
