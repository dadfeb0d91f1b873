package slack

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/briefops/briefops/internal/archive"
	"github.com/briefops/briefops/internal/orchestrator"
)

const (
	greetingText       = "Hi! How can I help you with your client projects today?"
	processingText     = ":loading: *Processing your request...* Please wait while I analyze the data."
	followUpText       = ":loading: *Processing your follow-up...* Analyzing with context."
	handlerErrorText   = "I apologize, but I encountered an error processing your request. Please try again."
	processTimeout     = 5 * time.Minute
	dedupTTL           = time.Hour
	threadContextLimit = 30
)

var mentionPattern = regexp.MustCompile(`<@U[A-Z0-9]+>`)

// Agent runs one conversation turn. The orchestrator implements it.
type Agent interface {
	Process(ctx context.Context, req orchestrator.Request) (string, error)
}

// Handler reacts to Slack events: mentions start an agent run in a
// thread, thread replies continue it, and every human message is
// recorded in the archive. Redis deduplicates Slack's at-least-once
// event delivery.
type Handler struct {
	api       *Client
	agent     Agent
	archive   *archive.Store
	rdb       *redis.Client
	botUserID string
	logger    *slog.Logger
}

func NewHandler(api *Client, agent Agent, arc *archive.Store, rdb *redis.Client, botUserID string, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		api:       api,
		agent:     agent,
		archive:   arc,
		rdb:       rdb,
		botUserID: botUserID,
		logger:    logger,
	}
}

// HandleEvent dispatches one acknowledged event.
func (h *Handler) HandleEvent(ctx context.Context, ev Event) {
	if h.isDuplicate(ctx, ev) {
		h.logger.Debug("duplicate event dropped", "channel", ev.Channel, "event_ts", ev.EventTS)
		return
	}
	h.record(ev)

	switch ev.Type {
	case "app_mention":
		h.handleMention(ctx, ev)
	case "message":
		h.handleMessage(ctx, ev)
	}
}

func (h *Handler) handleMention(ctx context.Context, ev Event) {
	threadTS := ev.ThreadTS
	if threadTS == "" {
		threadTS = ev.TS
	}
	text := cleanMessageText(ev.Text)
	if text == "" {
		if _, err := h.api.PostMessage(ctx, ev.Channel, greetingText, threadTS); err != nil {
			h.logger.Error("failed to post greeting", "channel", ev.Channel, "error", err)
		}
		return
	}
	h.logger.Info("app mention received", "user", ev.User, "channel", ev.Channel)
	h.respond(ctx, ev, text, threadTS, processingText)
}

// handleMessage continues a thread the bot is already part of. Bot
// messages, file shares and top-level messages are ignored.
func (h *Handler) handleMessage(ctx context.Context, ev Event) {
	if ev.BotID != "" || ev.Subtype == "bot_message" || ev.Subtype == "file_share" || ev.ThreadTS == "" {
		return
	}
	// A mention in the reply is handled by the app_mention event.
	if mentionPattern.MatchString(ev.Text) {
		return
	}
	involved, err := h.botInThread(ctx, ev.Channel, ev.ThreadTS)
	if err != nil {
		h.logger.Warn("could not inspect thread", "channel", ev.Channel, "thread_ts", ev.ThreadTS, "error", err)
		return
	}
	if !involved {
		return
	}
	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	h.logger.Info("thread follow-up received", "user", ev.User, "channel", ev.Channel)
	h.respond(ctx, ev, text, ev.ThreadTS, followUpText)
}

// respond posts a placeholder, runs the agent, then swaps the
// placeholder for the answer. If the update fails the answer is posted
// as a new message instead.
func (h *Handler) respond(ctx context.Context, ev Event, text, threadTS, placeholder string) {
	loading, err := h.api.PostMessage(ctx, ev.Channel, placeholder, threadTS)
	if err != nil {
		h.logger.Error("failed to post placeholder", "channel", ev.Channel, "error", err)
		return
	}

	runCtx, cancel := context.WithTimeout(ctx, processTimeout)
	defer cancel()

	answer, err := h.agent.Process(runCtx, orchestrator.Request{
		Text:      text,
		UserID:    ev.User,
		ChannelID: ev.Channel,
		Context:   h.buildContext(runCtx, ev.Channel, threadTS),
	})
	if err != nil {
		h.logger.Error("agent run failed", "channel", ev.Channel, "error", err)
		answer = handlerErrorText
	}

	if err := h.api.UpdateMessage(ctx, ev.Channel, loading.TS, answer); err != nil {
		h.logger.Warn("failed to update placeholder, posting new message", "error", err)
		if _, err := h.api.PostMessage(ctx, ev.Channel, answer, threadTS); err != nil {
			h.logger.Error("failed to post answer", "channel", ev.Channel, "error", err)
		}
		return
	}
	h.recordBotReply(ev.Channel, threadTS, answer)
}

// buildContext assembles the context mapping passed to the agent:
// channel metadata plus, in threads, the recent conversation.
func (h *Handler) buildContext(ctx context.Context, channelID, threadTS string) map[string]any {
	out := map[string]any{"channel_id": channelID}

	if info, err := h.api.ConversationInfo(ctx, channelID); err == nil {
		out["channel_name"] = info.Name
		out["is_private"] = info.IsPrivate
	} else {
		h.logger.Debug("could not fetch channel info", "channel", channelID, "error", err)
	}

	if threadTS == "" {
		return out
	}
	msgs, err := h.api.ConversationReplies(ctx, channelID, threadTS, threadContextLimit)
	if err != nil {
		h.logger.Debug("could not fetch thread history", "channel", channelID, "error", err)
		return out
	}
	history := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.Text == "" {
			continue
		}
		if m.BotID != "" || m.User == h.botUserID {
			history = append(history, "Bot: "+truncate(m.Text, 300))
		} else {
			history = append(history, "User: "+m.Text)
		}
	}
	if len(history) > 8 {
		history = history[len(history)-8:]
	}
	if len(history) > 0 {
		out["thread_context"] = true
		out["thread_ts"] = threadTS
		out["conversation_history"] = strings.Join(history, "\n")
	}
	return out
}

// botInThread reports whether the bot was mentioned or has replied in
// the thread.
func (h *Handler) botInThread(ctx context.Context, channelID, threadTS string) (bool, error) {
	msgs, err := h.api.ConversationReplies(ctx, channelID, threadTS, 50)
	if err != nil {
		return false, err
	}
	mention := "<@" + h.botUserID + ">"
	for _, m := range msgs {
		if m.BotID != "" || m.User == h.botUserID || strings.Contains(m.Text, mention) {
			return true, nil
		}
	}
	return false, nil
}

// isDuplicate claims the event in Redis. A Redis outage fails open so
// events are still processed, at the risk of an occasional repeat.
func (h *Handler) isDuplicate(ctx context.Context, ev Event) bool {
	if h.rdb == nil || ev.EventTS == "" {
		return false
	}
	key := "slack:event:" + ev.Channel + ":" + ev.EventTS
	claimed, err := h.rdb.SetNX(ctx, key, 1, dedupTTL).Result()
	if err != nil {
		h.logger.Debug("event dedup unavailable", "error", err)
		return false
	}
	return !claimed
}

func (h *Handler) record(ev Event) {
	if h.archive == nil || ev.Channel == "" || ev.TS == "" || ev.Text == "" {
		return
	}
	msg := archive.Message{
		ChannelID: ev.Channel,
		ThreadTS:  ev.ThreadTS,
		UserID:    ev.User,
		IsBot:     ev.BotID != "",
		Text:      ev.Text,
		TS:        ev.TS,
		PostedAt:  tsToTime(ev.TS),
	}
	if err := h.archive.Record(msg); err != nil {
		h.logger.Warn("failed to archive message", "channel", ev.Channel, "error", err)
	}
}

func (h *Handler) recordBotReply(channelID, threadTS, text string) {
	if h.archive == nil {
		return
	}
	now := time.Now().UTC()
	ts := fmt.Sprintf("%d.%06d", now.Unix(), now.Nanosecond()/1000)
	msg := archive.Message{
		ChannelID: channelID,
		ThreadTS:  threadTS,
		UserID:    h.botUserID,
		IsBot:     true,
		Text:      text,
		TS:        ts,
		PostedAt:  now,
	}
	if err := h.archive.Record(msg); err != nil {
		h.logger.Warn("failed to archive bot reply", "channel", channelID, "error", err)
	}
}

// truncate caps s at maxLen bytes.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen]
}

// cleanMessageText strips user mentions and collapses whitespace.
func cleanMessageText(text string) string {
	text = mentionPattern.ReplaceAllString(text, "")
	return strings.Join(strings.Fields(text), " ")
}

// tsToTime converts a Slack message timestamp ("1726312345.000200")
// to a time.
func tsToTime(ts string) time.Time {
	secs, _, _ := strings.Cut(ts, ".")
	n, err := strconv.ParseInt(secs, 10, 64)
	if err != nil {
		return time.Now().UTC()
	}
	return time.Unix(n, 0).UTC()
}
