package archive

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrNoMessages is returned when a lookup matches nothing.
var ErrNoMessages = errors.New("archive: no messages")

// Message is one archived channel message. TS is the chat platform's
// message timestamp, unique within a channel; ThreadTS is empty for
// top-level messages.
type Message struct {
	ChannelID string    `json:"channel_id"`
	ThreadTS  string    `json:"thread_ts,omitempty"`
	UserID    string    `json:"user_id"`
	UserName  string    `json:"user_name,omitempty"`
	IsBot     bool      `json:"is_bot"`
	Text      string    `json:"text"`
	TS        string    `json:"ts"`
	PostedAt  time.Time `json:"posted_at"`
}

// Store is the SQLite-backed message archive. The gateway records every
// inbound message; the message-history capabilities query it.
type Store struct {
	db *DB
}

func NewStore(db *DB) *Store {
	return &Store{db: db}
}

// Record inserts a message. Re-delivered messages (same channel and ts)
// are silently ignored.
func (s *Store) Record(msg Message) error {
	if msg.ChannelID == "" || msg.TS == "" {
		return fmt.Errorf("archive: channel_id and ts are required")
	}
	if msg.PostedAt.IsZero() {
		msg.PostedAt = time.Now().UTC()
	}
	_, err := s.db.SQLDB().Exec(
		`INSERT OR IGNORE INTO messages (channel_id, thread_ts, user_id, user_name, is_bot, text, ts, posted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		msg.ChannelID, msg.ThreadTS, msg.UserID, msg.UserName, boolToInt(msg.IsBot),
		msg.Text, msg.TS, msg.PostedAt.UTC().Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("archive: record message: %w", err)
	}
	return nil
}

// RecentByChannel returns the newest messages in a channel, newest first.
func (s *Store) RecentByChannel(channelID string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.SQLDB().Query(
		`SELECT channel_id, thread_ts, user_id, user_name, is_bot, text, ts, posted_at
		 FROM messages WHERE channel_id = ?
		 ORDER BY posted_at DESC LIMIT ?`,
		channelID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: recent by channel: %w", err)
	}
	return scanMessages(rows)
}

// Search returns messages in a channel whose text contains the query,
// case-insensitively, newest first.
func (s *Store) Search(channelID, query string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 20
	}
	pattern := "%" + strings.ToLower(query) + "%"
	rows, err := s.db.SQLDB().Query(
		`SELECT channel_id, thread_ts, user_id, user_name, is_bot, text, ts, posted_at
		 FROM messages WHERE channel_id = ? AND LOWER(text) LIKE ?
		 ORDER BY posted_at DESC LIMIT ?`,
		channelID, pattern, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: search: %w", err)
	}
	return scanMessages(rows)
}

// LatestHumanMessage returns the newest non-bot message in a channel.
func (s *Store) LatestHumanMessage(channelID string) (*Message, error) {
	row := s.db.SQLDB().QueryRow(
		`SELECT channel_id, thread_ts, user_id, user_name, is_bot, text, ts, posted_at
		 FROM messages WHERE channel_id = ? AND is_bot = 0
		 ORDER BY posted_at DESC LIMIT 1`,
		channelID,
	)
	msg, err := scanMessage(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoMessages
	}
	if err != nil {
		return nil, fmt.Errorf("archive: latest human message: %w", err)
	}
	return msg, nil
}

// ThreadMessages returns the messages of one thread in posting order,
// including the thread opener.
func (s *Store) ThreadMessages(channelID, threadTS string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.SQLDB().Query(
		`SELECT channel_id, thread_ts, user_id, user_name, is_bot, text, ts, posted_at
		 FROM messages
		 WHERE channel_id = ? AND (thread_ts = ? OR ts = ?)
		 ORDER BY posted_at ASC LIMIT ?`,
		channelID, threadTS, threadTS, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("archive: thread messages: %w", err)
	}
	return scanMessages(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (*Message, error) {
	var m Message
	var isBot int
	var postedAt string
	if err := row.Scan(&m.ChannelID, &m.ThreadTS, &m.UserID, &m.UserName, &isBot, &m.Text, &m.TS, &postedAt); err != nil {
		return nil, err
	}
	m.IsBot = isBot != 0
	m.PostedAt, _ = time.Parse(time.RFC3339, postedAt)
	return &m, nil
}

func scanMessages(rows *sql.Rows) ([]Message, error) {
	defer func() { _ = rows.Close() }()
	var out []Message
	for rows.Next() {
		m, err := scanMessage(rows)
		if err != nil {
			return nil, fmt.Errorf("archive: scan: %w", err)
		}
		out = append(out, *m)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
