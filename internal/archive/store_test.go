package archive

import (
	"errors"
	"testing"
	"time"
)

func testStore(t *testing.T) *Store {
	t.Helper()
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return NewStore(db)
}

func msgAt(channel, ts, user, text string, bot bool, at time.Time) Message {
	return Message{
		ChannelID: channel,
		UserID:    user,
		IsBot:     bot,
		Text:      text,
		TS:        ts,
		PostedAt:  at,
	}
}

func TestRecordAndRecentByChannel(t *testing.T) {
	s := testStore(t)
	base := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)

	for i, text := range []string{"first", "second", "third"} {
		m := msgAt("C1", ts(i), "U1", text, false, base.Add(time.Duration(i)*time.Minute))
		if err := s.Record(m); err != nil {
			t.Fatal(err)
		}
	}
	_ = s.Record(msgAt("C2", "100.0", "U2", "other channel", false, base))

	got, err := s.RecentByChannel("C1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("messages = %d, want 3", len(got))
	}
	if got[0].Text != "third" || got[2].Text != "first" {
		t.Errorf("order = %q, %q, %q (want newest first)", got[0].Text, got[1].Text, got[2].Text)
	}
}

func TestRecordRedeliveryIgnored(t *testing.T) {
	s := testStore(t)
	m := msgAt("C1", "1.0", "U1", "hello", false, time.Now().UTC())

	if err := s.Record(m); err != nil {
		t.Fatal(err)
	}
	m.Text = "changed on redelivery"
	if err := s.Record(m); err != nil {
		t.Fatal(err)
	}

	got, err := s.RecentByChannel("C1", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].Text != "hello" {
		t.Errorf("got = %+v, want single original message", got)
	}
}

func TestSearchCaseInsensitive(t *testing.T) {
	s := testStore(t)
	base := time.Now().UTC()
	_ = s.Record(msgAt("C1", "1.0", "U1", "The Acme launch slipped", false, base))
	_ = s.Record(msgAt("C1", "2.0", "U1", "unrelated", false, base.Add(time.Minute)))

	got, err := s.Search("C1", "acme", 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 1 || got[0].TS != "1.0" {
		t.Errorf("search = %+v", got)
	}
}

func TestLatestHumanMessageSkipsBots(t *testing.T) {
	s := testStore(t)
	base := time.Now().UTC()
	_ = s.Record(msgAt("C1", "1.0", "U1", "human question", false, base))
	_ = s.Record(msgAt("C1", "2.0", "BOT", "bot reply", true, base.Add(time.Minute)))

	got, err := s.LatestHumanMessage("C1")
	if err != nil {
		t.Fatal(err)
	}
	if got.Text != "human question" {
		t.Errorf("latest = %q", got.Text)
	}

	if _, err := s.LatestHumanMessage("EMPTY"); !errors.Is(err, ErrNoMessages) {
		t.Errorf("err = %v, want ErrNoMessages", err)
	}
}

func TestThreadMessagesIncludeOpener(t *testing.T) {
	s := testStore(t)
	base := time.Now().UTC()

	opener := msgAt("C1", "100.0", "U1", "thread opener", false, base)
	if err := s.Record(opener); err != nil {
		t.Fatal(err)
	}
	reply1 := msgAt("C1", "100.1", "U2", "first reply", false, base.Add(time.Minute))
	reply1.ThreadTS = "100.0"
	_ = s.Record(reply1)
	reply2 := msgAt("C1", "100.2", "BOT", "bot reply", true, base.Add(2*time.Minute))
	reply2.ThreadTS = "100.0"
	_ = s.Record(reply2)
	_ = s.Record(msgAt("C1", "200.0", "U3", "unrelated top-level", false, base.Add(3*time.Minute)))

	got, err := s.ThreadMessages("C1", "100.0", 50)
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 3 {
		t.Fatalf("thread = %d messages, want 3", len(got))
	}
	if got[0].Text != "thread opener" || got[2].Text != "bot reply" {
		t.Errorf("thread order = %q .. %q", got[0].Text, got[2].Text)
	}
}

func TestRecordRequiresChannelAndTS(t *testing.T) {
	s := testStore(t)
	if err := s.Record(Message{Text: "floating"}); err == nil {
		t.Error("expected error for message without channel/ts")
	}
}

func ts(i int) string {
	return time.Date(2026, 8, 20, 10, i, 0, 0, time.UTC).Format("20060102150405") + ".000"
}
