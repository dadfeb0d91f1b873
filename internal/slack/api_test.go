package slack

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestPostMessage(t *testing.T) {
	var gotAuth string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat.postMessage" {
			t.Errorf("path = %q", r.URL.Path)
		}
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		_, _ = w.Write([]byte(`{"ok":true,"channel":"C1","ts":"100.000001"}`))
	}))
	defer srv.Close()

	c := NewClient("xoxb-test", WithBaseURL(srv.URL))
	ref, err := c.PostMessage(context.Background(), "C1", "hello", "99.0")
	if err != nil {
		t.Fatal(err)
	}
	if ref.TS != "100.000001" {
		t.Errorf("ts = %q", ref.TS)
	}
	if gotAuth != "Bearer xoxb-test" {
		t.Errorf("auth = %q", gotAuth)
	}
	if gotBody["thread_ts"] != "99.0" || gotBody["text"] != "hello" {
		t.Errorf("body = %v", gotBody)
	}
}

func TestAPIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":false,"error":"channel_not_found"}`))
	}))
	defer srv.Close()

	c := NewClient("xoxb-test", WithBaseURL(srv.URL))
	err := c.UpdateMessage(context.Background(), "C404", "1.0", "text")
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Reason != "channel_not_found" {
		t.Errorf("err = %v", err)
	}
}

func TestConversationReplies(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/conversations.replies" {
			t.Errorf("path = %q", r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("channel") != "C1" || q.Get("ts") != "100.0" || q.Get("limit") != "30" {
			t.Errorf("query = %v", q)
		}
		_, _ = w.Write([]byte(`{"ok":true,"messages":[
			{"user":"U1","text":"opener","ts":"100.0"},
			{"bot_id":"B1","text":"bot reply","ts":"100.1","thread_ts":"100.0"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient("xoxb-test", WithBaseURL(srv.URL))
	msgs, err := c.ConversationReplies(context.Background(), "C1", "100.0", 30)
	if err != nil {
		t.Fatal(err)
	}
	if len(msgs) != 2 || msgs[1].BotID != "B1" {
		t.Errorf("messages = %+v", msgs)
	}
}

func TestOpenSocketURLUsesAppToken(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/apps.connections.open" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer xapp-test" {
			t.Errorf("auth = %q", r.Header.Get("Authorization"))
		}
		_, _ = w.Write([]byte(`{"ok":true,"url":"wss://example.invalid/link"}`))
	}))
	defer srv.Close()

	c := NewClient("xoxb-test", WithBaseURL(srv.URL))
	u, err := c.OpenSocketURL(context.Background(), "xapp-test")
	if err != nil {
		t.Fatal(err)
	}
	if u != "wss://example.invalid/link" {
		t.Errorf("url = %q", u)
	}
}

func TestAuthTest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"ok":true,"user_id":"UBOT","user":"briefops","team_id":"T1"}`))
	}))
	defer srv.Close()

	c := NewClient("xoxb-test", WithBaseURL(srv.URL))
	id, err := c.AuthTest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if id.UserID != "UBOT" || id.User != "briefops" {
		t.Errorf("identity = %+v", id)
	}
}
