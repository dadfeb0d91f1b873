package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func testDispatcher(t *testing.T, caps ...*Capability) *Dispatcher {
	t.Helper()
	r := NewRegistry()
	for _, c := range caps {
		if err := r.Register(c); err != nil {
			t.Fatal(err)
		}
	}
	return NewDispatcher(r, slog.Default(), nil)
}

func TestDispatcherSuccessReturnsValueUnchanged(t *testing.T) {
	d := testDispatcher(t, &Capability{
		Name: "lookup",
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			return map[string]any{"name": "Acme", "id": args["id"]}, nil
		},
	})

	res := d.Execute(context.Background(), "lookup", json.RawMessage(`{"id":"42"}`))
	if res.Failed() {
		t.Fatalf("unexpected failure: %s", res.Err)
	}
	got := res.Value.(map[string]any)
	if got["name"] != "Acme" || got["id"] != "42" {
		t.Errorf("value = %v", got)
	}
}

func TestDispatcherNormalizesHandlerError(t *testing.T) {
	d := testDispatcher(t, &Capability{
		Name: "explode",
		Handler: func(context.Context, map[string]any) (any, error) {
			return nil, errors.New("boom")
		},
	})

	res := d.Execute(context.Background(), "explode", json.RawMessage(`{}`))
	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Err, "boom") {
		t.Errorf("Err = %q, want substring boom", res.Err)
	}
	if !strings.Contains(res.Payload(), "boom") {
		t.Errorf("Payload = %q", res.Payload())
	}
}

func TestDispatcherRecoversHandlerPanic(t *testing.T) {
	d := testDispatcher(t, &Capability{
		Name: "panicky",
		Handler: func(context.Context, map[string]any) (any, error) {
			panic("unexpected nil")
		},
	})

	res := d.Execute(context.Background(), "panicky", nil)
	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Err, "unexpected nil") {
		t.Errorf("Err = %q", res.Err)
	}
}

func TestDispatcherUnknownCapability(t *testing.T) {
	d := testDispatcher(t)
	res := d.Execute(context.Background(), "doesNotExist", json.RawMessage(`{}`))
	if !res.Failed() {
		t.Fatal("expected failure envelope")
	}
	if !strings.Contains(res.Err, "doesNotExist") {
		t.Errorf("Err = %q", res.Err)
	}
}

func TestDispatcherInvalidArguments(t *testing.T) {
	called := false
	d := testDispatcher(t, &Capability{
		Name: "lookup",
		Handler: func(context.Context, map[string]any) (any, error) {
			called = true
			return nil, nil
		},
	})

	res := d.Execute(context.Background(), "lookup", json.RawMessage(`{"broken`))
	if !res.Failed() {
		t.Fatal("expected failure envelope for undecodable payload")
	}
	if !strings.Contains(res.Err, "invalid tool arguments") {
		t.Errorf("Err = %q", res.Err)
	}
	if called {
		t.Error("handler must not run on invalid arguments")
	}
}

func TestDispatcherEmptyPayloadMeansZeroArgs(t *testing.T) {
	d := testDispatcher(t, &Capability{
		Name: "all_names",
		Handler: func(_ context.Context, args map[string]any) (any, error) {
			if len(args) != 0 {
				t.Errorf("args = %v, want empty", args)
			}
			return []string{"Acme"}, nil
		},
	})

	for _, raw := range []json.RawMessage{nil, json.RawMessage(``), json.RawMessage(`{}`), json.RawMessage(`null`)} {
		if res := d.Execute(context.Background(), "all_names", raw); res.Failed() {
			t.Errorf("payload %q: unexpected failure %s", raw, res.Err)
		}
	}
}

func TestResultPayloadShapes(t *testing.T) {
	tests := []struct {
		name string
		res  Result
		want string
	}{
		{"string value passes through", Result{Value: "plain text"}, "plain text"},
		{"struct value marshals", Result{Value: map[string]any{"k": "v"}}, `{"k":"v"}`},
		{"nil value", Result{}, "null"},
		{"failure envelope", Result{Err: "boom"}, `{"error":"boom"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.res.Payload(); got != tt.want {
				t.Errorf("Payload() = %q, want %q", got, tt.want)
			}
		})
	}
}
