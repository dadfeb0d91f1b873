package provider

import "testing"

func TestRegistryRegisterAndGet(t *testing.T) {
	r := NewRegistry()
	p := NewOpenAIProvider("openai", "", "key", nil)

	if err := r.Register(p); err != nil {
		t.Fatal(err)
	}
	got, err := r.Get("openai")
	if err != nil {
		t.Fatal(err)
	}
	if got.ID() != "openai" {
		t.Errorf("ID = %q", got.ID())
	}
}

func TestRegistryDuplicate(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewOpenAIProvider("openai", "", "key", nil))
	if err := r.Register(NewOpenAIProvider("openai", "", "key2", nil)); err == nil {
		t.Fatal("expected duplicate registration error")
	}
}

func TestRegistryGetForModel(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(NewAnthropicProvider("anthropic", "", "key", nil))

	p, err := r.GetForModel(ModelRef("anthropic/claude-sonnet-4"))
	if err != nil {
		t.Fatal(err)
	}
	if p.ID() != "anthropic" {
		t.Errorf("ID = %q", p.ID())
	}

	if _, err := r.GetForModel(ModelRef("missing/model")); err == nil {
		t.Fatal("expected error for unknown provider")
	}
}

func TestModelRef(t *testing.T) {
	ref := NewModelRef("openai", "gpt-4o")
	if ref.Provider() != "openai" || ref.Model() != "gpt-4o" {
		t.Errorf("ref = %q", ref)
	}
	if _, err := ParseModelRef("no-slash"); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestFromConfig(t *testing.T) {
	tests := []struct {
		api     string
		wantErr bool
	}{
		{APIOpenAI, false},
		{APIAnthropic, false},
		{"", false},
		{"grpc-exotic", true},
	}
	for _, tt := range tests {
		_, err := FromConfig(ProviderConfig{ID: "p", API: tt.api})
		if (err != nil) != tt.wantErr {
			t.Errorf("FromConfig(api=%q) err = %v, wantErr %v", tt.api, err, tt.wantErr)
		}
	}
}
