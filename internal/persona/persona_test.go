package persona

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestDefaultPersona(t *testing.T) {
	p, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if p.Voice != "maya" {
		t.Errorf("expected voice maya, got %q", p.Voice)
	}
	if !p.WebAgent {
		t.Error("expected web_agent to be true")
	}
	if len(p.Tools) != 1 || p.Tools[0].Name != "GetCryptoPrice" {
		t.Fatalf("expected GetCryptoPrice tool, got %+v", p.Tools)
	}
	if !strings.Contains(p.Greeting, "crypto trading assistant") {
		t.Errorf("unexpected greeting %q", p.Greeting)
	}
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("SERPAPI_API_KEY", "secret-key")

	p, err := Default()
	if err != nil {
		t.Fatalf("Default failed: %v", err)
	}
	if got := p.Tools[0].Query["api_key"]; got != "secret-key" {
		t.Errorf("expected expanded api_key, got %q", got)
	}
}

func TestParseKeepsBareDollarText(t *testing.T) {
	t.Setenv("BTC", "should-not-appear")
	t.Setenv("TOKEN", "tok")

	doc := "voice: maya\ngreeting: hi\nprompt: |\n  Quote prices like $50,000 for $BTC.\n" +
		"tools:\n  - name: Price\n    url: https://example.com\n    method: GET\n" +
		"    headers:\n      Authorization: Bearer ${TOKEN}\n" +
		"    response:\n      price: $.answer_box.snippet\n"
	p, err := Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if p.Prompt != "Quote prices like $50,000 for $BTC.\n" {
		t.Errorf("prompt was rewritten: %q", p.Prompt)
	}
	if got := p.Tools[0].Headers["Authorization"]; got != "Bearer tok" {
		t.Errorf("expected braced reference to expand, got %q", got)
	}
	if got := p.Tools[0].Response["price"]; got != "$.answer_box.snippet" {
		t.Errorf("response path was rewritten: %q", got)
	}
}

func TestParseRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"missing prompt", "voice: maya\ngreeting: hi\n"},
		{"missing voice", "prompt: p\ngreeting: hi\n"},
		{"missing greeting", "prompt: p\nvoice: maya\n"},
		{"duplicate tool", "prompt: p\nvoice: maya\ngreeting: hi\ntools:\n  - {name: a, url: u}\n  - {name: a, url: u}\n"},
		{"tool without url", "prompt: p\nvoice: maya\ngreeting: hi\ntools:\n  - {name: a}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "persona.yaml")
	doc := "prompt: be brief\nvoice: june\nmodel: enhanced\nweb_agent: true\ngreeting: Hi there\n"
	if err := os.WriteFile(path, []byte(doc), 0o600); err != nil {
		t.Fatal(err)
	}

	p, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	req := p.AgentRequest()
	if req.Voice != "june" || req.Model != "enhanced" || !req.WebAgent {
		t.Errorf("unexpected agent request %+v", req)
	}
	if len(req.Tools) != 0 {
		t.Errorf("expected no tools, got %d", len(req.Tools))
	}
}
