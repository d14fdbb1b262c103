// Package persona loads the scripted agent persona that is registered with
// the voice platform when a conversation starts.
package persona

import (
	_ "embed"
	"fmt"
	"os"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed persona.yaml
var defaultPersona []byte

// Persona is the fixed agent template: prompt, voice, model tier, the tools
// declared to the platform's tool runtime, and the canned opener that is
// logged when an agent is created.
type Persona struct {
	Name     string `yaml:"name"`
	Prompt   string `yaml:"prompt"`
	Voice    string `yaml:"voice"`
	Model    string `yaml:"model"`
	WebAgent bool   `yaml:"web_agent"`
	Greeting string `yaml:"greeting"`
	Tools    []Tool `yaml:"tools"`
}

// Tool is a webhook tool declaration. The relay never executes tools; it
// only forwards the declaration at agent creation.
type Tool struct {
	Name        string            `yaml:"name" json:"name"`
	Description string            `yaml:"description" json:"description"`
	Speech      string            `yaml:"speech,omitempty" json:"speech,omitempty"`
	URL         string            `yaml:"url" json:"url"`
	Method      string            `yaml:"method" json:"method"`
	Headers     map[string]string `yaml:"headers,omitempty" json:"headers"`
	Query       map[string]string `yaml:"query,omitempty" json:"query,omitempty"`
	Body        map[string]any    `yaml:"body,omitempty" json:"body,omitempty"`
	InputSchema map[string]any    `yaml:"input_schema" json:"input_schema"`
	Response    map[string]string `yaml:"response,omitempty" json:"response,omitempty"`
	Timeout     int               `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	Public      bool              `yaml:"public" json:"public"`
}

// AgentRequest is the body sent to the platform's agent-creation endpoint.
type AgentRequest struct {
	Prompt   string `json:"prompt"`
	Voice    string `json:"voice"`
	Tools    []Tool `json:"tools,omitempty"`
	Model    string `json:"model,omitempty"`
	WebAgent bool   `json:"web_agent"`
}

// envRef matches the braced ${NAME} form only. Bare $ text such as prices
// or JSONPath expressions is left alone.
var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

func expandEnv(s string) string {
	return envRef.ReplaceAllStringFunc(s, func(ref string) string {
		return os.Getenv(ref[2 : len(ref)-1])
	})
}

// Default returns the embedded crypto trading persona.
func Default() (*Persona, error) {
	return Parse(defaultPersona)
}

// Load reads a persona from a YAML file. An empty path selects the embedded
// default.
func Load(path string) (*Persona, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read persona %s: %w", path, err)
	}
	p, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("persona %s: %w", path, err)
	}
	return p, nil
}

// Parse decodes and validates a persona document. ${VAR} references are
// expanded from the environment so tool secrets stay out of the file.
func Parse(data []byte) (*Persona, error) {
	expanded := expandEnv(string(data))

	var p Persona
	if err := yaml.Unmarshal([]byte(expanded), &p); err != nil {
		return nil, fmt.Errorf("decode persona: %w", err)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

// Validate checks the fields the platform and the conversation log rely on.
func (p *Persona) Validate() error {
	if strings.TrimSpace(p.Prompt) == "" {
		return fmt.Errorf("persona prompt cannot be empty")
	}
	if p.Voice == "" {
		return fmt.Errorf("persona voice cannot be empty")
	}
	if strings.TrimSpace(p.Greeting) == "" {
		return fmt.Errorf("persona greeting cannot be empty")
	}
	seen := make(map[string]bool, len(p.Tools))
	for i, t := range p.Tools {
		if t.Name == "" {
			return fmt.Errorf("tool %d has no name", i)
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate tool %q", t.Name)
		}
		seen[t.Name] = true
		if t.URL == "" {
			return fmt.Errorf("tool %q has no url", t.Name)
		}
	}
	return nil
}

// AgentRequest builds the agent-creation body for this persona.
func (p *Persona) AgentRequest() AgentRequest {
	return AgentRequest{
		Prompt:   p.Prompt,
		Voice:    p.Voice,
		Tools:    p.Tools,
		Model:    p.Model,
		WebAgent: p.WebAgent,
	}
}
