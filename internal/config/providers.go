package config

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Provider is a completion service preset.
type Provider struct {
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"`
}

// ProvidersFile is the layout of ASSISTANT_PROVIDERS_FILE:
//
//	providers:
//	  local:
//	    base_url: http://localhost:11434/v1
//	    model: qwen2.5
type ProvidersFile struct {
	Providers map[string]Provider `yaml:"providers"`
}

// DefaultProviders are the built-in presets.
func DefaultProviders() map[string]Provider {
	return map[string]Provider{
		"openai": {BaseURL: "https://api.openai.com/v1", Model: "gpt-4o-mini"},
		"custom": {BaseURL: "https://llmfoundry.straive.com/v1", Model: "gpt-4o-mini"},
	}
}

// LoadProviders returns the built-in presets merged with those in path.
// Entries in the file replace built-ins of the same name. An empty path
// returns the built-ins.
func LoadProviders(path string) (map[string]Provider, error) {
	providers := DefaultProviders()
	if path == "" {
		return providers, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read providers file: %w", err)
	}

	var file ProvidersFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	for name, p := range file.Providers {
		name = strings.ToLower(strings.TrimSpace(name))
		if p.BaseURL == "" {
			return nil, fmt.Errorf("provider %q: base_url is required", name)
		}
		providers[name] = p
	}
	return providers, nil
}

// ResolvedAssistant is the effective completion service configuration.
type ResolvedAssistant struct {
	Provider string
	BaseURL  string
	Model    string
}

// Resolve picks the configured provider preset and applies the BaseURL and
// Model overrides.
func (a AssistantConfig) Resolve() (ResolvedAssistant, error) {
	providers, err := LoadProviders(a.ProvidersFile)
	if err != nil {
		return ResolvedAssistant{}, err
	}

	name := strings.ToLower(strings.TrimSpace(a.Provider))
	preset, ok := providers[name]
	if !ok && a.BaseURL == "" {
		known := make([]string, 0, len(providers))
		for k := range providers {
			known = append(known, k)
		}
		sort.Strings(known)
		return ResolvedAssistant{}, fmt.Errorf("unknown assistant provider %q (known: %s)", a.Provider, strings.Join(known, ", "))
	}

	out := ResolvedAssistant{Provider: name, BaseURL: preset.BaseURL, Model: preset.Model}
	if a.BaseURL != "" {
		out.BaseURL = a.BaseURL
	}
	if a.Model != "" {
		out.Model = a.Model
	}
	if out.Model == "" {
		return ResolvedAssistant{}, fmt.Errorf("assistant provider %q has no model; set ASSISTANT_MODEL", a.Provider)
	}
	return out, nil
}
