// Model Factory - builder-first API for creating models.
//
// Quick Start:
//
//	// Defaults, API key from environment
//	claude, err := llm.ProviderAnthropic.FromEnv()
//
//	// Explicit model, wrapped with transient-error retries
//	model, err := llm.ProviderOpenAI.
//	    Model("gpt-5.2-codex").
//	    MaxTokens(8192).
//	    Temperature(0.3).
//	    Retries(3).
//	    FromEnv()
//
// Information Hiding:
// - Provider names, aliases, key variables and default models kept in one table
// - Adapter construction hidden behind ProviderBuilder

package llm

import (
	"fmt"
	"os"
	"strings"
)

// ProviderType represents supported LLM providers.
type ProviderType int

const (
	// ProviderOpenAI is the OpenAI provider (GPT models).
	ProviderOpenAI ProviderType = iota
	// ProviderAnthropic is the Anthropic provider (Claude models).
	ProviderAnthropic
	// ProviderDeepSeek is the DeepSeek provider.
	ProviderDeepSeek
	// ProviderGemini is the Google Gemini provider.
	ProviderGemini
)

// Default model per provider. Any name the vendor accepts can be passed
// to ProviderBuilder.Model instead.
const (
	ModelAnthropicDefault = "claude-opus-4-5-20251101"
	ModelOpenAIDefault    = "gpt-5.2"
	ModelDeepSeekDefault  = "deepseek-chat"
	ModelGeminiDefault    = "gemini-3-flash"
)

type providerInfo struct {
	name    string
	envVar  string
	model   string
	aliases []string
	build   func(apiKey, model string, maxTokens uint32, temperature float32) Model
}

var providerTable = map[ProviderType]providerInfo{
	ProviderOpenAI: {
		name: "openai", envVar: "OPENAI_API_KEY", model: ModelOpenAIDefault, aliases: []string{"gpt"},
		build: func(k, m string, n uint32, t float32) Model { return NewOpenAIProvider(k, m, n, t) },
	},
	ProviderAnthropic: {
		name: "anthropic", envVar: "ANTHROPIC_API_KEY", model: ModelAnthropicDefault, aliases: []string{"claude"},
		build: func(k, m string, n uint32, t float32) Model { return NewAnthropicProvider(k, m, n, t) },
	},
	ProviderDeepSeek: {
		name: "deepseek", envVar: "DEEPSEEK_API_KEY", model: ModelDeepSeekDefault,
		build: func(k, m string, n uint32, t float32) Model { return NewDeepSeekProvider(k, m, n, t) },
	},
	ProviderGemini: {
		name: "gemini", envVar: "GEMINI_API_KEY", model: ModelGeminiDefault, aliases: []string{"google"},
		build: func(k, m string, n uint32, t float32) Model { return NewGeminiProvider(k, m, n, t) },
	},
}

// String returns the string representation of the provider type.
func (p ProviderType) String() string {
	if info, ok := providerTable[p]; ok {
		return info.name
	}
	return "unknown"
}

// EnvVar returns the environment variable name for this provider's API key.
func (p ProviderType) EnvVar() string {
	return providerTable[p].envVar
}

// DefaultModel returns the default model for this provider.
func (p ProviderType) DefaultModel() string {
	return providerTable[p].model
}

// ParseProviderType parses a provider name or alias, ignoring case.
func ParseProviderType(s string) (ProviderType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for p, info := range providerTable {
		if s == info.name {
			return p, nil
		}
		for _, alias := range info.aliases {
			if s == alias {
				return p, nil
			}
		}
	}
	return 0, fmt.Errorf("unknown provider: %s", s)
}

// FromEnv creates a provider with defaults, reading API key from environment.
func (p ProviderType) FromEnv() (Model, error) {
	return NewProviderBuilder(p).FromEnv()
}

// Model starts configuring this provider with a specific model.
func (p ProviderType) Model(model string) *ProviderBuilder {
	return NewProviderBuilder(p).Model(model)
}

// APIKey creates a provider with an explicit API key.
func (p ProviderType) APIKey(key string) (Model, error) {
	return NewProviderBuilder(p).APIKey(key)
}

// ProviderBuilder configures one provider adapter.
type ProviderBuilder struct {
	providerType ProviderType
	model        string
	maxTokens    uint32
	temperature  *float32
	retries      uint64
}

// NewProviderBuilder creates a new builder for the given provider.
func NewProviderBuilder(providerType ProviderType) *ProviderBuilder {
	return &ProviderBuilder{providerType: providerType}
}

// Model sets the model to use.
func (b *ProviderBuilder) Model(model string) *ProviderBuilder {
	b.model = model
	return b
}

// MaxTokens sets the default response budget.
func (b *ProviderBuilder) MaxTokens(tokens uint32) *ProviderBuilder {
	b.maxTokens = tokens
	return b
}

// Temperature sets the default sampling temperature.
func (b *ProviderBuilder) Temperature(temp float32) *ProviderBuilder {
	b.temperature = &temp
	return b
}

// Retries wraps the built model with WithRetry using n attempts after the first.
func (b *ProviderBuilder) Retries(n uint64) *ProviderBuilder {
	b.retries = n
	return b
}

// FromEnv builds the provider, reading API key from environment.
func (b *ProviderBuilder) FromEnv() (Model, error) {
	envVar := b.providerType.EnvVar()
	apiKey := os.Getenv(envVar)
	if apiKey == "" {
		return nil, fmt.Errorf("%s: %s environment variable not set", b.providerType, envVar)
	}
	return b.build(apiKey)
}

// APIKey builds the provider with an explicit API key.
func (b *ProviderBuilder) APIKey(key string) (Model, error) {
	return b.build(key)
}

func (b *ProviderBuilder) build(apiKey string) (Model, error) {
	info, ok := providerTable[b.providerType]
	if !ok {
		return nil, fmt.Errorf("unknown provider type: %v", b.providerType)
	}

	model := b.model
	if model == "" {
		model = info.model
	}
	maxTokens := b.maxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	temperature := float32(1.0)
	if b.temperature != nil {
		temperature = *b.temperature
	}

	m := info.build(apiKey, model, maxTokens, temperature)
	if b.retries > 0 {
		m = WithRetry(m, b.retries)
	}
	return m, nil
}
