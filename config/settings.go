// Package config provides application settings loaded from environment variables.
//
// Settings are created via New() which handles:
// - Environment variable parsing with validation
// - Default value application
// - Provider-specific configuration lookup

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/richinex/smith/agent"
	"github.com/richinex/smith/internal/logging"
	"github.com/richinex/smith/llm"
	"github.com/richinex/smith/permission"
	"github.com/richinex/smith/tools"
)

// DefaultDBPath is the project-local session database.
const DefaultDBPath = ".smith/smith.db"

// Settings holds all application configuration.
type Settings struct {
	LLM         LLMConfig
	Agent       AgentConfig
	Tools       ToolsConfig
	Permissions PermissionsConfig
	Storage     StorageConfig
	LogLevel    logging.Level
}

// LLMConfig holds LLM provider configuration.
type LLMConfig struct {
	Provider    llm.ProviderType
	Model       string
	MaxTokens   uint32
	Temperature float32
	Retries     uint64
}

// AgentConfig holds agent execution configuration.
type AgentConfig struct {
	MaxIterations int
	Streaming     bool
}

// ToolsConfig holds tool execution limits.
type ToolsConfig struct {
	Timeout       time.Duration
	MaxOutputSize int
}

// PermissionsConfig holds permission settings.
type PermissionsConfig struct {
	Mode permission.Mode
	File string
}

// StorageConfig holds session persistence settings.
type StorageConfig struct {
	DBPath string
}

// New creates settings for the specified provider, loading values from environment variables.
// Returns an error if the provider is unknown or environment variables contain invalid values.
func New(provider string) (Settings, error) {
	providerType, err := llm.ParseProviderType(provider)
	if err != nil {
		return Settings{}, err
	}

	maxTokens, err := getEnvUint32("LLM_MAX_TOKENS", agent.DefaultMaxTokens)
	if err != nil {
		return Settings{}, err
	}

	temperature, err := getEnvFloat32("LLM_TEMPERATURE", agent.DefaultTemperature)
	if err != nil {
		return Settings{}, err
	}
	if temperature < 0 || temperature > 2 {
		return Settings{}, fmt.Errorf("invalid value for LLM_TEMPERATURE: %v: must be between 0 and 2", temperature)
	}

	retries, err := getEnvInt("LLM_RETRIES", 2)
	if err != nil {
		return Settings{}, err
	}

	maxIterations, err := getEnvInt("AGENT_MAX_ITERATIONS", agent.DefaultMaxIterations)
	if err != nil {
		return Settings{}, err
	}
	if maxIterations <= 0 {
		return Settings{}, fmt.Errorf("invalid value for AGENT_MAX_ITERATIONS: %d: must be positive", maxIterations)
	}

	streaming, err := getEnvBool("AGENT_STREAMING", true)
	if err != nil {
		return Settings{}, err
	}

	timeoutSecs, err := getEnvInt("TOOL_TIMEOUT_SECS", int(tools.DefaultTimeout/time.Second))
	if err != nil {
		return Settings{}, err
	}

	maxOutput, err := getEnvInt("TOOL_MAX_OUTPUT_BYTES", tools.DefaultMaxOutputSize)
	if err != nil {
		return Settings{}, err
	}

	mode := permission.ModePrompt
	if val := os.Getenv("SMITH_PERMISSION_MODE"); val != "" {
		mode, err = permission.ParseMode(val)
		if err != nil {
			return Settings{}, fmt.Errorf("invalid value for SMITH_PERMISSION_MODE: %w", err)
		}
	}

	model, err := ModelFor(provider)
	if err != nil {
		return Settings{}, err
	}

	return Settings{
		LLM: LLMConfig{
			Provider:    providerType,
			Model:       model,
			MaxTokens:   maxTokens,
			Temperature: temperature,
			Retries:     uint64(max(retries, 0)),
		},
		Agent: AgentConfig{
			MaxIterations: maxIterations,
			Streaming:     streaming,
		},
		Tools: ToolsConfig{
			Timeout:       time.Duration(timeoutSecs) * time.Second,
			MaxOutputSize: maxOutput,
		},
		Permissions: PermissionsConfig{
			Mode: mode,
			File: getEnvString("SMITH_PERMISSIONS_FILE", permission.DefaultConfigFile),
		},
		Storage: StorageConfig{
			DBPath: getEnvString("SMITH_DB_PATH", DefaultDBPath),
		},
		LogLevel: logging.ParseLevel(os.Getenv("SMITH_LOG_LEVEL")),
	}, nil
}

// MustNew creates settings for the specified provider.
// Panics if the provider is unknown or environment variables are invalid.
// Use this only when configuration errors should be fatal.
func MustNew(provider string) Settings {
	settings, err := New(provider)
	if err != nil {
		panic(fmt.Sprintf("config: %v", err))
	}
	return settings
}

// BuildModel creates the configured provider, reading its API key from the environment.
func (s Settings) BuildModel() (llm.Model, error) {
	return s.LLM.Provider.
		Model(s.LLM.Model).
		MaxTokens(s.LLM.MaxTokens).
		Temperature(s.LLM.Temperature).
		Retries(s.LLM.Retries).
		FromEnv()
}

// AgentConfig returns the agent configuration rooted at workDir.
func (s Settings) AgentConfig(workDir string) agent.Config {
	cfg := agent.DefaultConfig(workDir)
	cfg.MaxIterations = s.Agent.MaxIterations
	cfg.MaxTokens = s.LLM.MaxTokens
	cfg.Temperature = s.LLM.Temperature
	cfg.Streaming = s.Agent.Streaming
	cfg.Exec.Timeout = s.Tools.Timeout
	cfg.Exec.MaxOutputSize = s.Tools.MaxOutputSize
	return cfg
}

// APIKeyFor returns the API key for a provider from environment variables.
func APIKeyFor(provider string) (string, error) {
	p, err := llm.ParseProviderType(provider)
	if err != nil {
		return "", err
	}

	key := os.Getenv(p.EnvVar())
	if key == "" {
		return "", fmt.Errorf("%s environment variable not set", p.EnvVar())
	}
	return key, nil
}

// ModelFor returns the model for a provider, checking <PROVIDER>_MODEL first.
func ModelFor(provider string) (string, error) {
	p, err := llm.ParseProviderType(provider)
	if err != nil {
		return "", err
	}

	if val := os.Getenv(modelEnv(p)); val != "" {
		return val, nil
	}
	return p.DefaultModel(), nil
}

func modelEnv(p llm.ProviderType) string {
	return strings.ToUpper(p.String()) + "_MODEL"
}

// SupportedProviders returns the list of supported provider names.
func SupportedProviders() []string {
	return []string{
		llm.ProviderAnthropic.String(),
		llm.ProviderOpenAI.String(),
		llm.ProviderDeepSeek.String(),
		llm.ProviderGemini.String(),
	}
}

// Environment variable helpers with proper error handling

func getEnvString(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return i, nil
}

func getEnvUint32(key string, defaultVal uint32) (uint32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	i, err := strconv.ParseUint(val, 10, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return uint32(i), nil
}

func getEnvFloat32(key string, defaultVal float32) (float32, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 32)
	if err != nil {
		return 0, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return float32(f), nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("invalid value for %s: %q: %w", key, val, err)
	}
	return b, nil
}
