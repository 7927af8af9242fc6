package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config carries every runtime setting the engine and its surfaces consume.
// Values come from (highest precedence first) environment variables with the
// AXON_ prefix, ~/.axon/config.yaml, then the built-in defaults.
type Config struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`

	// DataDir is the root for on-disk state: saved workflows and plugins.
	DataDir   string `mapstructure:"data_dir"`
	PluginDir string `mapstructure:"plugin_dir"`

	LLM LLMConfig `mapstructure:"llm"`

	// MaxSteps bounds the orchestrator ReAct loop when a node does not set
	// its own limit.
	MaxSteps int `mapstructure:"max_steps"`

	// SessionTTL is the chat session inactivity window.
	SessionTTL time.Duration `mapstructure:"session_ttl"`

	// MaxToolDepth bounds re-entrant workflow-as-tool execution.
	MaxToolDepth int `mapstructure:"max_tool_depth"`

	// OTLPEndpoint enables trace export when non-empty.
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`

	Debug bool `mapstructure:"debug"`
}

// LLMConfig describes the OpenAI-compatible endpoint the engine talks to.
// Local servers (Ollama, LM Studio, llama.cpp) all speak this protocol.
type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url"`
	APIKey      string  `mapstructure:"api_key"`
	Model       string  `mapstructure:"model"`
	MaxTokens   int     `mapstructure:"max_tokens"`
	Temperature float64 `mapstructure:"temperature"`
}

// Load builds the runtime configuration from defaults, the optional config
// file, and the environment.
func Load() (*Config, error) {
	v := viper.New()

	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 3001)
	v.SetDefault("data_dir", defaultDataDir())
	v.SetDefault("plugin_dir", filepath.Join(defaultDataDir(), "plugins"))
	v.SetDefault("max_steps", 10)
	v.SetDefault("session_ttl", 30*time.Minute)
	v.SetDefault("max_tool_depth", 8)
	v.SetDefault("debug", false)
	v.SetDefault("llm.base_url", "http://localhost:11434/v1")
	v.SetDefault("llm.api_key", "local")
	v.SetDefault("llm.model", "llama3.1")
	v.SetDefault("llm.max_tokens", 2048)
	v.SetDefault("llm.temperature", 0.7)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".axon"))
	}
	v.AddConfigPath(".")

	v.SetEnvPrefix("AXON")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".axon"
	}
	return filepath.Join(home, ".axon")
}
