// Package config loads scheduling-agent runtime configuration from a TOML
// file and environment variables, exposing typed structs and accessors for
// all sections.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"reflect"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const defaultProfile = "default"

// Config is the runtime configuration loaded from defaults, config.toml, and env vars.
type Config struct {
	// HomeDir is runtime-resolved from SCHEDAGENT_HOME and not read from config.
	HomeDir string                       `mapstructure:"-"`
	LLM     map[string]LLMProviderConfig `mapstructure:"llm"`
	Google  GoogleConfig                 `mapstructure:"google"`
	Server  ServerConfig                 `mapstructure:"server"`
	Context ContextConfig                `mapstructure:"context"`
}

// LLMProviderConfig configures one LLM provider profile.
type LLMProviderConfig struct {
	APIKey         string        `mapstructure:"api_key"`
	Provider       string        `mapstructure:"provider"`
	Model          string        `mapstructure:"model"`
	MaxTokens      int           `mapstructure:"max_tokens"`
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
}

// GoogleConfig locates OAuth client credentials and the persisted token.
type GoogleConfig struct {
	CredentialsFile string   `mapstructure:"credentials_file"`
	TokenFile       string   `mapstructure:"token_file"`
	Scopes          []string `mapstructure:"scopes"`
}

// ServerConfig configures the HTTP chat server.
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// ContextConfig controls the orchestration loop: context window budget,
// round ceiling, and tool dispatch limits.
type ContextConfig struct {
	MaxTokens        int           `mapstructure:"max_tokens"`
	MaxRounds        int           `mapstructure:"max_rounds"`
	ToolConcurrency  int           `mapstructure:"tool_concurrency"`
	ToolTimeout      time.Duration `mapstructure:"tool_timeout"`
	ToolOutputLength int           `mapstructure:"tool_output_length"`
}

var defaultConfig = Config{
	LLM: map[string]LLMProviderConfig{
		defaultProfile: {
			APIKey:         "$GEMINI_API_KEY",
			Provider:       "gemini",
			Model:          "gemini-2.5-flash",
			MaxTokens:      8192,
			RequestTimeout: 60 * time.Second,
		},
	},
	Google: GoogleConfig{
		CredentialsFile: "credentials.json",
		TokenFile:       "token.json",
		Scopes: []string{
			"https://www.googleapis.com/auth/gmail.modify",
			"https://www.googleapis.com/auth/gmail.send",
			"https://www.googleapis.com/auth/calendar",
			"https://www.googleapis.com/auth/calendar.events",
		},
	},
	Server: ServerConfig{
		Host: "127.0.0.1",
		Port: 8000,
	},
	Context: ContextConfig{
		MaxTokens:        32000,
		MaxRounds:        10,
		ToolConcurrency:  5,
		ToolTimeout:      30 * time.Second,
		ToolOutputLength: 20000,
	},
}

// homeDir returns the scheduling-agent home directory.
// Uses SCHEDAGENT_HOME env var if set, otherwise defaults to ~/.schedagent.
func homeDir() (string, error) {
	if dir := os.Getenv("SCHEDAGENT_HOME"); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, ".schedagent"), nil
}

func homeConfigPath(homeDir string) string {
	return filepath.Join(homeDir, "config.toml")
}

// Load merges hardcoded defaults and config file values in that order.
// Config is always at $SCHEDAGENT_HOME/config.toml.
func Load() (*Config, error) {
	homeDir, err := homeDir()
	if err != nil {
		return nil, err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	var cfg Config
	decodeHook := mapstructure.ComposeDecodeHookFunc(
		expandEnvStringHook(),
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	)

	if err := v.Unmarshal(&cfg, func(c *mapstructure.DecoderConfig) {
		c.DecodeHook = decodeHook
	}); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.HomeDir = homeDir

	return &cfg, nil
}

// Write writes the merged configuration (defaults overlaid by user
// config) to w in TOML format.
func Write(w io.Writer) error {
	if w == nil {
		return errors.New("writer is required")
	}

	homeDir, err := homeDir()
	if err != nil {
		return err
	}

	v := viper.New()
	setDefaults(v)
	v.SetConfigFile(homeConfigPath(homeDir))
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("read config file: %w", err)
		}
	}

	// Keep duration fields human-readable in generated TOML.
	v.Set("llm.default.request_timeout", v.GetDuration("llm.default.request_timeout").String())
	v.Set("context.tool_timeout", v.GetDuration("context.tool_timeout").String())

	if err := v.WriteConfigTo(w); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	def := defaultConfig.LLM[defaultProfile]
	v.SetDefault("llm.default.api_key", def.APIKey)
	v.SetDefault("llm.default.provider", def.Provider)
	v.SetDefault("llm.default.model", def.Model)
	v.SetDefault("llm.default.max_tokens", def.MaxTokens)
	v.SetDefault("llm.default.request_timeout", def.RequestTimeout)

	v.SetDefault("google.credentials_file", defaultConfig.Google.CredentialsFile)
	v.SetDefault("google.token_file", defaultConfig.Google.TokenFile)
	v.SetDefault("google.scopes", defaultConfig.Google.Scopes)

	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)

	v.SetDefault("context.max_tokens", defaultConfig.Context.MaxTokens)
	v.SetDefault("context.max_rounds", defaultConfig.Context.MaxRounds)
	v.SetDefault("context.tool_concurrency", defaultConfig.Context.ToolConcurrency)
	v.SetDefault("context.tool_timeout", defaultConfig.Context.ToolTimeout)
	v.SetDefault("context.tool_output_length", defaultConfig.Context.ToolOutputLength)
}

// DefaultLLM returns the default LLM profile.
func (c *Config) DefaultLLM() LLMProviderConfig {
	return c.LLM[defaultProfile]
}

// CredentialsPath resolves the Google client credentials file against HomeDir.
func (c *Config) CredentialsPath() string {
	return c.resolvePath(c.Google.CredentialsFile)
}

// TokenPath resolves the persisted OAuth token file against HomeDir.
func (c *Config) TokenPath() string {
	return c.resolvePath(c.Google.TokenFile)
}

func (c *Config) resolvePath(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.HomeDir, path)
}

// expandEnvStringHook expands $VAR and ${VAR} references in string values so
// secrets can stay in the environment rather than the config file.
func expandEnvStringHook() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data any) (any, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		return os.Expand(s, func(key string) string {
			return os.Getenv(key)
		}), nil
	}
}
