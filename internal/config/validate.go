package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validatable is implemented by config sections that can self-validate.
type Validatable interface {
	Validate() error
}

func (c LLMProviderConfig) Validate() error {
	if c.Provider == "" {
		return errors.New("provider is required")
	}
	if c.Model == "" {
		return errors.New("model is required")
	}

	switch strings.ToLower(c.Provider) {
	case "gemini", "anthropic":
		if c.APIKey == "" {
			return errors.New("api_key is required")
		}
	default:
		return fmt.Errorf("unsupported provider %q", c.Provider)
	}
	return nil
}

func (c GoogleConfig) Validate() error {
	if c.CredentialsFile == "" {
		return errors.New("credentials_file is required")
	}
	if c.TokenFile == "" {
		return errors.New("token_file is required")
	}
	if len(c.Scopes) == 0 {
		return errors.New("at least one scope is required")
	}
	return nil
}

func (c ServerConfig) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("port %d is out of range", c.Port)
	}
	return nil
}

func (c ContextConfig) Validate() error {
	if c.MaxRounds <= 0 {
		return errors.New("max_rounds must be positive")
	}
	if c.ToolConcurrency <= 0 {
		return errors.New("tool_concurrency must be positive")
	}
	return nil
}

// ValidateStartup validates the full startup configuration.
func ValidateStartup(cfg *Config) error {
	var errs []error

	if len(cfg.LLM) == 0 {
		errs = append(errs, errors.New("at least one llm.* profile is required"))
	}
	for profile, llm := range cfg.LLM {
		if err := llm.Validate(); err != nil {
			errs = append(errs, fmt.Errorf("llm.%s: %w", profile, err))
		}
	}
	if err := cfg.Google.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("google: %w", err))
	}
	if err := cfg.Server.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("server: %w", err))
	}
	if err := cfg.Context.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("context: %w", err))
	}

	return errors.Join(errs...)
}
