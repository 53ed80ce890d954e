package cli

import (
	"github.com/RahimMirani/scheduling-agent/internal/agent"
	"github.com/RahimMirani/scheduling-agent/internal/calendar"
	"github.com/RahimMirani/scheduling-agent/internal/config"
	"github.com/RahimMirani/scheduling-agent/internal/gmail"
	"github.com/RahimMirani/scheduling-agent/internal/googleauth"
	"github.com/RahimMirani/scheduling-agent/internal/llm"
	"github.com/RahimMirani/scheduling-agent/internal/tools"
)

var providerFactory = llm.NewProviderFromConfig

// buildApp assembles the agent and its Google authenticator from config.
func buildApp(cfg *config.Config) (*agent.Agent, *googleauth.Authenticator, error) {
	if err := config.ValidateStartup(cfg); err != nil {
		return nil, nil, err
	}

	auth, err := googleauth.New(cfg.CredentialsPath(), cfg.TokenPath(), cfg.Google.Scopes)
	if err != nil {
		return nil, nil, err
	}

	registry := tools.NewRegistry()
	if err := tools.RegisterAll(registry, gmail.New(auth), calendar.New(auth)); err != nil {
		return nil, nil, err
	}

	llmCfg := cfg.DefaultLLM()
	provider, err := providerFactory(llmCfg)
	if err != nil {
		return nil, nil, err
	}

	resolver := agent.NewResolver(provider, registry, llmCfg.MaxTokens, cfg.Context.MaxTokens, llmCfg.RequestTimeout)
	dispatcher := agent.NewDispatcher(registry, cfg.Context.ToolConcurrency, cfg.Context.ToolTimeout, cfg.Context.ToolOutputLength)
	return agent.New(resolver, dispatcher, cfg.Context.MaxRounds), auth, nil
}
