package main

import (
	"context"
	"fmt"
	"log/slog"

	"finnguide/internal/adapter/tool"
	"finnguide/internal/infra/config"
	"finnguide/internal/usecase"
)

// AgentComponents is everything a front end needs to answer questions.
type AgentComponents struct {
	LLM   *LLMComponents
	Tools *tool.Registry
	Agent *usecase.Agent
}

// initTools builds the search backend and the four assistant tools on it.
func initTools(cfg *config.Config, log *slog.Logger) (*tool.Registry, error) {
	backend, err := tool.NewSearchBackend(cfg.Search, log)
	if err != nil {
		return nil, fmt.Errorf("search backend: %w", err)
	}
	tools, err := tool.NewCatalog(cfg.Search, backend, log)
	if err != nil {
		return nil, fmt.Errorf("tool catalog: %w", err)
	}
	log.Info("search tools ready", "backend", backend.Name(), "tools", len(tools.List()))
	return tools, nil
}

// initAgent wires the LLM, the tools and a one-exchange conversation
// window into an agent.
func initAgent(ctx context.Context, cfg *config.Config, log *slog.Logger) (*AgentComponents, error) {
	llmc, err := initLLM(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	tools, err := initTools(cfg, log)
	if err != nil {
		return nil, err
	}

	agent := usecase.NewAgent(usecase.AgentDeps{
		LLM:           llmc.DefaultLLM,
		Tools:         tools,
		Memory:        usecase.NewConversationWindow(),
		Logger:        log,
		MaxIterations: cfg.Agent.MaxIterations,
		Temperature:   cfg.LLM.Temperature,
		MaxTokens:     cfg.LLM.MaxTokens,
		Timeout:       cfg.Agent.Timeout,
	})

	return &AgentComponents{LLM: llmc, Tools: tools, Agent: agent}, nil
}
