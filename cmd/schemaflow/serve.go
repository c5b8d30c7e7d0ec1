package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/server"
	"github.com/schemaflow-ai/schemaflow/pkg/session"
)

// ServeCmd starts the web chat server.
type ServeCmd struct {
	Port  int  `help:"Port to listen on (overrides config)."`
	Watch bool `help:"Watch config file for changes."`
}

func (c *ServeCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		slog.Info("Shutting down...")
		cancel()
	}()

	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()
	slog.Info("Loaded configuration", "path", cli.Config)

	if c.Port != 0 {
		cfg.Server.Port = c.Port
	}

	if c.Watch {
		go func() {
			if err := loader.Watch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("Config watch error", "error", err)
			}
		}()
	}

	llmRegistry, err := buildLLMRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeProviders(llmRegistry)

	sessions, err := session.NewFromConfig(cfg.Server.Sessions, cfg.Server.DefaultAgent)
	if err != nil {
		return fmt.Errorf("failed to create session service: %w", err)
	}
	defer sessions.Close()

	srv, err := server.New(cfg, llmRegistry, sessions)
	if err != nil {
		return err
	}

	fmt.Printf("\nschemaflow server ready\n")
	fmt.Printf("   Web UI:   http://%s/\n", cfg.Server.Address())
	fmt.Printf("   Chat:     ws://%s/ws\n", cfg.Server.Address())
	fmt.Printf("   Health:   http://%s/healthz\n", cfg.Server.Address())
	fmt.Printf("   Metrics:  http://%s/metrics\n", cfg.Server.Address())
	fmt.Println("\n   Agents:")
	for _, name := range cfg.ListAgents() {
		marker := ""
		if name == cfg.Server.DefaultAgent {
			marker = " (default)"
		}
		fmt.Printf("     - %s%s\n", name, marker)
	}
	if cfg.Server.Sessions != nil && cfg.Server.Sessions.Backend != config.SessionBackendMemory {
		fmt.Printf("\n   Sessions: persistent (%s)\n", cfg.Server.Sessions.Backend)
	} else {
		fmt.Printf("\n   Sessions: in-memory (not persisted)\n")
	}
	fmt.Println("\nPress Ctrl+C to stop")

	return srv.Start(ctx)
}

func buildLLMRegistry(cfg *config.Config) (*llms.Registry, error) {
	registry := llms.NewRegistry()
	for name, llmCfg := range cfg.LLMs {
		if _, err := registry.CreateFromConfig(name, llmCfg); err != nil {
			return nil, fmt.Errorf("llm %q: %w", name, err)
		}
	}
	return registry, nil
}

func closeProviders(registry *llms.Registry) {
	for _, provider := range registry.List() {
		if err := provider.Close(); err != nil {
			slog.Debug("Failed to close LLM provider", "error", err)
		}
	}
}
