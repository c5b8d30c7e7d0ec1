package main

import (
	"context"
	"fmt"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
)

// ValidateCmd checks the configuration file without starting anything.
type ValidateCmd struct{}

func (c *ValidateCmd) Run(cli *CLI) error {
	ctx := context.Background()

	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	fmt.Printf("Configuration OK: %s\n\n", cli.Config)

	fmt.Printf("LLMs (%d):\n", len(cfg.LLMs))
	for name, llm := range cfg.LLMs {
		fmt.Printf("  - %s: %s %s\n", name, llm.Provider, llm.Model)
	}

	fmt.Printf("Agents (%d):\n", len(cfg.Agents))
	for name, agentCfg := range cfg.Agents {
		fmt.Printf("  - %s: type=%s llm=%s", name, agentCfg.Type, agentCfg.LLM)
		if len(agentCfg.Toolkits) > 0 {
			fmt.Printf(" toolkits=%v", agentCfg.Toolkits)
		}
		if len(agentCfg.Workers) > 0 {
			fmt.Printf(" workers=%v", agentCfg.Workers)
		}
		fmt.Println()
	}

	fmt.Printf("Toolkits (%d):\n", len(cfg.Toolkits))
	for name, kit := range cfg.Toolkits {
		status := "enabled"
		if !kit.IsEnabled() {
			status = "disabled"
		}
		fmt.Printf("  - %s: kind=%s (%s)\n", name, kit.Kind, status)
	}

	fmt.Printf("Server: %s (default_agent=%s, sessions=%s)\n",
		cfg.Server.Address(), cfg.Server.DefaultAgent, cfg.Server.Sessions.Backend)

	return nil
}
