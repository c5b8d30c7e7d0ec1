package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"golang.org/x/term"

	"github.com/schemaflow-ai/schemaflow/pkg/agent"
	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/guard"
	"github.com/schemaflow-ai/schemaflow/pkg/toolkits/interaction"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// ChatCmd runs a terminal REPL against a configured agent.
type ChatCmd struct {
	Agent string `short:"a" help:"Agent to chat with (defaults to server.default_agent, or the only configured agent)."`
}

func (c *ChatCmd) Run(cli *CLI) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	cfg, loader, err := config.LoadConfigFile(ctx, cli.Config)
	if err != nil {
		return err
	}
	defer loader.Close()

	agentName, err := c.resolveAgent(cfg)
	if err != nil {
		return err
	}

	if err := promptMissingPasswords(cfg, agentName); err != nil {
		return err
	}

	llmRegistry, err := buildLLMRegistry(cfg)
	if err != nil {
		return err
	}
	defer closeProviders(llmRegistry)

	// One reader shared between the REPL and the interactor so buffered
	// input is never split between them.
	reader := bufio.NewReader(os.Stdin)
	g := guard.New()
	interactor := &confirmingInteractor{
		inner: interaction.NewTerminalInteractor(reader, os.Stdout),
		guard: g,
	}

	chatAgent, err := agent.New(agentName, agent.Dependencies{
		Config:     cfg,
		LLMs:       llmRegistry,
		Interactor: interactor,
		Middleware: []tools.Middleware{guard.Middleware(g, guard.DefaultRuleSet())},
	})
	if err != nil {
		return err
	}

	fmt.Printf("Chatting with %s. Type 'exit' to quit.\n", agentName)

	for {
		fmt.Print("\nyou> ")
		line, err := reader.ReadString('\n')
		if err != nil {
			fmt.Println()
			return nil
		}
		input := strings.TrimSpace(line)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}

		if err := c.runTurn(ctx, chatAgent, input); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			fmt.Fprintf(os.Stderr, "error: %v\n", err)
		}
	}
}

func (c *ChatCmd) runTurn(ctx context.Context, chatAgent agent.Agent, input string) error {
	events, err := chatAgent.RunStreaming(ctx, input)
	if err != nil {
		return err
	}

	for ev := range events {
		switch ev.Type {
		case agent.EventTextDelta:
			fmt.Print(ev.Text)
		case agent.EventToolCall:
			if ev.ToolCall != nil {
				fmt.Printf("\n[tool] %s\n", ev.ToolCall.Name)
			}
		case agent.EventToolCallOutput:
			if ev.ToolResult != nil && !ev.ToolResult.Success {
				fmt.Printf("[tool failed] %s: %s\n", ev.ToolResult.Error, ev.ToolResult.Content)
			} else if ev.ToolResult != nil && strings.Contains(ev.ToolResult.Content, "erDiagram") {
				fmt.Printf("\n%s\n", ev.ToolResult.Content)
			}
		case agent.EventError:
			return fmt.Errorf("%s", ev.Text)
		case agent.EventFinish:
			fmt.Println()
		}
	}
	return nil
}

func (c *ChatCmd) resolveAgent(cfg *config.Config) (string, error) {
	if c.Agent != "" {
		if _, ok := cfg.Agents[c.Agent]; !ok {
			return "", fmt.Errorf("agent '%s' not found in configuration", c.Agent)
		}
		return c.Agent, nil
	}
	if cfg.Server != nil && cfg.Server.DefaultAgent != "" {
		return cfg.Server.DefaultAgent, nil
	}
	if len(cfg.Agents) == 1 {
		for name := range cfg.Agents {
			return name, nil
		}
	}
	return "", fmt.Errorf("multiple agents configured; pick one with --agent (%s)",
		strings.Join(cfg.ListAgents(), ", "))
}

// promptMissingPasswords asks for MySQL passwords the config left
// empty, for every mysql toolkit the agent (or its workers) can reach.
func promptMissingPasswords(cfg *config.Config, agentName string) error {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return nil
	}

	for _, kitName := range reachableToolkits(cfg, agentName, map[string]bool{}) {
		kitCfg := cfg.Toolkits[kitName]
		if kitCfg == nil || kitCfg.Kind != config.ToolkitKindMySQL || kitCfg.MySQL == nil {
			continue
		}
		mysqlCfg := kitCfg.MySQL
		if mysqlCfg.Host == "" || mysqlCfg.User == "" || mysqlCfg.Password != "" {
			continue
		}

		fmt.Printf("MySQL password for %s@%s: ", mysqlCfg.User, mysqlCfg.Host)
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		mysqlCfg.Password = string(password)
	}
	return nil
}

func reachableToolkits(cfg *config.Config, agentName string, visited map[string]bool) []string {
	if visited[agentName] {
		return nil
	}
	visited[agentName] = true

	agentCfg, ok := cfg.Agents[agentName]
	if !ok {
		return nil
	}

	kits := append([]string(nil), agentCfg.Toolkits...)
	for _, worker := range agentCfg.Workers {
		kits = append(kits, reachableToolkits(cfg, worker, visited)...)
	}
	return kits
}

// confirmingInteractor confirms the guard when the user answers a
// schema confirmation prompt in the terminal.
type confirmingInteractor struct {
	inner interaction.Interactor
	guard *guard.Guard
}

func (c *confirmingInteractor) Ask(ctx context.Context, prompt interaction.Prompt) (string, error) {
	answer, err := c.inner.Ask(ctx, prompt)
	if err == nil && prompt.Kind == interaction.KindSchemaConfirm {
		c.guard.Confirm()
	}
	return answer, err
}
