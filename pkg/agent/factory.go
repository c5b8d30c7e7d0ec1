package agent

import (
	"fmt"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/llms"
	"github.com/schemaflow-ai/schemaflow/pkg/toolkits/interaction"
	"github.com/schemaflow-ai/schemaflow/pkg/toolkits/mysql"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// Dependencies carries everything the factory injects into agents.
// Middleware and Interactor arrive here, at construction time, rather
// than being patched onto live objects later.
type Dependencies struct {
	Config     *config.Config
	LLMs       *llms.Registry
	Interactor interaction.Interactor
	Middleware []tools.Middleware
}

// New builds the named agent from configuration, dispatching on its
// type. Worker agents of orchestra and workforce agents are built
// recursively.
func New(name string, deps Dependencies) (Agent, error) {
	return build(name, deps, map[string]bool{})
}

func build(name string, deps Dependencies, building map[string]bool) (Agent, error) {
	if deps.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if building[name] {
		return nil, fmt.Errorf("agent %s is part of a worker cycle", name)
	}
	building[name] = true
	defer delete(building, name)

	cfg, ok := deps.Config.Agents[name]
	if !ok {
		return nil, fmt.Errorf("agent '%s' not found in configuration", name)
	}

	provider, err := deps.LLMs.GetProvider(cfg.LLM)
	if err != nil {
		return nil, fmt.Errorf("agent %s: %w", name, err)
	}

	switch cfg.Type {
	case config.AgentTypeSimple, "":
		registry, err := buildToolRegistry(cfg, deps)
		if err != nil {
			return nil, fmt.Errorf("agent %s: %w", name, err)
		}
		return NewSimpleAgent(cfg, provider, registry)

	case config.AgentTypeOrchestra:
		workers := make(map[string]Agent, len(cfg.Workers))
		for _, workerName := range cfg.Workers {
			worker, err := build(workerName, deps, building)
			if err != nil {
				return nil, fmt.Errorf("agent %s: worker %s: %w", name, workerName, err)
			}
			workers[workerName] = worker
		}
		return NewOrchestraAgent(cfg, provider, workers)

	case config.AgentTypeWorkforce:
		workers := make([]Agent, 0, len(cfg.Workers))
		for _, workerName := range cfg.Workers {
			worker, err := build(workerName, deps, building)
			if err != nil {
				return nil, fmt.Errorf("agent %s: worker %s: %w", name, workerName, err)
			}
			workers = append(workers, worker)
		}
		return NewWorkforceAgent(cfg, provider, workers)

	default:
		return nil, fmt.Errorf("unsupported agent type: %s (supported: simple, orchestra, workforce)", cfg.Type)
	}
}

// buildToolRegistry assembles the agent's tool registry from its
// configured toolkits, with the dependency-injected middleware chain.
func buildToolRegistry(cfg *config.AgentConfig, deps Dependencies) (*tools.ToolRegistry, error) {
	registry := tools.NewToolRegistry(deps.Middleware...)

	for _, kitName := range cfg.Toolkits {
		kitCfg, ok := deps.Config.Toolkits[kitName]
		if !ok {
			return nil, fmt.Errorf("toolkit '%s' not found in configuration", kitName)
		}
		if !kitCfg.IsEnabled() {
			continue
		}

		var source tools.ToolSource
		switch kitCfg.Kind {
		case config.ToolkitKindMySQL:
			source = mysql.New(kitCfg.MySQL)
		case config.ToolkitKindInteraction:
			source = interaction.New(deps.Interactor)
		case config.ToolkitKindCommand:
			local := tools.NewLocalToolSource(kitName)
			if err := local.RegisterTool(tools.NewCommandTool(kitCfg.Command)); err != nil {
				return nil, err
			}
			source = local
		default:
			return nil, fmt.Errorf("unsupported toolkit kind: %s", kitCfg.Kind)
		}

		if err := registry.RegisterSource(source); err != nil {
			return nil, err
		}
	}

	return registry, nil
}
