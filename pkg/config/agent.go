package config

import "fmt"

// AgentType identifies the agent variant.
type AgentType string

const (
	// AgentTypeSimple is a single LLM loop with tools.
	AgentTypeSimple AgentType = "simple"

	// AgentTypeOrchestra plans with a lead LLM and delegates steps to
	// named worker agents sequentially.
	AgentTypeOrchestra AgentType = "orchestra"

	// AgentTypeWorkforce fans independent subtasks out to worker agents
	// concurrently.
	AgentTypeWorkforce AgentType = "workforce"
)

// AgentConfig configures an agent.
type AgentConfig struct {
	// Name is the display name of the agent.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// Description describes what the agent does.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Type selects the agent variant (simple, orchestra, workforce).
	Type AgentType `yaml:"type,omitempty" json:"type,omitempty"`

	// LLM references a configured LLM by name.
	LLM string `yaml:"llm,omitempty" json:"llm,omitempty"`

	// Instruction is the system prompt for the agent.
	Instruction string `yaml:"instruction,omitempty" json:"instruction,omitempty"`

	// Toolkits lists toolkit names this agent can use.
	Toolkits []string `yaml:"toolkits,omitempty" json:"toolkits,omitempty"`

	// Workers lists worker agent names (orchestra and workforce only).
	Workers []string `yaml:"workers,omitempty" json:"workers,omitempty"`

	// MaxTurns bounds the tool-calling loop.
	MaxTurns int `yaml:"max_turns,omitempty" json:"max_turns,omitempty"`

	// Streaming enables token-by-token streaming from the LLM.
	Streaming *bool `yaml:"streaming,omitempty" json:"streaming,omitempty"`
}

// SetDefaults applies default values.
func (c *AgentConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = AgentTypeSimple
	}
	if c.LLM == "" {
		c.LLM = "default"
	}
	if c.MaxTurns == 0 {
		c.MaxTurns = 20
	}
	if c.Streaming == nil {
		c.Streaming = BoolPtr(true)
	}
}

// Validate checks the agent configuration.
func (c *AgentConfig) Validate() error {
	switch c.Type {
	case AgentTypeSimple, AgentTypeOrchestra, AgentTypeWorkforce:
	default:
		return fmt.Errorf("invalid agent type %q (valid: simple, orchestra, workforce)", c.Type)
	}

	if c.Type != AgentTypeSimple && len(c.Workers) == 0 {
		return fmt.Errorf("%s agent requires at least one worker", c.Type)
	}

	if c.MaxTurns < 0 {
		return fmt.Errorf("max_turns cannot be negative")
	}

	return nil
}
