// Package config defines the schemaflow configuration model.
//
// Configuration is loaded from YAML (JSON fallback) with environment
// variable expansion, decoded via mapstructure, then run through the
// SetDefaults + Validate pipeline.
package config

import "fmt"

// Config is the root configuration.
type Config struct {
	// Name identifies this deployment.
	Name string `yaml:"name,omitempty" json:"name,omitempty"`

	// LLMs maps LLM names to provider configurations.
	LLMs map[string]*LLMConfig `yaml:"llms,omitempty" json:"llms,omitempty"`

	// Agents maps agent names to agent configurations.
	Agents map[string]*AgentConfig `yaml:"agents,omitempty" json:"agents,omitempty"`

	// Toolkits maps toolkit names to toolkit configurations.
	Toolkits map[string]*ToolkitConfig `yaml:"toolkits,omitempty" json:"toolkits,omitempty"`

	// Server configures the web chat server.
	Server *ServerConfig `yaml:"server,omitempty" json:"server,omitempty"`

	// Logger configures logging.
	Logger *LoggerConfig `yaml:"logger,omitempty" json:"logger,omitempty"`
}

// SetDefaults applies default values throughout the tree.
func (c *Config) SetDefaults() {
	c.initializeMaps()

	if c.Server == nil {
		c.Server = &ServerConfig{}
	}
	c.Server.SetDefaults()

	if c.Logger == nil {
		c.Logger = &LoggerConfig{}
	}
	c.Logger.SetDefaults()

	for _, llm := range c.LLMs {
		llm.SetDefaults()
	}
	for _, agent := range c.Agents {
		agent.SetDefaults()
	}
	for _, tk := range c.Toolkits {
		tk.SetDefaults()
	}
}

func (c *Config) initializeMaps() {
	if c.LLMs == nil {
		c.LLMs = make(map[string]*LLMConfig)
	}
	if c.Agents == nil {
		c.Agents = make(map[string]*AgentConfig)
	}
	if c.Toolkits == nil {
		c.Toolkits = make(map[string]*ToolkitConfig)
	}
}

// Validate checks the configuration tree.
func (c *Config) Validate() error {
	for name, llm := range c.LLMs {
		if err := llm.Validate(); err != nil {
			return fmt.Errorf("llm %q: %w", name, err)
		}
	}

	for name, agent := range c.Agents {
		if err := agent.Validate(); err != nil {
			return fmt.Errorf("agent %q: %w", name, err)
		}
		if agent.LLM != "" {
			if _, ok := c.LLMs[agent.LLM]; !ok {
				return fmt.Errorf("agent %q references unknown llm %q", name, agent.LLM)
			}
		}
		for _, tk := range agent.Toolkits {
			if _, ok := c.Toolkits[tk]; !ok {
				return fmt.Errorf("agent %q references unknown toolkit %q", name, tk)
			}
		}
		for _, worker := range agent.Workers {
			if _, ok := c.Agents[worker]; !ok {
				return fmt.Errorf("agent %q references unknown worker agent %q", name, worker)
			}
		}
	}

	for name, tk := range c.Toolkits {
		if err := tk.Validate(); err != nil {
			return fmt.Errorf("toolkit %q: %w", name, err)
		}
	}

	if c.Server != nil {
		if err := c.Server.Validate(); err != nil {
			return fmt.Errorf("server: %w", err)
		}
		if c.Server.DefaultAgent != "" {
			if _, ok := c.Agents[c.Server.DefaultAgent]; !ok {
				return fmt.Errorf("server: default_agent %q is not a configured agent", c.Server.DefaultAgent)
			}
		}
	}

	return nil
}

// ListAgents returns configured agent names.
func (c *Config) ListAgents() []string {
	names := make([]string, 0, len(c.Agents))
	for name := range c.Agents {
		names = append(names, name)
	}
	return names
}

// BoolPtr returns a pointer to b.
func BoolPtr(b bool) *bool {
	return &b
}
