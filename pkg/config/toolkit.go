package config

import (
	"fmt"
	"time"
)

// ToolkitKind identifies the toolkit type.
type ToolkitKind string

const (
	// ToolkitKindMySQL is the MySQL schema exploration toolkit.
	ToolkitKindMySQL ToolkitKind = "mysql"

	// ToolkitKindInteraction exposes the ask_user tool.
	ToolkitKindInteraction ToolkitKind = "interaction"

	// ToolkitKindCommand is the shell command execution toolkit.
	ToolkitKindCommand ToolkitKind = "command"
)

// ToolkitConfig configures a toolkit.
type ToolkitConfig struct {
	// Kind of toolkit (mysql, interaction, command).
	Kind ToolkitKind `yaml:"kind,omitempty" json:"kind,omitempty"`

	// Enabled controls whether the toolkit is active.
	Enabled *bool `yaml:"enabled,omitempty" json:"enabled,omitempty"`

	// Description of the toolkit.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// MySQL toolkit settings (for kind: mysql).
	MySQL *MySQLToolkitConfig `yaml:"mysql,omitempty" json:"mysql,omitempty"`

	// Command toolkit settings (for kind: command).
	Command *CommandToolkitConfig `yaml:"command,omitempty" json:"command,omitempty"`
}

// MySQLToolkitConfig configures the MySQL schema toolkit.
//
// The toolkit shells out to the mysql CLI; no Go driver connection is
// held for exploration queries. The password is delivered to the child
// process via the MYSQL_PWD environment variable, never as an argument.
type MySQLToolkitConfig struct {
	// Host of the database server.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port of the database server.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// User for authentication (read-only recommended).
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// Password for authentication. Supports ${VAR} expansion.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Database is the default database/schema name.
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// Binary is the mysql client executable.
	Binary string `yaml:"binary,omitempty" json:"binary,omitempty"`

	// MaxExecutionTime bounds a single CLI invocation.
	MaxExecutionTime time.Duration `yaml:"max_execution_time,omitempty" json:"max_execution_time,omitempty"`

	// DefaultLimit is applied to SELECT statements lacking a LIMIT clause.
	DefaultLimit int `yaml:"default_limit,omitempty" json:"default_limit,omitempty"`

	// SessionFile is where the persisted session (without password) lives.
	SessionFile string `yaml:"session_file,omitempty" json:"session_file,omitempty"`
}

// SetDefaults applies default values.
func (c *MySQLToolkitConfig) SetDefaults() {
	if c.Port == 0 {
		c.Port = 3306
	}
	if c.Binary == "" {
		c.Binary = "mysql"
	}
	if c.MaxExecutionTime == 0 {
		c.MaxExecutionTime = 60 * time.Second
	}
	if c.DefaultLimit == 0 {
		c.DefaultLimit = 2000
	}
	if c.SessionFile == "" {
		c.SessionFile = ".schemaflow_mysql_session.json"
	}
}

// CommandToolkitConfig configures the command execution toolkit.
type CommandToolkitConfig struct {
	// AllowedCommands is a whitelist of allowed base commands.
	AllowedCommands []string `yaml:"allowed_commands,omitempty" json:"allowed_commands,omitempty"`

	// WorkingDirectory for command execution.
	WorkingDirectory string `yaml:"working_directory,omitempty" json:"working_directory,omitempty"`

	// MaxExecutionTime limits command execution duration.
	MaxExecutionTime time.Duration `yaml:"max_execution_time,omitempty" json:"max_execution_time,omitempty"`
}

// SetDefaults applies default values.
func (c *CommandToolkitConfig) SetDefaults() {
	if c.WorkingDirectory == "" {
		c.WorkingDirectory = "./"
	}
	if c.MaxExecutionTime == 0 {
		c.MaxExecutionTime = 30 * time.Second
	}
}

// SetDefaults applies default values.
func (c *ToolkitConfig) SetDefaults() {
	if c.Kind == "" {
		c.Kind = ToolkitKindMySQL
	}
	if c.Enabled == nil {
		c.Enabled = BoolPtr(true)
	}

	switch c.Kind {
	case ToolkitKindMySQL:
		if c.MySQL == nil {
			c.MySQL = &MySQLToolkitConfig{}
		}
		c.MySQL.SetDefaults()
	case ToolkitKindCommand:
		if c.Command == nil {
			c.Command = &CommandToolkitConfig{}
		}
		c.Command.SetDefaults()
	}
}

// Validate checks the toolkit configuration.
func (c *ToolkitConfig) Validate() error {
	switch c.Kind {
	case ToolkitKindMySQL, ToolkitKindInteraction, ToolkitKindCommand:
	default:
		return fmt.Errorf("invalid toolkit kind %q (valid: mysql, interaction, command)", c.Kind)
	}

	if c.Kind == ToolkitKindMySQL && c.MySQL != nil {
		if c.MySQL.Port < 0 || c.MySQL.Port > 65535 {
			return fmt.Errorf("mysql port out of range: %d", c.MySQL.Port)
		}
		if c.MySQL.DefaultLimit < 0 {
			return fmt.Errorf("mysql default_limit cannot be negative")
		}
	}

	return nil
}

// IsEnabled returns whether the toolkit is enabled.
func (c *ToolkitConfig) IsEnabled() bool {
	return c.Enabled == nil || *c.Enabled
}
