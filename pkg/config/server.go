package config

import "fmt"

// SessionBackend identifies the chat-session persistence backend.
type SessionBackend string

const (
	SessionBackendMemory SessionBackend = "memory"
	SessionBackendMySQL  SessionBackend = "mysql"
	SessionBackendSQLite SessionBackend = "sqlite"
)

// SessionStoreConfig configures chat session persistence.
type SessionStoreConfig struct {
	// Backend selects the storage backend (memory, mysql, sqlite).
	Backend SessionBackend `yaml:"backend,omitempty" json:"backend,omitempty"`

	// Host of the database server (mysql).
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port of the database server (mysql).
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// User for authentication (mysql).
	User string `yaml:"user,omitempty" json:"user,omitempty"`

	// Password for authentication (mysql). Supports ${VAR} expansion.
	Password string `yaml:"password,omitempty" json:"password,omitempty"`

	// Database name (mysql) or file path (sqlite).
	Database string `yaml:"database,omitempty" json:"database,omitempty"`

	// MaxConns bounds the connection pool.
	MaxConns int `yaml:"max_conns,omitempty" json:"max_conns,omitempty"`
}

// SetDefaults applies default values.
func (c *SessionStoreConfig) SetDefaults() {
	if c.Backend == "" {
		c.Backend = SessionBackendMemory
	}
	if c.Backend == SessionBackendMySQL && c.Port == 0 {
		c.Port = 3306
	}
	if c.Backend == SessionBackendSQLite && c.Database == "" {
		c.Database = ".schemaflow/sessions.db"
	}
	if c.MaxConns == 0 {
		c.MaxConns = 10
	}
}

// Validate checks the session store configuration.
func (c *SessionStoreConfig) Validate() error {
	switch c.Backend {
	case SessionBackendMemory, SessionBackendMySQL, SessionBackendSQLite:
	default:
		return fmt.Errorf("invalid session backend %q (valid: memory, mysql, sqlite)", c.Backend)
	}

	if c.Backend == SessionBackendMySQL {
		if c.Host == "" || c.User == "" || c.Database == "" {
			return fmt.Errorf("mysql session backend requires host, user, and database")
		}
	}

	return nil
}

// DSN builds the driver connection string.
func (c *SessionStoreConfig) DSN() string {
	switch c.Backend {
	case SessionBackendMySQL:
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?parseTime=true", c.User, c.Password, c.Host, c.Port, c.Database)
	case SessionBackendSQLite:
		return c.Database
	default:
		return ""
	}
}

// ServerConfig configures the web chat server.
type ServerConfig struct {
	// Host to bind.
	Host string `yaml:"host,omitempty" json:"host,omitempty"`

	// Port to listen on.
	Port int `yaml:"port,omitempty" json:"port,omitempty"`

	// DefaultAgent is the agent served to new connections when the
	// client does not name one.
	DefaultAgent string `yaml:"default_agent,omitempty" json:"default_agent,omitempty"`

	// Sessions configures chat session persistence.
	Sessions *SessionStoreConfig `yaml:"sessions,omitempty" json:"sessions,omitempty"`
}

// SetDefaults applies default values.
func (c *ServerConfig) SetDefaults() {
	if c.Host == "" {
		c.Host = "127.0.0.1"
	}
	if c.Port == 0 {
		c.Port = 8848
	}
	if c.Sessions == nil {
		c.Sessions = &SessionStoreConfig{}
	}
	c.Sessions.SetDefaults()
}

// Validate checks the server configuration.
func (c *ServerConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("port out of range: %d", c.Port)
	}
	if c.Sessions != nil {
		if err := c.Sessions.Validate(); err != nil {
			return fmt.Errorf("sessions: %w", err)
		}
	}
	return nil
}

// Address returns the listen address.
func (c *ServerConfig) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}
