package mysql

import (
	"context"
	"sync"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// Toolkit holds the connection, the per-database schema snapshot cache
// and the active table selection. A Toolkit belongs to one session; its
// state lives for the process (or session) lifetime with no eviction.
type Toolkit struct {
	mu           sync.Mutex
	cfg          *config.MySQLToolkitConfig
	runner       Runner
	conn         Conn
	snapshots    map[string]*Snapshot
	activeTables []string
	source       *tools.LocalToolSource
}

// Option customizes a Toolkit.
type Option func(*Toolkit)

// WithRunner replaces the CLI runner, mainly for tests.
func WithRunner(r Runner) Option {
	return func(t *Toolkit) {
		t.runner = r
	}
}

// New creates a Toolkit seeded from configuration. Connection fields
// left empty in the config are supplied later via SetConnection.
func New(cfg *config.MySQLToolkitConfig, opts ...Option) *Toolkit {
	if cfg == nil {
		cfg = &config.MySQLToolkitConfig{}
	}
	cfg.SetDefaults()

	t := &Toolkit{
		cfg:    cfg,
		runner: NewCLIRunner(cfg.Binary, cfg.MaxExecutionTime),
		conn: Conn{
			Host:     cfg.Host,
			Port:     cfg.Port,
			User:     cfg.User,
			Password: cfg.Password,
			Database: cfg.Database,
		},
		snapshots: make(map[string]*Snapshot),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

// SetConnection replaces the connection parameters and smoke-tests them
// with a trivial query.
func (t *Toolkit) SetConnection(ctx context.Context, conn Conn) (string, error) {
	if conn.Port == 0 {
		conn.Port = 3306
	}

	if _, err := t.runner.Run(ctx, conn, "SELECT 1;", RunOptions{}); err != nil {
		return "", err
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	return "mysql connection ok", nil
}

// Conn returns a copy of the current connection parameters.
func (t *Toolkit) Conn() Conn {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.conn
}

// SetActiveTables replaces the active table selection that scopes
// diagram generation and analysis.
func (t *Toolkit) SetActiveTables(tables []string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.activeTables = append([]string(nil), tables...)
	return t.activeTables
}

// Selection is the current database and active table selection.
type Selection struct {
	Database string   `json:"database"`
	Tables   []string `json:"tables"`
}

// ActiveSelection reports the current database and active tables.
func (t *Toolkit) ActiveSelection() Selection {
	t.mu.Lock()
	defer t.mu.Unlock()
	return Selection{
		Database: t.conn.Database,
		Tables:   append([]string(nil), t.activeTables...),
	}
}

// resolveDatabase picks the explicit argument over the connection's
// default database.
func (t *Toolkit) resolveDatabase(database string) (string, error) {
	if database != "" {
		return database, nil
	}

	t.mu.Lock()
	db := t.conn.Database
	t.mu.Unlock()

	if db == "" {
		return "", newValidationError("database is not set; call set_connection or pass database")
	}
	return db, nil
}

// snapshotFor returns the cached snapshot for db, introspecting when
// none is cached yet.
func (t *Toolkit) snapshotFor(ctx context.Context, db string) (*Snapshot, error) {
	t.mu.Lock()
	snapshot := t.snapshots[db]
	t.mu.Unlock()

	if snapshot != nil {
		return snapshot, nil
	}
	return t.Introspect(ctx, db)
}
