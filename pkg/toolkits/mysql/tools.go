package mysql

import (
	"context"
	"strconv"

	"github.com/schemaflow-ai/schemaflow/pkg/tools"
)

// GetName implements tools.ToolSource.
func (t *Toolkit) GetName() string {
	return "mysql"
}

// GetType implements tools.ToolSource.
func (t *Toolkit) GetType() string {
	return "toolkit"
}

// DiscoverTools implements tools.ToolSource.
func (t *Toolkit) DiscoverTools(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.source == nil {
		t.source = t.buildTools()
	}
	return nil
}

// ListTools implements tools.ToolSource.
func (t *Toolkit) ListTools() []tools.ToolInfo {
	t.mu.Lock()
	if t.source == nil {
		t.source = t.buildTools()
	}
	source := t.source
	t.mu.Unlock()
	return source.ListTools()
}

// GetTool implements tools.ToolSource.
func (t *Toolkit) GetTool(name string) (tools.Tool, bool) {
	t.mu.Lock()
	if t.source == nil {
		t.source = t.buildTools()
	}
	source := t.source
	t.mu.Unlock()
	return source.GetTool(name)
}

func (t *Toolkit) buildTools() *tools.LocalToolSource {
	source := tools.NewLocalToolSource("mysql")

	register := func(info tools.ToolInfo, fn func(ctx context.Context, args map[string]any) (any, error)) {
		// Names are unique by construction; registration cannot fail.
		_ = source.RegisterTool(tools.NewFuncTool(info, fn))
	}

	register(tools.ToolInfo{
		Name:        "set_connection",
		Description: "Set MySQL connection info and smoke-test it. A read-only user is recommended.",
		Parameters: []tools.ToolParameter{
			{Name: "host", Type: "string", Description: "Database host", Required: true},
			{Name: "port", Type: "integer", Description: "Database port", Required: true},
			{Name: "user", Type: "string", Description: "Database user", Required: true},
			{Name: "password", Type: "string", Description: "Database password", Required: true},
			{Name: "database", Type: "string", Description: "Optional default database/schema name"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		conn := Conn{
			Host:     stringArg(args, "host"),
			Port:     intArg(args, "port", 3306),
			User:     stringArg(args, "user"),
			Password: stringArg(args, "password"),
			Database: stringArg(args, "database"),
		}
		return t.SetConnection(ctx, conn)
	})

	register(tools.ToolInfo{
		Name:        "list_databases",
		Description: "List databases on the server, excluding system schemas by default.",
		Parameters: []tools.ToolParameter{
			{Name: "exclude_system", Type: "boolean", Description: "Exclude information_schema, performance_schema, sys and mysql", Default: true},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ListDatabases(ctx, boolArg(args, "exclude_system", true))
	})

	register(tools.ToolInfo{
		Name:        "pick_candidate_databases",
		Description: "Rank databases by table count to help pick one.",
		Parameters: []tools.ToolParameter{
			{Name: "top_k", Type: "integer", Description: "Number of candidates to return", Default: 10},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.PickCandidateDatabases(ctx, intArg(args, "top_k", 10))
	})

	register(tools.ToolInfo{
		Name:        "introspect_schema",
		Description: "Collect tables, columns and foreign keys from INFORMATION_SCHEMA, replacing any cached snapshot.",
		Parameters: []tools.ToolParameter{
			{Name: "database", Type: "string", Description: "Database to introspect (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.Introspect(ctx, stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "generate_er_mermaid",
		Description: "Generate a Mermaid erDiagram from the cached or freshly introspected schema, scoped to the given tables or the active selection.",
		Parameters: []tools.ToolParameter{
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
			{Name: "tables", Type: "array", Description: "Tables to include (defaults to the active selection, then all tables)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ERDiagram(ctx, stringArg(args, "database"), stringListArg(args, "tables"))
	})

	register(tools.ToolInfo{
		Name:        "list_tables",
		Description: "List table names in a database.",
		Parameters: []tools.ToolParameter{
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ListTables(ctx, stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "list_tables_like",
		Description: "List table names matching a pattern. SQL-style % wildcards are supported.",
		Parameters: []tools.ToolParameter{
			{Name: "pattern", Type: "string", Description: "Pattern to match against table names", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ListTablesLike(ctx, stringArg(args, "pattern"), stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "list_tables_detailed",
		Description: "List tables with approximate row counts from information_schema (fast, may be approximate).",
		Parameters: []tools.ToolParameter{
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ListTablesDetailed(ctx, stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "show_create_table",
		Description: "Show the CREATE TABLE statement for a table.",
		Parameters: []tools.ToolParameter{
			{Name: "table", Type: "string", Description: "Table name", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ShowCreateTable(ctx, stringArg(args, "table"), stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "show_indexes",
		Description: "Show the indexes of a table.",
		Parameters: []tools.ToolParameter{
			{Name: "table", Type: "string", Description: "Table name", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ShowIndexes(ctx, stringArg(args, "table"), stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "get_table_row_count",
		Description: "Count rows in a table with COUNT(*), falling back to the approximate catalog statistic.",
		Parameters: []tools.ToolParameter{
			{Name: "table", Type: "string", Description: "Table name", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.GetTableRowCount(ctx, stringArg(args, "table"), stringArg(args, "database"))
	})

	register(tools.ToolInfo{
		Name:        "find_semantic_tables",
		Description: "Find candidate tables by matching keywords against table and column names.",
		Parameters: []tools.ToolParameter{
			{Name: "keywords", Type: "array", Description: "Keywords to match", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
			{Name: "top_k", Type: "integer", Description: "Maximum number of candidates", Default: 5},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.FindSemanticTables(ctx, stringListArg(args, "keywords"), stringArg(args, "database"), intArg(args, "top_k", 5))
	})

	register(tools.ToolInfo{
		Name:        "set_active_tables",
		Description: "Set the active tables that scope analysis and ER generation.",
		Parameters: []tools.ToolParameter{
			{Name: "tables", Type: "array", Description: "Table names to focus on", Required: true},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		active := t.SetActiveTables(stringListArg(args, "tables"))
		return map[string]any{"ok": true, "active_tables": active}, nil
	})

	register(tools.ToolInfo{
		Name:        "get_active_selection",
		Description: "Report the current database and active table selection.",
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ActiveSelection(), nil
	})

	register(tools.ToolInfo{
		Name:        "export_query_tsv",
		Description: "Export a SELECT's result to a local TSV file, header included.",
		Parameters: []tools.ToolParameter{
			{Name: "sql", Type: "string", Description: "SELECT statement (no trailing semicolon needed)", Required: true},
			{Name: "out_path", Type: "string", Description: "Local file path to write", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
			{Name: "limit", Type: "integer", Description: "Optional row cap"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ExportTSV(ctx,
			stringArg(args, "sql"),
			stringArg(args, "out_path"),
			stringArg(args, "database"),
			intArg(args, "limit", 0))
	})

	register(tools.ToolInfo{
		Name:        "exec_sql",
		Description: "Execute a SELECT and return a bounded preview. Non-SELECT statements and FOR UPDATE are rejected; a LIMIT is applied when missing.",
		Parameters: []tools.ToolParameter{
			{Name: "sql", Type: "string", Description: "SELECT statement", Required: true},
			{Name: "database", Type: "string", Description: "Database name (defaults to the connection's database)"},
			{Name: "limit", Type: "integer", Description: "Row cap applied when the statement has no LIMIT", Default: 2000},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		return t.ExecSQL(ctx,
			stringArg(args, "sql"),
			stringArg(args, "database"),
			intArg(args, "limit", 0))
	})

	register(tools.ToolInfo{
		Name:        "save_session",
		Description: "Persist connection info (without password) and the active table selection to a local JSON file.",
		Parameters: []tools.ToolParameter{
			{Name: "path", Type: "string", Description: "File path (defaults to the configured session file)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		state, err := t.SaveSession(stringArg(args, "path"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": true, "path": stringArgOr(args, "path", t.cfg.SessionFile), "data": state}, nil
	})

	register(tools.ToolInfo{
		Name:        "load_session",
		Description: "Restore connection info and the active table selection from a local JSON file. The password must be re-entered via set_connection.",
		Parameters: []tools.ToolParameter{
			{Name: "path", Type: "string", Description: "File path (defaults to the configured session file)"},
		},
	}, func(ctx context.Context, args map[string]any) (any, error) {
		state, err := t.LoadSession(stringArg(args, "path"))
		if err != nil {
			return nil, err
		}
		return map[string]any{"ok": true, "data": state}, nil
	})

	return source
}

func stringArg(args map[string]any, key string) string {
	v, _ := args[key].(string)
	return v
}

func stringArgOr(args map[string]any, key, fallback string) string {
	if v := stringArg(args, key); v != "" {
		return v
	}
	return fallback
}

func intArg(args map[string]any, key string, fallback int) int {
	switch v := args[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	case string:
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func boolArg(args map[string]any, key string, fallback bool) bool {
	if v, ok := args[key].(bool); ok {
		return v
	}
	return fallback
}

func stringListArg(args map[string]any, key string) []string {
	switch v := args[key].(type) {
	case []string:
		return v
	case []any:
		var out []string
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
