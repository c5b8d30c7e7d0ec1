package mysql

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/schemaflow-ai/schemaflow/pkg/config"
)

// fakeRunner matches statements by substring, first rule wins.
type fakeRunner struct {
	rules []fakeRule
	calls []string
	err   error
}

type fakeRule struct {
	match  string
	output string
}

func (f *fakeRunner) Run(ctx context.Context, conn Conn, sql string, opts RunOptions) (string, error) {
	f.calls = append(f.calls, sql)
	if f.err != nil {
		return "", f.err
	}
	for _, rule := range f.rules {
		if strings.Contains(sql, rule.match) {
			return rule.output, nil
		}
	}
	return "", nil
}

func newTestToolkit(runner Runner) *Toolkit {
	return New(&config.MySQLToolkitConfig{
		Host:     "db.internal",
		Port:     3306,
		User:     "reader",
		Password: "secret",
		Database: "shop",
	}, WithRunner(runner))
}

// shopRules is scripted introspection output for a two-table schema.
func shopRules() []fakeRule {
	return []fakeRule{
		{"information_schema.tables WHERE", "orders\nusers\n"},
		{"information_schema.columns", strings.Join([]string{
			"orders\tid\tPRI\tbigint\tNO",
			"orders\tuser_id\tMUL\tbigint\tNO",
			"orders\tcreated_at\t\ttimestamp\tNO",
			"users\tid\tPRI\tint\tNO",
			"users\temail\tUNI\tvarchar\tNO",
			"",
		}, "\n")},
		{"key_column_usage", "orders\tuser_id\tusers\tid\n"},
	}
}

func TestIntrospect_BuildsSnapshot(t *testing.T) {
	runner := &fakeRunner{rules: shopRules()}
	kit := newTestToolkit(runner)

	snapshot, err := kit.Introspect(context.Background(), "")
	require.NoError(t, err)

	assert.Equal(t, "shop", snapshot.Database)
	assert.Equal(t, []string{"orders", "users"}, snapshot.Tables)
	require.Len(t, snapshot.Columns, 5)
	assert.Equal(t, Column{Table: "orders", Name: "id", Key: "PRI", Type: "bigint", Nullable: "NO"}, snapshot.Columns[0])
	require.Len(t, snapshot.ForeignKeys, 1)
	assert.Equal(t, ForeignKey{Table: "orders", Column: "user_id", RefTable: "users", RefColumn: "id"}, snapshot.ForeignKeys[0])
}

func TestIntrospect_ReplacesSnapshotWholesale(t *testing.T) {
	runner := &fakeRunner{rules: shopRules()}
	kit := newTestToolkit(runner)

	_, err := kit.Introspect(context.Background(), "shop")
	require.NoError(t, err)

	// Second introspection sees a shrunken schema; the old snapshot
	// must not leak through.
	runner.rules = []fakeRule{
		{"information_schema.tables WHERE", "users\n"},
		{"information_schema.columns", "users\tid\tPRI\tint\tNO\n"},
		{"key_column_usage", ""},
	}

	snapshot, err := kit.Introspect(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, snapshot.Tables)
	assert.Len(t, snapshot.Columns, 1)
	assert.Empty(t, snapshot.ForeignKeys)
}

func TestIntrospect_NoDatabase(t *testing.T) {
	kit := New(&config.MySQLToolkitConfig{Host: "db", User: "u", Password: "p"},
		WithRunner(&fakeRunner{}))

	_, err := kit.Introspect(context.Background(), "")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestListTables_UsesCache(t *testing.T) {
	runner := &fakeRunner{rules: shopRules()}
	kit := newTestToolkit(runner)

	_, err := kit.Introspect(context.Background(), "shop")
	require.NoError(t, err)
	callsAfterIntrospect := len(runner.calls)

	tables, err := kit.ListTables(context.Background(), "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders", "users"}, tables)
	assert.Equal(t, callsAfterIntrospect, len(runner.calls), "cached snapshot should not hit the CLI")
}

func TestListTablesLike(t *testing.T) {
	runner := &fakeRunner{rules: shopRules()}
	kit := newTestToolkit(runner)

	matched, err := kit.ListTablesLike(context.Background(), "user%", "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"users"}, matched)

	matched, err = kit.ListTablesLike(context.Background(), "ord", "shop")
	require.NoError(t, err)
	assert.Equal(t, []string{"orders"}, matched)

	_, err = kit.ListTablesLike(context.Background(), "[", "shop")
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestListDatabases(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{
		{"SHOW DATABASES", "information_schema\nmysql\nshop\nsys\nwarehouse\n"},
	}}
	kit := newTestToolkit(runner)

	dbs, err := kit.ListDatabases(context.Background(), true)
	require.NoError(t, err)
	assert.Equal(t, []string{"shop", "warehouse"}, dbs)

	dbs, err = kit.ListDatabases(context.Background(), false)
	require.NoError(t, err)
	assert.Len(t, dbs, 5)
}

func TestPickCandidateDatabases(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{
		{"GROUP BY table_schema", "shop\t42\nmysql\t31\nwarehouse\t7\nbroken\tNULL\n"},
	}}
	kit := newTestToolkit(runner)

	candidates, err := kit.PickCandidateDatabases(context.Background(), 10)
	require.NoError(t, err)
	assert.Equal(t, []DatabaseCandidate{
		{Database: "shop", Tables: 42},
		{Database: "warehouse", Tables: 7},
	}, candidates)
}

func TestFindSemanticTables(t *testing.T) {
	runner := &fakeRunner{rules: shopRules()}
	kit := newTestToolkit(runner)

	scored, err := kit.FindSemanticTables(context.Background(), []string{"user"}, "shop", 5)
	require.NoError(t, err)

	// "users" scores 3 for the name hit; "orders" scores 1 for its
	// user_id column.
	require.Len(t, scored, 2)
	assert.Equal(t, TableScore{Table: "users", Score: 3}, scored[0])
	assert.Equal(t, TableScore{Table: "orders", Score: 1}, scored[1])
}

func TestGetTableRowCount(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{
		{"COUNT(*)", "n\n1234\n"},
	}}
	kit := newTestToolkit(runner)

	count, err := kit.GetTableRowCount(context.Background(), "orders", "shop")
	require.NoError(t, err)
	assert.Equal(t, int64(1234), count)
}

func TestGetTableRowCount_FallsBackToCatalog(t *testing.T) {
	attempts := 0
	runner := &countingRunner{fn: func(sql string) (string, error) {
		attempts++
		if strings.Contains(sql, "COUNT(*)") {
			return "", fmt.Errorf("mysql CLI failed: table too large")
		}
		return "987\n", nil
	}}
	kit := newTestToolkit(runner)

	count, err := kit.GetTableRowCount(context.Background(), "huge", "shop")
	require.NoError(t, err)
	assert.Equal(t, int64(987), count)
	assert.Equal(t, 2, attempts)
}

type countingRunner struct {
	fn func(sql string) (string, error)
}

func (r *countingRunner) Run(ctx context.Context, conn Conn, sql string, opts RunOptions) (string, error) {
	return r.fn(sql)
}

func TestSetConnection_SmokeTests(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT 1", "1\n"}}}
	kit := newTestToolkit(runner)

	msg, err := kit.SetConnection(context.Background(), Conn{
		Host: "other.host", Port: 3307, User: "admin", Password: "pw", Database: "hr",
	})
	require.NoError(t, err)
	assert.Equal(t, "mysql connection ok", msg)
	assert.Equal(t, "hr", kit.Conn().Database)
	assert.Contains(t, runner.calls[len(runner.calls)-1], "SELECT 1")
}

func TestSetConnection_FailurePreservesOld(t *testing.T) {
	runner := &fakeRunner{err: fmt.Errorf("mysql CLI failed: access denied")}
	kit := newTestToolkit(runner)

	_, err := kit.SetConnection(context.Background(), Conn{
		Host: "bad.host", User: "x", Password: "y",
	})
	require.Error(t, err)
	assert.Equal(t, "db.internal", kit.Conn().Host)
}

func TestActiveSelection(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})

	active := kit.SetActiveTables([]string{"orders", "users"})
	assert.Equal(t, []string{"orders", "users"}, active)

	selection := kit.ActiveSelection()
	assert.Equal(t, "shop", selection.Database)
	assert.Equal(t, []string{"orders", "users"}, selection.Tables)
}

func TestToolSource_ExposesAllTools(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})
	require.NoError(t, kit.DiscoverTools(context.Background()))

	names := make(map[string]bool)
	for _, info := range kit.ListTools() {
		names[info.Name] = true
	}

	want := []string{
		"set_connection", "list_databases", "pick_candidate_databases",
		"introspect_schema", "generate_er_mermaid", "list_tables",
		"list_tables_like", "list_tables_detailed", "show_create_table",
		"show_indexes", "get_table_row_count", "find_semantic_tables",
		"set_active_tables", "get_active_selection", "export_query_tsv",
		"exec_sql", "save_session", "load_session",
	}
	for _, name := range want {
		assert.True(t, names[name], "missing tool %s", name)
	}
	assert.Len(t, names, len(want))
}

func TestToolSource_ExecTool(t *testing.T) {
	runner := &fakeRunner{rules: shopRules()}
	kit := newTestToolkit(runner)

	tool, ok := kit.GetTool("list_tables")
	require.True(t, ok)

	result, err := tool.Execute(context.Background(), map[string]any{"database": "shop"})
	require.NoError(t, err)
	assert.True(t, result.Success)
	assert.JSONEq(t, `["orders","users"]`, result.Content)
}
