package mysql

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecSQL_RejectsNonSelect(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})

	for _, sql := range []string{
		"UPDATE t SET x=1",
		"DELETE FROM t",
		"DROP TABLE t",
		"INSERT INTO t VALUES (1)",
	} {
		_, err := kit.ExecSQL(context.Background(), sql, "shop", 0)
		require.Error(t, err, sql)
		assert.True(t, IsValidationError(err), sql)
	}
}

func TestExecSQL_RejectsForUpdate(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})

	_, err := kit.ExecSQL(context.Background(), "SELECT * FROM t FOR UPDATE", "shop", 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestExecSQL_WrapsMissingLimit(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", "id\n1\n"}}}
	kit := newTestToolkit(runner)

	_, err := kit.ExecSQL(context.Background(), "SELECT * FROM orders;", "shop", 0)
	require.NoError(t, err)
	require.Len(t, runner.calls, 1)
	assert.Equal(t, "SELECT * FROM ( SELECT * FROM orders ) AS _sub LIMIT 2000", runner.calls[0])
}

func TestExecSQL_ExplicitLimitHonored(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", "id\n1\n"}}}
	kit := newTestToolkit(runner)

	_, err := kit.ExecSQL(context.Background(), "SELECT * FROM orders", "shop", 50)
	require.NoError(t, err)
	assert.Contains(t, runner.calls[0], "LIMIT 50")
}

func TestExecSQL_ExistingLimitUntouched(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", "id\n1\n"}}}
	kit := newTestToolkit(runner)

	_, err := kit.ExecSQL(context.Background(), "SELECT * FROM orders LIMIT 5", "shop", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM orders LIMIT 5", runner.calls[0])
}

func TestExecSQL_ParsesPreview(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{
		{"SELECT", "id\temail\n1\ta@example.com\n2\tb@example.com\n"},
	}}
	kit := newTestToolkit(runner)

	result, err := kit.ExecSQL(context.Background(), "SELECT id, email FROM users", "shop", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"id", "email"}, result.Columns)
	assert.Equal(t, [][]string{{"1", "a@example.com"}, {"2", "b@example.com"}}, result.Rows)
	assert.Equal(t, 2, result.RowCount)
}

func TestExecSQL_EmptyOutput(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})

	result, err := kit.ExecSQL(context.Background(), "SELECT id FROM users WHERE 1=0", "shop", 0)
	require.NoError(t, err)
	assert.Empty(t, result.Columns)
	assert.Empty(t, result.Rows)
	assert.Equal(t, 0, result.RowCount)
}

func TestExportTSV_WritesHeaderAndRows(t *testing.T) {
	raw := "id\temail\n1\ta@example.com\n2\tb@example.com\n3\tc@example.com\n"
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", raw}}}
	kit := newTestToolkit(runner)

	outPath := filepath.Join(t.TempDir(), "out.tsv")
	path, err := kit.ExportTSV(context.Background(), "SELECT id, email FROM users", outPath, "shop", 0)
	require.NoError(t, err)
	assert.Equal(t, outPath, path)

	data, err := os.ReadFile(outPath)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(string(data), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.Equal(t, "id\temail", lines[0])
}

func TestExportTSV_CreatesParentDirs(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", "id\n1\n"}}}
	kit := newTestToolkit(runner)

	outPath := filepath.Join(t.TempDir(), "nested", "deeper", "out.tsv")
	_, err := kit.ExportTSV(context.Background(), "SELECT id FROM users", outPath, "shop", 0)
	require.NoError(t, err)

	_, err = os.Stat(outPath)
	assert.NoError(t, err)
}

func TestExportTSV_LimitWrapsAlways(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", "id\n1\n"}}}
	kit := newTestToolkit(runner)

	outPath := filepath.Join(t.TempDir(), "out.tsv")
	_, err := kit.ExportTSV(context.Background(), "SELECT id FROM users LIMIT 99", outPath, "shop", 10)
	require.NoError(t, err)
	assert.Equal(t, "SELECT * FROM ( SELECT id FROM users LIMIT 99 ) AS _sub LIMIT 10", runner.calls[0])
}

func TestExportTSV_NoLimitNoWrap(t *testing.T) {
	runner := &fakeRunner{rules: []fakeRule{{"SELECT", "id\n1\n"}}}
	kit := newTestToolkit(runner)

	outPath := filepath.Join(t.TempDir(), "out.tsv")
	_, err := kit.ExportTSV(context.Background(), "SELECT id FROM users", outPath, "shop", 0)
	require.NoError(t, err)
	assert.Equal(t, "SELECT id FROM users", runner.calls[0])
}

func TestExportTSV_RejectsNonSelect(t *testing.T) {
	kit := newTestToolkit(&fakeRunner{})

	_, err := kit.ExportTSV(context.Background(), "DROP TABLE users", "/tmp/x.tsv", "shop", 0)
	require.Error(t, err)
	assert.True(t, IsValidationError(err))
}

func TestPrepareSelect_TrimsSemicolon(t *testing.T) {
	stmt, err := prepareSelect("  SELECT 1;  ")
	require.NoError(t, err)
	assert.Equal(t, "SELECT 1", stmt)
}

func TestPrepareSelect_CaseInsensitive(t *testing.T) {
	stmt, err := prepareSelect("select id from t")
	require.NoError(t, err)
	assert.Equal(t, "select id from t", stmt)
}
