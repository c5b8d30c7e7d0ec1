package mysql

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// QueryResult is a bounded preview of a SELECT's output.
type QueryResult struct {
	Columns  []string   `json:"columns"`
	Rows     [][]string `json:"rows"`
	RowCount int        `json:"row_count"`
}

// prepareSelect validates a statement for read-only execution: trailing
// semicolon stripped, SELECT-only, no FOR UPDATE.
func prepareSelect(sql string) (string, error) {
	stmt := strings.TrimSuffix(strings.TrimSpace(sql), ";")
	upper := strings.ToUpper(stmt)

	if !strings.HasPrefix(upper, "SELECT") {
		return "", newValidationError("only SELECT is allowed")
	}
	if strings.Contains(upper, " FOR UPDATE") {
		return "", newValidationError("FOR UPDATE is not allowed")
	}
	return stmt, nil
}

// wrapWithLimit caps a statement's output by wrapping it in an outer
// SELECT with a LIMIT, leaving the inner statement untouched.
func wrapWithLimit(stmt string, limit int) string {
	return fmt.Sprintf("SELECT * FROM ( %s ) AS _sub LIMIT %d", stmt, limit)
}

// ExecSQL runs a SELECT and returns a structured preview. A LIMIT wrap
// is applied when the statement carries none; limit <= 0 selects the
// configured default.
func (t *Toolkit) ExecSQL(ctx context.Context, sql, database string, limit int) (*QueryResult, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return nil, err
	}

	stmt, err := prepareSelect(sql)
	if err != nil {
		return nil, err
	}

	if limit <= 0 {
		limit = t.cfg.DefaultLimit
	}
	if !strings.Contains(strings.ToUpper(stmt), " LIMIT ") {
		stmt = wrapWithLimit(stmt, limit)
	}

	raw, err := t.runner.Run(ctx, t.Conn(), stmt, RunOptions{Database: db, IncludeHeader: true})
	if err != nil {
		return nil, err
	}

	lines := nonEmptyLines(raw)
	if len(lines) == 0 {
		return &QueryResult{Columns: []string{}, Rows: [][]string{}, RowCount: 0}, nil
	}

	columns := strings.Split(lines[0], "\t")
	rows := make([][]string, 0, len(lines)-1)
	for _, line := range lines[1:] {
		rows = append(rows, strings.Split(line, "\t"))
	}

	return &QueryResult{Columns: columns, Rows: rows, RowCount: len(rows)}, nil
}

// ExportTSV runs a SELECT and writes the raw tab-separated output,
// header included, to outPath, creating parent directories as needed.
// A positive limit caps the row count via the same outer wrap ExecSQL
// uses; limit <= 0 exports the statement as-is. Returns the path
// written.
func (t *Toolkit) ExportTSV(ctx context.Context, sql, outPath, database string, limit int) (string, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return "", err
	}

	stmt, err := prepareSelect(sql)
	if err != nil {
		return "", err
	}
	if limit > 0 {
		stmt = wrapWithLimit(stmt, limit)
	}

	raw, err := t.runner.Run(ctx, t.Conn(), stmt, RunOptions{Database: db, IncludeHeader: true})
	if err != nil {
		return "", err
	}

	dir := filepath.Dir(outPath)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return "", fmt.Errorf("creating export directory: %w", err)
		}
	}
	if err := os.WriteFile(outPath, []byte(raw), 0o644); err != nil {
		return "", fmt.Errorf("writing export file: %w", err)
	}

	return outPath, nil
}
