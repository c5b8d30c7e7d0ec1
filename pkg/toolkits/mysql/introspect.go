package mysql

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
)

var systemSchemas = map[string]bool{
	"information_schema": true,
	"performance_schema": true,
	"sys":                true,
	"mysql":              true,
}

// Introspect collects tables, columns and foreign keys for db from
// INFORMATION_SCHEMA and replaces any cached snapshot for it.
func (t *Toolkit) Introspect(ctx context.Context, database string) (*Snapshot, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return nil, err
	}
	conn := t.Conn()

	tablesSQL := fmt.Sprintf(
		"SELECT table_name FROM information_schema.tables WHERE table_schema = '%s' ORDER BY table_name;",
		escapeString(db))
	tablesRaw, err := t.runner.Run(ctx, conn, tablesSQL, RunOptions{})
	if err != nil {
		return nil, err
	}
	var tables []string
	for _, line := range nonEmptyLines(tablesRaw) {
		tables = append(tables, strings.TrimSpace(line))
	}

	columnsSQL := fmt.Sprintf(
		"SELECT table_name, column_name, column_key, data_type, is_nullable "+
			"FROM information_schema.columns WHERE table_schema = '%s' "+
			"ORDER BY table_name, ordinal_position;",
		escapeString(db))
	columnsRaw, err := t.runner.Run(ctx, conn, columnsSQL, RunOptions{})
	if err != nil {
		return nil, err
	}
	var columns []Column
	for _, line := range nonEmptyLines(columnsRaw) {
		parts := strings.Split(line, "\t")
		if len(parts) == 5 {
			columns = append(columns, Column{
				Table:    parts[0],
				Name:     parts[1],
				Key:      parts[2],
				Type:     parts[3],
				Nullable: parts[4],
			})
		}
	}

	fksSQL := fmt.Sprintf(
		"SELECT table_name, column_name, referenced_table_name, referenced_column_name "+
			"FROM information_schema.key_column_usage WHERE table_schema = '%s' "+
			"AND referenced_table_name IS NOT NULL;",
		escapeString(db))
	fksRaw, err := t.runner.Run(ctx, conn, fksSQL, RunOptions{})
	if err != nil {
		return nil, err
	}
	var fks []ForeignKey
	for _, line := range nonEmptyLines(fksRaw) {
		parts := strings.Split(line, "\t")
		if len(parts) == 4 {
			fks = append(fks, ForeignKey{
				Table:     parts[0],
				Column:    parts[1],
				RefTable:  parts[2],
				RefColumn: parts[3],
			})
		}
	}

	snapshot := &Snapshot{
		Database:    db,
		Tables:      tables,
		Columns:     columns,
		ForeignKeys: fks,
	}

	t.mu.Lock()
	t.snapshots[db] = snapshot
	t.mu.Unlock()

	return snapshot, nil
}

// ListDatabases lists databases on the server, excluding the system
// schemas unless told otherwise.
func (t *Toolkit) ListDatabases(ctx context.Context, excludeSystem bool) ([]string, error) {
	raw, err := t.runner.Run(ctx, t.Conn(), "SHOW DATABASES;", RunOptions{})
	if err != nil {
		return nil, err
	}

	var dbs []string
	for _, line := range nonEmptyLines(raw) {
		db := strings.TrimSpace(line)
		if excludeSystem && systemSchemas[db] {
			continue
		}
		dbs = append(dbs, db)
	}
	return dbs, nil
}

// DatabaseCandidate ranks a database by table count.
type DatabaseCandidate struct {
	Database string `json:"database"`
	Tables   int    `json:"tables"`
}

// PickCandidateDatabases ranks databases by table count, skipping
// system schemas.
func (t *Toolkit) PickCandidateDatabases(ctx context.Context, topK int) ([]DatabaseCandidate, error) {
	if topK <= 0 {
		topK = 10
	}

	sql := fmt.Sprintf(
		"SELECT table_schema, COUNT(*) AS n FROM information_schema.tables "+
			"GROUP BY table_schema ORDER BY n DESC LIMIT %d;", topK)
	raw, err := t.runner.Run(ctx, t.Conn(), sql, RunOptions{})
	if err != nil {
		return nil, err
	}

	var candidates []DatabaseCandidate
	for _, line := range nonEmptyLines(raw) {
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			continue
		}
		count, err := strconv.Atoi(parts[1])
		if err != nil {
			continue
		}
		if systemSchemas[parts[0]] {
			continue
		}
		candidates = append(candidates, DatabaseCandidate{Database: parts[0], Tables: count})
	}
	return candidates, nil
}

// ListTables returns the snapshot's table names, introspecting first if
// the database has not been seen yet.
func (t *Toolkit) ListTables(ctx context.Context, database string) ([]string, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return nil, err
	}
	snapshot, err := t.snapshotFor(ctx, db)
	if err != nil {
		return nil, err
	}
	return snapshot.Tables, nil
}

// ListTablesLike filters table names with a pattern. SQL-style %
// wildcards are translated to regular-expression wildcards; the match
// is unanchored.
func (t *Toolkit) ListTablesLike(ctx context.Context, pattern, database string) ([]string, error) {
	regex, err := regexp.Compile(strings.ReplaceAll(pattern, "%", ".*"))
	if err != nil {
		return nil, newValidationError("invalid table pattern %q: %v", pattern, err)
	}

	tables, err := t.ListTables(ctx, database)
	if err != nil {
		return nil, err
	}

	var matched []string
	for _, table := range tables {
		if regex.MatchString(table) {
			matched = append(matched, table)
		}
	}
	return matched, nil
}

// TableStat pairs a table with its approximate row count. Rows holds
// the raw string when the catalog value is not an integer (NULL for
// views, for example).
type TableStat struct {
	Table string `json:"table"`
	Rows  any    `json:"rows"`
}

// ListTablesDetailed lists tables with approximate row counts from
// information_schema. Counts come from table statistics and may lag the
// real values.
func (t *Toolkit) ListTablesDetailed(ctx context.Context, database string) ([]TableStat, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return nil, err
	}

	sql := fmt.Sprintf(
		"SELECT table_name, table_rows FROM information_schema.tables "+
			"WHERE table_schema = '%s' ORDER BY table_rows DESC, table_name;",
		escapeString(db))
	raw, err := t.runner.Run(ctx, t.Conn(), sql, RunOptions{})
	if err != nil {
		return nil, err
	}

	var stats []TableStat
	for _, line := range nonEmptyLines(raw) {
		parts := strings.Split(line, "\t")
		if len(parts) != 2 {
			continue
		}
		if count, err := strconv.ParseInt(parts[1], 10, 64); err == nil {
			stats = append(stats, TableStat{Table: parts[0], Rows: count})
		} else {
			stats = append(stats, TableStat{Table: parts[0], Rows: parts[1]})
		}
	}
	return stats, nil
}

// ShowCreateTable returns the raw SHOW CREATE TABLE output including
// the header row.
func (t *Toolkit) ShowCreateTable(ctx context.Context, table, database string) (string, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return "", err
	}
	sql := fmt.Sprintf("SHOW CREATE TABLE `%s`.`%s`;", db, table)
	return t.runner.Run(ctx, t.Conn(), sql, RunOptions{Database: db, IncludeHeader: true})
}

// ShowIndexes returns the raw SHOW INDEX output including the header
// row.
func (t *Toolkit) ShowIndexes(ctx context.Context, table, database string) (string, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return "", err
	}
	sql := fmt.Sprintf("SHOW INDEX FROM `%s`.`%s`;", db, table)
	return t.runner.Run(ctx, t.Conn(), sql, RunOptions{Database: db, IncludeHeader: true})
}

// GetTableRowCount counts rows with COUNT(*), falling back to the
// approximate information_schema statistic when the exact count fails.
// Returns -1 when neither source yields a number.
func (t *Toolkit) GetTableRowCount(ctx context.Context, table, database string) (int64, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return -1, err
	}
	conn := t.Conn()

	countSQL := fmt.Sprintf("SELECT COUNT(*) AS n FROM `%s`.`%s`", db, table)
	raw, err := t.runner.Run(ctx, conn, countSQL, RunOptions{Database: db, IncludeHeader: true})
	if err == nil {
		lines := nonEmptyLines(raw)
		if len(lines) >= 2 {
			fields := strings.Split(lines[1], "\t")
			if count, err := strconv.ParseInt(fields[0], 10, 64); err == nil {
				return count, nil
			}
		}
		return -1, nil
	}

	// COUNT(*) can be too heavy on very large tables.
	approxSQL := fmt.Sprintf(
		"SELECT table_rows FROM information_schema.tables "+
			"WHERE table_schema = '%s' AND table_name = '%s'",
		escapeString(db), escapeString(table))
	raw, err = t.runner.Run(ctx, conn, approxSQL, RunOptions{})
	if err != nil {
		return -1, err
	}
	lines := nonEmptyLines(raw)
	if len(lines) == 0 {
		return -1, nil
	}
	count, parseErr := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 64)
	if parseErr != nil {
		return -1, nil
	}
	return count, nil
}

// TableScore is a semantic match candidate.
type TableScore struct {
	Table string `json:"table"`
	Score int    `json:"score"`
}

// FindSemanticTables scores tables against keywords: +3 per keyword
// found in the table name, +1 per keyword found in any column name.
// Only tables with a positive score are returned, best first.
func (t *Toolkit) FindSemanticTables(ctx context.Context, keywords []string, database string, topK int) ([]TableScore, error) {
	if topK <= 0 {
		topK = 5
	}

	db, err := t.resolveDatabase(database)
	if err != nil {
		return nil, err
	}
	snapshot, err := t.snapshotFor(ctx, db)
	if err != nil {
		return nil, err
	}

	colsByTable := make(map[string][]string)
	for _, col := range snapshot.Columns {
		colsByTable[col.Table] = append(colsByTable[col.Table], col.Name)
	}

	var scored []TableScore
	for _, table := range snapshot.Tables {
		score := 0
		nameLower := strings.ToLower(table)
		for _, kw := range keywords {
			k := strings.ToLower(kw)
			if strings.Contains(nameLower, k) {
				score += 3
			}
			for _, col := range colsByTable[table] {
				if strings.Contains(strings.ToLower(col), k) {
					score++
				}
			}
		}
		if score > 0 {
			scored = append(scored, TableScore{Table: table, Score: score})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}
