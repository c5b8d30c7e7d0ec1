package mysql

import (
	"context"
	"fmt"
	"strings"
)

// ERDiagram renders a Mermaid erDiagram for db. Table filtering
// precedence: the explicit tables argument, then the active table
// selection, then every table in the snapshot. Names outside the
// snapshot are dropped silently. The result is wrapped in a fenced
// mermaid code block so chat frontends render it.
func (t *Toolkit) ERDiagram(ctx context.Context, database string, tables []string) (string, error) {
	db, err := t.resolveDatabase(database)
	if err != nil {
		return "", err
	}
	snapshot, err := t.snapshotFor(ctx, db)
	if err != nil {
		return "", err
	}

	include := tables
	if len(include) == 0 {
		t.mu.Lock()
		include = append([]string(nil), t.activeTables...)
		t.mu.Unlock()
	}
	if len(include) == 0 {
		include = snapshot.Tables
	}

	included := make(map[string]bool, len(include))
	var ordered []string
	for _, table := range include {
		if snapshot.HasTable(table) && !included[table] {
			included[table] = true
			ordered = append(ordered, table)
		}
	}

	entityNames := make(map[string]string, len(snapshot.Tables))
	for _, table := range snapshot.Tables {
		entityNames[table] = SanitizeIdentifier(table, "T")
	}

	lines := []string{"erDiagram"}

	// Every relationship renders as exactly-one to zero-or-many; the
	// catalog does not expose enough to infer tighter cardinalities.
	for _, fk := range snapshot.ForeignKeys {
		if !included[fk.RefTable] || !included[fk.Table] {
			continue
		}
		lines = append(lines, fmt.Sprintf("  %s ||--o{ %s : %s__TO__%s",
			entityNames[fk.RefTable],
			entityNames[fk.Table],
			SanitizeIdentifier(fk.Column, "C"),
			SanitizeIdentifier(fk.RefColumn, "C")))
	}

	colsByTable := snapshot.ColumnsByTable()
	for _, table := range ordered {
		lines = append(lines, fmt.Sprintf("  %s {", entityNames[table]))
		for _, col := range colsByTable[table] {
			suffix := ""
			if col.Key == "PRI" {
				suffix = " PK"
			}
			lines = append(lines, fmt.Sprintf("    %s %s%s",
				NormalizeType(col.Type), SanitizeIdentifier(col.Name, "C"), suffix))
		}
		lines = append(lines, "  }")
	}

	return "```mermaid\n" + strings.Join(lines, "\n") + "\n```", nil
}
