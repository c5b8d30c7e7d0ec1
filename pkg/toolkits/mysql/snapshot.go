package mysql

// Column describes one column of an introspected table.
type Column struct {
	Table    string `json:"table"`
	Name     string `json:"name"`
	Key      string `json:"key"`
	Type     string `json:"type"`
	Nullable string `json:"nullable"`
}

// ForeignKey records one referential constraint.
type ForeignKey struct {
	Table     string `json:"table"`
	Column    string `json:"column"`
	RefTable  string `json:"ref_table"`
	RefColumn string `json:"ref_column"`
}

// Snapshot is the introspected schema of a single database. Snapshots
// are cached per database name and replaced wholesale when the same
// database is introspected again.
type Snapshot struct {
	Database    string       `json:"database"`
	Tables      []string     `json:"tables"`
	Columns     []Column     `json:"columns"`
	ForeignKeys []ForeignKey `json:"fks"`
}

// HasTable reports whether the snapshot contains the named table.
func (s *Snapshot) HasTable(name string) bool {
	for _, t := range s.Tables {
		if t == name {
			return true
		}
	}
	return false
}

// ColumnsByTable groups the snapshot's columns by table name,
// preserving catalog order within each table.
func (s *Snapshot) ColumnsByTable() map[string][]Column {
	grouped := make(map[string][]Column)
	for _, col := range s.Columns {
		grouped[col.Table] = append(grouped[col.Table], col)
	}
	return grouped
}
