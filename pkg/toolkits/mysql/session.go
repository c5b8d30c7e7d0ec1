package mysql

import (
	"encoding/json"
	"fmt"
	"os"
)

// SessionState is the persisted session shape. The password is never
// written; callers must re-supply it after a load.
type SessionState struct {
	Host         string   `json:"host"`
	Port         int      `json:"port"`
	User         string   `json:"user"`
	Database     string   `json:"database"`
	ActiveTables []string `json:"active_tables"`
}

// SaveSession writes the current connection info (without password) and
// active table selection to a JSON file.
func (t *Toolkit) SaveSession(path string) (*SessionState, error) {
	if path == "" {
		path = t.cfg.SessionFile
	}

	t.mu.Lock()
	state := &SessionState{
		Host:         t.conn.Host,
		Port:         t.conn.Port,
		User:         t.conn.User,
		Database:     t.conn.Database,
		ActiveTables: append([]string(nil), t.activeTables...),
	}
	t.mu.Unlock()

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encoding session: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return nil, fmt.Errorf("writing session file: %w", err)
	}

	return state, nil
}

// LoadSession restores connection info and the active table selection
// from a JSON file. The password is not part of the file, so
// SetConnection must still be called once per process.
func (t *Toolkit) LoadSession(path string) (*SessionState, error) {
	if path == "" {
		path = t.cfg.SessionFile
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newValidationError("session file not found: %s", path)
		}
		return nil, fmt.Errorf("reading session file: %w", err)
	}

	var state SessionState
	if err := json.Unmarshal(data, &state); err != nil {
		return nil, fmt.Errorf("decoding session file: %w", err)
	}

	t.mu.Lock()
	if state.Host != "" {
		t.conn.Host = state.Host
	}
	if state.Port != 0 {
		t.conn.Port = state.Port
	}
	if state.User != "" {
		t.conn.User = state.User
	}
	if state.Database != "" {
		t.conn.Database = state.Database
	}
	t.activeTables = append([]string(nil), state.ActiveTables...)
	t.mu.Unlock()

	return &state, nil
}
