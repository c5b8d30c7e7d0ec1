// Package guard enforces the analysis session's confirmation protocol:
// after a schema-affecting operation the user must confirm the new
// diagram before data reads resume, and arbitrary code execution is
// allowed only once a real data read has been observed.
package guard

import (
	"sync"
)

// State of one session's confirmation protocol.
type State int

const (
	// StateClean is the initial state: no schema change pending, no
	// data read observed yet.
	StateClean State = iota

	// StateSchemaChanged means the diagram or active table selection
	// changed and the user has not yet confirmed it.
	StateSchemaChanged

	// StateConfirmedPendingRead means the user confirmed the change
	// but no data read has happened since.
	StateConfirmedPendingRead

	// StateReadObserved means a real data read succeeded since the
	// last confirmation.
	StateReadObserved
)

func (s State) String() string {
	switch s {
	case StateClean:
		return "clean"
	case StateSchemaChanged:
		return "schema_changed"
	case StateConfirmedPendingRead:
		return "confirmed_pending_read"
	case StateReadObserved:
		return "read_observed"
	default:
		return "unknown"
	}
}

// Refusal codes, part of the wire contract with clients.
const (
	CodeERConfirmRequired = "GUARD_ER_CONFIRM_REQUIRED"
	CodeDBReadRequired    = "GUARD_DB_REQUIRED"
)

// Refusal explains why an operation was not executed.
type Refusal struct {
	Code    string `json:"error"`
	Message string `json:"message"`
}

// Guard is the per-session state machine. All methods are safe for
// concurrent use.
type Guard struct {
	mu    sync.Mutex
	state State
}

func New() *Guard {
	return &Guard{state: StateClean}
}

// State returns the current state.
func (g *Guard) State() State {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state
}

// NoteSchemaChange records a schema-affecting operation. Any prior
// confirmation or observed read is invalidated.
func (g *Guard) NoteSchemaChange() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateSchemaChanged
}

// Confirm records the user's answer to a schema confirmation prompt.
// Only meaningful while a schema change is pending; otherwise a no-op.
func (g *Guard) Confirm() {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateSchemaChanged {
		g.state = StateConfirmedPendingRead
	}
}

// NoteDataRead records a successful data read.
func (g *Guard) NoteDataRead() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.state = StateReadObserved
}

// CheckRead reports whether a data read may proceed, returning a
// refusal when it may not.
func (g *Guard) CheckRead() *Refusal {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.state == StateSchemaChanged {
		return &Refusal{
			Code:    CodeERConfirmRequired,
			Message: "Guard: ER change detected. Please confirm the ER diagram before reading data.",
		}
	}
	return nil
}

// CheckExec reports whether arbitrary code execution may proceed,
// returning a refusal when it may not.
func (g *Guard) CheckExec() *Refusal {
	g.mu.Lock()
	defer g.mu.Unlock()
	switch g.state {
	case StateSchemaChanged:
		return &Refusal{
			Code:    CodeERConfirmRequired,
			Message: "Guard: ER change detected. Please confirm the ER diagram before executing code.",
		}
	case StateClean, StateConfirmedPendingRead:
		return &Refusal{
			Code:    CodeDBReadRequired,
			Message: "Guard: A real DB read is required before executing code. Please call exec_sql or export_query_tsv first.",
		}
	default:
		return nil
	}
}
