package history

import (
	"errors"
	"log/slog"

	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/notify"
)

// DefaultLimit is the undo depth kept when none is configured.
const DefaultLimit = 100

var (
	ErrNilTransaction   = errors.New("nil transaction")
	ErrAlreadyCommitted = errors.New("transaction already committed")
)

// State is the history summary published after every change.
type State struct {
	CanUndo   bool `json:"canUndo"`
	CanRedo   bool `json:"canRedo"`
	UndoDepth int  `json:"undoDepth"`
	RedoDepth int  `json:"redoDepth"`
}

// Manager keeps bounded undo and redo stacks of transactions against one
// graph. Committing a new transaction always clears the redo stack.
type Manager struct {
	graph *model.Graph
	limit int

	undo []*Transaction // oldest..newest
	redo []*Transaction

	states notify.Feed[State]
}

// NewManager creates a manager for g. A limit below 1 means DefaultLimit.
func NewManager(g *model.Graph, limit int) *Manager {
	if limit < 1 {
		limit = DefaultLimit
	}
	return &Manager{graph: g, limit: limit}
}

// Graph returns the managed graph.
func (m *Manager) Graph() *model.Graph {
	return m.graph
}

// Commit applies tx, pushes it onto the undo stack and clears redo. The
// transaction is pushed even when some of its operations failed; the
// joined operation errors are returned for diagnostics.
func (m *Manager) Commit(tx *Transaction) error {
	if tx == nil {
		return ErrNilTransaction
	}
	if tx.committed {
		return ErrAlreadyCommitted
	}
	tx.committed = true

	err := tx.Do(m.graph)

	m.undo = append(m.undo, tx)
	if len(m.undo) > m.limit {
		dropped := m.undo[0]
		m.undo[0] = nil
		m.undo = m.undo[1:]
		slog.Debug("history limit reached, dropping oldest transaction", "name", dropped.Name, "limit", m.limit)
	}
	clear(m.redo)
	m.redo = m.redo[:0]

	m.changed()
	return err
}

// Undo reverts the most recent transaction. ok is false when there was
// nothing to undo.
func (m *Manager) Undo() (ok bool, err error) {
	if len(m.undo) == 0 {
		return false, nil
	}
	tx := m.undo[len(m.undo)-1]
	m.undo[len(m.undo)-1] = nil
	m.undo = m.undo[:len(m.undo)-1]

	err = tx.Undo(m.graph)
	m.redo = append(m.redo, tx)

	m.changed()
	return true, err
}

// Redo re-applies the most recently undone transaction. ok is false when
// there was nothing to redo.
func (m *Manager) Redo() (ok bool, err error) {
	if len(m.redo) == 0 {
		return false, nil
	}
	tx := m.redo[len(m.redo)-1]
	m.redo[len(m.redo)-1] = nil
	m.redo = m.redo[:len(m.redo)-1]

	err = tx.Do(m.graph)
	m.undo = append(m.undo, tx)

	m.changed()
	return true, err
}

func (m *Manager) CanUndo() bool { return len(m.undo) > 0 }
func (m *Manager) CanRedo() bool { return len(m.redo) > 0 }

// Len returns the number of undoable transactions.
func (m *Manager) Len() int { return len(m.undo) }

// Limit returns the maximum undo depth.
func (m *Manager) Limit() int { return m.limit }

// State returns the current stack summary.
func (m *Manager) State() State {
	return State{
		CanUndo:   m.CanUndo(),
		CanRedo:   m.CanRedo(),
		UndoDepth: len(m.undo),
		RedoDepth: len(m.redo),
	}
}

// UndoNames lists undoable transaction names, oldest first.
func (m *Manager) UndoNames() []string {
	return names(m.undo)
}

// RedoNames lists redoable transaction names, next redo last.
func (m *Manager) RedoNames() []string {
	return names(m.redo)
}

// Subscribe registers fn to receive the stack summary after every commit,
// undo and redo.
func (m *Manager) Subscribe(fn func(State)) (cancel func()) {
	return m.states.Subscribe(fn)
}

// Reset drops both stacks without touching the graph. Used after the whole
// graph was replaced, when old transactions no longer apply.
func (m *Manager) Reset() {
	m.undo = nil
	m.redo = nil
	m.states.Send(m.State())
}

func (m *Manager) changed() {
	m.graph.Publish()
	m.states.Send(m.State())
}

func names(txs []*Transaction) []string {
	out := make([]string, len(txs))
	for i, tx := range txs {
		out[i] = tx.Name
	}
	return out
}
