package history

import (
	"errors"
	"fmt"
	"testing"

	"github.com/eukleia/eukleia/internal/model"
)

func commit(t *testing.T, m *Manager, tx *Transaction) error {
	t.Helper()
	return m.Commit(tx)
}

func mustCommit(t *testing.T, m *Manager, tx *Transaction) {
	t.Helper()
	if err := m.Commit(tx); err != nil {
		t.Fatalf("Commit(%s): %v", tx.Name, err)
	}
}

func assertCounts(t *testing.T, g *model.Graph, nodes, elements int) {
	t.Helper()
	if g.NodeCount() != nodes || g.ElementCount() != elements {
		t.Fatalf("expected %d nodes/%d elements, got %d/%d", nodes, elements, g.NodeCount(), g.ElementCount())
	}
}

func TestEndToEndScenario(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, 0)

	tx := NewTransaction("Add A")
	a := tx.AddNode(0, 0)
	mustCommit(t, m, tx)

	tx = NewTransaction("Add B")
	b := tx.AddNode(100, 0)
	mustCommit(t, m, tx)

	na, _ := g.Node(a)
	nb, _ := g.Node(b)
	if na.Name != 1 || nb.Name != 2 {
		t.Fatalf("expected names 1 and 2, got %d and %d", na.Name, nb.Name)
	}

	tx = NewTransaction("Connect")
	el := tx.AddElement(a, b)
	mustCommit(t, m, tx)
	assertCounts(t, g, 2, 1)

	tx = NewTransaction("Remove A")
	tx.RemoveNode(a)
	err := commit(t, m, tx)
	if !errors.Is(err, model.ErrIntegrityViolation) {
		t.Fatalf("expected ErrIntegrityViolation, got %v", err)
	}
	assertCounts(t, g, 2, 1)

	tx = NewTransaction("Remove element")
	tx.RemoveElement(el)
	mustCommit(t, m, tx)

	tx = NewTransaction("Remove A again")
	tx.RemoveNode(a)
	mustCommit(t, m, tx)
	assertCounts(t, g, 1, 0)

	for i := 0; i < 2; i++ {
		ok, err := m.Undo()
		if !ok || err != nil {
			t.Fatalf("Undo #%d: ok=%v err=%v", i+1, ok, err)
		}
	}
	assertCounts(t, g, 2, 1)

	if got, _ := g.Node(a); got != na {
		t.Fatal("expected undo to restore the original node instance")
	}
}

func TestUndoRestoresSnapshot(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, 0)

	setup := NewTransaction("setup")
	a := setup.AddNode(0, 0)
	b := setup.AddNode(10, 0)
	c := setup.AddNode(10, 10)
	ab := setup.AddElement(a, b)
	setup.AddElement(b, c)
	mustCommit(t, m, setup)

	tests := []struct {
		name  string
		build func(tx *Transaction)
	}{
		{"add node and element", func(tx *Transaction) {
			d := tx.AddNode(0, 10)
			tx.AddElement(c, d)
		}},
		{"remove element then node", func(tx *Transaction) {
			tx.RemoveElement(ab)
			tx.RemoveNode(a)
		}},
		{"mixed with failure", func(tx *Transaction) {
			tx.AddNode(5, 5)
			tx.RemoveNode(b) // still referenced
			tx.AddElement(a, "node_missing")
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := g.Snapshot()

			tx := NewTransaction(tt.name)
			tt.build(tx)
			_ = m.Commit(tx)

			if _, err := m.Undo(); err != nil {
				t.Fatalf("Undo: %v", err)
			}
			if !g.Snapshot().Equal(before) {
				t.Fatal("expected undo to restore the prior snapshot")
			}
		})
	}
}

func TestRedoReusesInstances(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, 0)

	tx := NewTransaction("Draw line")
	a := tx.AddNode(0, 0)
	b := tx.AddNode(3, 4)
	el := tx.AddElement(a, b)
	mustCommit(t, m, tx)

	na, _ := g.Node(a)
	e, _ := g.Element(el)
	after := g.Snapshot()

	if ok, err := m.Undo(); !ok || err != nil {
		t.Fatalf("Undo: ok=%v err=%v", ok, err)
	}
	assertCounts(t, g, 0, 0)

	if ok, err := m.Redo(); !ok || err != nil {
		t.Fatalf("Redo: ok=%v err=%v", ok, err)
	}
	if !g.Snapshot().Equal(after) {
		t.Fatal("expected redo to restore the committed state")
	}
	if got, _ := g.Node(a); got != na {
		t.Fatal("expected redo to re-insert the same node instance")
	}
	if got, _ := g.Element(el); got != e {
		t.Fatal("expected redo to re-insert the same element instance")
	}

	// A second cycle replays identically.
	m.Undo()
	m.Redo()
	if got, _ := g.Element(el); got != e {
		t.Fatal("expected second redo to keep the element instance")
	}
}

func TestCommitClearsRedo(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, 0)

	for i := 0; i < 3; i++ {
		tx := NewTransaction(fmt.Sprintf("add %d", i))
		tx.AddNode(float64(i), 0)
		mustCommit(t, m, tx)
	}
	m.Undo()
	m.Undo()
	if !m.CanRedo() {
		t.Fatal("expected redo to be available")
	}

	tx := NewTransaction("fresh")
	tx.AddNode(9, 9)
	mustCommit(t, m, tx)

	if m.CanRedo() {
		t.Fatalf("expected empty redo stack, got %v", m.RedoNames())
	}
	if ok, _ := m.Redo(); ok {
		t.Fatal("expected Redo to be a no-op")
	}
}

func TestHistoryLimit(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, DefaultLimit)

	for i := 0; i < DefaultLimit+1; i++ {
		tx := NewTransaction(fmt.Sprintf("add %d", i))
		tx.AddNode(float64(i), 0)
		mustCommit(t, m, tx)
	}
	if got := m.State().UndoDepth; got != DefaultLimit {
		t.Fatalf("expected undo depth %d, got %d", DefaultLimit, got)
	}
	if m.Len() != DefaultLimit {
		t.Fatalf("expected Len %d, got %d", DefaultLimit, m.Len())
	}
	if names := m.UndoNames(); names[0] != "add 1" {
		t.Fatalf("expected oldest entry to be dropped, first is %q", names[0])
	}

	undone := 0
	for m.CanUndo() {
		m.Undo()
		undone++
	}
	if undone != DefaultLimit {
		t.Fatalf("expected %d undos, got %d", DefaultLimit, undone)
	}
	// The first node can no longer be undone.
	assertCounts(t, g, 1, 0)
}

func TestUndoRedoEmptyStacks(t *testing.T) {
	m := NewManager(model.NewGraph(), 0)
	if ok, err := m.Undo(); ok || err != nil {
		t.Fatalf("Undo on empty: ok=%v err=%v", ok, err)
	}
	if ok, err := m.Redo(); ok || err != nil {
		t.Fatalf("Redo on empty: ok=%v err=%v", ok, err)
	}
}

func TestCommitTwice(t *testing.T) {
	m := NewManager(model.NewGraph(), 0)
	tx := NewTransaction("once")
	tx.AddNode(0, 0)
	mustCommit(t, m, tx)
	if err := m.Commit(tx); !errors.Is(err, ErrAlreadyCommitted) {
		t.Fatalf("expected ErrAlreadyCommitted, got %v", err)
	}
	if err := m.Commit(nil); !errors.Is(err, ErrNilTransaction) {
		t.Fatalf("expected ErrNilTransaction, got %v", err)
	}
}

func TestOperationErrors(t *testing.T) {
	g := model.NewGraph()

	add := AddNode(0, 0)
	if err := add.Do(g); err != nil {
		t.Fatalf("AddNode.Do: %v", err)
	}

	tests := []struct {
		name string
		op   Operation
		want error
	}{
		{"add element missing node", AddElement(add.NodeID(), "node_missing"), model.ErrNotFound},
		{"remove missing node", RemoveNode("node_missing"), model.ErrNotFound},
		{"remove missing element", RemoveElement("el_missing"), model.ErrNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := g.Snapshot()
			if err := tt.op.Do(g); !errors.Is(err, tt.want) {
				t.Fatalf("Do: expected %v, got %v", tt.want, err)
			}
			if !g.Snapshot().Equal(before) {
				t.Fatal("expected failed Do to leave the graph unchanged")
			}
			if err := tt.op.Undo(g); !errors.Is(err, model.ErrNoPriorEffect) {
				t.Fatalf("Undo: expected ErrNoPriorEffect, got %v", err)
			}
		})
	}
}

func TestRemoveNodeUndoSkipsPresent(t *testing.T) {
	g := model.NewGraph()
	add := AddNode(1, 1)
	add.Do(g)

	rm := RemoveNode(add.NodeID())
	if err := rm.Do(g); err != nil {
		t.Fatalf("RemoveNode.Do: %v", err)
	}
	if err := rm.Undo(g); err != nil {
		t.Fatalf("RemoveNode.Undo: %v", err)
	}
	if err := rm.Undo(g); err != nil {
		t.Fatalf("second Undo should be a no-op, got %v", err)
	}
	assertCounts(t, g, 1, 0)
}

func TestPublishOnCommitUndoRedo(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, 0)

	var snaps []model.Snapshot
	g.Subscribe(func(s model.Snapshot) { snaps = append(snaps, s) })
	var states []State
	m.Subscribe(func(s State) { states = append(states, s) })

	tx := NewTransaction("add")
	tx.AddNode(0, 0)
	mustCommit(t, m, tx)
	m.Undo()
	m.Redo()

	if len(snaps) != 3 {
		t.Fatalf("expected 3 model notifications, got %d", len(snaps))
	}
	if len(snaps[1].Nodes) != 0 || len(snaps[2].Nodes) != 1 {
		t.Fatal("unexpected snapshot contents")
	}
	want := []State{
		{CanUndo: true, UndoDepth: 1},
		{CanRedo: true, RedoDepth: 1},
		{CanUndo: true, UndoDepth: 1},
	}
	for i, s := range want {
		if states[i] != s {
			t.Fatalf("state %d: expected %+v, got %+v", i, s, states[i])
		}
	}
}

func TestAddNamedNodeKeepsName(t *testing.T) {
	g := model.NewGraph()
	m := NewManager(g, DefaultLimit)

	tx := NewTransaction("import")
	first := tx.AddNode(0, 0)
	named := tx.AddNamedNode(10, 0, 7)
	mustCommit(t, m, tx)

	nameOf := func(id string) int {
		t.Helper()
		n, ok := g.Node(id)
		if !ok {
			t.Fatalf("node %s missing", id)
		}
		return n.Name
	}
	if nameOf(first) != 1 || nameOf(named) != 7 {
		t.Fatalf("expected names 1 and 7, got %d and %d", nameOf(first), nameOf(named))
	}

	if _, err := m.Undo(); err != nil {
		t.Fatalf("Undo: %v", err)
	}
	assertCounts(t, g, 0, 0)
	if _, err := m.Redo(); err != nil {
		t.Fatalf("Redo: %v", err)
	}
	if nameOf(named) != 7 {
		t.Fatalf("expected explicit name kept across undo/redo, got %d", nameOf(named))
	}

	next := NewTransaction("add")
	auto := next.AddNode(20, 0)
	mustCommit(t, m, next)
	if got := nameOf(auto); got != 8 {
		t.Fatalf("expected next auto name 1 + max = 8, got %d", got)
	}
}
