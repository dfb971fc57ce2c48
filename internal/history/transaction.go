package history

import (
	"errors"
	"log/slog"
	"time"

	"github.com/eukleia/eukleia/internal/model"
	"github.com/eukleia/eukleia/internal/typeid"
)

// Transaction is an ordered group of operations applied and undone as a
// unit. Build it with the helper methods, then hand it to Manager.Commit
// exactly once.
type Transaction struct {
	ID        string
	Name      string
	Timestamp time.Time // last Do or Undo

	ops       []Operation
	now       func() time.Time
	committed bool
}

func NewTransaction(name string) *Transaction {
	return &Transaction{
		ID:   typeid.NewTransactionID(),
		Name: name,
		now:  time.Now,
	}
}

// Add appends an arbitrary operation.
func (t *Transaction) Add(op Operation) {
	t.ops = append(t.ops, op)
}

// AddNode appends an AddNode operation and returns the id of the node it
// will create.
func (t *Transaction) AddNode(x, y float64) string {
	op := AddNode(x, y)
	t.Add(op)
	return op.NodeID()
}

// AddNamedNode is AddNode with an explicit name.
func (t *Transaction) AddNamedNode(x, y float64, name int) string {
	op := AddNamedNode(x, y, name)
	t.Add(op)
	return op.NodeID()
}

// AddElement appends an AddElement operation and returns the element id.
func (t *Transaction) AddElement(nodeA, nodeB string) string {
	op := AddElement(nodeA, nodeB)
	t.Add(op)
	return op.ElementID()
}

func (t *Transaction) RemoveNode(nodeID string) {
	t.Add(RemoveNode(nodeID))
}

func (t *Transaction) RemoveElement(elementID string) {
	t.Add(RemoveElement(elementID))
}

func (t *Transaction) Len() int {
	return len(t.ops)
}

// Operations returns the operations in insertion order.
func (t *Transaction) Operations() []Operation {
	out := make([]Operation, len(t.ops))
	copy(out, t.ops)
	return out
}

// Do runs every operation in insertion order. A failing operation is
// reported but does not stop the ones after it.
func (t *Transaction) Do(g *model.Graph) error {
	t.Timestamp = t.now()

	var errs []error
	for _, op := range t.ops {
		if err := op.Do(g); err != nil {
			slog.Warn("operation failed", "transaction", t.Name, "op", op.String(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Undo runs the operations in reverse order. The stored order is left as
// is, so any number of undo/redo cycles replay identically. Operations that
// never took effect are logged and skipped, not reported.
func (t *Transaction) Undo(g *model.Graph) error {
	t.Timestamp = t.now()

	var errs []error
	for i := len(t.ops) - 1; i >= 0; i-- {
		op := t.ops[i]
		if err := op.Undo(g); err != nil {
			if errors.Is(err, model.ErrNoPriorEffect) {
				slog.Warn("nothing to undo", "transaction", t.Name, "op", op.String())
				continue
			}
			slog.Warn("undo failed", "transaction", t.Name, "op", op.String(), "error", err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
