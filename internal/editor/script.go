package editor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/eukleia/eukleia/internal/history"
)

// Operation kinds accepted in an OpSpec.
const (
	OpAddNode       = "addNode"
	OpAddElement    = "addElement"
	OpRemoveNode    = "removeNode"
	OpRemoveElement = "removeElement"
)

var ErrInvalidOp = errors.New("invalid operation")

// OpSpec is the serializable form of one operation, used by the HTTP batch
// endpoint and by CLI scripts.
//
// Ref names the entity an add operation creates. Later specs can then use
// "$ref" wherever an id is expected, including specs in later transactions
// built with the same refs map.
type OpSpec struct {
	Op    string  `json:"op" yaml:"op"`
	Ref   string  `json:"ref,omitempty" yaml:"ref,omitempty"`
	ID    string  `json:"id,omitempty" yaml:"id,omitempty"`
	X     float64 `json:"x,omitempty" yaml:"x,omitempty"`
	Y     float64 `json:"y,omitempty" yaml:"y,omitempty"`
	Name  *int    `json:"name,omitempty" yaml:"name,omitempty"`
	NodeA string  `json:"nodeA,omitempty" yaml:"node_a,omitempty"`
	NodeB string  `json:"nodeB,omitempty" yaml:"node_b,omitempty"`
}

// TxSpec is a named list of operations.
type TxSpec struct {
	Name string   `json:"name" yaml:"name"`
	Ops  []OpSpec `json:"ops" yaml:"ops"`
}

// BuildTransaction turns specs into a transaction. refs maps ref names to
// allocated ids; it is read for "$ref" lookups and extended with the refs
// this transaction declares. A nil refs is allowed.
func BuildTransaction(spec TxSpec, refs map[string]string) (*history.Transaction, error) {
	if refs == nil {
		refs = make(map[string]string)
	}
	name := spec.Name
	if name == "" {
		name = "Edit"
	}
	tx := history.NewTransaction(name)

	for i, op := range spec.Ops {
		if err := addOp(tx, op, refs); err != nil {
			return nil, fmt.Errorf("op %d (%s): %w", i, op.Op, err)
		}
	}
	if tx.Len() == 0 {
		return nil, fmt.Errorf("transaction %q: no operations: %w", name, ErrInvalidOp)
	}
	return tx, nil
}

func addOp(tx *history.Transaction, op OpSpec, refs map[string]string) error {
	switch op.Op {
	case OpAddNode:
		var id string
		if op.Name != nil {
			id = tx.AddNamedNode(op.X, op.Y, *op.Name)
		} else {
			id = tx.AddNode(op.X, op.Y)
		}
		return bindRef(refs, op.Ref, id)

	case OpAddElement:
		a, err := resolveRef(refs, op.NodeA)
		if err != nil {
			return err
		}
		b, err := resolveRef(refs, op.NodeB)
		if err != nil {
			return err
		}
		return bindRef(refs, op.Ref, tx.AddElement(a, b))

	case OpRemoveNode:
		id, err := resolveRef(refs, op.ID)
		if err != nil {
			return err
		}
		tx.RemoveNode(id)
		return nil

	case OpRemoveElement:
		id, err := resolveRef(refs, op.ID)
		if err != nil {
			return err
		}
		tx.RemoveElement(id)
		return nil

	default:
		return fmt.Errorf("unknown op %q: %w", op.Op, ErrInvalidOp)
	}
}

func bindRef(refs map[string]string, ref, id string) error {
	if ref == "" {
		return nil
	}
	if _, taken := refs[ref]; taken {
		return fmt.Errorf("ref %q declared twice: %w", ref, ErrInvalidOp)
	}
	refs[ref] = id
	return nil
}

func resolveRef(refs map[string]string, v string) (string, error) {
	if v == "" {
		return "", fmt.Errorf("missing id: %w", ErrInvalidOp)
	}
	ref, ok := strings.CutPrefix(v, "$")
	if !ok {
		return v, nil
	}
	id, ok := refs[ref]
	if !ok {
		return "", fmt.Errorf("unknown ref %q: %w", ref, ErrInvalidOp)
	}
	return id, nil
}
