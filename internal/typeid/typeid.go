package typeid

import (
	"fmt"

	"go.jetify.com/typeid/v2"
)

const (
	PrefixNode        = "node"
	PrefixElement     = "el"
	PrefixOp          = "op"
	PrefixTransaction = "tx"
	PrefixSegment     = "seg"
	PrefixSnapshot    = "snap"
)

func New(prefix string) string {
	id := typeid.MustGenerate(prefix)
	return id.String()
}

func NewNodeID() string        { return New(PrefixNode) }
func NewElementID() string     { return New(PrefixElement) }
func NewOpID() string          { return New(PrefixOp) }
func NewTransactionID() string { return New(PrefixTransaction) }
func NewSegmentID() string     { return New(PrefixSegment) }
func NewSnapshotID() string    { return New(PrefixSnapshot) }

func Validate(id, expectedPrefix string) error {
	parsed, err := typeid.Parse(id)
	if err != nil {
		return fmt.Errorf("invalid typeid %q: %w", id, err)
	}
	if parsed.Prefix() != expectedPrefix {
		return fmt.Errorf("expected prefix %q but got %q in id %q", expectedPrefix, parsed.Prefix(), id)
	}
	return nil
}
