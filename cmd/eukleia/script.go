package main

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eukleia/eukleia/internal/editor"
)

// Script is a YAML edit script. Steps run in order against one editor;
// refs declared in a transaction stay visible to later steps.
//
//	name: portal frame
//	sample: false
//	steps:
//	  - transaction:
//	      name: Columns
//	      ops:
//	        - {op: addNode, ref: a, x: 0, y: 0}
//	        - {op: addNode, ref: b, x: 0, y: -300}
//	        - {op: addElement, node_a: $a, node_b: $b}
//	  - undo: 1
//	  - redo: 1
type Script struct {
	Name   string `yaml:"name"`
	Sample bool   `yaml:"sample"`
	Steps  []Step `yaml:"steps"`
}

// Step holds exactly one of its fields.
type Step struct {
	Transaction *editor.TxSpec `yaml:"transaction,omitempty"`
	Undo        int            `yaml:"undo,omitempty"`
	Redo        int            `yaml:"redo,omitempty"`
}

var ErrInvalidScript = errors.New("invalid script")

func loadScript(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open script: %w", err)
	}
	defer f.Close()
	return parseScript(f)
}

func parseScript(r io.Reader) (*Script, error) {
	var s Script
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&s); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, fmt.Errorf("empty script: %w", ErrInvalidScript)
		}
		return nil, fmt.Errorf("parse script: %w", err)
	}

	for i, step := range s.Steps {
		set := 0
		if step.Transaction != nil {
			set++
		}
		if step.Undo != 0 {
			set++
		}
		if step.Redo != 0 {
			set++
		}
		if set != 1 {
			return nil, fmt.Errorf("step %d: exactly one of transaction, undo, redo: %w", i+1, ErrInvalidScript)
		}
		if step.Undo < 0 || step.Redo < 0 {
			return nil, fmt.Errorf("step %d: negative count: %w", i+1, ErrInvalidScript)
		}
	}
	return &s, nil
}

// StepResult records what one step did.
type StepResult struct {
	Index    int
	Label    string
	Applied  int
	Err      error
	Nodes    int
	Elements int
}

// runScript replays s against ed. Operation failures are recorded per step
// and do not stop the replay; malformed transactions do.
func runScript(ed *editor.Editor, s *Script) ([]StepResult, error) {
	if s.Sample {
		if err := ed.LoadSample(); err != nil {
			return nil, fmt.Errorf("load sample: %w", err)
		}
	}

	refs := make(map[string]string)
	results := make([]StepResult, 0, len(s.Steps))
	for i, step := range s.Steps {
		res := StepResult{Index: i + 1}

		switch {
		case step.Transaction != nil:
			tx, err := editor.BuildTransaction(*step.Transaction, refs)
			if err != nil {
				return results, fmt.Errorf("step %d: %w", i+1, err)
			}
			res.Label = tx.Name
			res.Applied = 1
			res.Err = ed.Commit(tx)

		case step.Undo > 0:
			res.Label = fmt.Sprintf("undo ×%d", step.Undo)
			res.Applied, res.Err = repeat(step.Undo, ed.Undo)

		case step.Redo > 0:
			res.Label = fmt.Sprintf("redo ×%d", step.Redo)
			res.Applied, res.Err = repeat(step.Redo, ed.Redo)
		}

		res.Nodes = ed.Graph().NodeCount()
		res.Elements = ed.Graph().ElementCount()
		results = append(results, res)
	}
	return results, nil
}

// repeat calls fn up to n times, stopping early when the stack runs dry.
func repeat(n int, fn func() (bool, error)) (int, error) {
	var errs []error
	applied := 0
	for range n {
		ok, err := fn()
		if err != nil {
			errs = append(errs, err)
		}
		if !ok {
			break
		}
		applied++
	}
	return applied, errors.Join(errs...)
}
