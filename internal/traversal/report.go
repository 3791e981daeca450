package traversal

import (
	"github.com/planterhq/planter/internal/filesystem"
	"github.com/planterhq/planter/internal/schema"
)

// Outcome summarizes what the traversal concluded about one path.
type Outcome uint8

const (
	// OutcomeCreated marks a path the traversal produced from scratch.
	OutcomeCreated Outcome = iota + 1
	// OutcomeAlreadyMatches marks a path that already satisfied its
	// schema, possibly after ownership or permission updates.
	OutcomeAlreadyMatches
	// OutcomeConflict marks a path whose existing state contradicts the
	// schema; the subtree below it is left untouched.
	OutcomeConflict
)

func (o Outcome) String() string {
	switch o {
	case OutcomeCreated:
		return "created"
	case OutcomeAlreadyMatches:
		return "matches"
	case OutcomeConflict:
		return "conflict"
	default:
		return "unknown"
	}
}

// OperationKind discriminates the mutations a traversal applies.
type OperationKind uint8

const (
	OpCreateDirectory OperationKind = iota + 1
	OpCreateFile
	OpCreateSymlink
	OpSetOwner
	OpSetGroup
	OpSetPermissions
)

func (k OperationKind) String() string {
	switch k {
	case OpCreateDirectory:
		return "mkdir"
	case OpCreateFile:
		return "create"
	case OpCreateSymlink:
		return "link"
	case OpSetOwner:
		return "chown"
	case OpSetGroup:
		return "chgrp"
	case OpSetPermissions:
		return "chmod"
	default:
		return "unknown"
	}
}

// Operation records one mutation applied to the filesystem capability.
// Only the fields relevant to the kind are set.
type Operation struct {
	Kind   OperationKind
	Path   string
	Target string
	Owner  string
	Group  string
	Mode   schema.Mode
	Size   int
}

// PathResult is the traversal's verdict on a single path: the kind and
// attributes the schema prescribes, how the existing state compared and
// the operations applied to get there.
type PathResult struct {
	Path       string
	Kind       filesystem.Kind
	Owner      string
	Group      string
	Mode       schema.Mode
	Target     string
	Outcome    Outcome
	Operations []Operation
	Err        error
}

func (p *PathResult) record(op Operation) {
	p.Operations = append(p.Operations, op)
}

// mark moves the outcome forward. A conflict is final, and a path
// created during the run stays created even when a later visit finds it
// already matching.
func (p *PathResult) mark(outcome Outcome) {
	switch {
	case p.Outcome == OutcomeConflict:
	case outcome == OutcomeConflict:
		p.Outcome = OutcomeConflict
	case p.Outcome == OutcomeCreated:
	default:
		p.Outcome = outcome
	}
}

// Report collects per-path results in the order paths were first
// visited, so repeated runs over the same tree read identically.
type Report struct {
	entries map[string]*PathResult
	order   []string
}

func newReport() *Report {
	return &Report{entries: make(map[string]*PathResult)}
}

// ensure returns the result slot for a path, creating it on first visit.
func (r *Report) ensure(path string) *PathResult {
	if res, ok := r.entries[path]; ok {
		return res
	}
	res := &PathResult{Path: path}
	r.entries[path] = res
	r.order = append(r.order, path)

	return res
}

// Get returns the result recorded for a path.
func (r *Report) Get(path string) (*PathResult, bool) {
	res, ok := r.entries[path]

	return res, ok
}

// Entries returns all results in first-visited order.
func (r *Report) Entries() []*PathResult {
	entries := make([]*PathResult, 0, len(r.order))
	for _, path := range r.order {
		entries = append(entries, r.entries[path])
	}

	return entries
}

// Len returns the number of paths visited.
func (r *Report) Len() int {
	return len(r.order)
}

// Failed reports whether any visited path ended in a conflict.
func (r *Report) Failed() bool {
	for _, res := range r.entries {
		if res.Outcome == OutcomeConflict {
			return true
		}
	}

	return false
}

// Operations returns every operation applied during the run, grouped by
// path in first-visited order.
func (r *Report) Operations() []Operation {
	var ops []Operation
	for _, path := range r.order {
		ops = append(ops, r.entries[path].Operations...)
	}

	return ops
}
