package types

import (
	"bytes"
	"sort"
	"time"
)

// Commit identifies an immutable snapshot in the backend. The ledger never
// mutates commits; it only records, verifies, and restores relative to them.
type Commit struct {
	SHA       string    `json:"sha"`
	Timestamp time.Time `json:"timestamp"`
}

// Tree is a snapshot of a working tree: relative slash-separated path to
// file content. The backend produces trees; the archive store freezes and
// restores them.
type Tree map[string][]byte

// Paths returns the tree's paths in sorted order.
func (t Tree) Paths() []string {
	paths := make([]string, 0, len(t))
	for p := range t {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Diff returns the sorted paths at which t and other differ: present in only
// one tree, or present in both with different content.
func (t Tree) Diff(other Tree) []string {
	var changed []string
	for p, content := range t {
		oc, ok := other[p]
		if !ok || !bytes.Equal(content, oc) {
			changed = append(changed, p)
		}
	}
	for p := range other {
		if _, ok := t[p]; !ok {
			changed = append(changed, p)
		}
	}
	sort.Strings(changed)
	return changed
}

// Equal reports whether both trees hold the same paths with the same content.
func (t Tree) Equal(other Tree) bool {
	return len(t.Diff(other)) == 0
}
