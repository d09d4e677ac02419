// Package pathtree provides a tree of nested nodes modeling a set of
// filesystem paths. A path with nothing nested below it is a leaf; a path
// with entries nested below it is a parent. The tree supports insertion,
// bottom-up removal with pruning, and membership classification.
package pathtree

import (
	"errors"
	"fmt"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// ErrPathConflict is returned when inserting a path whose strict prefix is
// already a leaf: a complete path cannot also be an ancestor directory of
// another.
var ErrPathConflict = errors.New("conflicting paths")

// ErrNotFound is returned when removing a path that is not in the tree.
// Callers are expected to remove only paths previously confirmed present,
// so hitting this indicates a bug in the caller.
var ErrNotFound = errors.New("path not in tree")

// Status classifies a path's membership in a tree.
type Status int

const (
	// StatusUnselected means the path is not in the tree.
	StatusUnselected Status = iota

	// StatusLeaf means the path is in the tree with nothing nested below.
	StatusLeaf

	// StatusParent means the path is a prefix of one or more tree entries.
	StatusParent
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnselected:
		return "unselected"
	case StatusLeaf:
		return "leaf"
	case StatusParent:
		return "parent"
	default:
		return "unknown"
	}
}

// Node is a single segment in a path tree. It keeps a non-owning reference
// to its parent so branches can be pruned bottom-up when they empty out.
type Node struct {
	name     string
	parent   *Node
	children map[string]*Node
}

func newNode(name string, parent *Node) *Node {
	return &Node{
		name:     name,
		parent:   parent,
		children: make(map[string]*Node),
	}
}

// Tree is a set of filesystem paths stored as nested nodes.
type Tree struct {
	root *Node
}

// New creates a tree containing the given paths.
func New(paths ...string) (*Tree, error) {
	t := &Tree{root: newNode("", nil)}
	for _, p := range paths {
		if err := t.Insert(p); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// splitPath breaks a path into its ordered segments. Separators are
// normalized, and "", "." and "/" all mean the root (no segments).
func splitPath(p string) []string {
	p = path.Clean(filepath.ToSlash(p))
	p = strings.Trim(p, "/")
	if p == "" || p == "." {
		return nil
	}
	return strings.Split(p, "/")
}

// Insert adds a path to the tree. It returns ErrPathConflict if a strict
// prefix of the path is already a leaf.
func (t *Tree) Insert(p string) error {
	parent := t.root
	segments := splitPath(p)
	for i, segment := range segments {
		child, ok := parent.children[segment]
		if !ok {
			child = newNode(segment, parent)
			parent.children[segment] = child
		} else if len(child.children) == 0 && i < len(segments)-1 {
			prefix := strings.Join(segments[:i+1], "/")
			return fmt.Errorf("%w: %s is both a complete path and a prefix", ErrPathConflict, prefix)
		}
		parent = child
	}
	return nil
}

// Remove deletes a path from the tree, then prunes every ancestor that
// becomes childless, stopping at (and excluding) the root.
func (t *Tree) Remove(p string) error {
	pos := t.root
	for _, segment := range splitPath(p) {
		child, ok := pos.children[segment]
		if !ok {
			return fmt.Errorf("%w: %s", ErrNotFound, p)
		}
		pos = child
	}

	for len(pos.children) == 0 && pos != t.root {
		parent := pos.parent
		delete(parent.children, pos.name)
		pos = parent
	}
	return nil
}

// Check classifies a path: StatusLeaf if it is in the tree with nothing
// below it, StatusParent if entries are nested below it, StatusUnselected
// if it is not in the tree at all.
func (t *Tree) Check(p string) Status {
	pos := t.root
	for _, segment := range splitPath(p) {
		child, ok := pos.children[segment]
		if !ok {
			return StatusUnselected
		}
		pos = child
	}

	if len(pos.children) > 0 {
		return StatusParent
	}
	return StatusLeaf
}

// Empty reports whether the tree contains no paths.
func (t *Tree) Empty() bool {
	return len(t.root.children) == 0
}

// Len returns the number of complete (leaf) paths in the tree.
func (t *Tree) Len() int {
	return len(t.Paths())
}

// Paths returns the complete paths remaining in the tree, sorted. Useful
// for reporting entries that were never matched.
func (t *Tree) Paths() []string {
	var out []string
	var walk func(n *Node, prefix string)
	walk = func(n *Node, prefix string) {
		if len(n.children) == 0 {
			if prefix != "" {
				out = append(out, prefix)
			}
			return
		}
		for name, child := range n.children {
			p := name
			if prefix != "" {
				p = prefix + "/" + name
			}
			walk(child, p)
		}
	}
	walk(t.root, "")
	sort.Strings(out)
	return out
}
