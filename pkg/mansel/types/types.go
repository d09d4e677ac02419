// Package types provides core data types for the mansel selection model.
// It includes the stable node identifier used to track tree positions
// across view re-sorts, the tri-state check state, and directory-listing
// entries, along with size formatting helpers.
package types

import (
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
)

// NodeID is an opaque, stable identifier for a tree node.
// IDs are assigned once, at first encounter of a path, and remain valid
// across re-sorts and re-layouts of the containing view. They are never
// positional.
type NodeID string

// NewNodeID returns a fresh unique node identifier.
func NewNodeID() NodeID {
	return NodeID(uuid.New().String())
}

// CheckState is the tri-state selection status of a tree node.
type CheckState int

const (
	// Unchecked means neither the node nor any descendant is selected.
	Unchecked CheckState = iota

	// PartiallyChecked means the node has a selected descendant, or sits
	// below a selected ancestor.
	PartiallyChecked

	// Checked means the node itself is selected.
	Checked
)

// String returns the string representation of the check state.
func (s CheckState) String() string {
	switch s {
	case Unchecked:
		return "unchecked"
	case PartiallyChecked:
		return "partial"
	case Checked:
		return "checked"
	default:
		return "unknown"
	}
}

// Entry describes a single child of a directory as reported by a lister.
type Entry struct {
	// Name is the entry's base name within its parent directory.
	Name string

	// IsDir reports whether the entry is a directory.
	IsDir bool

	// Size is the entry's size in bytes. Zero for directories; directory
	// sizes are computed by aggregation, not listing.
	Size int64
}

// FormatSize formats a size in bytes as a human-readable string using
// binary (IEC) units.
func FormatSize(bytes int64) string {
	if bytes < 0 {
		return "0 B"
	}
	return humanize.IBytes(uint64(bytes))
}
