// Package preselect applies a caller-supplied set of paths to a lazily
// loading tree. As directory contents arrive, newly visible children are
// matched against the pending set: complete matches are checked, prefixes
// trigger deeper loading, and the driver detaches once the pending set
// drains.
package preselect

import (
	"github.com/wshanks/mansel/pkg/mansel/logging"
	"github.com/wshanks/mansel/pkg/mansel/pathtree"
	"github.com/wshanks/mansel/pkg/mansel/types"
)

// Child describes one newly loaded child of a directory.
type Child struct {
	// ID is the child's stable node id.
	ID types.NodeID

	// RelPath is the child's path relative to the tree root.
	RelPath string

	// IsDir reports whether the child is a directory.
	IsDir bool
}

// Options configures a Driver.
type Options struct {
	// OnCheck is called for each child matching a pending path exactly.
	// The receiver is expected to mark it checked.
	OnCheck func(id types.NodeID)

	// OnExpand is called for each directory child that is a prefix of
	// pending paths, asking the view to force-load its children.
	OnExpand func(id types.NodeID)

	// OnProcessed is called once, when the last pending path is matched.
	OnProcessed func()
}

// Driver consumes directory-loaded events and works through a pending
// preselection. It is one-shot: after the pending set drains the driver
// ignores further events.
type Driver struct {
	pending  *pathtree.Tree
	opts     Options
	attached bool
}

// New creates a driver for the given paths, relative to the tree root.
// Conflicting paths (one both a file and an ancestor of another) are
// rejected with pathtree.ErrPathConflict.
func New(paths []string, opts Options) (*Driver, error) {
	pending, err := pathtree.New(paths...)
	if err != nil {
		return nil, err
	}
	return &Driver{
		pending:  pending,
		opts:     opts,
		attached: !pending.Empty(),
	}, nil
}

// HandleDirLoaded walks the newly loaded children of a directory against
// the pending set. Safe to call after the driver has detached.
func (d *Driver) HandleDirLoaded(children []Child) {
	if !d.attached {
		return
	}

	logger := logging.Get("preselect")
	for _, child := range children {
		switch d.pending.Check(child.RelPath) {
		case pathtree.StatusLeaf:
			logger.Debug("preselection matched", "path", child.RelPath)
			if d.opts.OnCheck != nil {
				d.opts.OnCheck(child.ID)
			}
			// The path was just confirmed present, so Remove cannot fail.
			_ = d.pending.Remove(child.RelPath)
			if d.pending.Empty() {
				d.attached = false
				logger.Debug("preselection processed")
				if d.opts.OnProcessed != nil {
					d.opts.OnProcessed()
				}
				return
			}
		case pathtree.StatusParent:
			if child.IsDir {
				logger.Debug("expanding for pending descendants", "path", child.RelPath)
				if d.opts.OnExpand != nil {
					d.opts.OnExpand(child.ID)
				}
			}
		case pathtree.StatusUnselected:
			// Not part of the preselection.
		}
	}
}

// Done reports whether the pending set has drained and the driver has
// detached.
func (d *Driver) Done() bool {
	return !d.attached
}

// Remaining returns the pending paths that have not been matched yet.
// Paths that do not exist on disk are never matched; they are surfaced
// here rather than failing the preselection.
func (d *Driver) Remaining() []string {
	return d.pending.Paths()
}
