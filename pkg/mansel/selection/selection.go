// Package selection implements the tri-state check-state engine for a
// lazily materialized tree. Checked items are stored in one set and
// partially-checked ancestors in a second, disjoint set; everything else
// is implicitly unchecked. Transitions propagate up and down the tree
// through the Topology collaborator.
package selection

import (
	"github.com/wshanks/mansel/pkg/mansel/types"
)

// Topology gives the engine access to tree structure. The root node is
// the one with no parent; it is excluded from all propagation walks.
type Topology interface {
	// Parent returns the parent of id, or false for the root or an
	// unknown node.
	Parent(id types.NodeID) (types.NodeID, bool)

	// Children returns the currently materialized children of id.
	Children(id types.NodeID) []types.NodeID

	// IsDir reports whether id denotes a directory.
	IsDir(id types.NodeID) bool
}

// Sink receives notifications from the engine.
type Sink interface {
	// NodeStateChanged fires once per accepted transition, after all
	// propagation has been applied.
	NodeStateChanged(id types.NodeID)

	// DirSelected fires when a directory becomes exactly checked, so a
	// size fetch can be kicked off for it.
	DirSelected(id types.NodeID)
}

// NopSink is a Sink that ignores all notifications.
type NopSink struct{}

// NodeStateChanged implements Sink.
func (NopSink) NodeStateChanged(types.NodeID) {}

// DirSelected implements Sink.
func (NopSink) DirSelected(types.NodeID) {}

// State holds the check state of every node the user has interacted with.
// It is not safe for concurrent use; the owning model serializes access,
// making each SetState call a single atomic step to observers.
type State struct {
	topo Topology
	sink Sink

	// selected holds exactly-checked nodes; ancestors holds nodes forced
	// to partially-checked because a descendant is checked. The two sets
	// are always disjoint.
	selected  map[types.NodeID]struct{}
	ancestors map[types.NodeID]struct{}
}

// New creates a selection engine over the given topology. A nil sink
// disables notifications.
func New(topo Topology, sink Sink) *State {
	if sink == nil {
		sink = NopSink{}
	}
	return &State{
		topo:      topo,
		sink:      sink,
		selected:  make(map[types.NodeID]struct{}),
		ancestors: make(map[types.NodeID]struct{}),
	}
}

// EffectiveState returns the tri-state value a node presents to
// observers: Checked if exactly checked, PartiallyChecked if it is a
// stored ancestor or sits below a checked ancestor, else Unchecked.
func (s *State) EffectiveState(id types.NodeID) types.CheckState {
	if _, ok := s.selected[id]; ok {
		return types.Checked
	}
	if _, ok := s.ancestors[id]; ok {
		return types.PartiallyChecked
	}
	if s.hasCheckedAncestor(id) {
		return types.PartiallyChecked
	}
	return types.Unchecked
}

// hasCheckedAncestor reports whether any strict ancestor of id, below the
// root, is exactly checked.
func (s *State) hasCheckedAncestor(id types.NodeID) bool {
	parent, ok := s.topo.Parent(id)
	for ok {
		if _, above := s.topo.Parent(parent); !above {
			// parent is the root
			return false
		}
		if _, sel := s.selected[parent]; sel {
			return true
		}
		parent, ok = s.topo.Parent(parent)
	}
	return false
}

// SetState transitions a node to the target state, propagating to
// ancestors and descendants. It reports whether anything changed; when
// the node's effective state already equals the target it is a no-op and
// emits no notifications.
func (s *State) SetState(id types.NodeID, value types.CheckState) bool {
	if s.EffectiveState(id) == value {
		return false
	}

	s.setRaw(id, value)

	switch value {
	case types.Checked:
		s.partiallyCheckAncestors(id)
		s.uncheckDescendants(id)
		if s.topo.IsDir(id) {
			s.sink.DirSelected(id)
		}
	case types.Unchecked:
		s.uncheckExclusiveAncestors(id)
	}

	s.sink.NodeStateChanged(id)
	return true
}

// setRaw mutates a node's stored state with no propagation and no
// notifications. It is the primitive all walks are built on.
func (s *State) setRaw(id types.NodeID, value types.CheckState) {
	switch value {
	case types.Checked:
		delete(s.ancestors, id)
		s.selected[id] = struct{}{}
	case types.PartiallyChecked:
		delete(s.selected, id)
		s.ancestors[id] = struct{}{}
	case types.Unchecked:
		delete(s.ancestors, id)
		delete(s.selected, id)
	}
}

// partiallyCheckAncestors forces every ancestor of id, up to but
// excluding the root, to partially checked. This may demote a previously
// fully checked ancestor.
func (s *State) partiallyCheckAncestors(id types.NodeID) {
	parent, ok := s.topo.Parent(id)
	for ok {
		if _, above := s.topo.Parent(parent); !above {
			break // reached the root
		}
		s.setRaw(parent, types.PartiallyChecked)
		parent, ok = s.topo.Parent(parent)
	}
}

// uncheckDescendants forces the whole materialized subtree below id to
// unchecked; checking a node supersedes finer-grained selections beneath
// it. Iterative, so arbitrarily deep trees do not grow the call stack.
func (s *State) uncheckDescendants(id types.NodeID) {
	queue := append([]types.NodeID(nil), s.topo.Children(id)...)
	for len(queue) > 0 {
		item := queue[len(queue)-1]
		queue = queue[:len(queue)-1]
		s.setRaw(item, types.Unchecked)
		queue = append(queue, s.topo.Children(item)...)
	}
}

// uncheckExclusiveAncestors walks upward from id unchecking each ancestor
// whose children are all effectively unchecked, stopping at the first
// ancestor that still has a checked or partial child.
func (s *State) uncheckExclusiveAncestors(id types.NodeID) {
	parent, ok := s.topo.Parent(id)
	for ok {
		if _, above := s.topo.Parent(parent); !above {
			break // reached the root
		}
		allUnchecked := true
		for _, child := range s.topo.Children(parent) {
			if s.EffectiveState(child) != types.Unchecked {
				allUnchecked = false
				break
			}
		}
		if !allUnchecked {
			break
		}
		s.setRaw(parent, types.Unchecked)
		parent, ok = s.topo.Parent(parent)
	}
}

// Selected returns a snapshot of the exactly-checked nodes.
func (s *State) Selected() []types.NodeID {
	out := make([]types.NodeID, 0, len(s.selected))
	for id := range s.selected {
		out = append(out, id)
	}
	return out
}

// Has reports whether id is exactly checked.
func (s *State) Has(id types.NodeID) bool {
	_, ok := s.selected[id]
	return ok
}

// Len returns the number of exactly-checked nodes.
func (s *State) Len() int {
	return len(s.selected)
}

// Clear forgets all stored state. Used when the root path changes.
func (s *State) Clear() {
	s.selected = make(map[types.NodeID]struct{})
	s.ancestors = make(map[types.NodeID]struct{})
}
