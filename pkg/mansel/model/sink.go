package model

import (
	"github.com/wshanks/mansel/pkg/mansel/types"
)

// Sink is the consumer-facing notification surface of the model. A view
// layer implements it to refresh checkboxes and the selection-size label.
// Methods are called with the model's internal lock held; implementations
// must not call back into the model synchronously.
type Sink interface {
	// NodeStateChanged fires after a check-state transition settles.
	NodeStateChanged(id types.NodeID)

	// SelectionSizeChanged delivers a complete selection total in bytes.
	SelectionSizeChanged(total int64)

	// RecalculatingSize fires when the total cannot be computed yet
	// because a selected directory's size is still being walked.
	RecalculatingSize()

	// PreselectionProcessed fires once, when every preselected path has
	// been located and checked.
	PreselectionProcessed()
}

// NopSink is a Sink that ignores all notifications.
type NopSink struct{}

// NodeStateChanged implements Sink.
func (NopSink) NodeStateChanged(types.NodeID) {}

// SelectionSizeChanged implements Sink.
func (NopSink) SelectionSizeChanged(int64) {}

// RecalculatingSize implements Sink.
func (NopSink) RecalculatingSize() {}

// PreselectionProcessed implements Sink.
func (NopSink) PreselectionProcessed() {}

// modelTopo adapts the model's node table to selection.Topology. Methods
// are lock-free: the selection engine only runs while the model already
// holds its lock.
type modelTopo struct {
	m *Model
}

func (t modelTopo) Parent(id types.NodeID) (types.NodeID, bool) {
	n, ok := t.m.nodes[id]
	if !ok || n.parent == nil {
		return "", false
	}
	return n.parent.id, true
}

func (t modelTopo) Children(id types.NodeID) []types.NodeID {
	n, ok := t.m.nodes[id]
	if !ok {
		return nil
	}
	out := make([]types.NodeID, len(n.children))
	for i, child := range n.children {
		out[i] = child.id
	}
	return out
}

func (t modelTopo) IsDir(id types.NodeID) bool {
	n, ok := t.m.nodes[id]
	return ok && n.isDir
}

// engineSink receives selection-engine notifications and translates them
// into size fetches and consumer notifications.
type engineSink struct {
	m *Model
}

func (s engineSink) NodeStateChanged(id types.NodeID) {
	s.m.sink.NodeStateChanged(id)
}

func (s engineSink) DirSelected(id types.NodeID) {
	s.m.fetchDirLocked(id)
}
