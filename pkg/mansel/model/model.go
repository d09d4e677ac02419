// Package model provides the checkable filesystem model: a lazily
// materialized directory tree with tri-state selection, startup
// preselection, and a live running total of the selected bytes. It is the
// library's main entry point; a view layer drives it through stable node
// ids and observes it through a Sink.
package model

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/wshanks/mansel/pkg/mansel/lister"
	"github.com/wshanks/mansel/pkg/mansel/logging"
	"github.com/wshanks/mansel/pkg/mansel/preselect"
	"github.com/wshanks/mansel/pkg/mansel/selection"
	"github.com/wshanks/mansel/pkg/mansel/sizer"
	"github.com/wshanks/mansel/pkg/mansel/types"
)

// Options configures a Model.
type Options struct {
	// Lister enumerates directories. Defaults to the local filesystem.
	Lister lister.Lister

	// Preselection lists paths, relative to the root, to check as they
	// become visible after SetRoot.
	Preselection []string

	// TrackSelectionSize enables the background size aggregator and the
	// selection-total notifications. On by default in config; here it
	// must be set explicitly.
	TrackSelectionSize bool

	// SizerQueue bounds the size request/result channels. Zero uses the
	// sizer default.
	SizerQueue int

	// WatchInvalidation enables fsnotify invalidation of cached
	// directory sizes.
	WatchInvalidation bool

	// Sink receives model notifications. Defaults to NopSink.
	Sink Sink
}

// node is one materialized position in the tree.
type node struct {
	id       types.NodeID
	name     string
	rel      string // slash-separated path relative to the root; "" is the root
	isDir    bool
	size     int64 // files only; directory sizes come from the aggregator
	parent   *node
	children []*node
	loaded   bool
}

// Model is the checkable filesystem model. All exported methods are safe
// for concurrent use; each check-state transition, including its
// ancestor/descendant propagation, is one atomic step to observers.
type Model struct {
	mu     sync.Mutex
	opts   Options
	lister lister.Lister
	sink   Sink
	logger *logging.Logger

	rootPath string
	root     *node
	nodes    map[types.NodeID]*node
	byPath   map[string]types.NodeID

	sel    *selection.State
	driver *preselect.Driver

	// expand collects force-load requests issued by the preselection
	// driver while a directory-loaded event is being processed.
	expand []*node

	fetcher   *sizer.Fetcher
	sizeCache map[string]int64 // rel dir path -> bytes, current root only
	pumpDone  chan struct{}
}

// New creates a Model. Call SetRoot before anything else, and Close when
// done so the background worker shuts down cleanly.
func New(opts Options) (*Model, error) {
	if opts.Lister == nil {
		opts.Lister = lister.NewFilesystem()
	}
	if opts.Sink == nil {
		opts.Sink = NopSink{}
	}

	m := &Model{
		opts:      opts,
		lister:    opts.Lister,
		sink:      opts.Sink,
		logger:    logging.Get("model"),
		nodes:     make(map[types.NodeID]*node),
		byPath:    make(map[string]types.NodeID),
		sizeCache: make(map[string]int64),
	}
	m.sel = selection.New(modelTopo{m}, engineSink{m})

	if len(opts.Preselection) > 0 {
		driver, err := preselect.New(opts.Preselection, preselect.Options{
			OnCheck:     func(id types.NodeID) { m.setStateLocked(id, types.Checked) },
			OnExpand:    func(id types.NodeID) { m.queueExpandLocked(id) },
			OnProcessed: func() { m.sink.PreselectionProcessed() },
		})
		if err != nil {
			return nil, fmt.Errorf("building preselection: %w", err)
		}
		m.driver = driver
	}

	if opts.TrackSelectionSize {
		fetcher, err := sizer.New(sizer.Options{
			Root:       ".",
			Lister:     opts.Lister,
			QueueDepth: opts.SizerQueue,
			Watch:      opts.WatchInvalidation,
		})
		if err != nil {
			return nil, fmt.Errorf("building size fetcher: %w", err)
		}
		m.fetcher = fetcher
		m.fetcher.Start(context.Background())

		m.pumpDone = make(chan struct{})
		go m.pumpResults()
	}

	return m, nil
}

// Close stops the background size worker and waits for it to finish.
func (m *Model) Close() {
	if m.fetcher != nil {
		m.fetcher.Close()
		<-m.pumpDone
	}
}

// pumpResults folds background size answers into the foreground cache.
func (m *Model) pumpResults() {
	defer close(m.pumpDone)
	for res := range m.fetcher.Results() {
		m.applySizeResult(res)
	}
}

func (m *Model) applySizeResult(res sizer.Result) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if res.Epoch != m.fetcher.Epoch() {
		m.logger.Debug("dropping stale size result", "path", res.Path, "epoch", res.Epoch)
		return
	}
	rel, ok := m.relOf(res.Path)
	if !ok {
		return
	}
	for _, we := range res.Errs {
		m.logger.Warn("size walk skipped entry", "path", we.Path, "error", we.Error)
	}
	m.sizeCache[rel] = res.Size
	m.recalculateLocked()
}

// SetRoot points the model at a directory, discarding all prior state:
// nodes, stable ids, selection and cached sizes. The root's children are
// loaded immediately, which starts the preselection drain.
func (m *Model) SetRoot(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return fmt.Errorf("root path: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("root path %s: %w", abs, os.ErrInvalid)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	m.rootPath = abs
	m.nodes = make(map[types.NodeID]*node)
	m.byPath = make(map[string]types.NodeID)
	m.sizeCache = make(map[string]int64)
	m.sel.Clear()

	m.root = &node{id: types.NewNodeID(), rel: "", isDir: true}
	m.nodes[m.root.id] = m.root
	m.byPath[""] = m.root.id

	if m.fetcher != nil {
		m.fetcher.SetRoot(abs)
	}

	m.logger.Info("root set", "path", abs)
	return m.loadLocked(m.root)
}

// LoadChildren materializes the children of a directory node. Loading is
// idempotent; already loaded directories are left alone.
func (m *Model) LoadChildren(id types.NodeID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	n, ok := m.nodes[id]
	if !ok {
		return fmt.Errorf("unknown node %s", id)
	}
	return m.loadLocked(n)
}

// loadLocked loads a directory and any further directories the
// preselection driver asks for, breadth-first until the requests stop.
func (m *Model) loadLocked(n *node) error {
	queue := []*node{n}
	var firstErr error

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if !cur.isDir || cur.loaded {
			continue
		}

		entries, err := m.lister.List(m.absOf(cur))
		if err != nil {
			m.logger.Warn("failed to load directory", "path", cur.rel, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		cur.loaded = true

		children := make([]preselect.Child, 0, len(entries))
		for _, entry := range entries {
			child := m.materializeLocked(cur, entry)
			children = append(children, preselect.Child{
				ID:      child.id,
				RelPath: child.rel,
				IsDir:   child.isDir,
			})
		}

		if m.driver != nil && !m.driver.Done() {
			m.expand = m.expand[:0]
			m.driver.HandleDirLoaded(children)
			queue = append(queue, m.expand...)
			m.expand = nil
		}
	}

	if m.driver != nil && !m.driver.Done() {
		if remaining := m.driver.Remaining(); len(remaining) > 0 {
			m.logger.Warn("preselected paths not found yet", "paths", strings.Join(remaining, ", "))
		}
	}

	return firstErr
}

// materializeLocked creates (or revisits) the node for a directory entry,
// assigning its stable id at first encounter.
func (m *Model) materializeLocked(parent *node, entry types.Entry) *node {
	rel := entry.Name
	if parent.rel != "" {
		rel = parent.rel + "/" + entry.Name
	}

	if id, ok := m.byPath[rel]; ok {
		existing := m.nodes[id]
		existing.size = entry.Size
		return existing
	}

	child := &node{
		id:     types.NewNodeID(),
		name:   entry.Name,
		rel:    rel,
		isDir:  entry.IsDir,
		size:   entry.Size,
		parent: parent,
	}
	parent.children = append(parent.children, child)
	m.nodes[child.id] = child
	m.byPath[rel] = child.id
	return child
}

// queueExpandLocked records a force-load request from the driver.
func (m *Model) queueExpandLocked(id types.NodeID) {
	if n, ok := m.nodes[id]; ok {
		m.expand = append(m.expand, n)
	}
}

// SetState transitions a node's check state, propagating to ancestors and
// descendants. It reports whether anything changed; repeating the current
// state is a no-op with no notifications.
func (m *Model) SetState(id types.NodeID, state types.CheckState) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.setStateLocked(id, state)
}

func (m *Model) setStateLocked(id types.NodeID, state types.CheckState) bool {
	changed := m.sel.SetState(id, state)
	if changed {
		m.recalculateLocked()
	}
	return changed
}

// State returns a node's effective check state.
func (m *Model) State(id types.NodeID) types.CheckState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sel.EffectiveState(id)
}

// fetchDirLocked kicks off a background size walk for a newly selected
// directory.
func (m *Model) fetchDirLocked(id types.NodeID) {
	if m.fetcher == nil {
		return
	}
	if n, ok := m.nodes[id]; ok {
		if _, cached := m.sizeCache[n.rel]; !cached {
			m.fetcher.Fetch(m.absOf(n))
		}
	}
}

// RecalculateSelectionSize recomputes the selection total and notifies
// the sink: SelectionSizeChanged with the full total, or
// RecalculatingSize when a selected directory's walk is still pending.
func (m *Model) RecalculateSelectionSize() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.recalculateLocked()
}

// recalculateLocked sums all selected items, all-or-nothing: a single
// cache miss aborts the sum so a transiently wrong total is never shown.
func (m *Model) recalculateLocked() {
	if m.fetcher == nil {
		return
	}

	var total int64
	for _, id := range m.sel.Selected() {
		n, ok := m.nodes[id]
		if !ok {
			continue
		}
		if n.isDir {
			size, cached := m.sizeCache[n.rel]
			if !cached {
				// Waiting for the aggregator to answer.
				m.sink.RecalculatingSize()
				return
			}
			total += size
		} else {
			total += n.size
		}
	}

	m.sink.SelectionSizeChanged(total)
}

// NodeID resolves a slash-separated relative path to its stable id.
func (m *Model) NodeID(rel string) (types.NodeID, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id, ok := m.byPath[filepath.ToSlash(rel)]
	return id, ok
}

// Path returns a node's slash-separated path relative to the root.
func (m *Model) Path(id types.NodeID) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return "", false
	}
	return n.rel, true
}

// IsDir reports whether a node denotes a directory.
func (m *Model) IsDir(id types.NodeID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	return ok && n.isDir
}

// Root returns the id of the root node.
func (m *Model) Root() types.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.root == nil {
		return ""
	}
	return m.root.id
}

// Children returns the materialized children of a node, in listing order.
func (m *Model) Children(id types.NodeID) []types.NodeID {
	m.mu.Lock()
	defer m.mu.Unlock()
	n, ok := m.nodes[id]
	if !ok {
		return nil
	}
	out := make([]types.NodeID, len(n.children))
	for i, child := range n.children {
		out[i] = child.id
	}
	return out
}

// SelectedPaths returns the relative paths of all exactly-checked nodes,
// sorted. This is the dialog's final output.
func (m *Model) SelectedPaths() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]string, 0, m.sel.Len())
	for _, id := range m.sel.Selected() {
		if n, ok := m.nodes[id]; ok {
			out = append(out, n.rel)
		}
	}
	sort.Strings(out)
	return out
}

// PreselectionDone reports whether all preselected paths were matched, or
// true when no preselection was supplied.
func (m *Model) PreselectionDone() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.driver == nil || m.driver.Done()
}

// PreselectionRemaining returns preselected paths not yet matched, for
// diagnostics; paths missing from disk stay here indefinitely.
func (m *Model) PreselectionRemaining() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.driver == nil {
		return nil
	}
	return m.driver.Remaining()
}

// absOf returns the absolute path of a node under the current root.
func (m *Model) absOf(n *node) string {
	if n.rel == "" {
		return m.rootPath
	}
	return filepath.Join(m.rootPath, filepath.FromSlash(n.rel))
}

// relOf converts an absolute path to a root-relative slash path.
func (m *Model) relOf(abs string) (string, bool) {
	rel, err := filepath.Rel(m.rootPath, abs)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", false
	}
	if rel == "." {
		return "", true
	}
	return filepath.ToSlash(rel), true
}
