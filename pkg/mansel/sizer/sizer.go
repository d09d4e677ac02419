// Package sizer computes total byte sizes of directory subtrees on a
// single background worker, memoizing completed walks so repeated or
// nested queries reuse prior work. Requests and results are epoch-tagged
// so answers computed against a stale root are discarded.
package sizer

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/wshanks/mansel/pkg/mansel/lister"
	"github.com/wshanks/mansel/pkg/mansel/logging"
)

// DefaultQueueDepth is the request and result channel buffer size used
// when Options.QueueDepth is zero.
const DefaultQueueDepth = 64

// ErrNoLister is returned by New when no lister is supplied.
var ErrNoLister = errors.New("sizer: lister is required")

// WalkError records an entry that was skipped during a walk.
type WalkError struct {
	Path  string
	Error string
}

// Result is the answer to a single size request.
type Result struct {
	// Path is the requested directory, as passed to Fetch.
	Path string

	// Size is the total byte size of the subtree.
	Size int64

	// Epoch identifies the root generation the result was computed
	// against. Consumers must drop results from stale epochs.
	Epoch uint64

	// Errs lists entries skipped during the walk, if any.
	Errs []WalkError
}

// Options configures a Fetcher.
type Options struct {
	// Root is the initial root path. Size caching is scoped to the
	// current root; changing it discards all cached sizes.
	Root string

	// Lister enumerates directories. Required.
	Lister lister.Lister

	// QueueDepth bounds the request and result channels. Zero means
	// DefaultQueueDepth.
	QueueDepth int

	// Watch enables filesystem-event invalidation of cached walks.
	Watch bool
}

// cacheNode mirrors the shape of the directory tree, accumulating sizes.
// Only the worker goroutine touches cache nodes.
type cacheNode struct {
	children map[string]*cacheNode
	size     int64
	walked   bool
}

func newCacheNode() *cacheNode {
	return &cacheNode{children: make(map[string]*cacheNode)}
}

type request struct {
	path  string
	epoch uint64
}

// Fetcher owns the background walker and its size cache.
type Fetcher struct {
	opts   Options
	lister lister.Lister

	// epoch increments on every root change; all cross-context messages
	// carry the epoch they were issued against.
	epoch atomic.Uint64

	mu   sync.RWMutex
	root string

	requests chan request
	results  chan Result

	cancel    context.CancelFunc
	done      chan struct{}
	startOnce sync.Once
	closeOnce sync.Once
}

// New creates a Fetcher. Start must be called before requests are served.
func New(opts Options) (*Fetcher, error) {
	if opts.Lister == nil {
		return nil, ErrNoLister
	}
	depth := opts.QueueDepth
	if depth <= 0 {
		depth = DefaultQueueDepth
	}

	return &Fetcher{
		opts:     opts,
		lister:   opts.Lister,
		root:     filepath.Clean(opts.Root),
		requests: make(chan request, depth),
		results:  make(chan Result, depth),
		done:     make(chan struct{}),
	}, nil
}

// Start launches the worker goroutine. Subsequent calls are no-ops.
func (f *Fetcher) Start(ctx context.Context) {
	f.startOnce.Do(func() {
		ctx, f.cancel = context.WithCancel(ctx)
		go f.run(ctx)
	})
}

// Close stops the worker and waits for it to exit. The results channel is
// closed once the worker is gone.
func (f *Fetcher) Close() {
	f.closeOnce.Do(func() {
		if f.cancel != nil {
			f.cancel()
			<-f.done
		}
	})
}

// Results returns the channel size answers are delivered on.
func (f *Fetcher) Results() <-chan Result {
	return f.results
}

// Fetch requests the total size of a directory. The caller never blocks;
// if the request queue is full the request is dropped with a warning and
// may be reissued by a later recalculation.
func (f *Fetcher) Fetch(path string) {
	req := request{path: path, epoch: f.epoch.Load()}
	select {
	case f.requests <- req:
	default:
		logging.Get("sizer").Warn("request queue full, dropping size request", "path", path)
	}
}

// SetRoot changes the root path and invalidates the entire cache. Results
// computed against the previous root are discarded by their epoch tag.
func (f *Fetcher) SetRoot(path string) {
	f.mu.Lock()
	f.root = filepath.Clean(path)
	f.mu.Unlock()
	f.epoch.Add(1)

	// Nudge the worker so it notices the change even when idle.
	select {
	case f.requests <- request{}:
	default:
	}
}

// Epoch returns the current root generation.
func (f *Fetcher) Epoch() uint64 {
	return f.epoch.Load()
}

// currentRoot returns the root path for the worker.
func (f *Fetcher) currentRoot() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.root
}

// run is the worker loop. It is the sole owner of the size cache; watch
// events and fetch requests are both handled here so no other goroutine
// ever touches cache state.
func (f *Fetcher) run(ctx context.Context) {
	defer close(f.done)
	defer close(f.results)

	logger := logging.Get("sizer")

	var watch *watchSet
	if f.opts.Watch {
		var err error
		watch, err = newWatchSet()
		if err != nil {
			logger.Warn("filesystem watch unavailable", "error", err)
			watch = nil
		} else {
			defer watch.Close()
		}
	}

	w := &worker{
		fetcher: f,
		logger:  logger,
		watch:   watch,
		epoch:   f.epoch.Load(),
		root:    f.currentRoot(),
		cache:   newCacheNode(),
	}

	for {
		select {
		case <-ctx.Done():
			return
		case req := <-f.requests:
			w.sync()
			if req.path == "" || req.epoch != w.epoch {
				continue // nudge or stale request
			}
			w.fetch(ctx, req)
		case ev, ok := <-watch.events():
			if !ok {
				continue
			}
			w.sync()
			w.invalidate(ev.Name)
		case err, ok := <-watch.errors():
			if ok && err != nil {
				logger.Warn("watch error", "error", err)
			}
		}
	}
}

// worker holds the state owned exclusively by the background goroutine.
type worker struct {
	fetcher *Fetcher
	logger  *logging.Logger
	watch   *watchSet

	epoch uint64
	root  string
	cache *cacheNode
}

// sync picks up a root change: fresh cache, fresh watches, new epoch.
func (w *worker) sync() {
	current := w.fetcher.epoch.Load()
	if current == w.epoch {
		return
	}
	w.epoch = current
	w.root = w.fetcher.currentRoot()
	w.cache = newCacheNode()
	if w.watch != nil {
		w.watch.RemoveAll()
	}
	w.logger.Debug("root changed, size cache invalidated", "root", w.root)
}

// relSegments returns the path's segments relative to the current root.
func (w *worker) relSegments(path string) ([]string, bool) {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return nil, false
	}
	rel = filepath.ToSlash(rel)
	if rel == "." {
		return nil, true
	}
	return strings.Split(rel, "/"), true
}

// node walks/creates cache nodes for the given segments.
func (w *worker) node(segments []string) *cacheNode {
	pos := w.cache
	for _, segment := range segments {
		child, ok := pos.children[segment]
		if !ok {
			child = newCacheNode()
			pos.children[segment] = child
		}
		pos = child
	}
	return pos
}

// trackItemSize folds size into every cache node from item's parent up to
// and including the fetch top.
func (w *worker) trackItemSize(topSegments, itemSegments []string, size int64) {
	for i := len(itemSegments) - 1; i >= len(topSegments); i-- {
		w.node(itemSegments[:i]).size += size
	}
}

// fetch answers a single size request, walking only what the cache does
// not already cover.
func (w *worker) fetch(ctx context.Context, req request) {
	topSegments, ok := w.relSegments(req.path)
	if !ok {
		w.logger.Warn("size request outside root", "path", req.path, "root", w.root)
		w.emit(Result{Path: req.path, Epoch: w.epoch, Errs: []WalkError{{Path: req.path, Error: "outside root"}}})
		return
	}

	top := w.node(topSegments)
	if top.walked {
		w.emit(Result{Path: req.path, Size: top.size, Epoch: w.epoch})
		return
	}

	var errs []WalkError
	var visited [][]string

	// Explicit work stack; recursion depth must not track tree depth.
	stack := []string{req.path}
	for len(stack) > 0 {
		select {
		case <-ctx.Done():
			return
		default:
		}
		if w.fetcher.epoch.Load() != w.epoch {
			return // root changed mid-walk, answer is worthless
		}

		dir := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		dirSegments, ok := w.relSegments(dir)
		if !ok {
			continue
		}

		entries, err := w.lister().List(dir)
		if err != nil {
			// Skip the unreadable directory and keep walking.
			w.logger.Warn("skipping unreadable directory", "path", dir, "error", err)
			errs = append(errs, WalkError{Path: dir, Error: err.Error()})
			continue
		}

		for _, entry := range entries {
			childPath := filepath.Join(dir, entry.Name)
			childSegments := append(append([]string(nil), dirSegments...), entry.Name)
			if entry.IsDir {
				if child := w.node(childSegments); child.walked {
					w.trackItemSize(topSegments, childSegments, child.size)
				} else {
					stack = append(stack, childPath)
				}
			} else {
				w.trackItemSize(topSegments, childSegments, entry.Size)
			}
		}

		visited = append(visited, dirSegments)
		if w.watch != nil {
			w.watch.Add(dir)
		}
	}

	// Sizes are final only once the whole stack has drained.
	for _, segments := range visited {
		w.node(segments).walked = true
	}

	w.emit(Result{Path: req.path, Size: top.size, Epoch: w.epoch, Errs: errs})
}

func (w *worker) lister() lister.Lister {
	return w.fetcher.lister
}

// emit delivers a result without ever blocking the worker.
func (w *worker) emit(res Result) {
	select {
	case w.fetcher.results <- res:
	default:
		w.logger.Warn("result channel full, dropping size result", "path", res.Path)
	}
}

// invalidate reacts to a filesystem event: the cache subtree at the event
// path is dropped and every directory from its parent up to the cache
// root loses its walked flag and accumulated size, forcing a rescan on
// the next fetch.
func (w *worker) invalidate(path string) {
	segments, ok := w.relSegments(path)
	if !ok || len(segments) == 0 {
		// Event outside the root, or on the root itself: reset everything.
		if ok {
			w.cache = newCacheNode()
		}
		return
	}

	// Drop the node for the changed entry.
	parent := w.cache
	chain := []*cacheNode{w.cache}
	complete := true
	for _, segment := range segments[:len(segments)-1] {
		child, present := parent.children[segment]
		if !present {
			complete = false
			break
		}
		chain = append(chain, child)
		parent = child
	}
	if complete {
		delete(parent.children, segments[len(segments)-1])
	}

	for _, n := range chain {
		n.walked = false
		n.size = 0
	}
	w.logger.Debug("cache invalidated", "path", path)
}
