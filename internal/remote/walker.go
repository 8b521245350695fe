package remote

import (
	"context"
	"path"
	"sync"

	"golang.org/x/sync/semaphore"

	"mirrorsync/internal/core/exclude"
	"mirrorsync/internal/domain"
	"mirrorsync/internal/logger"
)

const (
	defaultWalkConcurrency = 4
	defaultNodeBuffer      = 256
)

// Report collects the subtrees a walk could not reach. Complete once
// the node channel has been closed.
type Report struct {
	mu          sync.Mutex
	unreachable []domain.SubtreeError
}

func (r *Report) add(dirPath string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.unreachable = append(r.unreachable, domain.SubtreeError{Path: dirPath, Err: err})
}

// Unreachable returns the recorded subtree failures
func (r *Report) Unreachable() []domain.SubtreeError {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]domain.SubtreeError, len(r.unreachable))
	copy(out, r.unreachable)
	return out
}

// Walker discovers the remote tree by fetching directory listings with
// bounded concurrency and streaming file nodes into a bounded channel.
type Walker struct {
	client      *Client
	matcher     *exclude.Matcher
	concurrency int64
	buffer      int
	log         logger.Logger
}

// WalkerOptions configures a Walker
type WalkerOptions struct {
	// Matcher prunes excluded directories before they are fetched.
	// Excluded files are still yielded so the planner can account for
	// them; nil disables pruning.
	Matcher *exclude.Matcher

	// Concurrency bounds simultaneous listing fetches
	Concurrency int

	// Buffer sizes the node channel
	Buffer int
}

// NewWalker creates a walker over the client's archive root
func NewWalker(client *Client, opts WalkerOptions) *Walker {
	w := &Walker{
		client:      client,
		matcher:     opts.Matcher,
		concurrency: int64(opts.Concurrency),
		buffer:      opts.Buffer,
		log:         logger.Get().With("component", "walker"),
	}
	if w.concurrency <= 0 {
		w.concurrency = defaultWalkConcurrency
	}
	if w.buffer <= 0 {
		w.buffer = defaultNodeBuffer
	}
	return w
}

// Walk starts discovery at the archive root and returns a channel of
// file nodes plus a report of unreachable subtrees. The channel is
// closed when traversal finishes or the context is cancelled; the
// report must only be read after that.
//
// A failed listing marks its subtree unreachable and traversal
// continues with siblings. Traversal order is not stable across runs.
func (w *Walker) Walk(ctx context.Context) (<-chan domain.RemoteNode, *Report) {
	nodes := make(chan domain.RemoteNode, w.buffer)
	report := &Report{}
	sem := semaphore.NewWeighted(w.concurrency)

	visited := &visitSet{seen: make(map[string]struct{})}
	visited.mark("")

	var wg sync.WaitGroup
	wg.Add(1)
	go w.walkDir(ctx, "", nodes, report, sem, visited, &wg)

	go func() {
		wg.Wait()
		close(nodes)
	}()

	return nodes, report
}

func (w *Walker) walkDir(
	ctx context.Context,
	dirPath string,
	nodes chan<- domain.RemoteNode,
	report *Report,
	sem *semaphore.Weighted,
	visited *visitSet,
	wg *sync.WaitGroup,
) {
	defer wg.Done()

	if err := sem.Acquire(ctx, 1); err != nil {
		return // cancelled while queued
	}
	entries, err := w.client.List(ctx, dirPath)
	sem.Release(1)

	if err != nil {
		if ctx.Err() != nil {
			return
		}
		w.log.Warn("subtree unreachable", "path", dirPath, "error", err)
		report.add(dirPath, err)
		return
	}

	w.log.Debug("listed directory", "path", dirPath, "entries", len(entries))

	for _, entry := range entries {
		childPath := entry.Name
		if dirPath != "" {
			childPath = path.Join(dirPath, entry.Name)
		}

		if entry.Dir {
			if w.matcher.IsExcluded(childPath) {
				w.log.Debug("pruned excluded directory", "path", childPath)
				continue
			}
			if !visited.mark(childPath) {
				// A listing that leads back to a known path would loop
				// forever; treat it as a terminal fetch error instead.
				report.add(childPath, domain.ErrListingCycle)
				continue
			}
			wg.Add(1)
			go w.walkDir(ctx, childPath, nodes, report, sem, visited, wg)
			continue
		}

		node := domain.RemoteNode{
			Path:     childPath,
			Kind:     domain.KindFile,
			SizeHint: entry.Size,
		}
		select {
		case nodes <- node:
		case <-ctx.Done():
			return
		}
	}
}

// visitSet guards against self-referential listings, indexed by
// normalized path
type visitSet struct {
	mu   sync.Mutex
	seen map[string]struct{}
}

// mark records a path, returning false if it was already present
func (v *visitSet) mark(p string) bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	if _, ok := v.seen[p]; ok {
		return false
	}
	v.seen[p] = struct{}{}
	return true
}
