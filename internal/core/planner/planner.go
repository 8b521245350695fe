// Package planner turns discovered remote nodes into sync actions.
package planner

import (
	"context"
	"sort"

	"mirrorsync/internal/core/exclude"
	"mirrorsync/internal/domain"
	"mirrorsync/internal/local"
)

// Planner decides, for each remote file, whether to download it, skip
// it as excluded, or leave it alone because it is already present.
// The decision is a pure function of (node, snapshot membership,
// matcher); it never depends on transfer order or other files.
type Planner struct {
	matcher  *exclude.Matcher
	snapshot local.Snapshot
	seen     map[string]struct{}
}

// New creates a planner over a read-only snapshot and matcher
func New(matcher *exclude.Matcher, snapshot local.Snapshot) *Planner {
	return &Planner{
		matcher:  matcher,
		snapshot: snapshot,
		seen:     make(map[string]struct{}),
	}
}

// Decide maps one file node to its action
func (p *Planner) Decide(node domain.RemoteNode) domain.SyncAction {
	switch {
	case p.matcher.IsExcluded(node.Path):
		return domain.SyncAction{
			Type:   domain.ActionSkip,
			Path:   node.Path,
			Reason: "matched exclude pattern",
		}
	case p.snapshot.Contains(node.Path):
		// Presence alone is evidence of a prior successful sync; no
		// size or checksum comparison on this path.
		// The size hint travels along so a refresh re-download can
		// still verify against it.
		return domain.SyncAction{
			Type:         domain.ActionAlreadyExists,
			Path:         node.Path,
			ExpectedSize: node.SizeHint,
			Reason:       "file already present",
		}
	default:
		return domain.SyncAction{
			Type:         domain.ActionDownload,
			Path:         node.Path,
			ExpectedSize: node.SizeHint,
			Reason:       "file missing locally",
		}
	}
}

// Plan consumes the node stream and produces exactly one action per
// file node. The returned channel closes when the input closes or the
// context is cancelled. Orphans is only valid after that.
func (p *Planner) Plan(ctx context.Context, nodes <-chan domain.RemoteNode) <-chan domain.SyncAction {
	actions := make(chan domain.SyncAction)

	go func() {
		defer close(actions)
		for node := range nodes {
			if !node.IsFile() {
				continue
			}
			p.seen[node.Path] = struct{}{}

			select {
			case actions <- p.Decide(node):
			case <-ctx.Done():
				return
			}
		}
	}()

	return actions
}

// Orphans returns local entries whose path never appeared among the
// discovered remote nodes and is not excluded. They are reported only;
// removal is a separate, explicit operation.
func (p *Planner) Orphans() []domain.LocalEntry {
	var orphans []domain.LocalEntry
	for path, entry := range p.snapshot {
		if _, ok := p.seen[path]; ok {
			continue
		}
		if p.matcher.IsExcluded(path) {
			continue
		}
		orphans = append(orphans, entry)
	}

	sort.Slice(orphans, func(i, j int) bool {
		return orphans[i].Path < orphans[j].Path
	})
	return orphans
}
