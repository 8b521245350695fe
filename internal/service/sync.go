// Package service orchestrates a mirror run: discovery, planning,
// transfer, and the run summary.
package service

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mirrorsync/internal/config"
	"mirrorsync/internal/core/exclude"
	"mirrorsync/internal/core/planner"
	"mirrorsync/internal/domain"
	"mirrorsync/internal/local"
	"mirrorsync/internal/lock"
	"mirrorsync/internal/logger"
	"mirrorsync/internal/progress"
	"mirrorsync/internal/remote"
	"mirrorsync/internal/state"
	"mirrorsync/internal/transfer"
)

// SyncService runs mirror operations against one destination
type SyncService struct {
	cfg      *config.Config
	client   *remote.Client
	matcher  *exclude.Matcher
	lock     *lock.FileLock
	reporter progress.Reporter
	history  *state.Manager
	log      logger.Logger
}

// NewSyncService builds a service from configuration. Exclude patterns
// are compiled here so malformed configuration fails before any
// network activity.
func NewSyncService(cfg *config.Config) (*SyncService, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	patterns := append([]string{}, cfg.Excludes...)
	for _, file := range cfg.ExcludeFiles {
		loaded, err := exclude.LoadPatternFile(config.ExpandPath(file))
		if err != nil {
			return nil, err
		}
		patterns = append(patterns, loaded...)
	}

	matcher, err := exclude.Compile(patterns)
	if err != nil {
		return nil, err
	}

	client, err := remote.NewClient(cfg.BaseURL, remote.Options{
		ListRetries:     cfg.Walker.Retries,
		InitialInterval: cfg.Transfer.RetryInitial,
		MaxInterval:     cfg.Transfer.RetryMax,
	})
	if err != nil {
		return nil, err
	}

	fileLock, err := lock.New(config.ExpandPath(cfg.Destination))
	if err != nil {
		return nil, fmt.Errorf("failed to create destination lock: %w", err)
	}

	s := &SyncService{
		cfg:     cfg,
		client:  client,
		matcher: matcher,
		lock:    fileLock,
		log:     logger.Get().With("component", "service"),
	}

	if cfg.State.Enabled {
		history, err := state.NewManager(cfg.DataDir())
		if err != nil {
			// History is advisory; a broken database must not stop syncing
			s.log.Warn("run history unavailable", "error", err)
		} else {
			s.history = history
		}
	}

	return s, nil
}

// SetReporter sets the progress reporter for transfers
func (s *SyncService) SetReporter(reporter progress.Reporter) {
	s.reporter = reporter
}

// ForceUnlock forcibly releases the destination lock
func (s *SyncService) ForceUnlock() error {
	return s.lock.ForceRelease()
}

// History returns the run-history store, nil when disabled
func (s *SyncService) History() *state.Manager {
	return s.history
}

// Run executes a full sync: walk the remote tree, diff against the
// local snapshot, and transfer what is missing. The returned summary
// is complete even when individual files or subtrees failed; only
// setup-level problems (lock, snapshot scan) surface as errors.
func (s *SyncService) Run(ctx context.Context) (*domain.RunSummary, error) {
	if err := s.lock.Acquire(); err != nil {
		return nil, err
	}
	defer func() {
		if err := s.lock.Release(); err != nil {
			s.log.Error("failed to release destination lock", "error", err)
		}
	}()

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	summary := &domain.RunSummary{StartTime: time.Now()}

	walker := remote.NewWalker(s.client, remote.WalkerOptions{
		Matcher:     s.matcher,
		Concurrency: s.cfg.Walker.Concurrency,
		Buffer:      s.cfg.Walker.Buffer,
	})

	// Discovery starts filling the node buffer while the local
	// snapshot is being built.
	nodes, report := walker.Walk(runCtx)

	snapshot, err := local.Scan(runCtx, config.ExpandPath(s.cfg.Destination))
	if err != nil {
		cancel()
		for range nodes {
		}
		return nil, err
	}
	s.log.Info("local snapshot built", "files", len(snapshot))

	plan := planner.New(s.matcher, snapshot)
	actions := plan.Plan(runCtx, nodes)

	pipeline := transfer.NewPipeline(s.client, config.ExpandPath(s.cfg.Destination), transfer.Options{
		Workers:  s.cfg.Transfer.Workers,
		Retries:  s.cfg.Transfer.Retries,
		Refresh:  s.cfg.Transfer.Refresh,
		Reporter: s.reporter,
	})

	for result := range pipeline.Run(runCtx, actions) {
		switch result.Outcome {
		case domain.OutcomeSuccess:
			summary.Downloaded++
			summary.BytesTransferred += result.Bytes
		case domain.OutcomeAlreadyPresent:
			summary.AlreadyPresent++
		case domain.OutcomeSkipped:
			summary.Excluded++
		case domain.OutcomeFailed:
			summary.Failed++
			s.log.Error("transfer failed",
				"path", result.Path,
				"attempts", result.Attempts,
				"error", result.Err,
			)
		}
	}

	summary.Unreachable = report.Unreachable()
	summary.Orphans = plan.Orphans()
	summary.EndTime = time.Now()

	if ctx.Err() != nil {
		return summary, ctx.Err()
	}

	s.log.Info("sync completed",
		"downloaded", summary.Downloaded,
		"already_present", summary.AlreadyPresent,
		"excluded", summary.Excluded,
		"failed", summary.Failed,
		"unreachable_subtrees", len(summary.Unreachable),
		"orphans", len(summary.Orphans),
		"bytes", progress.FormatBytes(summary.BytesTransferred),
		"duration", summary.Duration().Round(time.Millisecond),
	)

	s.recordRun(summary)
	return summary, nil
}

// PlanSummary is the result of a dry run
type PlanSummary struct {
	// Downloads are the transfers a real run would perform
	Downloads []domain.SyncAction

	// Excluded counts files skipped by exclude patterns
	Excluded int

	// AlreadyPresent counts files found locally
	AlreadyPresent int

	// Orphans are local files with no remote counterpart
	Orphans []domain.LocalEntry

	// Unreachable lists subtrees that could not be listed
	Unreachable []domain.SubtreeError
}

// Plan walks and diffs without transferring anything
func (s *SyncService) Plan(ctx context.Context) (*PlanSummary, error) {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	walker := remote.NewWalker(s.client, remote.WalkerOptions{
		Matcher:     s.matcher,
		Concurrency: s.cfg.Walker.Concurrency,
		Buffer:      s.cfg.Walker.Buffer,
	})
	nodes, report := walker.Walk(runCtx)

	snapshot, err := local.Scan(runCtx, config.ExpandPath(s.cfg.Destination))
	if err != nil {
		cancel()
		for range nodes {
		}
		return nil, err
	}

	plan := planner.New(s.matcher, snapshot)

	result := &PlanSummary{}
	for action := range plan.Plan(runCtx, nodes) {
		switch action.Type {
		case domain.ActionDownload:
			result.Downloads = append(result.Downloads, action)
		case domain.ActionSkip:
			result.Excluded++
		case domain.ActionAlreadyExists:
			result.AlreadyPresent++
		}
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	result.Unreachable = report.Unreachable()
	result.Orphans = plan.Orphans()
	return result, nil
}

// Orphans reports local files with no remote counterpart
func (s *SyncService) Orphans(ctx context.Context) ([]domain.LocalEntry, error) {
	plan, err := s.Plan(ctx)
	if err != nil {
		return nil, err
	}
	if len(plan.Unreachable) > 0 {
		// An unreachable subtree makes its files look orphaned; refuse
		// to report so a transient outage cannot suggest deletions.
		return nil, fmt.Errorf("%w: %d subtrees unreachable, orphan report would be unreliable",
			domain.ErrUnreachable, len(plan.Unreachable))
	}
	return plan.Orphans, nil
}

// RemoveOrphans deletes the given local entries. Callers must obtain
// explicit confirmation first; this is never run as a side effect of
// a sync.
func (s *SyncService) RemoveOrphans(entries []domain.LocalEntry) (int, error) {
	dest := config.ExpandPath(s.cfg.Destination)

	removed := 0
	for _, entry := range entries {
		path := filepath.Join(dest, filepath.FromSlash(entry.Path))
		if err := os.Remove(path); err != nil {
			return removed, fmt.Errorf("failed to remove %s: %w", entry.Path, err)
		}
		s.log.Info("removed orphan", "path", entry.Path)
		removed++
	}
	return removed, nil
}

func (s *SyncService) recordRun(summary *domain.RunSummary) {
	if s.history == nil {
		return
	}
	if err := s.history.SaveRun(state.FromSummary(summary)); err != nil {
		s.log.Warn("failed to record run history", "error", err)
	}
}

// Close releases held resources
func (s *SyncService) Close() error {
	if s.history != nil {
		return s.history.Close()
	}
	return nil
}
