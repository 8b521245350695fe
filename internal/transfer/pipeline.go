// Package transfer executes download actions against the destination
// directory with a bounded worker pool.
package transfer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"

	"mirrorsync/internal/domain"
	"mirrorsync/internal/logger"
	"mirrorsync/internal/progress"
	"mirrorsync/internal/remote"
)

const (
	defaultWorkers  = 4
	defaultRetries  = 3
	tmpSuffix       = ".mirrorsync.tmp"
	defaultFileMode = 0644
	defaultDirMode  = 0755
)

// Options configures a Pipeline
type Options struct {
	// Workers bounds concurrent downloads
	Workers int

	// Retries bounds download attempts per file beyond the first
	Retries int

	// Refresh sends conditional GETs for files that already exist
	// locally instead of trusting bare presence
	Refresh bool

	// Reporter receives transfer progress events
	Reporter progress.Reporter
}

// Pipeline consumes sync actions and reconciles the destination tree.
// Downloads stream to a temporary path and are renamed into place only
// after the byte count verifies, so an interrupted transfer never
// leaves a partial file at its final path.
type Pipeline struct {
	client   *remote.Client
	destRoot string
	workers  int
	retries  int
	refresh  bool
	reporter progress.Reporter
	log      logger.Logger
}

// NewPipeline creates a pipeline writing under destRoot
func NewPipeline(client *remote.Client, destRoot string, opts Options) *Pipeline {
	p := &Pipeline{
		client:   client,
		destRoot: destRoot,
		workers:  opts.Workers,
		retries:  opts.Retries,
		refresh:  opts.Refresh,
		reporter: opts.Reporter,
		log:      logger.Get().With("component", "transfer"),
	}
	if p.workers <= 0 {
		p.workers = defaultWorkers
	}
	if p.retries < 0 {
		p.retries = defaultRetries
	}
	if p.reporter == nil {
		p.reporter = progress.NullReporter{}
	}
	return p
}

// Run consumes actions until the channel closes and emits one result
// per action. The result channel closes when all workers finish.
// Worker count bounds parallel connections; the channel hand-off keeps
// the producer from racing ahead unboundedly.
func (p *Pipeline) Run(ctx context.Context, actions <-chan domain.SyncAction) <-chan domain.TransferResult {
	results := make(chan domain.TransferResult, p.workers)

	var wg sync.WaitGroup
	for i := 0; i < p.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for action := range actions {
				result := p.handle(ctx, action)
				select {
				case results <- result:
				case <-ctx.Done():
					return
				}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(results)
	}()

	return results
}

func (p *Pipeline) handle(ctx context.Context, action domain.SyncAction) domain.TransferResult {
	switch action.Type {
	case domain.ActionSkip:
		return domain.TransferResult{Path: action.Path, Outcome: domain.OutcomeSkipped}

	case domain.ActionAlreadyExists:
		if p.refresh {
			return p.download(ctx, action, p.localModTime(action.Path))
		}
		return domain.TransferResult{Path: action.Path, Outcome: domain.OutcomeAlreadyPresent}

	case domain.ActionDownload:
		return p.download(ctx, action, zeroTime)

	default:
		return domain.TransferResult{
			Path:    action.Path,
			Outcome: domain.OutcomeFailed,
			Err:     fmt.Errorf("unknown action type: %s", action.Type),
		}
	}
}

// download runs one file transfer with retries. Transient failures
// back off exponentially; 4xx and local filesystem errors are terminal
// for the file without aborting other transfers.
func (p *Pipeline) download(ctx context.Context, action domain.SyncAction, ifModifiedSince time.Time) domain.TransferResult {
	result := domain.TransferResult{Path: action.Path}

	op := func() error {
		result.Attempts++
		n, err := p.attempt(ctx, action, ifModifiedSince)
		if err != nil {
			if errors.Is(err, domain.ErrNotModified) {
				return backoff.Permanent(err)
			}
			if !errors.Is(err, domain.ErrTransient) && !errors.Is(err, domain.ErrSizeMismatch) {
				return backoff.Permanent(err)
			}
			p.log.Warn("transfer attempt failed",
				"path", action.Path,
				"attempt", result.Attempts,
				"error", err,
			)
			return err
		}
		result.Bytes = n
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(p.client.NewBackOff(), uint64(p.retries)),
		ctx,
	)
	err := backoff.Retry(op, policy)

	switch {
	case err == nil:
		result.Outcome = domain.OutcomeSuccess
	case errors.Is(err, domain.ErrNotModified):
		result.Outcome = domain.OutcomeAlreadyPresent
	default:
		result.Outcome = domain.OutcomeFailed
		result.Err = err
		p.reporter.Error(action.Path, err)
	}
	return result
}

// attempt performs a single transfer: ensure the parent directory,
// stream to a temporary file, verify the byte count, rename into place.
// On any failure the temporary file is removed.
func (p *Pipeline) attempt(ctx context.Context, action domain.SyncAction, ifModifiedSince time.Time) (int64, error) {
	dst := filepath.Join(p.destRoot, filepath.FromSlash(action.Path))

	if err := os.MkdirAll(filepath.Dir(dst), defaultDirMode); err != nil {
		return 0, fmt.Errorf("failed to create parent directory: %w", err)
	}

	file, err := p.client.Fetch(ctx, action.Path, ifModifiedSince)
	if err != nil {
		return 0, err
	}
	defer file.Body.Close()

	// The server's Content-Length is authoritative when present; the
	// listing's size hint fills in when it is not.
	expected := file.Size
	if expected == domain.SizeUnknown {
		expected = action.ExpectedSize
	}

	p.reporter.Start(action.Path, expected)

	tmp := dst + tmpSuffix
	written, err := p.writeTemp(tmp, file.Body, action.Path)
	if err != nil {
		os.Remove(tmp)
		return 0, err
	}

	if expected != domain.SizeUnknown && written != expected {
		os.Remove(tmp)
		return 0, fmt.Errorf("%w: %s: got %d bytes, expected %d",
			domain.ErrSizeMismatch, action.Path, written, expected)
	}

	if !file.LastModified.IsZero() {
		// Best effort; a failed utime never fails the transfer
		_ = os.Chtimes(tmp, file.LastModified, file.LastModified)
	}

	if err := os.Rename(tmp, dst); err != nil {
		os.Remove(tmp)
		return 0, fmt.Errorf("failed to finalize %s: %w", action.Path, err)
	}

	p.reporter.Complete(action.Path, written)
	return written, nil
}

func (p *Pipeline) writeTemp(tmp string, body io.Reader, path string) (int64, error) {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, defaultFileMode)
	if err != nil {
		return 0, fmt.Errorf("failed to create temporary file: %w", err)
	}

	written, copyErr := io.Copy(f, progress.NewReader(body, p.reporter, path))
	closeErr := f.Close()

	if copyErr != nil {
		return written, classifyCopyError(copyErr)
	}
	if closeErr != nil {
		return written, fmt.Errorf("failed to close temporary file: %w", closeErr)
	}
	return written, nil
}

// classifyCopyError marks interrupted body reads as transient so the
// transfer is retried; local write errors stay terminal.
func classifyCopyError(err error) error {
	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return err // local filesystem failure
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	return fmt.Errorf("%w: %v", domain.ErrTransient, err)
}

// localModTime returns the destination file's mtime for conditional
// GETs, zero when unavailable
func (p *Pipeline) localModTime(relPath string) time.Time {
	info, err := os.Stat(filepath.Join(p.destRoot, filepath.FromSlash(relPath)))
	if err != nil {
		return zeroTime
	}
	return info.ModTime()
}

var zeroTime = time.Time{}
