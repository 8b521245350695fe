package progress

import (
	"fmt"
	"io"

	"mirrorsync/internal/logger"
)

// Reporter receives transfer progress events. Transfers run on several
// workers at once, so every event carries the file path and
// implementations must be safe for concurrent use.
type Reporter interface {
	// Start begins tracking a transfer; total may be negative when the
	// size is unknown
	Start(path string, total int64)
	// Progress reports cumulative bytes transferred for a file
	Progress(path string, transferred int64)
	// Complete marks a transfer as finished
	Complete(path string, bytes int64)
	// Error reports a failed transfer
	Error(path string, err error)
}

// NullReporter is a no-op reporter
type NullReporter struct{}

func (NullReporter) Start(path string, total int64)          {}
func (NullReporter) Progress(path string, transferred int64) {}
func (NullReporter) Complete(path string, bytes int64)       {}
func (NullReporter) Error(path string, err error)            {}

// LogReporter emits start/complete/error events through the logger.
// Byte-level progress is deliberately not logged.
type LogReporter struct {
	log logger.Logger
}

// NewLogReporter creates a reporter backed by the given logger
func NewLogReporter(log logger.Logger) *LogReporter {
	return &LogReporter{log: log}
}

func (r *LogReporter) Start(path string, total int64) {
	if total >= 0 {
		r.log.Info("downloading", "path", path, "size", FormatBytes(total))
	} else {
		r.log.Info("downloading", "path", path)
	}
}

func (r *LogReporter) Progress(path string, transferred int64) {}

func (r *LogReporter) Complete(path string, bytes int64) {
	r.log.Info("downloaded", "path", path, "size", FormatBytes(bytes))
}

func (r *LogReporter) Error(path string, err error) {
	r.log.Error("download failed", "path", path, "error", err)
}

// Reader wraps an io.Reader and reports cumulative bytes read
type Reader struct {
	reader      io.Reader
	reporter    Reporter
	path        string
	transferred int64
}

// NewReader creates a progress-tracking reader for one transfer
func NewReader(r io.Reader, reporter Reporter, path string) *Reader {
	return &Reader{
		reader:   r,
		reporter: reporter,
		path:     path,
	}
}

// Read implements io.Reader
func (pr *Reader) Read(p []byte) (n int, err error) {
	n, err = pr.reader.Read(p)
	if n > 0 {
		pr.transferred += int64(n)
		if pr.reporter != nil {
			pr.reporter.Progress(pr.path, pr.transferred)
		}
	}
	return n, err
}

// Transferred returns the cumulative byte count
func (pr *Reader) Transferred() int64 {
	return pr.transferred
}

// FormatBytes formats bytes into a human-readable string
func FormatBytes(bytes int64) string {
	const (
		KB = 1024
		MB = KB * 1024
		GB = MB * 1024
	)

	switch {
	case bytes >= GB:
		return fmt.Sprintf("%.1f GB", float64(bytes)/GB)
	case bytes >= MB:
		return fmt.Sprintf("%.1f MB", float64(bytes)/MB)
	case bytes >= KB:
		return fmt.Sprintf("%.1f KB", float64(bytes)/KB)
	default:
		return fmt.Sprintf("%d B", bytes)
	}
}

// FormatSpeed formats bytes per second into a human-readable string
func FormatSpeed(bytesPerSecond float64) string {
	return FormatBytes(int64(bytesPerSecond)) + "/s"
}
