package domain

import "time"

// ActionType represents the type of sync action
type ActionType string

const (
	// ActionDownload transfers the remote file to the destination
	ActionDownload ActionType = "download"

	// ActionSkip leaves an excluded file untouched
	ActionSkip ActionType = "skip"

	// ActionAlreadyExists leaves an already-present file untouched
	ActionAlreadyExists ActionType = "already-exists"
)

// SyncAction is one planned operation for a single remote file.
// Every file-kind RemoteNode maps to exactly one SyncAction.
type SyncAction struct {
	// Type of action to perform
	Type ActionType

	// Path is the relative path being operated on
	Path string

	// ExpectedSize in bytes, SizeUnknown when the listing had no size
	ExpectedSize int64

	// Reason explains why this action was chosen
	Reason string
}

// Outcome represents the terminal state of one transfer
type Outcome string

const (
	OutcomeSuccess        Outcome = "success"
	OutcomeFailed         Outcome = "failed"
	OutcomeSkipped        Outcome = "skipped"
	OutcomeAlreadyPresent Outcome = "already-present"
)

// TransferResult reports the outcome of handling one SyncAction
type TransferResult struct {
	// Path is the relative path that was handled
	Path string

	// Outcome of the transfer
	Outcome Outcome

	// Bytes actually written to disk (downloads only)
	Bytes int64

	// Attempts is the number of download attempts made
	Attempts int

	// Err is the terminal error for failed transfers
	Err error
}

// SubtreeError records a remote directory that stayed unreachable
// after retries were exhausted.
type SubtreeError struct {
	// Path of the unreachable directory
	Path string

	// Err is the final fetch error
	Err error
}

// RunSummary aggregates the outcome of one sync run
type RunSummary struct {
	// Downloaded counts successful transfers
	Downloaded int

	// AlreadyPresent counts files skipped because they exist locally
	AlreadyPresent int

	// Excluded counts files skipped by exclude patterns
	Excluded int

	// Failed counts terminal transfer failures
	Failed int

	// BytesTransferred is the total bytes written by downloads
	BytesTransferred int64

	// Unreachable lists subtrees that could not be listed
	Unreachable []SubtreeError

	// Orphans are local files with no remote counterpart
	Orphans []LocalEntry

	// StartTime and EndTime bound the run
	StartTime time.Time
	EndTime   time.Time
}

// Ok returns true when nothing failed terminally: every non-excluded
// file was transferred or already present and every subtree was listed.
func (s *RunSummary) Ok() bool {
	return s.Failed == 0 && len(s.Unreachable) == 0
}

// Duration returns the wall-clock duration of the run
func (s *RunSummary) Duration() time.Duration {
	return s.EndTime.Sub(s.StartTime)
}
