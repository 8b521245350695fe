// Package scheduler re-runs the mirror at a fixed interval for watch
// mode.
package scheduler

import (
	"context"
	"time"
)

// Status represents the current state of a scheduler
type Status struct {
	Running        bool
	LastRunTime    time.Time
	NextRunTime    time.Time
	TotalRuns      int
	SuccessfulRuns int
	FailedRuns     int
	LastError      string
}

// RunFunc executes one sync run
type RunFunc func(ctx context.Context) error
