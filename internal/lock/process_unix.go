//go:build !windows

package lock

import (
	"errors"
	"os"
	"syscall"
)

// processAlive checks whether a process with the given PID exists
func processAlive(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// On Unix FindProcess always succeeds; signal 0 probes existence
	err = process.Signal(syscall.Signal(0))
	if err == nil {
		return true
	}
	// EPERM: the process exists but is owned by someone else
	if errors.Is(err, syscall.EPERM) {
		return true
	}
	return false
}
