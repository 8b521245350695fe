// Package lock prevents two mirror runs from writing the same
// destination directory at once.
package lock

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mirrorsync/internal/domain"
)

const (
	// LockFileName is created inside the destination directory
	LockFileName = ".mirrorsync.lock"

	// DefaultStaleTimeout is the age after which a lock is considered
	// abandoned by a crashed process
	DefaultStaleTimeout = 12 * time.Hour
)

// LockInfo contains metadata about the lock holder
type LockInfo struct {
	PID       int       `json:"pid"`
	Hostname  string    `json:"hostname"`
	StartTime time.Time `json:"start_time"`
}

// LockError reports a lock held by another process
type LockError struct {
	Holder *LockInfo
}

func (e *LockError) Error() string {
	return fmt.Sprintf("destination locked by pid %d on %s since %s",
		e.Holder.PID, e.Holder.Hostname, e.Holder.StartTime.Format(time.RFC3339))
}

func (e *LockError) Unwrap() error { return domain.ErrSyncInProgress }

// FileLock is a file-based lock rooted at the destination directory
type FileLock struct {
	lockPath     string
	staleTimeout time.Duration
	info         *LockInfo
}

// New creates a lock for the given destination directory, creating the
// directory if needed
func New(destDir string) (*FileLock, error) {
	if destDir == "" {
		return nil, fmt.Errorf("destination directory cannot be empty")
	}
	if err := os.MkdirAll(destDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create destination directory: %w", err)
	}

	return &FileLock{
		lockPath:     filepath.Join(destDir, LockFileName),
		staleTimeout: DefaultStaleTimeout,
	}, nil
}

// SetStaleTimeout overrides the stale-lock age
func (l *FileLock) SetStaleTimeout(d time.Duration) {
	l.staleTimeout = d
}

// Acquire attempts to take the lock. Returns a LockError when another
// live process holds it; a stale lock is removed and re-taken.
func (l *FileLock) Acquire() error {
	if existing, err := l.readLockInfo(); err == nil {
		if l.isStale(existing) {
			if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove stale lock: %w", err)
			}
		} else {
			return &LockError{Holder: existing}
		}
	}

	hostname, _ := os.Hostname()
	info := &LockInfo{
		PID:       os.Getpid(),
		Hostname:  hostname,
		StartTime: time.Now(),
	}

	file, err := os.OpenFile(l.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0644)
	if err != nil {
		if os.IsExist(err) {
			existing, readErr := l.readLockInfo()
			if readErr != nil {
				return fmt.Errorf("lock acquisition race: %w", err)
			}
			return &LockError{Holder: existing}
		}
		return fmt.Errorf("failed to create lock file: %w", err)
	}
	defer file.Close()

	encoder := json.NewEncoder(file)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(info); err != nil {
		os.Remove(l.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	l.info = info
	return nil
}

// Release removes the lock if this instance holds it
func (l *FileLock) Release() error {
	if l.info == nil {
		return nil
	}

	existing, err := l.readLockInfo()
	if err != nil {
		l.info = nil
		return nil // already gone
	}
	if !l.isHeldByThisInstance(existing) {
		l.info = nil
		return fmt.Errorf("lock was taken over by another process")
	}

	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove lock file: %w", err)
	}
	l.info = nil
	return nil
}

// IsLocked checks if a live lock is currently held
func (l *FileLock) IsLocked() bool {
	info, err := l.readLockInfo()
	if err != nil {
		return false
	}
	return !l.isStale(info)
}

// Holder returns information about the current lock holder
func (l *FileLock) Holder() (*LockInfo, error) {
	info, err := l.readLockInfo()
	if err != nil {
		return nil, err
	}
	if l.isStale(info) {
		return nil, fmt.Errorf("lock is stale")
	}
	return info, nil
}

// ForceRelease removes the lock file regardless of holder. Only for
// recovery after a crashed run.
func (l *FileLock) ForceRelease() error {
	if err := os.Remove(l.lockPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to force remove lock: %w", err)
	}
	l.info = nil
	return nil
}

func (l *FileLock) readLockInfo() (*LockInfo, error) {
	data, err := os.ReadFile(l.lockPath)
	if err != nil {
		return nil, err
	}

	var info LockInfo
	if err := json.Unmarshal(data, &info); err != nil {
		return nil, fmt.Errorf("failed to parse lock file: %w", err)
	}
	return &info, nil
}

func (l *FileLock) isStale(info *LockInfo) bool {
	if time.Since(info.StartTime) > l.staleTimeout {
		return true
	}
	hostname, _ := os.Hostname()
	if info.Hostname == hostname && !processAlive(info.PID) {
		return true
	}
	return false
}

func (l *FileLock) isHeldByThisInstance(info *LockInfo) bool {
	return l.info != nil &&
		info.PID == l.info.PID &&
		info.Hostname == l.info.Hostname &&
		info.StartTime.Equal(l.info.StartTime)
}
