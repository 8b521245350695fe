//go:build windows

package lock

import (
	"errors"

	"golang.org/x/sys/windows"
)

// processAlive checks whether a process with the given PID exists
func processAlive(pid int) bool {
	handle, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		// Access denied still means the process is running
		if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return true
		}
		return false
	}
	windows.CloseHandle(handle)
	return true
}
