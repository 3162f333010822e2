//go:build windows

package edit

import (
	"errors"

	"golang.org/x/sys/windows"
)

// exit code GetExitCodeProcess reports for a running process
const stillActive = 259

// isProcessAlive opens pid for a limited query. A process we may not query
// still exists.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	h, err := windows.OpenProcess(windows.PROCESS_QUERY_LIMITED_INFORMATION, false, uint32(pid))
	if err != nil {
		return errors.Is(err, windows.ERROR_ACCESS_DENIED)
	}
	defer windows.CloseHandle(h)

	var code uint32
	if err := windows.GetExitCodeProcess(h, &code); err != nil {
		return false
	}
	return code == stillActive
}
