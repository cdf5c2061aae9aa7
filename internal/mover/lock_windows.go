//go:build windows

package mover

import (
	"errors"

	"golang.org/x/sys/windows"
)

// FileLockProbe opens the file with no sharing allowed. Applications such as
// Excel keep exports open without write sharing, which makes the open fail
// with a sharing violation.
type FileLockProbe struct{}

// Locked implements LockProbe.
func (FileLockProbe) Locked(path string) (bool, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return false, err
	}
	h, err := windows.CreateFile(
		name,
		windows.GENERIC_READ|windows.GENERIC_WRITE,
		0,
		nil,
		windows.OPEN_EXISTING,
		windows.FILE_ATTRIBUTE_NORMAL,
		0,
	)
	if err != nil {
		if errors.Is(err, windows.ERROR_SHARING_VIOLATION) || errors.Is(err, windows.ERROR_LOCK_VIOLATION) {
			return true, nil
		}
		return false, err
	}
	windows.CloseHandle(h)
	return false, nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, windows.ERROR_NOT_SAME_DEVICE)
}
