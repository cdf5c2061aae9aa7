//go:build unix

package mover

import (
	"errors"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// FileLockProbe opens the file for writing and tries a non-blocking
// exclusive flock. A held lock or a busy text file counts as locked.
type FileLockProbe struct{}

// Locked implements LockProbe.
func (FileLockProbe) Locked(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		switch {
		case errors.Is(err, fs.ErrNotExist):
			return false, err
		case errors.Is(err, unix.ETXTBSY):
			return true, nil
		case errors.Is(err, fs.ErrPermission):
			// Read-only files are not locks; fall back to a read open so
			// permissions alone do not look like contention.
			f, err = os.Open(path)
			if err != nil {
				return false, err
			}
		default:
			return false, err
		}
	}
	defer f.Close()

	fd := int(f.Fd())
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return true, nil
		}
		// Filesystems without flock support cannot report contention.
		return false, nil
	}
	_ = unix.Flock(fd, unix.LOCK_UN)
	return false, nil
}

func isCrossDevice(err error) bool {
	return errors.Is(err, unix.EXDEV)
}
