//go:build !unix && !windows

package mover

import "os"

// FileLockProbe only checks that the file can be opened for writing.
type FileLockProbe struct{}

// Locked implements LockProbe.
func (FileLockProbe) Locked(path string) (bool, error) {
	f, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		if os.IsNotExist(err) {
			return false, err
		}
		return true, nil
	}
	f.Close()
	return false, nil
}

func isCrossDevice(error) bool {
	return false
}
