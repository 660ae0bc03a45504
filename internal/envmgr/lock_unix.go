// SPDX-License-Identifier: MPL-2.0

//go:build unix

package envmgr

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// envLock holds a blocking exclusive flock on the environment's lock file,
// serializing materialization of the same environment across concurrent
// crucible invocations. The zero-byte lock file is harmless if orphaned;
// the kernel releases the flock when the fd closes, including on crash.
type envLock struct {
	file *os.File
}

// acquireEnvLock opens (or creates) the lock file at path and acquires a
// blocking exclusive flock.
func acquireEnvLock(path string) (*envLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open lock file %s: %w", path, err)
	}
	if err := unix.Flock(int(f.Fd()), unix.LOCK_EX); err != nil {
		f.Close()
		return nil, fmt.Errorf("flock %s: %w", path, err)
	}
	return &envLock{file: f}, nil
}

// Release unlocks the flock and closes the file descriptor. Safe to call
// multiple times.
func (l *envLock) Release() {
	if l == nil || l.file == nil {
		return
	}
	// LOCK_UN before Close for explicitness; Close also releases the flock.
	_ = unix.Flock(int(l.file.Fd()), unix.LOCK_UN)
	_ = l.file.Close()
	l.file = nil
}
