// SPDX-License-Identifier: MPL-2.0

//go:build !unix

package envmgr

import (
	"fmt"
	"os"
)

// envLock approximates flock semantics on platforms without it by creating
// the lock file exclusively. Unlike the flock variant this does not survive
// a crashed holder, but a stale file only blocks the same environment.
type envLock struct {
	path string
}

// acquireEnvLock creates the lock file at path exclusively.
func acquireEnvLock(path string) (*envLock, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, fmt.Errorf("environment is locked by another invocation (%s): %w", path, err)
	}
	f.Close()
	return &envLock{path: path}, nil
}

// Release removes the lock file. Safe to call multiple times.
func (l *envLock) Release() {
	if l == nil || l.path == "" {
		return
	}
	_ = os.Remove(l.path)
	l.path = ""
}
