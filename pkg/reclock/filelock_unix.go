//go:build unix

package reclock

import (
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FileLock implements Lock over a single file shared by every node via
// the cluster's shared storage, using an exclusive, non-blocking
// flock(2). Acquisition is tied to the open file descriptor: if this
// process dies, the kernel releases the lock automatically, which is
// exactly the failure signal the recovery lock arbiter relies on.
type FileLock struct {
	path string

	mu   sync.Mutex
	file *os.File
	held bool
}

// NewFileLock returns a FileLock over path. The file is created if it
// does not already exist; it is not locked until TryAcquire succeeds.
func NewFileLock(path string) *FileLock {
	return &FileLock{path: path}
}

// TryAcquire implements Lock.
func (f *FileLock) TryAcquire() (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.held {
		return true, nil
	}

	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return false, err
	}

	err = unix.Flock(int(file.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		file.Close()
		if err == unix.EWOULDBLOCK {
			return false, nil
		}
		return false, err
	}

	f.file = file
	f.held = true
	return true, nil
}

// Release implements Lock.
func (f *FileLock) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.held || f.file == nil {
		return nil
	}

	err := unix.Flock(int(f.file.Fd()), unix.LOCK_UN)
	f.file.Close()
	f.file = nil
	f.held = false
	return err
}

// IsHeld implements Lock by attempting a fresh, independent acquisition
// on a second file descriptor. flock(2) locks are associated with the
// open file description, not the process, so a second non-blocking
// exclusive attempt succeeds only if the original lock has been lost
// (for example, if the shared storage dropped our lease); in that case
// the probe immediately releases its own redundant acquisition and
// reports the loss.
func (f *FileLock) IsHeld() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if !f.held || f.file == nil {
		return false
	}

	probe, err := os.OpenFile(f.path, os.O_RDWR, 0o644)
	if err != nil {
		// Cannot even open the file; treat as lost rather than masking
		// the failure.
		return false
	}
	defer probe.Close()

	err = unix.Flock(int(probe.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err == nil {
		// We were able to acquire a second, independent lock: our
		// original hold is gone.
		unix.Flock(int(probe.Fd()), unix.LOCK_UN)
		f.held = false
		return false
	}
	return err == unix.EWOULDBLOCK
}
