//go:build unix

package simclock

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

// wordSize is the size of the mapped clock region.
const wordSize = 8

// CreateShared creates a zeroed clock in a memory-mapped file at path so
// that worker processes can map the same storage with OpenShared. Close
// unmaps the region and removes the file.
func CreateShared(path string) (*Clock, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("simclock: create %s: %w", path, err)
	}
	defer f.Close()

	if err := f.Truncate(wordSize); err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("simclock: size %s: %w", path, err)
	}

	data, err := unix.Mmap(int(f.Fd()), 0, wordSize, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		_ = os.Remove(path)
		return nil, fmt.Errorf("simclock: map %s: %w", path, err)
	}

	return &Clock{
		word: (*atomic.Uint64)(unsafe.Pointer(&data[0])),
		release: func() error {
			return errors.Join(unix.Munmap(data), os.Remove(path))
		},
	}, nil
}

// OpenShared maps an existing shared clock read-only. Calling Advance on the
// returned clock faults; workers only Read.
func OpenShared(path string) (*Clock, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("simclock: open %s: %w", path, err)
	}
	defer f.Close()

	data, err := unix.Mmap(int(f.Fd()), 0, wordSize, unix.PROT_READ, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("simclock: map %s: %w", path, err)
	}

	return &Clock{
		word: (*atomic.Uint64)(unsafe.Pointer(&data[0])),
		release: func() error {
			return unix.Munmap(data)
		},
	}, nil
}
