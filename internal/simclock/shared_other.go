//go:build !unix

package simclock

import "errors"

// ErrSharedUnsupported is returned where memory-mapped clocks are unavailable.
var ErrSharedUnsupported = errors.New("simclock: shared clock requires a unix platform")

// CreateShared is unavailable on this platform.
func CreateShared(path string) (*Clock, error) {
	return nil, ErrSharedUnsupported
}

// OpenShared is unavailable on this platform.
func OpenShared(path string) (*Clock, error) {
	return nil, ErrSharedUnsupported
}
