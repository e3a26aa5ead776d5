// Package winproc provides owning wrappers for the native OS resources
// the core spawns: process handles, pipe handles, and job objects.
//
// Handles are stored as integer-sized opaque values (uintptr) rather than
// *os.File so that ownership can cross from the cooperative goroutine
// that requests a resource to the dedicated OS thread that blocks on it,
// and so construction here never depends on Go's runtime poller, which
// does not understand the pseudo-console's anonymous pipes. The
// underlying OS objects are documented thread-safe for the read/write/
// close operations this package performs from any goroutine.
package winproc

import "sync"

// Handle owns exactly one native OS handle and releases it exactly once.
// The zero Handle is not valid; use one of the platform constructors.
type Handle struct {
	value     uintptr
	closeOnce sync.Once
	closeFn   func(uintptr) error
}

// Value returns the raw handle for passing to further syscalls. The
// returned value remains valid only as long as the Handle has not been
// closed; callers must not retain it past Close.
func (h *Handle) Value() uintptr {
	if h == nil {
		return 0
	}
	return h.value
}

// Valid reports whether the handle refers to a live OS object.
func (h *Handle) Valid() bool {
	return h != nil && h.value != 0
}

// Close releases the underlying OS object. Safe to call multiple times
// and safe to call on a nil *Handle.
func (h *Handle) Close() error {
	if h == nil || h.value == 0 {
		return nil
	}
	var err error
	h.closeOnce.Do(func() {
		err = h.closeFn(h.value)
	})
	return err
}

// WrapForeign builds a Handle around a raw OS handle value obtained
// outside this package (e.g. a ProcessInformation field from a spawn
// helper in another package). closeFn is invoked at most once.
func WrapForeign(value uintptr, closeFn func(uintptr) error) *Handle {
	if value == 0 {
		return nil
	}
	return &Handle{value: value, closeFn: closeFn}
}

// PipePair is one anonymous pipe: a read end and a write end, each an
// owning Handle. Either end may already have been closed and handed off
// (e.g. the child-side end passed to CreateProcess and then closed in the
// parent) — Close on a pair whose ends were already closed is a no-op.
type PipePair struct {
	Read  *Handle
	Write *Handle
}

// Close releases both ends of the pipe.
func (p *PipePair) Close() error {
	if p == nil {
		return nil
	}
	rerr := p.Read.Close()
	werr := p.Write.Close()
	if rerr != nil {
		return rerr
	}
	return werr
}
