// Package fdpipe allocates pipes for handing descriptors across fork/exec
// to bwrap and its side-car services, and tracks which end of each pipe has
// been published to a child so the parent can't accidentally race itself.
package fdpipe

import (
	"fmt"
	"os"
	"strconv"

	"golang.org/x/sys/unix"
)

// state is the lifecycle of a single file descriptor.
type state int

const (
	// Owned means the descriptor is parent-exclusive and will be closed on
	// drop; close-on-exec is still set, so it will not survive exec.
	Owned state = iota
	// Shared means close-on-exec has been cleared: the descriptor will
	// survive an exec into a child. The parent still holds the fd but must
	// not pass it to a second child.
	Shared
)

// FdStatus wraps a single descriptor together with its sharing state.
// The zero value is not valid; use newFdStatus.
type FdStatus struct {
	f     *os.File
	state state
}

func newFdStatus(f *os.File) *FdStatus {
	return &FdStatus{f: f, state: Owned}
}

// String renders the descriptor's numeric form, valid in either state.
func (s *FdStatus) String() string {
	return strconv.Itoa(int(s.f.Fd()))
}

// Fd returns the raw descriptor number.
func (s *FdStatus) Fd() uintptr {
	return s.f.Fd()
}

// IsShared reports whether close-on-exec has been cleared on this end.
func (s *FdStatus) IsShared() bool {
	return s.state == Shared
}

// Close closes the parent's own copy of the descriptor. Used after a
// successful spawn to drop the orchestrator's reference to a Shared end:
// the spawned child holds its own inherited copy across exec, and the
// parent must release its copy for the opposite end's reader to observe
// EOF when the child later closes its copy (otherwise the pipe's write
// side never reaches a zero refcount and reads block forever).
func (s *FdStatus) Close() error {
	return s.f.Close()
}

// share clears FD_CLOEXEC on the wrapped descriptor. Idempotent and
// monotonic: sharing an already-shared fd is a no-op, not an error.
func (s *FdStatus) share() error {
	if s.state == Shared {
		return nil
	}
	fd := int(s.f.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return &FdShareFailedError{Fd: fd, Err: err}
	}
	flags &^= unix.FD_CLOEXEC
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags); err != nil {
		return &FdShareFailedError{Fd: fd, Err: err}
	}
	s.state = Shared
	return nil
}

// intoIO consumes the descriptor for parent-side I/O use. It panics if the
// descriptor has already been shared with a child: reading or writing a
// descriptor the child also inherited is a correctness hazard, not merely
// unsafe, so this is a contract violation rather than a recoverable error.
func (s *FdStatus) intoIO() *os.File {
	if s.state == Shared {
		panic("fdpipe: attempted to consume a shared descriptor as parent-side I/O")
	}
	return s.f
}

// FdShareFailedError reports a failed attempt to clear close-on-exec.
type FdShareFailedError struct {
	Fd  int
	Err error
}

func (e *FdShareFailedError) Error() string {
	return fmt.Sprintf("fdpipe: failed to share fd %d: %v", e.Fd, e.Err)
}

func (e *FdShareFailedError) Unwrap() error { return e.Err }

// PipeAllocError reports a failed pipe(2) call.
type PipeAllocError struct {
	Err error
}

func (e *PipeAllocError) Error() string {
	return fmt.Sprintf("fdpipe: failed to allocate pipe: %v", e.Err)
}

func (e *PipeAllocError) Unwrap() error { return e.Err }

// SharedPipe wraps the two ends of a pipe, each independently shareable.
// The read end carries data from write to read; either end may be marked
// Shared (passed to a child) while the other remains parent-side I/O.
type SharedPipe struct {
	read  *FdStatus
	write *FdStatus
}

// NewPipe allocates a SharedPipe in the Owned/Owned state.
func NewPipe() (*SharedPipe, error) {
	r, w, err := os.Pipe()
	if err != nil {
		return nil, &PipeAllocError{Err: err}
	}
	return &SharedPipe{read: newFdStatus(r), write: newFdStatus(w)}, nil
}

// ShareReadEnd clears close-on-exec on the read end and marks it Shared.
func ShareReadEnd(p *SharedPipe) error {
	return p.read.share()
}

// ShareWriteEnd clears close-on-exec on the write end and marks it Shared.
func ShareWriteEnd(p *SharedPipe) error {
	return p.write.share()
}

// ReadFd exposes the read end's FdStatus, e.g. to render it as a command
// line argument via AppendAsFdArg.
func (p *SharedPipe) ReadFd() *FdStatus { return p.read }

// WriteFd exposes the write end's FdStatus.
func (p *SharedPipe) WriteFd() *FdStatus { return p.write }

// AppendAsFdArg converts a Shared fd to its numeric string form and appends
// it as one argument to command.
func AppendAsFdArg(command []string, fd *FdStatus) []string {
	return append(command, fd.String())
}

// IntoReader consumes the pipe and returns the read end as a parent-side
// reader. Panics if the read end was itself shared with a child.
func IntoReader(p *SharedPipe) *os.File {
	return p.read.intoIO()
}

// IntoWriter consumes the pipe and returns the write end as a parent-side
// writer. Panics if the write end was itself shared with a child.
func IntoWriter(p *SharedPipe) *os.File {
	return p.write.intoIO()
}
