package bwrap

import (
	"fmt"
	"io"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/Use-Tusk/bwsandbox/internal/fdpipe"
	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// SpawnError reports a failed fork/exec of bwrap itself.
type SpawnError struct {
	Program string
	Err     error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("bwrap: failed to spawn %s: %v", e.Program, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// Builder assembles the bwrap argument vector across the two-phase
// service-application protocol (spec.md §4.6.1-2). It is mutable and
// single-use: once Spawn is called, the Builder is consumed.
type Builder struct {
	bwrapPath string
	args      []string
	userArgs  []string
	userFlushed bool

	block  *fdpipe.SharedPipe
	status *fdpipe.SharedPipe

	scope *scope.Scope
	log   logrus.FieldLogger
}

// New constructs a Builder. bwrapPath is the resolved bwrap executable;
// runtimeDir is bound to itself inside the sandbox so scoped temp files
// remain visible there; userArgs is the profile's own sandbox argument
// list, appended exactly once between the apply_before and apply_after
// passes. log may be nil, in which case a discarding logger is used.
func New(bwrapPath, runtimeDir string, userArgs []string, log logrus.FieldLogger) (*Builder, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	block, err := fdpipe.NewPipe()
	if err != nil {
		return nil, err
	}
	if err := fdpipe.ShareReadEnd(block); err != nil {
		return nil, err
	}

	status, err := fdpipe.NewPipe()
	if err != nil {
		return nil, err
	}
	if err := fdpipe.ShareWriteEnd(status); err != nil {
		return nil, err
	}

	b := &Builder{
		bwrapPath: bwrapPath,
		userArgs:  userArgs,
		block:     block,
		status:    status,
		scope:     scope.New(),
		log:       log,
	}
	b.AppendArg("--bind", runtimeDir, runtimeDir)
	b.AppendArg("--block-fd")
	b.args = fdpipe.AppendAsFdArg(b.args, block.ReadFd())
	b.AppendArg("--json-status-fd")
	b.args = fdpipe.AppendAsFdArg(b.args, status.WriteFd())
	return b, nil
}

// AppendArg implements service.CommandBuilder.
func (b *Builder) AppendArg(args ...string) {
	b.args = append(b.args, args...)
}

// flushUserArgs appends the stashed user argument list exactly once.
// Calling ApplyAfter before this has run is a programming error, per
// spec.md §3's BwrapProcBuilder invariant.
func (b *Builder) flushUserArgs() {
	if b.userFlushed {
		return
	}
	b.args = append(b.args, b.userArgs...)
	b.userFlushed = true
}

// ApplyServices runs apply_before for every service in order, flushes the
// user argument buffer exactly once, then runs apply_after for every
// service in order, merging each returned Scope into the Builder's
// accumulator. The first hook error is returned and stops the pass; the
// caller keeps its own service list to Start them later in the same order.
func (b *Builder) ApplyServices(services []service.Service) error {
	for _, svc := range services {
		sc, err := svc.ApplyBefore(b)
		if err != nil {
			return fmt.Errorf("bwrap: service %q apply_before: %w", svc.Name(), err)
		}
		b.scope.Merge(sc)
	}

	b.flushUserArgs()

	for _, svc := range services {
		sc, err := svc.ApplyAfter(b)
		if err != nil {
			return fmt.Errorf("bwrap: service %q apply_after: %w", svc.Name(), err)
		}
		b.scope.Merge(sc)
	}

	return nil
}

// Scope exposes the accumulated scope so the caller can wrap it in a
// scope.Cleanup once spawn has succeeded.
func (b *Builder) Scope() *scope.Scope { return b.scope }

// Spawn appends the payload and its arguments, starts bwrap with inherited
// stdout/stderr, and blocks for the initial SandboxStatus event. The
// Builder is consumed: its pipes are handed off to the returned Proc.
func (b *Builder) Spawn(payload string, payloadArgs []string) (*Proc, error) {
	b.flushUserArgs() // no-op if ApplyServices already flushed

	args := append(append([]string{}, b.args...), payload)
	args = append(args, payloadArgs...)

	cmd := exec.Command(b.bwrapPath, args...)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr

	b.log.WithField("argv", args).Debug("bwrap: spawning")

	if err := cmd.Start(); err != nil {
		return nil, &SpawnError{Program: b.bwrapPath, Err: err}
	}

	// bwrap now holds its own inherited copies of the block read-end and
	// status write-end; release the parent's copies of those same ends so
	// EOF/closed-pipe detection on the opposite ends behaves correctly,
	// mirroring internal/netns's ready-pipe handling.
	if err := b.block.ReadFd().Close(); err != nil {
		b.log.WithError(err).Warn("bwrap: failed to release parent's block read-fd copy")
	}
	if err := b.status.WriteFd().Close(); err != nil {
		b.log.WithError(err).Warn("bwrap: failed to release parent's status write-fd copy")
	}

	return newProc(cmd, b.block, b.status, b.log)
}
