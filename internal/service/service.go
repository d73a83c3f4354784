// Package service defines the uniform capability each side-car exposes to
// the orchestrator: two hooks that mutate the forming bwrap command line,
// and one hook that launches the side-car once the sandbox's inner PID and
// namespaces are known.
package service

import "github.com/Use-Tusk/bwsandbox/internal/scope"

// SandboxStatus is the subset of the orchestrator's sandbox-status event a
// service needs to start: the inner payload's PID and, when bwrap reported
// them, its namespace inode numbers. Defined here (not imported from
// internal/bwrap) to keep this package free of a dependency on the
// orchestrator, which depends on Service instead.
type SandboxStatus struct {
	ChildPID        int
	CgroupNamespace *uint64
	IPCNamespace    *uint64
	MountNamespace  *uint64
	NetNamespace    *uint64
	PIDNamespace    *uint64
	UTSNamespace    *uint64
}

// CommandBuilder is the minimal capability passed to apply_before/
// apply_after: the ability to mutate the command under construction.
// Implemented by *bwrap.Builder; kept as an interface here so
// services never import the orchestrator package.
type CommandBuilder interface {
	// AppendArg appends one or more literal arguments to the forming
	// bwrap command line.
	AppendArg(args ...string)
}

// Handle owns a started side-car resource (a child process, an open file,
// or nothing) and stops it exactly once, on Close.
type Handle interface {
	Close() error
}

// noopHandle is returned by services with nothing to stop at Close time.
type noopHandle struct{}

func (noopHandle) Close() error { return nil }

// NoopHandle is a Handle whose Close is a no-op, for services that hold no
// side-car resource (e.g. an apply-only service like env clearing).
func NoopHandle() Handle { return noopHandle{} }

// Service is the contract every side-car implements, applied in this order
// by the orchestrator: ApplyBefore for all services, then the user's
// profile arguments, then ApplyAfter for all services; finally, once bwrap
// has emitted its SandboxStatus event, Start for all services.
type Service interface {
	// Name identifies the service kind, for logging and error context.
	Name() string

	// ApplyBefore may append arguments to cmd and allocate resources
	// registered in the returned Scope. Runs before the profile's own
	// sandbox arguments.
	ApplyBefore(cmd CommandBuilder) (*scope.Scope, error)

	// ApplyAfter has the same contract as ApplyBefore but runs after the
	// profile's sandbox arguments, so it can override a user-specified
	// bind or setting.
	ApplyAfter(cmd CommandBuilder) (*scope.Scope, error)

	// Start launches any side-car process needed once bwrap has reported
	// status. May block until the side-car signals readiness. Returns an
	// owning Handle whose Close stops the side-car.
	Start(status SandboxStatus) (Handle, error)
}

// Base provides no-op ApplyBefore/ApplyAfter/Start implementations so a
// service only needs to override the hooks it actually uses, mirroring how
// the teacher's Manager leaves unused lifecycle steps as cheap no-ops.
type Base struct{}

func (Base) ApplyBefore(CommandBuilder) (*scope.Scope, error) { return nil, nil }
func (Base) ApplyAfter(CommandBuilder) (*scope.Scope, error)  { return nil, nil }
func (Base) Start(SandboxStatus) (Handle, error)              { return NoopHandle(), nil }
