// Package bwrap implements the orchestrator core: BwrapProcBuilder
// assembles the bwrap argument vector across a two-phase service-
// application protocol, and BwrapProc owns the spawned child through
// status-event parsing, service startup, payload release, and wait.
package bwrap

import (
	"bufio"
	"encoding/json"
	"fmt"
)

// SandboxStatusEvent is the wire form of bwrap's SandboxStatus event,
// emitted once before the payload runs. Proc.Status converts it into
// internal/service's SandboxStatus, the type every Service.Start takes.
type SandboxStatusEvent struct {
	ChildPID        *uint64 `json:"child-pid"`
	CgroupNamespace *uint64 `json:"cgroup-namespace,omitempty"`
	IPCNamespace    *uint64 `json:"ipc-namespace,omitempty"`
	MountNamespace  *uint64 `json:"mnt-namespace,omitempty"`
	NetNamespace    *uint64 `json:"net-namespace,omitempty"`
	PIDNamespace    *uint64 `json:"pid-namespace,omitempty"`
	UTSNamespace    *uint64 `json:"uts-namespace,omitempty"`
}

// ExitStatusEvent is emitted once, on payload exit.
type ExitStatusEvent struct {
	ExitCode *int32 `json:"exit-code"`
}

// rawEvent captures every recognised field so a single JSON decode can
// disambiguate between SandboxStatus and ExitStatus by field presence, per
// spec.md §6 ("untagged union, disambiguated by field presence").
type rawEvent struct {
	ChildPID        *uint64 `json:"child-pid"`
	CgroupNamespace *uint64 `json:"cgroup-namespace"`
	IPCNamespace    *uint64 `json:"ipc-namespace"`
	MountNamespace  *uint64 `json:"mnt-namespace"`
	NetNamespace    *uint64 `json:"net-namespace"`
	PIDNamespace    *uint64 `json:"pid-namespace"`
	UTSNamespace    *uint64 `json:"uts-namespace"`
	ExitCode        *int32  `json:"exit-code"`
}

// EventError reports that a status event could not be parsed, or parsed
// into neither recognised shape.
type EventError struct {
	Line string
	Err  error
}

func (e *EventError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("bwrap: malformed status event %q: %v", e.Line, e.Err)
	}
	return fmt.Sprintf("bwrap: unrecognised status event %q", e.Line)
}

func (e *EventError) Unwrap() error { return e.Err }

// event is the decoded result of one line: exactly one of the two fields
// is non-nil, and eof is set when the reader returned nothing at all
// (distinct from a json decode error on an actual line).
type event struct {
	sandboxStatus *SandboxStatusEvent
	exitStatus    *ExitStatusEvent
	eof           bool
}

// readEvent reads one newline-delimited JSON event from r. A clean EOF
// with no bytes read is reported via event.eof, not an error: spec.md §6
// requires the status reader to tolerate EOF without the usual newline,
// treating it as a crash signal rather than a protocol violation.
func readEvent(r *bufio.Reader) (event, error) {
	line, err := r.ReadBytes('\n')
	if len(line) == 0 {
		return event{eof: true}, nil
	}

	var raw rawEvent
	if jsonErr := json.Unmarshal(line, &raw); jsonErr != nil {
		return event{}, &EventError{Line: string(line), Err: jsonErr}
	}

	switch {
	case raw.ChildPID != nil:
		return event{sandboxStatus: &SandboxStatusEvent{
			ChildPID:        raw.ChildPID,
			CgroupNamespace: raw.CgroupNamespace,
			IPCNamespace:    raw.IPCNamespace,
			MountNamespace:  raw.MountNamespace,
			NetNamespace:    raw.NetNamespace,
			PIDNamespace:    raw.PIDNamespace,
			UTSNamespace:    raw.UTSNamespace,
		}}, nil
	case raw.ExitCode != nil:
		return event{exitStatus: &ExitStatusEvent{ExitCode: raw.ExitCode}}, nil
	default:
		// err is nil on purpose: an unrecognised-but-well-formed event is
		// "logged and skipped" per spec.md §4.6.4, not fatal, unless the
		// reader is waiting specifically for the first SandboxStatus (the
		// caller in that position turns this into an EventError itself).
		if err != nil {
			return event{}, err
		}
		return event{}, nil
	}
}
