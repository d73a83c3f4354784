//go:build linux

// Package seccomp compiles a rule list into a BPF program via libseccomp
// and exports it to an inheritable file descriptor positioned at offset 0,
// ready for bwrap's --seccomp flag.
package seccomp

import (
	"encoding/json"
	"fmt"
	"os"

	libseccomp "github.com/seccomp/libseccomp-golang"
	"golang.org/x/sys/unix"
)

// minVersionMajor/Minor is the lowest linked libseccomp version this
// compiler depends on: versions below 2.5 lack architecture multiplexing.
const (
	minVersionMajor = 2
	minVersionMinor = 5
)

// Action is the disposition applied to a rule's syscalls, mirroring
// libseccomp's SCMP_ACT_* constants.
type Action int

const (
	ActionAllow Action = iota
	ActionErrno
	ActionKill
	ActionTrap
	ActionLog
)

var actionNames = map[Action]string{
	ActionAllow: "allow",
	ActionErrno: "errno",
	ActionKill:  "kill",
	ActionTrap:  "trap",
	ActionLog:   "log",
}

func (a Action) String() string {
	if name, ok := actionNames[a]; ok {
		return name
	}
	return "allow"
}

func (a Action) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.String())
}

func (a *Action) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("seccomp: invalid action: %w", err)
	}
	for action, n := range actionNames {
		if n == name {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("seccomp: unknown action %q", name)
}

func (a Action) toLibseccomp(errno int16) libseccomp.ScmpAction {
	switch a {
	case ActionAllow:
		return libseccomp.ActAllow
	case ActionErrno:
		if errno == 0 {
			errno = int16(unix.EPERM)
		}
		return libseccomp.ActErrno.SetReturnCode(errno)
	case ActionKill:
		return libseccomp.ActKillProcess
	case ActionTrap:
		return libseccomp.ActTrap
	case ActionLog:
		return libseccomp.ActLog
	default:
		return libseccomp.ActAllow
	}
}

// Rule is one (action, syscalls...) entry from a profile's seccomp block.
// Errno is only meaningful when Action is ActionErrno; 0 means EPERM.
type Rule struct {
	Action   Action   `json:"action"`
	Errno    int16    `json:"errno,omitempty"`
	Syscalls []string `json:"syscalls"`
}

// Spec is the compiler's input: a default action, extra architectures to
// register beyond the native one, and a rule list.
type Spec struct {
	DefaultAction Action   `json:"defaultAction"`
	DefaultErrno  int16    `json:"defaultErrno,omitempty"`
	ExtraArches   []string `json:"extraArches,omitempty"`
	Rules         []Rule   `json:"rules"`
}

// VersionError reports that the linked libseccomp is older than required.
type VersionError struct {
	Major, Minor int
}

func (e *VersionError) Error() string {
	return fmt.Sprintf("seccomp: linked libseccomp %d.%d is below the required %d.%d (architecture multiplexing)",
		e.Major, e.Minor, minVersionMajor, minVersionMinor)
}

// LibError wraps a failed libseccomp call.
type LibError struct {
	Op  string
	Err error
}

func (e *LibError) Error() string { return fmt.Sprintf("seccomp: %s: %v", e.Op, e.Err) }
func (e *LibError) Unwrap() error { return e.Err }

// preflight refuses to run if the linked filter library is too old.
func preflight() error {
	major, minor, _, err := libseccomp.GetLibraryVersion()
	if err != nil {
		return &LibError{Op: "GetLibraryVersion", Err: err}
	}
	if major < minVersionMajor || (major == minVersionMajor && minor < minVersionMinor) {
		return &VersionError{Major: major, Minor: minor}
	}
	return nil
}

// Compile translates spec into a BPF program and exports it to a regular
// temporary file, close-on-exec cleared, positioned at offset 0. A regular
// file is used instead of a pipe because the BPF program can exceed a
// pipe's atomic buffer, and bwrap needs to seek back to 0 to read it.
func Compile(spec Spec) (*os.File, error) {
	if err := preflight(); err != nil {
		return nil, err
	}

	filter, err := libseccomp.NewFilter(spec.DefaultAction.toLibseccomp(spec.DefaultErrno))
	if err != nil {
		return nil, &LibError{Op: "NewFilter", Err: err}
	}
	defer filter.Release()

	for _, archName := range spec.ExtraArches {
		arch, err := libseccomp.GetArchFromString(archName)
		if err != nil {
			return nil, &LibError{Op: "GetArchFromString(" + archName + ")", Err: err}
		}
		if err := filter.AddArch(arch); err != nil {
			return nil, &LibError{Op: "AddArch(" + archName + ")", Err: err}
		}
	}

	for _, rule := range spec.Rules {
		action := rule.Action.toLibseccomp(rule.Errno)
		syscalls, err := ExpandSyscallPatterns(rule.Syscalls)
		if err != nil {
			return nil, err
		}
		for _, name := range syscalls {
			syscallID, err := libseccomp.GetSyscallFromName(name)
			if err != nil {
				return nil, &LibError{Op: "GetSyscallFromName(" + name + ")", Err: err}
			}
			// Variable-arity zero-argument form: no ScmpCondition filters
			// on the syscall's arguments, just action-by-syscall-number.
			if err := filter.AddRule(syscallID, action); err != nil {
				return nil, &LibError{Op: "AddRule(" + name + ")", Err: err}
			}
		}
	}

	f, err := os.CreateTemp("", "bwsandbox-seccomp-*.bpf")
	if err != nil {
		return nil, fmt.Errorf("seccomp: failed to create temp file: %w", err)
	}

	if err := filter.ExportBPF(f); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, &LibError{Op: "ExportBPF", Err: err}
	}

	if _, err := f.Seek(0, 0); err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("seccomp: failed to rewind export file: %w", err)
	}

	fd := int(f.Fd())
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err == nil {
		_, err = unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC)
	}
	if err != nil {
		f.Close()
		os.Remove(f.Name())
		return nil, fmt.Errorf("seccomp: failed to clear close-on-exec: %w", err)
	}

	return f, nil
}
