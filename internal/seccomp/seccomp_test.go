//go:build linux

package seccomp

import "testing"

func TestVersionErrorMessage(t *testing.T) {
	err := &VersionError{Major: 2, Minor: 4}
	msg := err.Error()
	if msg == "" {
		t.Fatalf("expected non-empty error message")
	}
}

func TestActionToLibseccompDoesNotPanic(t *testing.T) {
	for _, a := range []Action{ActionAllow, ActionErrno, ActionKill, ActionTrap, ActionLog} {
		_ = a.toLibseccomp(0)
	}
}

func TestCompileEmptyRuleListIsValidInput(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping libseccomp-dependent test in short mode")
	}
	f, err := Compile(Spec{DefaultAction: ActionAllow})
	if err != nil {
		if _, ok := err.(*VersionError); ok {
			t.Skipf("linked libseccomp too old: %v", err)
		}
		t.Fatalf("Compile with empty rule list should succeed (default-allow), got: %v", err)
	}
	defer f.Close()

	fi, statErr := f.Stat()
	if statErr != nil {
		t.Fatalf("Stat: %v", statErr)
	}
	if fi.Size() == 0 {
		t.Fatalf("expected a non-empty exported BPF program")
	}
}

func TestCompileBlocksGetdents64(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping libseccomp-dependent test in short mode")
	}
	f, err := Compile(Spec{
		DefaultAction: ActionAllow,
		Rules: []Rule{
			{Action: ActionErrno, Syscalls: []string{"getdents64"}},
		},
	})
	if err != nil {
		if _, ok := err.(*VersionError); ok {
			t.Skipf("linked libseccomp too old: %v", err)
		}
		t.Fatalf("Compile: %v", err)
	}
	defer f.Close()
}
