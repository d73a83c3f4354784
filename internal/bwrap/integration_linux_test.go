//go:build linux

package bwrap

import (
	"os/exec"
	"testing"
)

// skipUnlessBwrapAvailable mirrors the teacher's own integration-test
// gating (internal/sandbox/integration_linux_test.go): these tests spawn
// the real bwrap binary and are skipped in -short mode or where bwrap is
// not on PATH. Where bwrap is present but cannot create namespaces, they
// fail.
func skipUnlessBwrapAvailable(t *testing.T) string {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping bwrap integration test in -short mode")
	}
	path, err := exec.LookPath("bwrap")
	if err != nil {
		t.Skip("skipping: bwrap binary not found on PATH")
	}
	return path
}

func TestIntegrationSpawnsPayloadAndReportsExitCode(t *testing.T) {
	bwrapPath := skipUnlessBwrapAvailable(t)

	b, err := New(bwrapPath, t.TempDir(), []string{"--ro-bind", "/", "/", "--unshare-all", "--die-with-parent"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.ApplyServices(nil); err != nil {
		t.Fatalf("ApplyServices: %v", err)
	}

	proc, err := b.Spawn("/bin/true", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = proc.Close() }()

	if _, err := proc.StartServices(nil); err != nil {
		t.Fatalf("StartServices: %v", err)
	}

	code, err := proc.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 0 {
		t.Fatalf("expected exit code 0 from /bin/true, got %d", code)
	}
}

func TestIntegrationReportsNonZeroExitCode(t *testing.T) {
	bwrapPath := skipUnlessBwrapAvailable(t)

	b, err := New(bwrapPath, t.TempDir(), []string{"--ro-bind", "/", "/", "--unshare-all", "--die-with-parent"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := b.ApplyServices(nil); err != nil {
		t.Fatalf("ApplyServices: %v", err)
	}

	proc, err := b.Spawn("/bin/false", nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}
	defer func() { _ = proc.Close() }()

	if _, err := proc.StartServices(nil); err != nil {
		t.Fatalf("StartServices: %v", err)
	}

	code, err := proc.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code == 0 {
		t.Fatalf("expected a non-zero exit code from /bin/false")
	}
}
