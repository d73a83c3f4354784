package config

import "os"

// Runtime configures the orchestrator itself — as opposed to a single
// sandbox invocation — following the teacher's DefaultConfigPath/Default
// pattern of a small struct with environment-derived defaults.
type Runtime struct {
	// BwrapPath overrides the resolved bwrap binary; empty means look up
	// "bwrap" on PATH.
	BwrapPath string
	// RuntimeDir is bound to itself inside the sandbox by bwrap.New.
	// Defaults to os.TempDir(). The services create their scoped
	// transient files (seccomp exports, resolv.conf overrides, dbus
	// sockets) under os.TempDir(), not under RuntimeDir, so setting
	// BWSANDBOX_RUNTIME_DIR does not move them.
	RuntimeDir string
}

// DefaultRuntime builds a Runtime from environment variables, falling back
// to package defaults.
func DefaultRuntime() Runtime {
	dir := os.Getenv("BWSANDBOX_RUNTIME_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	return Runtime{
		BwrapPath:  os.Getenv("BWSANDBOX_BWRAP_PATH"),
		RuntimeDir: dir,
	}
}
