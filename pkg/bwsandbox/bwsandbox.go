// Package bwsandbox provides a public API for loading a profile and
// building the ordered service list it describes, mirroring the teacher's
// own thin pkg/fence facade over its internal packages.
package bwsandbox

import (
	"github.com/sirupsen/logrus"

	"github.com/Use-Tusk/bwsandbox/internal/bwrap"
	"github.com/Use-Tusk/bwsandbox/internal/config"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Profile is the parsed form of a sandbox profile document.
type Profile = config.Profile

// CommandSpec describes the payload command a profile selects.
type CommandSpec = config.CommandSpec

// Runtime configures the orchestrator itself (bwrap path, runtime dir).
type Runtime = config.Runtime

// Builder assembles a bwrap argument vector across the service-application
// protocol and spawns the sandboxed payload.
type Builder = bwrap.Builder

// Proc owns a spawned bwrap child from its first SandboxStatus event
// through reap.
type Proc = bwrap.Proc

// Service is the contract every side-car (network, seccomp, dbus,
// environment, appimage) implements.
type Service = service.Service

// LoadProfile reads and parses a profile document from path.
func LoadProfile(path string) (*Profile, error) {
	return config.Load(path)
}

// ResolveCommand expands a profile's command block, resolving any named
// built-in template.
func ResolveCommand(spec CommandSpec) (CommandSpec, error) {
	return config.ResolveTemplate(spec)
}

// BuildServices turns a profile's services map into the ordered list the
// orchestrator applies. log may be nil.
func BuildServices(p *Profile, log logrus.FieldLogger) ([]Service, error) {
	return config.BuildServices(p, log)
}

// DefaultRuntime builds a Runtime from environment variables.
func DefaultRuntime() Runtime {
	return config.DefaultRuntime()
}

// NewBuilder constructs a Builder for one sandbox invocation.
func NewBuilder(bwrapPath, runtimeDir string, userArgs []string, log logrus.FieldLogger) (*Builder, error) {
	return bwrap.New(bwrapPath, runtimeDir, userArgs, log)
}
