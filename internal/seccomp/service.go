//go:build linux

package seccomp

import (
	"os"
	"strconv"

	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Service wires a compiled seccomp filter into the orchestrator's two-phase
// apply protocol. ApplyAfter appends --seccomp <fd> so the filter is the
// last word regardless of what a profile's own arguments specify; Start's
// only job is to keep the exported file alive until bwrap has consumed it.
type Service struct {
	service.Base
	spec Spec
	file *os.File
}

// New constructs a seccomp service from spec. Compilation happens lazily in
// ApplyAfter so a failing compile surfaces as part of command assembly,
// not construction.
func New(spec Spec) *Service {
	return &Service{spec: spec}
}

func (s *Service) Name() string { return "seccomp" }

func (s *Service) ApplyAfter(cmd service.CommandBuilder) (*scope.Scope, error) {
	f, err := Compile(s.spec)
	if err != nil {
		return nil, err
	}
	s.file = f
	cmd.AppendArg("--seccomp", strconv.Itoa(int(f.Fd())))

	sc := scope.New()
	sc.RemoveFile(f.Name())
	return sc, nil
}

// Start keeps the exported filter file open (closing it earlier would race
// bwrap's read; closing it later does nothing, since bwrap has already
// duplicated the descriptor across exec).
func (s *Service) Start(service.SandboxStatus) (service.Handle, error) {
	return &fileHandle{f: s.file}, nil
}

type fileHandle struct{ f *os.File }

func (h *fileHandle) Close() error {
	if h.f == nil {
		return nil
	}
	return h.f.Close()
}
