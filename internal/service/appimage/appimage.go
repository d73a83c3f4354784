// Package appimage implements a side-car service that injects the
// environment variables AppImage-packaged payloads expect, so an AppImage
// run inside the sandbox extracts and executes in place rather than trying
// (and failing) to mount a FUSE filesystem.
package appimage

import (
	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Service implements service.Service for AppImage env injection. Like env,
// it only needs ApplyBefore, run ahead of any profile-level --setenv so a
// profile can still override these if it needs to.
type Service struct {
	service.Base
}

// New constructs the appimage service.
func New() *Service { return &Service{} }

func (s *Service) Name() string { return "appimage" }

func (s *Service) ApplyBefore(cmd service.CommandBuilder) (*scope.Scope, error) {
	cmd.AppendArg(
		"--setenv", "APPIMAGE_EXTRACT_AND_RUN", "1",
		"--setenv", "APPIMAGE", "1",
	)
	return nil, nil
}
