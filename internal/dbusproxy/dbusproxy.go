// Package dbusproxy implements the xdg-dbus-proxy side-car: a filtering
// proxy placed between the sandbox and the host's D-Bus session bus so the
// payload only sees the names and interfaces a profile explicitly allows.
package dbusproxy

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

const (
	pollInterval = 100 * time.Millisecond
	pollAttempts = 30 // 100ms * 30 = 3s
)

// Config mirrors a profile's "dbus" entry.
type Config struct {
	// Bin overrides the resolved binary path; empty means look up
	// "xdg-dbus-proxy" on PATH.
	Bin string `json:"bin,omitempty"`
	// BusAddress is the upstream bus to proxy, usually
	// $DBUS_SESSION_BUS_ADDRESS.
	BusAddress string `json:"busAddress,omitempty"`
	// SandboxSocket is the path the proxy's listening socket is bound to
	// inside the sandbox, e.g. "/run/user/1000/bus".
	SandboxSocket string `json:"sandboxSocket,omitempty"`
	// Talk, Own, Call, Broadcast are passed through verbatim as
	// --talk=, --own=, --call=, --broadcast= filter flags.
	Talk      []string `json:"talk,omitempty"`
	Own       []string `json:"own,omitempty"`
	Call      []string `json:"call,omitempty"`
	Broadcast []string `json:"broadcast,omitempty"`
}

// NotFoundError reports that the proxy socket never appeared within the
// bounded poll window.
type NotFoundError struct {
	Socket string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("dbusproxy: proxy socket not found: %s", e.Socket)
}

// Service implements service.Service for xdg-dbus-proxy.
type Service struct {
	service.Base
	cfg        Config
	hostSocket string
}

// New constructs the dbus proxy service.
func New(cfg Config) *Service { return &Service{cfg: cfg} }

func (s *Service) Name() string { return "dbus" }

// ApplyBefore allocates a scoped host-side socket path and binds it read-
// write into the sandbox at the configured mount point, then exports
// DBUS_SESSION_BUS_ADDRESS so the payload finds it without cooperation.
func (s *Service) ApplyBefore(cmd service.CommandBuilder) (*scope.Scope, error) {
	s.hostSocket = filepath.Join(os.TempDir(), fmt.Sprintf("bwsandbox-dbus-%s.sock", uuid.NewString()))

	sandboxSocket := s.cfg.SandboxSocket
	if sandboxSocket == "" {
		sandboxSocket = "/run/user/0/bus"
	}

	cmd.AppendArg("--bind", s.hostSocket, sandboxSocket)
	cmd.AppendArg("--setenv", "DBUS_SESSION_BUS_ADDRESS", fmt.Sprintf("unix:path=%s", sandboxSocket))

	sc := scope.New()
	sc.RemoveFile(s.hostSocket)
	return sc, nil
}

// Start spawns xdg-dbus-proxy and blocks until its socket file exists or
// the bounded poll window (3s) elapses.
func (s *Service) Start(service.SandboxStatus) (service.Handle, error) {
	binPath := s.cfg.Bin
	if binPath == "" {
		var err error
		binPath, err = exec.LookPath("xdg-dbus-proxy")
		if err != nil {
			return nil, fmt.Errorf("dbusproxy: xdg-dbus-proxy not found: %w", err)
		}
	}

	args := []string{s.cfg.BusAddress, s.hostSocket, "--filter"}
	for _, v := range s.cfg.Talk {
		args = append(args, fmt.Sprintf("--talk=%s", v))
	}
	for _, v := range s.cfg.Own {
		args = append(args, fmt.Sprintf("--own=%s", v))
	}
	for _, v := range s.cfg.Call {
		args = append(args, fmt.Sprintf("--call=%s", v))
	}
	for _, v := range s.cfg.Broadcast {
		args = append(args, fmt.Sprintf("--broadcast=%s", v))
	}

	cmd := exec.Command(binPath, args...)
	cmd.Stdin = nil
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("dbusproxy: failed to spawn xdg-dbus-proxy: %w", err)
	}

	if err := s.waitForSocket(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, err
	}

	return &processHandle{cmd: cmd, socket: s.hostSocket}, nil
}

func (s *Service) waitForSocket() error {
	for range pollAttempts {
		if _, err := os.Stat(s.hostSocket); err == nil {
			return nil
		}
		time.Sleep(pollInterval)
	}
	return &NotFoundError{Socket: s.hostSocket}
}

type processHandle struct {
	cmd    *exec.Cmd
	socket string
}

func (h *processHandle) Close() error {
	_ = os.Remove(h.socket)
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	_ = h.cmd.Process.Kill()
	return h.cmd.Wait()
}
