//go:build !linux

package seccomp

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Action is a stub on non-Linux platforms; seccomp is Linux-only.
type Action int

const (
	ActionAllow Action = iota
	ActionErrno
	ActionKill
	ActionTrap
	ActionLog
)

var stubActionNames = map[Action]string{
	ActionAllow: "allow",
	ActionErrno: "errno",
	ActionKill:  "kill",
	ActionTrap:  "trap",
	ActionLog:   "log",
}

func (a Action) String() string {
	if name, ok := stubActionNames[a]; ok {
		return name
	}
	return "allow"
}

func (a Action) MarshalJSON() ([]byte, error) { return json.Marshal(a.String()) }

func (a *Action) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		return fmt.Errorf("seccomp: invalid action: %w", err)
	}
	for action, n := range stubActionNames {
		if n == name {
			*a = action
			return nil
		}
	}
	return fmt.Errorf("seccomp: unknown action %q", name)
}

// Rule is a stub on non-Linux platforms.
type Rule struct {
	Action   Action   `json:"action"`
	Errno    int16    `json:"errno,omitempty"`
	Syscalls []string `json:"syscalls"`
}

// Spec is a stub on non-Linux platforms.
type Spec struct {
	DefaultAction Action   `json:"defaultAction"`
	DefaultErrno  int16    `json:"defaultErrno,omitempty"`
	ExtraArches   []string `json:"extraArches,omitempty"`
	Rules         []Rule   `json:"rules"`
}

// Compile always fails on non-Linux platforms: seccomp-bpf is a Linux
// kernel facility.
func Compile(Spec) (*os.File, error) {
	return nil, errors.New("seccomp: not supported on this platform")
}

// Service is a stub service that fails to apply on non-Linux platforms.
type Service struct {
	service.Base
	spec Spec
}

// New constructs a stub seccomp service.
func New(spec Spec) *Service { return &Service{spec: spec} }

func (s *Service) Name() string { return "seccomp" }

func (s *Service) ApplyAfter(service.CommandBuilder) (*scope.Scope, error) {
	_, err := Compile(s.spec)
	return nil, err
}
