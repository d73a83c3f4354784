//go:build !linux

// Package netns implements the slirp4netns side-car. This file stubs it out
// on non-Linux platforms: network namespaces and slirp4netns are Linux-only.
package netns

import (
	"errors"

	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Config mirrors a profile's "network" entry.
type Config struct {
	TapName         string `json:"tapName,omitempty"`
	ResolvConf      string `json:"resolvConf,omitempty"`
	Slirp4netnsPath string `json:"slirp4netnsPath,omitempty"`
}

// NsError classifies a failed namespace operation.
type NsError struct {
	Op  string
	Err error
}

func (e *NsError) Error() string { return "netns: " + e.Op + ": " + e.Err.Error() }
func (e *NsError) Unwrap() error { return e.Err }

// Service is a stub that fails to start on non-Linux platforms.
type Service struct {
	service.Base
	cfg Config
}

// New constructs a stub slirp4netns service.
func New(cfg Config) *Service { return &Service{cfg: cfg} }

func (s *Service) Name() string { return "slirp4netns" }

func (s *Service) Start(service.SandboxStatus) (service.Handle, error) {
	return nil, errors.New("netns: slirp4netns is only supported on linux")
}
