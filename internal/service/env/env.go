// Package env implements the environment-clearing side-car service: it
// strips the sandboxed payload's environment down to an explicit keep-list.
package env

import (
	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Config mirrors the profile's "env" entry.
type Config struct {
	// UnsetAll clears every inherited environment variable before the
	// payload runs (bwrap --clearenv).
	UnsetAll bool `json:"unset_all"`
	// Keep names variables to re-export from the parent's own environment
	// after clearing, via --setenv NAME <value>.
	Keep []string `json:"keep"`
}

// Service implements service.Service for environment clearing. It only
// needs ApplyBefore: clearing must precede the profile's own --setenv
// arguments (carried in the user-argument buffer) so a profile can still
// add variables of its own after the keep-list is applied.
type Service struct {
	service.Base
	cfg    Config
	lookup func(string) (string, bool)
}

// New constructs the env-clearing service. lookupEnv is injectable for
// tests; pass nil in production to use os.LookupEnv.
func New(cfg Config, lookupEnv func(string) (string, bool)) *Service {
	if lookupEnv == nil {
		lookupEnv = defaultLookup
	}
	return &Service{cfg: cfg, lookup: lookupEnv}
}

func (s *Service) Name() string { return "env" }

func (s *Service) ApplyBefore(cmd service.CommandBuilder) (*scope.Scope, error) {
	if !s.cfg.UnsetAll {
		return nil, nil
	}
	cmd.AppendArg("--clearenv")
	for _, name := range s.cfg.Keep {
		if val, ok := s.lookup(name); ok {
			cmd.AppendArg("--setenv", name, val)
		}
	}
	return nil, nil
}
