package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/Use-Tusk/bwsandbox/internal/dbusproxy"
	"github.com/Use-Tusk/bwsandbox/internal/netns"
	"github.com/Use-Tusk/bwsandbox/internal/netns/socksfallback"
	"github.com/Use-Tusk/bwsandbox/internal/seccomp"
	"github.com/Use-Tusk/bwsandbox/internal/service"
	"github.com/Use-Tusk/bwsandbox/internal/service/appimage"
	"github.com/Use-Tusk/bwsandbox/internal/service/env"
)

// serviceOrder is the order in which known service kinds are applied when
// present, independent of the map iteration order of Profile.Services.
// Services within each apply_before/apply_after pass still run in this
// order, per spec.md §4.6.2.
var serviceOrder = []string{"env", "appimage", "seccomp", "network", "dbus"}

// networkKind selects which network entry is decoded: {"kind": "..."}.
type networkKind struct {
	Kind string `json:"kind"`
}

// BuildServices turns a profile's "services" map into an ordered list of
// service.Service instances. log is threaded into services that need a
// logger (currently only the socks-proxy fallback); nil uses a discarding
// logrus.Logger.
func BuildServices(p *Profile, log logrus.FieldLogger) ([]service.Service, error) {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}

	known := make(map[string]bool, len(serviceOrder))
	for _, kind := range serviceOrder {
		known[kind] = true
	}
	for kind := range p.Services {
		if !known[kind] {
			return nil, fmt.Errorf("config: unknown service kind %q", kind)
		}
	}

	var services []service.Service
	for _, kind := range serviceOrder {
		entry, ok := p.Services[kind]
		if !ok {
			continue
		}
		svc, err := buildOne(kind, entry, log)
		if err != nil {
			return nil, fmt.Errorf("config: service %q: %w", kind, err)
		}
		services = append(services, svc)
	}
	return services, nil
}

func buildOne(kind string, entry ServiceEntry, log logrus.FieldLogger) (service.Service, error) {
	switch kind {
	case "env":
		var cfg env.Config
		if err := json.Unmarshal(entry.Inline, &cfg); err != nil {
			return nil, err
		}
		return env.New(cfg, nil), nil

	case "appimage":
		return appimage.New(), nil

	case "seccomp":
		var spec seccomp.Spec
		if err := json.Unmarshal(entry.Inline, &spec); err != nil {
			return nil, err
		}
		return seccomp.New(spec), nil

	case "dbus":
		var cfg dbusproxy.Config
		if err := json.Unmarshal(entry.Inline, &cfg); err != nil {
			return nil, err
		}
		return dbusproxy.New(cfg), nil

	case "network":
		var nk networkKind
		if err := json.Unmarshal(entry.Inline, &nk); err != nil {
			return nil, err
		}
		switch nk.Kind {
		case "", "slirp4netns":
			var cfg netns.Config
			if err := json.Unmarshal(entry.Inline, &cfg); err != nil {
				return nil, err
			}
			return netns.New(cfg), nil
		case "socks-proxy":
			return socksfallback.New(nil, log.WithField("service", "socks-proxy")), nil
		default:
			return nil, fmt.Errorf("unknown network kind %q", nk.Kind)
		}

	default:
		return nil, fmt.Errorf("unknown service kind %q", kind)
	}
}
