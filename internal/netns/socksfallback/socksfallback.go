// Package socksfallback offers a pure-Go SOCKS5 side-car as an alternative
// to the slirp4netns/TAP network service, for hosts where a TAP device
// cannot be created (no /dev/net/tun, or no slirp4netns binary). Unlike
// slirp4netns it does not create a network namespace: the payload keeps the
// host's network namespace and is expected to route through the proxy via
// ALL_PROXY, which this service injects before bwrap is spawned.
package socksfallback

import (
	"context"
	"fmt"
	"io"
	"net"

	"github.com/sirupsen/logrus"
	"github.com/things-go/go-socks5"

	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Filter decides whether a CONNECT to host:port is allowed.
type Filter func(host string, port int) bool

// AllowAll is the default Filter when none is configured.
func AllowAll(string, int) bool { return true }

// Service implements service.Service for the SOCKS5 fallback.
type Service struct {
	service.Base
	filter   Filter
	log      logrus.FieldLogger
	listener net.Listener
	server   *socks5.Server
	port     int
}

// New constructs the fallback SOCKS5 service. filter may be nil, meaning
// AllowAll; log may be nil, meaning a discarding logger.
func New(filter Filter, log logrus.FieldLogger) *Service {
	if filter == nil {
		filter = AllowAll
	}
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	return &Service{filter: filter, log: log}
}

func (s *Service) Name() string { return "socks-proxy" }

// ApplyBefore binds a loopback listener so the port is known ahead of the
// sandbox spawn, then exports it via ALL_PROXY before the profile's own
// --setenv arguments so a profile can still override it.
func (s *Service) ApplyBefore(cmd service.CommandBuilder) (*scope.Scope, error) {
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return nil, fmt.Errorf("socksfallback: failed to listen: %w", err)
	}
	s.listener = listener
	s.port = listener.Addr().(*net.TCPAddr).Port
	s.server = socks5.NewServer(socks5.WithRule(&ruleSet{filter: s.filter, log: s.log}))

	cmd.AppendArg("--setenv", "ALL_PROXY", fmt.Sprintf("socks5h://127.0.0.1:%d", s.port))
	return nil, nil
}

// Start begins serving once the sandbox's identity is known, though this
// service does not depend on it.
func (s *Service) Start(service.SandboxStatus) (service.Handle, error) {
	if s.listener == nil {
		return nil, fmt.Errorf("socksfallback: ApplyBefore was not called")
	}
	go func() {
		if err := s.server.Serve(s.listener); err != nil {
			s.log.WithError(err).Debug("socksfallback: server stopped")
		}
	}()
	return &handle{listener: s.listener}, nil
}

// Port returns the bound loopback port, valid after ApplyBefore runs.
func (s *Service) Port() int { return s.port }

type ruleSet struct {
	filter Filter
	log    logrus.FieldLogger
}

func (r *ruleSet) Allow(ctx context.Context, req *socks5.Request) (context.Context, bool) {
	host := req.DestAddr.FQDN
	if host == "" {
		host = req.DestAddr.IP.String()
	}
	allowed := r.filter(host, req.DestAddr.Port)
	r.log.WithFields(logrus.Fields{
		"host":    host,
		"port":    req.DestAddr.Port,
		"allowed": allowed,
	}).Debug("socksfallback: connect")
	return ctx, allowed
}

type handle struct {
	listener net.Listener
}

func (h *handle) Close() error {
	if h.listener == nil {
		return nil
	}
	return h.listener.Close()
}
