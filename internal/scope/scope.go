// Package scope tracks filesystem paths that must be deleted when a sandbox
// invocation tears down, and guarantees that deletion happens exactly once
// whether triggered by normal drop or by SIGINT.
package scope

import (
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/sirupsen/logrus"
)

// Scope is a deduplicated set of absolute paths to delete on teardown.
type Scope struct {
	paths map[string]struct{}
}

// New returns an empty Scope.
func New() *Scope {
	return &Scope{paths: make(map[string]struct{})}
}

// RemoveFile registers path for deletion on teardown.
func (s *Scope) RemoveFile(path string) {
	if s == nil {
		return
	}
	s.paths[path] = struct{}{}
}

// Merge unions other into s. Merging is commutative and idempotent in the
// set sense: merging the same Scope twice, or merging a and b in either
// order, yields the same resulting path set.
func (s *Scope) Merge(other *Scope) {
	if s == nil || other == nil {
		return
	}
	for p := range other.paths {
		s.paths[p] = struct{}{}
	}
}

// Paths returns the accumulated path set as a slice, for inspection/testing.
func (s *Scope) Paths() []string {
	out := make([]string, 0, len(s.paths))
	for p := range s.paths {
		out = append(out, p)
	}
	return out
}

// Cleanup owns a Scope's paths past spawn time and deletes them at most
// once, whether via Close, via the registered SIGINT handler, or both.
type Cleanup struct {
	mu      sync.Mutex
	paths   map[string]struct{} // nil after the first take
	log     logrus.FieldLogger
	sigCh   chan os.Signal
	sigDone chan struct{}
}

// NewCleanup wraps scope's accumulated paths in a Cleanup, registering a SIGINT
// handler that performs the same cleanup and then exits the process with a
// non-zero status. log may be nil, in which case a discarding logger is used.
func NewCleanup(s *Scope, log logrus.FieldLogger) *Cleanup {
	if log == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		log = l
	}
	c := &Cleanup{
		paths:   s.paths,
		log:     log,
		sigCh:   make(chan os.Signal, 1),
		sigDone: make(chan struct{}),
	}
	signal.Notify(c.sigCh, syscall.SIGINT)
	go c.waitForSignal()
	return c
}

func (c *Cleanup) waitForSignal() {
	select {
	case <-c.sigCh:
	case <-c.sigDone:
		return
	}
	c.run()
	os.Exit(1)
}

// take returns the path set and clears it, so a concurrent or later call
// observes an empty take. This is the at-most-once protocol: both the
// signal handler and a normal Close race to take the same cell, and only
// one of them gets a non-nil result. Neither holds c.mu beyond the take
// itself, so the other caller never blocks behind a long-running delete.
func (c *Cleanup) take() map[string]struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	p := c.paths
	c.paths = nil
	return p
}

func (c *Cleanup) run() {
	paths := c.take()
	for p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			c.log.WithField("path", p).WithError(err).Warn("scope: failed to delete file")
		}
	}
}

// Close performs cleanup if it has not already run, and stops listening for
// SIGINT. Safe to call more than once.
func (c *Cleanup) Close() {
	select {
	case <-c.sigDone:
	default:
		close(c.sigDone)
	}
	signal.Stop(c.sigCh)
	c.run()
}
