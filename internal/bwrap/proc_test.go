package bwrap

import (
	"os/exec"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/Use-Tusk/bwsandbox/internal/fdpipe"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

func discardLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestNewProcSucceedsOnSandboxStatus(t *testing.T) {
	block, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(block): %v", err)
	}
	status, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(status): %v", err)
	}

	statusWriter := fdpipe.IntoWriter(status)
	if _, err := statusWriter.Write([]byte(`{"child-pid": 42}` + "\n")); err != nil {
		t.Fatalf("write status event: %v", err)
	}

	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start test process: %v", err)
	}
	defer func() { _ = cmd.Wait() }()

	p, err := newProc(cmd, block, status, discardLogger())
	if err != nil {
		t.Fatalf("newProc: %v", err)
	}
	if p.BwrapInfo().Sandbox.ChildPID == nil || *p.BwrapInfo().Sandbox.ChildPID != 42 {
		t.Fatalf("unexpected sandbox status: %+v", p.BwrapInfo())
	}
}

func TestNewProcFailsOnEOF(t *testing.T) {
	block, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(block): %v", err)
	}
	status, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(status): %v", err)
	}
	// Close the write end immediately so the read side observes EOF.
	if err := status.WriteFd().Close(); err != nil {
		t.Fatalf("close status write end: %v", err)
	}

	cmd := &exec.Cmd{}
	if _, err := newProc(cmd, block, status, discardLogger()); err == nil {
		t.Fatalf("expected newProc to fail on EOF")
	}
}

func TestNewProcFailsOnWrongEvent(t *testing.T) {
	block, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(block): %v", err)
	}
	status, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(status): %v", err)
	}

	statusWriter := fdpipe.IntoWriter(status)
	if _, err := statusWriter.Write([]byte(`{"exit-code": 0}` + "\n")); err != nil {
		t.Fatalf("write status event: %v", err)
	}

	cmd := &exec.Cmd{}
	if _, err := newProc(cmd, block, status, discardLogger()); err == nil {
		t.Fatalf("expected newProc to fail when the first event is not SandboxStatus")
	}
}

func TestWaitWritesReadyByteAndReturnsExitCode(t *testing.T) {
	block, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(block): %v", err)
	}
	status, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(status): %v", err)
	}

	blockReader := fdpipe.IntoReader(block)
	statusWriter := fdpipe.IntoWriter(status)
	if _, err := statusWriter.Write([]byte(`{"child-pid": 1}` + "\n")); err != nil {
		t.Fatalf("write sandbox status: %v", err)
	}

	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start test process: %v", err)
	}

	p, err := newProc(cmd, block, status, discardLogger())
	if err != nil {
		t.Fatalf("newProc: %v", err)
	}

	if _, err := statusWriter.Write([]byte(`{"exit-code": 3}` + "\n")); err != nil {
		t.Fatalf("write exit status: %v", err)
	}
	if err := statusWriter.Close(); err != nil {
		t.Fatalf("close status writer: %v", err)
	}

	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}

	ready := make([]byte, 1)
	if _, err := blockReader.Read(ready); err != nil {
		t.Fatalf("expected ready byte to have been written: %v", err)
	}
	if ready[0] != 0x01 {
		t.Fatalf("expected ready byte 0x01, got %v", ready[0])
	}
}

func TestWaitTreatsEOFAsCrash(t *testing.T) {
	block, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(block): %v", err)
	}
	status, err := fdpipe.NewPipe()
	if err != nil {
		t.Fatalf("NewPipe(status): %v", err)
	}

	statusWriter := fdpipe.IntoWriter(status)
	if _, err := statusWriter.Write([]byte(`{"child-pid": 1}` + "\n")); err != nil {
		t.Fatalf("write sandbox status: %v", err)
	}

	cmd := exec.Command("true")
	if err := cmd.Start(); err != nil {
		t.Skipf("could not start test process: %v", err)
	}

	p, err := newProc(cmd, block, status, discardLogger())
	if err != nil {
		t.Fatalf("newProc: %v", err)
	}

	// No exit-status event is ever written: close the writer to simulate
	// bwrap crashing without emitting one.
	if err := statusWriter.Close(); err != nil {
		t.Fatalf("close status writer: %v", err)
	}

	code, err := p.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if code != -1 {
		t.Fatalf("expected crash exit code -1, got %d", code)
	}
}

func TestCloseIsNoopAfterWait(t *testing.T) {
	p := &Proc{waited: true, cmd: &exec.Cmd{}}
	if err := p.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

type rollbackHandle struct {
	name   string
	closed *[]string
}

func (h *rollbackHandle) Close() error {
	*h.closed = append(*h.closed, h.name)
	return nil
}

type startService struct {
	service.Base
	name    string
	fail    bool
	closed  *[]string
	started *[]string
}

func (s *startService) Name() string { return s.name }

func (s *startService) Start(service.SandboxStatus) (service.Handle, error) {
	if s.fail {
		return nil, errBoom
	}
	*s.started = append(*s.started, s.name)
	return &rollbackHandle{name: s.name, closed: s.closed}, nil
}

func TestStartServicesRollsBackOnFailureInReverseOrder(t *testing.T) {
	var started, closed []string
	services := []service.Service{
		&startService{name: "a", started: &started, closed: &closed},
		&startService{name: "b", started: &started, closed: &closed},
		&startService{name: "c", fail: true, started: &started, closed: &closed},
	}

	p := &Proc{log: discardLogger()}
	_, err := p.StartServices(services)
	if err == nil {
		t.Fatalf("expected error from failing service c")
	}

	if len(started) != 2 || started[0] != "a" || started[1] != "b" {
		t.Fatalf("unexpected started order: %v", started)
	}
	if len(closed) != 2 || closed[0] != "b" || closed[1] != "a" {
		t.Fatalf("expected rollback in reverse order, got: %v", closed)
	}
}

func TestStartServicesReturnsAllHandlesOnSuccess(t *testing.T) {
	var started, closed []string
	services := []service.Service{
		&startService{name: "a", started: &started, closed: &closed},
		&startService{name: "b", started: &started, closed: &closed},
	}

	p := &Proc{log: discardLogger()}
	handles, err := p.StartServices(services)
	if err != nil {
		t.Fatalf("StartServices: %v", err)
	}
	if len(handles) != 2 {
		t.Fatalf("expected 2 handles, got %d", len(handles))
	}
}
