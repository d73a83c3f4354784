package bwrap

import (
	"bufio"
	"os"
	"os/exec"

	"github.com/sirupsen/logrus"

	"github.com/Use-Tusk/bwsandbox/internal/fdpipe"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// Info is the snapshot of bwrap's identity exposed to services: the
// bwrap process id plus the parsed SandboxStatus event (spec.md §4.6.3
// "bwrap_info()").
type Info struct {
	Pid     int
	Sandbox SandboxStatusEvent
}

// Proc owns the spawned bwrap child from the moment its initial
// SandboxStatus event has been read. Early drop (Close before a successful
// Wait) kills the child; Wait releases the payload and reaps it normally.
type Proc struct {
	cmd *exec.Cmd

	readyWriter  *os.File
	statusReader *bufio.Reader

	info SandboxStatusEvent
	log  logrus.FieldLogger

	waited bool
}

// newProc performs the blocking read of the one JSON event bwrap must emit
// before the payload runs (spec.md §4.6.3). Any event other than
// SandboxStatus, including EOF, is fatal at this point: construction has
// no retry loop, matching the core's "blocking read of one JSON event".
func newProc(cmd *exec.Cmd, block, status *fdpipe.SharedPipe, log logrus.FieldLogger) (*Proc, error) {
	readyWriter := fdpipe.IntoWriter(block)
	statusReader := bufio.NewReader(fdpipe.IntoReader(status))

	ev, err := readEvent(statusReader)
	if err != nil {
		killAndWait(cmd)
		return nil, err
	}
	if ev.eof {
		killAndWait(cmd)
		return nil, &EventError{Line: "", Err: nil}
	}
	if ev.sandboxStatus == nil {
		killAndWait(cmd)
		return nil, &EventError{Line: "", Err: nil}
	}

	return &Proc{
		cmd:          cmd,
		readyWriter:  readyWriter,
		statusReader: statusReader,
		info:         *ev.sandboxStatus,
		log:          log,
	}, nil
}

// BwrapInfo exposes the bwrap pid and parsed SandboxStatus to services.
func (p *Proc) BwrapInfo() Info {
	return Info{Pid: p.cmd.Process.Pid, Sandbox: p.info}
}

// Status converts the wire-format SandboxStatus event into the vocabulary
// type Service.Start expects.
func (p *Proc) Status() service.SandboxStatus {
	st := service.SandboxStatus{
		CgroupNamespace: p.info.CgroupNamespace,
		IPCNamespace:    p.info.IPCNamespace,
		MountNamespace:  p.info.MountNamespace,
		NetNamespace:    p.info.NetNamespace,
		PIDNamespace:    p.info.PIDNamespace,
		UTSNamespace:    p.info.UTSNamespace,
	}
	if p.info.ChildPID != nil {
		st.ChildPID = int(*p.info.ChildPID)
	}
	return st
}

// StartServices calls Start on every service in order, now that the
// sandbox's identity is known, returning the handles in the same order so
// the caller can Close them in reverse on teardown. On the first failure,
// every handle already acquired is closed (best effort) before the error
// is returned.
func (p *Proc) StartServices(services []service.Service) ([]service.Handle, error) {
	status := p.Status()
	handles := make([]service.Handle, 0, len(services))
	for _, svc := range services {
		h, err := svc.Start(status)
		if err != nil {
			for i := len(handles) - 1; i >= 0; i-- {
				if cerr := handles[i].Close(); cerr != nil {
					p.log.WithError(cerr).Warn("bwrap: failed to close service handle during rollback")
				}
			}
			return nil, err
		}
		handles = append(handles, h)
	}
	return handles, nil
}

// Wait releases the payload by writing the ready byte, then reads events
// until ExitStatus or EOF, and finally reaps the bwrap child. Per
// spec.md §4.6.4, an unexpected EOF is "bwrap crashed": exit code -1, not
// an error.
func (p *Proc) Wait() (int, error) {
	if _, err := p.readyWriter.Write([]byte{0x01}); err != nil {
		return 0, err
	}

	exitCode := -1
	for {
		ev, err := readEvent(p.statusReader)
		if err != nil {
			p.log.WithError(err).Debug("bwrap: skipping unparseable status event")
			continue
		}
		if ev.eof {
			break
		}
		if ev.exitStatus != nil {
			if ev.exitStatus.ExitCode != nil {
				exitCode = int(*ev.exitStatus.ExitCode)
			}
			break
		}
		// Any other well-formed event is logged and skipped.
		p.log.Debug("bwrap: skipping unrecognised status event")
	}

	p.waited = true
	if err := p.cmd.Wait(); err != nil {
		return exitCode, err
	}
	return exitCode, nil
}

// Close kills the bwrap child if Wait has not already reaped it. Safe to
// call after a successful Wait (no-op).
func (p *Proc) Close() error {
	if p.waited {
		return nil
	}
	killAndWait(p.cmd)
	p.waited = true
	return nil
}

func killAndWait(cmd *exec.Cmd) {
	if cmd.Process == nil {
		return
	}
	_ = cmd.Process.Kill()
	_ = cmd.Wait()
}
