//go:build linux

// Package netns implements the slirp4netns side-car: a user-mode TCP/IP
// stack that attaches a TAP device to the sandbox's network namespace from
// outside, after locating the user namespace that owns it.
package netns

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"

	"github.com/Use-Tusk/bwsandbox/internal/fdpipe"
	"github.com/Use-Tusk/bwsandbox/internal/scope"
	"github.com/Use-Tusk/bwsandbox/internal/service"
)

// nsGetParent is the ioctl request number for NS_GET_PARENT, not exported
// by golang.org/x/sys/unix: documented in linux/nsfs.h.
const nsGetParent = 0xB701

// Config mirrors a profile's "network" entry.
type Config struct {
	// TapName is the interface name created inside the sandbox's network
	// namespace.
	TapName string `json:"tapName,omitempty"`
	// ResolvConf, if non-empty, is written to a scoped temp file and bound
	// over /etc/resolv.conf inside the sandbox, overriding any profile
	// binding at /etc/resolv.conf.
	ResolvConf string `json:"resolvConf,omitempty"`
	// Slirp4netnsPath overrides the resolved binary path; empty means look
	// up "slirp4netns" on PATH.
	Slirp4netnsPath string `json:"slirp4netnsPath,omitempty"`
}

// NsError classifies a failed namespace operation, per spec.
type NsError struct {
	Op  string // "open", "get-parent", "setns", "inode"
	Err error
}

func (e *NsError) Error() string { return fmt.Sprintf("netns: %s: %v", e.Op, e.Err) }
func (e *NsError) Unwrap() error { return e.Err }

// Service implements service.Service for slirp4netns. ApplyAfter marks
// --unshare-net and, when a resolv.conf override is configured, binds it
// last so it beats any profile-level bind of /etc/resolv.conf. Start
// performs namespace traversal, spawns slirp4netns, and blocks for
// readiness.
type Service struct {
	service.Base
	cfg Config
}

// New constructs the slirp4netns service.
func New(cfg Config) *Service {
	if cfg.TapName == "" {
		cfg.TapName = "tap0"
	}
	return &Service{cfg: cfg}
}

func (s *Service) Name() string { return "slirp4netns" }

func (s *Service) ApplyAfter(cmd service.CommandBuilder) (*scope.Scope, error) {
	cmd.AppendArg("--unshare-net")

	sc := scope.New()
	if s.cfg.ResolvConf != "" {
		path := filepath.Join(os.TempDir(), fmt.Sprintf("bwsandbox-resolv-%s.conf", uuid.NewString()))
		if err := os.WriteFile(path, []byte(s.cfg.ResolvConf), 0o644); err != nil {
			return nil, fmt.Errorf("netns: failed to write resolv.conf: %w", err)
		}
		sc.RemoveFile(path)
		cmd.AppendArg("--ro-bind", path, "/etc/resolv.conf")
	}
	return sc, nil
}

// Start locates the owning user namespace, entering it if bwrap interposed
// an intermediate one, then spawns slirp4netns and blocks until it reports
// readiness over a dedicated pipe.
func (s *Service) Start(status service.SandboxStatus) (service.Handle, error) {
	childNsFile, err := os.Open(fmt.Sprintf("/proc/%d/ns/user", status.ChildPID))
	if err != nil {
		return nil, &NsError{Op: "open", Err: err}
	}
	defer childNsFile.Close()

	ownIno, err := inodeOf("/proc/self/ns/user")
	if err != nil {
		return nil, err
	}
	parentFd, err := nsGetParentFd(childNsFile)
	if err != nil {
		return nil, err
	}
	parentIno, err := inodeOfFd(parentFd)
	if err != nil {
		unix.Close(parentFd)
		return nil, err
	}
	traversal := ownIno != parentIno
	if !traversal {
		unix.Close(parentFd)
	}

	binPath := s.cfg.Slirp4netnsPath
	if binPath == "" {
		binPath, err = exec.LookPath("slirp4netns")
		if err != nil {
			return nil, fmt.Errorf("netns: slirp4netns not found: %w", err)
		}
	}

	ready, err := fdpipe.NewPipe()
	if err != nil {
		return nil, err
	}
	if err := fdpipe.ShareWriteEnd(ready); err != nil {
		return nil, err
	}
	readyReader := fdpipe.IntoReader(ready)

	slirpArgs := []string{"--ready-fd", ready.WriteFd().String()}
	if traversal {
		slirpArgs = append(slirpArgs, "--userns-path=/proc/self/ns/user")
	}
	slirpArgs = append(slirpArgs, strconv.Itoa(status.ChildPID), s.cfg.TapName)

	var cmd *exec.Cmd
	if traversal {
		// The spawning process itself must join the intermediate user
		// namespace between fork and exec. Go offers no pre_exec hook, and
		// a plain re-exec still lands inside a multithreaded Go runtime by
		// the time any goroutine runs, which setns(CLONE_NEWUSER) refuses.
		// Instead, re-exec this binary with the namespace fd (inherited as
		// an already-open, non-cloexec fd) and the target argv passed
		// through environment variables that nsenter_linux.go's cgo
		// constructor reads before the Go runtime itself initializes; the
		// constructor joins the namespace and execve(2)s slirp4netns in
		// its own place without Go ever getting a chance to spin up extra
		// threads first.
		exePath, err := os.Executable()
		if err != nil {
			unix.Close(parentFd)
			return nil, fmt.Errorf("netns: cannot locate own executable for re-exec: %w", err)
		}
		if err := clearCloexec(parentFd); err != nil {
			unix.Close(parentFd)
			return nil, err
		}
		env, err := nsenterEnv(parentFd, append([]string{binPath}, slirpArgs...))
		if err != nil {
			unix.Close(parentFd)
			return nil, err
		}
		cmd = exec.Command(exePath)
		cmd.Env = append(os.Environ(), env...)
	} else {
		cmd = exec.Command(binPath, slirpArgs...)
	}
	cmd.Stdout = os.Stderr
	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		if traversal {
			unix.Close(parentFd)
		}
		return nil, fmt.Errorf("netns: failed to spawn slirp4netns: %w", err)
	}
	if traversal {
		unix.Close(parentFd) // the re-exec helper inherited its own copy
	}

	// The child now holds its own inherited copy of the write end; drop
	// ours so EOF on readyReader means the child actually closed its end.
	if err := ready.WriteFd().Close(); err != nil {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		return nil, fmt.Errorf("netns: failed to release parent's ready-fd copy: %w", err)
	}

	buf := make([]byte, 1)
	n, readErr := readyReader.Read(buf)
	readyReader.Close()
	if n == 0 {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
		if readErr != nil {
			return nil, fmt.Errorf("netns: slirp4netns died before becoming ready: %w", readErr)
		}
		return nil, fmt.Errorf("netns: slirp4netns closed readiness pipe without becoming ready")
	}

	return &processHandle{cmd: cmd}, nil
}

func nsGetParentFd(nsFile *os.File) (int, error) {
	fd, _, errno := unix.Syscall(unix.SYS_IOCTL, nsFile.Fd(), uintptr(nsGetParent), 0)
	if errno != 0 {
		return -1, &NsError{Op: "get-parent", Err: errno}
	}
	return int(fd), nil
}

func inodeOf(path string) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return 0, &NsError{Op: "inode", Err: err}
	}
	return st.Ino, nil
}

func inodeOfFd(fd int) (uint64, error) {
	var st unix.Stat_t
	if err := unix.Fstat(fd, &st); err != nil {
		return 0, &NsError{Op: "inode", Err: err}
	}
	return st.Ino, nil
}

func clearCloexec(fd int) error {
	flags, err := unix.FcntlInt(uintptr(fd), unix.F_GETFD, 0)
	if err != nil {
		return &NsError{Op: "setns", Err: err}
	}
	if _, err := unix.FcntlInt(uintptr(fd), unix.F_SETFD, flags&^unix.FD_CLOEXEC); err != nil {
		return &NsError{Op: "setns", Err: err}
	}
	return nil
}

type processHandle struct {
	cmd *exec.Cmd
}

func (h *processHandle) Close() error {
	if h.cmd == nil || h.cmd.Process == nil {
		return nil
	}
	_ = h.cmd.Process.Kill()
	return h.cmd.Wait()
}
