//go:build linux

package netns

import (
	"fmt"
	"strings"
)

// nsenterFdEnv and nsenterExecEnv are the environment variables the cgo
// constructor in nsenter_linux.go looks for. They are additive: the
// caller appends them to the child's inherited environment rather than
// replacing it, so the re-exec'd process is otherwise a normal copy of
// this binary.
const (
	nsenterFdEnv   = "_BWSANDBOX_NETNS_FD"
	nsenterExecEnv = "_BWSANDBOX_NETNS_EXEC"
	nsenterSep     = "\x1f"
)

// nsenterEnv builds the environment pair that makes a re-exec'd copy of
// this binary join nsFd's user namespace and execve(2) into target in its
// own place, entirely inside the cgo constructor, before the Go runtime
// (and its extra OS threads) ever starts. target[0] is passed to execv(3)
// as is, with no PATH lookup, here or in the constructor.
func nsenterEnv(nsFd int, target []string) ([]string, error) {
	if len(target) == 0 {
		return nil, fmt.Errorf("netns: no target command given")
	}
	for _, arg := range target {
		if strings.Contains(arg, nsenterSep) {
			return nil, fmt.Errorf("netns: argument contains the reserved nsenter separator byte")
		}
	}
	return []string{
		fmt.Sprintf("%s=%d", nsenterFdEnv, nsFd),
		fmt.Sprintf("%s=%s", nsenterExecEnv, strings.Join(target, nsenterSep)),
	}, nil
}
