//go:build linux

// Package netns's nsenter helper joins the intermediate user namespace
// bwrap interposes, before slirp4netns takes the child's place, the same
// way runc's libcontainer/nsenter package joins container namespaces: as
// a cgo constructor that runs before the Go runtime has initialized.
//
// setns(2) rejects CLONE_NEWUSER with EINVAL once the caller has more
// than one thread, and the Go runtime always has more than one OS thread
// by the time any Go code runs — runtime.main() starts the background
// sysmon thread during initialization, before main() is ever called, so
// a plain re-exec plus runtime.LockOSThread() never actually gets a
// single-threaded caller: LockOSThread only pins the calling goroutine to
// its current thread, it does not reduce how many OS threads the process
// has. A cgo constructor sidesteps this because the dynamic loader runs
// every constructor immediately after exec, strictly before the C
// runtime hands control to Go's own entrypoint — at that point the
// process has exactly the one thread exec(2) left it with.
package netns

/*
#define _GNU_SOURCE
#include <errno.h>
#include <sched.h>
#include <stdio.h>
#include <stdlib.h>
#include <string.h>
#include <unistd.h>

// bwsandbox_nsenter only acts when invoked through the hidden re-exec
// protocol set up by nsenterEnv in nsenter.go (a pair of environment
// variables); otherwise it returns immediately and the process boots
// normally. On the active path it never returns: it either execs into
// the target binary or terminates the process on error.
__attribute__((constructor)) static void bwsandbox_nsenter(void) {
	const char *fd_str = getenv("_BWSANDBOX_NETNS_FD");
	const char *exec_str = getenv("_BWSANDBOX_NETNS_EXEC");
	if (fd_str == NULL || exec_str == NULL) {
		return;
	}

	int fd = atoi(fd_str);
	if (setns(fd, CLONE_NEWUSER) != 0) {
		fprintf(stderr, "bwsandbox: netns helper: setns: %s\n", strerror(errno));
		_exit(1);
	}
	close(fd);

	char *buf = strdup(exec_str);
	if (buf == NULL) {
		fprintf(stderr, "bwsandbox: netns helper: out of memory\n");
		_exit(1);
	}

	int argc = 1;
	for (char *p = buf; *p != '\0'; p++) {
		if (*p == '\x1f') {
			argc++;
		}
	}
	char **argv = calloc((size_t)(argc + 1), sizeof(char *));
	if (argv == NULL) {
		fprintf(stderr, "bwsandbox: netns helper: out of memory\n");
		_exit(1);
	}

	int i = 0;
	char *saveptr = NULL;
	char *tok = strtok_r(buf, "\x1f", &saveptr);
	while (tok != NULL) {
		argv[i++] = tok;
		tok = strtok_r(NULL, "\x1f", &saveptr);
	}
	argv[i] = NULL;

	unsetenv("_BWSANDBOX_NETNS_FD");
	unsetenv("_BWSANDBOX_NETNS_EXEC");

	execv(argv[0], argv);
	fprintf(stderr, "bwsandbox: netns helper: execv: %s\n", strerror(errno));
	_exit(1);
}
*/
import "C"
