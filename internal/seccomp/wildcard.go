// Package-independent of the linux build tag: syscall-name pattern
// expansion is plain string matching, usable on any platform even though
// Compile itself is Linux-only.
package seccomp

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"
)

// knownSyscalls is a representative subset of the Linux x86_64 syscall
// table, broad enough for a profile's wildcard rules (e.g. "mount*",
// "*setuid*") to expand against without linking a full syscall table
// generator. Unmatched exact names still pass through Compile unchanged;
// wildcards only affect names containing a glob metacharacter.
var knownSyscalls = []string{
	"read", "write", "open", "openat", "openat2", "close", "stat", "fstat",
	"lstat", "statx", "poll", "lseek", "mmap", "mprotect", "munmap", "brk",
	"rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "ioctl", "pread64",
	"pwrite64", "readv", "writev", "access", "pipe", "pipe2", "select",
	"sched_yield", "mremap", "msync", "mincore", "madvise", "shmget",
	"shmat", "shmctl", "dup", "dup2", "dup3", "pause", "nanosleep",
	"getitimer", "alarm", "setitimer", "getpid", "sendfile", "socket",
	"connect", "accept", "accept4", "sendto", "recvfrom", "sendmsg",
	"recvmsg", "shutdown", "bind", "listen", "getsockname", "getpeername",
	"socketpair", "setsockopt", "getsockopt", "clone", "clone3", "fork",
	"vfork", "execve", "execveat", "exit", "exit_group", "wait4", "waitid",
	"kill", "tkill", "tgkill", "uname", "semget", "semop", "semctl",
	"shmdt", "msgget", "msgsnd", "msgrcv", "msgctl", "fcntl", "flock",
	"fsync", "fdatasync", "truncate", "ftruncate", "getdents", "getdents64",
	"getcwd", "chdir", "fchdir", "rename", "renameat", "renameat2",
	"mkdir", "mkdirat", "rmdir", "creat", "link", "linkat", "unlink",
	"unlinkat", "symlink", "symlinkat", "readlink", "readlinkat", "chmod",
	"fchmod", "fchmodat", "chown", "fchown", "lchown", "fchownat", "umask",
	"gettimeofday", "getrlimit", "setrlimit", "getrusage", "sysinfo",
	"times", "ptrace", "getuid", "syslog", "getgid", "setuid", "setgid",
	"geteuid", "getegid", "setpgid", "getppid", "getpgrp", "setsid",
	"setreuid", "setregid", "getgroups", "setgroups", "setresuid",
	"getresuid", "setresgid", "getresgid", "getpgid", "setfsuid",
	"setfsgid", "getsid", "capget", "capset", "rt_sigpending",
	"rt_sigtimedwait", "rt_sigqueueinfo", "rt_sigsuspend", "sigaltstack",
	"utime", "mknod", "mknodat", "uselib", "personality", "ustat",
	"statfs", "fstatfs", "sysfs", "getpriority", "setpriority",
	"sched_setparam", "sched_getparam", "sched_setscheduler",
	"sched_getscheduler", "sched_get_priority_max", "sched_get_priority_min",
	"sched_rr_get_interval", "mlock", "munlock", "mlockall", "munlockall",
	"vhangup", "modify_ldt", "pivot_root", "prctl", "arch_prctl", "adjtimex",
	"setrlimit", "chroot", "sync", "acct", "settimeofday", "mount",
	"umount2", "swapon", "swapoff", "reboot", "sethostname",
	"setdomainname", "iopl", "ioperm", "init_module", "delete_module",
	"quotactl", "gettid", "readahead", "setxattr", "lsetxattr",
	"fsetxattr", "getxattr", "lgetxattr", "fgetxattr", "listxattr",
	"llistxattr", "flistxattr", "removexattr", "lremovexattr",
	"fremovexattr", "futex", "sched_setaffinity", "sched_getaffinity",
	"unshare", "setns", "seccomp", "bpf", "userfaultfd", "membarrier",
	"mlock2", "copy_file_range", "preadv2", "pwritev2", "pkey_mprotect",
	"pkey_alloc", "pkey_free", "io_uring_setup", "io_uring_enter",
	"io_uring_register", "open_tree", "move_mount", "fsopen", "fsconfig",
	"fsmount", "fspick", "pidfd_open", "clone3", "close_range",
	"openat2", "faccessat2", "process_madvise", "epoll_pwait2",
}

// ExpandSyscallPatterns resolves each pattern against knownSyscalls when it
// contains a glob metacharacter, otherwise passes it through unchanged.
// Results are deduplicated but not sorted, preserving first-seen order.
func ExpandSyscallPatterns(patterns []string) ([]string, error) {
	seen := make(map[string]bool, len(patterns))
	var out []string
	for _, pattern := range patterns {
		if !containsGlobChar(pattern) {
			if !seen[pattern] {
				seen[pattern] = true
				out = append(out, pattern)
			}
			continue
		}
		for _, name := range knownSyscalls {
			matched, err := doublestar.Match(pattern, name)
			if err != nil {
				return nil, fmt.Errorf("seccomp: invalid syscall pattern %q: %w", pattern, err)
			}
			if matched && !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	return out, nil
}

func containsGlobChar(s string) bool {
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '{', '}':
			return true
		}
	}
	return false
}
