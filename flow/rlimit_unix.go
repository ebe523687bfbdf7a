//go:build unix

package flow

import "golang.org/x/sys/unix"

// maxOpenFilesDefault sizes the flow file cache from the process's
// RLIMIT_NOFILE soft limit, leaving headroom for the descriptors every
// process already holds open (stdio, the input file, any fallback sink).
// An unlimited soft limit, or a failed syscall, falls back to 1024.
func maxOpenFilesDefault() int {
	var rlim unix.Rlimit
	if err := unix.Getrlimit(unix.RLIMIT_NOFILE, &rlim); err != nil {
		return 1024
	}
	if rlim.Cur == unix.RLIM_INFINITY || rlim.Cur > 1<<31 {
		return 1024
	}
	n := int(rlim.Cur) - 8
	if n < 1 {
		return 1024
	}
	return n
}
