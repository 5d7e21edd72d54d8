//go:build !windows

package subprocess

// Handle is a raw POSIX file descriptor.
type Handle = int

// NullHandle is the sentinel value held by closed and released streams. It is
// distinguishable from every descriptor the OS can return.
const NullHandle Handle = -1
