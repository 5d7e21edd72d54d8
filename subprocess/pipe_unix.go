//go:build !windows

package subprocess

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// NewPipe creates an anonymous unidirectional pipe and returns its two
// endpoints. The halves share no state and may be closed independently.
// Both descriptors are close-on-exec; spawn re-wires the child-facing half
// through descriptor inheritance, which clears the flag on the child's copy.
func NewPipe() (r, w *Stream, err error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, nil, &SpawnError{Op: "pipe", Err: err}
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	return NewStream(p[0]), NewStream(p[1]), nil
}

func openNullRead() (*Stream, error) {
	fd, err := unix.Open("/dev/null", unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &SpawnError{Op: "open /dev/null", Err: err}
	}
	return NewStream(fd), nil
}

func openNullWrite() (*Stream, error) {
	fd, err := unix.Open("/dev/null", unix.O_WRONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &SpawnError{Op: "open /dev/null", Err: err}
	}
	return NewStream(fd), nil
}

func openFileRead(path string) (*Stream, error) {
	fd, err := unix.Open(path, unix.O_RDONLY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, &SpawnError{Op: fmt.Sprintf("open %s as stdin", path), Err: err}
	}
	return NewStream(fd), nil
}

func openFileWrite(path string) (*Stream, error) {
	fd, err := unix.Open(path, unix.O_WRONLY|unix.O_CREAT|unix.O_TRUNC|unix.O_CLOEXEC, 0o644)
	if err != nil {
		return nil, &SpawnError{Op: fmt.Sprintf("open %s for output", path), Err: err}
	}
	return NewStream(fd), nil
}
