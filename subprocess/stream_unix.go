//go:build !windows

package subprocess

import (
	"errors"

	"golang.org/x/sys/unix"
)

func closeHandle(h Handle) {
	_ = unix.Close(h)
}

func readHandle(h Handle, p []byte) (int, error) {
	n, err := unix.Read(h, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func writeHandle(h Handle, p []byte) (int, error) {
	n, err := unix.Write(h, p)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, unix.EPIPE)
}
