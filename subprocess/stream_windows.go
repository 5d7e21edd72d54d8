//go:build windows

package subprocess

import (
	"errors"

	"golang.org/x/sys/windows"
)

func closeHandle(h Handle) {
	_ = windows.CloseHandle(h)
}

func readHandle(h Handle, p []byte) (int, error) {
	var done uint32
	err := windows.ReadFile(h, p, &done, nil)
	if err != nil {
		// The writer side of an anonymous pipe going away surfaces as a
		// broken pipe rather than a zero-length read.
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) {
			return 0, nil
		}
		return 0, err
	}
	return int(done), nil
}

func writeHandle(h Handle, p []byte) (int, error) {
	var done uint32
	err := windows.WriteFile(h, p, &done, nil)
	if err != nil {
		return int(done), err
	}
	return int(done), nil
}

func isBrokenPipe(err error) bool {
	return errors.Is(err, windows.ERROR_BROKEN_PIPE) || errors.Is(err, windows.ERROR_NO_DATA)
}
