//go:build windows

package subprocess

import (
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

// NewPipe creates an anonymous unidirectional pipe and returns its two
// endpoints. The halves share no state and may be closed independently.
// Both handles are created non-inheritable; spawn marks the child-facing
// half inheritable just before process creation.
func NewPipe() (r, w *Stream, err error) {
	var rh, wh windows.Handle
	sa := windows.SecurityAttributes{InheritHandle: 0}
	sa.Length = uint32(unsafe.Sizeof(sa))
	if err := windows.CreatePipe(&rh, &wh, &sa, 0); err != nil {
		return nil, nil, &SpawnError{Op: "pipe", Err: err}
	}
	return NewStream(rh), NewStream(wh), nil
}

func openNullRead() (*Stream, error) {
	return openNullDevice(windows.GENERIC_READ)
}

func openNullWrite() (*Stream, error) {
	return openNullDevice(windows.GENERIC_WRITE)
}

func openNullDevice(access uint32) (*Stream, error) {
	h, err := openInheritable("NUL", access, windows.OPEN_EXISTING)
	if err != nil {
		return nil, &SpawnError{Op: "open NUL", Err: err}
	}
	return NewStream(h), nil
}

func openFileRead(path string) (*Stream, error) {
	h, err := openInheritable(path, windows.GENERIC_READ, windows.OPEN_EXISTING)
	if err != nil {
		return nil, &SpawnError{Op: fmt.Sprintf("open %s as stdin", path), Err: err}
	}
	return NewStream(h), nil
}

func openFileWrite(path string) (*Stream, error) {
	h, err := openInheritable(path, windows.GENERIC_WRITE, windows.CREATE_ALWAYS)
	if err != nil {
		return nil, &SpawnError{Op: fmt.Sprintf("open %s for output", path), Err: err}
	}
	return NewStream(h), nil
}

func openInheritable(path string, access uint32, disposition uint32) (windows.Handle, error) {
	name, err := windows.UTF16PtrFromString(path)
	if err != nil {
		return windows.InvalidHandle, err
	}
	sa := windows.SecurityAttributes{InheritHandle: 1}
	sa.Length = uint32(unsafe.Sizeof(sa))
	share := uint32(windows.FILE_SHARE_READ | windows.FILE_SHARE_WRITE)
	return windows.CreateFile(name, access, share, &sa, disposition, windows.FILE_ATTRIBUTE_NORMAL, 0)
}
