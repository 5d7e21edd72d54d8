//go:build windows

package subprocess

import "golang.org/x/sys/windows"

// Handle is a native Win32 handle.
type Handle = windows.Handle

// NullHandle is the sentinel value held by closed and released streams.
const NullHandle Handle = windows.InvalidHandle
