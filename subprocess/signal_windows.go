//go:build windows

package subprocess

// The Windows backend never parks in an interruptible OS wait for pipe I/O:
// timeout reads poll with PeekNamedPipe on a short interval, so signal
// recording needs no wakeup channel.

func wakeWaiters() {}

func drainWake() {}
