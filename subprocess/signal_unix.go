//go:build !windows

package subprocess

import (
	"errors"
	"time"

	"golang.org/x/sys/unix"
)

// The wake pipe turns asynchronous signal delivery into poll readiness. The
// Go runtime takes process-directed signals on a dedicated thread, so a
// thread parked in poll or wait4 is not interrupted with EINTR the way a
// single-threaded program's would be. Recording a signal therefore also
// writes a byte here, and every blocking wait includes the read end in its
// fd set.
var wakeReadFd, wakeWriteFd = newWakePipe()

func newWakePipe() (int, int) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return -1, -1
	}
	unix.CloseOnExec(p[0])
	unix.CloseOnExec(p[1])
	_ = unix.SetNonblock(p[0], true)
	_ = unix.SetNonblock(p[1], true)
	return p[0], p[1]
}

func wakeWaiters() {
	if wakeWriteFd != -1 {
		_, _ = unix.Write(wakeWriteFd, []byte{0})
	}
}

// drainWake empties the wake pipe so a signal that has been consumed does not
// wake the next wait.
func drainWake() {
	if wakeReadFd == -1 {
		return
	}
	var buf [64]byte
	for {
		n, err := unix.Read(wakeReadFd, buf[:])
		if n <= 0 || err != nil {
			return
		}
	}
}

// pollWake waits up to d for the wake pipe to become readable.
func pollWake(d time.Duration) (bool, error) {
	if wakeReadFd == -1 {
		time.Sleep(d)
		return ReceivedSignal() != 0, nil
	}
	fds := []unix.PollFd{{Fd: int32(wakeReadFd), Events: unix.POLLIN}}
	n, err := unix.Poll(fds, pollTimeoutMs(d))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return true, nil
		}
		return false, err
	}
	return n > 0, nil
}
