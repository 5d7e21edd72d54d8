package subprocess

import (
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
)

// The last received signal is process-wide state: any watched signal
// delivered to the process is visible here regardless of which Subprocess
// was blocking when it arrived.
var lastSignal atomic.Int32

// NotifySignal records sig as the most recently received signal and wakes any
// blocked wait so the interruption is observed promptly. It is invoked by the
// watcher installed with WatchSignals and may also be called directly from a
// custom handler.
func NotifySignal(sig os.Signal) {
	if s, ok := sig.(syscall.Signal); ok {
		lastSignal.Store(int32(s))
		wakeWaiters()
	}
}

// ReceivedSignal returns the most recently recorded signal, or zero if none
// has been recorded since the last reset.
func ReceivedSignal() syscall.Signal {
	return syscall.Signal(lastSignal.Load())
}

// ResetSignal clears the recorded signal and any pending wakeup it queued.
func ResetSignal() {
	lastSignal.Store(0)
	drainWake()
}

// WatchSignals begins recording delivery of the given signals into the
// process-wide cell consulted by interrupted waits. With no arguments it
// watches the common termination requests: SIGINT, SIGTERM, SIGQUIT and
// SIGHUP. The returned stop function uninstalls the watcher and restores the
// previous disposition; it is safe to call more than once.
func WatchSignals(sigs ...os.Signal) (stop func()) {
	if len(sigs) == 0 {
		sigs = []os.Signal{syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT, syscall.SIGHUP}
	}
	ch := make(chan os.Signal, 8)
	signal.Notify(ch, sigs...)
	done := make(chan struct{})
	go func() {
		for {
			select {
			case sig := <-ch:
				NotifySignal(sig)
			case <-done:
				return
			}
		}
	}()
	var once sync.Once
	return func() {
		once.Do(func() {
			signal.Stop(ch)
			close(done)
		})
	}
}
