package subprocess

import (
	"fmt"
	"syscall"
)

// SpawnError reports that a child process could not be created, or that the
// child failed before reaching its target program (missing executable, bad
// working directory). The underlying OS error is available via Unwrap, so
// callers can match it with errors.Is (for example against syscall.ENOENT).
type SpawnError struct {
	// Op names the operation that failed, such as "pipe" or "fork/exec".
	Op string
	// Program is the resolved executable, when the failure concerns one.
	Program string
	// Err is the underlying OS error.
	Err error
}

func (e *SpawnError) Error() string {
	if e.Program != "" {
		return fmt.Sprintf("spawn %s: %s: %v", e.Program, e.Op, e.Err)
	}
	return fmt.Sprintf("spawn: %s: %v", e.Op, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// SignalError reports that a blocking wait or poll was interrupted by
// asynchronous signal delivery to the calling process. It carries the most
// recently recorded signal number so callers can react to termination
// requests instead of blocking through them. The call is never retried
// internally; retrying is the caller's decision.
type SignalError struct {
	Signal syscall.Signal
}

func (e *SignalError) Error() string {
	if e.Signal == 0 {
		return "interrupted by a signal"
	}
	return fmt.Sprintf("interrupted by signal %d (%v)", int(e.Signal), e.Signal)
}

// ExitError reports that a joined subprocess did not terminate successfully.
// It is only produced by ExitStatus.Err, never by Join itself.
type ExitError struct {
	Status ExitStatus
}

func (e *ExitError) Error() string {
	if e.Status.Signal != 0 {
		return fmt.Sprintf("subprocess was terminated by signal %d", e.Status.Signal)
	}
	return fmt.Sprintf("subprocess exited with code %d", e.Status.Code)
}

func errorForSignal(sig syscall.Signal) error {
	return &SignalError{Signal: sig}
}
