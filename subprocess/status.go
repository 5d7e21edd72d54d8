package subprocess

import "fmt"

// ExitStatus is the terminal status of a joined subprocess: either a numeric
// exit code or the number of the signal that killed it. Both being zero means
// the process exited successfully.
type ExitStatus struct {
	// Code is the value the child returned from main or passed to exit.
	// Zero if the process was terminated by a signal.
	Code int

	// Signal is the number of the signal that terminated the process. Zero
	// if the process exited normally. Always zero on Windows, where console
	// control events are reported back through the exit code.
	Signal int
}

// Success reports whether the process exited normally with a zero code.
func (s ExitStatus) Success() bool {
	return s.Code == 0 && s.Signal == 0
}

// Err returns an *ExitError when the status is not a success, nil otherwise.
// This check is opt-in; Join never performs it on the caller's behalf.
func (s ExitStatus) Err() error {
	if s.Success() {
		return nil
	}
	return &ExitError{Status: s}
}

func (s ExitStatus) String() string {
	if s.Signal != 0 {
		return fmt.Sprintf("terminated by signal %d", s.Signal)
	}
	return fmt.Sprintf("exited with code %d", s.Code)
}

// Output accumulates the bytes captured from a subprocess's piped stdout and
// stderr streams. Reads append; the buffers are never overwritten.
type Output struct {
	Stdout []byte
	Stderr []byte
}
