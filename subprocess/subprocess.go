package subprocess

import (
	"errors"
	"fmt"
	"io"
	"os"
	"runtime"
	"time"
)

// Forever makes ReadOutputInto wait indefinitely for readiness. A timeout of
// zero polls without blocking.
const Forever time.Duration = -1

// Chunk size for a single read from a ready pipe.
const readChunk = 1024

// Subprocess is a handle on a running or terminated child process. It owns
// the platform process handle and the pipe ends retained at spawn time.
//
// Every spawned Subprocess must reach exactly one of Join or Detach before it
// is discarded; a live Subprocess that becomes unreachable without either
// terminates the program, since it means the caller lost track of a live OS
// process. A Subprocess is not internally synchronized: concurrent use from
// multiple goroutines must be serialized by the caller.
type Subprocess struct {
	opts Options
	proc *process

	stdin  *Stream
	stdout *Stream
	stderr *Stream

	status *ExitStatus
}

// Spawn creates a child process configured by opts. The returned Subprocess
// is running; spawn-time failures, including child-side failures before the
// target program executes (missing executable, bad working directory), are
// reported as a *SpawnError and never leave a usable Subprocess behind.
//
// Spawn panics if opts carries neither a command nor a program.
func Spawn(opts Options) (*Subprocess, error) {
	if len(opts.Command) == 0 && opts.Program == "" {
		panic("subprocess: Spawn requires a non-empty command or an explicit program")
	}
	s := &Subprocess{opts: opts.clone()}
	if err := startProcess(s); err != nil {
		return nil, err
	}
	runtime.SetFinalizer(s, finalizeLeaked)
	return s, nil
}

// Command spawns a child from a bare argument vector, leaving every other
// option at its default.
func Command(args ...string) (*Subprocess, error) {
	return Spawn(Options{Command: args})
}

func finalizeLeaked(s *Subprocess) {
	panic(fmt.Sprintf("subprocess: pid %d became unreachable without Join or Detach", s.proc.pid))
}

func (s *Subprocess) ensureLive(op string) {
	if s.proc == nil {
		panic("subprocess: " + op + " on a detached subprocess")
	}
}

// adopt records the terminal status and releases the process handle. Called
// exactly once, by Join or TryJoin.
func (s *Subprocess) adopt(st ExitStatus) {
	s.status = &st
	s.proc.release()
	runtime.SetFinalizer(s, nil)
}

// Join blocks until the child terminates, reaps it and returns its exit
// status. A wait interrupted by signal delivery fails with a *SignalError
// rather than retrying, so termination requests surface promptly; the
// subprocess stays joinable afterwards.
//
// Join panics when called on an already-joined or detached Subprocess.
func (s *Subprocess) Join() (ExitStatus, error) {
	s.ensureLive("Join")
	if s.status != nil {
		panic("subprocess: Join on an already-joined subprocess")
	}
	st, err := s.proc.wait()
	if err != nil {
		return ExitStatus{}, err
	}
	s.adopt(st)
	return st, nil
}

// TryJoin reaps the child without blocking. If the process has already
// terminated it behaves exactly as Join and returns the status; otherwise it
// returns nil and the Subprocess keeps running.
func (s *Subprocess) TryJoin() (*ExitStatus, error) {
	s.ensureLive("TryJoin")
	if s.status != nil {
		panic("subprocess: TryJoin on an already-joined subprocess")
	}
	st, err := s.proc.tryWait()
	if err != nil {
		return nil, err
	}
	if st == nil {
		return nil, nil
	}
	s.adopt(*st)
	return s.status, nil
}

// Joined reports whether Join or a successful TryJoin has run.
func (s *Subprocess) Joined() bool {
	return s.status != nil
}

// Status returns the exit status recorded by Join or TryJoin, or nil if the
// subprocess has not been joined.
func (s *Subprocess) Status() *ExitStatus {
	return s.status
}

// Running reports whether the OS still considers the process alive. A
// termination observed here is remembered, never discarded: the status will
// be returned by the next Join or TryJoin.
func (s *Subprocess) Running() bool {
	if s.proc == nil || s.status != nil {
		return false
	}
	return s.proc.running()
}

// Detach abandons the child without waiting: the process handle and all
// retained pipe streams are released, no exit status is ever recorded, and
// the OS becomes responsible for the process. On POSIX systems the exit
// status of a detached child is discarded, not reaped.
func (s *Subprocess) Detach() {
	if s.proc == nil {
		return
	}
	s.closeRetained()
	s.proc.release()
	s.proc = nil
	runtime.SetFinalizer(s, nil)
}

// Signal delivers an OS-level termination or interrupt request to the
// running child. Panics if the subprocess has already been joined.
func (s *Subprocess) Signal(sig os.Signal) error {
	s.ensureLive("Signal")
	if s.status != nil {
		panic("subprocess: Signal on an already-joined subprocess")
	}
	return s.proc.signal(sig)
}

// Pid returns the OS process id of the child.
func (s *Subprocess) Pid() int {
	s.ensureLive("Pid")
	return int(s.proc.pid)
}

// Options returns a copy of the options the subprocess was spawned with.
func (s *Subprocess) Options() Options {
	return s.opts.clone()
}

// StdinPipe returns the retained writer half of the stdin pipe, or nil if
// stdin was not pipe-redirected.
func (s *Subprocess) StdinPipe() *Stream { return s.stdin }

// StdoutPipe returns the retained reader half of the stdout pipe, or nil if
// stdout was not pipe-redirected.
func (s *Subprocess) StdoutPipe() *Stream { return s.stdout }

// StderrPipe returns the retained reader half of the stderr pipe, or nil if
// stderr was not pipe-redirected.
func (s *Subprocess) StderrPipe() *Stream { return s.stderr }

// HasStdin reports whether the retained stdin pipe is still open.
func (s *Subprocess) HasStdin() bool { return s.stdin.IsOpen() }

// HasStdout reports whether the retained stdout pipe is still open.
func (s *Subprocess) HasStdout() bool { return s.stdout.IsOpen() }

// HasStderr reports whether the retained stderr pipe is still open.
func (s *Subprocess) HasStderr() bool { return s.stderr.IsOpen() }

// WriteInput writes p to the child's piped stdin and returns the byte count.
// Panics if stdin is not open, either because it was never pipe-redirected
// or because it has been closed.
func (s *Subprocess) WriteInput(p []byte) (int, error) {
	if !s.HasStdin() {
		panic("subprocess: WriteInput without an open stdin pipe")
	}
	return s.stdin.Write(p)
}

// CloseStdin closes the retained stdin pipe, delivering EOF to the child's
// stdin. It is a no-op when stdin was not piped or is already closed.
func (s *Subprocess) CloseStdin() {
	if s.HasStdin() {
		s.stdin.Close()
	}
}

// ReadOutputInto waits up to timeout for data on whichever of the retained
// stdout/stderr pipes are still open and appends whatever is ready to out.
// Forever waits indefinitely; zero polls without blocking. On timeout it
// returns with nothing appended. A zero-length read marks end-of-stream and
// closes that pipe; it is not an error. A wait interrupted by signal
// delivery fails with a *SignalError carrying the received signal number.
func (s *Subprocess) ReadOutputInto(out *Output, timeout time.Duration) error {
	s.ensureLive("ReadOutputInto")
	return s.readOutput(out, timeout)
}

// ReadOutput blocks until both piped output streams report end-of-stream and
// returns everything the child wrote to them.
func (s *Subprocess) ReadOutput() (Output, error) {
	var out Output
	for s.HasStdout() || s.HasStderr() {
		if err := s.ReadOutputInto(&out, Forever); err != nil {
			return out, err
		}
	}
	return out, nil
}

func (s *Subprocess) closeRetained() {
	s.stdin.Close()
	s.stdout.Close()
	s.stderr.Close()
}

// appendChunk performs exactly one bounded read from a ready stream,
// appending to dst. End-of-stream is absorbed; Read has already closed the
// stream by then.
func appendChunk(s *Stream, dst *[]byte) error {
	var buf [readChunk]byte
	n, err := s.Read(buf[:])
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err != nil {
		return err
	}
	*dst = append(*dst, buf[:n]...)
	return nil
}
