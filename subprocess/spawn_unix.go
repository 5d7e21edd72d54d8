//go:build !windows

package subprocess

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"golang.org/x/sys/unix"
)

// process is the POSIX backend: a bare pid plus a stash for a termination
// observed by a non-blocking poll, so that Running never discards a reaped
// status.
type process struct {
	pid     int
	pending *ExitStatus
}

// startProcess resolves the redirection choices into child descriptors and
// creates the OS process. Stream resolution order is stdin, stdout, stderr;
// a stderr of ToStdout reads the already-resolved stdout destination.
//
// Process creation goes through fork/exec with a close-on-exec error-relay
// pipe between child and parent: a child that fails to chdir or exec writes
// its errno into the relay and exits, and the parent refuses to report a
// successful spawn until it has drained the relay. The Go runtime's
// fork/exec path implements exactly this protocol, so a missing executable
// or bad working directory surfaces here as a *SpawnError wrapping the
// child-side errno.
func startProcess(s *Subprocess) (err error) {
	prog, argv, err := resolveProgram(s.opts)
	if err != nil {
		return err
	}

	// Child-facing pipe halves and opened redirection files are parent-side
	// temporaries; release them on every exit path once the child owns its
	// copies.
	var temps []*Stream
	defer func() {
		for _, t := range temps {
			t.Close()
		}
		if err != nil {
			s.closeRetained()
		}
	}()

	var childIn, childOut, childErr Handle = 0, 1, 2

	switch v := s.opts.stdin().(type) {
	case stdioNull:
		str, e := openNullRead()
		if e != nil {
			return e
		}
		temps = append(temps, str)
		childIn = str.Handle()
	case stdioInherit:
		// Child shares the parent's stdin.
	case stdioPipe:
		r, w, e := NewPipe()
		if e != nil {
			return e
		}
		s.stdin = w
		temps = append(temps, r)
		childIn = r.Handle()
	case stdioFile:
		str, e := openFileRead(v.path)
		if e != nil {
			return e
		}
		temps = append(temps, str)
		childIn = str.Handle()
	default:
		panic(fmt.Sprintf("subprocess: invalid stdin redirection %q", s.opts.stdin().stdioVariant()))
	}

	switch v := s.opts.stdout().(type) {
	case stdioInherit:
	case stdioNull:
		str, e := openNullWrite()
		if e != nil {
			return e
		}
		temps = append(temps, str)
		childOut = str.Handle()
	case stdioPipe:
		r, w, e := NewPipe()
		if e != nil {
			return e
		}
		s.stdout = r
		temps = append(temps, w)
		childOut = w.Handle()
	case stdioFile:
		str, e := openFileWrite(v.path)
		if e != nil {
			return e
		}
		temps = append(temps, str)
		childOut = str.Handle()
	default:
		panic(fmt.Sprintf("subprocess: invalid stdout redirection %q", s.opts.stdout().stdioVariant()))
	}

	switch v := s.opts.stderr().(type) {
	case stdioInherit:
	case stdioNull:
		str, e := openNullWrite()
		if e != nil {
			return e
		}
		temps = append(temps, str)
		childErr = str.Handle()
	case stdioPipe:
		r, w, e := NewPipe()
		if e != nil {
			return e
		}
		s.stderr = r
		temps = append(temps, w)
		childErr = w.Handle()
	case stdioFile:
		str, e := openFileWrite(v.path)
		if e != nil {
			return e
		}
		temps = append(temps, str)
		childErr = str.Handle()
	case stdioToStdout:
		childErr = childOut
	default:
		panic(fmt.Sprintf("subprocess: invalid stderr redirection %q", s.opts.stderr().stdioVariant()))
	}

	pid, e := syscall.ForkExec(prog, argv, &syscall.ProcAttr{
		Dir:   s.opts.Dir,
		Env:   syscall.Environ(),
		Files: []uintptr{uintptr(childIn), uintptr(childOut), uintptr(childErr)},
		Sys:   &syscall.SysProcAttr{Setpgid: s.opts.NewProcessGroup},
	})
	if e != nil {
		return &SpawnError{Op: "fork/exec", Program: prog, Err: e}
	}
	s.proc = &process{pid: pid}
	return nil
}

// How often a blocking wait re-checks the child between waits on the wake
// pipe.
const waitPollInterval = 20 * time.Millisecond

// wait blocks until the child terminates or a watched signal arrives. The
// child is reaped with WNOHANG between polls of the wake pipe, which a
// recorded signal makes readable; a bare blocking wait4 cannot be used
// because the runtime takes process-directed signals on its own thread and
// the wait would never see EINTR.
func (p *process) wait() (ExitStatus, error) {
	if p.pending != nil {
		return *p.pending, nil
	}
	for {
		if err := p.poll(); err != nil {
			return ExitStatus{}, err
		}
		if p.pending != nil {
			return *p.pending, nil
		}
		woken, err := pollWake(waitPollInterval)
		if err != nil {
			return ExitStatus{}, fmt.Errorf("wait for pid %d: %w", p.pid, err)
		}
		if woken {
			drainWake()
			if sig := ReceivedSignal(); sig != 0 {
				return ExitStatus{}, errorForSignal(sig)
			}
		}
	}
}

// poll performs a non-blocking reap, stashing any observed termination.
func (p *process) poll() error {
	var ws unix.WaitStatus
	pid, err := unix.Wait4(p.pid, &ws, unix.WNOHANG, nil)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return errorForSignal(ReceivedSignal())
		}
		return fmt.Errorf("wait for pid %d: %w", p.pid, err)
	}
	if pid == 0 {
		return nil
	}
	st := classifyWait(ws)
	p.pending = &st
	return nil
}

func (p *process) tryWait() (*ExitStatus, error) {
	if p.pending == nil {
		if err := p.poll(); err != nil {
			return nil, err
		}
	}
	return p.pending, nil
}

func (p *process) running() bool {
	if p.pending != nil {
		return false
	}
	_ = p.poll()
	return p.pending == nil
}

func (p *process) signal(sig os.Signal) error {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	if err := unix.Kill(p.pid, num); err != nil {
		return fmt.Errorf("signal pid %d: %w", p.pid, err)
	}
	return nil
}

// release is a no-op on POSIX: a pid is not a closable resource. A detached
// child's status is left for the OS to discard.
func (p *process) release() {}

// classifyWait maps a wait status onto the exit result contract: killed or
// dumped populates Signal, a normal exit populates Code. Any other reported
// state breaks an internal invariant.
func classifyWait(ws unix.WaitStatus) ExitStatus {
	switch {
	case ws.Signaled():
		return ExitStatus{Signal: int(ws.Signal())}
	case ws.Exited():
		return ExitStatus{Code: ws.ExitStatus()}
	}
	panic(fmt.Sprintf("subprocess: unexpected wait status %#x", uint32(ws)))
}

func (s *Subprocess) readOutput(out *Output, timeout time.Duration) error {
	type target struct {
		stream *Stream
		buf    *[]byte
	}
	var (
		fds     []unix.PollFd
		targets []target
	)
	if s.stdout.IsOpen() {
		fds = append(fds, unix.PollFd{Fd: int32(s.stdout.Handle()), Events: unix.POLLIN})
		targets = append(targets, target{s.stdout, &out.Stdout})
	}
	if s.stderr.IsOpen() {
		fds = append(fds, unix.PollFd{Fd: int32(s.stderr.Handle()), Events: unix.POLLIN})
		targets = append(targets, target{s.stderr, &out.Stderr})
	}
	if len(fds) == 0 {
		return nil
	}

	// The wake pipe rides along in the fd set so a watched signal breaks the
	// poll even when no pipe data arrives.
	wakeIdx := -1
	if wakeReadFd != -1 {
		wakeIdx = len(fds)
		fds = append(fds, unix.PollFd{Fd: int32(wakeReadFd), Events: unix.POLLIN})
	}

	n, err := unix.Poll(fds, pollTimeoutMs(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return errorForSignal(ReceivedSignal())
		}
		return fmt.Errorf("poll subprocess pipes: %w", err)
	}
	if n == 0 {
		return nil
	}

	if wakeIdx >= 0 && fds[wakeIdx].Revents != 0 {
		drainWake()
		if sig := ReceivedSignal(); sig != 0 {
			return errorForSignal(sig)
		}
	}

	for i := range targets {
		revents := fds[i].Revents
		if revents == 0 {
			continue
		}
		t := targets[i]
		if revents&unix.POLLHUP != 0 && revents&unix.POLLIN == 0 {
			// Peer closed with no buffered data left.
			t.stream.Close()
			continue
		}
		if err := appendChunk(t.stream, t.buf); err != nil {
			return err
		}
	}
	return nil
}

func pollTimeoutMs(d time.Duration) int {
	switch {
	case d < 0:
		return -1
	case d == 0:
		return 0
	}
	ms := int(d / time.Millisecond)
	if ms == 0 {
		ms = 1
	}
	return ms
}
