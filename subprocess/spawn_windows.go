//go:build windows

package subprocess

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"
	"unsafe"

	"golang.org/x/sys/windows"
)

// How often the timeout read loop re-checks pipe readiness.
const pipePollInterval = 10 * time.Millisecond

// process is the Windows backend: the native process handle plus a stash for
// a termination observed by a non-blocking poll.
type process struct {
	pid     uint32
	handle  windows.Handle
	pending *ExitStatus
}

// startProcess resolves the redirection choices into inheritable child
// handles and creates the OS process with CreateProcess. Stream resolution
// order is stdin, stdout, stderr; a stderr of ToStdout reads the
// already-resolved stdout destination. There is no error-relay channel on
// Windows: CreateProcess fails synchronously when the executable cannot be
// found or executed.
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

	var si windows.StartupInfo
	si.Cb = uint32(unsafe.Sizeof(si))
	si.Flags = windows.STARTF_USESTDHANDLES

	switch v := s.opts.stdin().(type) {
	case stdioNull:
		str, e := openNullRead()
		if e != nil {
			return e
		}
		temps = append(temps, str)
		si.StdInput = str.Handle()
	case stdioInherit:
		si.StdInput, _ = windows.GetStdHandle(windows.STD_INPUT_HANDLE)
	case stdioPipe:
		r, w, e := NewPipe()
		if e != nil {
			return e
		}
		s.stdin = w
		temps = append(temps, r)
		if e := markInheritable(r.Handle()); e != nil {
			return e
		}
		si.StdInput = r.Handle()
	case stdioFile:
		str, e := openFileRead(v.path)
		if e != nil {
			return e
		}
		temps = append(temps, str)
		si.StdInput = str.Handle()
	default:
		panic(fmt.Sprintf("subprocess: invalid stdin redirection %q", s.opts.stdin().stdioVariant()))
	}

	switch v := s.opts.stdout().(type) {
	case stdioInherit:
		si.StdOutput, _ = windows.GetStdHandle(windows.STD_OUTPUT_HANDLE)
	case stdioNull:
		str, e := openNullWrite()
		if e != nil {
			return e
		}
		temps = append(temps, str)
		si.StdOutput = str.Handle()
	case stdioPipe:
		r, w, e := NewPipe()
		if e != nil {
			return e
		}
		s.stdout = r
		temps = append(temps, w)
		if e := markInheritable(w.Handle()); e != nil {
			return e
		}
		si.StdOutput = w.Handle()
	case stdioFile:
		str, e := openFileWrite(v.path)
		if e != nil {
			return e
		}
		temps = append(temps, str)
		si.StdOutput = str.Handle()
	default:
		panic(fmt.Sprintf("subprocess: invalid stdout redirection %q", s.opts.stdout().stdioVariant()))
	}

	switch v := s.opts.stderr().(type) {
	case stdioInherit:
		si.StdErr, _ = windows.GetStdHandle(windows.STD_ERROR_HANDLE)
	case stdioNull:
		str, e := openNullWrite()
		if e != nil {
			return e
		}
		temps = append(temps, str)
		si.StdErr = str.Handle()
	case stdioPipe:
		r, w, e := NewPipe()
		if e != nil {
			return e
		}
		s.stderr = r
		temps = append(temps, w)
		if e := markInheritable(w.Handle()); e != nil {
			return e
		}
		si.StdErr = w.Handle()
	case stdioFile:
		str, e := openFileWrite(v.path)
		if e != nil {
			return e
		}
		temps = append(temps, str)
		si.StdErr = str.Handle()
	case stdioToStdout:
		si.StdErr = si.StdOutput
	default:
		panic(fmt.Sprintf("subprocess: invalid stderr redirection %q", s.opts.stderr().stdioVariant()))
	}

	progPtr, e := windows.UTF16PtrFromString(prog)
	if e != nil {
		return &SpawnError{Op: "encode program path", Program: prog, Err: e}
	}
	cmdPtr, e := windows.UTF16PtrFromString(JoinCommandLine(argv))
	if e != nil {
		return &SpawnError{Op: "encode command line", Program: prog, Err: e}
	}
	var dirPtr *uint16
	if s.opts.Dir != "" {
		dirPtr, e = windows.UTF16PtrFromString(s.opts.Dir)
		if e != nil {
			return &SpawnError{Op: "encode working directory", Program: prog, Err: e}
		}
	}

	flags := uint32(windows.CREATE_UNICODE_ENVIRONMENT)
	if s.opts.NewProcessGroup {
		flags |= windows.CREATE_NEW_PROCESS_GROUP
	}

	var pi windows.ProcessInformation
	e = windows.CreateProcess(progPtr, cmdPtr, nil, nil, true, flags, nil, dirPtr, &si, &pi)
	if e != nil {
		return &SpawnError{Op: "CreateProcess", Program: prog, Err: e}
	}
	windows.CloseHandle(pi.Thread)
	s.proc = &process{pid: pi.ProcessId, handle: pi.Process}
	return nil
}

func markInheritable(h windows.Handle) error {
	if err := windows.SetHandleInformation(h, windows.HANDLE_FLAG_INHERIT, windows.HANDLE_FLAG_INHERIT); err != nil {
		return &SpawnError{Op: "mark handle inheritable", Err: err}
	}
	return nil
}

func (p *process) wait() (ExitStatus, error) {
	if p.pending != nil {
		return *p.pending, nil
	}
	ev, err := windows.WaitForSingleObject(p.handle, windows.INFINITE)
	if err != nil {
		return ExitStatus{}, fmt.Errorf("wait for process: %w", err)
	}
	if ev != windows.WAIT_OBJECT_0 {
		return ExitStatus{}, fmt.Errorf("wait for process: unexpected wait result %#x", ev)
	}
	return p.exitStatus()
}

func (p *process) tryWait() (*ExitStatus, error) {
	if p.pending != nil {
		return p.pending, nil
	}
	ev, err := windows.WaitForSingleObject(p.handle, 0)
	if err != nil {
		return nil, fmt.Errorf("wait for process: %w", err)
	}
	if ev == uint32(windows.WAIT_TIMEOUT) {
		return nil, nil
	}
	st, err := p.exitStatus()
	if err != nil {
		return nil, err
	}
	p.pending = &st
	return p.pending, nil
}

// exitStatus reads the process exit code. Windows has no terminated-by-
// signal dimension; console control events come back through the ordinary
// exit code.
func (p *process) exitStatus() (ExitStatus, error) {
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return ExitStatus{}, fmt.Errorf("read process exit code: %w", err)
	}
	return ExitStatus{Code: int(int32(code))}, nil
}

func (p *process) running() bool {
	st, err := p.tryWait()
	return err == nil && st == nil && p.pending == nil
}

// signal maps POSIX-style termination requests onto the Windows facilities:
// SIGKILL terminates the process outright, SIGINT becomes a Ctrl-C console
// event and every other signal a Ctrl-Break event. Console control events
// are delivered process-group-wide; this is a platform limitation, not a
// per-process kill.
func (p *process) signal(sig os.Signal) error {
	num, ok := sig.(syscall.Signal)
	if !ok {
		return fmt.Errorf("unsupported signal %v", sig)
	}
	switch num {
	case syscall.SIGKILL:
		if err := windows.TerminateProcess(p.handle, 1); err != nil {
			return fmt.Errorf("terminate process %d: %w", p.pid, err)
		}
	case syscall.SIGINT:
		if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_C_EVENT, p.pid); err != nil {
			return fmt.Errorf("send ctrl-c to process group %d: %w", p.pid, err)
		}
	default:
		if err := windows.GenerateConsoleCtrlEvent(windows.CTRL_BREAK_EVENT, p.pid); err != nil {
			return fmt.Errorf("send ctrl-break to process group %d: %w", p.pid, err)
		}
	}
	return nil
}

func (p *process) release() {
	if p.handle != windows.InvalidHandle && p.handle != 0 {
		windows.CloseHandle(p.handle)
		p.handle = windows.InvalidHandle
	}
}

func (s *Subprocess) readOutput(out *Output, timeout time.Duration) error {
	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	for {
		if !s.stdout.IsOpen() && !s.stderr.IsOpen() {
			return nil
		}
		progress := false
		if s.stdout.IsOpen() {
			ok, err := drainReady(s.stdout, &out.Stdout)
			if err != nil {
				return err
			}
			progress = progress || ok
		}
		if s.stderr.IsOpen() {
			ok, err := drainReady(s.stderr, &out.Stderr)
			if err != nil {
				return err
			}
			progress = progress || ok
		}
		if progress || timeout == 0 {
			return nil
		}
		if timeout > 0 && !time.Now().Before(deadline) {
			return nil
		}
		time.Sleep(pipePollInterval)
	}
}

// drainReady peeks at an anonymous pipe and performs one bounded read when
// data is buffered. A broken pipe during the peek is end-of-stream.
func drainReady(str *Stream, dst *[]byte) (bool, error) {
	var avail uint32
	err := windows.PeekNamedPipe(str.Handle(), nil, 0, nil, &avail, nil)
	if err != nil {
		if errors.Is(err, windows.ERROR_BROKEN_PIPE) {
			str.Close()
			return true, nil
		}
		return false, fmt.Errorf("peek subprocess pipe: %w", err)
	}
	if avail == 0 {
		return false, nil
	}
	if err := appendChunk(str, dst); err != nil {
		return false, err
	}
	return true, nil
}
