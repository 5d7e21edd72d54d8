package subprocess

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"syscall"
	"testing"
	"time"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("subprocess tests use POSIX shell commands")
	}
}

func TestJoinReportsExitCode(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("/bin/sh", "-c", "exit 42")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	status, err := proc.Join()
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if status.Code != 42 || status.Signal != 0 {
		t.Fatalf("status = %+v, want code 42, signal 0", status)
	}
	if status.Success() {
		t.Fatal("nonzero exit reported as success")
	}

	var exitErr *ExitError
	if err := status.Err(); !errors.As(err, &exitErr) {
		t.Fatalf("status.Err() = %v, want *ExitError", err)
	} else if exitErr.Status.Code != 42 {
		t.Fatalf("ExitError code = %d, want 42", exitErr.Status.Code)
	}
}

func TestReadOutputCapturesStdout(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo hello"},
		Stdout:  Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	out, err := proc.ReadOutput()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(out.Stdout) != "hello\n" {
		t.Fatalf("stdout = %q, want %q", out.Stdout, "hello\n")
	}
	if len(out.Stderr) != 0 {
		t.Fatalf("stderr = %q, want empty", out.Stderr)
	}
	if proc.HasStdout() {
		t.Fatal("stdout pipe still open after end-of-stream")
	}
	if status, err := proc.Join(); err != nil || !status.Success() {
		t.Fatalf("join: status=%v err=%v", status, err)
	}
}

func TestReadOutputAfterJoin(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo hello"},
		Stdout:  Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	// The pipe outlives the joined process; buffered bytes remain readable.
	out, err := proc.ReadOutput()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if string(out.Stdout) != "hello\n" {
		t.Fatalf("stdout = %q, want %q", out.Stdout, "hello\n")
	}
}

func TestSeparateStderrCapture(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo out; echo err 1>&2"},
		Stdout:  Piped,
		Stderr:  Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	out, err := proc.ReadOutput()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	if string(out.Stdout) != "out\n" {
		t.Fatalf("stdout = %q, want %q", out.Stdout, "out\n")
	}
	if string(out.Stderr) != "err\n" {
		t.Fatalf("stderr = %q, want %q", out.Stderr, "err\n")
	}
}

func TestStderrRedirectsToStdout(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo out; echo err 1>&2"},
		Stdout:  Piped,
		Stderr:  ToStdout,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	out, err := proc.ReadOutput()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	if string(out.Stdout) != "out\nerr\n" {
		t.Fatalf("merged stdout = %q, want %q", out.Stdout, "out\nerr\n")
	}
	if proc.StderrPipe() != nil {
		t.Fatal("merged stderr should not retain its own pipe")
	}
}

func TestSpawnMissingExecutable(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("this-exe-does-not-exist.exe")
	if proc != nil {
		proc.Detach()
		t.Fatal("spawn of a missing executable returned a subprocess")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("err = %v, want *SpawnError", err)
	}
	if !errors.Is(err, syscall.ENOENT) {
		t.Fatalf("err = %v, want ENOENT underneath", err)
	}
}

func TestSpawnBadWorkingDirectory(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "true"},
		Dir:     filepath.Join(t.TempDir(), "missing"),
	})
	if proc != nil {
		_, _ = proc.Join()
		t.Fatal("spawn with a missing working directory succeeded")
	}
	var spawnErr *SpawnError
	if !errors.As(err, &spawnErr) {
		t.Fatalf("err = %v, want *SpawnError", err)
	}
}

func TestTryJoinTransitions(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("/bin/sh", "-c", "sleep 0.3")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if st, err := proc.TryJoin(); err != nil {
		t.Fatalf("try join: %v", err)
	} else if st != nil {
		t.Fatalf("try join on a running process returned %v", st)
	}
	if proc.Joined() {
		t.Fatal("subprocess reports joined before termination")
	}

	deadline := time.Now().Add(5 * time.Second)
	for {
		st, err := proc.TryJoin()
		if err != nil {
			t.Fatalf("try join: %v", err)
		}
		if st != nil {
			if !st.Success() {
				t.Fatalf("status = %v, want success", st)
			}
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subprocess exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
	if !proc.Joined() || proc.Running() {
		t.Fatal("joined subprocess still reports running")
	}
}

func TestRunningObservedTerminationIsNotLost(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("/bin/sh", "-c", "exit 7")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	deadline := time.Now().Add(5 * time.Second)
	for proc.Running() {
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for subprocess exit")
		}
		time.Sleep(10 * time.Millisecond)
	}
	// Running reaped the process; the status must still reach the caller.
	st, err := proc.TryJoin()
	if err != nil {
		t.Fatalf("try join: %v", err)
	}
	if st == nil || st.Code != 7 {
		t.Fatalf("status = %v, want exit code 7", st)
	}
}

func TestSignalTermination(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("sleep", "10")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if err := proc.Signal(syscall.SIGTERM); err != nil {
		t.Fatalf("signal: %v", err)
	}
	status, err := proc.Join()
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if status.Signal != int(syscall.SIGTERM) || status.Code != 0 {
		t.Fatalf("status = %+v, want signal %d", status, syscall.SIGTERM)
	}
	if status.Success() {
		t.Fatal("signal termination reported as success")
	}
}

func TestStdinPipeRoundTrip(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"cat"},
		Stdin:   Piped,
		Stdout:  Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if !proc.HasStdin() {
		t.Fatal("piped stdin not retained")
	}
	payload := []byte("Hello!")
	if n, err := proc.WriteInput(payload); err != nil || n != len(payload) {
		t.Fatalf("write input: n=%d err=%v", n, err)
	}
	proc.CloseStdin()
	if proc.HasStdin() {
		t.Fatal("stdin pipe open after CloseStdin")
	}
	proc.CloseStdin() // no-op

	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	out, err := proc.ReadOutput()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(out.Stdout, payload) {
		t.Fatalf("stdout = %q, want %q", out.Stdout, payload)
	}
}

func TestStdinFromFile(t *testing.T) {
	skipOnWindows(t)

	path := filepath.Join(t.TempDir(), "input.txt")
	content := []byte("line one\nline two\n")
	if err := os.WriteFile(path, content, 0o644); err != nil {
		t.Fatalf("write input file: %v", err)
	}

	proc, err := Spawn(Options{
		Command: []string{"cat"},
		Stdin:   File(path),
		Stdout:  Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	out, err := proc.ReadOutput()
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !bytes.Equal(out.Stdout, content) {
		t.Fatalf("stdout = %q, want %q", out.Stdout, content)
	}
}

func TestStdoutRedirectToFile(t *testing.T) {
	skipOnWindows(t)

	path := filepath.Join(t.TempDir(), "output.txt")
	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo hello"},
		Stdout:  File(path),
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if status, err := proc.Join(); err != nil || !status.Success() {
		t.Fatalf("join: status=%v err=%v", status, err)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read output file: %v", err)
	}
	if string(content) != "hello\n" {
		t.Fatalf("file content = %q, want %q", content, "hello\n")
	}
}

func TestWorkingDirectory(t *testing.T) {
	skipOnWindows(t)

	dir := t.TempDir()
	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo hello > out.txt"},
		Dir:     dir,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if status, err := proc.Join(); err != nil || !status.Success() {
		t.Fatalf("join: status=%v err=%v", status, err)
	}
	content, err := os.ReadFile(filepath.Join(dir, "out.txt"))
	if err != nil {
		t.Fatalf("read file in working directory: %v", err)
	}
	if string(content) != "hello\n" {
		t.Fatalf("file content = %q, want %q", content, "hello\n")
	}
}

func TestNullStdout(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "echo discarded"},
		Stdout:  Null,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	status, err := proc.Join()
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := status.Err(); err != nil {
		t.Fatalf("status err: %v", err)
	}
}

func TestReadOutputIntoZeroTimeoutPolls(t *testing.T) {
	skipOnWindows(t)

	proc, err := Spawn(Options{
		Command: []string{"/bin/sh", "-c", "sleep 2"},
		Stdout:  Piped,
		Stderr:  Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	var out Output
	start := time.Now()
	if err := proc.ReadOutputInto(&out, 0); err != nil {
		t.Fatalf("read output: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("zero-timeout read blocked for %v", elapsed)
	}
	if len(out.Stdout) != 0 || len(out.Stderr) != 0 {
		t.Fatalf("zero-timeout read appended bytes: %+v", out)
	}

	if err := proc.Signal(syscall.SIGKILL); err != nil {
		t.Fatalf("signal: %v", err)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func TestDoubleJoinPanics(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("/bin/sh", "-c", "true")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
	assertPanics(t, "second join", func() {
		_, _ = proc.Join()
	})
}

func TestJoinAfterDetachPanics(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("/bin/sh", "-c", "sleep 0.1")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	proc.Detach()
	if proc.Running() {
		t.Fatal("detached subprocess reports running")
	}
	assertPanics(t, "join after detach", func() {
		_, _ = proc.Join()
	})
	proc.Detach() // no-op
}

func TestWriteInputWithoutPipePanics(t *testing.T) {
	skipOnWindows(t)

	proc, err := Command("/bin/sh", "-c", "true")
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	assertPanics(t, "write to non-piped stdin", func() {
		_, _ = proc.WriteInput([]byte("x"))
	})
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
}

func TestSpawnWithoutCommandPanics(t *testing.T) {
	assertPanics(t, "spawn with no command", func() {
		_, _ = Spawn(Options{})
	})
}

func TestOptionsAreCopied(t *testing.T) {
	skipOnWindows(t)

	args := []string{"/bin/sh", "-c", "true"}
	proc, err := Spawn(Options{Command: args})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	args[2] = "mutated"
	if got := proc.Options().Command[2]; got != "true" {
		t.Fatalf("options aliased the caller's slice: %q", got)
	}
	if _, err := proc.Join(); err != nil {
		t.Fatalf("join: %v", err)
	}
}
