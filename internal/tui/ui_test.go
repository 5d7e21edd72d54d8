package tui

import (
	"os"
	"runtime"
	"syscall"
	"testing"

	"github.com/Paintersrp/spawn/subprocess"
)

func skipOnWindows(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("tui tests use POSIX commands")
	}
}

func spawnForView(t *testing.T, args ...string) (*UI, *subprocess.Subprocess) {
	t.Helper()
	proc, err := subprocess.Spawn(subprocess.Options{
		Command: args,
		Stdout:  subprocess.Piped,
		Stderr:  subprocess.Piped,
	})
	if err != nil {
		t.Fatalf("spawn: %v", err)
	}
	return New(proc), proc
}

func TestQueuedSignalsReachChildThroughPump(t *testing.T) {
	skipOnWindows(t)

	ui, proc := spawnForView(t, "sleep", "5")

	ui.deliver(os.Kill)
	status, err := ui.joinPatiently()
	if err != nil {
		t.Fatalf("join: %v", err)
	}
	if status.Signal != int(syscall.SIGKILL) {
		t.Fatalf("status = %v, want SIGKILL termination", status)
	}
	if !proc.Joined() {
		t.Fatal("subprocess not joined")
	}

	// A request landing after the join is only queued, never delivered, so
	// it cannot trip the joined-subprocess contract.
	ui.deliver(os.Interrupt)
	if got := ui.proc.Status(); got == nil || got.Signal != int(syscall.SIGKILL) {
		t.Fatalf("recorded status = %v, want SIGKILL termination", got)
	}
}

func TestDeliverNeverBlocks(t *testing.T) {
	skipOnWindows(t)

	ui, _ := spawnForView(t, "/bin/sh", "-c", "true")

	for i := 0; i < 32; i++ {
		ui.deliver(os.Interrupt)
	}
	if _, err := ui.joinPatiently(); err != nil {
		t.Fatalf("join: %v", err)
	}
}
