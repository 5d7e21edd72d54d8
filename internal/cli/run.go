package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"syscall"
	"time"

	"github.com/armon/circbuf"
	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/Paintersrp/spawn/internal/cliutil"
	"github.com/Paintersrp/spawn/internal/config"
	"github.com/Paintersrp/spawn/subprocess"
)

// pollStep bounds a single wait for child output so timeouts and signal
// forwarding get a chance to run between reads.
const pollStep = 200 * time.Millisecond

// joinPollInterval paces the reap loop once the streams are done.
const joinPollInterval = 50 * time.Millisecond

func newRunCmd(ctx *rootContext) *cobra.Command {
	var (
		dir         string
		timeout     time.Duration
		tailBytes   int64
		stdin       string
		stdoutFile  string
		mergeStderr bool
		quiet       bool
		detach      bool
		noLookup    bool
		newGroup    bool
	)

	cmd := &cobra.Command{
		Use:   "run <task | command> [args...]",
		Short: "Spawn a manifest task or an ad-hoc command and stream its output",
		Long: `Run spawns a child process and relays its piped stdout and stderr until both
streams reach end of output. A single argument naming a manifest task runs
that task; anything else is treated as a literal command line.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveRunOptions(ctx, args)
			if err != nil {
				return err
			}
			if dir != "" {
				opts.Dir = dir
			}
			if noLookup {
				opts.NoPathLookup = true
			}
			if newGroup {
				opts.NewProcessGroup = true
			}
			if stdin != "" {
				if stdin == "pipe" {
					return errors.New("--stdin=pipe is not supported by run; use the library API for interactive input")
				}
				redir, err := config.ParseStdio(stdin, "stdin")
				if err != nil {
					return err
				}
				opts.Stdin = redir
			}
			if stdoutFile != "" {
				opts.Stdout = subprocess.File(stdoutFile)
			}
			if mergeStderr {
				opts.Stderr = subprocess.ToStdout
			}
			if opts.Stdout == nil {
				opts.Stdout = subprocess.Piped
			}
			if opts.Stderr == nil {
				opts.Stderr = subprocess.Piped
			}

			proc, err := subprocess.Spawn(opts)
			if err != nil {
				return err
			}
			if detach {
				fmt.Fprintln(cmd.OutOrStdout(), proc.Pid())
				proc.Detach()
				return nil
			}
			defer reap(proc)
			return relay(proc, timeout, tailBytes, quiet)
		},
	}

	cmd.Flags().StringVarP(&dir, "dir", "C", "", "working directory for the child")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "kill the child after this duration (0 means no limit)")
	cmd.Flags().Int64Var(&tailBytes, "tail-bytes", 16*1024, "bytes of output retained for the failure report")
	cmd.Flags().StringVar(&stdin, "stdin", "", "stdin redirection: inherit, null or file:PATH")
	cmd.Flags().StringVar(&stdoutFile, "stdout-file", "", "redirect the child's stdout to a file")
	cmd.Flags().BoolVar(&mergeStderr, "merge-stderr", false, "wire the child's stderr to its stdout")
	cmd.Flags().BoolVarP(&quiet, "quiet", "q", false, "suppress live output, printing the retained tail only on failure")
	cmd.Flags().BoolVar(&detach, "detach", false, "print the pid and leave the child running")
	cmd.Flags().BoolVar(&noLookup, "no-path-lookup", false, "treat the program as a literal path instead of searching PATH")
	cmd.Flags().BoolVar(&newGroup, "new-process-group", false, "start the child in its own process group")
	return cmd
}

// resolveRunOptions maps the positional arguments onto spawn options. A lone
// argument that names a manifest task uses the task's definition; everything
// else runs as-is.
func resolveRunOptions(ctx *rootContext, args []string) (subprocess.Options, error) {
	if len(args) == 1 {
		opts, ok, err := ctx.taskOptions(args[0])
		if err != nil {
			return subprocess.Options{}, err
		}
		if ok {
			return opts, nil
		}
	}
	return subprocess.Options{Command: args}, nil
}

// relay pumps the child's piped output to the terminal until both streams
// close, then joins the child and reports its status. Signals delivered to
// spawn itself are forwarded to the child rather than acted on directly.
func relay(proc *subprocess.Subprocess, timeout time.Duration, tailBytes int64, quiet bool) error {
	tail, err := circbuf.NewBuffer(tailBytes)
	if err != nil {
		return fmt.Errorf("tail buffer: %w", err)
	}

	outSink, errSink, flush := outputSinks(quiet, tail)

	// The deadline bounds the whole run, including the reap of a child whose
	// streams were never piped.
	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	var (
		out        subprocess.Output
		nOut, nErr int
		killed     = false
	)
	for proc.HasStdout() || proc.HasStderr() {
		if err := proc.ReadOutputInto(&out, pollStep); err != nil {
			var sigErr *subprocess.SignalError
			if !errors.As(err, &sigErr) {
				return err
			}
			forwardSignal(proc, sigErr.Signal)
		}
		nOut = drainNew(out.Stdout, nOut, outSink)
		nErr = drainNew(out.Stderr, nErr, errSink)

		killed = killOnDeadline(proc, deadline, killed)
	}
	flush()

	status, err := joinWithin(proc, deadline, &killed)
	if err != nil {
		return err
	}
	if killed {
		return fmt.Errorf("timed out after %s (%s)", timeout, status)
	}
	if !status.Success() {
		if quiet && tail.TotalWritten() > 0 {
			os.Stderr.Write(tail.Bytes())
		}
		return status.Err()
	}
	return nil
}

// outputSinks picks the writers the relay loop feeds. Interactive sessions get
// colored per-stream prefixes; redirected output stays byte-exact. The tail
// buffer always records both streams for the failure report.
func outputSinks(quiet bool, tail io.Writer) (io.Writer, io.Writer, func()) {
	if quiet {
		return tail, tail, func() {}
	}
	if !term.IsTerminal(int(os.Stdout.Fd())) {
		return io.MultiWriter(os.Stdout, tail), io.MultiWriter(os.Stderr, tail), func() {}
	}
	outLines := cliutil.NewLineWriter(os.Stdout, color.New(color.FgCyan).Sprint("out")+" | ")
	errLines := cliutil.NewLineWriter(os.Stderr, color.New(color.FgYellow).Sprint("err")+" | ")
	flush := func() {
		_ = outLines.Flush()
		_ = errLines.Flush()
	}
	return io.MultiWriter(outLines, tail), io.MultiWriter(errLines, tail), flush
}

// drainNew writes the bytes appended since the previous call and returns the
// new consumed length.
func drainNew(buf []byte, consumed int, sink io.Writer) int {
	if len(buf) > consumed {
		_, _ = sink.Write(buf[consumed:])
	}
	return len(buf)
}

func forwardSignal(proc *subprocess.Subprocess, sig syscall.Signal) {
	subprocess.ResetSignal()
	if sig == 0 {
		return
	}
	_ = proc.Signal(sig)
}

func killOnDeadline(proc *subprocess.Subprocess, deadline time.Time, killed bool) bool {
	if killed || deadline.IsZero() || time.Now().Before(deadline) {
		return killed
	}
	_ = proc.Signal(os.Kill)
	return true
}

// joinWithin reaps the child, forwarding watched signals and enforcing the
// deadline while waiting.
func joinWithin(proc *subprocess.Subprocess, deadline time.Time, killed *bool) (subprocess.ExitStatus, error) {
	for {
		if sig := subprocess.ReceivedSignal(); sig != 0 {
			forwardSignal(proc, sig)
		}
		st, err := proc.TryJoin()
		if err != nil {
			var sigErr *subprocess.SignalError
			if !errors.As(err, &sigErr) {
				return subprocess.ExitStatus{}, err
			}
			forwardSignal(proc, sigErr.Signal)
			continue
		}
		if st != nil {
			return *st, nil
		}
		*killed = killOnDeadline(proc, deadline, *killed)
		time.Sleep(joinPollInterval)
	}
}

// joinPatiently joins the child, forwarding any signal that interrupts the
// wait and retrying until a real status or failure arrives.
func joinPatiently(proc *subprocess.Subprocess) (subprocess.ExitStatus, error) {
	for {
		status, err := proc.Join()
		if err == nil {
			return status, nil
		}
		var sigErr *subprocess.SignalError
		if !errors.As(err, &sigErr) {
			return subprocess.ExitStatus{}, err
		}
		forwardSignal(proc, sigErr.Signal)
	}
}

// reap guarantees the child does not outlive a failed command invocation.
func reap(proc *subprocess.Subprocess) {
	if proc.Joined() {
		return
	}
	_ = proc.Signal(os.Kill)
	if _, err := joinPatiently(proc); err != nil {
		proc.Detach()
	}
}
