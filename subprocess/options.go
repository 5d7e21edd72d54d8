package subprocess

import (
	"errors"
	"os/exec"
	"syscall"
)

// Stdio selects the destination or source wired to one of a child's standard
// streams. The variant set is closed: use Inherit, Null, Piped, ToStdout
// (stderr only) or File.
type Stdio interface {
	stdioVariant() string
}

type (
	stdioInherit  struct{}
	stdioNull     struct{}
	stdioPipe     struct{}
	stdioToStdout struct{}
	stdioFile     struct{ path string }
)

func (stdioInherit) stdioVariant() string  { return "inherit" }
func (stdioNull) stdioVariant() string     { return "null" }
func (stdioPipe) stdioVariant() string     { return "pipe" }
func (stdioToStdout) stdioVariant() string { return "stdout" }
func (f stdioFile) stdioVariant() string   { return "file:" + f.path }

var (
	// Inherit shares the parent's corresponding stream with the child. This
	// is the default for stdout and stderr.
	Inherit Stdio = stdioInherit{}

	// Null connects the child's stream to the OS null device. For stdin the
	// child immediately reads EOF. This is the default for stdin.
	Null Stdio = stdioNull{}

	// Piped creates a fresh pipe; the parent retains its half on the
	// Subprocess for reading output or writing input.
	Piped Stdio = stdioPipe{}

	// ToStdout wires the child's stderr to whatever its stdout resolved to.
	// Only valid for stderr.
	ToStdout Stdio = stdioToStdout{}
)

// File redirects the stream to the named file: opened read-only when used for
// stdin, created and truncated when used for stdout or stderr.
func File(path string) Stdio {
	return stdioFile{path: path}
}

// Options configures a single spawn. The zero value is not runnable on its
// own (a command or program is required) but every other field has a useful
// default: stdin reads from the null device, stdout and stderr are inherited,
// and the executable is located via the PATH search.
type Options struct {
	// Command is the argument vector handed to the child. When Program is
	// empty its first element doubles as the executable name.
	Command []string

	// Program optionally names the executable explicitly.
	Program string

	// Dir is the working directory of the child. Empty means the child
	// inherits the caller's working directory.
	Dir string

	// Stdin, Stdout and Stderr select the redirection for each standard
	// stream independently. nil applies the per-stream default.
	Stdin  Stdio
	Stdout Stdio
	Stderr Stdio

	// NoPathLookup disables locating the executable via the PATH search
	// (including PATHEXT probing on Windows); the program is then used as a
	// literal path.
	NoPathLookup bool

	// NewProcessGroup makes the child the leader of a new process group, so
	// it no longer shares signal delivery with the parent's group.
	NewProcessGroup bool
}

func (o Options) stdin() Stdio {
	if o.Stdin == nil {
		return Null
	}
	return o.Stdin
}

func (o Options) stdout() Stdio {
	if o.Stdout == nil {
		return Inherit
	}
	return o.Stdout
}

func (o Options) stderr() Stdio {
	if o.Stderr == nil {
		return Inherit
	}
	return o.Stderr
}

func (o Options) clone() Options {
	if o.Command != nil {
		o.Command = append([]string(nil), o.Command...)
	}
	return o
}

// resolveProgram determines the executable path and argument vector for a
// spawn. Lookup failures are reported as spawn failures carrying ENOENT so
// they are indistinguishable from a failed exec of a missing file.
func resolveProgram(opts Options) (string, []string, error) {
	prog := opts.Program
	argv := opts.Command
	if prog == "" {
		prog = argv[0]
	}
	if len(argv) == 0 {
		argv = []string{prog}
	}
	if opts.NoPathLookup {
		return prog, argv, nil
	}
	resolved, err := exec.LookPath(prog)
	if err != nil {
		if errors.Is(err, exec.ErrNotFound) {
			err = syscall.ENOENT
		}
		return "", nil, &SpawnError{Op: "locate executable", Program: prog, Err: err}
	}
	return resolved, argv, nil
}
