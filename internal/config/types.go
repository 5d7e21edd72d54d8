package config

import (
	"fmt"
	"strings"

	"github.com/Paintersrp/spawn/subprocess"
)

// Taskfile is the root document of a task manifest.
type Taskfile struct {
	Version int              `yaml:"version,omitempty"`
	Tasks   map[string]*Task `yaml:"tasks"`

	// Source is the absolute path the manifest was loaded from.
	Source string `yaml:"-"`
}

// Task describes one runnable command and the wiring of its standard
// streams. Stream fields accept "inherit", "null", "pipe", "file:PATH" and,
// for stderr only, "stdout"; an empty string applies the per-stream default.
type Task struct {
	Command         []string `yaml:"command"`
	Program         string   `yaml:"program,omitempty"`
	Workdir         string   `yaml:"workdir,omitempty"`
	Stdin           string   `yaml:"stdin,omitempty"`
	Stdout          string   `yaml:"stdout,omitempty"`
	Stderr          string   `yaml:"stderr,omitempty"`
	NoPathLookup    bool     `yaml:"noPathLookup,omitempty"`
	NewProcessGroup bool     `yaml:"newProcessGroup,omitempty"`
}

// Options converts the task into spawn options.
func (t *Task) Options() (subprocess.Options, error) {
	opts := subprocess.Options{
		Command:         append([]string(nil), t.Command...),
		Program:         t.Program,
		Dir:             t.Workdir,
		NoPathLookup:    t.NoPathLookup,
		NewProcessGroup: t.NewProcessGroup,
	}
	var err error
	if opts.Stdin, err = ParseStdio(t.Stdin, "stdin"); err != nil {
		return subprocess.Options{}, err
	}
	if opts.Stdout, err = ParseStdio(t.Stdout, "stdout"); err != nil {
		return subprocess.Options{}, err
	}
	if opts.Stderr, err = ParseStdio(t.Stderr, "stderr"); err != nil {
		return subprocess.Options{}, err
	}
	return opts, nil
}

// ParseStdio maps a manifest redirection string onto a spawn redirection
// variant. The empty string returns nil, leaving the per-stream default in
// effect. "stdout" is only accepted for the stderr stream.
func ParseStdio(value, stream string) (subprocess.Stdio, error) {
	switch value {
	case "":
		return nil, nil
	case "inherit":
		return subprocess.Inherit, nil
	case "null":
		return subprocess.Null, nil
	case "pipe":
		return subprocess.Piped, nil
	case "stdout":
		if stream != "stderr" {
			return nil, fmt.Errorf("%s: redirection %q is only valid for stderr", stream, value)
		}
		return subprocess.ToStdout, nil
	}
	if path, ok := strings.CutPrefix(value, "file:"); ok {
		if path == "" {
			return nil, fmt.Errorf("%s: file redirection requires a path", stream)
		}
		return subprocess.File(path), nil
	}
	return nil, fmt.Errorf("%s: unknown redirection %q", stream, value)
}
