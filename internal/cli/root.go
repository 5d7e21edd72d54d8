// Package cli implements the spawn command-line interface.
package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/spawn/internal/config"
	"github.com/Paintersrp/spawn/subprocess"
)

type rootContext struct {
	taskFile string
}

func (c *rootContext) loadTasks() (*config.Taskfile, error) {
	return config.Load(c.taskFile)
}

// taskOptions resolves name against the task manifest. ok is false when the
// manifest does not define the task; a missing manifest file is only an error
// once a task is actually being looked up.
func (c *rootContext) taskOptions(name string) (subprocess.Options, bool, error) {
	doc, err := c.loadTasks()
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return subprocess.Options{}, false, nil
		}
		return subprocess.Options{}, false, err
	}
	task, ok := doc.Tasks[name]
	if !ok {
		return subprocess.Options{}, false, nil
	}
	opts, err := task.Options()
	if err != nil {
		return subprocess.Options{}, false, fmt.Errorf("task %s: %w", name, err)
	}
	return opts, true, nil
}

// NewRootCmd builds the spawn command tree.
func NewRootCmd() *cobra.Command {
	ctx := &rootContext{}

	root := &cobra.Command{
		Use:           "spawn",
		Short:         "Run child processes with multiplexed pipe I/O",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&ctx.taskFile, "file", "f", "tasks.yaml", "path to the task manifest")

	root.AddCommand(newRunCmd(ctx))
	root.AddCommand(newTasksCmd(ctx))
	root.AddCommand(newWatchCmd(ctx))
	return root
}

// Execute runs the CLI. The process exit code mirrors the child where one was
// run to completion: the child's own code for a normal exit, 128 plus the
// signal number for a signal death.
func Execute() {
	stop := subprocess.WatchSignals()
	defer stop()

	if err := NewRootCmd().Execute(); err != nil {
		var exitErr *subprocess.ExitError
		if errors.As(err, &exitErr) {
			os.Exit(exitCode(exitErr.Status))
		}
		fmt.Fprintln(os.Stderr, "spawn:", err)
		os.Exit(1)
	}
}

func exitCode(st subprocess.ExitStatus) int {
	if st.Signal != 0 {
		return 128 + st.Signal
	}
	return st.Code
}
