package cli

import (
	"github.com/spf13/cobra"

	"github.com/Paintersrp/spawn/internal/tui"
	"github.com/Paintersrp/spawn/subprocess"
)

func newWatchCmd(ctx *rootContext) *cobra.Command {
	return &cobra.Command{
		Use:   "watch <task | command> [args...]",
		Short: "Run a command under a live two-pane output view",
		Long: `Watch spawns the command with both output streams piped and renders them in
separate panes as they arrive. Press Ctrl-C to forward an interrupt to the
child and q to quit the view; quitting while the child is still running
terminates it.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts, err := resolveRunOptions(ctx, args)
			if err != nil {
				return err
			}
			opts.Stdin = subprocess.Null
			opts.Stdout = subprocess.Piped
			opts.Stderr = subprocess.Piped

			proc, err := subprocess.Spawn(opts)
			if err != nil {
				return err
			}
			defer reap(proc)
			return tui.Run(proc)
		},
	}
}
