package cli

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/spawn/schema"
	"github.com/Paintersrp/spawn/subprocess"
)

func newTasksCmd(ctx *rootContext) *cobra.Command {
	var printSchema bool

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List the tasks defined in the manifest",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if printSchema {
				cmd.OutOrStdout().Write(schema.TasksV1Schema)
				return nil
			}
			doc, err := ctx.loadTasks()
			if err != nil {
				return err
			}
			names := make([]string, 0, len(doc.Tasks))
			for name := range doc.Tasks {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				task := doc.Tasks[name]
				line := subprocess.JoinCommandLine(task.Command)
				if task.Program != "" {
					line = task.Program + " " + line
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%-20s %s\n", name, line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&printSchema, "schema", false, "print the JSON schema for task manifests")
	return cmd
}
