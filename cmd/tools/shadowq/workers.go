package main

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shadowquery-workers/pkg/registry"
)

var workersJSON bool

var workersCmd = &cobra.Command{
	Use:   "workers",
	Short: "List the job types served by the worker manager",
	RunE: func(cmd *cobra.Command, args []string) error {
		reg := registry.Builtin()
		if workersJSON {
			return writeJSON(cmd, reg, true)
		}
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "TASK TYPE\tTIMEOUT\tERROR CODES")
		for _, a := range reg.Activities {
			fmt.Fprintf(tw, "%s\t%s\t%s\n", a.TaskType, a.Timeout, strings.Join(a.ErrorCodes, ","))
		}
		return tw.Flush()
	},
}

func init() {
	workersCmd.Flags().BoolVar(&workersJSON, "json", false, "Print the registry as JSON")
	rootCmd.AddCommand(workersCmd)
}
