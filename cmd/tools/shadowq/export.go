package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"shadowquery-workers/internal/export"
)

var exportOut string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export a conversation's report as CSV",
	Long: `Export extracts a conversation and writes one CSV row per shadow query
and per citation. Without --out the CSV goes to stdout; --out . writes
to a generated filename in the current directory.`,
	RunE: runExport,
}

func init() {
	addSourceFlags(exportCmd)
	exportCmd.Flags().StringVar(&exportOut, "out", "", "Output file (. for a generated name)")
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	report, _, err := extractReport(cmd)
	if err != nil {
		return err
	}

	if exportOut == "" {
		_, err := export.WriteCSV(cmd.OutOrStdout(), report)
		return err
	}

	path := exportOut
	if path == "." {
		path = export.Filename(report)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	rows, err := export.WriteCSV(f, report)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d rows to %s\n", rows, path)
	return nil
}
