package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"shadowquery-workers/internal/extractor"
)

var debugCmd = &cobra.Command{
	Use:   "debug",
	Short: "Print the structure of every message in a conversation",
	Long: `Debug lists each message's role, content type and which search related
fields it carries. Useful when extract finds nothing.`,
	RunE: runDebug,
}

func init() {
	addSourceFlags(debugCmd)
	rootCmd.AddCommand(debugCmd)
}

func runDebug(cmd *cobra.Command, args []string) error {
	doc, err := loadDocument(cmd)
	if err != nil {
		return err
	}
	summary := extractor.Summarize(doc.Graph)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Messages: %d\n", summary.TotalMessages)
	for i, m := range summary.Messages {
		fmt.Fprintf(out, "%3d  %-9s %-16s parts=%d", i+1, m.Role, m.ContentType, m.PartCount)
		if m.Recipient != "" {
			fmt.Fprintf(out, " recipient=%s", m.Recipient)
		}
		if m.HasHiddenQueries {
			fmt.Fprint(out, " hidden-queries")
		}
		if m.HasVisibleQueries {
			fmt.Fprint(out, " queries")
		}
		if m.HasContentReferences {
			fmt.Fprint(out, " content-refs")
		}
		if m.HasCitationMetadata {
			fmt.Fprint(out, " citation-meta")
		}
		if m.HasSearchResultGroups {
			fmt.Fprint(out, " result-groups")
		}
		fmt.Fprintln(out)
	}
	return nil
}
