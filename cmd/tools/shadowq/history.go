package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"shadowquery-workers/internal/common/database"
	"shadowquery-workers/internal/store"
)

var (
	historyID     string
	historyLimit  int
	historyLatest bool
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List archived reports for a conversation",
	Long:  `History reads the report archive configured under database.postgres.`,
	RunE:  runHistory,
}

func init() {
	historyCmd.Flags().StringVar(&historyID, "id", "", "Conversation id")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Maximum number of reports")
	historyCmd.Flags().BoolVar(&historyLatest, "latest", false, "Print the latest archived report as JSON")
	_ = historyCmd.MarkFlagRequired("id")
	rootCmd.AddCommand(historyCmd)
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.Database.Postgres.Enabled() {
		return fmt.Errorf("no report archive configured")
	}
	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		return err
	}
	defer pg.Close()
	repo := store.NewReportRepository(pg.DB)

	ctx := cmd.Context()
	if historyLatest {
		report, err := repo.Latest(ctx, historyID)
		if err != nil {
			return err
		}
		return writeJSON(cmd, report, true)
	}

	rows, err := repo.History(ctx, historyID, historyLimit)
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EXTRACTED AT\tQUERIES\tCITATIONS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%s\t%d\t%d\n", r.ExtractedAt.Format("2006-01-02 15:04:05"), r.TotalShadowQueries, r.TotalCitations)
	}
	return tw.Flush()
}
