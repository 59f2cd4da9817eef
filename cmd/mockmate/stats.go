package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mockmate/mockmate/internal/config"
	"github.com/mockmate/mockmate/pkg/stats"
)

func newStatsCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show practice history",
		RunE: func(cmd *cobra.Command, args []string) error {
			appCfg, err := config.Load()
			if err != nil {
				return err
			}
			store, err := stats.Open(appCfg.StatsDB)
			if err != nil {
				return fmt.Errorf("open stats store: %w", err)
			}
			defer store.Close()

			totals, err := store.TotalStats(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Sessions: %d\n", totals.Sessions)
			fmt.Printf("Practice time: %dm%ds\n", totals.PracticeSeconds/60, totals.PracticeSeconds%60)
			if totals.AverageScore > 0 {
				fmt.Printf("Average score: %.1f/10\n", totals.AverageScore)
			}

			recs, err := store.RecentSessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(recs) > 0 {
				fmt.Println("\nRecent sessions:")
				for _, rec := range recs {
					line := fmt.Sprintf("  %s  %s (%s)  %dm%ds  %d turns",
						rec.StartedAt.Local().Format("2006-01-02 15:04"),
						rec.Role, rec.Seniority,
						rec.DurationSeconds/60, rec.DurationSeconds%60, rec.TurnCount)
					if rec.OverallScore > 0 {
						line += fmt.Sprintf("  score %d/10", rec.OverallScore)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of recent sessions to list")
	return cmd
}
