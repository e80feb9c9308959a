package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"ecn-prep-service/internal/config"
	"ecn-prep-service/internal/report"
)

// NewLeaderboardCmd prints the standings from the configured store.
func NewLeaderboardCmd(configPath *string) *cobra.Command {
	var (
		specialty string
		limit     int
		exams     bool
	)
	cmd := &cobra.Command{
		Use:   "leaderboard",
		Short: "Print the quiz or simulation leaderboard",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadOrDefault(*configPath)
			if err != nil {
				return err
			}
			d, err := buildDeps(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			out := cmd.OutOrStdout()
			if exams {
				entries, err := d.store.GetExamLeaderboard(cmd.Context(), limit)
				if err != nil {
					return err
				}
				fmt.Fprintln(out, report.ExamLeaderboardTable(entries))
				return nil
			}
			entries, err := d.store.GetLeaderboard(cmd.Context(), specialty, limit)
			if err != nil {
				return err
			}
			fmt.Fprintln(out, report.LeaderboardTable(entries))
			return nil
		},
	}
	cmd.Flags().StringVar(&specialty, "specialty", "", "restrict to one specialty")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of rows, 0 for all")
	cmd.Flags().BoolVar(&exams, "exams", false, "show the simulation leaderboard")
	return cmd
}
