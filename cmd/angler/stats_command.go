package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-angler/internal/journal"
)

func newStatsCommand(ctx *commandContext) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show casts and catches from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			if _, err := os.Stat(cfg.Journal.Path); errors.Is(err, fs.ErrNotExist) {
				fmt.Fprintf(out, "No journal at %s yet; run `angler run` first.\n", cfg.Journal.Path)
				return nil
			}

			store, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer store.Close()

			sessions, err := store.Sessions(cmd.Context(), limit)
			if err != nil {
				return err
			}
			if len(sessions) == 0 {
				fmt.Fprintln(out, "No sessions recorded.")
				return nil
			}
			fmt.Fprintln(out, renderSessions(sessions))

			totals, err := store.Totals(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%d sessions, %d casts, %d catches, %s fishing\n",
				totals.Sessions, totals.Casts, totals.Catches, formatDuration(totals.Fishing))
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "Number of recent sessions to show (0 for all)")
	return cmd
}

func renderSessions(sessions []journal.SessionSummary) string {
	headers := []string{"Session", "Started", "Duration", "Casts", "Strikes", "Catches", "Rate", "Dry run"}
	aligns := []columnAlignment{alignLeft, alignLeft, alignRight, alignRight, alignRight, alignRight, alignRight, alignLeft}
	rows := make([][]string, 0, len(sessions))
	for _, s := range sessions {
		id := s.ID
		if len(id) > 8 {
			id = id[:8]
		}
		rows = append(rows, []string{
			id,
			s.StartedAt.Local().Format("2006-01-02 15:04"),
			formatDuration(s.Duration()),
			strconv.Itoa(s.Casts),
			strconv.Itoa(s.Strikes),
			strconv.Itoa(s.Catches),
			fmt.Sprintf("%.0f%%", s.CatchRate()*100),
			yesNo(s.DryRun),
		})
	}
	return renderTable(headers, rows, aligns)
}

func formatDuration(d time.Duration) string {
	d = d.Round(time.Second)
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%dh%02dm", h, m)
	}
	return fmt.Sprintf("%dm%02ds", m, s)
}
