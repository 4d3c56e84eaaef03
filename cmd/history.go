package cmd

import (
	"errors"
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"voicecleaner/db"
	"voicecleaner/repository"
)

var (
	historyLimit int
	historyRunID string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List runs stored in the MySQL history",
	RunE: func(cmd *cobra.Command, args []string) error {
		if !cfg.DBEnabled() {
			return &exitError{code: exitFatal, err: errors.New("DB_HOST is not set")}
		}
		ctx := cmd.Context()
		out := cmd.OutOrStdout()

		gdb, err := db.ConnectGormDB(cfg)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		defer db.CloseGormDB(gdb)
		repo := repository.NewGormRunRepository(gdb)

		if historyRunID != "" {
			summary, err := repo.Get(ctx, historyRunID)
			if err != nil {
				return &exitError{code: exitFatal, err: err}
			}
			if summary == nil {
				return &exitError{code: exitFatal, err: fmt.Errorf("run %s not found", historyRunID)}
			}
			printReport(out, summary)
			return nil
		}

		runs, err := repo.List(ctx, historyLimit)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
		fmt.Fprintln(tw, "RUN\tPRESET\tSTARTED\tOK\tFAILED\tSKIPPED\tINPUT")
		for _, r := range runs {
			fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
				r.ID, r.Preset, humanize.Time(r.StartedAt), r.Succeeded, r.Failed, r.Skipped, r.InputDir)
		}
		return tw.Flush()
	},
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "number of runs to list")
	historyCmd.Flags().StringVar(&historyRunID, "run", "", "show the full report of one run")
	rootCmd.AddCommand(historyCmd)
}
