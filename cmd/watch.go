package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voicecleaner/core/pipeline"
)

var watchExisting bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Watch the input directory and clean files as they arrive",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		defer a.Close()

		w := pipeline.NewWatcher(a.orch, pipeline.WatchOptions{
			InputDir:        cfg.InputDir,
			OutputDir:       cfg.OutputDir,
			Preset:          cfg.DefaultPreset,
			Settle:          cfg.WatchSettle,
			ProcessExisting: watchExisting,
		})
		summary, err := w.Run(ctx)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		printReport(cmd.OutOrStdout(), summary)
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchExisting, "existing", false, "also process files already in the input directory")
	rootCmd.AddCommand(watchCmd)
}
