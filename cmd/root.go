package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"voicecleaner/config"
	"voicecleaner/logger"
)

const (
	exitFatal       = 1
	exitFileFailure = 2
)

// exitError carries a process exit code out of a command.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

var (
	cfg *config.Config

	flagInput      string
	flagOutput     string
	flagPreset     string
	flagPresetFile string
	flagWorkers    int
	flagTimeout    time.Duration
	flagVerbose    bool
	flagStrict     bool
	flagJSON       bool
)

var rootCmd = &cobra.Command{
	Use:   "voicecleaner",
	Short: "Clean up voice recordings in batch with ffmpeg presets.",
	Long: `voicecleaner applies a named preset (an ordered chain of ffmpeg audio
filters) to every media file in an input directory and writes the cleaned
files to an output directory. Video streams are copied unchanged.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		applyFlags(cmd)

		level := logger.LogLevel(cfg.LogLevel)
		if flagVerbose {
			level = logger.DebugLevel
		}
		return logger.InitLogger(logger.Config{
			Level:      level,
			Format:     cfg.LogFormat,
			OutputPath: cfg.LogFile,
			MaxBackups: 3,
			MaxAge:     28,
		})
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
	RunE: runBatch,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&flagInput, "input", "i", "", "input directory (env INPUT_DIR)")
	pf.StringVarP(&flagOutput, "output", "o", "", "output directory (env OUTPUT_DIR)")
	pf.StringVarP(&flagPreset, "preset", "p", "", "preset name (env DEFAULT_PRESET)")
	pf.StringVar(&flagPresetFile, "preset-file", "", "YAML file with additional presets (env PRESET_FILE)")
	pf.IntVarP(&flagWorkers, "workers", "w", 0, "parallel files, defaults to min(CPUs, 4) (env WORKERS)")
	pf.DurationVar(&flagTimeout, "timeout", 0, "per-stage ffmpeg timeout (env FFMPEG_TIMEOUT)")
	pf.BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	rootCmd.Flags().BoolVar(&flagStrict, "strict", false, "exit with code 2 when any file fails (env FAIL_ON_FILE_ERROR)")
	rootCmd.Flags().BoolVar(&flagJSON, "json", false, "print the run report as JSON")
}

// applyFlags lets explicitly set flags override environment configuration.
func applyFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("input") {
		cfg.InputDir = flagInput
	}
	if flags.Changed("output") {
		cfg.OutputDir = flagOutput
	}
	if flags.Changed("preset") {
		cfg.DefaultPreset = flagPreset
	}
	if flags.Changed("preset-file") {
		cfg.PresetFile = flagPresetFile
	}
	if flags.Changed("workers") {
		cfg.Workers = flagWorkers
	}
	if flags.Changed("timeout") {
		cfg.FFmpegTimeout = flagTimeout
	}
	if flags.Lookup("strict") != nil && flags.Changed("strict") {
		cfg.FailOnFileError = flagStrict
	}
}

func runBatch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer a.Close()

	summary, err := a.orch.Run(ctx, cfg.InputDir, cfg.OutputDir, cfg.DefaultPreset)
	if err != nil {
		logger.Error("batch failed", logger.ErrorField(err))
		return &exitError{code: exitFatal, err: err}
	}

	if flagJSON {
		if err := printJSON(cmd.OutOrStdout(), summary); err != nil {
			return err
		}
	} else {
		printReport(cmd.OutOrStdout(), summary)
	}

	if summary.HasFailures() && cfg.FailOnFileError {
		return &exitError{code: exitFileFailure, err: fmt.Errorf("%d of %d files failed", summary.Failed, len(summary.Entries))}
	}
	return nil
}

// Execute executes the root command.
func Execute() {
	os.Exit(run(context.Background()))
}

func run(ctx context.Context) int {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		var ee *exitError
		if errors.As(err, &ee) {
			return ee.code
		}
		return exitFatal
	}
	return 0
}
