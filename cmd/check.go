package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"voicecleaner/core/audio"
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Verify that ffmpeg and ffprobe can be executed",
	RunE: func(cmd *cobra.Command, args []string) error {
		proc := audio.NewFFmpegProcessor(cfg.FFmpegPath, cfg.FFprobePath)
		ffmpegVer, ffprobeVer, err := proc.CheckAvailable(cmd.Context())
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "ffmpeg:  %s (%s)\n", ffmpegVer, proc.FFmpegPath())
		fmt.Fprintf(out, "ffprobe: %s (%s)\n", ffprobeVer, proc.FFprobePath())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(checkCmd)
}
