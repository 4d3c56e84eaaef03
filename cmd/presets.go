package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"voicecleaner/core/preset"
)

var presetsCmd = &cobra.Command{
	Use:   "presets",
	Short: "List the available presets and their stages",
	RunE: func(cmd *cobra.Command, args []string) error {
		registry, err := preset.LoadRegistry(cfg.PresetFile)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		out := cmd.OutOrStdout()
		for _, p := range registry.All() {
			marker := " "
			if p.Name == cfg.DefaultPreset {
				marker = "*"
			}
			fmt.Fprintf(out, "%s %s", marker, p.Name)
			if p.OutputFormat != "" {
				fmt.Fprintf(out, " (-> %s)", p.OutputFormat)
			}
			if p.Description != "" {
				fmt.Fprintf(out, "  %s", p.Description)
			}
			fmt.Fprintln(out)
			for i, st := range p.Stages {
				fmt.Fprintf(out, "    %d. %s\n", i+1, st.Describe())
			}
		}

		kinds := preset.Kinds()
		names := make([]string, len(kinds))
		for i, k := range kinds {
			names[i] = string(k)
		}
		fmt.Fprintf(out, "\nstage kinds: %s\n", strings.Join(names, ", "))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(presetsCmd)
}
