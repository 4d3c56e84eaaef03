package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"text/tabwriter"
	"time"

	"voicecleaner/model"
)

func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printReport writes one row per file in discovery order and a totals line.
func printReport(w io.Writer, s *model.RunSummary) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FILE\tSTATUS\tSTAGE\tELAPSED\tRESULT")
	for _, e := range s.Entries {
		stage := "-"
		if e.FailedStage > 0 {
			stage = strconv.Itoa(e.FailedStage)
		}
		result := e.Detail
		if e.Status == model.JobStatusSucceeded {
			result = filepath.Base(e.OutputPath)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.FileID, e.Status, stage, e.Elapsed.Round(time.Millisecond), result)
	}
	tw.Flush()

	fmt.Fprintf(w, "\nrun %s preset=%s: %d succeeded, %d failed, %d skipped in %s\n",
		s.RunID, s.Preset, s.Succeeded, s.Failed, s.Skipped,
		s.FinishedAt.Sub(s.StartedAt).Round(time.Millisecond))
}
