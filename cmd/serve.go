package cmd

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"voicecleaner/server"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP status API",
	Long:  `Start an HTTP API to launch runs, query their reports and follow per-file events over a websocket.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		a, err := newApp(ctx, cfg)
		if err != nil {
			return &exitError{code: exitFatal, err: err}
		}
		defer a.Close()

		opts := server.Options{
			Orchestrator:  a.orch,
			Health:        a.proc,
			DefaultPreset: cfg.DefaultPreset,
		}
		if a.cache != nil {
			opts.Lookup = a.cache
		}
		addr := cfg.ServerAddr
		if cmd.Flags().Changed("addr") {
			addr = serveAddr
		}
		return server.New(opts).ListenAndServe(ctx, addr)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":8080", "listen address (env SERVER_ADDR)")
	rootCmd.AddCommand(serveCmd)
}
