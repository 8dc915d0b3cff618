package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/aretw0/agentloop/internal/cli"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP/SSE agent server",
	Long: `Starts the agent engine behind POST /agent/invoke (Server-Sent Events or JSON),
GET /agent/history/{session_id}, /graph, /health, /info and /metrics.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Server.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("metrics-addr") {
			cfg.Server.MetricsAddr, _ = cmd.Flags().GetString("metrics-addr")
		}
		debug, _ := cmd.Flags().GetBool("debug")

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		app, err := cli.Build(ctx, cfg, logger, debug)
		if err != nil {
			return err
		}
		defer app.Close()

		logger.Info("Starting agentloop server", "addr", cfg.Server.Addr, "tools", app.Tools.Len())
		return cli.Serve(ctx, app, cfg.Server)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringP("addr", "a", ":8001", "Address to listen on")
	serveCmd.Flags().String("metrics-addr", "", "Separate address for /metrics (default: served on --addr)")
}
