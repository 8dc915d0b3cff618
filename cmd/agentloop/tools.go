package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/internal/cli"
	"github.com/aretw0/agentloop/pkg/adapters/mcp"
	"github.com/spf13/cobra"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "Inspect and publish the configured tools",
}

var toolsLsCmd = &cobra.Command{
	Use:   "ls",
	Short: "List the configured tools",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		reg, closeTools, err := cli.BuildTools(cmd.Context(), cfg.Tools, logger)
		if err != nil {
			return err
		}
		defer closeTools()

		for _, t := range reg.Tools() {
			fmt.Fprintf(cmd.OutOrStdout(), "- %s: %s\n", t.Name, t.Description)
		}
		return nil
	},
}

var toolsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Publish the configured tools as a Model Context Protocol (MCP) server",
	Long: `Exposes the builtin and process tools over MCP so other agentloop instances,
or any MCP client, can call them.

Supported Transports:
- stdio (default): Uses Standard Input/Output. Ideal for local process integration.
- http: Streamable HTTP at /mcp. Ideal for remote agents.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		transport, _ := cmd.Flags().GetString("transport")
		addr, _ := cmd.Flags().GetString("addr")

		// Proxying remote MCP tools back out is not supported.
		cfg.Tools.MCP = nil
		reg, closeTools, err := cli.BuildTools(cmd.Context(), cfg.Tools, logger)
		if err != nil {
			return err
		}
		defer closeTools()

		srv := mcp.NewServer("agentloop", strings.TrimSpace(agentloop.Version), reg, mcp.WithServerLogger(logger))

		switch transport {
		case "stdio":
			// Ensure logs don't corrupt JSON-RPC on Stdout
			log.SetOutput(os.Stderr)
			logger.Info("Starting MCP server (stdio)", "tools", reg.Len())
			return srv.ServeStdio()
		case "http":
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			logger.Info("Starting MCP server (http)", "addr", addr, "tools", reg.Len())
			return srv.ServeHTTP(ctx, addr)
		default:
			return fmt.Errorf("unknown transport: %s. Supported: stdio, http", transport)
		}
	},
}

func init() {
	rootCmd.AddCommand(toolsCmd)
	toolsCmd.AddCommand(toolsLsCmd)
	toolsCmd.AddCommand(toolsServeCmd)

	toolsServeCmd.Flags().String("transport", "stdio", "Transport protocol to use: 'stdio' or 'http'")
	toolsServeCmd.Flags().String("addr", ":8090", "Address to listen on (only for http)")
}
