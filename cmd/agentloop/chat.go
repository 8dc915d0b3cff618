package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/aretw0/agentloop"
	"github.com/aretw0/agentloop/internal/cli"
	"github.com/aretw0/agentloop/internal/presentation/tui"
	"github.com/aretw0/agentloop/internal/sanitize"
	"github.com/aretw0/agentloop/pkg/client"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var chatCmd = &cobra.Command{
	Use:   "chat [query]",
	Short: "Chat with the agent",
	Long: `Reads queries from stdin and streams the answers. With a query argument a single
turn is run. Without --server the engine runs in-process.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		serverURL, _ := cmd.Flags().GetString("server")
		sessionID, _ := cmd.Flags().GetString("session")
		plain, _ := cmd.Flags().GetBool("plain")
		debug, _ := cmd.Flags().GetBool("debug")
		if sessionID == "" {
			sessionID = uuid.NewString()
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		var streamer cli.Streamer
		if serverURL != "" {
			streamer = client.New(serverURL)
		} else {
			app, err := cli.Build(ctx, cfg, logger, debug)
			if err != nil {
				return err
			}
			defer app.Close()
			streamer = cli.LocalStreamer{Engine: app.Engine}
		}

		interactive := tui.IsTerminal(os.Stdout) && !plain
		var popts []tui.PrinterOption
		if interactive {
			popts = append(popts, tui.WithMarkdown(tui.NewRenderer("", tui.Width(os.Stdout, 80))))
		} else {
			popts = append(popts, tui.WithPlain())
		}
		printer := tui.NewPrinter(cmd.OutOrStdout(), popts...)

		if len(args) > 0 {
			return cli.Ask(ctx, streamer, sessionID, strings.Join(args, " "), printer)
		}

		prompt := tui.IsTerminal(os.Stdin)
		if interactive && prompt {
			tui.PrintBanner(cmd.OutOrStdout(), strings.TrimSpace(agentloop.Version))
			fmt.Fprintf(cmd.OutOrStdout(), "session %s, type exit to quit\n", sessionID)
		}
		return cli.Chat(ctx, streamer, cli.ChatOptions{
			SessionID: sessionID,
			In:        cmd.InOrStdin(),
			Printer:   printer,
			Prompt:    prompt,
			Input:     sanitize.FromEnv(),
		})
	},
}

func init() {
	rootCmd.AddCommand(chatCmd)
	chatCmd.Flags().StringP("session", "s", "", "Session id (default: a new random id)")
	chatCmd.Flags().String("server", "", "Talk to a running server instead of an in-process engine")
	chatCmd.Flags().Bool("plain", false, "Disable colors and markdown rendering")
}
