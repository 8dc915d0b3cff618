package main

import (
	"encoding/json"
	"fmt"

	"github.com/aretw0/agentloop/pkg/client"
	"github.com/spf13/cobra"
)

var historyCmd = &cobra.Command{
	Use:   "history <session-id>",
	Short: "Print the committed history of a session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		serverURL, _ := cmd.Flags().GetString("server")
		asJSON, _ := cmd.Flags().GetBool("json")

		history, err := client.New(serverURL).History(cmd.Context(), args[0])
		if err != nil {
			return fmt.Errorf("error loading session '%s': %w", args[0], err)
		}

		out := cmd.OutOrStdout()
		if asJSON {
			data, err := json.MarshalIndent(history, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(out, string(data))
			return nil
		}

		if len(history.History) == 0 {
			fmt.Fprintln(out, "No history for this session.")
			return nil
		}
		for _, e := range history.History {
			fmt.Fprintf(out, "%-5s  %s\n", e.Role, e.Content)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().String("server", client.DefaultURL, "Server to query")
	historyCmd.Flags().Bool("json", false, "Print the raw JSON response")
}
