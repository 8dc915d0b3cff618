package main

import (
	"fmt"

	"github.com/aretw0/agentloop/internal/presentation/graph"
	"github.com/aretw0/agentloop/pkg/client"
	"github.com/aretw0/agentloop/pkg/domain"
	"github.com/spf13/cobra"
)

// graphCmd represents the graph command
var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the workflow graph as a Mermaid diagram",
	Long: `Outputs a Mermaid flowchart (graph TD) of the model/tool topology.
With --session, the nodes visited by that session on --server are highlighted.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		serverURL, _ := cmd.Flags().GetString("server")

		var overlay *graph.Overlay
		if sessionID != "" {
			history, err := client.New(serverURL).History(cmd.Context(), sessionID)
			if err != nil {
				return fmt.Errorf("error fetching history: %w", err)
			}
			overlay = graph.OverlayFromHistory(history.History)
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(domain.NewAgentGraph(), overlay))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
	graphCmd.Flags().String("session", "", "Highlight the path of this session")
	graphCmd.Flags().String("server", client.DefaultURL, "Server to read the session history from")
}
