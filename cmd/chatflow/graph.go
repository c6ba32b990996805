package main

import (
	"fmt"

	"github.com/aretw0/chatflow/internal/presentation/graph"
	"github.com/aretw0/chatflow/pkg/transition"
	"github.com/spf13/cobra"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Export the conversation state machine",
	Long:  `Outputs a Mermaid diagram (graph TD) of the transition table in use.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd)
		if err != nil {
			return err
		}

		table := transition.DefaultTable()
		if cfg.TransitionsPath != "" {
			if table, err = transition.LoadTable(cfg.TransitionsPath); err != nil {
				return err
			}
		}

		fmt.Fprint(cmd.OutOrStdout(), graph.GenerateMermaid(table.Edges(), nil))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(graphCmd)
}
