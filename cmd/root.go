package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "supportchat",
	Short: "Knowledge-base support chat server",
	Long: `supportchat serves a technical-support chat API: upload documentation
(plain files or zip archives), assemble it into a knowledge base, and chat
with a model constrained to answer only from those documents.

Running supportchat with no arguments starts the HTTP server.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd.Context())
	},
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
