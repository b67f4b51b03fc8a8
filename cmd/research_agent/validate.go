package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jonathan/research-agent/internal/schemas"
)

var validateCmd = &cobra.Command{
	Use:   "validate [file]",
	Short: "Validate a saved research result against the JSON schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	if err := schemas.ValidateResearchResultFile(args[0]); err != nil {
		return err
	}
	_, err := fmt.Fprintf(cmd.OutOrStdout(), "✓ %s is a valid research result\n", args[0])
	return err
}
