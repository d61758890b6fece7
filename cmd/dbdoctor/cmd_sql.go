package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shomere/ICR-Projects/internal/migrate"
)

var sqlCmd = &cobra.Command{
	Use:   "sql",
	Short: "Print the setup script for the SQL editor",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, err := fmt.Fprint(cmd.OutOrStdout(), migrate.Script())
		return err
	},
}
