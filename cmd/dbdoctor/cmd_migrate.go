package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/shomere/ICR-Projects/internal/database"
	"github.com/shomere/ICR-Projects/internal/migrate"
)

var (
	migrateDSN        string // Privileged Postgres connection string
	migrateVerifyOnly bool   // Skip applying, only verify
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply the setup script over a privileged Postgres connection",
	Long: `Connects with a privileged connection string (the postgres role; the public
key cannot run DDL), applies every setup step in order and then verifies that
all tables, the trigger and the policies exist. Safe to run repeatedly.`,
	Args: cobra.NoArgs,
	RunE: runMigrate,
}

func init() {
	migrateCmd.Flags().StringVar(&migrateDSN, "dsn", "", "Postgres connection string (default $DATABASE_URL)")
	migrateCmd.Flags().BoolVar(&migrateVerifyOnly, "verify-only", false, "Only check which prerequisites are missing")
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	dsn := migrateDSN
	if dsn == "" {
		dsn = os.Getenv("DATABASE_URL")
	}

	db, err := database.OpenDB(cmd.Context(), dsn, logger)
	if err != nil {
		return err
	}
	defer db.Close()

	return migrateAndVerify(cmd, db, migrate.SQLChecker{DB: db})
}

func migrateAndVerify(cmd *cobra.Command, db migrate.Execer, checker migrate.Checker) error {
	out := cmd.OutOrStdout()

	if !migrateVerifyOnly {
		if err := migrate.Apply(cmd.Context(), db, logger); err != nil {
			if database.IsInsufficientPrivilege(err) {
				return fmt.Errorf("%w\nThe connection role cannot change the auth schema; use the postgres role's connection string", err)
			}
			return err
		}
		fmt.Fprintf(out, "Applied %d setup steps.\n", len(migrate.Steps()))
	}

	v, err := migrate.Verify(cmd.Context(), checker)
	if err != nil {
		return err
	}
	if !v.OK() {
		return fmt.Errorf("%d of %d prerequisites missing:\n  %s", len(v.Missing), len(v.Checked), strings.Join(v.Missing, "\n  "))
	}
	fmt.Fprintf(out, "All %d prerequisites present.\n", len(v.Checked))
	return nil
}
