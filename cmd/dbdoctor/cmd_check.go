package main

import (
	"encoding/json"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/shomere/ICR-Projects/internal/diagnostics"
)

var (
	checkJSON    bool          // Output as JSON
	checkTimeout time.Duration // Per-check timeout
	checkSignUp  bool          // Run the sign-up smoke test
	checkURL     string        // Endpoint override
	checkKey     string        // Public key override
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Probe the backend and report missing prerequisites",
	Long: `Runs a connection check, an existence check per table and, with --signup,
registers a throwaway address to exercise the profile trigger.

Validation or rate-limit refusals of the throwaway sign-up count as healthy.
When something is missing, the setup script is printed after the report.
Exits non-zero when any check fails.`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkJSON, "json", false, "Output the report as JSON")
	checkCmd.Flags().DurationVar(&checkTimeout, "timeout", 10*time.Second, "Timeout for each individual check")
	checkCmd.Flags().BoolVar(&checkSignUp, "signup", false, "Also run the sign-up smoke test (creates a throwaway user)")
	checkCmd.Flags().StringVar(&checkURL, "url", "", "Project endpoint (default $SUPABASE_URL)")
	checkCmd.Flags().StringVar(&checkKey, "key", "", "Public API key (default $SUPABASE_ANON_KEY)")
}

func runCheck(cmd *cobra.Command, _ []string) error {
	url, key := checkURL, checkKey
	if url == "" {
		url = os.Getenv("SUPABASE_URL")
	}
	if key == "" {
		key = os.Getenv("SUPABASE_ANON_KEY")
	}

	report, err := diagnostics.Probe(cmd.Context(), diagnostics.Config{
		URL:     url,
		AnonKey: key,
		Timeout: checkTimeout,
		SignUp:  checkSignUp,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if checkJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return err
		}
	} else if err := report.WriteText(out); err != nil {
		return err
	}
	return report.Err()
}
