package main

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shomere/ICR-Projects/internal/diagnostics"
	"github.com/shomere/ICR-Projects/internal/migrate"
	"github.com/shomere/ICR-Projects/internal/supabase/supabasetest"
)

// execute runs the root command with fresh flag values.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	checkJSON, checkTimeout, checkSignUp, checkURL, checkKey = false, 10*time.Second, false, "", ""
	migrateDSN, migrateVerifyOnly = "", false

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestSQLCommand(t *testing.T) {
	out, err := execute(t, "sql")
	require.NoError(t, err)
	assert.Equal(t, migrate.Script(), out)
}

func TestCheckHealthy(t *testing.T) {
	srv := supabasetest.NewServer(t)

	out, err := execute(t, "check", "--url", srv.URL, "--key", supabasetest.AnonKey, "--timeout", "2s")
	require.NoError(t, err)
	assert.Contains(t, out, "All checks passed.")
	assert.Contains(t, out, "table products")
}

func TestCheckMissingTableJSON(t *testing.T) {
	srv := supabasetest.NewServer(t)
	srv.DropTable("contact_messages")

	out, err := execute(t, "check", "--url", srv.URL, "--key", supabasetest.AnonKey, "--json")
	assert.ErrorIs(t, err, diagnostics.ErrUnhealthy)

	var report diagnostics.Report
	require.NoError(t, json.Unmarshal([]byte(out), &report))
	assert.False(t, report.Healthy)
	assert.Contains(t, report.Remediation, "public.contact_messages")
}

func TestCheckFallsBackToEnvironment(t *testing.T) {
	srv := supabasetest.NewServer(t)
	t.Setenv("SUPABASE_URL", srv.URL)
	t.Setenv("SUPABASE_ANON_KEY", supabasetest.AnonKey)

	_, err := execute(t, "check", "--signup")
	require.NoError(t, err)
	assert.Len(t, srv.Rows("profiles"), 1)
}

func TestCheckWithoutConfig(t *testing.T) {
	t.Setenv("SUPABASE_URL", "")
	t.Setenv("SUPABASE_ANON_KEY", "")

	_, err := execute(t, "check")
	require.Error(t, err)
	assert.NotErrorIs(t, err, diagnostics.ErrUnhealthy)
}

func TestMigrateWithoutDSN(t *testing.T) {
	t.Setenv("DATABASE_URL", "")

	_, err := execute(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "DATABASE_URL")
}

type execer struct {
	statements []string
	failOn     string
}

func (e *execer) ExecContext(_ context.Context, query string, _ ...any) (sql.Result, error) {
	if e.failOn != "" && strings.Contains(query, e.failOn) {
		return nil, errors.New("permission denied for schema auth")
	}
	e.statements = append(e.statements, query)
	return nil, nil
}

type checker struct{ absent string }

func (c checker) Exists(_ context.Context, _ string, args ...any) (bool, error) {
	for _, a := range args {
		if a == c.absent {
			return false, nil
		}
	}
	return true, nil
}

func testCommand(out *bytes.Buffer) *cobra.Command {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	cmd.SetOut(out)
	return cmd
}

func TestMigrateAndVerify(t *testing.T) {
	migrateVerifyOnly = false
	var out bytes.Buffer
	db := &execer{}

	require.NoError(t, migrateAndVerify(testCommand(&out), db, checker{}))
	assert.Len(t, db.statements, len(migrate.Steps()))
	assert.Contains(t, out.String(), "prerequisites present")
}

func TestMigrateReportsMissing(t *testing.T) {
	migrateVerifyOnly = true
	t.Cleanup(func() { migrateVerifyOnly = false })
	var out bytes.Buffer
	db := &execer{}

	err := migrateAndVerify(testCommand(&out), db, checker{absent: migrate.TriggerName})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "trigger "+migrate.TriggerName)
	assert.Empty(t, db.statements, "verify-only applies nothing")
}

func TestMigrateStopsOnFailure(t *testing.T) {
	migrateVerifyOnly = false
	var out bytes.Buffer
	db := &execer{failOn: "CREATE TRIGGER"}

	err := migrateAndVerify(testCommand(&out), db, checker{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "permission denied")
	assert.NotContains(t, out.String(), "Applied")
}
