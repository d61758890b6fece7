// Package migrate holds the database prerequisites of the portal: enum types,
// tables, the profile-creation trigger, row-level security and grants.
//
// Every step is guarded so the whole set can be re-run against a partially
// set-up database. The same steps are rendered as a script for pasting into
// the hosted SQL console, or applied directly over a privileged connection.
package migrate

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"strings"
)

// Step is a single guarded DDL statement.
type Step struct {
	Name string
	SQL  string
}

// Steps returns the setup statements in execution order.
func Steps() []Step {
	steps := []Step{
		{Name: "extension uuid-ossp", SQL: `CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`},
	}
	for _, e := range enums {
		steps = append(steps, Step{Name: "type " + e.name, SQL: enumSQL(e)})
	}
	for _, t := range Tables {
		steps = append(steps, Step{Name: "table " + t, SQL: tableDDL[t]})
	}
	steps = append(steps,
		Step{Name: "constraint profiles_id_fkey", SQL: profilesForeignKey},
		Step{Name: "function is_admin", SQL: isAdminFunction},
		Step{Name: "function " + FunctionName, SQL: handleNewUserFunction},
		Step{Name: "drop trigger " + TriggerName, SQL: "DROP TRIGGER IF EXISTS " + TriggerName + " ON auth.users"},
		Step{Name: "trigger " + TriggerName, SQL: "CREATE TRIGGER " + TriggerName +
			"\n  AFTER INSERT ON auth.users\n  FOR EACH ROW EXECUTE FUNCTION public." + FunctionName + "()"},
	)
	for _, t := range Tables {
		steps = append(steps, Step{Name: "rls " + t, SQL: "ALTER TABLE public." + t + " ENABLE ROW LEVEL SECURITY"})
	}
	for _, p := range Policies {
		steps = append(steps, Step{Name: "policy " + p.Table + ": " + p.Name, SQL: p.sql()})
	}
	steps = append(steps,
		Step{Name: "bucket " + DefaultBucket, SQL: fmt.Sprintf(
			"INSERT INTO storage.buckets (id, name, public) VALUES (%[1]s, %[1]s, true) ON CONFLICT (id) DO NOTHING",
			quoteLiteral(DefaultBucket))},
		Step{Name: "grants", SQL: strings.Join([]string{
			"GRANT USAGE ON SCHEMA public TO anon, authenticated",
			"GRANT SELECT ON public.products TO anon",
			"GRANT INSERT ON public.contact_messages TO anon",
			"GRANT ALL ON ALL TABLES IN SCHEMA public TO authenticated",
			"GRANT USAGE, SELECT ON ALL SEQUENCES IN SCHEMA public TO authenticated",
			"GRANT EXECUTE ON FUNCTION public.is_admin() TO anon, authenticated",
		}, ";\n")},
	)
	return steps
}

// Script renders Steps as one SQL script.
func Script() string {
	var b strings.Builder
	b.WriteString("-- Portal database setup. Safe to run more than once.\n")
	for _, s := range Steps() {
		fmt.Fprintf(&b, "\n-- %s\n%s;\n", s.Name, s.SQL)
	}
	b.WriteString("\nSELECT 'Database setup complete' AS status;\n")
	return b.String()
}

// Execer is satisfied by *sql.DB and *sql.Tx.
type Execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Apply runs every step in order and stops at the first failure.
func Apply(ctx context.Context, db Execer, logger *slog.Logger) error {
	for i, s := range Steps() {
		if err := ctx.Err(); err != nil {
			return err
		}
		logger.Info("Applying migration step", "step", i+1, "name", s.Name)
		if _, err := db.ExecContext(ctx, s.SQL); err != nil {
			return fmt.Errorf("migration step %q failed: %w", s.Name, err)
		}
	}
	return nil
}

// Checker answers a single boolean catalog query.
type Checker interface {
	Exists(ctx context.Context, query string, args ...any) (bool, error)
}

// SQLChecker runs checks over a database connection.
type SQLChecker struct {
	DB *sql.DB
}

func (c SQLChecker) Exists(ctx context.Context, query string, args ...any) (bool, error) {
	var ok bool
	if err := c.DB.QueryRowContext(ctx, query, args...).Scan(&ok); err != nil {
		return false, err
	}
	return ok, nil
}

const (
	typeQuery     = `SELECT EXISTS (SELECT 1 FROM pg_type t JOIN pg_namespace n ON n.oid = t.typnamespace WHERE n.nspname = 'public' AND t.typname = $1)`
	tableQuery    = `SELECT to_regclass($1) IS NOT NULL`
	functionQuery = `SELECT EXISTS (SELECT 1 FROM pg_proc p JOIN pg_namespace n ON n.oid = p.pronamespace WHERE n.nspname = 'public' AND p.proname = $1)`
	triggerQuery  = `SELECT EXISTS (SELECT 1 FROM pg_trigger WHERE tgname = $1 AND NOT tgisinternal)`
	rlsQuery      = `SELECT COALESCE((SELECT relrowsecurity FROM pg_class WHERE oid = to_regclass($1)), false)`
	policyQuery   = `SELECT EXISTS (SELECT 1 FROM pg_policies WHERE schemaname = 'public' AND tablename = $1 AND policyname = $2)`
)

// Verification lists the prerequisites that were checked and those missing.
type Verification struct {
	Checked []string `json:"checked"`
	Missing []string `json:"missing"`
}

func (v Verification) OK() bool { return len(v.Missing) == 0 }

// Verify checks that every object Steps creates is present. A query error
// aborts verification; an absent object is only recorded.
func Verify(ctx context.Context, c Checker) (*Verification, error) {
	type check struct {
		name  string
		query string
		args  []any
	}
	var checks []check
	for _, e := range enums {
		checks = append(checks, check{"type " + e.name, typeQuery, []any{e.name}})
	}
	for _, t := range Tables {
		checks = append(checks, check{"table " + t, tableQuery, []any{"public." + t}})
	}
	checks = append(checks,
		check{"function is_admin", functionQuery, []any{"is_admin"}},
		check{"function " + FunctionName, functionQuery, []any{FunctionName}},
		check{"trigger " + TriggerName, triggerQuery, []any{TriggerName}},
	)
	for _, t := range Tables {
		checks = append(checks, check{"rls " + t, rlsQuery, []any{"public." + t}})
	}
	for _, p := range Policies {
		checks = append(checks, check{"policy " + p.Table + ": " + p.Name, policyQuery, []any{p.Table, p.Name}})
	}

	v := &Verification{Checked: make([]string, 0, len(checks)), Missing: []string{}}
	for _, ch := range checks {
		ok, err := c.Exists(ctx, ch.query, ch.args...)
		if err != nil {
			return nil, fmt.Errorf("verify %s: %w", ch.name, err)
		}
		v.Checked = append(v.Checked, ch.name)
		if !ok {
			v.Missing = append(v.Missing, ch.name)
		}
	}
	return v, nil
}
