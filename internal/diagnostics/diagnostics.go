// Package diagnostics probes a portal backend from the outside, using only
// the public endpoint and key, and reports which prerequisites are missing.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"github.com/shomere/ICR-Projects/internal/migrate"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// Status is the outcome of one check.
type Status string

const (
	StatusOK      Status = "ok"
	StatusMissing Status = "missing"
	StatusFailed  Status = "failed"
	StatusSkipped Status = "skipped"
)

// Config configures a Probe.
type Config struct {
	URL     string
	AnonKey string
	// Timeout bounds each individual check. Defaults to 10s.
	Timeout time.Duration
	// SignUp enables the auth smoke test, which registers a throwaway
	// address to exercise the profile trigger.
	SignUp     bool
	HTTPClient *http.Client
}

// Check is the result of a single probe.
type Check struct {
	Name     string        `json:"name"`
	Status   Status        `json:"status"`
	Kind     supabase.Kind `json:"kind,omitempty"`
	Detail   string        `json:"detail,omitempty"`
	Duration time.Duration `json:"duration_ns"`
}

// Report is the outcome of a Probe.
type Report struct {
	Endpoint    string  `json:"endpoint"`
	Healthy     bool    `json:"healthy"`
	Checks      []Check `json:"checks"`
	Remediation string  `json:"remediation,omitempty"`
}

// Probe runs the connection, table and (optionally) sign-up checks in order.
// Once the connection check fails the remaining checks are skipped. A
// non-nil error means the probe could not start at all.
func Probe(ctx context.Context, cfg Config) (*Report, error) {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	client, err := supabase.New(supabase.Config{
		URL:        cfg.URL,
		AnonKey:    cfg.AnonKey,
		Timeout:    timeout,
		HTTPClient: cfg.HTTPClient,
	})
	if err != nil {
		return nil, err
	}

	p := &prober{client: client, timeout: timeout}
	report := &Report{Endpoint: client.BaseURL()}

	conn := p.run(ctx, "connection", func(ctx context.Context) error { return client.Health(ctx) })
	report.Checks = append(report.Checks, conn)

	names := make([]string, 0, len(migrate.Tables)+1)
	for _, t := range migrate.Tables {
		names = append(names, "table "+t)
	}
	if cfg.SignUp {
		names = append(names, "auth signup")
	}

	if conn.Status != StatusOK {
		for _, n := range names {
			report.Checks = append(report.Checks, Check{Name: n, Status: StatusSkipped, Detail: "connection failed"})
		}
		return report.finish(), nil
	}

	for _, t := range migrate.Tables {
		report.Checks = append(report.Checks, p.run(ctx, "table "+t, func(ctx context.Context) error {
			_, err := client.From(t).Count(ctx)
			return err
		}))
	}
	if cfg.SignUp {
		report.Checks = append(report.Checks, p.signUp(ctx))
	}
	return report.finish(), nil
}

type prober struct {
	client  *supabase.Client
	timeout time.Duration
}

func (p *prober) run(ctx context.Context, name string, fn func(context.Context) error) Check {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	start := time.Now()
	err := fn(ctx)
	c := Check{Name: name, Status: StatusOK, Duration: time.Since(start)}
	if err == nil {
		return c
	}

	c.Kind = supabase.KindOf(err)
	c.Detail = err.Error()
	switch c.Kind {
	case supabase.KindSchemaMissing:
		c.Status = StatusMissing
	case supabase.KindPermission:
		// Present, but not readable with the public key.
		c.Status = StatusOK
	default:
		c.Status = StatusFailed
	}
	return c
}

// signUp registers a throwaway identity. The auth service refusing the
// address or throttling still proves the trigger path is reachable; a
// database error on sign-up means the profile trigger is broken.
func (p *prober) signUp(ctx context.Context) Check {
	email := fmt.Sprintf("dbdoctor+%s@example.com", uuid.NewString()[:8])
	c := p.run(ctx, "auth signup", func(ctx context.Context) error {
		_, err := p.client.Auth().SignUp(ctx, email, uuid.NewString(), map[string]any{"full_name": "dbdoctor probe"})
		return err
	})
	switch c.Kind {
	case supabase.KindValidation, supabase.KindRateLimited:
		c.Status = StatusOK
	case supabase.KindSchemaMissing:
		c.Detail = "profile trigger failed: " + c.Detail
	}
	return c
}

func (r *Report) finish() *Report {
	r.Healthy = true
	for _, c := range r.Checks {
		if c.Status != StatusOK {
			r.Healthy = false
		}
		if c.Status == StatusMissing {
			r.Remediation = migrate.Script()
		}
	}
	return r
}

// ErrUnhealthy is returned by Report.Err when any check did not pass.
var ErrUnhealthy = errors.New("backend is missing prerequisites")

func (r *Report) Err() error {
	if r.Healthy {
		return nil
	}
	return ErrUnhealthy
}

// WriteText renders r as an aligned table followed by the remediation
// script, if any.
func (r *Report) WriteText(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Endpoint:\t%s\n\n", r.Endpoint)
	fmt.Fprintln(tw, "CHECK\tSTATUS\tTIME\tDETAIL")
	for _, c := range r.Checks {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", c.Name, strings.ToUpper(string(c.Status)),
			c.Duration.Round(time.Millisecond), c.Detail)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	if r.Healthy {
		_, err := fmt.Fprintln(w, "\nAll checks passed.")
		return err
	}
	if r.Remediation != "" {
		_, err := fmt.Fprintf(w, "\nRun the following in the SQL editor, then check again:\n\n%s", r.Remediation)
		return err
	}
	_, err := fmt.Fprintln(w, "\nSome checks failed. See the details above.")
	return err
}
