package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
)

// ErrMissingDSN is returned when no connection string was supplied.
var ErrMissingDSN = errors.New("a privileged Postgres connection string is required (--dsn or DATABASE_URL)")

// OpenDB creates a small connection pool for the privileged Postgres
// connection used by setup tooling. The application itself never connects
// directly; it goes through the REST endpoint.
func OpenDB(ctx context.Context, dsn string, logger *slog.Logger) (*sql.DB, error) {
	// 1. Validate the DSN
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, ErrMissingDSN
	}
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") {
		if _, err := pq.ParseURL(dsn); err != nil {
			return nil, fmt.Errorf("invalid connection URL: %w", err)
		}
	}

	// 2. Open a new connection pool.
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database connection: %w", err)
	}

	// 3. Configure the connection pool settings.
	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	// 4. Ping the database to verify the connection.
	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", Describe(err))
	}

	logger.Info("Database connection established")
	return db, nil
}

// pgError formats a server error with its SQLSTATE, detail and hint.
type pgError struct {
	pe *pq.Error
}

func (e pgError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s (SQLSTATE %s)", e.pe.Message, e.pe.Code)
	if e.pe.Detail != "" {
		fmt.Fprintf(&b, ": %s", e.pe.Detail)
	}
	if e.pe.Hint != "" {
		fmt.Fprintf(&b, " hint: %s", e.pe.Hint)
	}
	return b.String()
}

func (e pgError) Unwrap() error { return e.pe }

// Describe enriches Postgres server errors with their code, detail and
// hint. Other errors are returned unchanged.
func Describe(err error) error {
	var pe *pq.Error
	if errors.As(err, &pe) {
		return pgError{pe}
	}
	return err
}

// IsInsufficientPrivilege reports whether err is a Postgres permission error.
func IsInsufficientPrivilege(err error) bool {
	var pe *pq.Error
	return errors.As(err, &pe) && pe.Code.Name() == "insufficient_privilege"
}
