package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/catalog"
	"github.com/shomere/ICR-Projects/internal/metrics"
	"github.com/shomere/ICR-Projects/internal/middleware"
	"github.com/shomere/ICR-Projects/internal/migrate"
	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/session"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// Handlers struct holds all dependencies for our handlers.
type Handlers struct {
	Supabase *supabase.Client // public-key client; see clientFor
	Catalog  *catalog.Catalog
	Metrics  *metrics.Metrics // optional
	Logger   *slog.Logger
	Bucket   string

	// MaxUploadBytes caps image uploads. Defaults to 5 MiB.
	MaxUploadBytes int64
}

func (h *Handlers) logger() *slog.Logger {
	if h.Logger == nil {
		return slog.Default()
	}
	return h.Logger
}

// clientFor returns a data client acting as the request's caller, so that
// row-level policies apply to them and not to the public key.
func (h *Handlers) clientFor(c *gin.Context) *supabase.Client {
	if sess := middleware.SessionFrom(c); sess != nil {
		return h.Supabase.WithToken(sess.AccessToken())
	}
	return h.Supabase
}

// newSession starts an anonymous identity context for the auth endpoints.
func (h *Handlers) newSession() *session.Context {
	return session.New(session.NewRemote(h.Supabase), h.logger())
}

// Ping is the handler for GET /v1/ping
func (h *Handlers) Ping(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "pong"})
}

// respondError maps a failure to a status code and a message that is safe
// to show an end user. Remote wording is only passed through for auth
// validation, where it is written for end users.
func (h *Handlers) respondError(c *gin.Context, err error) {
	var se *supabase.Error
	errors.As(err, &se)

	switch {
	case errors.Is(err, models.ErrInvalid):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	case errors.Is(err, session.ErrNotAuthenticated):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	case se == nil:
		h.logger().Error("request failed", "path", c.FullPath(), "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Something went wrong. Please try again."})
		return
	}

	kind := se.Kind
	level := slog.LevelWarn
	status, msg := http.StatusInternalServerError, "Something went wrong. Please try again."
	body := gin.H{"kind": kind}

	switch {
	case supabase.IsDuplicate(err):
		status, msg = http.StatusConflict, "This record already exists."
		if se.Code == "user_already_exists" || se.Code == "email_exists" || se.Code == "" {
			msg = "An account with this email already exists. Try signing in instead."
		}
	case kind == supabase.KindValidation:
		status, msg = http.StatusBadRequest, "The request was rejected as invalid."
		if strings.HasPrefix(se.Op, "auth ") {
			msg = se.Message
		}
	case kind == supabase.KindRateLimited:
		status, msg = http.StatusTooManyRequests, "Too many attempts. Please wait a moment and try again."
	case kind == supabase.KindSchemaMissing:
		level = slog.LevelError
		status, msg = http.StatusServiceUnavailable, "The database is not set up yet. An administrator must run the setup script."
		body["remediation"] = migrate.Script()
	case kind == supabase.KindUnauthenticated:
		status, msg = http.StatusUnauthorized, "Invalid credentials or expired session."
	case kind == supabase.KindPermission:
		status, msg = http.StatusForbidden, "You do not have permission to perform this action."
	case kind == supabase.KindNotFound:
		status, msg = http.StatusNotFound, "Not found."
	case kind == supabase.KindNetwork:
		level = slog.LevelError
		status, msg = http.StatusBadGateway, "The data service is unreachable. Please try again shortly."
	default:
		level = slog.LevelError
	}

	h.logger().Log(c.Request.Context(), level, "remote call failed",
		"path", c.FullPath(), "op", se.Op, "kind", kind, "status", se.Status, "code", se.Code, "message", se.Message)
	body["error"] = msg
	c.JSON(status, body)
}

// bindJSON binds the body into dst and answers 400 on failure.
func bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body: " + err.Error()})
		return false
	}
	return true
}
