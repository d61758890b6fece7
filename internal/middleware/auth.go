package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/auth"
	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/session"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

const (
	sessionKey = "session"
	userIDKey  = "userID"
)

// extractBearerToken returns the token of an "Authorization: Bearer <token>"
// header. The scheme is matched case-insensitively.
func extractBearerToken(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// AuthMiddleware resolves the caller's identity and stores a per-request
// session.Context in the gin context. The token is pre-checked locally and
// then confirmed with the auth service, which is authoritative.
func AuthMiddleware(client *supabase.Client, jwtSecret []byte, logger *slog.Logger) gin.HandlerFunc {
	remote := session.NewRemote(client)

	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		tokenString, ok := extractBearerToken(c.GetHeader("Authorization"))
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required (Bearer token)"})
			return
		}

		// 2. --- Pre-check Token ---
		claims, err := auth.ParseAccessToken(tokenString, jwtSecret)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 3. --- Restore Session ---
		sess := session.New(remote, logger)
		err = sess.Restore(c.Request.Context(), tokenString)
		switch {
		case err == nil:
		case sess.State().Status != session.StatusAuthenticated:
			if supabase.IsKind(err, supabase.KindNetwork) {
				c.AbortWithStatusJSON(http.StatusBadGateway, gin.H{"error": "Authentication service unreachable"})
				return
			}
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		case supabase.IsKind(err, supabase.KindSchemaMissing):
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "The profiles table is missing. An operator must run the database setup (dbdoctor sql).",
				"kind":  supabase.KindSchemaMissing,
			})
			return
		default:
			// Valid user without a readable profile: continue with no role.
			logger.Warn("continuing without profile", "user_id", claims.UserID, "error", err)
		}

		if id := sess.UserID(); id != claims.UserID {
			logger.Error("token subject does not match auth user", "subject", claims.UserID, "user_id", id)
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 4. --- Success ---
		c.Set(sessionKey, sess)
		c.Set(userIDKey, claims.UserID)
		c.Next()
	}
}

// SessionFrom returns the session stored by AuthMiddleware, or nil.
func SessionFrom(c *gin.Context) *session.Context {
	v, ok := c.Get(sessionKey)
	if !ok {
		return nil
	}
	sess, _ := v.(*session.Context)
	return sess
}

// RequireRole lets the request through only when the session's profile has
// one of roles. It must run after AuthMiddleware. This gate is for API
// ergonomics; row-level policies on the data service are the real boundary.
func RequireRole(roles ...models.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess := SessionFrom(c)
		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
			return
		}
		role := sess.Role()
		for _, r := range roles {
			if role == r {
				c.Next()
				return
			}
		}
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "You do not have permission to access this resource"})
	}
}

func AdminOnly() gin.HandlerFunc  { return RequireRole(models.RoleAdmin) }
func ClientOnly() gin.HandlerFunc { return RequireRole(models.RoleClient) }
