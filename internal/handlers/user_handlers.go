package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/shomere/ICR-Projects/internal/middleware"
	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/session"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// --- Registration & Login ---

// SignUpInput is the body of POST /v1/auth/signup. Role is never accepted
// from the caller; every new account starts as a client.
type SignUpInput struct {
	FullName string `json:"fullName" binding:"required,max=120"`
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=6"`
}

type LoginInput struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshInput struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

// sessionResponse is what login and refresh return.
type sessionResponse struct {
	AccessToken  string          `json:"accessToken"`
	RefreshToken string          `json:"refreshToken"`
	ExpiresIn    int             `json:"expiresIn"`
	User         *supabase.User  `json:"user"`
	Profile      *models.Profile `json:"profile"`
}

// SignUp is the handler for POST /v1/auth/signup
func (h *Handlers) SignUp(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input SignUpInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Create Remote Identity ---
	// The profile row is created server-side by the sign-up trigger.
	user, err := h.newSession().SignUp(c.Request.Context(), input.Email, input.Password, input.FullName)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusCreated, gin.H{
		"message": "Account created. Please check your email to confirm your address, then sign in.",
		"user":    gin.H{"id": user.ID, "email": user.Email},
	})
}

// Login is the handler for POST /v1/auth/login
func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if !bindJSON(c, &input) {
		return
	}

	// 2. --- Sign In ---
	sess := h.newSession()
	tokens, err := sess.SignIn(c.Request.Context(), input.Email, input.Password)
	h.respondSession(c, sess, tokens, err)
}

// Refresh is the handler for POST /v1/auth/refresh
func (h *Handlers) Refresh(c *gin.Context) {
	var input RefreshInput
	if !bindJSON(c, &input) {
		return
	}

	sess := h.newSession()
	tokens, err := sess.Refresh(c.Request.Context(), input.RefreshToken)
	h.respondSession(c, sess, tokens, err)
}

// respondSession answers a sign-in or refresh. A user whose profile could
// not be read is still signed in, without a profile.
func (h *Handlers) respondSession(c *gin.Context, sess *session.Context, tokens *supabase.Tokens, err error) {
	state := sess.State()
	if state.Status != session.StatusAuthenticated || supabase.IsKind(err, supabase.KindSchemaMissing) {
		h.respondError(c, err)
		return
	}

	resp := sessionResponse{
		AccessToken:  tokens.AccessToken,
		RefreshToken: tokens.RefreshToken,
		ExpiresIn:    tokens.ExpiresIn,
		User:         state.User,
		Profile:      state.Profile,
	}
	if err != nil {
		c.JSON(http.StatusOK, gin.H{
			"session": resp,
			"warning": "Signed in, but your profile could not be loaded.",
			"kind":    supabase.KindOf(err),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"session": resp})
}

// Logout is the handler for POST /v1/auth/logout
func (h *Handlers) Logout(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	// A session the auth service no longer knows is already signed out.
	if err := sess.SignOut(c.Request.Context()); err != nil && !supabase.IsKind(err, supabase.KindUnauthenticated) {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Signed out"})
}

// --- Own Profile ---

// GetMyProfile is the handler for GET /v1/profile/me
func (h *Handlers) GetMyProfile(c *gin.Context) {
	sess := middleware.SessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}

	state := sess.State()
	if state.Profile == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "Profile not found", "user": state.User})
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": state.User, "profile": state.Profile})
}

// UpdateMyProfile is the handler for PATCH /v1/profile/me
// Only contact fields can be changed; role and email are not accepted.
func (h *Handlers) UpdateMyProfile(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input models.ProfileUpdate
	if !bindJSON(c, &input) {
		return
	}
	if input.Empty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No fields to update"})
		return
	}

	// 2. --- Update ---
	sess := middleware.SessionFrom(c)
	if sess == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Not authenticated"})
		return
	}
	profile, err := sess.UpdateProfile(c.Request.Context(), input)
	if err != nil {
		h.respondError(c, err)
		return
	}

	// 3. --- Send Success Response ---
	c.JSON(http.StatusOK, gin.H{"message": "Profile updated", "profile": profile})
}
