package supabase

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// User is the remote authentication identity.
type User struct {
	ID               string         `json:"id"`
	Email            string         `json:"email"`
	Role             string         `json:"role"`
	UserMetadata     map[string]any `json:"user_metadata"`
	EmailConfirmedAt *time.Time     `json:"email_confirmed_at,omitempty"`
	CreatedAt        time.Time      `json:"created_at"`
}

// Tokens is an authenticated session as issued by the auth service.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at,omitempty"`
	User         *User  `json:"user,omitempty"`
}

// AuthClient groups the identity operations.
type AuthClient struct {
	c *Client
}

// Auth returns the identity operations of c.
func (c *Client) Auth() *AuthClient { return &AuthClient{c: c} }

// signUpResponse is either a bare user (confirmation pending) or a session
// (auto-confirm projects); both shapes are accepted.
type signUpResponse struct {
	User
	Nested *User `json:"user,omitempty"`
}

// SignUp creates a remote identity. metadata is stored as user metadata and is
// what the server-side trigger reads to fill the companion profile row.
// It never returns tokens: the identity must verify before signing in.
func (a *AuthClient) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*User, error) {
	var out signUpResponse
	_, err := a.c.do(ctx, request{
		op:     "auth signup",
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		json: map[string]any{
			"email":    email,
			"password": password,
			"data":     metadata,
		},
		bearer: a.c.anonKey,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}

	if out.Nested != nil {
		return out.Nested, nil
	}
	u := out.User
	return &u, nil
}

// SignIn exchanges email and password for a session.
func (a *AuthClient) SignIn(ctx context.Context, email, password string) (*Tokens, error) {
	return a.token(ctx, "auth signin", "password", map[string]any{
		"email":    email,
		"password": password,
	})
}

// Refresh exchanges a refresh token for a new session.
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*Tokens, error) {
	return a.token(ctx, "auth refresh", "refresh_token", map[string]any{
		"refresh_token": refreshToken,
	})
}

func (a *AuthClient) token(ctx context.Context, op, grant string, body map[string]any) (*Tokens, error) {
	var out Tokens
	_, err := a.c.do(ctx, request{
		op:     op,
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {grant}},
		json:   body,
		bearer: a.c.anonKey,
		out:    &out,
	})
	if err != nil {
		return nil, err
	}
	if out.ExpiresAt == 0 && out.ExpiresIn > 0 {
		out.ExpiresAt = time.Now().Add(time.Duration(out.ExpiresIn) * time.Second).Unix()
	}
	return &out, nil
}

// SignOut revokes the session behind accessToken.
func (a *AuthClient) SignOut(ctx context.Context, accessToken string) error {
	_, err := a.c.do(ctx, request{
		op:     "auth signout",
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		bearer: accessToken,
	})
	return err
}

// GetUser returns the identity behind accessToken. It is the authoritative
// check that a token is valid and not revoked.
func (a *AuthClient) GetUser(ctx context.Context, accessToken string) (*User, error) {
	var u User
	_, err := a.c.do(ctx, request{
		op:     "auth user",
		method: http.MethodGet,
		path:   "/auth/v1/user",
		bearer: accessToken,
		out:    &u,
	})
	if err != nil {
		return nil, err
	}
	return &u, nil
}
