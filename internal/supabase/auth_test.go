package supabase_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/shomere/ICR-Projects/internal/supabase"
	"github.com/shomere/ICR-Projects/internal/supabase/supabasetest"
)

func TestSignUpCreatesProfileViaTrigger(t *testing.T) {
	srv := supabasetest.NewServer(t)
	c := newClient(t, srv)

	u, err := c.Auth().SignUp(context.Background(), "new@example.com", "secret123", map[string]any{"full_name": "Grace"})
	require.NoError(t, err)
	assert.NotEmpty(t, u.ID)
	assert.Equal(t, "new@example.com", u.Email)

	profiles := srv.Rows("profiles")
	require.Len(t, profiles, 1)
	assert.Equal(t, u.ID, profiles[0]["id"])
	assert.Equal(t, "Grace", profiles[0]["full_name"])
	assert.Equal(t, "client", profiles[0]["role"])
}

func TestSignUpDuplicate(t *testing.T) {
	srv := supabasetest.NewServer(t)
	srv.AddUser("dup@example.com", "secret123", "Dup", "client")
	c := newClient(t, srv)

	_, err := c.Auth().SignUp(context.Background(), "dup@example.com", "secret123", nil)
	require.Error(t, err)
	assert.True(t, supabase.IsDuplicate(err))
}

func TestSignUpTriggerFailure(t *testing.T) {
	srv := supabasetest.NewServer(t)
	srv.SignUpFailure = &supabasetest.Failure{
		Status: 500,
		Body:   `{"code":500,"error_code":"unexpected_failure","msg":"Database error saving new user"}`,
	}
	c := newClient(t, srv)

	_, err := c.Auth().SignUp(context.Background(), "x@example.com", "secret123", nil)
	assert.Equal(t, supabase.KindSchemaMissing, supabase.KindOf(err))
}

func TestSignInRefreshSignOut(t *testing.T) {
	srv := supabasetest.NewServer(t)
	id := srv.AddUser("admin@example.com", "secret123", "Admin", "admin")
	c := newClient(t, srv)
	ctx := context.Background()

	_, err := c.Auth().SignIn(ctx, "admin@example.com", "wrong")
	assert.Equal(t, supabase.KindUnauthenticated, supabase.KindOf(err))

	tok, err := c.Auth().SignIn(ctx, "admin@example.com", "secret123")
	require.NoError(t, err)
	assert.Equal(t, 3, len(strings.Split(tok.AccessToken, ".")))
	assert.NotEmpty(t, tok.RefreshToken)
	assert.Positive(t, tok.ExpiresAt)
	require.NotNil(t, tok.User)
	assert.Equal(t, id, tok.User.ID)

	u, err := c.Auth().GetUser(ctx, tok.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, "admin@example.com", u.Email)

	refreshed, err := c.Auth().Refresh(ctx, tok.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, tok.AccessToken, refreshed.AccessToken)

	_, err = c.Auth().Refresh(ctx, tok.RefreshToken)
	assert.Equal(t, supabase.KindUnauthenticated, supabase.KindOf(err), "refresh tokens are single use")

	require.NoError(t, c.Auth().SignOut(ctx, refreshed.AccessToken))
	_, err = c.Auth().GetUser(ctx, refreshed.AccessToken)
	assert.Equal(t, supabase.KindUnauthenticated, supabase.KindOf(err))
}
