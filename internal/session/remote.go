package session

import (
	"context"
	"time"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

// ClientRemote is the Remote backed by the data access client.
type ClientRemote struct {
	client *supabase.Client
}

func NewRemote(client *supabase.Client) *ClientRemote {
	return &ClientRemote{client: client}
}

func (r *ClientRemote) SignUp(ctx context.Context, email, password string, metadata map[string]any) (*supabase.User, error) {
	return r.client.Auth().SignUp(ctx, email, password, metadata)
}

func (r *ClientRemote) SignIn(ctx context.Context, email, password string) (*supabase.Tokens, error) {
	return r.client.Auth().SignIn(ctx, email, password)
}

func (r *ClientRemote) Refresh(ctx context.Context, refreshToken string) (*supabase.Tokens, error) {
	return r.client.Auth().Refresh(ctx, refreshToken)
}

func (r *ClientRemote) SignOut(ctx context.Context, accessToken string) error {
	return r.client.Auth().SignOut(ctx, accessToken)
}

func (r *ClientRemote) GetUser(ctx context.Context, accessToken string) (*supabase.User, error) {
	return r.client.Auth().GetUser(ctx, accessToken)
}

// FetchProfile reads the profile row as the user, so row-level policies apply.
func (r *ClientRemote) FetchProfile(ctx context.Context, accessToken, userID string) (*models.Profile, error) {
	var p models.Profile
	err := r.client.WithToken(accessToken).
		From("profiles").
		Eq("id", userID).
		Single(ctx, &p)
	if err != nil {
		return nil, err
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ClientRemote) UpdateProfile(ctx context.Context, accessToken, userID string, patch map[string]any) (*models.Profile, error) {
	patch["updated_at"] = time.Now().UTC()

	var rows []models.Profile
	err := r.client.WithToken(accessToken).
		From("profiles").
		Update(patch).
		Eq("id", userID).
		Execute(ctx, &rows)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, supabase.NoRows("update profiles")
	}
	return &rows[0], nil
}
