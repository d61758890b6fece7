// Package session holds the identity of one caller: the auth user, its
// profile row and the access token, plus the state machine that moves
// between them. A Context is created per request (or per CLI run) and passed
// explicitly to whatever needs identity.
package session

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/shomere/ICR-Projects/internal/models"
	"github.com/shomere/ICR-Projects/internal/supabase"
)

type Status string

const (
	StatusUninitialized Status = "uninitialized"
	StatusLoading       Status = "loading"
	StatusAuthenticated Status = "authenticated"
	StatusAnonymous     Status = "anonymous"
)

// ErrNotAuthenticated is returned by operations that need a signed-in user.
var ErrNotAuthenticated = errors.New("session: not authenticated")

// State is a snapshot of a Context. Profile may be nil for an authenticated
// user whose profile row could not be read.
type State struct {
	Status      Status          `json:"status"`
	User        *supabase.User  `json:"user,omitempty"`
	Profile     *models.Profile `json:"profile,omitempty"`
	AccessToken string          `json:"-"`
}

// Loading is true until both the identity check and the profile fetch resolve.
func (s State) Loading() bool {
	return s.Status == StatusUninitialized || s.Status == StatusLoading
}

// Remote is the subset of the data service a Context talks to.
type Remote interface {
	SignUp(ctx context.Context, email, password string, metadata map[string]any) (*supabase.User, error)
	SignIn(ctx context.Context, email, password string) (*supabase.Tokens, error)
	Refresh(ctx context.Context, refreshToken string) (*supabase.Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
	GetUser(ctx context.Context, accessToken string) (*supabase.User, error)
	FetchProfile(ctx context.Context, accessToken, userID string) (*models.Profile, error)
	UpdateProfile(ctx context.Context, accessToken, userID string, patch map[string]any) (*models.Profile, error)
}

// Context is the identity state of one caller. It is safe for concurrent use.
type Context struct {
	remote Remote
	logger *slog.Logger

	mu     sync.Mutex
	state  State
	subs   map[int]func(State)
	nextID int
}

func New(remote Remote, logger *slog.Logger) *Context {
	if logger == nil {
		logger = slog.Default()
	}
	return &Context{
		remote: remote,
		logger: logger,
		state:  State{Status: StatusUninitialized},
		subs:   map[int]func(State){},
	}
}

// State returns the current snapshot.
func (c *Context) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Subscribe registers fn to be called after every transition. The returned
// func removes it.
func (c *Context) Subscribe(fn func(State)) (unsubscribe func()) {
	c.mu.Lock()
	id := c.nextID
	c.nextID++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// set replaces the state and notifies subscribers outside the lock.
func (c *Context) set(s State) {
	c.mu.Lock()
	c.state = s
	fns := make([]func(State), 0, len(c.subs))
	for _, fn := range c.subs {
		fns = append(fns, fn)
	}
	c.mu.Unlock()

	for _, fn := range fns {
		fn(s)
	}
}

// Role is the caller's role, or "" when there is no profile.
func (c *Context) Role() models.Role {
	s := c.State()
	if s.Status != StatusAuthenticated || s.Profile == nil {
		return ""
	}
	return s.Profile.Role
}

// UserID is the authenticated identity id, or "".
func (c *Context) UserID() string {
	s := c.State()
	if s.Status != StatusAuthenticated || s.User == nil {
		return ""
	}
	return s.User.ID
}

// AccessToken is the bearer token of the authenticated user, or "".
func (c *Context) AccessToken() string {
	s := c.State()
	if s.Status != StatusAuthenticated {
		return ""
	}
	return s.AccessToken
}

// Restore resumes an existing session from an access token. An empty token
// leaves the Context anonymous. A token the auth service rejects also ends
// anonymous and the error is returned. When the user is valid but the
// profile cannot be read, the Context is authenticated with a nil profile
// and the profile error is returned.
func (c *Context) Restore(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		c.set(State{Status: StatusAnonymous})
		return nil
	}
	c.set(State{Status: StatusLoading})

	user, err := c.remote.GetUser(ctx, accessToken)
	if err != nil {
		c.set(State{Status: StatusAnonymous})
		return err
	}
	return c.loadProfile(ctx, user, accessToken)
}

// SignUp creates a remote identity carrying fullName as metadata. It does not
// sign the user in: the identity has to be confirmed first.
func (c *Context) SignUp(ctx context.Context, email, password, fullName string) (*supabase.User, error) {
	user, err := c.remote.SignUp(ctx, email, password, map[string]any{"full_name": fullName})
	if err != nil {
		c.logger.Warn("sign up failed", "email", email, "kind", supabase.KindOf(err), "error", err)
		return nil, err
	}
	if s := c.State(); s.Status == StatusUninitialized {
		c.set(State{Status: StatusAnonymous})
	}
	return user, nil
}

// SignIn authenticates and loads the profile.
func (c *Context) SignIn(ctx context.Context, email, password string) (*supabase.Tokens, error) {
	c.set(State{Status: StatusLoading})

	tokens, err := c.remote.SignIn(ctx, email, password)
	if err != nil {
		c.set(State{Status: StatusAnonymous})
		return nil, err
	}
	if tokens.User == nil {
		if tokens.User, err = c.remote.GetUser(ctx, tokens.AccessToken); err != nil {
			c.set(State{Status: StatusAnonymous})
			return nil, err
		}
	}
	return tokens, c.loadProfile(ctx, tokens.User, tokens.AccessToken)
}

// Refresh exchanges a refresh token for a new session and reloads the profile.
func (c *Context) Refresh(ctx context.Context, refreshToken string) (*supabase.Tokens, error) {
	c.set(State{Status: StatusLoading})

	tokens, err := c.remote.Refresh(ctx, refreshToken)
	if err != nil {
		c.set(State{Status: StatusAnonymous})
		return nil, err
	}
	if tokens.User == nil {
		if tokens.User, err = c.remote.GetUser(ctx, tokens.AccessToken); err != nil {
			c.set(State{Status: StatusAnonymous})
			return nil, err
		}
	}
	return tokens, c.loadProfile(ctx, tokens.User, tokens.AccessToken)
}

// SignOut revokes the session remotely and always ends anonymous; a remote
// failure is still returned.
func (c *Context) SignOut(ctx context.Context) error {
	token := c.AccessToken()
	var err error
	if token != "" {
		err = c.remote.SignOut(ctx, token)
		if err != nil {
			c.logger.Warn("remote sign out failed", "kind", supabase.KindOf(err), "error", err)
		}
	}
	c.set(State{Status: StatusAnonymous})
	return err
}

// UpdateProfile writes the caller's own contact fields and swaps in the
// returned profile.
func (c *Context) UpdateProfile(ctx context.Context, upd models.ProfileUpdate) (*models.Profile, error) {
	s := c.State()
	if s.Status != StatusAuthenticated || s.User == nil {
		return nil, ErrNotAuthenticated
	}
	if err := upd.Validate(); err != nil {
		return nil, err
	}

	patch := map[string]any{}
	if upd.FullName != nil {
		patch["full_name"] = *upd.FullName
	}
	if upd.CompanyName != nil {
		patch["company_name"] = *upd.CompanyName
	}
	if upd.Phone != nil {
		patch["phone"] = *upd.Phone
	}
	if upd.Address != nil {
		patch["address"] = *upd.Address
	}
	if len(patch) == 0 {
		return s.Profile, nil
	}

	p, err := c.remote.UpdateProfile(ctx, s.AccessToken, s.User.ID, patch)
	if err != nil {
		return nil, err
	}
	s.Profile = p
	c.set(s)
	return p, nil
}

func (c *Context) loadProfile(ctx context.Context, user *supabase.User, accessToken string) error {
	profile, err := c.remote.FetchProfile(ctx, accessToken, user.ID)
	c.set(State{
		Status:      StatusAuthenticated,
		User:        user,
		Profile:     profile,
		AccessToken: accessToken,
	})
	if err != nil {
		c.logger.Error("profile fetch failed", "user_id", user.ID, "kind", supabase.KindOf(err), "error", err)
		return err
	}
	return nil
}
