package supabase

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"smart-shopping-list/internal/session"
)

// Auth is the GoTrue email/password API of the project.
type Auth struct {
	client *Client
	now    func() time.Time
}

var _ session.Authenticator = (*Auth)(nil)

// NewAuth creates the auth API on top of client.
func NewAuth(client *Client) *Auth {
	return &Auth{client: client, now: time.Now}
}

type userPayload struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// tokenPayload is a GoTrue session. Sign-up returns a bare user object
// without an access token while confirmation is pending.
type tokenPayload struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	ExpiresIn    int64        `json:"expires_in"`
	ExpiresAt    int64        `json:"expires_at"`
	User         *userPayload `json:"user"`
}

type credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// SignUp registers a user. It returns nil tokens when email confirmation is pending.
func (a *Auth) SignUp(ctx context.Context, email, password string) (*session.Tokens, error) {
	var payload tokenPayload
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/signup",
		body:   credentials{Email: email, Password: password},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign up: %w", err)
	}
	if payload.AccessToken == "" {
		return nil, nil
	}
	return a.toTokens(payload)
}

// SignInWithPassword exchanges credentials for a session.
func (a *Auth) SignInWithPassword(ctx context.Context, email, password string) (*session.Tokens, error) {
	var payload tokenPayload
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"password"}},
		body:   credentials{Email: email, Password: password},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to sign in: %w", err)
	}
	return a.toTokens(payload)
}

// Refresh exchanges a refresh token for a new session.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*session.Tokens, error) {
	var payload tokenPayload
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/token",
		query:  url.Values{"grant_type": {"refresh_token"}},
		body:   map[string]string{"refresh_token": refreshToken},
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to refresh session: %w", err)
	}
	return a.toTokens(payload)
}

// SignOut revokes the session behind accessToken.
func (a *Auth) SignOut(ctx context.Context, accessToken string) error {
	err := a.client.do(ctx, request{
		method: http.MethodPost,
		path:   "/auth/v1/logout",
		token:  accessToken,
	}, nil)
	if err != nil {
		return fmt.Errorf("failed to sign out: %w", err)
	}
	return nil
}

// User returns the user behind accessToken, validating it with the backend.
func (a *Auth) User(ctx context.Context, accessToken string) (*session.User, error) {
	var payload userPayload
	err := a.client.do(ctx, request{
		method: http.MethodGet,
		path:   "/auth/v1/user",
		token:  accessToken,
	}, &payload)
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if payload.ID == "" {
		return nil, errors.New("failed to get user: no user returned")
	}
	return &session.User{ID: payload.ID, Email: payload.Email}, nil
}

func (a *Auth) toTokens(p tokenPayload) (*session.Tokens, error) {
	if p.AccessToken == "" {
		return nil, errors.New("no session returned")
	}

	t := &session.Tokens{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
	}
	if p.User != nil {
		t.User = session.User{ID: p.User.ID, Email: p.User.Email}
	}

	switch {
	case p.ExpiresAt > 0:
		t.ExpiresAt = time.Unix(p.ExpiresAt, 0).UTC()
	case p.ExpiresIn > 0:
		t.ExpiresAt = a.now().Add(time.Duration(p.ExpiresIn) * time.Second).UTC()
	}

	if t.User.ID == "" || t.ExpiresAt.IsZero() {
		claimed, exp, err := session.TokenClaims(p.AccessToken)
		if err != nil {
			return nil, err
		}
		if t.User.ID == "" {
			t.User = claimed
		}
		if t.ExpiresAt.IsZero() {
			t.ExpiresAt = exp
		}
	}
	return t, nil
}
