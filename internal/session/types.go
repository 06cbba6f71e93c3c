package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrBackendUnavailable is returned by every operation of a manager whose
	// backend client could not be constructed.
	ErrBackendUnavailable = errors.New("authentication backend is not available")
	// ErrPasswordMismatch is returned when a registration's confirmation differs.
	ErrPasswordMismatch = errors.New("passwords do not match")
	// ErrWeakPassword is returned for passwords shorter than MinPasswordLength.
	ErrWeakPassword = fmt.Errorf("password should be at least %d characters", MinPasswordLength)
	// ErrMissingCredentials is returned when email or password is blank.
	ErrMissingCredentials = errors.New("email and password are required")
)

// MinPasswordLength is the backend's minimum password length.
const MinPasswordLength = 6

// User is an authenticated identity.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Tokens is a live backend session.
type Tokens struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
	User         User      `json:"user"`
}

// Expired reports whether the access token is expired, or will be within margin.
func (t Tokens) Expired(now time.Time, margin time.Duration) bool {
	if t.ExpiresAt.IsZero() {
		return false
	}
	return !now.Add(margin).Before(t.ExpiresAt)
}

// Authenticator is the backend's auth API.
type Authenticator interface {
	// SignUp registers a user. A nil session with a nil error means the
	// account awaits email confirmation.
	SignUp(ctx context.Context, email, password string) (*Tokens, error)
	SignInWithPassword(ctx context.Context, email, password string) (*Tokens, error)
	SignOut(ctx context.Context, accessToken string) error
	Refresh(ctx context.Context, refreshToken string) (*Tokens, error)
	User(ctx context.Context, accessToken string) (*User, error)
}

// Rejection is implemented by backend errors that can tell a definitive
// refusal (bad credentials, revoked token) from a transient failure.
type Rejection interface {
	Rejected() bool
}

// IsRejected reports whether err is a definitive refusal by the backend.
func IsRejected(err error) bool {
	var r Rejection
	return errors.As(err, &r) && r.Rejected()
}

// SignUpResult is the outcome of a registration.
type SignUpResult struct {
	// PendingConfirmation is true when no session was issued yet.
	PendingConfirmation bool
	User                *User
}

// TokenClaims reads the subject, email and expiry of an access token without
// verifying its signature. Verification is the backend's job.
func TokenClaims(accessToken string) (User, time.Time, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return User{}, time.Time{}, fmt.Errorf("failed to parse access token: %w", err)
	}

	var u User
	if sub, err := claims.GetSubject(); err == nil {
		u.ID = sub
	}
	if email, ok := claims["email"].(string); ok {
		u.Email = email
	}

	var exp time.Time
	if e, err := claims.GetExpirationTime(); err == nil && e != nil {
		exp = e.Time
	}
	return u, exp, nil
}
