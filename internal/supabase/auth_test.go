package supabase

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"smart-shopping-list/internal/session"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAuth(t *testing.T, handler http.HandlerFunc) *Auth {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(Config{URL: server.URL, AnonKey: "anon"})
	require.NoError(t, err)
	a := NewAuth(client)
	a.now = func() time.Time { return time.Date(2024, 6, 5, 12, 0, 0, 0, time.UTC) }
	return a
}

func signedToken(t *testing.T, sub, email string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub":   sub,
		"email": email,
		"exp":   exp.Unix(),
	})
	s, err := token.SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return s
}

func TestSignInWithPassword(t *testing.T) {
	a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/v1/token", r.URL.Path)
		assert.Equal(t, "password", r.URL.Query().Get("grant_type"))
		assert.Equal(t, "Bearer anon", r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "ana@example.com", body["email"])
		assert.Equal(t, "secret1", body["password"])

		io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"expires_at":1717592400,"user":{"id":"`+testOwner+`","email":"ana@example.com"}}`)
	})

	tokens, err := a.SignInWithPassword(context.Background(), "ana@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "at", tokens.AccessToken)
	assert.Equal(t, "rt", tokens.RefreshToken)
	assert.Equal(t, time.Unix(1717592400, 0).UTC(), tokens.ExpiresAt)
	assert.Equal(t, session.User{ID: testOwner, Email: "ana@example.com"}, tokens.User)
}

func TestSignInWithPassword_InvalidCredentials(t *testing.T) {
	a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid login credentials"}`)
	})

	_, err := a.SignInWithPassword(context.Background(), "ana@example.com", "wrong")
	require.Error(t, err)
	assert.True(t, session.IsRejected(err))
	assert.Contains(t, err.Error(), "Invalid login credentials")
}

func TestSignUp(t *testing.T) {
	t.Run("PendingConfirmation", func(t *testing.T) {
		a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/auth/v1/signup", r.URL.Path)
			io.WriteString(w, `{"id":"`+testOwner+`","email":"ana@example.com","confirmation_sent_at":"2024-06-05T12:00:00Z"}`)
		})

		tokens, err := a.SignUp(context.Background(), "ana@example.com", "secret1")
		require.NoError(t, err)
		assert.Nil(t, tokens)
	})

	t.Run("ImmediateSession", func(t *testing.T) {
		a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"access_token":"at","refresh_token":"rt","expires_in":3600,"user":{"id":"`+testOwner+`","email":"ana@example.com"}}`)
		})

		tokens, err := a.SignUp(context.Background(), "ana@example.com", "secret1")
		require.NoError(t, err)
		require.NotNil(t, tokens)
		assert.Equal(t, time.Date(2024, 6, 5, 13, 0, 0, 0, time.UTC), tokens.ExpiresAt)
	})

	t.Run("AlreadyRegistered", func(t *testing.T) {
		a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnprocessableEntity)
			io.WriteString(w, `{"code":422,"error_code":"user_already_exists","msg":"User already registered"}`)
		})

		_, err := a.SignUp(context.Background(), "ana@example.com", "secret1")
		require.Error(t, err)
		assert.True(t, session.IsRejected(err))
		assert.Contains(t, err.Error(), "user_already_exists")
	})
}

func TestRefresh_ExpiryFromToken(t *testing.T) {
	exp := time.Date(2024, 6, 5, 14, 0, 0, 0, time.UTC)
	access := signedToken(t, testOwner, "ana@example.com", exp)

	a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "refresh_token", r.URL.Query().Get("grant_type"))
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "old-refresh", body["refresh_token"])

		io.WriteString(w, `{"access_token":"`+access+`","refresh_token":"new-refresh"}`)
	})

	tokens, err := a.Refresh(context.Background(), "old-refresh")
	require.NoError(t, err)
	assert.Equal(t, "new-refresh", tokens.RefreshToken)
	assert.True(t, exp.Equal(tokens.ExpiresAt))
	assert.Equal(t, testOwner, tokens.User.ID)
	assert.Equal(t, "ana@example.com", tokens.User.Email)
}

func TestRefresh_Revoked(t *testing.T) {
	a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		io.WriteString(w, `{"error":"invalid_grant","error_description":"Invalid Refresh Token: Already Used"}`)
	})

	_, err := a.Refresh(context.Background(), "used")
	assert.True(t, session.IsRejected(err))
}

func TestRefresh_ServerErrorIsNotRejection(t *testing.T) {
	a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	})

	_, err := a.Refresh(context.Background(), "rt")
	require.Error(t, err)
	assert.False(t, session.IsRejected(err))
}

func TestUserAndSignOut(t *testing.T) {
	a := newTestAuth(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/auth/v1/user":
			io.WriteString(w, `{"id":"`+testOwner+`","email":"ana@example.com","role":"authenticated"}`)
		case "/auth/v1/logout":
			assert.Equal(t, http.MethodPost, r.Method)
			w.WriteHeader(http.StatusNoContent)
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})

	u, err := a.User(context.Background(), "at")
	require.NoError(t, err)
	assert.Equal(t, &session.User{ID: testOwner, Email: "ana@example.com"}, u)

	assert.NoError(t, a.SignOut(context.Background(), "at"))
}
