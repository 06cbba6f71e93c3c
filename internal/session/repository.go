package session

import (
	"context"
	"database/sql"
	"errors"
	"time"
)

// Repository persists the current session between runs.
type Repository interface {
	// Load returns the stored session, or nil when there is none.
	Load(ctx context.Context) (*Tokens, error)
	Save(ctx context.Context, t Tokens) error
	Clear(ctx context.Context) error
}

// SQLRepository stores the session in the single-row auth_sessions table.
type SQLRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLRepository creates a repository on an already migrated database.
func NewSQLRepository(db *sql.DB) *SQLRepository {
	return &SQLRepository{db: db, now: time.Now}
}

const slotID = 1

// Load retrieves the stored session.
func (r *SQLRepository) Load(ctx context.Context) (*Tokens, error) {
	var (
		t         Tokens
		expiresAt sql.NullTime
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT user_id, email, access_token, refresh_token, expires_at
		FROM auth_sessions
		WHERE id = ?`, slotID,
	).Scan(&t.User.ID, &t.User.Email, &t.AccessToken, &t.RefreshToken, &expiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	if expiresAt.Valid {
		t.ExpiresAt = expiresAt.Time.UTC()
	}
	return &t, nil
}

// Save replaces the stored session.
func (r *SQLRepository) Save(ctx context.Context, t Tokens) error {
	var expiresAt sql.NullTime
	if !t.ExpiresAt.IsZero() {
		expiresAt = sql.NullTime{Time: t.ExpiresAt.UTC(), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO auth_sessions (id, user_id, email, access_token, refresh_token, expires_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			email = excluded.email,
			access_token = excluded.access_token,
			refresh_token = excluded.refresh_token,
			expires_at = excluded.expires_at,
			updated_at = excluded.updated_at`,
		slotID, t.User.ID, t.User.Email, t.AccessToken, t.RefreshToken, expiresAt, r.now().UTC(),
	)
	return err
}

// Clear removes the stored session.
func (r *SQLRepository) Clear(ctx context.Context) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM auth_sessions WHERE id = ?`, slotID)
	return err
}

// NopRepository keeps nothing; sessions last for the process lifetime.
type NopRepository struct{}

func (NopRepository) Load(context.Context) (*Tokens, error) { return nil, nil }
func (NopRepository) Save(context.Context, Tokens) error    { return nil }
func (NopRepository) Clear(context.Context) error           { return nil }
