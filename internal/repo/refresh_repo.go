package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazarcheh/auth-service/internal/model"
)

// CreateRefreshSession inserts a new refresh session. Only the token hash
// is stored; the raw token never touches the database.
func (s *Store) CreateRefreshSession(ctx context.Context, sess *model.RefreshSession) error {
	var idStr string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO refresh_sessions (user_id, token_hash, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, sess.UserID.String(), sess.TokenHash, sess.ExpiresAt).Scan(&idStr, &sess.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert refresh session: %w", err)
	}
	sess.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse session ID: %w", err)
	}
	return nil
}

// FindRefreshSession returns the live session with the given hash
// belonging to the user, or nil. The lookup is user-scoped: the token
// hash alone is never trusted to select a row.
func (s *Store) FindRefreshSession(ctx context.Context, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error) {
	return s.findRefreshSession(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_sessions
		WHERE user_id = $1
		  AND token_hash = $2
		  AND revoked_at IS NULL
		  AND expires_at > now()
	`, userID, tokenHash)
}

// FindRefreshSessionIncludeRevoked matches revoked sessions too, so the
// caller can distinguish a replayed rotated token from a forged one.
func (s *Store) FindRefreshSessionIncludeRevoked(ctx context.Context, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error) {
	return s.findRefreshSession(ctx, `
		SELECT id, user_id, token_hash, expires_at, revoked_at, created_at
		FROM refresh_sessions
		WHERE user_id = $1
		  AND token_hash = $2
	`, userID, tokenHash)
}

func (s *Store) findRefreshSession(ctx context.Context, query string, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error) {
	var sess model.RefreshSession
	var idStr, userIDStr string
	err := s.q.QueryRowContext(ctx, query, userID.String(), tokenHash).Scan(
		&idStr,
		&userIDStr,
		&sess.TokenHash,
		&sess.ExpiresAt,
		&sess.RevokedAt,
		&sess.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query refresh session: %w", err)
	}
	sess.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse session ID: %w", err)
	}
	sess.UserID, err = uuid.Parse(userIDStr)
	if err != nil {
		return nil, fmt.Errorf("parse session user ID: %w", err)
	}
	return &sess, nil
}

// RevokeRefreshSession revokes the session if it is still active.
// Returning false means another request already revoked it; the condition
// closes the double-rotation race.
func (s *Store) RevokeRefreshSession(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at = now() WHERE id = $1 AND revoked_at IS NULL
	`, id.String())
	if err != nil {
		return false, fmt.Errorf("revoke refresh session: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke refresh session rows: %w", err)
	}
	return n > 0, nil
}

// RevokeAllRefreshForUser revokes every active session of the user.
func (s *Store) RevokeAllRefreshForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE refresh_sessions SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL
	`, userID.String())
	if err != nil {
		return fmt.Errorf("revoke all sessions for user: %w", err)
	}
	return nil
}
