package repo

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazarcheh/auth-service/internal/model"
)

// InsertRevokedAccessToken records a logout tombstone for an access token
// until its natural expiry.
func (s *Store) InsertRevokedAccessToken(ctx context.Context, t *model.RevokedAccessToken) error {
	var idStr string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO revoked_access_tokens (token_hash, user_id, expires_at)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, t.TokenHash, t.UserID.String(), t.ExpiresAt).Scan(&idStr, &t.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert revoked token: %w", err)
	}
	t.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse revocation ID: %w", err)
	}
	return nil
}

// IsAccessTokenRevoked reports whether a non-expired tombstone exists for
// the hash. Expired rows are ignored even before the sweeper removes them.
func (s *Store) IsAccessTokenRevoked(ctx context.Context, tokenHash string) (bool, error) {
	var revoked bool
	err := s.q.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM revoked_access_tokens
			WHERE token_hash = $1 AND expires_at > now()
		)
	`, tokenHash).Scan(&revoked)
	if err != nil {
		return false, fmt.Errorf("query revoked token: %w", err)
	}
	return revoked, nil
}

// DeleteExpiredRevokedTokens purges tombstones past expiry. An expired
// access token fails verification on its own, so the rows carry no
// information. Idempotent.
func (s *Store) DeleteExpiredRevokedTokens(ctx context.Context) (int64, error) {
	result, err := s.q.ExecContext(ctx, `
		DELETE FROM revoked_access_tokens WHERE expires_at <= now()
	`)
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired revoked tokens rows: %w", err)
	}
	return n, nil
}
