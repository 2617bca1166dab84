package auth

import (
	"context"

	"github.com/google/uuid"

	"github.com/bazarcheh/auth-service/internal/model"
)

// Datastore is the persistence surface the auth service needs. Lookup
// methods return (nil, nil) when no row matches. Implemented by
// repo.Store; tests substitute an in-memory fake.
type Datastore interface {
	// WithinTx runs fn against a transaction-scoped Datastore and commits
	// when fn returns nil.
	WithinTx(ctx context.Context, fn func(Datastore) error) error

	CreateUser(ctx context.Context, u *model.User) error
	GetUserByPhone(ctx context.Context, phone string) (*model.User, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error)

	CreateOtp(ctx context.Context, o *model.OtpCode) error
	// LatestPendingOtp returns the most recently created unconsumed,
	// unexpired code for the phone number.
	LatestPendingOtp(ctx context.Context, phone string) (*model.OtpCode, error)
	// ConsumeOtp marks the code consumed if it still is pending; reports
	// whether this call made the transition.
	ConsumeOtp(ctx context.Context, id uuid.UUID) (bool, error)

	CreateRefreshSession(ctx context.Context, s *model.RefreshSession) error
	// FindRefreshSession returns the live (non-revoked, non-expired)
	// session with the given hash belonging to the user.
	FindRefreshSession(ctx context.Context, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error)
	// FindRefreshSessionIncludeRevoked also matches revoked sessions;
	// used to tell a replayed rotated token apart from a forged one.
	FindRefreshSessionIncludeRevoked(ctx context.Context, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error)
	// RevokeRefreshSession revokes the session if it is still active;
	// reports whether this call revoked it (conditional update, safe
	// under concurrent rotation).
	RevokeRefreshSession(ctx context.Context, id uuid.UUID) (bool, error)
	RevokeAllRefreshForUser(ctx context.Context, userID uuid.UUID) error

	InsertRevokedAccessToken(ctx context.Context, t *model.RevokedAccessToken) error
	IsAccessTokenRevoked(ctx context.Context, tokenHash string) (bool, error)
	// DeleteExpiredRevokedTokens purges tombstones past their expiry and
	// returns the number of rows removed.
	DeleteExpiredRevokedTokens(ctx context.Context) (int64, error)
}
