package auth

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazarcheh/auth-service/internal/model"
)

// fakeStore is an in-memory Datastore. It mirrors the repo semantics that
// matter to the service: (nil, nil) misses, newest-first OTP lookup and
// conditional consume/revoke updates.
type fakeStore struct {
	mu       sync.Mutex
	users    map[uuid.UUID]*model.User
	otps     []*model.OtpCode
	sessions map[uuid.UUID]*model.RefreshSession
	revoked  map[string]*model.RevokedAccessToken

	revocationCheckErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:    make(map[uuid.UUID]*model.User),
		sessions: make(map[uuid.UUID]*model.RefreshSession),
		revoked:  make(map[string]*model.RevokedAccessToken),
	}
}

func (f *fakeStore) WithinTx(_ context.Context, fn func(Datastore) error) error {
	return fn(f)
}

func (f *fakeStore) CreateUser(_ context.Context, u *model.User) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	u.CreatedAt = time.Now()
	f.users[u.ID] = u
	return nil
}

func (f *fakeStore) GetUserByPhone(_ context.Context, phone string) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.PhoneNumber == phone {
			return u, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) GetUserByID(_ context.Context, id uuid.UUID) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[id], nil
}

func (f *fakeStore) CreateOtp(_ context.Context, o *model.OtpCode) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	o.CreatedAt = time.Now()
	f.otps = append(f.otps, o)
	return nil
}

func (f *fakeStore) LatestPendingOtp(_ context.Context, phone string) (*model.OtpCode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.otps) - 1; i >= 0; i-- {
		o := f.otps[i]
		if o.PhoneNumber == phone && !o.Consumed && o.ExpiresAt.After(time.Now()) {
			return o, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) ConsumeOtp(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.otps {
		if o.ID == id {
			if o.Consumed {
				return false, nil
			}
			o.Consumed = true
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeStore) CreateRefreshSession(_ context.Context, s *model.RefreshSession) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	s.CreatedAt = time.Now()
	f.sessions[s.ID] = s
	return nil
}

func (f *fakeStore) FindRefreshSession(_ context.Context, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash && s.RevokedAt == nil && s.ExpiresAt.After(time.Now()) {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) FindRefreshSessionIncludeRevoked(_ context.Context, userID uuid.UUID, tokenHash string) (*model.RefreshSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, s := range f.sessions {
		if s.UserID == userID && s.TokenHash == tokenHash {
			return s, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) RevokeRefreshSession(_ context.Context, id uuid.UUID) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.sessions[id]
	if !ok || s.RevokedAt != nil {
		return false, nil
	}
	now := time.Now()
	s.RevokedAt = &now
	return true, nil
}

func (f *fakeStore) RevokeAllRefreshForUser(_ context.Context, userID uuid.UUID) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, s := range f.sessions {
		if s.UserID == userID && s.RevokedAt == nil {
			s.RevokedAt = &now
		}
	}
	return nil
}

func (f *fakeStore) InsertRevokedAccessToken(_ context.Context, t *model.RevokedAccessToken) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	t.CreatedAt = time.Now()
	f.revoked[t.TokenHash] = t
	return nil
}

func (f *fakeStore) IsAccessTokenRevoked(_ context.Context, tokenHash string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.revocationCheckErr != nil {
		return false, f.revocationCheckErr
	}
	t, ok := f.revoked[tokenHash]
	return ok && t.ExpiresAt.After(time.Now()), nil
}

func (f *fakeStore) DeleteExpiredRevokedTokens(_ context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var deleted int64
	for hash, t := range f.revoked {
		if !t.ExpiresAt.After(time.Now()) {
			delete(f.revoked, hash)
			deleted++
		}
	}
	return deleted, nil
}

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func newTestService(t *testing.T, store Datastore) *Service {
	t.Helper()
	tokens := NewTokenManager(
		"access-secret-for-tests-0123456789abcdef",
		"refresh-secret-for-tests-0123456789abcdef",
		15*time.Minute,
		30*24*time.Hour,
	)
	return NewService(store, tokens, ServiceConfig{
		OtpTTL:    5 * time.Minute,
		OpTimeout: 5 * time.Second,
	}, testLogger())
}

func signupUser(t *testing.T, svc *Service, phone, password string) *AuthResult {
	t.Helper()
	ctx := context.Background()
	code, err := svc.RequestOtp(ctx, phone, model.OtpPurposeSignup)
	require.NoError(t, err)
	result, err := svc.Signup(ctx, phone, password, code)
	require.NoError(t, err)
	return result
}

func TestRequestOtpPurposeGating(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	_, err := svc.RequestOtp(ctx, "09120000000", model.OtpPurposeLogin)
	assert.ErrorIs(t, err, ErrUserNotFound, "login OTP for unknown phone must be rejected")

	signupUser(t, svc, "09120000000", "hunter2secret")

	_, err = svc.RequestOtp(ctx, "09120000000", model.OtpPurposeSignup)
	assert.ErrorIs(t, err, ErrUserAlreadyExists, "signup OTP for registered phone must be rejected")

	_, err = svc.RequestOtp(ctx, "09120000000", model.OtpPurposeLogin)
	assert.NoError(t, err, "login OTP for registered phone must succeed")
}

func TestSignupIssuesVerifiableTokens(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	require.NotNil(t, result.User)
	assert.Equal(t, model.RoleUser, result.User.Role)
	assert.Equal(t, "09120000000", result.User.PhoneNumber)

	claims, err := svc.tokens.VerifyAccessToken(result.AccessToken)
	require.NoError(t, err)
	userID, err := claims.UserID()
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, userID)

	refreshClaims, err := svc.tokens.VerifyRefreshToken(result.RefreshToken)
	require.NoError(t, err)
	refreshUserID, err := refreshClaims.UserID()
	require.NoError(t, err)
	assert.Equal(t, result.User.ID, refreshUserID)

	// The refresh session must be persisted under the token's hash.
	session, err := store.FindRefreshSession(context.Background(), result.User.ID, HashToken(result.RefreshToken))
	require.NoError(t, err)
	assert.NotNil(t, session)
}

func TestSignupDuplicatePhone(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	signupUser(t, svc, "09120000000", "hunter2secret")

	_, err := svc.Signup(ctx, "09120000000", "otherpassword", "0000")
	assert.ErrorIs(t, err, ErrUserAlreadyExists)
}

func TestOtpSingleUse(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	signupUser(t, svc, "09120000000", "hunter2secret")

	code, err := svc.RequestOtp(ctx, "09120000000", model.OtpPurposeLogin)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "09120000000", "hunter2secret", code)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "09120000000", "hunter2secret", code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOtp, "a consumed code must not verify a second time")
}

func TestOtpExpiry(t *testing.T) {
	store := newFakeStore()
	tokens := NewTokenManager(
		"access-secret-for-tests-0123456789abcdef",
		"refresh-secret-for-tests-0123456789abcdef",
		15*time.Minute,
		30*24*time.Hour,
	)
	// Codes are born expired.
	svc := NewService(store, tokens, ServiceConfig{OtpTTL: -time.Minute}, testLogger())
	ctx := context.Background()

	code, err := svc.RequestOtp(ctx, "09120000000", model.OtpPurposeSignup)
	require.NoError(t, err)

	_, err = svc.Signup(ctx, "09120000000", "hunter2secret", code)
	assert.ErrorIs(t, err, ErrInvalidOrExpiredOtp)
}

func TestWrongOtpCode(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	signupUser(t, svc, "09120000000", "hunter2secret")

	code, err := svc.RequestOtp(ctx, "09120000000", model.OtpPurposeLogin)
	require.NoError(t, err)

	wrong := "0000"
	if wrong == code {
		wrong = "1111"
	}
	_, err = svc.Login(ctx, "09120000000", "hunter2secret", wrong)
	assert.ErrorIs(t, err, ErrInvalidOtp)

	// A wrong guess must not burn the code.
	_, err = svc.Login(ctx, "09120000000", "hunter2secret", code)
	assert.NoError(t, err)
}

func TestWrongPasswordDoesNotBurnOtp(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	signupUser(t, svc, "09120000000", "hunter2secret")

	code, err := svc.RequestOtp(ctx, "09120000000", model.OtpPurposeLogin)
	require.NoError(t, err)

	_, err = svc.Login(ctx, "09120000000", "wrongpassword", code)
	assert.ErrorIs(t, err, ErrInvalidPassword)

	// Password is checked before the OTP, so the code is still live.
	_, err = svc.Login(ctx, "09120000000", "hunter2secret", code)
	assert.NoError(t, err)
}

func TestLoginUnknownUser(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	_, err := svc.Login(context.Background(), "09129999999", "whatever", "1234")
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestRefreshRotation(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	rotated, err := svc.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, result.RefreshToken, rotated.RefreshToken)

	// The replacement works.
	again, err := svc.Refresh(ctx, rotated.RefreshToken)
	require.NoError(t, err)

	_, err = svc.Refresh(ctx, again.RefreshToken)
	assert.NoError(t, err)
}

func TestRefreshReuseRevokesAllSessions(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	rotated, err := svc.Refresh(ctx, result.RefreshToken)
	require.NoError(t, err)

	// Replaying the rotated-away token is treated as theft.
	_, err = svc.Refresh(ctx, result.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReuseDetected)

	// The theft response killed the replacement session too.
	_, err = svc.Refresh(ctx, rotated.RefreshToken)
	assert.Error(t, err, "the rotated session must be dead after the cascade")
}

func TestRefreshRejectsForgedToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	_, err := svc.Refresh(context.Background(), "not-a-jwt")
	assert.ErrorIs(t, err, ErrInvalidRefreshToken)
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	_, err := svc.Refresh(context.Background(), result.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidRefreshToken, "an access token must not pass refresh verification")
}

func TestLogoutRevokesBothTokens(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	_, _, err := svc.AuthenticateAccessToken(ctx, result.AccessToken)
	require.NoError(t, err)

	svc.Logout(ctx, result.AccessToken, result.RefreshToken)

	_, _, err = svc.AuthenticateAccessToken(ctx, result.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "access token must be denylisted after logout")

	_, err = svc.Refresh(ctx, result.RefreshToken)
	assert.ErrorIs(t, err, ErrRefreshTokenReuseDetected, "a logged-out session replay is flagged as reuse")
}

func TestLogoutIsIdempotent(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	svc.Logout(ctx, result.AccessToken, result.RefreshToken)
	// Second logout with the same tokens must not error or panic.
	svc.Logout(ctx, result.AccessToken, result.RefreshToken)
	// Garbage tokens are soft no-ops.
	svc.Logout(ctx, "garbage", "garbage")
}

func TestRevocationFailOpenByDefault(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	store.revocationCheckErr = context.DeadlineExceeded
	_, _, err := svc.AuthenticateAccessToken(ctx, result.AccessToken)
	assert.NoError(t, err, "a store error must not lock users out under fail-open")
}

func TestRevocationFailClosed(t *testing.T) {
	store := newFakeStore()
	tokens := NewTokenManager(
		"access-secret-for-tests-0123456789abcdef",
		"refresh-secret-for-tests-0123456789abcdef",
		15*time.Minute,
		30*24*time.Hour,
	)
	svc := NewService(store, tokens, ServiceConfig{
		OtpTTL:               5 * time.Minute,
		RevocationFailClosed: true,
	}, testLogger())
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	store.revocationCheckErr = context.DeadlineExceeded
	_, _, err := svc.AuthenticateAccessToken(ctx, result.AccessToken)
	assert.ErrorIs(t, err, ErrInvalidToken, "fail-closed must treat a store error as revoked")
}

func TestSweepRevokedTokens(t *testing.T) {
	store := newFakeStore()
	svc := newTestService(t, store)
	ctx := context.Background()

	result := signupUser(t, svc, "09120000000", "hunter2secret")

	// One tombstone already past expiry, one still live.
	require.NoError(t, store.InsertRevokedAccessToken(ctx, &model.RevokedAccessToken{
		TokenHash: "expired-hash",
		UserID:    result.User.ID,
		ExpiresAt: time.Now().Add(-time.Hour),
	}))
	require.NoError(t, store.InsertRevokedAccessToken(ctx, &model.RevokedAccessToken{
		TokenHash: "live-hash",
		UserID:    result.User.ID,
		ExpiresAt: time.Now().Add(time.Hour),
	}))

	deleted, err := svc.SweepRevokedTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	// Idempotent: nothing new expired, nothing removed.
	deleted, err = svc.SweepRevokedTokens(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(0), deleted)
}
