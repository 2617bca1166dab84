package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/bazarcheh/auth-service/internal/logger"
	"github.com/bazarcheh/auth-service/internal/model"
)

// ServiceConfig carries the tunables the auth service needs beyond its
// collaborators.
type ServiceConfig struct {
	OtpTTL    time.Duration
	OpTimeout time.Duration
	// RevocationFailClosed treats a revocation-store error as "revoked".
	// Off by default: availability over strictness, logged either way.
	RevocationFailClosed bool
}

// Service orchestrates OTP issuance, signup/login, token rotation and
// revocation. All blocking work (bcrypt, store calls) is bounded by
// OpTimeout so a slow dependency cannot stall unrelated requests forever.
type Service struct {
	store      Datastore
	tokens     *TokenManager
	otpTTL     time.Duration
	opTimeout  time.Duration
	failClosed bool
	log        *logrus.Logger
}

// AuthResult is the outcome of a successful signup or login.
type AuthResult struct {
	User         *model.User
	AccessToken  string
	RefreshToken string
}

// NewService creates the auth service.
func NewService(store Datastore, tokens *TokenManager, cfg ServiceConfig, log *logrus.Logger) *Service {
	return &Service{
		store:      store,
		tokens:     tokens,
		otpTTL:     cfg.OtpTTL,
		opTimeout:  cfg.OpTimeout,
		failClosed: cfg.RevocationFailClosed,
		log:        log,
	}
}

// Signup registers a new user. Check order is part of the contract:
// existence first, then the OTP; OTP consumption, user creation and
// session creation share one transaction so a crash cannot burn a code
// without granting a session.
func (s *Service) Signup(ctx context.Context, phone, password, code string) (*AuthResult, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	existing, err := s.store.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if existing != nil {
		return nil, ErrUserAlreadyExists
	}

	passwordHash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var result *AuthResult
	err = s.store.WithinTx(ctx, func(tx Datastore) error {
		if err := s.consumeOtp(ctx, tx, phone, code); err != nil {
			return err
		}
		user := &model.User{
			PhoneNumber:  phone,
			PasswordHash: passwordHash,
			Role:         model.RoleUser,
		}
		if err := tx.CreateUser(ctx, user); err != nil {
			return fmt.Errorf("create user: %w", err)
		}
		res, err := s.issueTokens(ctx, tx, user)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("phone", s.maskPhone(phone)).Info("user signed up")
	return result, nil
}

// Login authenticates phone+password+OTP. The OTP is deliberately checked
// last so a wrong password does not burn a valid code.
func (s *Service) Login(ctx context.Context, phone, password, code string) (*AuthResult, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user, err := s.store.GetUserByPhone(ctx, phone)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	if err := CheckPassword(password, user.PasswordHash); err != nil {
		return nil, err
	}

	var result *AuthResult
	err = s.store.WithinTx(ctx, func(tx Datastore) error {
		if err := s.consumeOtp(ctx, tx, phone, code); err != nil {
			return err
		}
		res, err := s.issueTokens(ctx, tx, user)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithField("phone", s.maskPhone(phone)).Info("user logged in")
	return result, nil
}

// Refresh rotates a refresh token: the presented session is revoked with
// a conditional update and a fresh pair is issued. Losing the revoke race
// surfaces as ErrRefreshTokenNotFound, so one rotation event can never
// yield two valid pairs.
func (s *Service) Refresh(ctx context.Context, rawRefresh string) (*AuthResult, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	claims, err := s.tokens.VerifyRefreshToken(rawRefresh)
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, ErrInvalidRefreshToken
	}

	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, ErrUserNotFound
	}

	tokenHash := HashToken(rawRefresh)
	var result *AuthResult
	err = s.store.WithinTx(ctx, func(tx Datastore) error {
		session, err := tx.FindRefreshSession(ctx, userID, tokenHash)
		if err != nil {
			return fmt.Errorf("find refresh session: %w", err)
		}
		if session == nil {
			return ErrRefreshTokenNotFound
		}
		revoked, err := tx.RevokeRefreshSession(ctx, session.ID)
		if err != nil {
			return fmt.Errorf("revoke refresh session: %w", err)
		}
		if !revoked {
			return ErrRefreshTokenNotFound
		}
		res, err := s.issueTokens(ctx, tx, user)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	if errors.Is(err, ErrRefreshTokenNotFound) {
		// Outside the rolled-back transaction so a theft response sticks.
		return nil, s.classifyMissingSession(ctx, userID, tokenHash)
	}
	if err != nil {
		return nil, err
	}
	return result, nil
}

// classifyMissingSession tells a replayed token apart from a forged one.
// A revoked row under the same hash means the token was already rotated
// away: someone is replaying it, so every session of the user is revoked
// as a theft response. Anything else is a plain miss.
func (s *Service) classifyMissingSession(ctx context.Context, userID uuid.UUID, tokenHash string) error {
	revokedSession, err := s.store.FindRefreshSessionIncludeRevoked(ctx, userID, tokenHash)
	if err != nil {
		s.log.WithError(err).Warn("reuse classification failed")
		return ErrRefreshTokenNotFound
	}
	if revokedSession == nil || !revokedSession.Revoked() {
		return ErrRefreshTokenNotFound
	}
	if err := s.store.RevokeAllRefreshForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all sessions after reuse: %w", err)
	}
	s.log.WithField("user_id", userID).Warn("refresh token reuse detected; all sessions revoked")
	return ErrRefreshTokenReuseDetected
}

// RevokeRefreshToken invalidates the live session matching the raw token,
// scoped to the owning user recovered from the token itself. Reports
// whether a live session was actually revoked.
func (s *Service) RevokeRefreshToken(ctx context.Context, rawRefresh string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	claims, err := s.tokens.VerifyRefreshToken(rawRefresh)
	if err != nil {
		return false, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return false, nil
	}

	session, err := s.store.FindRefreshSession(ctx, userID, HashToken(rawRefresh))
	if err != nil {
		return false, fmt.Errorf("find refresh session: %w", err)
	}
	if session == nil {
		return false, nil
	}
	return s.store.RevokeRefreshSession(ctx, session.ID)
}

// RevokeAccessToken records a logout tombstone for the access token until
// its natural expiry. An already-invalid token needs no record; that is a
// soft false, not an error.
func (s *Service) RevokeAccessToken(ctx context.Context, rawAccess string) (bool, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	claims, err := s.tokens.VerifyAccessToken(rawAccess)
	if err != nil {
		return false, nil
	}
	userID, err := claims.UserID()
	if err != nil {
		return false, nil
	}

	tombstone := &model.RevokedAccessToken{
		TokenHash: HashToken(rawAccess),
		UserID:    userID,
		ExpiresAt: claims.ExpiresAt.Time,
	}
	if err := s.store.InsertRevokedAccessToken(ctx, tombstone); err != nil {
		return false, fmt.Errorf("insert revocation: %w", err)
	}
	return true, nil
}

// IsAccessTokenRevoked checks the denylist. A store error follows the
// configured policy: fail-open (not revoked) by default, fail-closed when
// strictness was chosen over availability.
func (s *Service) IsAccessTokenRevoked(ctx context.Context, rawAccess string) bool {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	revoked, err := s.store.IsAccessTokenRevoked(ctx, HashToken(rawAccess))
	if err != nil {
		s.log.WithError(err).Warn("revocation check failed")
		return s.failClosed
	}
	return revoked
}

// AuthenticateAccessToken verifies the token cryptographically, checks the
// revocation denylist and resolves the owning user. Any failure is
// ErrInvalidToken; callers surface a uniform 401.
func (s *Service) AuthenticateAccessToken(ctx context.Context, rawAccess string) (*model.User, *Claims, error) {
	claims, err := s.tokens.VerifyAccessToken(rawAccess)
	if err != nil {
		return nil, nil, ErrInvalidToken
	}
	if s.IsAccessTokenRevoked(ctx, rawAccess) {
		return nil, nil, ErrInvalidToken
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, nil, ErrInvalidToken
	}

	ctx, cancel := s.opContext(ctx)
	defer cancel()
	user, err := s.store.GetUserByID(ctx, userID)
	if err != nil {
		return nil, nil, fmt.Errorf("look up user: %w", err)
	}
	if user == nil {
		return nil, nil, ErrInvalidToken
	}
	return user, claims, nil
}

// Logout revokes whichever tokens were presented. The two revocations are
// independent and best-effort; the caller always sees success.
func (s *Service) Logout(ctx context.Context, rawAccess, rawRefresh string) {
	if rawAccess != "" {
		if _, err := s.RevokeAccessToken(ctx, rawAccess); err != nil {
			s.log.WithError(err).Warn("logout: access token revocation failed")
		}
	}
	if rawRefresh != "" {
		if _, err := s.RevokeRefreshToken(ctx, rawRefresh); err != nil {
			s.log.WithError(err).Warn("logout: refresh token revocation failed")
		}
	}
}

// SweepRevokedTokens purges expired denylist rows. Safe to run repeatedly;
// a second pass with no new expirations removes nothing.
func (s *Service) SweepRevokedTokens(ctx context.Context) (int64, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()
	return s.store.DeleteExpiredRevokedTokens(ctx)
}

func (s *Service) issueTokens(ctx context.Context, tx Datastore, user *model.User) (*AuthResult, error) {
	accessToken, err := s.tokens.SignAccessToken(user)
	if err != nil {
		return nil, err
	}
	refreshToken, expiresAt, err := s.tokens.SignRefreshToken(user)
	if err != nil {
		return nil, err
	}
	session := &model.RefreshSession{
		UserID:    user.ID,
		TokenHash: HashToken(refreshToken),
		ExpiresAt: expiresAt,
	}
	if err := tx.CreateRefreshSession(ctx, session); err != nil {
		return nil, fmt.Errorf("store refresh session: %w", err)
	}
	return &AuthResult{
		User:         user,
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
	}, nil
}

func (s *Service) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.opTimeout <= 0 {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, s.opTimeout)
}

func (s *Service) maskPhone(phone string) string {
	return logger.MaskPhone(phone)
}
