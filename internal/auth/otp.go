package auth

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/bazarcheh/auth-service/internal/model"
)

// OtpLength is the number of digits in a passcode. Leading zeros are
// valid: the code is drawn uniformly over the full digit space.
const OtpLength = 4

// GenerateOtpCode returns a fixed-length numeric code from crypto/rand.
func GenerateOtpCode(length int) (string, error) {
	code := make([]byte, 0, length)
	for i := 0; i < length; i++ {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			return "", fmt.Errorf("generate OTP digit: %w", err)
		}
		code = append(code, byte('0'+n.Int64()))
	}
	return string(code), nil
}

// RequestOtp validates the purpose precondition, generates a passcode,
// stores its bcrypt hash with expiry and returns the plaintext code.
// Exposing the code to the caller is a development convenience; the
// handler suppresses it in production. Earlier unconsumed codes are left
// untouched, but verification only ever considers the newest one.
func (s *Service) RequestOtp(ctx context.Context, phone string, purpose model.OtpPurpose) (string, error) {
	ctx, cancel := s.opContext(ctx)
	defer cancel()

	user, err := s.store.GetUserByPhone(ctx, phone)
	if err != nil {
		return "", fmt.Errorf("look up user: %w", err)
	}
	switch purpose {
	case model.OtpPurposeLogin:
		if user == nil {
			return "", ErrUserNotFound
		}
	case model.OtpPurposeSignup:
		if user != nil {
			return "", ErrUserAlreadyExists
		}
	default:
		return "", fmt.Errorf("unknown OTP purpose %q", purpose)
	}

	code, err := GenerateOtpCode(OtpLength)
	if err != nil {
		return "", err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("hash OTP: %w", err)
	}

	otp := &model.OtpCode{
		PhoneNumber: phone,
		CodeHash:    string(hash),
		Purpose:     purpose,
		ExpiresAt:   time.Now().Add(s.otpTTL),
	}
	if user != nil {
		otp.UserID = &user.ID
	}
	if err := s.store.CreateOtp(ctx, otp); err != nil {
		return "", fmt.Errorf("store OTP: %w", err)
	}

	s.log.WithField("phone", s.maskPhone(phone)).Info("OTP issued")
	return code, nil
}

// consumeOtp verifies the code against the newest pending passcode for
// the phone and marks it consumed. The consume is a conditional update,
// so a code can satisfy verification exactly once even under concurrent
// submissions.
func (s *Service) consumeOtp(ctx context.Context, store Datastore, phone, code string) error {
	otp, err := store.LatestPendingOtp(ctx, phone)
	if err != nil {
		return fmt.Errorf("look up OTP: %w", err)
	}
	if otp == nil {
		return ErrInvalidOrExpiredOtp
	}

	if err := bcrypt.CompareHashAndPassword([]byte(otp.CodeHash), []byte(code)); err != nil {
		return ErrInvalidOtp
	}

	consumed, err := store.ConsumeOtp(ctx, otp.ID)
	if err != nil {
		return fmt.Errorf("consume OTP: %w", err)
	}
	if !consumed {
		// Another request burned this code first.
		return ErrInvalidOrExpiredOtp
	}
	return nil
}
