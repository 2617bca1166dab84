package auth

import "errors"

// Sentinel errors for the authentication flows. Handlers collapse these
// into generic 400/401 messages; internally they stay distinct so tests
// and logs can tell the failure modes apart.
var (
	ErrUserNotFound      = errors.New("user not found")
	ErrUserAlreadyExists = errors.New("user already exists")

	ErrInvalidOrExpiredOtp = errors.New("invalid or expired OTP")
	ErrInvalidOtp          = errors.New("invalid OTP")

	ErrInvalidPassword = errors.New("invalid password")

	ErrInvalidToken              = errors.New("invalid token")
	ErrInvalidRefreshToken       = errors.New("invalid refresh token")
	ErrRefreshTokenNotFound      = errors.New("refresh token not found")
	ErrRefreshTokenReuseDetected = errors.New("refresh token reuse detected")
)
