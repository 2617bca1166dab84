package model

import (
	"time"

	"github.com/google/uuid"
)

// Role is the authorization level attached to a user account.
type Role string

const (
	RoleUser       Role = "USER"
	RoleSubAdmin   Role = "SUB_ADMIN"
	RoleSuperAdmin Role = "SUPER_ADMIN"
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleSubAdmin, RoleSuperAdmin:
		return true
	}
	return false
}

// AtLeast reports whether r grants the capabilities of required.
// SUPER_ADMIN > SUB_ADMIN > USER.
func (r Role) AtLeast(required Role) bool {
	return r.rank() >= required.rank()
}

func (r Role) rank() int {
	switch r {
	case RoleSuperAdmin:
		return 2
	case RoleSubAdmin:
		return 1
	default:
		return 0
	}
}

// OtpPurpose scopes a one-time passcode to the flow it was requested for.
type OtpPurpose string

const (
	OtpPurposeSignup OtpPurpose = "signup"
	OtpPurposeLogin  OtpPurpose = "login"
)

// User represents an account identified by a unique phone number.
type User struct {
	ID           uuid.UUID
	PhoneNumber  string
	PasswordHash string
	Role         Role
	CreatedAt    time.Time
}

// OtpCode is a single one-time passcode issued for a phone number.
// Only the most recently created pending, unexpired code is eligible
// for verification; consumed is a terminal state.
type OtpCode struct {
	ID          uuid.UUID
	PhoneNumber string
	UserID      *uuid.UUID
	CodeHash    string
	Purpose     OtpPurpose
	ExpiresAt   time.Time
	Consumed    bool
	CreatedAt   time.Time
}

// RefreshSession is one live refresh token, stored only by hash.
// Multiple sessions may be live per user (multi-device).
type RefreshSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	TokenHash string
	ExpiresAt time.Time
	RevokedAt *time.Time
	CreatedAt time.Time
}

// Revoked reports whether the session has been rotated away or logged out.
func (s *RefreshSession) Revoked() bool {
	return s.RevokedAt != nil
}

// RevokedAccessToken is a denylist tombstone for an explicitly logged-out
// access token. Rows past ExpiresAt carry no information and are swept.
type RevokedAccessToken struct {
	ID        uuid.UUID
	TokenHash string
	UserID    uuid.UUID
	ExpiresAt time.Time
	CreatedAt time.Time
}
