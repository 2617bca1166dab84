package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazarcheh/auth-service/internal/model"
)

// CreateOtp inserts a new passcode row. Older unconsumed codes for the
// same phone number are left alone; only the newest one is ever eligible
// for verification.
func (s *Store) CreateOtp(ctx context.Context, o *model.OtpCode) error {
	var userID any
	if o.UserID != nil {
		userID = o.UserID.String()
	}
	var idStr string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO otp_codes (phone_number, user_id, code_hash, purpose, expires_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`, o.PhoneNumber, userID, o.CodeHash, string(o.Purpose), o.ExpiresAt).Scan(&idStr, &o.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert OTP: %w", err)
	}
	o.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse OTP ID: %w", err)
	}
	return nil
}

// LatestPendingOtp returns the most recently created unconsumed,
// unexpired code for the phone number, or nil.
func (s *Store) LatestPendingOtp(ctx context.Context, phone string) (*model.OtpCode, error) {
	var o model.OtpCode
	var idStr, purpose string
	var userIDStr sql.NullString
	err := s.q.QueryRowContext(ctx, `
		SELECT id, phone_number, user_id, code_hash, purpose, expires_at, consumed, created_at
		FROM otp_codes
		WHERE phone_number = $1
		  AND consumed = FALSE
		  AND expires_at >= now()
		ORDER BY created_at DESC
		LIMIT 1
	`, phone).Scan(
		&idStr,
		&o.PhoneNumber,
		&userIDStr,
		&o.CodeHash,
		&purpose,
		&o.ExpiresAt,
		&o.Consumed,
		&o.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query OTP: %w", err)
	}
	o.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse OTP ID: %w", err)
	}
	o.Purpose = model.OtpPurpose(purpose)
	if userIDStr.Valid {
		uid, err := uuid.Parse(userIDStr.String)
		if err != nil {
			return nil, fmt.Errorf("parse OTP user ID: %w", err)
		}
		o.UserID = &uid
	}
	return &o, nil
}

// ConsumeOtp flips the code to its terminal consumed state. The condition
// makes the transition happen at most once across concurrent callers.
func (s *Store) ConsumeOtp(ctx context.Context, id uuid.UUID) (bool, error) {
	result, err := s.q.ExecContext(ctx, `
		UPDATE otp_codes SET consumed = TRUE WHERE id = $1 AND consumed = FALSE
	`, id.String())
	if err != nil {
		return false, fmt.Errorf("consume OTP: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("consume OTP rows: %w", err)
	}
	return n > 0, nil
}
