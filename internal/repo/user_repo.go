package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/bazarcheh/auth-service/internal/model"
)

// CreateUser inserts a new user. The unique index on phone_number is the
// final arbiter against concurrent signups.
func (s *Store) CreateUser(ctx context.Context, u *model.User) error {
	var idStr string
	err := s.q.QueryRowContext(ctx, `
		INSERT INTO users (phone_number, password_hash, role)
		VALUES ($1, $2, $3)
		RETURNING id, created_at
	`, u.PhoneNumber, u.PasswordHash, string(u.Role)).Scan(&idStr, &u.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return fmt.Errorf("parse user ID: %w", err)
	}
	return nil
}

// GetUserByPhone returns the user owning the phone number, or nil.
func (s *Store) GetUserByPhone(ctx context.Context, phone string) (*model.User, error) {
	return s.getUser(ctx, `
		SELECT id, phone_number, password_hash, role, created_at
		FROM users
		WHERE phone_number = $1
	`, phone)
}

// GetUserByID returns the user with the given id, or nil.
func (s *Store) GetUserByID(ctx context.Context, id uuid.UUID) (*model.User, error) {
	return s.getUser(ctx, `
		SELECT id, phone_number, password_hash, role, created_at
		FROM users
		WHERE id = $1
	`, id.String())
}

func (s *Store) getUser(ctx context.Context, query string, arg any) (*model.User, error) {
	var u model.User
	var idStr, role string
	err := s.q.QueryRowContext(ctx, query, arg).Scan(
		&idStr,
		&u.PhoneNumber,
		&u.PasswordHash,
		&role,
		&u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return nil, fmt.Errorf("parse user ID: %w", err)
	}
	u.Role = model.Role(role)
	return &u, nil
}
