package storage

import (
	"context"
	"database/sql"

	"receipts-backend/internal/models"
)

const userColumns = `
	id, email, handle, display_name, avatar_url, password_hash, is_platform_admin, created_at`

func (s *Storage) GetUser(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT `+userColumns+`
		FROM users
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	err := s.db.GetContext(ctx, &user, `
		SELECT `+userColumns+`
		FROM users
		WHERE email = $1
	`, email)
	if err == sql.ErrNoRows {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}
