package models

import "time"

type User struct {
	ID              string    `json:"id" db:"id"`
	Email           string    `json:"email" db:"email"`
	Handle          string    `json:"handle" db:"handle"`
	DisplayName     string    `json:"display_name" db:"display_name"`
	AvatarURL       *string   `json:"avatar_url,omitempty" db:"avatar_url"`
	PasswordHash    string    `json:"-" db:"password_hash"`
	IsPlatformAdmin bool      `json:"is_platform_admin" db:"is_platform_admin"`
	CreatedAt       time.Time `json:"created_at" db:"created_at"`
}
