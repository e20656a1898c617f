package models

import (
	"time"

	"receipts-backend/internal/roles"
)

// OrganizationMember is the relation row between a user and an
// organization. Removal flips is_active instead of deleting so membership
// history remains available for audit.
type OrganizationMember struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	UserID         string     `json:"user_id" db:"user_id"`
	DepartmentID   *string    `json:"department_id,omitempty" db:"department_id"`
	Role           roles.Role `json:"role" db:"role"`
	IsActive       bool       `json:"is_active" db:"is_active"`
	JoinedAt       time.Time  `json:"joined_at" db:"joined_at"`
	UpdatedAt      time.Time  `json:"updated_at" db:"updated_at"`
}

// MemberView is what member listings return: the membership joined with
// the user profile and department name.
type MemberView struct {
	UserID         string     `json:"user_id" db:"user_id"`
	Handle         string     `json:"handle" db:"handle"`
	DisplayName    string     `json:"display_name" db:"display_name"`
	AvatarURL      *string    `json:"avatar_url,omitempty" db:"avatar_url"`
	Role           roles.Role `json:"role" db:"role"`
	DepartmentID   *string    `json:"department_id,omitempty" db:"department_id"`
	DepartmentName *string    `json:"department_name,omitempty" db:"department_name"`
	JoinedAt       time.Time  `json:"joined_at" db:"joined_at"`
}

type UpdateMemberRoleInput struct {
	Role string `json:"role"`
}
