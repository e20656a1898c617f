package models

import (
	"time"

	"receipts-backend/internal/roles"
)

// OrganizationInvite is a pending invitation. Only the SHA-256 hash of the
// token is stored; the raw token is returned once at creation and is
// unrecoverable afterwards.
type OrganizationInvite struct {
	ID             string     `json:"id" db:"id"`
	OrganizationID string     `json:"organization_id" db:"organization_id"`
	Email          string     `json:"email" db:"email"`
	Role           roles.Role `json:"role" db:"role"`
	DepartmentID   *string    `json:"department_id,omitempty" db:"department_id"`
	TokenHash      string     `json:"-" db:"token_hash"`
	InvitedByID    string     `json:"invited_by_id" db:"invited_by_id"`
	ExpiresAt      time.Time  `json:"expires_at" db:"expires_at"`
	AcceptedAt     *time.Time `json:"accepted_at,omitempty" db:"accepted_at"`
	CreatedAt      time.Time  `json:"created_at" db:"created_at"`
}

type CreateInviteInput struct {
	Email        string  `json:"email"`
	Role         string  `json:"role"`
	DepartmentID *string `json:"department_id,omitempty"`
}

// CreateInviteResponse carries the raw token alongside the persisted
// invite. This is the only moment the token exists outside the caller.
type CreateInviteResponse struct {
	OrganizationInvite
	Token string `json:"token"`
}

// InvitePreview is the public shape shown on the acceptance page.
type InvitePreview struct {
	OrganizationID   string     `json:"organization_id"`
	OrganizationName string     `json:"organization_name"`
	Email            string     `json:"email"`
	Role             roles.Role `json:"role"`
	ExpiresAt        time.Time  `json:"expires_at"`
}
