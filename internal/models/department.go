package models

import "time"

type Department struct {
	ID             string    `json:"id" db:"id"`
	OrganizationID string    `json:"organization_id" db:"organization_id"`
	Name           string    `json:"name" db:"name"`
	Description    *string   `json:"description,omitempty" db:"description"`
	MemberCount    int       `json:"member_count" db:"member_count"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

type CreateDepartmentInput struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}
