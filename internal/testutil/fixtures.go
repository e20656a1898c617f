package testutil

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"receipts-backend/internal/roles"
)

// CreateUser inserts a user row and returns its id.
func CreateUser(t *testing.T, db *sqlx.DB, email, handle string, platformAdmin bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO users (id, email, handle, display_name, password_hash, is_platform_admin)
		 VALUES ($1, $2, $3, $3, 'x', $4)`,
		id, email, handle, platformAdmin,
	)
	if err != nil {
		t.Fatalf("create user fixture: %v", err)
	}
	return id
}

// CreateOrganization inserts an organization row directly, without seeding
// an admin. Use storage.CreateOrganization when the seeded admin matters.
func CreateOrganization(t *testing.T, db *sqlx.DB, name, slug string, verified bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO organizations (id, name, slug, is_verified) VALUES ($1, $2, $3, $4)`,
		id, name, slug, verified,
	)
	if err != nil {
		t.Fatalf("create organization fixture: %v", err)
	}
	return id
}

// CreateMember inserts a membership row and bumps the org member count.
func CreateMember(t *testing.T, db *sqlx.DB, orgID, userID string, role roles.Role, active bool) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO organization_members (id, organization_id, user_id, role, is_active)
		 VALUES ($1, $2, $3, $4, $5)`,
		id, orgID, userID, string(role), active,
	)
	if err != nil {
		t.Fatalf("create member fixture: %v", err)
	}
	if active {
		if _, err := db.Exec(`UPDATE organizations SET member_count = member_count + 1 WHERE id = $1`, orgID); err != nil {
			t.Fatalf("bump member count: %v", err)
		}
	}
	return id
}

// CreateDepartment inserts a department row and returns its id.
func CreateDepartment(t *testing.T, db *sqlx.DB, orgID, name string) string {
	t.Helper()
	id := uuid.NewString()
	_, err := db.Exec(
		`INSERT INTO departments (id, organization_id, name) VALUES ($1, $2, $3)`,
		id, orgID, name,
	)
	if err != nil {
		t.Fatalf("create department fixture: %v", err)
	}
	return id
}

// ExpireInvite rewinds an invite's expiry so acceptance tests can exercise
// the expired path without sleeping.
func ExpireInvite(t *testing.T, db *sqlx.DB, inviteID string) {
	t.Helper()
	_, err := db.Exec(
		`UPDATE organization_invites SET expires_at = $1 WHERE id = $2`,
		time.Now().UTC().Add(-time.Hour), inviteID,
	)
	if err != nil {
		t.Fatalf("expire invite fixture: %v", err)
	}
}
