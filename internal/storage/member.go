package storage

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

const memberColumns = `
	id, organization_id, user_id, department_id, role, is_active, joined_at, updated_at`

// GetActiveMembership returns the active membership for (orgID, userID),
// or ErrMemberNotFound. A user has at most one membership row per org.
func (s *Storage) GetActiveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error) {
	var m models.OrganizationMember
	err := s.db.GetContext(ctx, &m, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2 AND is_active = true
	`, orgID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

func (s *Storage) ListMembers(ctx context.Context, orgID string, includeInactive bool) ([]models.MemberView, error) {
	members := make([]models.MemberView, 0)
	err := s.db.SelectContext(ctx, &members, `
		SELECT m.user_id, u.handle, u.display_name, u.avatar_url,
		       m.role, m.department_id, d.name AS department_name, m.joined_at
		FROM organization_members m
		JOIN users u ON u.id = m.user_id
		LEFT JOIN departments d ON d.id = m.department_id
		WHERE m.organization_id = $1 AND (m.is_active = true OR $2)
		ORDER BY m.joined_at
	`, orgID, includeInactive)
	return members, err
}

// UpdateMemberRole changes an active member's role. The admin-count check
// and the mutation happen under row locks so two concurrent "demote the
// last admin" requests cannot both succeed.
func (s *Storage) UpdateMemberRole(ctx context.Context, orgID, userID string, newRole roles.Role) (*models.OrganizationMember, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	admins, err := lockActiveAdmins(ctx, tx, orgID)
	if err != nil {
		return nil, err
	}

	var m models.OrganizationMember
	err = tx.GetContext(ctx, &m, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2 AND is_active = true
		FOR UPDATE
	`, orgID, userID)
	if err == sql.ErrNoRows {
		return nil, ErrMemberNotFound
	}
	if err != nil {
		return nil, err
	}

	if m.Role == roles.RoleAdmin && newRole != roles.RoleAdmin && len(admins) <= 1 {
		return nil, ErrLastAdmin
	}

	err = tx.QueryRowxContext(ctx, `
		UPDATE organization_members
		SET role = $3, updated_at = now()
		WHERE organization_id = $1 AND user_id = $2
		RETURNING `+memberColumns,
		orgID, userID, newRole,
	).StructScan(&m)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("member role updated",
		zap.String("org_id", orgID),
		zap.String("user_id", userID),
		zap.String("role", string(newRole)))
	return &m, nil
}

// RemoveMember soft-deletes a membership. The row is kept for audit.
func (s *Storage) RemoveMember(ctx context.Context, orgID, userID string) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	admins, err := lockActiveAdmins(ctx, tx, orgID)
	if err != nil {
		return err
	}

	var m models.OrganizationMember
	err = tx.GetContext(ctx, &m, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2 AND is_active = true
		FOR UPDATE
	`, orgID, userID)
	if err == sql.ErrNoRows {
		return ErrMemberNotFound
	}
	if err != nil {
		return err
	}

	if m.Role == roles.RoleAdmin && len(admins) <= 1 {
		return ErrLastAdmin
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE organization_members
		SET is_active = false, updated_at = now()
		WHERE organization_id = $1 AND user_id = $2
	`, orgID, userID); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE organizations
		SET member_count = greatest(member_count - 1, 0), updated_at = now()
		WHERE id = $1
	`, orgID); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return err
	}

	s.logger.Info("member removed",
		zap.String("org_id", orgID),
		zap.String("user_id", userID))
	return nil
}

// lockActiveAdmins locks the organization's active admin rows in a stable
// order and returns their user ids. Callers use the count to enforce the
// at-least-one-admin invariant inside the same transaction.
func lockActiveAdmins(ctx context.Context, tx *sqlx.Tx, orgID string) ([]string, error) {
	admins := make([]string, 0, 4)
	err := tx.SelectContext(ctx, &admins, `
		SELECT user_id
		FROM organization_members
		WHERE organization_id = $1 AND role = $2 AND is_active = true
		ORDER BY user_id
		FOR UPDATE
	`, orgID, roles.RoleAdmin)
	return admins, err
}
