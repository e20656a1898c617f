package storage

import (
	"context"
	"database/sql"
	"strings"

	"go.uber.org/zap"

	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

const organizationColumns = `
	id, name, slug, description, logo_url, website_url,
	is_verified, is_disabled, member_count, created_at, updated_at`

// CreateOrganization inserts the organization and seeds the creator as its
// admin in the same transaction. An org is never without an active admin,
// from the very first row.
func (s *Storage) CreateOrganization(ctx context.Context, creatorID string, input models.CreateOrganizationInput) (*models.Organization, error) {
	slug := strings.ToLower(strings.TrimSpace(input.Slug))

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var org models.Organization
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO organizations (name, slug, description, logo_url, website_url, member_count)
		VALUES ($1, $2, $3, $4, $5, 1)
		RETURNING `+organizationColumns,
		input.Name, slug, input.Description, input.LogoURL, input.WebsiteURL,
	).StructScan(&org)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrSlugTaken
		}
		return nil, err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO organization_members (organization_id, user_id, role, is_active)
		VALUES ($1, $2, $3, true)
	`, org.ID, creatorID, roles.RoleAdmin)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("organization created",
		zap.String("org_id", org.ID),
		zap.String("slug", org.Slug))
	return &org, nil
}

func (s *Storage) GetOrganization(ctx context.Context, id string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.GetContext(ctx, &org, `
		SELECT `+organizationColumns+`
		FROM organizations
		WHERE id = $1
	`, id)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Storage) GetOrganizationBySlug(ctx context.Context, slug string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.GetContext(ctx, &org, `
		SELECT `+organizationColumns+`
		FROM organizations
		WHERE lower(slug) = lower($1)
	`, slug)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

func (s *Storage) ListVerifiedOrganizations(ctx context.Context, limit, offset int) ([]models.Organization, error) {
	orgs := make([]models.Organization, 0)
	err := s.db.SelectContext(ctx, &orgs, `
		SELECT `+organizationColumns+`
		FROM organizations
		WHERE is_verified = true AND is_disabled = false
		ORDER BY name
		LIMIT $1 OFFSET $2
	`, limit, offset)
	return orgs, err
}

// UpdateOrganization applies org-admin editable fields. Verification and
// slug are not part of the input type, so they cannot change here.
func (s *Storage) UpdateOrganization(ctx context.Context, orgID string, input models.UpdateOrganizationInput) (*models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRowxContext(ctx, `
		UPDATE organizations
		SET name        = COALESCE($2, name),
		    description = COALESCE($3, description),
		    logo_url    = COALESCE($4, logo_url),
		    website_url = COALESCE($5, website_url),
		    updated_at  = now()
		WHERE id = $1
		RETURNING `+organizationColumns,
		orgID, input.Name, input.Description, input.LogoURL, input.WebsiteURL,
	).StructScan(&org)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}
	return &org, nil
}

// VerifyOrganization performs the out-of-band false->true verification
// transition. Only the platform admin surface calls this; no org-scoped
// path reaches it.
func (s *Storage) VerifyOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRowxContext(ctx, `
		UPDATE organizations
		SET is_verified = true, updated_at = now()
		WHERE id = $1
		RETURNING `+organizationColumns,
		orgID,
	).StructScan(&org)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization verified", zap.String("org_id", orgID))
	return &org, nil
}

// DisableOrganization soft-disables an organization. Rows are never hard
// deleted in this core.
func (s *Storage) DisableOrganization(ctx context.Context, orgID string) (*models.Organization, error) {
	var org models.Organization
	err := s.db.QueryRowxContext(ctx, `
		UPDATE organizations
		SET is_disabled = true, updated_at = now()
		WHERE id = $1
		RETURNING `+organizationColumns,
		orgID,
	).StructScan(&org)
	if err == sql.ErrNoRows {
		return nil, ErrOrgNotFound
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("organization disabled", zap.String("org_id", orgID))
	return &org, nil
}
