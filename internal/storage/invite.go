package storage

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/hex"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

// InviteLifetime is how long an invitation stays redeemable.
const InviteLifetime = 7 * 24 * time.Hour

const inviteColumns = `
	id, organization_id, email, role, department_id, token_hash,
	invited_by_id, expires_at, accepted_at, created_at`

// GenerateInviteToken returns a fresh bearer token and the hash stored in
// its place. 32 bytes of entropy, base64url encoded; at rest only the
// SHA-256 hex digest survives, so a database compromise cannot replay
// outstanding invitations.
func GenerateInviteToken() (token, hash string, err error) {
	raw := make([]byte, 32)
	if _, err = rand.Read(raw); err != nil {
		return "", "", err
	}
	token = base64.RawURLEncoding.EncodeToString(raw)
	return token, HashInviteToken(token), nil
}

func HashInviteToken(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}

// CreateInvite issues an invitation and returns it together with the raw
// token. A pending invite for the same (org, email) is replaced.
func (s *Storage) CreateInvite(ctx context.Context, orgID, invitedByID string, email string, role roles.Role, departmentID *string) (*models.CreateInviteResponse, error) {
	token, hash, err := GenerateInviteToken()
	if err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		DELETE FROM organization_invites
		WHERE organization_id = $1 AND email = $2 AND accepted_at IS NULL
	`, orgID, email); err != nil {
		return nil, err
	}

	var invite models.OrganizationInvite
	err = tx.QueryRowxContext(ctx, `
		INSERT INTO organization_invites (
			organization_id, email, role, department_id,
			token_hash, invited_by_id, expires_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING `+inviteColumns,
		orgID, email, role, departmentID, hash, invitedByID, time.Now().UTC().Add(InviteLifetime),
	).StructScan(&invite)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("invite created",
		zap.String("org_id", orgID),
		zap.String("invite_id", invite.ID),
		zap.String("role", string(role)))

	return &models.CreateInviteResponse{OrganizationInvite: invite, Token: token}, nil
}

// GetInviteByToken resolves a raw token to its pending invite. A token
// that never existed and one that does not match any hash are
// indistinguishable: both return ErrInviteNotFound.
func (s *Storage) GetInviteByToken(ctx context.Context, token string) (*models.OrganizationInvite, error) {
	var invite models.OrganizationInvite
	err := s.db.GetContext(ctx, &invite, `
		SELECT `+inviteColumns+`
		FROM organization_invites
		WHERE token_hash = $1
	`, HashInviteToken(token))
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}

	if invite.AcceptedAt != nil {
		return nil, ErrInviteAlreadyAccepted
	}
	if !invite.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrInviteExpired
	}
	return &invite, nil
}

// AcceptInvite consumes a token and creates (or reactivates) the
// membership in one transaction. Acceptance is exactly-once: the invite
// row is claimed with a conditional update on accepted_at, so of N
// concurrent attempts exactly one succeeds and the rest observe
// ErrInviteAlreadyAccepted.
func (s *Storage) AcceptInvite(ctx context.Context, token, userID string) (*models.OrganizationMember, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	var invite models.OrganizationInvite
	err = tx.GetContext(ctx, &invite, `
		SELECT `+inviteColumns+`
		FROM organization_invites
		WHERE token_hash = $1
		FOR UPDATE
	`, HashInviteToken(token))
	if err == sql.ErrNoRows {
		return nil, ErrInviteNotFound
	}
	if err != nil {
		return nil, err
	}

	if invite.AcceptedAt != nil {
		return nil, ErrInviteAlreadyAccepted
	}
	if !invite.ExpiresAt.After(time.Now().UTC()) {
		return nil, ErrInviteExpired
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE organization_invites
		SET accepted_at = now()
		WHERE id = $1 AND accepted_at IS NULL
	`, invite.ID)
	if err != nil {
		return nil, err
	}
	claimed, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if claimed == 0 {
		return nil, ErrInviteAlreadyAccepted
	}

	member, err := upsertMembership(ctx, tx, invite, userID)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	s.logger.Info("invite accepted",
		zap.String("org_id", invite.OrganizationID),
		zap.String("user_id", userID),
		zap.String("role", string(invite.Role)))
	return member, nil
}

// upsertMembership creates the membership row for an accepted invite, or
// reactivates a previously removed one with the invited role. An existing
// active membership aborts the transaction so the token is not consumed.
func upsertMembership(ctx context.Context, tx *sqlx.Tx, invite models.OrganizationInvite, userID string) (*models.OrganizationMember, error) {
	var existing models.OrganizationMember
	err := tx.GetContext(ctx, &existing, `
		SELECT `+memberColumns+`
		FROM organization_members
		WHERE organization_id = $1 AND user_id = $2
		FOR UPDATE
	`, invite.OrganizationID, userID)

	var member models.OrganizationMember
	switch {
	case err == sql.ErrNoRows:
		err = tx.QueryRowxContext(ctx, `
			INSERT INTO organization_members (organization_id, user_id, department_id, role, is_active)
			VALUES ($1, $2, $3, $4, true)
			RETURNING `+memberColumns,
			invite.OrganizationID, userID, invite.DepartmentID, invite.Role,
		).StructScan(&member)
		if err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	case existing.IsActive:
		return nil, ErrDuplicateMember
	default:
		err = tx.QueryRowxContext(ctx, `
			UPDATE organization_members
			SET is_active = true, role = $3, department_id = $4, updated_at = now()
			WHERE organization_id = $1 AND user_id = $2
			RETURNING `+memberColumns,
			invite.OrganizationID, userID, invite.Role, invite.DepartmentID,
		).StructScan(&member)
		if err != nil {
			return nil, err
		}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE organizations
		SET member_count = member_count + 1, updated_at = now()
		WHERE id = $1
	`, invite.OrganizationID); err != nil {
		return nil, err
	}

	return &member, nil
}
