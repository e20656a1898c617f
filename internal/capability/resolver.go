// Package capability answers "does user U hold capability C in org O".
// It is the single source of truth for authorization: call sites never
// compare role strings themselves.
package capability

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
	"receipts-backend/internal/storage"
)

// Store is the slice of storage the resolver needs.
type Store interface {
	GetActiveMembership(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error)
	GetOrganization(ctx context.Context, id string) (*models.Organization, error)
}

// Cache holds short-lived membership/org snapshots. Nil disables caching.
type Cache interface {
	GetJSON(ctx context.Context, key string, v any) (bool, error)
	SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

// snapshotTTL bounds authorization staleness; mutations also invalidate
// eagerly via InvalidateMembership/InvalidateOrganization.
const snapshotTTL = 30 * time.Second

type Resolver struct {
	store  Store
	cache  Cache
	logger *zap.Logger
}

func NewResolver(store Store, cache Cache, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{store: store, cache: cache, logger: logger}
}

// Allowed is the pure core of the resolver: membership + organization in,
// decision out. No membership means no capability, without exception.
func Allowed(m *models.OrganizationMember, org *models.Organization, cap roles.Capability) bool {
	if m == nil || !m.IsActive || org == nil || org.IsDisabled {
		return false
	}
	return roles.Grants(m.Role, org.IsVerified, cap)
}

// UploadLimit resolves the byte quota for a membership.
func UploadLimit(m *models.OrganizationMember, org *models.Organization) int64 {
	if Allowed(m, org, roles.CapEnhancedUploadQuota) {
		return roles.EnhancedUploadLimit
	}
	return roles.BaseUploadLimit
}

func (r *Resolver) HasCapability(ctx context.Context, userID, orgID string, cap roles.Capability) (bool, error) {
	m, org, err := r.lookup(ctx, userID, orgID)
	if err != nil {
		return false, err
	}
	return Allowed(m, org, cap), nil
}

// ResolveUploadLimit returns the enhanced quota when the membership holds
// enhanced-upload-quota, otherwise the platform baseline.
func (r *Resolver) ResolveUploadLimit(ctx context.Context, userID, orgID string) (int64, error) {
	m, org, err := r.lookup(ctx, userID, orgID)
	if err != nil {
		return 0, err
	}
	return UploadLimit(m, org), nil
}

type memberSnapshot struct {
	Active bool       `json:"active"`
	Role   roles.Role `json:"role"`
}

type orgSnapshot struct {
	Found    bool `json:"found"`
	Verified bool `json:"verified"`
	Disabled bool `json:"disabled"`
}

func memberKey(orgID, userID string) string {
	return fmt.Sprintf("receipts:cap:member:%s:%s", orgID, userID)
}

func orgKey(orgID string) string {
	return fmt.Sprintf("receipts:cap:org:%s", orgID)
}

func (r *Resolver) lookup(ctx context.Context, userID, orgID string) (*models.OrganizationMember, *models.Organization, error) {
	m, err := r.membership(ctx, orgID, userID)
	if err != nil {
		return nil, nil, err
	}
	if m == nil {
		return nil, nil, nil
	}
	org, err := r.organization(ctx, orgID)
	if err != nil {
		return nil, nil, err
	}
	return m, org, nil
}

func (r *Resolver) membership(ctx context.Context, orgID, userID string) (*models.OrganizationMember, error) {
	key := memberKey(orgID, userID)
	if r.cache != nil {
		var snap memberSnapshot
		hit, err := r.cache.GetJSON(ctx, key, &snap)
		if err != nil {
			r.logger.Warn("membership cache read failed", zap.String("org_id", orgID), zap.Error(err))
		} else if hit {
			if !snap.Active {
				return nil, nil
			}
			return &models.OrganizationMember{
				OrganizationID: orgID,
				UserID:         userID,
				Role:           snap.Role,
				IsActive:       true,
			}, nil
		}
	}

	m, err := r.store.GetActiveMembership(ctx, orgID, userID)
	if errors.Is(err, storage.ErrMemberNotFound) {
		r.cacheSet(ctx, key, memberSnapshot{Active: false})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, key, memberSnapshot{Active: true, Role: m.Role})
	return m, nil
}

func (r *Resolver) organization(ctx context.Context, orgID string) (*models.Organization, error) {
	key := orgKey(orgID)
	if r.cache != nil {
		var snap orgSnapshot
		hit, err := r.cache.GetJSON(ctx, key, &snap)
		if err != nil {
			r.logger.Warn("org cache read failed", zap.String("org_id", orgID), zap.Error(err))
		} else if hit {
			if !snap.Found {
				return nil, nil
			}
			return &models.Organization{
				ID:         orgID,
				IsVerified: snap.Verified,
				IsDisabled: snap.Disabled,
			}, nil
		}
	}

	org, err := r.store.GetOrganization(ctx, orgID)
	if errors.Is(err, storage.ErrOrgNotFound) {
		r.cacheSet(ctx, key, orgSnapshot{Found: false})
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	r.cacheSet(ctx, key, orgSnapshot{Found: true, Verified: org.IsVerified, Disabled: org.IsDisabled})
	return org, nil
}

func (r *Resolver) cacheSet(ctx context.Context, key string, v any) {
	if r.cache == nil {
		return
	}
	if err := r.cache.SetJSON(ctx, key, v, snapshotTTL); err != nil {
		r.logger.Warn("cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// InvalidateMembership drops the cached snapshot after any membership
// mutation (accept, role change, removal).
func (r *Resolver) InvalidateMembership(ctx context.Context, orgID, userID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, memberKey(orgID, userID)); err != nil {
		r.logger.Warn("membership cache invalidation failed",
			zap.String("org_id", orgID), zap.Error(err))
	}
}

// InvalidateOrganization drops the cached snapshot after verification or
// disable transitions.
func (r *Resolver) InvalidateOrganization(ctx context.Context, orgID string) {
	if r.cache == nil {
		return
	}
	if err := r.cache.Delete(ctx, orgKey(orgID)); err != nil {
		r.logger.Warn("org cache invalidation failed",
			zap.String("org_id", orgID), zap.Error(err))
	}
}
