package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"regexp"
	"strconv"

	"github.com/go-chi/chi/v5"

	"receipts-backend/internal/events"
	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

var slugPattern = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)

const (
	defaultListLimit = 20
	maxListLimit     = 100
)

// CreateOrganization creates a newsroom organization
// @Summary Create organization
// @Description Creates an organization and seeds the creator as its admin. Requires platform-admin.
// @Tags organizations
// @Accept json
// @Produce json
// @Param organization body models.CreateOrganizationInput true "Organization fields"
// @Success 201 {object} models.Organization
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]interface{} "Not a platform admin"
// @Failure 409 {object} map[string]interface{} "Slug already taken"
// @Security BearerAuth
// @Router /v1/organizations [post]
func (h *Handler) CreateOrganization(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	// Org roles do not exist until the org exists; creation is gated on
	// the platform-level admin flag instead.
	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.writeStorageError(w, "load user", err)
		return
	}
	if !user.IsPlatformAdmin {
		writeForbidden(w, "platform admin required")
		return
	}

	var input models.CreateOrganizationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}
	if input.Name == "" {
		writeValidationError(w, "name is required")
		return
	}
	if !slugPattern.MatchString(input.Slug) {
		writeValidationError(w, "slug must be lowercase letters, digits and hyphens")
		return
	}

	org, err := h.store.CreateOrganization(r.Context(), userID, input)
	if err != nil {
		h.writeStorageError(w, "create organization", err)
		return
	}

	h.publish(r.Context(), events.SubjectOrgCreated, events.Event{OrgID: org.ID, ActorID: userID})
	writeJSON(w, http.StatusCreated, org)
}

// UpdateOrganization updates mutable organization fields
// @Summary Update organization
// @Description Updates name, description and links. Slug and verification status are not accepted on this path.
// @Tags organizations
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param organization body models.UpdateOrganizationInput true "Fields to update"
// @Success 200 {object} models.Organization
// @Failure 403 {object} map[string]interface{} "Missing manage-org-settings"
// @Failure 404 {object} map[string]interface{} "Organization not found"
// @Security BearerAuth
// @Router /v1/organizations/{id} [patch]
func (h *Handler) UpdateOrganization(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")

	if !h.requireCapability(w, r, userID, orgID, roles.CapManageOrgSettings) {
		return
	}

	var input models.UpdateOrganizationInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}

	org, err := h.store.UpdateOrganization(r.Context(), orgID, input)
	if err != nil {
		h.writeStorageError(w, "update organization", err)
		return
	}

	h.resolver.InvalidateOrganization(r.Context(), orgID)
	writeJSON(w, http.StatusOK, org)
}

// GetOrganizationBySlug returns an organization's public profile
// @Summary Get organization by slug
// @Tags organizations
// @Produce json
// @Param slug path string true "Organization slug"
// @Success 200 {object} models.Organization
// @Failure 404 {object} map[string]interface{} "Organization not found"
// @Router /v1/organizations/{slug} [get]
func (h *Handler) GetOrganizationBySlug(w http.ResponseWriter, r *http.Request) {
	org, err := h.store.GetOrganizationBySlug(r.Context(), chi.URLParam(r, "slug"))
	if err != nil {
		h.writeStorageError(w, "get organization by slug", err)
		return
	}
	writeJSON(w, http.StatusOK, org)
}

// ListOrganizations lists verified organizations
// @Summary List verified organizations
// @Tags organizations
// @Produce json
// @Param limit query int false "Page size (max 100)"
// @Param offset query int false "Offset"
// @Success 200 {object} map[string]interface{} "Organization list"
// @Router /v1/organizations [get]
func (h *Handler) ListOrganizations(w http.ResponseWriter, r *http.Request) {
	limit, offset := pagination(r)

	orgs, err := h.store.ListVerifiedOrganizations(r.Context(), limit, offset)
	if err != nil {
		h.writeStorageError(w, "list organizations", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"organizations": orgs,
		"limit":         limit,
		"offset":        offset,
	})
}

// VerifyOrganization flips is_verified true
// @Summary Verify organization (platform admin)
// @Description The only path that sets is_verified. Org-scoped updates cannot reach this field.
// @Tags admin
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} models.Organization
// @Failure 403 {object} map[string]interface{} "Not a platform admin"
// @Failure 404 {object} map[string]interface{} "Organization not found"
// @Security BearerAuth
// @Router /v1/admin/organizations/{id}/verify [post]
func (h *Handler) VerifyOrganization(w http.ResponseWriter, r *http.Request) {
	h.platformAdminAction(w, r, events.SubjectOrgVerified, h.store.VerifyOrganization)
}

// DisableOrganization soft-disables an organization
// @Summary Disable organization (platform admin)
// @Description Soft-disable. Members keep their rows but resolve no capabilities while disabled.
// @Tags admin
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} models.Organization
// @Failure 403 {object} map[string]interface{} "Not a platform admin"
// @Failure 404 {object} map[string]interface{} "Organization not found"
// @Security BearerAuth
// @Router /v1/admin/organizations/{id}/disable [post]
func (h *Handler) DisableOrganization(w http.ResponseWriter, r *http.Request) {
	h.platformAdminAction(w, r, events.SubjectOrgDisabled, h.store.DisableOrganization)
}

func (h *Handler) platformAdminAction(w http.ResponseWriter, r *http.Request, subject string, fn func(ctx context.Context, orgID string) (*models.Organization, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		h.writeStorageError(w, "load user", err)
		return
	}
	if !user.IsPlatformAdmin {
		writeForbidden(w, "platform admin required")
		return
	}

	orgID := chi.URLParam(r, "id")
	org, err := fn(r.Context(), orgID)
	if err != nil {
		h.writeStorageError(w, "admin organization action", err)
		return
	}

	h.resolver.InvalidateOrganization(r.Context(), orgID)
	h.publish(r.Context(), subject, events.Event{OrgID: orgID, ActorID: userID})
	writeJSON(w, http.StatusOK, org)
}

func pagination(r *http.Request) (limit, offset int) {
	limit = defaultListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	if raw := r.URL.Query().Get("offset"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n >= 0 {
			offset = n
		}
	}
	return limit, offset
}
