package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"receipts-backend/internal/events"
	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

// CreateInvite sends an organization invitation
// @Summary Invite a member
// @Description Requires invite-members. The raw token appears in this response only and is never recoverable afterwards. A pending invite for the same email is replaced.
// @Tags invites
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param invite body models.CreateInviteInput true "Invitee"
// @Success 201 {object} models.CreateInviteResponse
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]interface{} "Capability or ceiling violation"
// @Security BearerAuth
// @Router /v1/organizations/{id}/invites [post]
func (h *Handler) CreateInvite(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")

	if !h.requireCapability(w, r, actorID, orgID, roles.CapInviteMembers) {
		return
	}

	var input models.CreateInviteInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	if input.Email == "" || !strings.Contains(input.Email, "@") {
		writeValidationError(w, "a valid email is required")
		return
	}

	role := roles.DefaultRole
	if input.Role != "" {
		parsed, err := roles.Parse(input.Role)
		if err != nil {
			writeValidationError(w, "unknown role: "+input.Role)
			return
		}
		role = parsed
	}

	actorRole, ok := h.actorMembership(w, r, orgID, actorID)
	if !ok {
		return
	}
	if role.Outranks(actorRole) {
		writeForbidden(w, "cannot invite to a role above your own")
		return
	}

	if input.DepartmentID != nil {
		if _, err := h.store.GetDepartment(r.Context(), orgID, *input.DepartmentID); err != nil {
			h.writeStorageError(w, "check invite department", err)
			return
		}
	}

	invite, err := h.store.CreateInvite(r.Context(), orgID, actorID, input.Email, role, input.DepartmentID)
	if err != nil {
		h.writeStorageError(w, "create invite", err)
		return
	}

	h.publish(r.Context(), events.SubjectInviteSent, events.Event{
		OrgID:   orgID,
		ActorID: actorID,
		Email:   invite.Email,
		Role:    string(invite.Role),
	})
	writeJSON(w, http.StatusCreated, invite)
}

// PreviewInvite shows what a pending invite is for
// @Summary Preview an invite
// @Description Public acceptance-page lookup. Reveals nothing for unknown tokens.
// @Tags invites
// @Produce json
// @Param token path string true "Raw invite token"
// @Success 200 {object} models.InvitePreview
// @Failure 404 {object} map[string]interface{} "Invite not found or already used"
// @Failure 410 {object} map[string]interface{} "Expired"
// @Router /v1/invites/{token} [get]
func (h *Handler) PreviewInvite(w http.ResponseWriter, r *http.Request) {
	invite, err := h.store.GetInviteByToken(r.Context(), chi.URLParam(r, "token"))
	if err != nil {
		h.writeStorageError(w, "preview invite", err)
		return
	}

	org, err := h.store.GetOrganization(r.Context(), invite.OrganizationID)
	if err != nil {
		h.writeStorageError(w, "preview invite organization", err)
		return
	}

	writeJSON(w, http.StatusOK, models.InvitePreview{
		OrganizationID:   org.ID,
		OrganizationName: org.Name,
		Email:            invite.Email,
		Role:             invite.Role,
		ExpiresAt:        invite.ExpiresAt,
	})
}

// AcceptInvite redeems an invite token
// @Summary Accept an invite
// @Description Exactly-once redemption. Concurrent attempts on the same token yield one membership and one success.
// @Tags invites
// @Produce json
// @Param token path string true "Raw invite token"
// @Success 201 {object} models.OrganizationMember
// @Failure 404 {object} map[string]interface{} "Invite not found or already used"
// @Failure 409 {object} map[string]interface{} "Already an active member"
// @Failure 410 {object} map[string]interface{} "Expired"
// @Security BearerAuth
// @Router /v1/invites/{token}/accept [post]
func (h *Handler) AcceptInvite(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	member, err := h.store.AcceptInvite(r.Context(), chi.URLParam(r, "token"), userID)
	if err != nil {
		h.writeStorageError(w, "accept invite", err)
		return
	}

	h.resolver.InvalidateMembership(r.Context(), member.OrganizationID, userID)
	h.resolver.InvalidateOrganization(r.Context(), member.OrganizationID)
	h.publish(r.Context(), events.SubjectInviteAccepted, events.Event{
		OrgID:     member.OrganizationID,
		SubjectID: userID,
		Role:      string(member.Role),
	})
	writeJSON(w, http.StatusCreated, member)
}
