package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"receipts-backend/internal/events"
	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

// ListMembers lists an organization's active members
// @Summary List members
// @Description Member-only read. Returns active memberships joined with user profiles.
// @Tags members
// @Produce json
// @Param id path string true "Organization ID"
// @Param include_inactive query bool false "Include removed members (audit view)"
// @Success 200 {object} map[string]interface{} "Member list"
// @Failure 403 {object} map[string]interface{} "Not a member"
// @Security BearerAuth
// @Router /v1/organizations/{id}/members [get]
func (h *Handler) ListMembers(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")

	// Any active member may read the roster; no capability beyond
	// membership itself.
	if _, ok := h.actorMembership(w, r, orgID, userID); !ok {
		return
	}

	includeInactive := r.URL.Query().Get("include_inactive") == "true"
	members, err := h.store.ListMembers(r.Context(), orgID, includeInactive)
	if err != nil {
		h.writeStorageError(w, "list members", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"members": members})
}

// UpdateMemberRole changes a member's role
// @Summary Update member role
// @Description Requires manage-members. Actors cannot set a role above their own and cannot edit their own role.
// @Tags members
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param userId path string true "Target user ID"
// @Param role body models.UpdateMemberRoleInput true "New role"
// @Success 200 {object} models.OrganizationMember
// @Failure 400 {object} map[string]interface{} "Unknown role"
// @Failure 403 {object} map[string]interface{} "Capability or ceiling violation"
// @Failure 404 {object} map[string]interface{} "Member not found"
// @Failure 409 {object} map[string]interface{} "Would leave zero admins"
// @Security BearerAuth
// @Router /v1/organizations/{id}/members/{userId} [patch]
func (h *Handler) UpdateMemberRole(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")
	targetID := chi.URLParam(r, "userId")

	if actorID == targetID {
		h.rejectSelfRoleEdit(w, r, orgID, actorID)
		return
	}

	if !h.requireCapability(w, r, actorID, orgID, roles.CapManageMembers) {
		return
	}

	var input models.UpdateMemberRoleInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}
	newRole, err := roles.Parse(input.Role)
	if err != nil {
		writeValidationError(w, "unknown role: "+input.Role)
		return
	}

	actorRole, ok := h.actorMembership(w, r, orgID, actorID)
	if !ok {
		return
	}
	if newRole.Outranks(actorRole) {
		writeForbidden(w, "cannot assign a role above your own")
		return
	}

	member, err := h.store.UpdateMemberRole(r.Context(), orgID, targetID, newRole)
	if err != nil {
		h.writeStorageError(w, "update member role", err)
		return
	}

	h.resolver.InvalidateMembership(r.Context(), orgID, targetID)
	h.publish(r.Context(), events.SubjectMemberRoleChanged, events.Event{
		OrgID:     orgID,
		ActorID:   actorID,
		SubjectID: targetID,
		Role:      string(newRole),
	})
	writeJSON(w, http.StatusOK, member)
}

// rejectSelfRoleEdit answers a member's attempt to change their own role.
// Forbidden in general (anti-self-escalation); Conflict when the actor is
// the organization's sole active admin, since no other admin exists to act.
func (h *Handler) rejectSelfRoleEdit(w http.ResponseWriter, r *http.Request, orgID, actorID string) {
	actorRole, ok := h.actorMembership(w, r, orgID, actorID)
	if !ok {
		return
	}
	if actorRole == roles.RoleAdmin {
		members, err := h.store.ListMembers(r.Context(), orgID, false)
		if err != nil {
			h.writeStorageError(w, "count active admins", err)
			return
		}
		admins := 0
		for _, m := range members {
			if m.Role == roles.RoleAdmin {
				admins++
			}
		}
		if admins <= 1 {
			writeError(w, http.StatusConflict, "CONFLICT", "sole admin cannot change their own role")
			return
		}
	}
	writeForbidden(w, "cannot edit your own role")
}

// RemoveMember soft-removes a member
// @Summary Remove member
// @Description Requires manage-members, except a member may always remove themselves. Removing the last active admin is rejected.
// @Tags members
// @Param id path string true "Organization ID"
// @Param userId path string true "Target user ID"
// @Success 204 "Removed"
// @Failure 403 {object} map[string]interface{} "Missing manage-members"
// @Failure 404 {object} map[string]interface{} "Member not found"
// @Failure 409 {object} map[string]interface{} "Would leave zero admins"
// @Security BearerAuth
// @Router /v1/organizations/{id}/members/{userId} [delete]
func (h *Handler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	actorID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")
	targetID := chi.URLParam(r, "userId")

	// Self-removal is always permitted; storage still rejects it when it
	// would leave the org with no active admin.
	if actorID != targetID {
		if !h.requireCapability(w, r, actorID, orgID, roles.CapManageMembers) {
			return
		}
	}

	if err := h.store.RemoveMember(r.Context(), orgID, targetID); err != nil {
		h.writeStorageError(w, "remove member", err)
		return
	}

	h.resolver.InvalidateMembership(r.Context(), orgID, targetID)
	h.resolver.InvalidateOrganization(r.Context(), orgID)
	h.publish(r.Context(), events.SubjectMemberRemoved, events.Event{
		OrgID:     orgID,
		ActorID:   actorID,
		SubjectID: targetID,
	})
	w.WriteHeader(http.StatusNoContent)
}
