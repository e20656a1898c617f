package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"receipts-backend/internal/events"
	"receipts-backend/internal/models"
	"receipts-backend/internal/roles"
)

// CreateDepartment creates a department
// @Summary Create department
// @Description Requires manage-departments. Duplicate names within an org are allowed.
// @Tags departments
// @Accept json
// @Produce json
// @Param id path string true "Organization ID"
// @Param department body models.CreateDepartmentInput true "Department fields"
// @Success 201 {object} models.Department
// @Failure 400 {object} map[string]interface{} "Validation error"
// @Failure 403 {object} map[string]interface{} "Missing manage-departments"
// @Security BearerAuth
// @Router /v1/organizations/{id}/departments [post]
func (h *Handler) CreateDepartment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")

	if !h.requireCapability(w, r, userID, orgID, roles.CapManageDepartments) {
		return
	}

	var input models.CreateDepartmentInput
	if err := json.NewDecoder(r.Body).Decode(&input); err != nil {
		writeValidationError(w, "invalid request body")
		return
	}
	if input.Name == "" {
		writeValidationError(w, "name is required")
		return
	}

	dept, err := h.store.CreateDepartment(r.Context(), orgID, input)
	if err != nil {
		h.writeStorageError(w, "create department", err)
		return
	}

	h.publish(r.Context(), events.SubjectDepartmentCreated, events.Event{OrgID: orgID, ActorID: userID})
	writeJSON(w, http.StatusCreated, dept)
}

// ListDepartments lists an organization's departments
// @Summary List departments
// @Description Member-only read with active member counts.
// @Tags departments
// @Produce json
// @Param id path string true "Organization ID"
// @Success 200 {object} map[string]interface{} "Department list"
// @Failure 403 {object} map[string]interface{} "Not a member"
// @Security BearerAuth
// @Router /v1/organizations/{id}/departments [get]
func (h *Handler) ListDepartments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")

	if _, ok := h.actorMembership(w, r, orgID, userID); !ok {
		return
	}

	depts, err := h.store.ListDepartments(r.Context(), orgID)
	if err != nil {
		h.writeStorageError(w, "list departments", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"departments": depts})
}

// DeleteDepartment removes a department
// @Summary Delete department
// @Description Requires manage-departments. Members of the department lose their tag, not their membership.
// @Tags departments
// @Param id path string true "Organization ID"
// @Param deptId path string true "Department ID"
// @Success 204 "Deleted"
// @Failure 403 {object} map[string]interface{} "Missing manage-departments"
// @Failure 404 {object} map[string]interface{} "Department not found"
// @Security BearerAuth
// @Router /v1/organizations/{id}/departments/{deptId} [delete]
func (h *Handler) DeleteDepartment(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	orgID := chi.URLParam(r, "id")
	deptID := chi.URLParam(r, "deptId")

	if !h.requireCapability(w, r, userID, orgID, roles.CapManageDepartments) {
		return
	}

	if err := h.store.DeleteDepartment(r.Context(), orgID, deptID); err != nil {
		h.writeStorageError(w, "delete department", err)
		return
	}

	h.publish(r.Context(), events.SubjectDepartmentDeleted, events.Event{OrgID: orgID, ActorID: userID})
	w.WriteHeader(http.StatusNoContent)
}
