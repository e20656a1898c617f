// Package handlers implements the HTTP surface of the organization
// membership and capability core. Authorization policy lives here, at the
// request boundary: every capability question goes through the resolver,
// never through ad-hoc role comparisons. The storage layer enforces data
// invariants (slug uniqueness, last-admin, exactly-once acceptance).
package handlers

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"receipts-backend/internal/auth"
	"receipts-backend/internal/capability"
	"receipts-backend/internal/events"
	"receipts-backend/internal/roles"
	"receipts-backend/internal/storage"
)

type Handler struct {
	store    *storage.Storage
	resolver *capability.Resolver
	events   *events.Publisher
	logger   *zap.Logger
}

// New wires a handler set. events may be nil (publishing is skipped) and
// logger may be nil.
func New(store *storage.Storage, resolver *capability.Resolver, publisher *events.Publisher, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, resolver: resolver, events: publisher, logger: logger}
}

// RegisterRoutes mounts all /v1 routes. The invite-accept rate limiter is
// passed in because it needs the shared cache client.
func (h *Handler) RegisterRoutes(r chi.Router, rateLimitAccept func(http.Handler) http.Handler) {
	if rateLimitAccept == nil {
		rateLimitAccept = func(next http.Handler) http.Handler { return next }
	}

	r.Route("/v1", func(r chi.Router) {
		// Public reads.
		r.Get("/organizations", h.ListOrganizations)
		r.Get("/organizations/{slug}", h.GetOrganizationBySlug)
		r.Get("/invites/{token}", h.PreviewInvite)

		// Everything else requires a bearer token.
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware)

			r.Post("/organizations", h.CreateOrganization)
			r.Patch("/organizations/{id}", h.UpdateOrganization)

			r.Get("/organizations/{id}/members", h.ListMembers)
			r.Patch("/organizations/{id}/members/{userId}", h.UpdateMemberRole)
			r.Delete("/organizations/{id}/members/{userId}", h.RemoveMember)

			r.Post("/organizations/{id}/invites", h.CreateInvite)
			r.With(rateLimitAccept).Post("/invites/{token}/accept", h.AcceptInvite)

			r.Post("/organizations/{id}/departments", h.CreateDepartment)
			r.Get("/organizations/{id}/departments", h.ListDepartments)
			r.Delete("/organizations/{id}/departments/{deptId}", h.DeleteDepartment)

			r.Post("/admin/organizations/{id}/verify", h.VerifyOrganization)
			r.Post("/admin/organizations/{id}/disable", h.DisableOrganization)
		})
	})
}

// requireUser pulls the authenticated user id out of the request context.
func requireUser(w http.ResponseWriter, r *http.Request) (string, bool) {
	userID, ok := auth.UserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required")
		return "", false
	}
	return userID, true
}

// requireCapability answers whether userID holds cap in orgID and writes
// the 403 envelope when it does not.
func (h *Handler) requireCapability(w http.ResponseWriter, r *http.Request, userID, orgID string, cap roles.Capability) bool {
	allowed, err := h.resolver.HasCapability(r.Context(), userID, orgID, cap)
	if err != nil {
		h.writeStorageError(w, "capability check", err)
		return false
	}
	if !allowed {
		writeForbidden(w, "missing capability: "+string(cap))
		return false
	}
	return true
}

// actorMembership loads the acting user's active membership for ceiling
// checks. A missing membership surfaces as Forbidden, not NotFound: the
// actor is simply not allowed to act here.
func (h *Handler) actorMembership(w http.ResponseWriter, r *http.Request, orgID, userID string) (roles.Role, bool) {
	m, err := h.store.GetActiveMembership(r.Context(), orgID, userID)
	if err == storage.ErrMemberNotFound {
		writeForbidden(w, "not a member of this organization")
		return "", false
	}
	if err != nil {
		h.writeStorageError(w, "load actor membership", err)
		return "", false
	}
	return m.Role, true
}

func (h *Handler) publish(ctx context.Context, subject string, ev events.Event) {
	h.events.Publish(ctx, subject, ev)
}
