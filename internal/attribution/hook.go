// Package attribution stamps organization context onto receipts. The
// receipt-creation path lives outside this core and calls Stamp with
// whatever the author requested; the hook decides what actually lands on
// the receipt.
package attribution

import (
	"context"
	"errors"

	"receipts-backend/internal/roles"
)

var ErrForbidden = errors.New("user lacks create-content in the requested organization")

// CapabilityChecker is the slice of the capability resolver the hook needs.
type CapabilityChecker interface {
	HasCapability(ctx context.Context, userID, orgID string, cap roles.Capability) (bool, error)
}

type Hook struct {
	resolver CapabilityChecker
}

func NewHook(resolver CapabilityChecker) *Hook {
	return &Hook{resolver: resolver}
}

// Request is what the author asked for.
type Request struct {
	OrganizationID        *string
	BreakingNews          bool
	InvestigationThreadID *string
}

// Attribution is what gets written onto the receipt.
type Attribution struct {
	OrganizationID        *string
	IsBreakingNews        bool
	InvestigationThreadID *string
}

// Stamp validates the requested attribution.
//
// No organization requested: the receipt is personal and this path never
// fails. An organization without create-content is ErrForbidden — the
// receipt must not be silently created unattributed, or anyone could
// appear to post on a newsroom's behalf. A breaking-news request without
// tag-breaking-news degrades to false instead of failing; an
// investigation thread without create-investigation is rejected, since
// silently detaching content from its thread would be worse than the
// breaking-news downgrade.
func (h *Hook) Stamp(ctx context.Context, userID string, req Request) (Attribution, error) {
	if req.OrganizationID == nil {
		return Attribution{}, nil
	}
	orgID := *req.OrganizationID

	ok, err := h.resolver.HasCapability(ctx, userID, orgID, roles.CapCreateContent)
	if err != nil {
		return Attribution{}, err
	}
	if !ok {
		return Attribution{}, ErrForbidden
	}

	out := Attribution{OrganizationID: req.OrganizationID}

	if req.BreakingNews {
		ok, err := h.resolver.HasCapability(ctx, userID, orgID, roles.CapTagBreakingNews)
		if err != nil {
			return Attribution{}, err
		}
		out.IsBreakingNews = ok
	}

	if req.InvestigationThreadID != nil {
		ok, err := h.resolver.HasCapability(ctx, userID, orgID, roles.CapCreateInvestigation)
		if err != nil {
			return Attribution{}, err
		}
		if !ok {
			return Attribution{}, ErrForbidden
		}
		out.InvestigationThreadID = req.InvestigationThreadID
	}

	return out, nil
}
