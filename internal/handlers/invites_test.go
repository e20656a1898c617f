package handlers_test

import (
	"net/http"
	"testing"

	"receipts-backend/internal/roles"
	"receipts-backend/internal/testutil"
)

// Full flow: platform admin creates the org (seeded as its admin), invites
// a reporter, the reporter accepts, and the roster shows both of them.
func TestOrganizationInviteAcceptFlow(t *testing.T) {
	e := setup(t)
	founder := testutil.CreateUser(t, e.db, "founder@example.com", "founder", true)
	jane := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)

	rec := e.do(t, http.MethodPost, "/v1/organizations", founder, map[string]any{
		"name": "Daily Wire",
		"slug": "daily-wire",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create org status = %d: %s", rec.Code, rec.Body.String())
	}
	orgID, _ := decodeBody(t, rec)["id"].(string)

	rec = e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/invites", founder, map[string]any{
		"email": "jane@example.com",
		"role":  "reporter",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invite status = %d: %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)
	if token == "" {
		t.Fatal("invite response carries no raw token")
	}

	// Preview is public.
	rec = e.do(t, http.MethodGet, "/v1/invites/"+token, "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("preview status = %d: %s", rec.Code, rec.Body.String())
	}
	preview := decodeBody(t, rec)
	if preview["organization_name"] != "Daily Wire" || preview["role"] != "reporter" {
		t.Errorf("preview = %v", preview)
	}

	rec = e.do(t, http.MethodPost, "/v1/invites/"+token+"/accept", jane, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/v1/organizations/"+orgID+"/members", founder, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list members status = %d: %s", rec.Code, rec.Body.String())
	}
	members, _ := decodeBody(t, rec)["members"].([]any)
	if len(members) != 2 {
		t.Fatalf("members = %d, want 2", len(members))
	}
	found := false
	for _, raw := range members {
		m := raw.(map[string]any)
		if m["handle"] == "jane" {
			found = true
			if m["role"] != "reporter" {
				t.Errorf("jane's role = %v, want reporter", m["role"])
			}
		}
	}
	if !found {
		t.Error("jane missing from member list")
	}

	// The token is spent; a used token looks exactly like one that never
	// existed.
	rec = e.do(t, http.MethodPost, "/v1/invites/"+token+"/accept", jane, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second accept status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
}

// A spent token and a token that never existed must be indistinguishable:
// same status, same body.
func TestUsedTokenIndistinguishableFromUnknown(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	jane := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)

	rec := e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/invites", admin, map[string]any{
		"email": "jane@example.com",
		"role":  "reporter",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invite status = %d: %s", rec.Code, rec.Body.String())
	}
	token, _ := decodeBody(t, rec)["token"].(string)

	rec = e.do(t, http.MethodPost, "/v1/invites/"+token+"/accept", jane, nil)
	if rec.Code != http.StatusCreated {
		t.Fatalf("accept status = %d: %s", rec.Code, rec.Body.String())
	}

	used := e.do(t, http.MethodPost, "/v1/invites/"+token+"/accept", jane, nil)
	unknown := e.do(t, http.MethodPost, "/v1/invites/never-issued/accept", jane, nil)

	if used.Code != http.StatusNotFound || unknown.Code != http.StatusNotFound {
		t.Fatalf("status used = %d, unknown = %d, want both 404", used.Code, unknown.Code)
	}
	if used.Body.String() != unknown.Body.String() {
		t.Errorf("bodies differ:\nused:    %s\nunknown: %s", used.Body.String(), unknown.Body.String())
	}

	// Preview behaves the same.
	usedPrev := e.do(t, http.MethodGet, "/v1/invites/"+token, "", nil)
	unknownPrev := e.do(t, http.MethodGet, "/v1/invites/never-issued", "", nil)
	if usedPrev.Code != http.StatusNotFound || usedPrev.Body.String() != unknownPrev.Body.String() {
		t.Errorf("preview leaks token state: %d %s vs %d %s",
			usedPrev.Code, usedPrev.Body.String(), unknownPrev.Code, unknownPrev.Body.String())
	}
}

func TestInviteRoleCeiling(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	editor := testutil.CreateUser(t, e.db, "ed@example.com", "ed", false)
	testutil.CreateMember(t, e.db, orgID, editor, roles.RoleEditor, true)

	rec := e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/invites", editor, map[string]any{
		"email": "jane@example.com",
		"role":  "admin",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestInviteRequiresCapability(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	reporter := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, reporter, roles.RoleReporter, true)

	rec := e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/invites", reporter, map[string]any{
		"email": "friend@example.com",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestInviteDefaultsToLowestRole(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)

	rec := e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/invites", admin, map[string]any{
		"email": "new@example.com",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["role"] != "contributor" {
		t.Errorf("role = %v, want contributor", body["role"])
	}
}

func TestAcceptExpiredInvite(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	jane := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)

	rec := e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/invites", admin, map[string]any{
		"email": "jane@example.com",
		"role":  "reporter",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create invite status = %d: %s", rec.Code, rec.Body.String())
	}
	body := decodeBody(t, rec)
	token, _ := body["token"].(string)
	inviteID, _ := body["id"].(string)
	testutil.ExpireInvite(t, e.db, inviteID)

	rec = e.do(t, http.MethodPost, "/v1/invites/"+token+"/accept", jane, nil)
	if rec.Code != http.StatusGone {
		t.Fatalf("status = %d, want 410: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "INVITE_EXPIRED" {
		t.Errorf("code = %q, want INVITE_EXPIRED", code)
	}
}

func TestAcceptUnknownTokenIsNotFound(t *testing.T) {
	e := setup(t)
	jane := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)

	rec := e.do(t, http.MethodPost, "/v1/invites/bogus-token/accept", jane, nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "NOT_FOUND" {
		t.Errorf("code = %q, want NOT_FOUND", code)
	}
}
