package handlers_test

import (
	"net/http"
	"testing"

	"receipts-backend/internal/roles"
	"receipts-backend/internal/testutil"
)

func TestSoleAdminCannotRemoveThemselves(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)

	rec := e.do(t, http.MethodDelete, "/v1/organizations/"+orgID+"/members/"+admin, admin, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409: %s", rec.Code, rec.Body.String())
	}
	if code := errorCode(t, rec); code != "CONFLICT" {
		t.Errorf("code = %q, want CONFLICT", code)
	}
}

func TestMemberCanRemoveThemselves(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	reporter := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)
	testutil.CreateMember(t, e.db, orgID, reporter, roles.RoleReporter, true)

	// Reporters hold no manage-members capability, but self-removal is
	// always allowed.
	rec := e.do(t, http.MethodDelete, "/v1/organizations/"+orgID+"/members/"+reporter, reporter, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
}

func TestRemoveOtherMemberRequiresCapability(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	reporter := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	other := testutil.CreateUser(t, e.db, "bob@example.com", "bob", false)
	testutil.CreateMember(t, e.db, orgID, reporter, roles.RoleReporter, true)
	testutil.CreateMember(t, e.db, orgID, other, roles.RoleContributor, true)

	rec := e.do(t, http.MethodDelete, "/v1/organizations/"+orgID+"/members/"+other, reporter, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestUpdateRoleCeiling(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	editor := testutil.CreateUser(t, e.db, "ed@example.com", "ed", false)
	target := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, editor, roles.RoleEditor, true)
	testutil.CreateMember(t, e.db, orgID, target, roles.RoleReporter, true)

	// An editor can never promote anyone to admin.
	rec := e.do(t, http.MethodPatch, "/v1/organizations/"+orgID+"/members/"+target, editor, map[string]any{
		"role": "admin",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("promote-to-admin status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	// A lateral assignment up to the editor's own tier is fine.
	rec = e.do(t, http.MethodPatch, "/v1/organizations/"+orgID+"/members/"+target, editor, map[string]any{
		"role": "senior_reporter",
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("promote-to-senior status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if body := decodeBody(t, rec); body["role"] != "senior_reporter" {
		t.Errorf("role = %v, want senior_reporter", body["role"])
	}
}

func TestUpdateRoleRejectsUnknownRole(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	target := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)
	testutil.CreateMember(t, e.db, orgID, target, roles.RoleReporter, true)

	rec := e.do(t, http.MethodPatch, "/v1/organizations/"+orgID+"/members/"+target, admin, map[string]any{
		"role": "supreme_leader",
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400: %s", rec.Code, rec.Body.String())
	}
}

func TestSelfRoleEditRejected(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	second := testutil.CreateUser(t, e.db, "second@example.com", "second", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)

	// Sole admin editing their own role: Conflict, since no other admin
	// exists to act.
	rec := e.do(t, http.MethodPatch, "/v1/organizations/"+orgID+"/members/"+admin, admin, map[string]any{
		"role": "editor",
	})
	if rec.Code != http.StatusConflict {
		t.Fatalf("sole-admin self edit status = %d, want 409: %s", rec.Code, rec.Body.String())
	}

	// With a second admin present it is a plain Forbidden.
	testutil.CreateMember(t, e.db, orgID, second, roles.RoleAdmin, true)
	rec = e.do(t, http.MethodPatch, "/v1/organizations/"+orgID+"/members/"+admin, admin, map[string]any{
		"role": "editor",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("self edit status = %d, want 403: %s", rec.Code, rec.Body.String())
	}
}

func TestListMembersIsMemberOnly(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	member := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	outsider := testutil.CreateUser(t, e.db, "out@example.com", "out", false)
	testutil.CreateMember(t, e.db, orgID, member, roles.RoleContributor, true)

	rec := e.do(t, http.MethodGet, "/v1/organizations/"+orgID+"/members", outsider, nil)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("outsider status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodGet, "/v1/organizations/"+orgID+"/members", member, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("member status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestDepartmentEndpoints(t *testing.T) {
	e := setup(t)
	orgID := testutil.CreateOrganization(t, e.db, "Daily Wire", "daily-wire", true)
	admin := testutil.CreateUser(t, e.db, "admin@example.com", "admin", false)
	reporter := testutil.CreateUser(t, e.db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, e.db, orgID, admin, roles.RoleAdmin, true)
	testutil.CreateMember(t, e.db, orgID, reporter, roles.RoleReporter, true)

	rec := e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/departments", reporter, map[string]any{
		"name": "Politics",
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("reporter create status = %d, want 403: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodPost, "/v1/organizations/"+orgID+"/departments", admin, map[string]any{
		"name": "Politics",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("admin create status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	deptID, _ := decodeBody(t, rec)["id"].(string)

	rec = e.do(t, http.MethodGet, "/v1/organizations/"+orgID+"/departments", reporter, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	rec = e.do(t, http.MethodDelete, "/v1/organizations/"+orgID+"/departments/"+deptID, admin, nil)
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204: %s", rec.Code, rec.Body.String())
	}
}
