package storage_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"receipts-backend/internal/roles"
	"receipts-backend/internal/storage"
	"receipts-backend/internal/testutil"
)

func TestInviteRoundTripAcceptsExactlyOnce(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	orgID := testutil.CreateOrganization(t, db, "Daily Wire", "daily-wire", true)
	inviter := testutil.CreateUser(t, db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, db, orgID, inviter, roles.RoleAdmin, true)
	invitee := testutil.CreateUser(t, db, "jane@example.com", "jane", false)

	resp, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleReporter, nil)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	if resp.Token == "" {
		t.Fatal("raw token missing from create response")
	}
	if resp.TokenHash == resp.Token {
		t.Fatal("raw token persisted as its own hash")
	}

	member, err := store.AcceptInvite(ctx, resp.Token, invitee)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if member.Role != roles.RoleReporter {
		t.Errorf("role = %q, want reporter", member.Role)
	}
	if !member.IsActive {
		t.Error("membership not active after acceptance")
	}

	if _, err := store.AcceptInvite(ctx, resp.Token, invitee); !errors.Is(err, storage.ErrInviteAlreadyAccepted) {
		t.Fatalf("second accept err = %v, want ErrInviteAlreadyAccepted", err)
	}
}

func TestAcceptInviteUnknownToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	user := testutil.CreateUser(t, db, "jane@example.com", "jane", false)

	if _, err := store.AcceptInvite(ctx, "not-a-real-token", user); !errors.Is(err, storage.ErrInviteNotFound) {
		t.Fatalf("err = %v, want ErrInviteNotFound", err)
	}
}

func TestAcceptExpiredInviteCreatesNothing(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	orgID := testutil.CreateOrganization(t, db, "Daily Wire", "daily-wire", true)
	inviter := testutil.CreateUser(t, db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, db, orgID, inviter, roles.RoleAdmin, true)
	invitee := testutil.CreateUser(t, db, "jane@example.com", "jane", false)

	resp, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleReporter, nil)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}
	testutil.ExpireInvite(t, db, resp.ID)

	if _, err := store.AcceptInvite(ctx, resp.Token, invitee); !errors.Is(err, storage.ErrInviteExpired) {
		t.Fatalf("err = %v, want ErrInviteExpired", err)
	}
	if _, err := store.GetActiveMembership(ctx, orgID, invitee); !errors.Is(err, storage.ErrMemberNotFound) {
		t.Errorf("membership exists after expired acceptance: %v", err)
	}
}

func TestConcurrentAcceptsYieldOneMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	orgID := testutil.CreateOrganization(t, db, "Daily Wire", "daily-wire", true)
	inviter := testutil.CreateUser(t, db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, db, orgID, inviter, roles.RoleAdmin, true)
	invitee := testutil.CreateUser(t, db, "jane@example.com", "jane", false)

	resp, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleReporter, nil)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	const attempts = 8
	results := make([]error, attempts)
	var wg sync.WaitGroup
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, results[i] = store.AcceptInvite(ctx, resp.Token, invitee)
		}(i)
	}
	wg.Wait()

	successes, conflicts := 0, 0
	for _, err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, storage.ErrInviteAlreadyAccepted):
			conflicts++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if successes != 1 || conflicts != attempts-1 {
		t.Fatalf("successes = %d, conflicts = %d, want 1 and %d", successes, conflicts, attempts-1)
	}

	var count int
	if err := db.Get(&count, `SELECT count(*) FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, invitee); err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 1 {
		t.Fatalf("membership rows = %d, want 1", count)
	}
}

func TestReinviteReplacesPendingInvite(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	orgID := testutil.CreateOrganization(t, db, "Daily Wire", "daily-wire", true)
	inviter := testutil.CreateUser(t, db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, db, orgID, inviter, roles.RoleAdmin, true)

	first, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleReporter, nil)
	if err != nil {
		t.Fatalf("first invite: %v", err)
	}
	second, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleEditor, nil)
	if err != nil {
		t.Fatalf("second invite: %v", err)
	}

	if _, err := store.GetInviteByToken(ctx, first.Token); !errors.Is(err, storage.ErrInviteNotFound) {
		t.Errorf("replaced token err = %v, want ErrInviteNotFound", err)
	}
	invite, err := store.GetInviteByToken(ctx, second.Token)
	if err != nil {
		t.Fatalf("GetInviteByToken: %v", err)
	}
	if invite.Role != roles.RoleEditor {
		t.Errorf("role = %q, want editor", invite.Role)
	}
}

func TestAcceptReactivatesInactiveMembership(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	orgID := testutil.CreateOrganization(t, db, "Daily Wire", "daily-wire", true)
	inviter := testutil.CreateUser(t, db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, db, orgID, inviter, roles.RoleAdmin, true)
	returning := testutil.CreateUser(t, db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, db, orgID, returning, roles.RoleContributor, false)

	resp, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleSeniorReporter, nil)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	member, err := store.AcceptInvite(ctx, resp.Token, returning)
	if err != nil {
		t.Fatalf("AcceptInvite: %v", err)
	}
	if member.Role != roles.RoleSeniorReporter {
		t.Errorf("role = %q, want senior_reporter (invited role, not old role)", member.Role)
	}

	var count int
	if err := db.Get(&count, `SELECT count(*) FROM organization_members WHERE organization_id = $1 AND user_id = $2`, orgID, returning); err != nil {
		t.Fatalf("count memberships: %v", err)
	}
	if count != 1 {
		t.Fatalf("membership rows = %d, want 1 (reactivated, not duplicated)", count)
	}
}

func TestAcceptByActiveMemberDoesNotConsumeToken(t *testing.T) {
	db := testutil.SetupTestDB(t)
	store := storage.New(db, nil)
	ctx := context.Background()

	orgID := testutil.CreateOrganization(t, db, "Daily Wire", "daily-wire", true)
	inviter := testutil.CreateUser(t, db, "admin@example.com", "admin", false)
	testutil.CreateMember(t, db, orgID, inviter, roles.RoleAdmin, true)
	member := testutil.CreateUser(t, db, "jane@example.com", "jane", false)
	testutil.CreateMember(t, db, orgID, member, roles.RoleReporter, true)

	resp, err := store.CreateInvite(ctx, orgID, inviter, "jane@example.com", roles.RoleEditor, nil)
	if err != nil {
		t.Fatalf("CreateInvite: %v", err)
	}

	if _, err := store.AcceptInvite(ctx, resp.Token, member); !errors.Is(err, storage.ErrDuplicateMember) {
		t.Fatalf("err = %v, want ErrDuplicateMember", err)
	}

	// The rejected acceptance rolled back, so the token stays redeemable.
	if _, err := store.GetInviteByToken(ctx, resp.Token); err != nil {
		t.Fatalf("token consumed by failed acceptance: %v", err)
	}
}

func TestGenerateInviteTokenHashMatches(t *testing.T) {
	token, hash, err := storage.GenerateInviteToken()
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}
	if len(token) < 43 {
		t.Errorf("token %q shorter than 32 bytes of entropy", token)
	}
	if storage.HashInviteToken(token) != hash {
		t.Error("hash does not match token")
	}

	other, _, err := storage.GenerateInviteToken()
	if err != nil {
		t.Fatalf("GenerateInviteToken: %v", err)
	}
	if other == token {
		t.Error("two generated tokens are identical")
	}
}
