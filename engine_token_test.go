package authcore_test

import (
	. "github.com/synccord/authcore"

	"context"
	"errors"
	"testing"
	"time"

	"github.com/synccord/authcore/permission"
)

func TestIssueAndValidateRoundTrip(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{
		Username: "alice",
		Password: "correct horse",
		Scopes:   []string{"ME"},
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if issued.TokenType != "bearer" {
		t.Fatalf("expected bearer token type, got %q", issued.TokenType)
	}

	principal, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"ME"})
	if err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if principal.Username != "alice" || principal.Email != "alice@example.com" {
		t.Fatalf("unexpected principal: %+v", principal)
	}
}

func TestIssueRejectsUnknownUserAndWrongPassword(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	if _, err := engine.IssueToken(ctx, TokenRequest{Username: "nobody", Password: "x"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown user: expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := engine.IssueToken(ctx, TokenRequest{Username: "alice", Password: "wrong"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: expected ErrInvalidCredentials, got %v", err)
	}
}

func TestIssuanceFiltersScopesToLiveMask(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{
		Username: "alice",
		Password: "correct horse",
		Scopes:   []string{"ME", "VIEW_USERS", "bogus"},
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	// VIEW_USERS was never granted, so the token must not carry it.
	_, err = engine.ValidateToken(ctx, issued.AccessToken, []string{"VIEW_USERS"})
	if !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"ME"}); err != nil {
		t.Fatalf("ME scope should pass: %v", err)
	}
}

func TestScopeNotRequestedIsNotGranted(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{
		Username: "alice",
		Password: "correct horse",
		Scopes:   nil,
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	// alice holds ME but did not request it, so a route requiring ME fails
	// while a scope-free route passes.
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"ME"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, nil); err != nil {
		t.Fatalf("scope-free validation should pass: %v", err)
	}
}

func TestOwnerPassesEveryScopeCheck(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	cred := createTestUser(t, engine, "root", "root@example.com", "correct horse")
	cred.Owner = true
	if err := store.Save(context.Background(), cred); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{Username: "root", Password: "correct horse"})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	principal, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"DELETE_USERS", "OWNER"})
	if err != nil {
		t.Fatalf("owner should pass every scope check: %v", err)
	}
	if !principal.Owner {
		t.Fatal("expected owner principal")
	}
}

func TestOwnerScopeUnreachableForNonOwners(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	cred := createTestUser(t, engine, "alice", "alice@example.com", "correct horse")
	cred.Permissions = permission.All()
	if err := store.Save(context.Background(), cred); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{
		Username: "alice",
		Password: "correct horse",
		Scopes:   permission.All().Scopes(),
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if _, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"OWNER"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied for OWNER requirement, got %v", err)
	}
}

func TestUserAgentMismatchBurnsToken(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	issueCtx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(issueCtx, TokenRequest{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	otherCtx := requestContext("curl", "10.0.0.2")
	if _, err := engine.ValidateToken(otherCtx, issued.AccessToken, nil); !errors.Is(err, ErrTokenInvalidated) {
		t.Fatalf("expected ErrTokenInvalidated on UA mismatch, got %v", err)
	}

	// The token is burned: the original user agent no longer helps.
	if _, err := engine.ValidateToken(issueCtx, issued.AccessToken, nil); !errors.Is(err, ErrTokenInvalidated) {
		t.Fatalf("expected burned token to stay invalid, got %v", err)
	}
}

func TestExpiredTokenInvalidated(t *testing.T) {
	engine, _, clock := newTestEngine(t)
	createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	clock.Advance(16 * time.Minute)
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, nil); !errors.Is(err, ErrTokenInvalidated) {
		t.Fatalf("expected ErrTokenInvalidated after expiry, got %v", err)
	}
}

func TestLivePermissionRevocationDeniesOldToken(t *testing.T) {
	engine, store, _ := newTestEngine(t)
	cred := createTestUser(t, engine, "alice", "alice@example.com", "correct horse")
	cred.Permissions = cred.Permissions.Union(permission.ViewUsers)
	if err := store.Save(context.Background(), cred); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{
		Username: "alice",
		Password: "correct horse",
		Scopes:   []string{"ME", "VIEW_USERS"},
	})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"VIEW_USERS"}); err != nil {
		t.Fatalf("VIEW_USERS should pass before revocation: %v", err)
	}

	if err := engine.UpdatePermissions(ctx, cred.ID, permission.Me); err != nil {
		t.Fatalf("UpdatePermissions failed: %v", err)
	}

	// The token still carries VIEW_USERS but the live mask no longer does.
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"VIEW_USERS"}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied after revocation, got %v", err)
	}
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, []string{"ME"}); err != nil {
		t.Fatalf("ME should still pass: %v", err)
	}
}

func TestEmailChangeInvalidatesOutstandingTokens(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cred := createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if err := engine.ChangeEmail(ctx, cred.ID, "correct horse", "", "new@example.com"); err != nil {
		t.Fatalf("ChangeEmail failed: %v", err)
	}
	if _, err := engine.ValidateToken(ctx, issued.AccessToken, nil); !errors.Is(err, ErrTokenInvalidated) {
		t.Fatalf("expected ErrTokenInvalidated after email change, got %v", err)
	}
}

func TestAuthorizeRejectsBannedAccount(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	cred := createTestUser(t, engine, "alice", "alice@example.com", "correct horse")

	ctx := requestContext("firefox", "10.0.0.1")
	issued, err := engine.IssueToken(ctx, TokenRequest{Username: "alice", Password: "correct horse"})
	if err != nil {
		t.Fatalf("IssueToken failed: %v", err)
	}

	if err := engine.SetBanned(ctx, cred.ID, true); err != nil {
		t.Fatalf("SetBanned failed: %v", err)
	}
	if _, err := engine.Authorize(ctx, issued.AccessToken, nil); !errors.Is(err, ErrAccountBanned) {
		t.Fatalf("expected ErrAccountBanned, got %v", err)
	}

	if err := engine.SetBanned(ctx, cred.ID, false); err != nil {
		t.Fatalf("SetBanned failed: %v", err)
	}
	if _, err := engine.Authorize(ctx, issued.AccessToken, nil); err != nil {
		t.Fatalf("unban should restore access: %v", err)
	}
}

func TestForgedTokenRejected(t *testing.T) {
	engine, _, _ := newTestEngine(t)
	ctx := requestContext("firefox", "10.0.0.1")

	if _, err := engine.ValidateToken(ctx, "not.a.token", nil); !errors.Is(err, ErrTokenInvalidated) {
		t.Fatalf("expected ErrTokenInvalidated for garbage, got %v", err)
	}
}
