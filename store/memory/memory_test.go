package memory

import (
	"context"
	"errors"
	"sync"
	"testing"

	authcore "github.com/synccord/authcore"
)

func seedUser(t *testing.T, s *Store, username, email string) *authcore.Credential {
	t.Helper()
	cred := &authcore.Credential{
		Username:     username,
		PasswordHash: []byte("hash"),
		Salt:         []byte("salt"),
	}
	err := s.Create(context.Background(), cred, &authcore.EmailRecord{Address: email})
	if err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	return cred
}

func TestCreateAssignsIDAndEnforcesUniqueness(t *testing.T) {
	s := New()
	ctx := context.Background()
	cred := seedUser(t, s, "alice", "alice@example.com")
	if cred.ID == "" {
		t.Fatal("expected generated ID")
	}

	err := s.Create(ctx, &authcore.Credential{Username: "alice"}, &authcore.EmailRecord{Address: "x@example.com"})
	if !errors.Is(err, authcore.ErrUsernameTaken) {
		t.Fatalf("expected ErrUsernameTaken, got %v", err)
	}
	err = s.Create(ctx, &authcore.Credential{Username: "bob"}, &authcore.EmailRecord{Address: "ALICE@example.com"})
	if !errors.Is(err, authcore.ErrEmailTaken) {
		t.Fatalf("expected case-insensitive ErrEmailTaken, got %v", err)
	}
}

func TestLookupsReturnCopies(t *testing.T) {
	s := New()
	ctx := context.Background()
	cred := seedUser(t, s, "alice", "alice@example.com")

	got, err := s.GetByID(ctx, cred.ID)
	if err != nil {
		t.Fatalf("GetByID failed: %v", err)
	}
	got.Username = "mallory"
	got.PasswordHash[0] = 'X'

	again, err := s.GetByUsername(ctx, "alice")
	if err != nil {
		t.Fatalf("mutation leaked into store: %v", err)
	}
	if again.PasswordHash[0] == 'X' {
		t.Fatal("hash backing array shared with caller")
	}
}

func TestDeleteCascades(t *testing.T) {
	s := New()
	ctx := context.Background()
	cred := seedUser(t, s, "alice", "alice@example.com")
	if err := s.ReplaceRecoveryCodes(ctx, cred.ID, []string{"AB12 CD34"}); err != nil {
		t.Fatalf("ReplaceRecoveryCodes failed: %v", err)
	}

	if err := s.Delete(ctx, cred.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := s.GetByUsername(ctx, "alice"); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected user gone, got %v", err)
	}
	if _, err := s.GetEmailByUser(ctx, cred.ID); !errors.Is(err, authcore.ErrUserNotFound) {
		t.Fatalf("expected email gone, got %v", err)
	}
	codes, err := s.RecoveryCodes(ctx, cred.ID)
	if err != nil || len(codes) != 0 {
		t.Fatalf("expected codes gone, got %v %v", codes, err)
	}

	// The username and email are free again.
	seedUser(t, s, "alice", "alice@example.com")
}

func TestConsumeRecoveryCodeSingleSpend(t *testing.T) {
	s := New()
	ctx := context.Background()
	cred := seedUser(t, s, "alice", "alice@example.com")
	if err := s.ReplaceRecoveryCodes(ctx, cred.ID, []string{"AB12 CD34", "EF56 GH78"}); err != nil {
		t.Fatalf("ReplaceRecoveryCodes failed: %v", err)
	}

	const attempts = 32
	var wg sync.WaitGroup
	results := make([]authcore.RecoveryCodeResult, attempts)
	wg.Add(attempts)
	for i := 0; i < attempts; i++ {
		go func(i int) {
			defer wg.Done()
			res, err := s.ConsumeRecoveryCode(ctx, cred.ID, "AB12 CD34")
			if err != nil {
				t.Errorf("ConsumeRecoveryCode failed: %v", err)
				return
			}
			results[i] = res
		}(i)
	}
	wg.Wait()

	consumed := 0
	for _, res := range results {
		if res == authcore.RecoveryCodeConsumed {
			consumed++
		}
	}
	if consumed != 1 {
		t.Fatalf("expected exactly one consumption, got %d", consumed)
	}

	if res, _ := s.ConsumeRecoveryCode(ctx, cred.ID, "ab12 cd34"); res != authcore.RecoveryCodeUnknown {
		t.Fatalf("codes must match exactly, got %v", res)
	}
	if res, _ := s.ConsumeRecoveryCode(ctx, cred.ID, "EF56 GH78"); res != authcore.RecoveryCodeConsumed {
		t.Fatalf("second code should consume, got %v", res)
	}
}

func TestReplaceRecoveryCodesIsAtomicSwap(t *testing.T) {
	s := New()
	ctx := context.Background()
	cred := seedUser(t, s, "alice", "alice@example.com")

	if err := s.ReplaceRecoveryCodes(ctx, cred.ID, []string{"AAAA 1111"}); err != nil {
		t.Fatalf("ReplaceRecoveryCodes failed: %v", err)
	}
	if err := s.ReplaceRecoveryCodes(ctx, cred.ID, []string{"BBBB 2222"}); err != nil {
		t.Fatalf("ReplaceRecoveryCodes failed: %v", err)
	}

	if res, _ := s.ConsumeRecoveryCode(ctx, cred.ID, "AAAA 1111"); res != authcore.RecoveryCodeUnknown {
		t.Fatalf("old batch should be gone, got %v", res)
	}
	if res, _ := s.ConsumeRecoveryCode(ctx, cred.ID, "BBBB 2222"); res != authcore.RecoveryCodeConsumed {
		t.Fatalf("new batch should work, got %v", res)
	}
}

func TestSaveEmailRebindsUniquenessIndex(t *testing.T) {
	s := New()
	ctx := context.Background()
	cred := seedUser(t, s, "alice", "alice@example.com")
	other := seedUser(t, s, "bob", "bob@example.com")

	err := s.SaveEmail(ctx, &authcore.EmailRecord{UserID: cred.ID, Address: "bob@example.com"})
	if !errors.Is(err, authcore.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	if err := s.SaveEmail(ctx, &authcore.EmailRecord{UserID: cred.ID, Address: "new@example.com"}); err != nil {
		t.Fatalf("SaveEmail failed: %v", err)
	}

	// The old address is released.
	if err := s.SaveEmail(ctx, &authcore.EmailRecord{UserID: other.ID, Address: "alice@example.com"}); err != nil {
		t.Fatalf("released address should be reusable: %v", err)
	}
}
