// Package memory provides an in-process UserStore backed by maps. It is the
// default store for tests and single-node deployments.
package memory

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	authcore "github.com/synccord/authcore"
)

// Store implements authcore.UserStore with internal locking. All returned
// records are copies; mutations become visible only through Save.
type Store struct {
	mu       sync.RWMutex
	users    map[string]*authcore.Credential // by ID
	byName   map[string]string               // username -> ID
	emails   map[string]*authcore.EmailRecord
	byEmail  map[string]string // lowercased address -> user ID
	recovery map[string][]authcore.RecoveryCode
}

// New returns an empty store.
func New() *Store {
	return &Store{
		users:    make(map[string]*authcore.Credential),
		byName:   make(map[string]string),
		emails:   make(map[string]*authcore.EmailRecord),
		byEmail:  make(map[string]string),
		recovery: make(map[string][]authcore.RecoveryCode),
	}
}

func (s *Store) GetByUsername(_ context.Context, username string) (*authcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byName[username]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return copyCredential(s.users[id]), nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*authcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byEmail[strings.ToLower(email)]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return copyCredential(s.users[id]), nil
}

func (s *Store) GetByID(_ context.Context, id string) (*authcore.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cred, ok := s.users[id]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	return copyCredential(cred), nil
}

func (s *Store) GetEmailByUser(_ context.Context, userID string) (*authcore.EmailRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.emails[userID]
	if !ok {
		return nil, authcore.ErrUserNotFound
	}
	cp := *rec
	return &cp, nil
}

// Create persists the credential and its email record, assigning a fresh
// UUID when the credential has no ID. Username and email uniqueness is
// checked under one lock, so the pair is all-or-nothing.
func (s *Store) Create(_ context.Context, cred *authcore.Credential, email *authcore.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.byName[cred.Username]; taken {
		return authcore.ErrUsernameTaken
	}
	addr := strings.ToLower(email.Address)
	if _, taken := s.byEmail[addr]; taken {
		return authcore.ErrEmailTaken
	}

	if cred.ID == "" {
		cred.ID = uuid.NewString()
	}
	email.UserID = cred.ID

	s.users[cred.ID] = copyCredential(cred)
	s.byName[cred.Username] = cred.ID
	cp := *email
	s.emails[cred.ID] = &cp
	s.byEmail[addr] = cred.ID
	return nil
}

func (s *Store) Save(_ context.Context, cred *authcore.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.users[cred.ID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	if prev.Username != cred.Username {
		if _, taken := s.byName[cred.Username]; taken {
			return authcore.ErrUsernameTaken
		}
		delete(s.byName, prev.Username)
		s.byName[cred.Username] = cred.ID
	}
	s.users[cred.ID] = copyCredential(cred)
	return nil
}

func (s *Store) SaveEmail(_ context.Context, rec *authcore.EmailRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, ok := s.emails[rec.UserID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	addr := strings.ToLower(rec.Address)
	if owner, taken := s.byEmail[addr]; taken && owner != rec.UserID {
		return authcore.ErrEmailTaken
	}
	delete(s.byEmail, strings.ToLower(prev.Address))
	cp := *rec
	s.emails[rec.UserID] = &cp
	s.byEmail[addr] = rec.UserID
	return nil
}

// Delete removes the user, the email record, and all recovery codes under
// one lock.
func (s *Store) Delete(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cred, ok := s.users[userID]
	if !ok {
		return authcore.ErrUserNotFound
	}
	delete(s.byName, cred.Username)
	if rec, ok := s.emails[userID]; ok {
		delete(s.byEmail, strings.ToLower(rec.Address))
	}
	delete(s.emails, userID)
	delete(s.recovery, userID)
	delete(s.users, userID)
	return nil
}

func (s *Store) RecoveryCodes(_ context.Context, userID string) ([]authcore.RecoveryCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	codes := s.recovery[userID]
	out := make([]authcore.RecoveryCode, len(codes))
	copy(out, codes)
	return out, nil
}

// ReplaceRecoveryCodes swaps the whole batch in one assignment. A nil or
// empty codes slice just deletes everything.
func (s *Store) ReplaceRecoveryCodes(_ context.Context, userID string, codes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[userID]; !ok {
		return authcore.ErrUserNotFound
	}
	if len(codes) == 0 {
		delete(s.recovery, userID)
		return nil
	}
	batch := make([]authcore.RecoveryCode, len(codes))
	for i, code := range codes {
		batch[i] = authcore.RecoveryCode{ID: uuid.NewString(), Code: code}
	}
	s.recovery[userID] = batch
	return nil
}

// ConsumeRecoveryCode flips the used flag under the write lock, so at most
// one caller ever observes RecoveryCodeConsumed for a given code.
func (s *Store) ConsumeRecoveryCode(_ context.Context, userID, code string) (authcore.RecoveryCodeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.recovery[userID] {
		rc := &s.recovery[userID][i]
		if rc.Code != code {
			continue
		}
		if rc.Used {
			return authcore.RecoveryCodeAlreadyUsed, nil
		}
		rc.Used = true
		return authcore.RecoveryCodeConsumed, nil
	}
	return authcore.RecoveryCodeUnknown, nil
}

func copyCredential(cred *authcore.Credential) *authcore.Credential {
	cp := *cred
	cp.PasswordHash = append([]byte(nil), cred.PasswordHash...)
	cp.Salt = append([]byte(nil), cred.Salt...)
	return &cp
}
