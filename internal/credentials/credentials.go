// Package credentials keeps the sync session key in the operating system keyring
package credentials

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/zalando/go-keyring"
)

// Service is the keyring service every entry is stored under
const Service = "colsync"

// ErrNotLoggedIn is returned when no session is stored for the profile
var ErrNotLoggedIn = errors.New("not logged in")

// Session is what a successful login leaves behind
type Session struct {
	Username string `json:"username"`
	Key      string `json:"key"`
	HostNum  int    `json:"hostNum,omitempty"`
}

// Store persists the session of one profile
type Store interface {
	Save(sess Session) error
	Load() (Session, error)
	Clear() error
}

// KeyringStore stores the session as one keyring secret per profile
type KeyringStore struct {
	profile string
}

// NewKeyringStore creates a store for profile
func NewKeyringStore(profile string) *KeyringStore {
	return &KeyringStore{profile: profile}
}

// Save replaces the stored session
func (s *KeyringStore) Save(sess Session) error {
	if sess.Key == "" {
		return errors.New("session key must not be empty")
	}
	data, err := json.Marshal(sess)
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := keyring.Set(Service, s.profile, string(data)); err != nil {
		return fmt.Errorf("failed to store session for profile %s: %w", s.profile, err)
	}
	return nil
}

// Load returns the stored session, or ErrNotLoggedIn
func (s *KeyringStore) Load() (Session, error) {
	secret, err := keyring.Get(Service, s.profile)
	if errors.Is(err, keyring.ErrNotFound) {
		return Session{}, ErrNotLoggedIn
	}
	if err != nil {
		return Session{}, fmt.Errorf("failed to read session for profile %s: %w", s.profile, err)
	}

	var sess Session
	if err := json.Unmarshal([]byte(secret), &sess); err != nil {
		return Session{}, fmt.Errorf("stored session for profile %s is unreadable: %w", s.profile, err)
	}
	if sess.Key == "" {
		return Session{}, ErrNotLoggedIn
	}
	return sess, nil
}

// Clear removes the stored session; clearing an absent session is not an error
func (s *KeyringStore) Clear() error {
	err := keyring.Delete(Service, s.profile)
	if err != nil && !errors.Is(err, keyring.ErrNotFound) {
		return fmt.Errorf("failed to remove session for profile %s: %w", s.profile, err)
	}
	return nil
}
