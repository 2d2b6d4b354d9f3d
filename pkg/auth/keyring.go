package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/zalando/go-keyring"
)

const (
	keyringService  = "igleads"
	keyringPrefix   = "session:"
	keyringIndexKey = "accounts"
)

// KeyringStore keeps sessions in the system keychain. The keychain cannot be
// enumerated, so the stored account names are tracked in an index entry.
type KeyringStore struct{}

// NewKeyringStore probes the keychain and fails when it is unusable
func NewKeyringStore() (*KeyringStore, error) {
	const probe = "probe"
	if err := keyring.Set(keyringService, probe, "ok"); err != nil {
		return nil, fmt.Errorf("keyring not available: %w", err)
	}
	_ = keyring.Delete(keyringService, probe)
	return &KeyringStore{}, nil
}

func (k *KeyringStore) Name() string { return "keyring" }

func (k *KeyringStore) Save(s *Session) error {
	if s == nil || s.Account == "" {
		return ErrInvalidSession
	}
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("failed to marshal session: %w", err)
	}
	if err := keyring.Set(keyringService, keyringPrefix+s.Account, string(data)); err != nil {
		return fmt.Errorf("failed to store in keyring: %w", err)
	}

	accounts, err := k.index()
	if err != nil {
		return err
	}
	for _, a := range accounts {
		if a == s.Account {
			return nil
		}
	}
	return k.writeIndex(append(accounts, s.Account))
}

func (k *KeyringStore) Load(account string) (*Session, error) {
	if account == "" {
		return nil, ErrInvalidSession
	}
	data, err := keyring.Get(keyringService, keyringPrefix+account)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to read from keyring: %w", err)
	}

	var s Session
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal session: %w", err)
	}
	return &s, nil
}

func (k *KeyringStore) List() ([]*Session, error) {
	accounts, err := k.index()
	if err != nil {
		return nil, err
	}
	var sessions []*Session
	for _, a := range accounts {
		s, err := k.Load(a)
		if errors.Is(err, ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

func (k *KeyringStore) Delete(account string) error {
	if account == "" {
		return ErrInvalidSession
	}
	if err := keyring.Delete(keyringService, keyringPrefix+account); err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to delete from keyring: %w", err)
	}

	accounts, err := k.index()
	if err != nil {
		return err
	}
	kept := accounts[:0]
	for _, a := range accounts {
		if a != account {
			kept = append(kept, a)
		}
	}
	return k.writeIndex(kept)
}

func (k *KeyringStore) index() ([]string, error) {
	data, err := keyring.Get(keyringService, keyringIndexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read keyring index: %w", err)
	}
	var accounts []string
	if err := json.Unmarshal([]byte(data), &accounts); err != nil {
		return nil, fmt.Errorf("failed to parse keyring index: %w", err)
	}
	return accounts, nil
}

func (k *KeyringStore) writeIndex(accounts []string) error {
	if len(accounts) == 0 {
		err := keyring.Delete(keyringService, keyringIndexKey)
		if err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("failed to clear keyring index: %w", err)
		}
		return nil
	}
	sort.Strings(accounts)
	data, err := json.Marshal(accounts)
	if err != nil {
		return err
	}
	if err := keyring.Set(keyringService, keyringIndexKey, string(data)); err != nil {
		return fmt.Errorf("failed to write keyring index: %w", err)
	}
	return nil
}
