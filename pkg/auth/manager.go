package auth

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/adrg/xdg"

	"igleads/pkg/config"
	"igleads/pkg/logger"
)

// DefaultDir is where the encrypted session file and its passphrase live
func DefaultDir() string {
	return filepath.Join(xdg.ConfigHome, config.AppName)
}

// Manager looks sessions up across several stores. Lookups try the stores
// in order; saves go to the first store that accepts them.
type Manager struct {
	stores []Store
	logger logger.Logger
}

// NewManager builds the default store chain: environment, system keychain
// when available, then the encrypted file in dir
func NewManager(dir string, log logger.Logger) (*Manager, error) {
	log = logger.OrDefault(log).WithField("component", "auth")
	if dir == "" {
		dir = DefaultDir()
	}

	stores := []Store{NewEnvStore()}
	if ks, err := NewKeyringStore(); err == nil {
		stores = append(stores, ks)
	} else {
		log.WithError(err).Debug("System keychain unavailable, using encrypted file")
	}

	passphrase, err := Passphrase(dir)
	if err != nil {
		return nil, err
	}
	fs, err := NewFileStore(filepath.Join(dir, "sessions.enc"), passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to open session file: %w", err)
	}
	stores = append(stores, fs)

	return &Manager{stores: stores, logger: log}, nil
}

// NewManagerWithStores uses exactly the given stores
func NewManagerWithStores(log logger.Logger, stores ...Store) *Manager {
	return &Manager{stores: stores, logger: logger.OrDefault(log)}
}

// Save validates and stores s, returning the name of the store used
func (m *Manager) Save(s *Session) (string, error) {
	if s == nil {
		return "", ErrInvalidSession
	}
	if err := s.Validate(); err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidSession, err)
	}
	s.SavedAt = time.Now().UTC()

	var errs []error
	for _, store := range m.stores {
		err := store.Save(s)
		if err == nil {
			m.logger.InfoWithFields("Session saved", map[string]interface{}{
				"account": s.Account,
				"store":   store.Name(),
			})
			return store.Name(), nil
		}
		if !errors.Is(err, ErrReadOnly) {
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}
	if len(errs) == 0 {
		return "", errors.New("no writable session store")
	}
	return "", fmt.Errorf("failed to save session: %w", errors.Join(errs...))
}

// Load returns the session for account from the first store holding it
func (m *Manager) Load(account string) (*Session, error) {
	for _, store := range m.stores {
		s, err := store.Load(account)
		if err == nil && s != nil {
			return s, nil
		}
		if err != nil && !errors.Is(err, ErrNotFound) {
			m.logger.WithError(err).WarnWithFields("Session store lookup failed", map[string]interface{}{
				"store": store.Name(),
			})
		}
	}
	return nil, fmt.Errorf("%w for account %q", ErrNotFound, account)
}

// List merges the sessions of every store. When an account appears in
// several stores the most recently saved one wins.
func (m *Manager) List() ([]*Session, error) {
	byAccount := make(map[string]*Session)
	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil {
			m.logger.WithError(err).WarnWithFields("Failed to list sessions", map[string]interface{}{
				"store": store.Name(),
			})
			continue
		}
		for _, s := range sessions {
			if existing, ok := byAccount[s.Account]; !ok || s.SavedAt.After(existing.SavedAt) {
				byAccount[s.Account] = s
			}
		}
	}

	out := make([]*Session, 0, len(byAccount))
	for _, s := range byAccount {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Account < out[j].Account })
	return out, nil
}

// Delete removes account from every writable store
func (m *Manager) Delete(account string) error {
	deleted := false
	var errs []error
	for _, store := range m.stores {
		err := store.Delete(account)
		switch {
		case err == nil:
			deleted = true
		case errors.Is(err, ErrNotFound), errors.Is(err, ErrReadOnly):
		default:
			errs = append(errs, fmt.Errorf("%s: %w", store.Name(), err))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("failed to delete session: %w", err)
	}
	if !deleted {
		return fmt.Errorf("%w for account %q", ErrNotFound, account)
	}
	return nil
}

// Resolve picks the session for a run: cookies set in the configuration
// first, then the configured account, then the first stored session
func (m *Manager) Resolve(cfg config.InstagramConfig) (*Session, error) {
	if cfg.SessionID != "" && cfg.CSRFToken != "" {
		account := cfg.Account
		if account == "" {
			account = "config"
		}
		return &Session{
			Account:   account,
			SessionID: cfg.SessionID,
			CSRFToken: cfg.CSRFToken,
			UserAgent: cfg.UserAgent,
		}, nil
	}
	if cfg.Account != "" {
		return m.Load(cfg.Account)
	}

	for _, store := range m.stores {
		sessions, err := store.List()
		if err != nil || len(sessions) == 0 {
			continue
		}
		return sessions[0], nil
	}
	return nil, ErrNotFound
}
