package auth

import (
	"os"
	"time"
)

// Environment variables read by EnvStore
const (
	EnvAccount   = "IGLEADS_ACCOUNT"
	EnvSessionID = "IGLEADS_SESSION_ID"
	EnvCSRFToken = "IGLEADS_CSRF_TOKEN"
	EnvUserAgent = "IGLEADS_USER_AGENT"
)

// EnvStore exposes a session given through environment variables. It is
// read-only.
type EnvStore struct {
	lookup func(string) (string, bool)
}

// NewEnvStore reads the process environment
func NewEnvStore() *EnvStore {
	return &EnvStore{lookup: os.LookupEnv}
}

func (e *EnvStore) Name() string { return "environment" }

func (e *EnvStore) Save(*Session) error { return ErrReadOnly }

func (e *EnvStore) Delete(string) error { return ErrReadOnly }

// Load returns the environment session. An empty account matches it, as does
// the account named in IGLEADS_ACCOUNT.
func (e *EnvStore) Load(account string) (*Session, error) {
	s := e.session()
	if s == nil {
		return nil, ErrNotFound
	}
	if account != "" && account != s.Account {
		return nil, ErrNotFound
	}
	return s, nil
}

func (e *EnvStore) List() ([]*Session, error) {
	if s := e.session(); s != nil {
		return []*Session{s}, nil
	}
	return nil, nil
}

func (e *EnvStore) session() *Session {
	sessionID, _ := e.lookup(EnvSessionID)
	csrf, _ := e.lookup(EnvCSRFToken)
	if sessionID == "" || csrf == "" {
		return nil
	}
	account, _ := e.lookup(EnvAccount)
	if account == "" {
		account = "default"
	}
	userAgent, _ := e.lookup(EnvUserAgent)
	return &Session{
		Account:   account,
		SessionID: sessionID,
		CSRFToken: csrf,
		UserAgent: userAgent,
		SavedAt:   time.Now(),
	}
}
