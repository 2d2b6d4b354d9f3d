// Package auth stores the Instagram session cookies the fetcher needs.
//
// Sessions are kept in the system keychain when one is available, otherwise
// in an AES-GCM encrypted file under the igleads config directory. A session
// given through IGLEADS_SESSION_ID and IGLEADS_CSRF_TOKEN is always honored
// and never written anywhere.
package auth

import (
	"errors"
	"strings"
	"time"
)

// Session holds the cookies of one logged-in Instagram account
type Session struct {
	Account   string    `json:"account"`
	SessionID string    `json:"session_id"`
	CSRFToken string    `json:"csrf_token"`
	UserAgent string    `json:"user_agent,omitempty"`
	SavedAt   time.Time `json:"saved_at"`
}

// Validate checks that the session has everything the fetcher sends
func (s *Session) Validate() error {
	var problems []error
	if strings.TrimSpace(s.Account) == "" {
		problems = append(problems, errors.New("account name is required"))
	}
	if strings.TrimSpace(s.SessionID) == "" {
		problems = append(problems, errors.New("sessionid cookie is required"))
	}
	if strings.TrimSpace(s.CSRFToken) == "" {
		problems = append(problems, errors.New("csrftoken cookie is required"))
	}
	return errors.Join(problems...)
}

// Masked returns a copy safe to print
func (s *Session) Masked() *Session {
	if s == nil {
		return nil
	}
	masked := *s
	masked.SessionID = mask(s.SessionID)
	masked.CSRFToken = mask(s.CSRFToken)
	return &masked
}

// mask keeps the first and last four characters
func mask(s string) string {
	if len(s) <= 8 {
		return "********"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// Store is a place sessions can be kept
type Store interface {
	Name() string
	Save(s *Session) error
	Load(account string) (*Session, error)
	List() ([]*Session, error)
	Delete(account string) error
}

var (
	ErrNotFound       = errors.New("session not found")
	ErrInvalidSession = errors.New("invalid session")
	ErrReadOnly       = errors.New("store is read-only")
)
