package models

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// MaxHandleLength is the longest username Instagram accepts
const MaxHandleLength = 30

// Handle is the canonical identifier of an account: lowercase, no leading "@".
// Values should be produced by NormalizeHandle before any comparison.
type Handle string

func (h Handle) String() string {
	return string(h)
}

// ProfileURL returns the public profile URL for the handle
func (h Handle) ProfileURL() string {
	if h == "" {
		return ""
	}
	return fmt.Sprintf("https://www.instagram.com/%s/", string(h))
}

// NormalizeHandle converts any spelling of a username (including a profile
// URL) to its canonical form.
// It is idempotent: NormalizeHandle(string(NormalizeHandle(s))) == NormalizeHandle(s).
func NormalizeHandle(s string) Handle {
	s = strings.ToLower(s)
	if i := strings.LastIndex(s, profileHost); i >= 0 {
		s = s[i+len(profileHost):]
	}
	if i := strings.IndexByte(s, '?'); i >= 0 {
		s = s[:i]
	}
	s = strings.TrimRightFunc(s, func(r rune) bool { return r == '/' || unicode.IsSpace(r) })
	s = strings.TrimLeftFunc(s, func(r rune) bool { return r == '@' || unicode.IsSpace(r) })
	return Handle(s)
}

const profileHost = "instagram.com/"

// ValidHandle checks a normalized handle against Instagram username rules
func ValidHandle(h Handle) bool {
	if h == "" || utf8.RuneCountInString(string(h)) > MaxHandleLength {
		return false
	}
	for _, r := range string(h) {
		if !((r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '.' || r == '_') {
			return false
		}
	}
	return true
}

// NormalizeHandles normalizes, validates and deduplicates a list of raw
// usernames while keeping first-seen order. Invalid entries are returned
// separately.
func NormalizeHandles(raw []string) (handles []Handle, invalid []string) {
	seen := make(map[Handle]struct{}, len(raw))
	for _, r := range raw {
		h := NormalizeHandle(r)
		if !ValidHandle(h) {
			if strings.TrimSpace(r) != "" {
				invalid = append(invalid, r)
			}
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		handles = append(handles, h)
	}
	return handles, invalid
}

func equalFold(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
