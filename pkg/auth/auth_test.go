package auth

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/zalando/go-keyring"

	"igleads/pkg/config"
	"igleads/pkg/logger"
)

func testSession(account string) *Session {
	return &Session{
		Account:   account,
		SessionID: "12345678%3Aabcdefghijkl%3A1",
		CSRFToken: "YTQHujAgMhyveLvvuwCfw9CPI8ROAHoy",
	}
}

func newTestFileStore(t *testing.T) *FileStore {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "sessions.enc"), "test-passphrase")
	if err != nil {
		t.Fatalf("failed to create file store: %v", err)
	}
	return fs
}

func envLookup(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestSessionValidate(t *testing.T) {
	if err := testSession("shop").Validate(); err != nil {
		t.Errorf("expected valid session, got %v", err)
	}

	err := (&Session{Account: "shop"}).Validate()
	if err == nil {
		t.Fatal("expected error for missing cookies")
	}
	if !strings.Contains(err.Error(), "sessionid") || !strings.Contains(err.Error(), "csrftoken") {
		t.Errorf("expected both cookies reported, got %v", err)
	}
}

func TestSessionMasked(t *testing.T) {
	s := testSession("shop")
	masked := s.Masked()

	if masked.SessionID == s.SessionID || masked.CSRFToken == s.CSRFToken {
		t.Error("cookies should be masked")
	}
	if masked.Account != "shop" {
		t.Error("account should not be masked")
	}
	if s.SessionID != "12345678%3Aabcdefghijkl%3A1" {
		t.Error("masking must not modify the original")
	}
	if mask("short") != "********" {
		t.Errorf("short values should be fully masked, got %s", mask("short"))
	}
}

func TestFileStore(t *testing.T) {
	fs := newTestFileStore(t)

	if sessions, err := fs.List(); err != nil || len(sessions) != 0 {
		t.Fatalf("expected empty store, got %v, %v", sessions, err)
	}

	if err := fs.Save(testSession("shop")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := fs.Save(testSession("backup")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := fs.Load("shop")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if loaded.SessionID != testSession("shop").SessionID {
		t.Errorf("session mismatch after decryption")
	}

	content, err := os.ReadFile(fs.Path())
	if err != nil {
		t.Fatal(err)
	}
	if bytes.Contains(content, []byte("abcdefghijkl")) || bytes.Contains(content, []byte("YTQHujAg")) {
		t.Error("file contains plaintext cookies")
	}

	sessions, _ := fs.List()
	if len(sessions) != 2 || sessions[0].Account != "backup" {
		t.Errorf("expected 2 sessions sorted by account, got %+v", sessions)
	}

	if err := fs.Delete("shop"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := fs.Load("shop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := fs.Delete("backup"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := os.Stat(fs.Path()); !os.IsNotExist(err) {
		t.Error("empty store should remove its file")
	}
}

func TestFileStoreWrongPassphrase(t *testing.T) {
	fs := newTestFileStore(t)
	if err := fs.Save(testSession("shop")); err != nil {
		t.Fatal(err)
	}

	other, err := NewFileStore(fs.Path(), "another-passphrase")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := other.Load("shop"); err == nil || !strings.Contains(err.Error(), "decrypt") {
		t.Errorf("expected decryption error, got %v", err)
	}
}

func TestPassphrase(t *testing.T) {
	dir := t.TempDir()

	t.Setenv(PassphraseEnv, "")
	first, err := Passphrase(dir)
	if err != nil {
		t.Fatalf("failed to create passphrase: %v", err)
	}
	second, err := Passphrase(dir)
	if err != nil {
		t.Fatal(err)
	}
	if first == "" || first != second {
		t.Errorf("passphrase should be generated once and reused")
	}

	t.Setenv(PassphraseEnv, "from-env")
	if p, _ := Passphrase(dir); p != "from-env" {
		t.Errorf("expected environment passphrase, got %s", p)
	}
}

func TestEnvStore(t *testing.T) {
	store := &EnvStore{lookup: envLookup(map[string]string{
		EnvSessionID: "env_session",
		EnvCSRFToken: "env_csrf",
	})}

	s, err := store.Load("")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if s.Account != "default" || s.SessionID != "env_session" {
		t.Errorf("unexpected session %+v", s)
	}
	if _, err := store.Load("someone"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound for other account, got %v", err)
	}
	if err := store.Save(s); !errors.Is(err, ErrReadOnly) {
		t.Errorf("expected ErrReadOnly, got %v", err)
	}

	empty := &EnvStore{lookup: envLookup(nil)}
	if sessions, _ := empty.List(); len(sessions) != 0 {
		t.Errorf("expected no sessions, got %d", len(sessions))
	}
}

func TestKeyringStore(t *testing.T) {
	keyring.MockInit()

	ks, err := NewKeyringStore()
	if err != nil {
		t.Fatalf("mock keyring should be available: %v", err)
	}
	if err := ks.Save(testSession("shop")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := ks.Save(testSession("shop")); err != nil {
		t.Fatalf("failed to save twice: %v", err)
	}
	if err := ks.Save(testSession("alt")); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	sessions, err := ks.List()
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(sessions) != 2 {
		t.Fatalf("expected 2 sessions, got %d", len(sessions))
	}

	if err := ks.Delete("shop"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if _, err := ks.Load("shop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := ks.Delete("shop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
	sessions, _ = ks.List()
	if len(sessions) != 1 || sessions[0].Account != "alt" {
		t.Errorf("expected only alt left, got %+v", sessions)
	}
}

func TestManager(t *testing.T) {
	env := &EnvStore{lookup: envLookup(nil)}
	fs := newTestFileStore(t)
	log := logger.NewTestLogger()
	m := NewManagerWithStores(log, env, fs)

	store, err := m.Save(testSession("shop"))
	if err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if store != "file" {
		t.Errorf("expected save to skip the read-only store, got %s", store)
	}

	if _, err := m.Save(&Session{Account: "broken"}); !errors.Is(err, ErrInvalidSession) {
		t.Errorf("expected ErrInvalidSession, got %v", err)
	}

	s, err := m.Load("shop")
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if s.SavedAt.IsZero() {
		t.Error("save should stamp the session")
	}

	if err := m.Delete("shop"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := m.Delete("shop"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestManagerListPrefersNewest(t *testing.T) {
	older := newTestFileStore(t)
	newer := newTestFileStore(t)

	old := testSession("shop")
	old.SavedAt = time.Now().Add(-time.Hour)
	old.SessionID = "old-session-value"
	recent := testSession("shop")
	recent.SavedAt = time.Now()

	if err := older.Save(old); err != nil {
		t.Fatal(err)
	}
	if err := newer.Save(recent); err != nil {
		t.Fatal(err)
	}

	sessions, err := NewManagerWithStores(nil, older, newer).List()
	if err != nil {
		t.Fatal(err)
	}
	if len(sessions) != 1 || sessions[0].SessionID != recent.SessionID {
		t.Errorf("expected newest session, got %+v", sessions)
	}
}

func TestManagerResolve(t *testing.T) {
	fs := newTestFileStore(t)
	if err := fs.Save(testSession("stored")); err != nil {
		t.Fatal(err)
	}
	m := NewManagerWithStores(nil, &EnvStore{lookup: envLookup(nil)}, fs)

	s, err := m.Resolve(config.InstagramConfig{SessionID: "sid", CSRFToken: "csrf"})
	if err != nil || s.SessionID != "sid" || s.Account != "config" {
		t.Errorf("configured cookies should win, got %+v, %v", s, err)
	}

	s, err = m.Resolve(config.InstagramConfig{Account: "stored"})
	if err != nil || s.Account != "stored" {
		t.Errorf("expected stored account, got %+v, %v", s, err)
	}

	if _, err := m.Resolve(config.InstagramConfig{Account: "missing"}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}

	s, err = m.Resolve(config.InstagramConfig{})
	if err != nil || s.Account != "stored" {
		t.Errorf("expected first stored session, got %+v, %v", s, err)
	}

	empty := NewManagerWithStores(nil, &EnvStore{lookup: envLookup(nil)})
	if _, err := empty.Resolve(config.InstagramConfig{}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestWriteLoginGuide(t *testing.T) {
	var buf bytes.Buffer
	WriteLoginGuide(&buf)
	if !strings.Contains(buf.String(), "sessionid") || !strings.Contains(buf.String(), "csrftoken") {
		t.Error("guide should name both cookies")
	}
}
