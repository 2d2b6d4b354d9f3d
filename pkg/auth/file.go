package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/pbkdf2"
)

const (
	saltSize    = 32
	keySize     = 32
	iterations  = 100000
	fileVersion = 1

	// PassphraseEnv overrides the generated passphrase file
	PassphraseEnv = "IGLEADS_PASSPHRASE"
)

// FileStore keeps sessions in a single AES-GCM encrypted file. The key is
// derived from a passphrase with PBKDF2 and a per-file salt.
type FileStore struct {
	path       string
	passphrase string
	mu         sync.Mutex
}

type fileEnvelope struct {
	Version  int       `json:"version"`
	Salt     string    `json:"salt"`
	Payload  string    `json:"payload"`
	Modified time.Time `json:"modified"`
}

// NewFileStore opens the encrypted store at path
func NewFileStore(path, passphrase string) (*FileStore, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &FileStore{path: path, passphrase: passphrase}, nil
}

// Passphrase returns the passphrase from the environment, or from a
// generated file in dir that is created on first use
func Passphrase(dir string) (string, error) {
	if p := os.Getenv(PassphraseEnv); p != "" {
		return p, nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	path := filepath.Join(dir, ".passphrase")
	if content, err := os.ReadFile(path); err == nil && len(content) > 0 {
		return string(content), nil
	}

	buf := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, buf); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := base64.URLEncoding.EncodeToString(buf)
	if err := os.WriteFile(path, []byte(passphrase), 0600); err != nil {
		return "", fmt.Errorf("failed to save passphrase: %w", err)
	}
	return passphrase, nil
}

func (f *FileStore) Name() string { return "file" }

// Path returns the encrypted file location
func (f *FileStore) Path() string { return f.path }

func (f *FileStore) Save(s *Session) error {
	if s == nil || s.Account == "" {
		return ErrInvalidSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, salt, err := f.read()
	if err != nil {
		return err
	}
	sessions[s.Account] = *s
	return f.write(sessions, salt)
}

func (f *FileStore) Load(account string) (*Session, error) {
	if account == "" {
		return nil, ErrInvalidSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, _, err := f.read()
	if err != nil {
		return nil, err
	}
	s, ok := sessions[account]
	if !ok {
		return nil, ErrNotFound
	}
	return &s, nil
}

func (f *FileStore) List() ([]*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, _, err := f.read()
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(sessions))
	for name := range sessions {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]*Session, 0, len(names))
	for _, name := range names {
		s := sessions[name]
		out = append(out, &s)
	}
	return out, nil
}

func (f *FileStore) Delete(account string) error {
	if account == "" {
		return ErrInvalidSession
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	sessions, salt, err := f.read()
	if err != nil {
		return err
	}
	if _, ok := sessions[account]; !ok {
		return ErrNotFound
	}
	delete(sessions, account)
	if len(sessions) == 0 {
		return os.Remove(f.path)
	}
	return f.write(sessions, salt)
}

// read returns the decrypted sessions and the file's salt. A missing file is
// an empty store.
func (f *FileStore) read() (map[string]Session, []byte, error) {
	content, err := os.ReadFile(f.path)
	if errors.Is(err, os.ErrNotExist) {
		return make(map[string]Session), nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var env fileEnvelope
	if err := json.Unmarshal(content, &env); err != nil {
		return nil, nil, fmt.Errorf("failed to parse session file: %w", err)
	}
	if env.Version > fileVersion {
		return nil, nil, fmt.Errorf("session file version %d is newer than supported version %d", env.Version, fileVersion)
	}
	salt, err := base64.StdEncoding.DecodeString(env.Salt)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode salt: %w", err)
	}
	payload, err := base64.StdEncoding.DecodeString(env.Payload)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decode payload: %w", err)
	}

	plain, err := open(payload, f.key(salt))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to decrypt session file (wrong passphrase?): %w", err)
	}

	sessions := make(map[string]Session)
	if err := json.Unmarshal(plain, &sessions); err != nil {
		return nil, nil, fmt.Errorf("failed to parse sessions: %w", err)
	}
	return sessions, salt, nil
}

func (f *FileStore) write(sessions map[string]Session, salt []byte) error {
	if salt == nil {
		salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, salt); err != nil {
			return fmt.Errorf("failed to generate salt: %w", err)
		}
	}

	plain, err := json.Marshal(sessions)
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	sealed, err := seal(plain, f.key(salt))
	if err != nil {
		return fmt.Errorf("failed to encrypt sessions: %w", err)
	}

	content, err := json.MarshalIndent(fileEnvelope{
		Version:  fileVersion,
		Salt:     base64.StdEncoding.EncodeToString(salt),
		Payload:  base64.StdEncoding.EncodeToString(sealed),
		Modified: time.Now().UTC(),
	}, "", "  ")
	if err != nil {
		return err
	}

	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, content, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) key(salt []byte) []byte {
	return pbkdf2.Key([]byte(f.passphrase), salt, iterations, keySize, sha256.New)
}

func seal(plaintext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, err
	}
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(ciphertext, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(ciphertext) < gcm.NonceSize() {
		return nil, errors.New("ciphertext too short")
	}
	nonce, body := ciphertext[:gcm.NonceSize()], ciphertext[gcm.NonceSize():]
	return gcm.Open(nil, nonce, body, nil)
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
