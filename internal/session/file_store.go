// Package session implements the persisted session store: the durable,
// client-side proof of authentication (token + profile) that gates access to
// authenticated areas of the app.
package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/abrasadev/ordering-auth-go/internal/domain"

	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/scrypt"
)

// File layout when a passphrase is configured:
//
//	magic(5) | salt(16) | nonce(24) | ciphertext
//
// Plaintext JSON otherwise. The salt is regenerated on every write, so the
// derived key never repeats across files.
var sealedMagic = []byte("ABRA1")

const saltSize = 16

// FileStore persists the session as a single file, written atomically
// (temp file + rename): both token and profile land together or not at all.
type FileStore struct {
	path       string
	passphrase string
	logger     *zap.Logger

	mu sync.Mutex // single writer
}

// NewFileStore creates a file-backed session store at path. An empty
// passphrase stores plaintext JSON; otherwise the file is sealed with
// XChaCha20-Poly1305 under a scrypt-derived key.
func NewFileStore(path, passphrase string, logger *zap.Logger) *FileStore {
	return &FileStore{
		path:       path,
		passphrase: passphrase,
		logger:     logger,
	}
}

// Save persists token and profile together. It refuses partial sessions.
func (s *FileStore) Save(token string, user domain.SessionUser) error {
	if token == "" {
		return &domain.ErrValidation{Field: "token", Message: "token vacío"}
	}
	if user.ID == 0 || user.Email == "" {
		return &domain.ErrValidation{Field: "user", Message: "perfil incompleto"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(&domain.Session{
		Token:   token,
		User:    user,
		SavedAt: time.Now().UTC(),
	})
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	if s.passphrase != "" {
		payload, err = s.seal(payload)
		if err != nil {
			return fmt.Errorf("seal session: %w", err)
		}
	}

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write session: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("chmod session: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close session: %w", err)
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("commit session: %w", err)
	}

	s.logger.Debug("session saved",
		zap.Int64("user_id", user.ID),
		zap.String("path", s.path),
	)
	return nil
}

// Load returns the persisted session, or (nil, nil) when absent. A corrupt,
// undecryptable or expired file is treated as absent, never as an error.
func (s *FileStore) Load() (*domain.Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		s.logger.Warn("session load: unreadable file, treating as absent",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil, nil
	}

	if s.passphrase != "" {
		raw, err = s.open(raw)
		if err != nil {
			s.logger.Warn("session load: cannot unseal, treating as absent",
				zap.String("path", s.path),
				zap.Error(err),
			)
			return nil, nil
		}
	}

	var sess domain.Session
	if err := json.Unmarshal(raw, &sess); err != nil {
		s.logger.Warn("session load: corrupt file, treating as absent",
			zap.String("path", s.path),
			zap.Error(err),
		)
		return nil, nil
	}

	if sess.Token == "" || sess.User.ID == 0 {
		return nil, nil
	}

	if tokenExpired(sess.Token, time.Now()) {
		s.logger.Info("session load: token expired, clearing session",
			zap.Int64("user_id", sess.User.ID),
		)
		s.removeLocked()
		return nil, nil
	}

	return &sess, nil
}

// Clear removes all persisted session data. Safe to call repeatedly.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.removeLocked()
}

func (s *FileStore) removeLocked() error {
	if err := os.Remove(s.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("clear session: %w", err)
	}
	return nil
}

func (s *FileStore) seal(plaintext []byte) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	key, err := deriveKey(s.passphrase, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(sealedMagic)+saltSize+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, sealedMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plaintext, sealedMagic), nil
}

func (s *FileStore) open(sealed []byte) ([]byte, error) {
	header := len(sealedMagic) + saltSize + chacha20poly1305.NonceSizeX
	if len(sealed) < header || string(sealed[:len(sealedMagic)]) != string(sealedMagic) {
		return nil, errors.New("not a sealed session file")
	}

	salt := sealed[len(sealedMagic) : len(sealedMagic)+saltSize]
	nonce := sealed[len(sealedMagic)+saltSize : header]

	key, err := deriveKey(s.passphrase, salt)
	if err != nil {
		return nil, err
	}
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, err
	}

	return aead.Open(nil, nonce, sealed[header:], sealedMagic)
}

func deriveKey(passphrase string, salt []byte) ([]byte, error) {
	return scrypt.Key([]byte(passphrase), salt, 1<<15, 8, 1, chacha20poly1305.KeySize)
}

// tokenExpired inspects a bearer token's exp claim without verifying the
// signature: the client cannot verify, only the backend can. Tokens that do
// not parse as JWTs are opaque and never considered expired locally.
func tokenExpired(token string, now time.Time) bool {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return exp.Before(now)
}
