package session

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"

	"golang.org/x/crypto/nacl/secretbox"
	"golang.org/x/crypto/scrypt"
)

var ErrDecrypt = errors.New("session: cannot decrypt stored token")

// FileStore keeps the token in a 0600 JSON file. With a passphrase the token is
// sealed with secretbox under a key derived by scrypt.
type FileStore struct {
	path       string
	passphrase []byte
}

func NewFileStore(path, passphrase string) *FileStore {
	store := &FileStore{path: path}
	if passphrase != "" {
		store.passphrase = []byte(passphrase)
	}
	return store
}

func (f *FileStore) Path() string { return f.path }

type fileRecord struct {
	Key    string `json:"key"`
	Value  string `json:"value,omitempty"`
	Salt   []byte `json:"salt,omitempty"`
	Nonce  []byte `json:"nonce,omitempty"`
	Sealed []byte `json:"sealed,omitempty"`
}

const (
	saltSize = 16
	keySize  = 32
)

func deriveKey(passphrase, salt []byte) (*[keySize]byte, error) {
	raw, err := scrypt.Key(passphrase, salt, 1<<15, 8, 1, keySize)
	if err != nil {
		return nil, err
	}
	var key [keySize]byte
	copy(key[:], raw)
	return &key, nil
}

func (f *FileStore) Load(context.Context) (string, error) {
	raw, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	var rec fileRecord
	if err := json.Unmarshal(raw, &rec); err != nil {
		return "", fmt.Errorf("session file %s: %w", f.path, err)
	}
	if rec.Key != Key {
		return "", ErrNotFound
	}
	if len(rec.Sealed) == 0 {
		if rec.Value == "" {
			return "", ErrNotFound
		}
		return rec.Value, nil
	}
	if f.passphrase == nil || len(rec.Nonce) != 24 {
		return "", ErrDecrypt
	}
	key, err := deriveKey(f.passphrase, rec.Salt)
	if err != nil {
		return "", err
	}
	var nonce [24]byte
	copy(nonce[:], rec.Nonce)
	plain, ok := secretbox.Open(nil, rec.Sealed, &nonce, key)
	if !ok {
		return "", ErrDecrypt
	}
	return string(plain), nil
}

func (f *FileStore) Save(_ context.Context, token string) error {
	rec := fileRecord{Key: Key}
	if f.passphrase == nil {
		rec.Value = token
	} else {
		rec.Salt = make([]byte, saltSize)
		if _, err := io.ReadFull(rand.Reader, rec.Salt); err != nil {
			return err
		}
		var nonce [24]byte
		if _, err := io.ReadFull(rand.Reader, nonce[:]); err != nil {
			return err
		}
		key, err := deriveKey(f.passphrase, rec.Salt)
		if err != nil {
			return err
		}
		rec.Nonce = nonce[:]
		rec.Sealed = secretbox.Seal(nil, []byte(token), &nonce, key)
	}
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return err
	}
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o600); err != nil {
		return err
	}
	return os.Rename(tmp, f.path)
}

func (f *FileStore) Delete(context.Context) error {
	err := os.Remove(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return err
}
