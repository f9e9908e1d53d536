package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/oauth2"
)

// fileRecord is the on-disk format.
type fileRecord struct {
	UserID string        `json:"user_id"`
	Token  *oauth2.Token `json:"token,omitempty"`
}

// FileStore keeps the identity in a JSON file readable by the owner only.
type FileStore struct {
	path string
}

// NewFileStore creates a file-backed store.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Load reads the identity file.
func (f *FileStore) Load(context.Context) (Identity, error) {
	data, err := os.ReadFile(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Identity{}, ErrNoIdentity
		}
		return Identity{}, fmt.Errorf("read identity file: %w", err)
	}

	var rec fileRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return Identity{}, fmt.Errorf("parse identity file: %w", err)
	}

	id := Identity{UserID: rec.UserID}
	if rec.Token != nil {
		id.Token = rec.Token.AccessToken
		id.Expiry = rec.Token.Expiry
	}
	if id.IsZero() {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}

// Save writes the identity file with 0600 permissions.
func (f *FileStore) Save(id Identity) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("create identity dir: %w", err)
	}

	rec := fileRecord{UserID: id.UserID}
	if id.Token != "" {
		rec.Token = id.OAuth2Token()
	}

	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal identity: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("write identity file: %w", err)
	}
	return nil
}

// Delete removes the identity file. Missing files are not an error.
func (f *FileStore) Delete() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete identity file: %w", err)
	}
	return nil
}
