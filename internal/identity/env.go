package identity

import (
	"context"
	"os"
)

// Default environment variable names.
const (
	EnvUserID = "NOTIFY_USER_ID"
	EnvToken  = "NOTIFY_TOKEN"
)

// EnvStore reads the identity from environment variables.
type EnvStore struct {
	UserIDVar string
	TokenVar  string
}

// NewEnvStore creates a store reading NOTIFY_USER_ID and NOTIFY_TOKEN.
func NewEnvStore() *EnvStore {
	return &EnvStore{UserIDVar: EnvUserID, TokenVar: EnvToken}
}

// Load reads the variables at call time.
func (e *EnvStore) Load(context.Context) (Identity, error) {
	id := Identity{
		UserID: os.Getenv(e.UserIDVar),
		Token:  os.Getenv(e.TokenVar),
	}
	if id.IsZero() {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
