// Package identity reads the user identifier and access token the realtime
// channel authenticates with. Tokens are issued elsewhere; this package only
// consumes them.
package identity

import (
	"context"
	"errors"
	"time"

	"golang.org/x/oauth2"
)

// ErrNoIdentity is returned when a store holds no identity.
var ErrNoIdentity = errors.New("no identity stored")

// Identity is the user the channel subscribes for.
type Identity struct {
	UserID string
	Token  string
	Expiry time.Time // Zero when the token does not expire
}

// IsZero reports whether neither a user nor a token is set.
func (id Identity) IsZero() bool {
	return id.UserID == "" && id.Token == ""
}

// OAuth2Token returns the token in golang.org/x/oauth2 form.
func (id Identity) OAuth2Token() *oauth2.Token {
	return &oauth2.Token{
		AccessToken: id.Token,
		TokenType:   "Bearer",
		Expiry:      id.Expiry,
	}
}

// Valid reports whether the token is present and not expired.
func (id Identity) Valid() bool {
	return id.OAuth2Token().Valid()
}

// Store provides the identity at connection time.
type Store interface {
	Load(ctx context.Context) (Identity, error)
}

// StoreFunc adapts a function to Store.
type StoreFunc func(ctx context.Context) (Identity, error)

func (f StoreFunc) Load(ctx context.Context) (Identity, error) {
	return f(ctx)
}

// Static always returns the same identity.
type Static Identity

// Load returns the identity, or ErrNoIdentity when empty.
func (s Static) Load(context.Context) (Identity, error) {
	id := Identity(s)
	if id.IsZero() {
		return Identity{}, ErrNoIdentity
	}
	return id, nil
}
