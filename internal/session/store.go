// Package session keeps server-side login sessions and carries the
// authenticated identity through the request context.
package session

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a session id is unknown or has expired.
var ErrNotFound = errors.New("session not found")

// Identity is the authenticated user attached to a session.
type Identity struct {
	UserID    int64     `json:"userId"`
	Pseudo    string    `json:"pseudo"`
	Email     string    `json:"email"`
	RoleID    int       `json:"roleId"`
	LoginTime time.Time `json:"loginTime"`
}

// Store persists identities keyed by session id.
type Store interface {
	Get(ctx context.Context, id string) (*Identity, error)
	Set(ctx context.Context, id string, ident Identity, ttl time.Duration) error
	Delete(ctx context.Context, id string) error
}

type ctxKey struct{}

// WithIdentity returns a copy of ctx carrying ident.
func WithIdentity(ctx context.Context, ident *Identity) context.Context {
	return context.WithValue(ctx, ctxKey{}, ident)
}

// FromContext returns the identity resolved for the current request, if any.
func FromContext(ctx context.Context) (*Identity, bool) {
	ident, ok := ctx.Value(ctxKey{}).(*Identity)
	return ident, ok && ident != nil
}
