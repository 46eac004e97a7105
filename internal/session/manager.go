package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Manager issues session cookies and resolves them back into identities.
type Manager struct {
	store  Store
	log    *zap.Logger
	cookie string
	ttl    time.Duration
	secure bool
}

// NewManager returns a Manager writing cookieName cookies that live for ttl.
func NewManager(store Store, log *zap.Logger, cookieName string, ttl time.Duration, secure bool) *Manager {
	return &Manager{store: store, log: log, cookie: cookieName, ttl: ttl, secure: secure}
}

// Start persists ident under a fresh session id and sets the cookie.
func (m *Manager) Start(ctx context.Context, w http.ResponseWriter, ident Identity) error {
	id := uuid.NewString()
	if err := m.store.Set(ctx, id, ident, m.ttl); err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    id,
		Path:     "/",
		MaxAge:   int(m.ttl.Seconds()),
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Destroy deletes the session referenced by r, if any, and expires the cookie.
func (m *Manager) Destroy(ctx context.Context, w http.ResponseWriter, r *http.Request) error {
	var err error
	if c, cerr := r.Cookie(m.cookie); cerr == nil && c.Value != "" {
		err = m.store.Delete(ctx, c.Value)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     m.cookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   m.secure,
		SameSite: http.SameSiteLaxMode,
	})
	if err != nil {
		return fmt.Errorf("destroy session: %w", err)
	}
	return nil
}

// Load is middleware that attaches the session identity to the request
// context. Requests without a valid session pass through anonymously.
func (m *Manager) Load(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := r.Cookie(m.cookie)
		if err != nil || c.Value == "" {
			next.ServeHTTP(w, r)
			return
		}
		ident, err := m.store.Get(r.Context(), c.Value)
		if err != nil {
			if !errors.Is(err, ErrNotFound) {
				m.log.Warn("session lookup failed", zap.Error(err))
			}
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(WithIdentity(r.Context(), ident)))
	})
}
