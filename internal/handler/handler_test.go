package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/repository"
	"github.com/ecoride/carpool/internal/service"
	"github.com/ecoride/carpool/internal/session"
)

// fakeStore backs a real RideService.
type fakeStore struct {
	mu        sync.Mutex
	rides     map[int64]*model.Ride
	lastQuery model.RideQuery
	listErr   error
	created   []model.NewRide
	bookErr   error
}

func (f *fakeStore) List(_ context.Context, q model.RideQuery) ([]model.Ride, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lastQuery = q
	if f.listErr != nil {
		return nil, 0, f.listErr
	}
	out := []model.Ride{}
	for _, r := range f.rides {
		out = append(out, *r)
	}
	if q.Offset() >= len(out) {
		return []model.Ride{}, len(out), nil
	}
	return out, len(out), nil
}

func (f *fakeStore) GetByID(_ context.Context, id int64) (*model.Ride, error) {
	if r, ok := f.rides[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) Create(_ context.Context, nr model.NewRide) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.created = append(f.created, nr)
	return int64(len(f.created)), nil
}

func (f *fakeStore) Book(_ context.Context, rideID, passengerID int64, seats int, _ time.Time) (*model.Booking, error) {
	if f.bookErr != nil {
		return nil, f.bookErr
	}
	return &model.Booking{ID: 1, RideID: rideID, PassengerID: passengerID, Seats: seats, Status: "confirmed"}, nil
}

func (f *fakeStore) ListByPassenger(_ context.Context, passengerID int64) ([]model.Booking, error) {
	return []model.Booking{{ID: 1, PassengerID: passengerID}}, nil
}

// fakeAuth is an in-memory AuthServicer.
type fakeAuth struct {
	mu     sync.Mutex
	users  map[string]*model.User
	nextID int64
}

func (f *fakeAuth) Register(_ context.Context, req model.RegisterRequest) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(req.Password) < 6 {
		return nil, &service.ValidationError{Field: "password", Message: "field 'password' must be at least 6 characters"}
	}
	if _, ok := f.users[req.Email]; ok {
		return nil, repository.ErrUserExists
	}
	f.nextID++
	u := &model.User{ID: f.nextID, Email: req.Email, Pseudo: req.Pseudo, Credits: model.StartingCredits, RoleID: model.RoleUser, PasswordHash: req.Password}
	f.users[req.Email] = u
	return u, nil
}

func (f *fakeAuth) Login(_ context.Context, req model.LoginRequest) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	u, ok := f.users[req.Email]
	if !ok || u.PasswordHash != req.Password {
		return nil, service.ErrInvalidCredentials
	}
	return u, nil
}

func (f *fakeAuth) Profile(_ context.Context, id int64) (*model.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

type fakePinger struct{ err error }

func (p fakePinger) Ping(context.Context) error { return p.err }

type testServer struct {
	handler http.Handler
	store   *fakeStore
	auth    *fakeAuth
}

func newTestServer(t *testing.T, opts ...func(*RouterConfig)) *testServer {
	t.Helper()
	log := zap.NewNop()
	store := &fakeStore{rides: map[int64]*model.Ride{}}
	auth := &fakeAuth{users: map[string]*model.User{}}
	sessions := session.NewManager(session.NewMemoryStore(), log, "ECORIDE_SESSID", time.Hour, false)

	cfg := RouterConfig{
		Log:        log,
		Rides:      NewRideHandler(service.NewRideService(store, store, time.UTC), log, false),
		Auth:       NewAuthHandler(auth, sessions, log, false),
		Health:     NewHealthHandler(fakePinger{}, nil, log),
		Sessions:   sessions,
		Limiter:    NewRateLimiter(100, 100),
		CORSOrigin: "*",
	}
	for _, o := range opts {
		o(&cfg)
	}
	return &testServer{handler: NewRouter(cfg), store: store, auth: auth}
}

func (s *testServer) do(t *testing.T, method, path string, body any, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) login(t *testing.T) *http.Cookie {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/auth/register", map[string]string{
		"email": "driver@example.com", "password": "secret1", "pseudo": "driver",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	return sessionCookie(t, rec)
}

func sessionCookie(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == "ECORIDE_SESSID" {
			return c
		}
	}
	t.Fatal("session cookie not set")
	return nil
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "memory", body["sessions"])

	down := newTestServer(t, func(c *RouterConfig) {
		c.Health = NewHealthHandler(fakePinger{err: errors.New("dial tcp: refused")}, nil, zap.NewNop())
	})
	rec = down.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "unavailable", decodeBody(t, rec)["database"])
}

func TestHealthReportsSessionStore(t *testing.T) {
	up := newTestServer(t, func(c *RouterConfig) {
		c.Health = NewHealthHandler(fakePinger{}, fakePinger{}, zap.NewNop())
	})
	rec := up.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decodeBody(t, rec)["sessions"])

	down := newTestServer(t, func(c *RouterConfig) {
		c.Health = NewHealthHandler(fakePinger{}, fakePinger{err: errors.New("redis: connection refused")}, zap.NewNop())
	})
	rec = down.do(t, http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "degraded", body["status"])
	assert.Equal(t, "ok", body["database"])
	assert.Equal(t, "unavailable", body["sessions"])
}

func TestUnknownRouteAndMethod(t *testing.T) {
	s := newTestServer(t)

	rec := s.do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, decodeBody(t, rec), "error")

	rec = s.do(t, http.MethodDelete, "/api/rides/5", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "method not allowed", decodeBody(t, rec)["error"])
}

func TestCORSPreflight(t *testing.T) {
	s := newTestServer(t, func(c *RouterConfig) { c.CORSOrigin = "https://ecoride.example" })
	rec := s.do(t, http.MethodOptions, "/api/rides", nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://ecoride.example", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))
}

func TestServerErrorHidesDetailsUnlessDebug(t *testing.T) {
	for _, debug := range []bool{false, true} {
		store := &fakeStore{rides: map[int64]*model.Ride{}, listErr: errors.New("relation rides does not exist")}
		s := newTestServer(t, func(c *RouterConfig) {
			c.Rides = NewRideHandler(service.NewRideService(store, store, time.UTC), zap.NewNop(), debug)
		})
		rec := s.do(t, http.MethodGet, "/api/rides", nil)
		require.Equal(t, http.StatusInternalServerError, rec.Code)
		body := decodeBody(t, rec)
		assert.Equal(t, "failed to list rides", body["error"])
		if debug {
			assert.Contains(t, body["details"], "relation rides does not exist")
		} else {
			assert.NotContains(t, body, "details")
		}
	}
}

func TestDecodeJSONEmptyBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(""))
	var dst model.BookRequest
	assert.ErrorIs(t, decodeJSON(httptest.NewRecorder(), req, &dst), errNoBody)
}
