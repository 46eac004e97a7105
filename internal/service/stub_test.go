package service

import (
	"context"
	"time"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/repository"
)

type stubUsers struct {
	byEmail   map[string]*model.User
	exists    bool
	createErr error
	touched   []int64
	created   []model.NewUser
}

func newStubUsers() *stubUsers {
	return &stubUsers{byEmail: map[string]*model.User{}}
}

func (s *stubUsers) Exists(_ context.Context, email, _ string) (bool, error) {
	_, ok := s.byEmail[email]
	return s.exists || ok, nil
}

func (s *stubUsers) Create(_ context.Context, nu model.NewUser) (*model.User, error) {
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.created = append(s.created, nu)
	u := &model.User{
		ID:           int64(len(s.created)),
		Email:        nu.Email,
		PasswordHash: nu.PasswordHash,
		Pseudo:       nu.Pseudo,
		RoleID:       nu.RoleID,
		Credits:      nu.Credits,
		IsActive:     true,
	}
	s.byEmail[nu.Email] = u
	return u, nil
}

func (s *stubUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	if u, ok := s.byEmail[email]; ok {
		return u, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubUsers) GetByID(_ context.Context, id int64) (*model.User, error) {
	for _, u := range s.byEmail {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *stubUsers) TouchLastLogin(_ context.Context, id int64) error {
	s.touched = append(s.touched, id)
	return nil
}

type stubRides struct {
	lastQuery model.RideQuery
	rides     []model.Ride
	total     int
	listErr   error
	byID      map[int64]*model.Ride
	created   []model.NewRide
	createErr error
}

func (s *stubRides) List(_ context.Context, q model.RideQuery) ([]model.Ride, int, error) {
	s.lastQuery = q
	return s.rides, s.total, s.listErr
}

func (s *stubRides) GetByID(_ context.Context, id int64) (*model.Ride, error) {
	if r, ok := s.byID[id]; ok {
		return r, nil
	}
	return nil, repository.ErrNotFound
}

func (s *stubRides) Create(_ context.Context, nr model.NewRide) (int64, error) {
	if s.createErr != nil {
		return 0, s.createErr
	}
	s.created = append(s.created, nr)
	return int64(100 + len(s.created)), nil
}

type stubBookings struct {
	seats   int
	err     error
	now     time.Time
	listing []model.Booking
}

func (s *stubBookings) Book(_ context.Context, rideID, passengerID int64, seats int, now time.Time) (*model.Booking, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.seats, s.now = seats, now
	return &model.Booking{ID: 1, RideID: rideID, PassengerID: passengerID, Seats: seats}, nil
}

func (s *stubBookings) ListByPassenger(_ context.Context, _ int64) ([]model.Booking, error) {
	return s.listing, s.err
}
