// Package repository implements all database queries for the carpooling
// service. Static statements are plain SQL run through pgx; the dynamic ride
// listing is assembled with goqu so every filter stays parameter-bound.
package repository

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrNotFound is returned when a requested resource does not exist.
var ErrNotFound = errors.New("not found")

// ErrUserExists is returned when the email or pseudo is already taken.
var ErrUserExists = errors.New("email or pseudo already in use")

// ErrInactiveUser is returned when the acting account is missing or disabled.
var ErrInactiveUser = errors.New("user account is not active")

// ErrRideNotOpen is returned when a ride no longer accepts bookings.
var ErrRideNotOpen = errors.New("ride is not open for booking")

// ErrNotEnoughSeats is returned when a booking asks for more seats than remain.
var ErrNotEnoughSeats = errors.New("not enough seats available")

// ErrAlreadyBooked is returned when a passenger books the same ride twice.
var ErrAlreadyBooked = errors.New("ride already booked by this passenger")

// ErrInsufficientCredits is returned when the passenger cannot pay for the seats.
var ErrInsufficientCredits = errors.New("insufficient credits")

// ErrOwnRide is returned when a driver tries to book their own ride.
var ErrOwnRide = errors.New("drivers cannot book their own ride")

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolation
}
