package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ecoride/carpool/internal/model"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const bookingConfirmed = "confirmed"

// BookingRepository handles persistence for bookings.
type BookingRepository struct {
	db *pgxpool.Pool
}

// NewBookingRepository constructs a BookingRepository.
func NewBookingRepository(db *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{db: db}
}

// Book reserves seats on a ride for a passenger and debits their credits.
//
// The ride row is locked with SELECT … FOR UPDATE before its seat counter
// is read, so concurrent bookings on the same ride are serialised and can
// never oversell it. The passenger row is locked the same way before the
// credit balance is checked and debited.
func (r *BookingRepository) Book(ctx context.Context, rideID, passengerID int64, seats int, now time.Time) (*model.Booking, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		driverID  int64
		price     float64
		available int
		status    int
		departure time.Time
	)
	err = tx.QueryRow(ctx,
		`SELECT driver_id, price_per_seat, available_seats, status_id, departure_datetime
		 FROM rides
		 WHERE id = $1
		 FOR UPDATE`,
		rideID,
	).Scan(&driverID, &price, &available, &status, &departure)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("lock ride row: %w", err)
	}

	if driverID == passengerID {
		return nil, ErrOwnRide
	}
	if model.RideStatus(status) != model.StatusOpen || !departure.After(now) {
		return nil, ErrRideNotOpen
	}

	var dup bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM bookings WHERE ride_id = $1 AND passenger_id = $2)`,
		rideID, passengerID,
	).Scan(&dup)
	if err != nil {
		return nil, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return nil, ErrAlreadyBooked
	}

	if available < seats {
		return nil, ErrNotEnoughSeats
	}

	var credits int
	err = tx.QueryRow(ctx,
		`SELECT credits FROM users WHERE id = $1 AND is_active FOR UPDATE`,
		passengerID,
	).Scan(&credits)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInactiveUser
		}
		return nil, fmt.Errorf("lock passenger row: %w", err)
	}
	cost := model.SeatCost(price, seats)
	if credits < cost {
		return nil, ErrInsufficientCredits
	}

	if _, err := tx.Exec(ctx,
		`UPDATE rides
		 SET available_seats = available_seats - $2,
		     status_id = CASE WHEN available_seats - $2 = 0 THEN $3 ELSE status_id END,
		     updated_at = NOW()
		 WHERE id = $1`,
		rideID, seats, int(model.StatusFull),
	); err != nil {
		return nil, fmt.Errorf("decrement seats: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users
		 SET credits = credits - $2,
		     total_rides_as_passenger = total_rides_as_passenger + 1,
		     updated_at = NOW()
		 WHERE id = $1`,
		passengerID, cost,
	); err != nil {
		return nil, fmt.Errorf("debit credits: %w", err)
	}

	b := &model.Booking{
		Reference:    uuid.NewString(),
		RideID:       rideID,
		PassengerID:  passengerID,
		Seats:        seats,
		CreditsSpent: cost,
		Status:       bookingConfirmed,
		CreatedAt:    now.UTC(),
	}
	err = tx.QueryRow(ctx,
		`INSERT INTO bookings (reference, ride_id, passenger_id, seats, credits_spent, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id`,
		b.Reference, b.RideID, b.PassengerID, b.Seats, b.CreditsSpent, b.Status, b.CreatedAt,
	).Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrAlreadyBooked
		}
		return nil, fmt.Errorf("insert booking: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}
	return b, nil
}

// ListByPassenger returns a passenger's bookings, most recent departure first.
func (r *BookingRepository) ListByPassenger(ctx context.Context, passengerID int64) ([]model.Booking, error) {
	rows, err := r.db.Query(ctx,
		`SELECT b.id, b.reference::text, b.ride_id, b.passenger_id, b.seats, b.credits_spent,
		        b.status, b.created_at, r.departure_city, r.arrival_city, r.departure_datetime, u.pseudo
		 FROM bookings b
		 JOIN rides r ON r.id = b.ride_id
		 JOIN users u ON u.id = r.driver_id
		 WHERE b.passenger_id = $1
		 ORDER BY r.departure_datetime DESC, b.id DESC`,
		passengerID,
	)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []model.Booking
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(
			&b.ID, &b.Reference, &b.RideID, &b.PassengerID, &b.Seats, &b.CreditsSpent,
			&b.Status, &b.CreatedAt, &b.DepartureCity, &b.ArrivalCity, &b.DepartureDatetime, &b.DriverName,
		); err != nil {
			return nil, fmt.Errorf("scan booking: %w", err)
		}
		bookings = append(bookings, b)
	}
	return bookings, rows.Err()
}
