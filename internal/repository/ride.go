package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/ecoride/carpool/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	defaultVehicleColor = "grey"
	plateAttempts       = 5
)

// RideRepository handles persistence for rides and the vehicles they use.
type RideRepository struct {
	db *pgxpool.Pool
}

// NewRideRepository constructs a RideRepository.
func NewRideRepository(db *pgxpool.Pool) *RideRepository {
	return &RideRepository{db: db}
}

// List returns one page of upcoming active rides matching q, together with
// the total number of matching rows.
func (r *RideRepository) List(ctx context.Context, q model.RideQuery) ([]model.Ride, int, error) {
	countSQL, countArgs, err := buildRideCountQuery(q)
	if err != nil {
		return nil, 0, fmt.Errorf("build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRow(ctx, countSQL, countArgs...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count rides: %w", err)
	}
	if total == 0 || q.Offset() >= total {
		return []model.Ride{}, total, nil
	}

	pageSQL, pageArgs, err := buildRidePageQuery(q)
	if err != nil {
		return nil, 0, fmt.Errorf("build list query: %w", err)
	}
	rows, err := r.db.Query(ctx, pageSQL, pageArgs...)
	if err != nil {
		return nil, 0, fmt.Errorf("list rides: %w", err)
	}
	defer rows.Close()

	rides := make([]model.Ride, 0, q.Limit)
	for rows.Next() {
		ride, err := scanRide(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan ride: %w", err)
		}
		rides = append(rides, *ride)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate rides: %w", err)
	}
	return rides, total, nil
}

// GetByID returns a single ride with driver and vehicle details or ErrNotFound.
func (r *RideRepository) GetByID(ctx context.Context, id int64) (*model.Ride, error) {
	query, args, err := buildRideByIDQuery(id)
	if err != nil {
		return nil, fmt.Errorf("build ride query: %w", err)
	}
	ride, err := scanRide(r.db.QueryRow(ctx, query, args...))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get ride: %w", err)
	}
	return ride, nil
}

// Create publishes a ride for nr.DriverID and returns its id.
//
// The driver row is locked first so that concurrent publications by the
// same driver serialise on the resolve-or-create vehicle step and never
// create two vehicles of the same fuel type.
func (r *RideRepository) Create(ctx context.Context, nr model.NewRide) (int64, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var driverID int64
	err = tx.QueryRow(ctx,
		`SELECT id FROM users WHERE id = $1 AND is_active FOR UPDATE`,
		nr.DriverID,
	).Scan(&driverID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrInactiveUser
		}
		return 0, fmt.Errorf("lock driver row: %w", err)
	}

	vehicleID, err := resolveVehicle(ctx, tx, nr)
	if err != nil {
		return 0, err
	}

	var rideID int64
	err = tx.QueryRow(ctx,
		`INSERT INTO rides (
			driver_id, vehicle_id, departure_city, arrival_city, departure_datetime,
			price_per_seat, total_seats, available_seats, status_id, description,
			departure_address, pets_allowed, smoking_allowed
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, $9, $10, $11, $12)
		RETURNING id`,
		nr.DriverID, vehicleID, nr.DepartureCity, nr.ArrivalCity, nr.DepartureDatetime,
		nr.PricePerSeat, nr.Seats, int(model.StatusOpen), nr.Description,
		nr.DepartureAddress, nr.PetsAllowed, nr.SmokingAllowed,
	).Scan(&rideID)
	if err != nil {
		return 0, fmt.Errorf("insert ride: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE users SET total_rides_as_driver = total_rides_as_driver + 1, updated_at = NOW() WHERE id = $1`,
		nr.DriverID,
	); err != nil {
		return 0, fmt.Errorf("increment driver rides: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit transaction: %w", err)
	}
	return rideID, nil
}

// resolveVehicle returns the driver's newest vehicle of the requested fuel
// type, creating one when none exists.
func resolveVehicle(ctx context.Context, tx pgx.Tx, nr model.NewRide) (int64, error) {
	var id int64
	err := tx.QueryRow(ctx,
		`SELECT id FROM vehicles
		 WHERE user_id = $1 AND fuel_type = $2
		 ORDER BY created_at DESC, id DESC
		 LIMIT 1`,
		nr.DriverID, nr.Vehicle.FuelType,
	).Scan(&id)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("find vehicle: %w", err)
	}

	brand, vehicleModel := nr.Vehicle.Brand, nr.Vehicle.Model
	if brand == "" {
		brand = defaultBrand(nr.Vehicle.FuelType)
	}
	if vehicleModel == "" {
		vehicleModel = defaultModel(nr.Vehicle.FuelType)
	}
	firstRegistration := time.Now().AddDate(-2, 0, 0)

	// A plate collision leaves no row; retry with a fresh plate.
	for range plateAttempts {
		err = tx.QueryRow(ctx,
			`INSERT INTO vehicles (
				user_id, brand, model, color, license_plate, first_registration,
				fuel_type, is_ecological, seats_available
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			ON CONFLICT (license_plate) DO NOTHING
			RETURNING id`,
			nr.DriverID, brand, vehicleModel, defaultVehicleColor, generatePlate(),
			firstRegistration, nr.Vehicle.FuelType, nr.Vehicle.FuelType == model.FuelElectric, nr.Seats,
		).Scan(&id)
		if err == nil {
			return id, nil
		}
		if !errors.Is(err, pgx.ErrNoRows) {
			return 0, fmt.Errorf("insert vehicle: %w", err)
		}
	}
	return 0, fmt.Errorf("insert vehicle: no free licence plate after %d attempts", plateAttempts)
}

func defaultBrand(fuelType string) string {
	switch fuelType {
	case model.FuelElectric:
		return "Tesla"
	case model.FuelHybrid:
		return "Toyota"
	case model.FuelGasoline:
		return "Peugeot"
	default:
		return "Renault"
	}
}

func defaultModel(fuelType string) string {
	switch fuelType {
	case model.FuelElectric:
		return "Model 3"
	case model.FuelHybrid:
		return "Prius"
	case model.FuelGasoline:
		return "308"
	default:
		return "Clio"
	}
}

// generatePlate returns a random French-format plate such as "AB-123-CD".
func generatePlate() string {
	letter := func() byte { return byte('A' + rand.IntN(26)) }
	return fmt.Sprintf("%c%c-%03d-%c%c", letter(), letter(), 100+rand.IntN(900), letter(), letter())
}

func scanRide(row pgx.Row) (*model.Ride, error) {
	var (
		ride   model.Ride
		status int
	)
	err := row.Scan(
		&ride.ID, &ride.DriverID, &ride.VehicleID, &ride.DepartureCity, &ride.ArrivalCity,
		&ride.DepartureDatetime, &ride.PricePerSeat, &ride.TotalSeats, &ride.AvailableSeats,
		&status, &ride.Description, &ride.DepartureAddress, &ride.PetsAllowed, &ride.SmokingAllowed,
		&ride.CreatedAt, &ride.DriverName, &ride.DriverAvatar, &ride.DriverRating,
		&ride.Brand, &ride.Model, &ride.Color, &ride.FuelType, &ride.IsEcological,
	)
	if err != nil {
		return nil, err
	}
	ride.Status = model.RideStatus(status)
	return &ride, nil
}
