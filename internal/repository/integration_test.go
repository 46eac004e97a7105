package repository

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"go.uber.org/zap"

	"github.com/ecoride/carpool/internal/database"
	"github.com/ecoride/carpool/internal/model"
)

func startPostgres(t *testing.T) *pgxpool.Pool {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres integration test in short mode")
	}

	ctx := context.Background()
	ctr, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("ecoride"),
		postgres.WithUsername("ecoride"),
		postgres.WithPassword("ecoride"),
		postgres.BasicWaitStrategies(),
	)
	testcontainers.CleanupContainer(t, ctr)
	if err != nil {
		t.Skipf("postgres container unavailable: %v", err)
	}

	dsn, err := ctr.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	pool, err := database.NewPool(ctx, dsn, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

func createUser(t *testing.T, users *UserRepository, pseudo string, credits int) *model.User {
	t.Helper()
	u, err := users.Create(context.Background(), model.NewUser{
		Email:        pseudo + "@example.com",
		PasswordHash: "hash",
		Pseudo:       pseudo,
		RoleID:       model.RoleUser,
		Credits:      credits,
	})
	require.NoError(t, err)
	return u
}

func publish(t *testing.T, rides *RideRepository, driverID int64, departure time.Time, price float64, seats int, fuel string) int64 {
	t.Helper()
	id, err := rides.Create(context.Background(), model.NewRide{
		DriverID:          driverID,
		DepartureCity:     "Paris",
		ArrivalCity:       "Lyon",
		DepartureDatetime: departure,
		PricePerSeat:      price,
		Seats:             seats,
		SmokingAllowed:    true,
		Vehicle:           model.VehicleSpec{FuelType: fuel},
	})
	require.NoError(t, err)
	return id
}

func TestRepositoriesAgainstPostgres(t *testing.T) {
	pool := startPostgres(t)
	ctx := context.Background()
	users := NewUserRepository(pool)
	rides := NewRideRepository(pool)
	bookings := NewBookingRepository(pool)

	driver := createUser(t, users, "driver", model.StartingCredits)
	now := time.Now().UTC().Truncate(time.Second)
	tomorrow := now.Add(24 * time.Hour)

	t.Run("users are unique by email and pseudo", func(t *testing.T) {
		exists, err := users.Exists(ctx, "DRIVER@example.com", "someone-else")
		require.NoError(t, err)
		assert.True(t, exists)

		_, err = users.Create(ctx, model.NewUser{Email: "driver@example.com", PasswordHash: "x", Pseudo: "other", RoleID: model.RoleUser})
		assert.ErrorIs(t, err, ErrUserExists)

		got, err := users.GetByEmail(ctx, "Driver@Example.com")
		require.NoError(t, err)
		assert.Equal(t, driver.ID, got.ID)
		assert.Equal(t, model.StartingCredits, got.Credits)

		_, err = users.GetByID(ctx, 999999)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("uniqueness ignores case", func(t *testing.T) {
		_, err := users.Create(ctx, model.NewUser{Email: "fresh@example.com", PasswordHash: "x", Pseudo: "DRIVER", RoleID: model.RoleUser})
		assert.ErrorIs(t, err, ErrUserExists)

		_, err = users.Create(ctx, model.NewUser{Email: "Driver@Example.COM", PasswordHash: "x", Pseudo: "fresh", RoleID: model.RoleUser})
		assert.ErrorIs(t, err, ErrUserExists)
	})

	t.Run("create reuses the vehicle of the same fuel type", func(t *testing.T) {
		first := publish(t, rides, driver.ID, tomorrow, 12, 3, model.FuelElectric)
		second := publish(t, rides, driver.ID, tomorrow.Add(time.Hour), 15, 2, model.FuelElectric)

		a, err := rides.GetByID(ctx, first)
		require.NoError(t, err)
		b, err := rides.GetByID(ctx, second)
		require.NoError(t, err)

		assert.Equal(t, a.VehicleID, b.VehicleID)
		assert.True(t, a.IsEcological)
		assert.Equal(t, "Tesla", a.Brand)
		assert.Equal(t, model.StatusOpen, a.Status)
		assert.Equal(t, 3, a.AvailableSeats)
		assert.Equal(t, "driver", a.DriverName)
	})

	t.Run("list filters and counts upcoming rides", func(t *testing.T) {
		publish(t, rides, driver.ID, tomorrow.Add(2*time.Hour), 40, 4, model.FuelGasoline)

		maxPrice := 20.0
		q := model.RideQuery{
			Page: 1, Limit: 10, Sort: model.SortPrice, Now: now,
			Filter: model.RideFilter{MaxPrice: &maxPrice},
		}
		list, total, err := rides.List(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 2, total)
		require.Len(t, list, 2)
		assert.LessOrEqual(t, list[0].PricePerSeat, list[1].PricePerSeat)

		q = model.RideQuery{Page: 1, Limit: 10, Sort: model.SortDatetime, Now: now, From: "par", To: "LYO"}
		_, total, err = rides.List(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 3, total)

		q.Page = 5
		list, total, err = rides.List(ctx, q)
		require.NoError(t, err)
		assert.Equal(t, 3, total)
		assert.Empty(t, list)
	})

	t.Run("book decrements seats and debits credits", func(t *testing.T) {
		passenger := createUser(t, users, "passenger", model.StartingCredits)
		rideID := publish(t, rides, driver.ID, tomorrow.Add(3*time.Hour), 4.5, 2, model.FuelHybrid)

		b, err := bookings.Book(ctx, rideID, passenger.ID, 2, now)
		require.NoError(t, err)
		assert.Equal(t, 9, b.CreditsSpent)
		assert.NotEmpty(t, b.Reference)

		ride, err := rides.GetByID(ctx, rideID)
		require.NoError(t, err)
		assert.Equal(t, 0, ride.AvailableSeats)
		assert.Equal(t, model.StatusFull, ride.Status)

		p, err := users.GetByID(ctx, passenger.ID)
		require.NoError(t, err)
		assert.Equal(t, model.StartingCredits-9, p.Credits)

		_, err = bookings.Book(ctx, rideID, passenger.ID, 1, now)
		assert.ErrorIs(t, err, ErrRideNotOpen)

		_, err = bookings.Book(ctx, rideID, driver.ID, 1, now)
		assert.ErrorIs(t, err, ErrOwnRide)

		list, err := bookings.ListByPassenger(ctx, passenger.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Paris", list[0].DepartureCity)
		assert.Equal(t, "driver", list[0].DriverName)
	})

	t.Run("book rejects duplicates and overdrafts", func(t *testing.T) {
		poor := createUser(t, users, "poor", 5)
		rideID := publish(t, rides, driver.ID, tomorrow.Add(4*time.Hour), 6, 4, model.FuelGasoline)

		_, err := bookings.Book(ctx, rideID, poor.ID, 1, now)
		assert.ErrorIs(t, err, ErrInsufficientCredits)

		_, err = bookings.Book(ctx, rideID, poor.ID, 5, now)
		assert.ErrorIs(t, err, ErrNotEnoughSeats)

		rich := createUser(t, users, "rich", 100)
		_, err = bookings.Book(ctx, rideID, rich.ID, 1, now)
		require.NoError(t, err)
		_, err = bookings.Book(ctx, rideID, rich.ID, 1, now)
		assert.ErrorIs(t, err, ErrAlreadyBooked)

		_, err = bookings.Book(ctx, 424242, rich.ID, 1, now)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("concurrent bookings never oversell", func(t *testing.T) {
		rideID := publish(t, rides, driver.ID, tomorrow.Add(5*time.Hour), 1, 3, model.FuelGasoline)

		const passengers = 8
		ids := make([]int64, passengers)
		for i := range ids {
			ids[i] = createUser(t, users, "racer"+string(rune('a'+i)), model.StartingCredits).ID
		}

		var (
			wg      sync.WaitGroup
			mu      sync.Mutex
			success int
		)
		for _, id := range ids {
			wg.Add(1)
			go func(passengerID int64) {
				defer wg.Done()
				if _, err := bookings.Book(ctx, rideID, passengerID, 1, now); err == nil {
					mu.Lock()
					success++
					mu.Unlock()
				}
			}(id)
		}
		wg.Wait()

		assert.Equal(t, 3, success)
		ride, err := rides.GetByID(ctx, rideID)
		require.NoError(t, err)
		assert.Equal(t, 0, ride.AvailableSeats)
	})
}
