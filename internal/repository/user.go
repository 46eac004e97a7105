package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/ecoride/carpool/internal/model"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const userColumns = `id, email, password_hash, pseudo, full_name, phone, address, birthdate,
		gender, bio, role_id, credits, rating_average, total_rides_as_driver,
		total_rides_as_passenger, is_active, created_at`

// UserRepository handles persistence for users.
type UserRepository struct {
	db *pgxpool.Pool
}

// NewUserRepository constructs a UserRepository.
func NewUserRepository(db *pgxpool.Pool) *UserRepository {
	return &UserRepository{db: db}
}

// Exists reports whether a user already holds the email or the pseudo.
func (r *UserRepository) Exists(ctx context.Context, email, pseudo string) (bool, error) {
	var exists bool
	err := r.db.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM users WHERE LOWER(email) = LOWER($1) OR LOWER(pseudo) = LOWER($2))`,
		email, pseudo,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check user exists: %w", err)
	}
	return exists, nil
}

// Create inserts a new user and returns it.
// A unique-constraint race on email or pseudo is reported as ErrUserExists.
func (r *UserRepository) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	u := &model.User{
		Email:    nu.Email,
		Pseudo:   nu.Pseudo,
		FullName: nu.FullName,
		Phone:    nu.Phone,
		RoleID:   nu.RoleID,
		Credits:  nu.Credits,
		IsActive: true,
	}
	err := r.db.QueryRow(ctx,
		`INSERT INTO users (email, password_hash, pseudo, full_name, phone, role_id, credits, is_active, is_verified)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, TRUE, FALSE)
		 RETURNING id, created_at`,
		nu.Email, nu.PasswordHash, nu.Pseudo, nu.FullName, nu.Phone, nu.RoleID, nu.Credits,
	).Scan(&u.ID, &u.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrUserExists
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}
	u.PasswordHash = nu.PasswordHash
	return u, nil
}

// GetByEmail returns an active user by email or ErrNotFound.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE LOWER(email) = LOWER($1) AND is_active`,
		email,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user by email: %w", err)
	}
	return u, nil
}

// GetByID returns an active user by id or ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.db.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1 AND is_active`,
		id,
	)
	u, err := scanUser(row)
	if err != nil {
		return nil, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

// TouchLastLogin stamps the login time of a user.
func (r *UserRepository) TouchLastLogin(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx,
		`UPDATE users SET last_login_at = NOW(), updated_at = NOW() WHERE id = $1`,
		id,
	)
	if err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	err := row.Scan(
		&u.ID, &u.Email, &u.PasswordHash, &u.Pseudo, &u.FullName, &u.Phone, &u.Address, &u.Birthdate,
		&u.Gender, &u.Bio, &u.RoleID, &u.Credits, &u.Rating, &u.TotalRidesAsDriver,
		&u.TotalRidesAsPassenger, &u.IsActive, &u.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &u, nil
}
