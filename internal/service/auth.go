package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/ecoride/carpool/internal/model"
	"github.com/ecoride/carpool/internal/repository"
)

// UserStore is the persistence AuthService depends on.
type UserStore interface {
	Exists(ctx context.Context, email, pseudo string) (bool, error)
	Create(ctx context.Context, nu model.NewUser) (*model.User, error)
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	GetByID(ctx context.Context, id int64) (*model.User, error)
	TouchLastLogin(ctx context.Context, id int64) error
}

// AuthService handles registration, login and profile lookups.
type AuthService struct {
	users      UserStore
	log        *zap.Logger
	bcryptCost int
}

// NewAuthService constructs an AuthService.
func NewAuthService(users UserStore, log *zap.Logger) *AuthService {
	return &AuthService{users: users, log: log, bcryptCost: bcrypt.DefaultCost}
}

// Register creates a user account with the starting credit balance.
func (s *AuthService) Register(ctx context.Context, req model.RegisterRequest) (*model.User, error) {
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	req.Pseudo = strings.TrimSpace(req.Pseudo)
	req.FullName = strings.TrimSpace(req.FullName)
	req.Phone = strings.TrimSpace(req.Phone)
	if err := validateStruct(req); err != nil {
		return nil, err
	}

	exists, err := s.users.Exists(ctx, req.Email, req.Pseudo)
	if err != nil {
		return nil, fmt.Errorf("register: %w", err)
	}
	if exists {
		return nil, repository.ErrUserExists
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, model.NewUser{
		Email:        req.Email,
		PasswordHash: string(hash),
		Pseudo:       req.Pseudo,
		FullName:     req.FullName,
		Phone:        req.Phone,
		RoleID:       model.RoleUser,
		Credits:      model.StartingCredits,
	})
	if err != nil {
		if errors.Is(err, repository.ErrUserExists) {
			return nil, err
		}
		return nil, fmt.Errorf("register: %w", err)
	}
	return user, nil
}

// Login checks the credentials and returns the matching active user.
func (s *AuthService) Login(ctx context.Context, req model.LoginRequest) (*model.User, error) {
	email := strings.ToLower(strings.TrimSpace(req.Email))
	if email == "" || req.Password == "" {
		return nil, &ValidationError{Message: "email and password are required"}
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("login: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	if err := s.users.TouchLastLogin(ctx, user.ID); err != nil {
		s.log.Warn("stamp last login", zap.Int64("user_id", user.ID), zap.Error(err))
	}
	return user, nil
}

// Profile returns the full profile of userID.
func (s *AuthService) Profile(ctx context.Context, userID int64) (*model.User, error) {
	if userID <= 0 {
		return nil, ErrUnauthenticated
	}
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, repository.ErrNotFound
		}
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return user, nil
}
