// Package model defines the core domain types for the carpooling service.
package model

import "time"

// Role identifiers as seeded in user_roles.
const (
	RoleAdmin    = 1
	RoleEmployee = 2
	RoleUser     = 3
)

// StartingCredits is granted to every new account.
const StartingCredits = 20

// User is a registered account.
type User struct {
	ID                    int64      `json:"id"`
	Email                 string     `json:"email"`
	PasswordHash          string     `json:"-"`
	Pseudo                string     `json:"pseudo"`
	FullName              string     `json:"fullName"`
	Phone                 string     `json:"phone"`
	Address               string     `json:"address"`
	Birthdate             *time.Time `json:"birthdate"`
	Gender                string     `json:"gender"`
	Bio                   string     `json:"bio"`
	RoleID                int        `json:"roleId"`
	Credits               int        `json:"credits"`
	Rating                float64    `json:"rating"`
	TotalRidesAsDriver    int        `json:"totalRidesAsDriver"`
	TotalRidesAsPassenger int        `json:"totalRidesAsPassenger"`
	IsActive              bool       `json:"-"`
	CreatedAt             time.Time  `json:"createdAt"`
}

// UserSummary is the identity block returned by login and registration.
type UserSummary struct {
	ID      int64  `json:"id"`
	Pseudo  string `json:"pseudo"`
	Email   string `json:"email"`
	Credits int    `json:"credits"`
}

// Summary trims a user down to the fields exposed after authentication.
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Pseudo: u.Pseudo, Email: u.Email, Credits: u.Credits}
}

// NewUser carries the columns written on registration.
type NewUser struct {
	Email        string
	PasswordHash string
	Pseudo       string
	FullName     string
	Phone        string
	RoleID       int
	Credits      int
}

// RegisterRequest is the payload for POST /api/auth/register.
type RegisterRequest struct {
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Pseudo   string `json:"pseudo" validate:"required,max=50"`
	FullName string `json:"fullName" validate:"max=100"`
	Phone    string `json:"phone" validate:"max=20"`
}

// LoginRequest is the payload for POST /api/auth/login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
