package user

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// User is an account that can own conversation transcripts.
// @Description User account information
type User struct {
	ID          string    `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string    `json:"email" example:"john@example.com"`
	DisplayName string    `json:"displayName,omitempty" example:"John Doe"`
	Password    string    `json:"-"`
	CreatedAt   time.Time `json:"createdAt" example:"2023-01-01T12:00:00Z"`
	UpdatedAt   time.Time `json:"updatedAt" example:"2023-01-01T12:00:00Z"`
}

// CreateUserRequest represents the data needed to create a new user
// @Description Request body for user registration
type CreateUserRequest struct {
	Email       string `json:"email" example:"john@example.com"`
	Password    string `json:"password" example:"securePassword123"`
	DisplayName string `json:"displayName,omitempty" example:"John Doe"`
}

// LoginRequest represents login credentials
// @Description Request body for user login
type LoginRequest struct {
	Email    string `json:"email" example:"john@example.com"`
	Password string `json:"password" example:"securePassword123"`
}

// UserResponse represents a user without sensitive information
// @Description User information returned in API responses
type UserResponse struct {
	ID          string `json:"id" example:"550e8400-e29b-41d4-a716-446655440000"`
	Email       string `json:"email" example:"john@example.com"`
	DisplayName string `json:"displayName,omitempty" example:"John Doe"`
}

func (u *User) ToResponse() UserResponse {
	return UserResponse{ID: u.ID, Email: u.Email, DisplayName: u.DisplayName}
}

// NewUser creates a new user with generated ID
func NewUser(req CreateUserRequest, hashedPassword string) *User {
	now := time.Now()
	return &User{
		ID:          uuid.New().String(),
		Email:       req.Email,
		DisplayName: req.DisplayName,
		Password:    hashedPassword,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// UserRepository defines the interface for user data operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	EmailExists(ctx context.Context, email string) (bool, error)
}
