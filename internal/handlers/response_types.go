package handlers

import (
	"github.com/xpanvictor/aura/internal/domains/room"
	"github.com/xpanvictor/aura/internal/domains/user"
	"github.com/xpanvictor/aura/internal/repository/transcript"
)

// Response wrapper types for Swagger documentation

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error" example:"Something went wrong"`
	Details string `json:"details,omitempty" example:"Validation error details"`
}

// HealthResponse is returned by liveness probes
type HealthResponse struct {
	Status   string `json:"status" example:"ok"`
	Sessions int    `json:"active_sessions" example:"3"`
}

// RegisterResponse represents the response for user registration
type RegisterResponse struct {
	Message string            `json:"message" example:"User created successfully"`
	UserID  string            `json:"userId" example:"550e8400-e29b-41d4-a716-446655440000"`
	User    user.UserResponse `json:"user"`
}

// LoginResponse represents the response for user login
type LoginResponse struct {
	Message   string            `json:"message" example:"Login successful"`
	Token     string            `json:"token" example:"eyJhbGciOiJIUzI1NiIsInR5cCI6IkpXVCJ9..."`
	ExpiresAt string            `json:"expiresAt" example:"2023-01-08T12:00:00Z"`
	User      user.UserResponse `json:"user"`
}

// ProfileResponse represents the response for getting user profile
type ProfileResponse struct {
	User user.UserResponse `json:"user"`
}

// RoomsResponse lists the configured rooms with voices resolved
type RoomsResponse struct {
	Rooms []room.Room `json:"rooms"`
}

// CustomRoomResponse echoes a validated custom room
type CustomRoomResponse struct {
	Room    room.Room `json:"room"`
	Success bool      `json:"success" example:"true"`
}

// ConversationsResponse lists finished sessions without transcripts
type ConversationsResponse struct {
	Conversations []transcript.SessionDoc `json:"conversations"`
}

// ConversationResponse carries one session with its transcript
type ConversationResponse struct {
	Conversation transcript.SessionDoc `json:"conversation"`
}
