package auth

import (
	"errors"
)

var (
	ErrTokenExpired = errors.New("token expired")
	ErrTokenInvalid = errors.New("token invalid")
	ErrUnauthorized = errors.New("unauthorized")
)

// Identity represents an authenticated user's claims.
type Identity struct {
	UserID       int64    `json:"user_id"`
	Email        string   `json:"email"`
	DisplayName  string   `json:"display_name"`
	Roles        []string `json:"roles"`
	Clearance    string   `json:"clearance,omitempty"`
	DepartmentID *int64   `json:"department_id,omitempty"`
	TokenType    string   `json:"token_type"` // "access" or "refresh"
}

// Service defines the token interface used by the HTTP layer.
type Service interface {
	// CreateAccessToken creates a JWT access token for the given identity.
	CreateAccessToken(identity *Identity) (string, error)
	// CreateRefreshToken creates a JWT refresh token for the given identity.
	CreateRefreshToken(identity *Identity) (string, error)
	// ValidateToken validates a JWT and returns the identity.
	ValidateToken(tokenString string) (*Identity, error)
}
