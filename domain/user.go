package domain

import (
	"context"
	"time"
)

// User represents a user account in the system. The authentication core only
// reads users; registration and profile management live elsewhere.
type User struct {
	ID           string     `bson:"_id,omitempty"`
	Username     string     `bson:"username"` // unique
	Email        string     `bson:"email,omitempty"`
	PasswordHash string     `bson:"password_hash"`
	Roles        []string   `bson:"roles,omitempty"`
	Enabled      bool       `bson:"enabled"`
	CreatedAt    time.Time  `bson:"created_at"`
	LastLoginAt  *time.Time `bson:"last_login_at,omitempty"`
}

// UserRepository is the narrow user-store contract the authentication core
// depends on.
type UserRepository interface {
	FindByID(ctx context.Context, id string) (*User, error)
	FindByUsername(ctx context.Context, username string) (*User, error)
	Store(ctx context.Context, user *User) error
}
