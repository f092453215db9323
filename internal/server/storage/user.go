package storage

import (
	"context"

	"github.com/iudanet/taskkeeper/internal/models"
)

// UserStorage defines interface for user data persistence
type UserStorage interface {
	// CreateUser inserts a user and returns it with ID and CreatedAt set.
	// Returns ErrUserAlreadyExists if username is taken
	CreateUser(ctx context.Context, username, passwordHash string) (*models.User, error)

	// GetUserByUsername retrieves user by username
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)

	// GetUserByID retrieves user by ID
	// Returns ErrUserNotFound if user doesn't exist
	GetUserByID(ctx context.Context, userID int64) (*models.User, error)

	// DeleteUser deletes user by ID together with the user's tasks
	// Returns ErrUserNotFound if user doesn't exist
	DeleteUser(ctx context.Context, userID int64) error
}
