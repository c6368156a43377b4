package repositories

import (
	"errors"

	"pixelfeed/internal/models"
)

// Sentinel errors returned by repositories. Services match on these with
// errors.Is and translate them into the API error taxonomy.
var (
	ErrNotFound  = errors.New("record not found")
	ErrDuplicate = errors.New("duplicate key")
)

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(user *models.User) error
	Update(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByGoogleID(googleID string) (*models.User, error)
	// UsernameExists and EmailExists ignore the row with excludeID so a user
	// can re-submit their own current value during a profile update.
	UsernameExists(username string, excludeID uint) (bool, error)
	EmailExists(email string, excludeID uint) (bool, error)
}
