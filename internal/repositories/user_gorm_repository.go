package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pixelfeed/internal/models"
)

// GORMUserRepository is a GORM implementation of UserRepository.
type GORMUserRepository struct {
	db *gorm.DB
}

// NewGORMUserRepository creates a new instance of GORMUserRepository.
func NewGORMUserRepository(db *gorm.DB) *GORMUserRepository {
	return &GORMUserRepository{db: db}
}

// Create inserts a new user. A unique-constraint violation on username,
// email or google id is reported as ErrDuplicate.
func (r *GORMUserRepository) Create(user *models.User) error {
	if err := r.db.Create(user).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to create user: %w", err)
	}
	return nil
}

// Update persists all fields of an existing user.
func (r *GORMUserRepository) Update(user *models.User) error {
	res := r.db.Save(user)
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("failed to update user: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *GORMUserRepository) GetByID(id uint) (*models.User, error) {
	return r.getOne("id = ?", id)
}

func (r *GORMUserRepository) GetByUsername(username string) (*models.User, error) {
	return r.getOne("username = ?", username)
}

func (r *GORMUserRepository) GetByEmail(email string) (*models.User, error) {
	return r.getOne("email = ?", email)
}

func (r *GORMUserRepository) GetByGoogleID(googleID string) (*models.User, error) {
	return r.getOne("google_id = ?", googleID)
}

func (r *GORMUserRepository) getOne(query string, arg any) (*models.User, error) {
	var user models.User
	if err := r.db.First(&user, query, arg).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return &user, nil
}

func (r *GORMUserRepository) UsernameExists(username string, excludeID uint) (bool, error) {
	return r.exists("username = ?", username, excludeID)
}

func (r *GORMUserRepository) EmailExists(email string, excludeID uint) (bool, error) {
	return r.exists("email = ?", email, excludeID)
}

func (r *GORMUserRepository) exists(query string, arg any, excludeID uint) (bool, error) {
	var count int64
	err := r.db.Model(&models.User{}).Where(query, arg).Where("id <> ?", excludeID).Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check user existence: %w", err)
	}
	return count > 0, nil
}
