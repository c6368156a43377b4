package repositories

import "pixelfeed/internal/models"

// PostOwnerRow is a post joined with its owner's public columns. The owner
// fields come back NULL when the owning user row no longer exists.
type PostOwnerRow struct {
	models.Post
	OwnerUsername *string `gorm:"column:owner_username"`
	OwnerFullName *string `gorm:"column:owner_full_name"`
}

// PostRepository defines the interface for post data access.
type PostRepository interface {
	Create(post *models.Post) error
	GetByID(id uint) (*models.Post, error)
	GetWithOwner(id uint) (*PostOwnerRow, error)
	ListWithOwners(skip, limit int) ([]PostOwnerRow, error)
	// IncrementViews and IncrementDownloads perform a single atomic
	// read-modify-write and return the new counter value.
	IncrementViews(id uint) (int64, error)
	IncrementDownloads(id uint) (int64, error)
	Delete(id uint) error
}
