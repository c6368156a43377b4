package repositories

import (
	"errors"
	"fmt"

	"gorm.io/gorm"

	"pixelfeed/internal/models"
)

const ownerJoinSelect = "posts.*, users.username AS owner_username, users.full_name AS owner_full_name"

// GORMPostRepository is a GORM implementation of PostRepository.
type GORMPostRepository struct {
	db *gorm.DB
}

// NewGORMPostRepository creates a new instance of GORMPostRepository.
func NewGORMPostRepository(db *gorm.DB) *GORMPostRepository {
	return &GORMPostRepository{db: db}
}

// Create inserts a new post.
func (r *GORMPostRepository) Create(post *models.Post) error {
	if err := r.db.Create(post).Error; err != nil {
		return fmt.Errorf("failed to create post: %w", err)
	}
	return nil
}

// GetByID retrieves a bare post by its ID.
func (r *GORMPostRepository) GetByID(id uint) (*models.Post, error) {
	var post models.Post
	if err := r.db.First(&post, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return &post, nil
}

// GetWithOwner retrieves a post joined with its owner's public columns.
func (r *GORMPostRepository) GetWithOwner(id uint) (*PostOwnerRow, error) {
	var row PostOwnerRow
	err := r.db.Table("posts").
		Select(ownerJoinSelect).
		Joins("LEFT JOIN users ON users.id = posts.user_id").
		Where("posts.id = ?", id).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get post %d: %w", id, err)
	}
	return &row, nil
}

// ListWithOwners returns a newest-first page of posts joined with their
// owners. The id tiebreak keeps the ordering stable for equal timestamps.
func (r *GORMPostRepository) ListWithOwners(skip, limit int) ([]PostOwnerRow, error) {
	var rows []PostOwnerRow
	err := r.db.Table("posts").
		Select(ownerJoinSelect).
		Joins("LEFT JOIN users ON users.id = posts.user_id").
		Order("posts.created_at DESC, posts.id DESC").
		Offset(skip).
		Limit(limit).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list posts: %w", err)
	}
	return rows, nil
}

// IncrementViews atomically bumps the view counter and returns the new value.
func (r *GORMPostRepository) IncrementViews(id uint) (int64, error) {
	return r.increment(id, "views")
}

// IncrementDownloads atomically bumps the download counter and returns the
// new value.
func (r *GORMPostRepository) IncrementDownloads(id uint) (int64, error) {
	return r.increment(id, "downloads")
}

// increment runs a single UPDATE ... SET col = col + 1 so concurrent bumps
// on the same post never lose updates.
func (r *GORMPostRepository) increment(id uint, column string) (int64, error) {
	res := r.db.Model(&models.Post{}).
		Where("id = ?", id).
		Updates(map[string]any{column: gorm.Expr(column + " + 1")})
	if res.Error != nil {
		return 0, fmt.Errorf("failed to increment %s for post %d: %w", column, id, res.Error)
	}
	if res.RowsAffected == 0 {
		return 0, ErrNotFound
	}

	var value int64
	if err := r.db.Model(&models.Post{}).Select(column).Where("id = ?", id).Scan(&value).Error; err != nil {
		return 0, fmt.Errorf("failed to read %s for post %d: %w", column, id, err)
	}
	return value, nil
}

// Delete removes a post record.
func (r *GORMPostRepository) Delete(id uint) error {
	res := r.db.Delete(&models.Post{}, "id = ?", id)
	if res.Error != nil {
		return fmt.Errorf("failed to delete post %d: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
