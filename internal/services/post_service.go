package services

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"pixelfeed/internal/apperrors"
	"pixelfeed/internal/models"
	"pixelfeed/internal/repositories"
	"pixelfeed/pkg/blobstore"
)

// Upload restrictions. The presigned path bypasses the size cap because the
// bytes never pass through this service.
const MaxDirectUploadBytes = 5 * 1024 * 1024

var allowedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".webp": true,
}

var allowedImageMIMETypes = map[string]bool{
	"image/jpeg": true,
	"image/jpg":  true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// BlobStore is the object-storage collaborator posts delegate binary
// storage to.
type BlobStore interface {
	PresignUpload(ctx context.Context, filename, contentType string) (*blobstore.UploadTicket, error)
	Upload(ctx context.Context, body io.Reader, filename, contentType string) (string, error)
	Delete(ctx context.Context, publicURL string) error
}

// PostService handles the posts CRUD surface, counters and uploads.
type PostService struct {
	posts  repositories.PostRepository
	blobs  BlobStore
	events EventPublisher
	log    *logrus.Logger
}

// NewPostService creates a new PostService.
func NewPostService(posts repositories.PostRepository, blobs BlobStore, events EventPublisher, log *logrus.Logger) *PostService {
	return &PostService{posts: posts, blobs: blobs, events: events, log: log}
}

// CreatePostInput carries the fields confirmed after an upload.
type CreatePostInput struct {
	ImageURL string
	Title    string
	Caption  string
	Tags     []string
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// List returns a newest-first page of the feed.
func (s *PostService) List(skip, limit int) ([]models.PostFeedItem, error) {
	if skip < 0 {
		skip = 0
	}
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	rows, err := s.posts.ListWithOwners(skip, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to list posts", err)
	}

	items := make([]models.PostFeedItem, 0, len(rows))
	for i := range rows {
		items = append(items, feedItem(&rows[i]))
	}
	return items, nil
}

// GetByID returns one post with its author fields.
func (s *PostService) GetByID(id uint) (*models.PostFeedItem, error) {
	row, err := s.posts.GetWithOwner(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return nil, apperrors.New(apperrors.NotFound, "post not found")
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to get post", err)
	}
	item := feedItem(row)
	return &item, nil
}

// PresignUpload validates the file type and issues a direct-upload ticket.
func (s *PostService) PresignUpload(ctx context.Context, filename, contentType string) (*blobstore.UploadTicket, error) {
	if !isAllowedImage(filename, contentType) {
		return nil, apperrors.New(apperrors.Validation, "file type not allowed; allowed types: .jpg, .jpeg, .png, .gif, .webp")
	}

	ticket, err := s.blobs.PresignUpload(ctx, filename, contentType)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Upstream, "failed to generate upload url", err)
	}
	return ticket, nil
}

// CreateFromUpload records a post after the client confirmed its direct
// upload.
func (s *PostService) CreateFromUpload(owner *models.User, in CreatePostInput) (*models.PostFeedItem, error) {
	if in.ImageURL == "" {
		return nil, apperrors.New(apperrors.Validation, "image_url is required")
	}

	post := &models.Post{
		UserID:   owner.ID,
		ImageURL: in.ImageURL,
		Title:    in.Title,
		Caption:  in.Caption,
		Tags:     models.JoinTags(in.Tags),
	}
	if err := s.posts.Create(post); err != nil {
		return nil, apperrors.Wrap(apperrors.Internal, "failed to create post", err)
	}

	s.log.WithFields(logrus.Fields{"post_id": post.ID, "user_id": owner.ID}).Info("post created")
	publishEvent(s.events, s.log, EventPostCreated, map[string]any{
		"post_id": post.ID,
		"user_id": owner.ID,
	})

	item := feedItem(&repositories.PostOwnerRow{
		Post:          *post,
		OwnerUsername: &owner.Username,
		OwnerFullName: &owner.FullName,
	})
	return &item, nil
}

// Upload stores the image bytes through the blob store and records the post.
// Used by the direct (non-presigned) path, which enforces the size cap.
func (s *PostService) Upload(ctx context.Context, owner *models.User, body io.Reader, size int64, filename, contentType string, in CreatePostInput) (*models.PostFeedItem, error) {
	if !isAllowedImage(filename, contentType) {
		return nil, apperrors.New(apperrors.Validation, "file type not allowed; allowed types: .jpg, .jpeg, .png, .gif, .webp")
	}
	if size > MaxDirectUploadBytes {
		return nil, apperrors.New(apperrors.Validation, "file size must be less than 5MB")
	}

	publicURL, err := s.blobs.Upload(ctx, body, filename, contentType)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.Upstream, "failed to upload image", err)
	}

	in.ImageURL = publicURL
	return s.CreateFromUpload(owner, in)
}

// IncrementViews bumps the view counter and returns the new value.
func (s *PostService) IncrementViews(id uint) (int64, error) {
	return s.increment(id, s.posts.IncrementViews)
}

// IncrementDownloads bumps the download counter and returns the new value.
func (s *PostService) IncrementDownloads(id uint) (int64, error) {
	return s.increment(id, s.posts.IncrementDownloads)
}

func (s *PostService) increment(id uint, bump func(uint) (int64, error)) (int64, error) {
	count, err := bump(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return 0, apperrors.New(apperrors.NotFound, "post not found")
	}
	if err != nil {
		return 0, apperrors.Wrap(apperrors.Internal, "failed to increment counter", err)
	}
	return count, nil
}

// Delete removes a post and its stored image. Only the owner may delete; a
// blob-store failure is logged and the record is deleted regardless.
func (s *PostService) Delete(ctx context.Context, id, requesterID uint) error {
	post, err := s.posts.GetByID(id)
	if errors.Is(err, repositories.ErrNotFound) {
		return apperrors.New(apperrors.NotFound, "post not found")
	}
	if err != nil {
		return apperrors.Wrap(apperrors.Internal, "failed to get post", err)
	}

	if post.UserID != requesterID {
		return apperrors.New(apperrors.Authorization, "not authorized to delete this post")
	}

	if post.ImageURL != "" {
		if err := s.blobs.Delete(ctx, post.ImageURL); err != nil {
			// Orphaned blob is accepted; the record must still go.
			s.log.WithError(err).WithField("image_url", post.ImageURL).Warn("failed to delete image from blob store")
		}
	}

	if err := s.posts.Delete(id); err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return apperrors.New(apperrors.NotFound, "post not found")
		}
		return apperrors.Wrap(apperrors.Internal, "failed to delete post", err)
	}

	s.log.WithFields(logrus.Fields{"post_id": id, "user_id": requesterID}).Info("post deleted")
	publishEvent(s.events, s.log, EventPostDeleted, map[string]any{
		"post_id": id,
		"user_id": requesterID,
	})
	return nil
}

func isAllowedImage(filename, contentType string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return allowedImageExtensions[ext] && allowedImageMIMETypes[contentType]
}

func feedItem(row *repositories.PostOwnerRow) models.PostFeedItem {
	return models.PostFeedItem{
		ID:           row.ID,
		UserID:       row.UserID,
		ImageURL:     row.ImageURL,
		Title:        row.Title,
		Caption:      row.Caption,
		Tags:         models.SplitTags(row.Tags),
		Views:        row.Views,
		Downloads:    row.Downloads,
		CreatedAt:    row.CreatedAt,
		UpdatedAt:    row.UpdatedAt,
		Username:     row.OwnerUsername,
		UserFullName: row.OwnerFullName,
	}
}
