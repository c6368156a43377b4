package models

import (
	"strings"
	"time"
)

// Post represents an uploaded image. Tags are stored as a single
// comma-joined column and exposed as an array at the API boundary.
type Post struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"not null;index"`
	ImageURL  string    `json:"image_url" gorm:"not null;type:varchar(1024)" validate:"required,url"`
	Title     string    `json:"title" gorm:"type:varchar(255)"`
	Caption   string    `json:"caption" gorm:"type:text"`
	Tags      string    `json:"-" gorm:"type:text"`
	Views     int64     `json:"views" gorm:"not null;default:0"`
	Downloads int64     `json:"downloads" gorm:"not null;default:0"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// PostFeedItem is the public projection of a Post joined with its author.
// The author fields are pointers so a post whose owner row no longer exists
// renders them as null instead of failing the request.
type PostFeedItem struct {
	ID           uint      `json:"id"`
	UserID       uint      `json:"user_id"`
	ImageURL     string    `json:"image_url"`
	Title        string    `json:"title,omitempty"`
	Caption      string    `json:"caption,omitempty"`
	Tags         []string  `json:"tags"`
	Views        int64     `json:"views"`
	Downloads    int64     `json:"downloads"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	Username     *string   `json:"username"`
	UserFullName *string   `json:"user_full_name"`
}

// JoinTags serializes a tag list for storage. Blank entries produce nothing.
func JoinTags(tags []string) string {
	cleaned := make([]string, 0, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t != "" {
			cleaned = append(cleaned, t)
		}
	}
	return strings.Join(cleaned, ",")
}

// SplitTags is the inverse of JoinTags. It always returns a non-nil slice so
// the JSON projection renders [] rather than null.
func SplitTags(s string) []string {
	tags := []string{}
	for _, t := range strings.Split(s, ",") {
		t = strings.TrimSpace(t)
		if t != "" {
			tags = append(tags, t)
		}
	}
	return tags
}
