package models

import "time"

// User represents an account holder. Password holds the argon2id digest and
// is empty for accounts that only ever signed in with Google. GoogleID is a
// pointer so the unique index ignores rows without a linked Google account.
type User struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FullName  string    `json:"full_name" gorm:"type:varchar(255)" validate:"omitempty,max=255"`
	Username  string    `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Email     string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Password  string    `json:"-" gorm:"type:varchar(255)"`
	GoogleID  *string   `json:"-" gorm:"uniqueIndex;type:varchar(255)"`
	Bio       string    `json:"bio" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
