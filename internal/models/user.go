// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// DefaultAvatar is the sentinel avatar filename for users who never uploaded one.
const DefaultAvatar = "default.png"

// User represents a registered account in the Quill application.
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	Username  string    `gorm:"uniqueIndex;not null;size:20" json:"username"`
	Email     string    `gorm:"uniqueIndex;not null;size:254" json:"email"`
	Password  string    `gorm:"not null" json:"-"`
	ImageFile string    `gorm:"not null;default:default.png" json:"image_file"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Posts     []Post    `gorm:"foreignKey:UserID" json:"posts,omitempty"`
}

// AvatarURL returns the public path the avatar is served from.
func (u *User) AvatarURL() string {
	file := u.ImageFile
	if file == "" {
		file = DefaultAvatar
	}
	return "/media/avatars/" + file
}
