// Package models contains data structures for the application's domain models.
package models

import (
	"time"
)

// Post represents a blog post. DatePosted is stamped once at creation and
// never updated afterwards; edits touch title and content only.
type Post struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	Title      string    `gorm:"not null;size:100" json:"title"`
	Content    string    `gorm:"type:text;not null" json:"content"`
	DatePosted time.Time `gorm:"not null;index" json:"date_posted"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	User       User      `gorm:"foreignKey:UserID" json:"author"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// PostPage is one slice of the post listing along with pagination metadata.
type PostPage struct {
	Posts      []*Post `json:"posts"`
	Page       int     `json:"page"`
	PageSize   int     `json:"page_size"`
	Total      int64   `json:"total"`
	TotalPages int     `json:"total_pages"`
}
