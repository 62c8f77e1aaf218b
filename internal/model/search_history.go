package model

import "time"

// SearchHistory records one song search made by an authenticated user.
type SearchHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"-" gorm:"index;not null"`
	Query     string    `json:"query" gorm:"size:255;not null"`
	Type      string    `json:"type,omitempty" gorm:"size:50"`
	CreatedAt time.Time `json:"created_at"`
}
