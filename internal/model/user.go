package model

import "time"

// Roles understood by the authorization middleware.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// MinUsernameLength is the minimum accepted username length at signup.
const MinUsernameLength = 8

// User represents a registered choir member account. The record is created
// only after the signup OTP has been verified and a password chosen.
type User struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	Username     string    `json:"username" gorm:"uniqueIndex;size:255;not null"`
	Email        string    `json:"email" gorm:"uniqueIndex;size:255;not null"`
	Name         string    `json:"name" gorm:"size:255;not null"`
	PhotoLink    string    `json:"photo_link,omitempty" gorm:"size:512"`
	PasswordHash string    `json:"-" gorm:"size:255;not null"` // Never expose in JSON
	Role         string    `json:"role" gorm:"size:50;default:'user'"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`

	// Relations
	SearchHistory []SearchHistory `json:"search_history,omitempty" gorm:"foreignKey:UserID"`
}
