package models

import "time"

// Account holds the login credentials for a user. Everything else about the
// user lives in the keyed store under the same UID.
type Account struct {
	UID          string `gorm:"primaryKey" json:"id"`
	Email        string `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"not null" json:"-"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
