package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User holds account credentials plus the profile attributes surfaced on the
// profile screen. Email is stored lower-cased; the password hash never leaves
// the server.
type User struct {
	ID       string `gorm:"primaryKey;type:uuid" json:"id"`
	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Password string `gorm:"not null" json:"-"`
	Name     string `gorm:"not null" json:"name"`

	Age            *int       `json:"age,omitempty"`
	DateOfBirth    *time.Time `json:"date_of_birth,omitempty"`
	FavoriteFood   string     `json:"favorite_food,omitempty"`
	ProfilePicture string     `json:"profile_picture,omitempty"`

	OneTimeCodes []OneTimeCode `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// BeforeCreate ensures a UUID is present before persisting.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}
