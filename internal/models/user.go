package models

import (
	"time"

	"github.com/google/uuid"
)

// User is the local principal record. FirebaseUID links it to the identity
// provider's parallel record; it stays nil for legacy accounts until their
// first password login migrates them.
type User struct {
	BaseModel
	Name            string     `json:"name" gorm:"type:varchar(255);not null"`
	Email           string     `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Password        string     `json:"-" gorm:"type:text;not null"`
	FirebaseUID     *string    `json:"firebase_uid,omitempty" gorm:"type:varchar(255);uniqueIndex"`
	EmailVerifiedAt *time.Time `json:"email_verified_at,omitempty"`
	DateOfBirth     *time.Time `json:"date_of_birth,omitempty"`
	CountryID       *uuid.UUID `json:"country_id,omitempty" gorm:"type:uuid;index"`
	ProfileImage    *string    `json:"profile_image,omitempty" gorm:"type:text"`

	ProfileImageURL string `json:"profile_image_url,omitempty" gorm:"-"`

	Country *Country `json:"country,omitempty" gorm:"foreignKey:CountryID"`
}

func (User) TableName() string {
	return "users"
}
