package models

import "github.com/google/uuid"

type Country struct {
	BaseModel
	Name     string    `json:"name" gorm:"type:varchar(255);not null"`
	RegionID uuid.UUID `json:"region_id" gorm:"type:uuid;not null;index"`
	Flag     *string   `json:"flag,omitempty" gorm:"type:text"`
	Rating   float64   `json:"rating" gorm:"not null;default:0"`

	ImageURL string `json:"image_url,omitempty" gorm:"-"`

	Region *Region `json:"region,omitempty" gorm:"foreignKey:RegionID"`
	Users  []User  `json:"-" gorm:"foreignKey:CountryID"`
}

func (Country) TableName() string {
	return "countries"
}
