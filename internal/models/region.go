package models

// Region groups countries into a browsable area of the directory. Image holds
// the key of the region's cover blob in the "regions" bucket; a readable
// record never references a blob that is no longer stored.
type Region struct {
	BaseModel
	Name  string  `json:"name" gorm:"type:varchar(255);not null"`
	Image *string `json:"image,omitempty" gorm:"type:text"`

	// ImageURL is derived from Image at response time.
	ImageURL string `json:"image_url,omitempty" gorm:"-"`

	Countries []Country `json:"countries,omitempty" gorm:"foreignKey:RegionID"`
}

func (Region) TableName() string {
	return "regions"
}
