package handlers

import (
	"strings"

	"github.com/findcamp/backend/internal/models"
	"github.com/findcamp/backend/internal/services"
	"github.com/findcamp/backend/internal/storage"
	"github.com/google/uuid"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

func presentRegion(uploads *services.UploadService, region *models.Region) *models.Region {
	region.ImageURL = uploads.URL(storage.BucketRegions, region.Image)
	for i := range region.Countries {
		presentCountry(uploads, &region.Countries[i])
	}
	return region
}

func presentCountry(uploads *services.UploadService, country *models.Country) *models.Country {
	country.ImageURL = uploads.URL(storage.BucketCountries, country.Flag)
	if country.Region != nil {
		country.Region.ImageURL = uploads.URL(storage.BucketRegions, country.Region.Image)
	}
	return country
}

func presentUser(uploads *services.UploadService, user *models.User) *models.User {
	user.ProfileImageURL = uploads.URL(storage.BucketProfileImages, user.ProfileImage)
	return user
}
