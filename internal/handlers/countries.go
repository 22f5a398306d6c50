package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/findcamp/backend/internal/models"
	"github.com/findcamp/backend/internal/services"
	"github.com/findcamp/backend/internal/storage"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/findcamp/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type CountriesHandler struct {
	DB      *gorm.DB
	Uploads *services.UploadService
}

func NewCountriesHandler(db *gorm.DB, uploads *services.UploadService) *CountriesHandler {
	return &CountriesHandler{DB: db, Uploads: uploads}
}

type countryForm struct {
	Name     string  `json:"name" validate:"required,max=255"`
	RegionID string  `json:"region_id" validate:"required"`
	Rating   float64 `json:"rating" validate:"min=0,max=5"`
}

// Index supports two combinable filters: ?search= matches the country name
// or its region's name as a substring, ?region= matches the region name
// exactly.
func (h *CountriesHandler) Index(c *fiber.Ctx) error {
	query := h.DB.Model(&models.Country{}).
		Joins("JOIN regions ON regions.id = countries.region_id").
		Preload("Region")

	if search := strings.TrimSpace(c.Query("search")); search != "" {
		pattern := "%" + search + "%"
		query = query.Where(
			h.DB.Where("countries.name LIKE ?", pattern).Or("regions.name LIKE ?", pattern),
		)
	}
	if region := strings.TrimSpace(c.Query("region")); region != "" {
		query = query.Where("regions.name = ?", region)
	}

	var countries []models.Country
	if err := query.Find(&countries).Error; err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, "failed listing countries")
	}

	for i := range countries {
		presentCountry(h.Uploads, &countries[i])
	}
	return utils.Data(c, fiber.StatusOK, countries)
}

func (h *CountriesHandler) Store(c *fiber.Ctx) error {
	form, messages := h.parseCountryForm(c)

	fileHeader, err := c.FormFile("flag")
	if err != nil {
		messages["flag"] = "the flag field is required"
	}
	if len(messages) > 0 {
		return utils.ValidationFailed(c, messages)
	}

	regionID, _ := parseUUID(form.RegionID)

	key, err := h.Uploads.Stage(c.Context(), storage.BucketCountries, fileHeader, services.CountryFlagRules)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrFileTooLarge) {
			return utils.ValidationFailed(c, map[string]string{"flag": err.Error()})
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed storing flag")
	}

	country := models.Country{
		Name:     form.Name,
		RegionID: regionID,
		Flag:     &key,
		Rating:   form.Rating,
	}
	if err := h.DB.Create(&country).Error; err != nil {
		h.Uploads.Discard(c.Context(), storage.BucketCountries, key)
		return utils.Fail(c, fiber.StatusInternalServerError, "failed creating country")
	}

	logger.Info("country_created", map[string]interface{}{
		"country_id": country.ID.String(),
		"name":       country.Name,
		"region_id":  country.RegionID.String(),
	})

	h.DB.Preload("Region").First(&country, "id = ?", country.ID)
	return utils.Data(c, fiber.StatusCreated, presentCountry(h.Uploads, &country))
}

func (h *CountriesHandler) Show(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid country id")
	}

	var country models.Country
	if err := h.DB.Preload("Region").First(&country, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "country not found")
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed loading country")
	}

	return utils.Data(c, fiber.StatusOK, presentCountry(h.Uploads, &country))
}

func (h *CountriesHandler) Update(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid country id")
	}

	var country models.Country
	if err := h.DB.First(&country, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "country not found")
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed loading country")
	}

	form, messages := h.parseCountryForm(c)
	if len(messages) > 0 {
		return utils.ValidationFailed(c, messages)
	}
	regionID, _ := parseUUID(form.RegionID)

	var pendingKey string
	var previousKey *string
	if fileHeader, fileErr := c.FormFile("flag"); fileErr == nil {
		pendingKey, err = h.Uploads.Stage(c.Context(), storage.BucketCountries, fileHeader, services.CountryFlagRules)
		if err != nil {
			if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrFileTooLarge) {
				return utils.ValidationFailed(c, map[string]string{"flag": err.Error()})
			}
			return utils.Fail(c, fiber.StatusInternalServerError, "failed storing flag")
		}
		previousKey = country.Flag
		country.Flag = &pendingKey
	}

	country.Name = form.Name
	country.RegionID = regionID
	country.Rating = form.Rating
	if err := h.DB.Save(&country).Error; err != nil {
		h.Uploads.Discard(c.Context(), storage.BucketCountries, pendingKey)
		return utils.Fail(c, fiber.StatusInternalServerError, "failed updating country")
	}

	if pendingKey != "" && previousKey != nil {
		h.Uploads.Discard(c.Context(), storage.BucketCountries, *previousKey)
	}

	h.DB.Preload("Region").First(&country, "id = ?", country.ID)
	return utils.Data(c, fiber.StatusOK, presentCountry(h.Uploads, &country))
}

func (h *CountriesHandler) Destroy(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid country id")
	}

	var country models.Country
	if err := h.DB.First(&country, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "country not found")
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed loading country")
	}

	if country.Flag != nil {
		h.Uploads.Discard(c.Context(), storage.BucketCountries, *country.Flag)
	}

	if err := h.DB.Delete(&country).Error; err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, "failed deleting country")
	}

	logger.Info("country_deleted", map[string]interface{}{
		"country_id": country.ID.String(),
	})

	return c.SendStatus(fiber.StatusNoContent)
}

// parseCountryForm validates the scalar multipart fields shared by Store and
// Update. The returned map is never nil.
func (h *CountriesHandler) parseCountryForm(c *fiber.Ctx) (countryForm, map[string]string) {
	form := countryForm{
		Name:     strings.TrimSpace(c.FormValue("name")),
		RegionID: strings.TrimSpace(c.FormValue("region_id")),
	}

	messages := map[string]string{}

	ratingRaw := strings.TrimSpace(c.FormValue("rating"))
	if ratingRaw == "" {
		messages["rating"] = "the rating field is required"
	} else if rating, err := strconv.ParseFloat(ratingRaw, 64); err != nil {
		messages["rating"] = "the rating must be a number"
	} else {
		form.Rating = rating
	}

	for field, message := range utils.ValidateStruct(form) {
		messages[field] = message
	}

	if _, ok := messages["region_id"]; !ok && form.RegionID != "" {
		regionID, err := parseUUID(form.RegionID)
		if err != nil {
			messages["region_id"] = "the selected region_id is invalid"
		} else {
			var count int64
			h.DB.Model(&models.Region{}).Where("id = ?", regionID).Count(&count)
			if count == 0 {
				messages["region_id"] = "the selected region_id is invalid"
			}
		}
	}

	return form, messages
}
