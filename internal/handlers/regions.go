package handlers

import (
	"errors"
	"strings"

	"github.com/findcamp/backend/internal/models"
	"github.com/findcamp/backend/internal/services"
	"github.com/findcamp/backend/internal/storage"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/findcamp/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type RegionsHandler struct {
	DB      *gorm.DB
	Uploads *services.UploadService
}

func NewRegionsHandler(db *gorm.DB, uploads *services.UploadService) *RegionsHandler {
	return &RegionsHandler{DB: db, Uploads: uploads}
}

type regionForm struct {
	Name string `json:"name" validate:"required,max=255"`
}

func (h *RegionsHandler) Index(c *fiber.Ctx) error {
	var regions []models.Region
	if err := h.DB.Preload("Countries").Find(&regions).Error; err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, "failed listing regions")
	}

	for i := range regions {
		presentRegion(h.Uploads, &regions[i])
	}
	return utils.Data(c, fiber.StatusOK, regions)
}

func (h *RegionsHandler) Store(c *fiber.Ctx) error {
	form := regionForm{Name: strings.TrimSpace(c.FormValue("name"))}
	messages := utils.ValidateStruct(form)
	if messages == nil {
		messages = map[string]string{}
	}

	fileHeader, err := c.FormFile("image")
	if err != nil {
		messages["image"] = "the image field is required"
	}
	if len(messages) > 0 {
		return utils.ValidationFailed(c, messages)
	}

	key, err := h.Uploads.Stage(c.Context(), storage.BucketRegions, fileHeader, services.RegionImageRules)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrFileTooLarge) {
			return utils.ValidationFailed(c, map[string]string{"image": err.Error()})
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed storing image")
	}

	region := models.Region{Name: form.Name, Image: &key}
	if err := h.DB.Create(&region).Error; err != nil {
		h.Uploads.Discard(c.Context(), storage.BucketRegions, key)
		return utils.Fail(c, fiber.StatusInternalServerError, "failed creating region")
	}

	logger.Info("region_created", map[string]interface{}{
		"region_id": region.ID.String(),
		"name":      region.Name,
		"image":     key,
	})

	return utils.Data(c, fiber.StatusCreated, presentRegion(h.Uploads, &region))
}

func (h *RegionsHandler) Show(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid region id")
	}

	var region models.Region
	if err := h.DB.Preload("Countries").First(&region, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "region not found")
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed loading region")
	}

	return utils.Data(c, fiber.StatusOK, presentRegion(h.Uploads, &region))
}

func (h *RegionsHandler) Update(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid region id")
	}

	var region models.Region
	if err := h.DB.First(&region, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "region not found")
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed loading region")
	}

	form := regionForm{Name: strings.TrimSpace(c.FormValue("name"))}
	if messages := utils.ValidateStruct(form); messages != nil {
		return utils.ValidationFailed(c, messages)
	}

	// Replacement image is staged before the record write; the previous blob
	// is only removed once the write succeeds.
	var pendingKey string
	var previousKey *string
	if fileHeader, fileErr := c.FormFile("image"); fileErr == nil {
		pendingKey, err = h.Uploads.Stage(c.Context(), storage.BucketRegions, fileHeader, services.RegionImageRules)
		if err != nil {
			if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrFileTooLarge) {
				return utils.ValidationFailed(c, map[string]string{"image": err.Error()})
			}
			return utils.Fail(c, fiber.StatusInternalServerError, "failed storing image")
		}
		previousKey = region.Image
		region.Image = &pendingKey
	}

	region.Name = form.Name
	if err := h.DB.Save(&region).Error; err != nil {
		h.Uploads.Discard(c.Context(), storage.BucketRegions, pendingKey)
		return utils.Fail(c, fiber.StatusInternalServerError, "failed updating region")
	}

	if pendingKey != "" && previousKey != nil {
		h.Uploads.Discard(c.Context(), storage.BucketRegions, *previousKey)
	}

	return utils.Data(c, fiber.StatusOK, presentRegion(h.Uploads, &region))
}

func (h *RegionsHandler) Destroy(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid region id")
	}

	var region models.Region
	if err := h.DB.First(&region, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return utils.Fail(c, fiber.StatusNotFound, "region not found")
		}
		return utils.Fail(c, fiber.StatusInternalServerError, "failed loading region")
	}

	// Blob first, record second: a delete failure leaves an invisible
	// orphaned blob rather than a record pointing at nothing.
	if region.Image != nil {
		h.Uploads.Discard(c.Context(), storage.BucketRegions, *region.Image)
	}

	if err := h.DB.Delete(&region).Error; err != nil {
		return utils.Fail(c, fiber.StatusInternalServerError, "failed deleting region")
	}

	logger.Info("region_deleted", map[string]interface{}{
		"region_id": region.ID.String(),
	})

	return c.SendStatus(fiber.StatusNoContent)
}
