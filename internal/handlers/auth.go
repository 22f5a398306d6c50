package handlers

import (
	"errors"
	"strings"
	"time"

	"github.com/findcamp/backend/internal/identity"
	"github.com/findcamp/backend/internal/middleware"
	"github.com/findcamp/backend/internal/models"
	"github.com/findcamp/backend/internal/services"
	"github.com/findcamp/backend/internal/storage"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/findcamp/backend/pkg/utils"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type AuthHandler struct {
	DB       *gorm.DB
	Identity identity.Provider
	Uploads  *services.UploadService
}

func NewAuthHandler(db *gorm.DB, provider identity.Provider, uploads *services.UploadService) *AuthHandler {
	return &AuthHandler{DB: db, Identity: provider, Uploads: uploads}
}

type registerRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8"`
	IDToken  string `json:"idToken"`
}

// Register creates an account. With an idToken the request is treated as an
// external-identity registration; otherwise the provider record is created
// first and the local row second, so a local write failure can leave an
// orphaned provider record behind.
func (h *AuthHandler) Register(c *fiber.Ctx) error {
	var req registerRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.IDToken != "" {
		return h.registerWithToken(c, req.IDToken)
	}

	req.Name = strings.TrimSpace(req.Name)
	req.Email = strings.ToLower(strings.TrimSpace(req.Email))

	messages := utils.ValidateStruct(req)
	if messages == nil {
		messages = map[string]string{}
	}
	if _, taken := messages["email"]; !taken && req.Email != "" {
		var count int64
		h.DB.Model(&models.User{}).Where("email = ?", req.Email).Count(&count)
		if count > 0 {
			messages["email"] = "the email has already been taken"
		}
	}
	if len(messages) > 0 {
		return utils.ValidationFailed(c, messages)
	}

	providerUser, err := h.Identity.CreateUser(c.Context(), identity.CreateUserParams{
		Email:         req.Email,
		Password:      req.Password,
		DisplayName:   req.Name,
		EmailVerified: false,
	})
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	hash, err := utils.HashPassword(req.Password)
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	user := models.User{
		Name:        req.Name,
		Email:       req.Email,
		Password:    hash,
		FirebaseUID: &providerUser.UID,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		// The provider record is not rolled back; it stays reachable for a
		// later registration attempt.
		logger.Error("register_local_write_failed", err, map[string]interface{}{
			"email":        req.Email,
			"firebase_uid": providerUser.UID,
		})
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	token, err := h.Identity.CustomToken(c.Context(), providerUser.UID)
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	logger.Info("user_registered", map[string]interface{}{
		"user_id": user.ID.String(),
		"email":   user.Email,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":        "Successfully registered",
		"user":           presentUser(h.Uploads, &user),
		"firebase_token": token,
	})
}

func (h *AuthHandler) registerWithToken(c *fiber.Ctx, idToken string) error {
	verified, err := h.Identity.VerifyToken(c.Context(), idToken)
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	providerUser, err := h.Identity.GetUser(c.Context(), verified.UID)
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	var existing models.User
	err = h.DB.First(&existing, "email = ?", providerUser.Email).Error
	if err == nil {
		// Already registered: the submitted token becomes the session token
		// without another provider round trip.
		return c.Status(fiber.StatusOK).JSON(fiber.Map{
			"message":      "User already exists",
			"user":         presentUser(h.Uploads, &existing),
			"access_token": idToken,
		})
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	hash, err := utils.HashPassword(utils.RandomPassword(16))
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	now := time.Now()
	user := models.User{
		Name:            providerUser.DisplayName,
		Email:           providerUser.Email,
		Password:        hash,
		FirebaseUID:     &verified.UID,
		EmailVerifiedAt: &now,
	}
	if err := h.DB.Create(&user).Error; err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Registration failed", err.Error())
	}

	logger.Info("user_registered_external", map[string]interface{}{
		"user_id":      user.ID.String(),
		"email":        user.Email,
		"firebase_uid": verified.UID,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":      "Successfully registered",
		"user":         presentUser(h.Uploads, &user),
		"access_token": idToken,
	})
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	IDToken  string `json:"idToken"`
}

func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req loginRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Fail(c, fiber.StatusBadRequest, "invalid request body")
	}

	if req.IDToken != "" {
		return h.loginWithToken(c, req.IDToken)
	}

	req.Email = strings.ToLower(strings.TrimSpace(req.Email))
	if messages := utils.ValidateStruct(req); messages != nil {
		return utils.ValidationFailed(c, messages)
	}

	var user models.User
	if err := h.DB.First(&user, "email = ?", req.Email).Error; err != nil {
		logger.Warn("login_failed_user_not_found", map[string]interface{}{
			"email": req.Email,
			"ip":    c.IP(),
		})
		return utils.Fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}
	if !utils.CheckPassword(req.Password, user.Password) {
		logger.Warn("login_failed_invalid_password", map[string]interface{}{
			"user_id": user.ID.String(),
			"ip":      c.IP(),
		})
		return utils.Fail(c, fiber.StatusUnauthorized, "Invalid credentials")
	}

	// Legacy accounts predate the identity provider; their first password
	// login creates the provider record and persists the uid.
	if user.FirebaseUID == nil {
		providerUser, err := h.Identity.CreateUser(c.Context(), identity.CreateUserParams{
			Email:    req.Email,
			Password: req.Password,
		})
		if err != nil {
			return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Login failed", err.Error())
		}
		user.FirebaseUID = &providerUser.UID
		if err := h.DB.Model(&user).Update("firebase_uid", providerUser.UID).Error; err != nil {
			return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Login failed", err.Error())
		}
		logger.Info("user_migrated_to_provider", map[string]interface{}{
			"user_id":      user.ID.String(),
			"firebase_uid": providerUser.UID,
		})
	}

	token, err := h.Identity.CustomToken(c.Context(), *user.FirebaseUID)
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Login failed", err.Error())
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user":           presentUser(h.Uploads, &user),
		"firebase_token": token,
		"message":        "Successfully logged in",
	})
}

// loginWithToken upserts the local user keyed by the token's email claim.
// Name, password placeholder, uid link and verification timestamp are
// overwritten on every login, matching the provider-side state.
func (h *AuthHandler) loginWithToken(c *fiber.Ctx, idToken string) error {
	verified, err := h.Identity.VerifyToken(c.Context(), idToken)
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
	}
	if verified.Email == "" {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Unauthorized", "token is missing an email claim")
	}

	name := verified.Name
	if name == "" {
		name = strings.Split(verified.Email, "@")[0]
	}

	hash, err := utils.HashPassword(utils.RandomPassword(16))
	if err != nil {
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
	}
	now := time.Now()

	var user models.User
	err = h.DB.First(&user, "email = ?", verified.Email).Error
	switch {
	case err == nil:
		user.Name = name
		user.Password = hash
		user.FirebaseUID = &verified.UID
		user.EmailVerifiedAt = &now
		if err := h.DB.Save(&user).Error; err != nil {
			return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		user = models.User{
			Name:            name,
			Email:           verified.Email,
			Password:        hash,
			FirebaseUID:     &verified.UID,
			EmailVerifiedAt: &now,
		}
		if err := h.DB.Create(&user).Error; err != nil {
			return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
		}
	default:
		return utils.FailWithMessage(c, fiber.StatusUnauthorized, "Unauthorized", err.Error())
	}

	logger.Info("user_login_external", map[string]interface{}{
		"user_id":      user.ID.String(),
		"firebase_uid": verified.UID,
	})

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user":         presentUser(h.Uploads, &user),
		"access_token": idToken,
		"message":      "Successfully logged in",
	})
}

func (h *AuthHandler) User(c *fiber.Ctx) error {
	uid := middleware.GetFirebaseUID(c)

	if _, err := h.Identity.GetUser(c.Context(), uid); err != nil {
		return utils.FailWithMessage(c, fiber.StatusNotFound, "User not found", err.Error())
	}

	var user models.User
	if err := h.DB.First(&user, "firebase_uid = ?", uid).Error; err != nil {
		return utils.Fail(c, fiber.StatusNotFound, "User not found")
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"user":         presentUser(h.Uploads, &user),
		"firebase_uid": uid,
	})
}

type profileForm struct {
	Name     string `json:"name" validate:"omitempty,max=255"`
	Password string `json:"password" validate:"omitempty,min=8"`
}

// UpdateProfile merges a sparse set of fields into the caller's record.
// Identity-relevant changes (email, password, name) are pushed to the
// provider before the local write; the provider push failing aborts the
// request before any local field is persisted.
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	uid := middleware.GetFirebaseUID(c)

	form := profileForm{
		Name:     strings.TrimSpace(c.FormValue("name")),
		Password: c.FormValue("password"),
	}
	email := strings.TrimSpace(c.FormValue("email"))
	dobRaw := strings.TrimSpace(c.FormValue("date_of_birth"))
	countryRaw := strings.TrimSpace(c.FormValue("country_id"))

	messages := utils.ValidateStruct(form)
	if messages == nil {
		messages = map[string]string{}
	}

	var dob time.Time
	if dobRaw != "" {
		var err error
		dob, err = time.Parse("2006-01-02", dobRaw)
		if err != nil {
			messages["date_of_birth"] = "the date_of_birth is not a valid date"
		}
	}

	var countryID string
	if countryRaw != "" {
		parsed, err := parseUUID(countryRaw)
		if err != nil {
			messages["country_id"] = "the selected country_id is invalid"
		} else {
			countryID = parsed.String()
		}
	}

	fileHeader, fileErr := c.FormFile("profile_image")
	hasImage := fileErr == nil

	if len(messages) > 0 {
		return utils.ValidationFailed(c, messages)
	}

	var user models.User
	if err := h.DB.First(&user, "firebase_uid = ?", uid).Error; err != nil {
		return utils.Fail(c, fiber.StatusNotFound, "User not found")
	}

	params := identity.UpdateUserParams{}
	if email != "" {
		params.Email = &email
	}
	if form.Password != "" {
		params.Password = &form.Password
	}
	if form.Name != "" {
		params.DisplayName = &form.Name
	}
	if params.Email != nil || params.Password != nil || params.DisplayName != nil {
		if _, err := h.Identity.UpdateUser(c.Context(), uid, params); err != nil {
			return utils.FailWithMessage(c, fiber.StatusInternalServerError, "Failed to update profile", err.Error())
		}
	}

	var pendingKey string
	var previousKey *string
	if hasImage {
		var err error
		pendingKey, err = h.Uploads.Stage(c.Context(), storage.BucketProfileImages, fileHeader, services.ProfileImageRules)
		if err != nil {
			if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrFileTooLarge) {
				return utils.ValidationFailed(c, map[string]string{"profile_image": err.Error()})
			}
			return utils.FailWithMessage(c, fiber.StatusInternalServerError, "Failed to update profile", err.Error())
		}
		previousKey = user.ProfileImage
		user.ProfileImage = &pendingKey
	}

	if form.Name != "" {
		user.Name = form.Name
	}
	if dobRaw != "" {
		user.DateOfBirth = &dob
	}
	if countryID != "" {
		parsed, _ := parseUUID(countryID)
		user.CountryID = &parsed
	}
	if form.Password != "" {
		hash, err := utils.HashPassword(form.Password)
		if err != nil {
			h.Uploads.Discard(c.Context(), storage.BucketProfileImages, pendingKey)
			return utils.FailWithMessage(c, fiber.StatusInternalServerError, "Failed to update profile", err.Error())
		}
		user.Password = hash
	}

	if err := h.DB.Save(&user).Error; err != nil {
		h.Uploads.Discard(c.Context(), storage.BucketProfileImages, pendingKey)
		return utils.FailWithMessage(c, fiber.StatusInternalServerError, "Failed to update profile", err.Error())
	}

	if pendingKey != "" && previousKey != nil {
		h.Uploads.Discard(c.Context(), storage.BucketProfileImages, *previousKey)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message": "Profile updated successfully",
		"user":    presentUser(h.Uploads, &user),
	})
}

func (h *AuthHandler) UpdateProfileImage(c *fiber.Ctx) error {
	uid := middleware.GetFirebaseUID(c)

	fileHeader, err := c.FormFile("profile_image")
	if err != nil {
		return utils.ValidationFailed(c, map[string]string{
			"profile_image": "the profile_image field is required",
		})
	}

	var user models.User
	if err := h.DB.First(&user, "firebase_uid = ?", uid).Error; err != nil {
		return utils.Fail(c, fiber.StatusNotFound, "User not found")
	}

	pendingKey, err := h.Uploads.Stage(c.Context(), storage.BucketProfileImages, fileHeader, services.ProfileImageRules)
	if err != nil {
		if errors.Is(err, services.ErrUnsupportedFormat) || errors.Is(err, services.ErrFileTooLarge) {
			return utils.ValidationFailed(c, map[string]string{"profile_image": err.Error()})
		}
		return utils.FailWithMessage(c, fiber.StatusInternalServerError, "Failed to update profile image", err.Error())
	}

	previousKey := user.ProfileImage
	user.ProfileImage = &pendingKey
	if err := h.DB.Save(&user).Error; err != nil {
		h.Uploads.Discard(c.Context(), storage.BucketProfileImages, pendingKey)
		return utils.FailWithMessage(c, fiber.StatusInternalServerError, "Failed to update profile image", err.Error())
	}

	if previousKey != nil {
		h.Uploads.Discard(c.Context(), storage.BucketProfileImages, *previousKey)
	}

	return c.Status(fiber.StatusOK).JSON(fiber.Map{
		"message":           "Profile image updated successfully",
		"profile_image_url": h.Uploads.URL(storage.BucketProfileImages, &pendingKey),
	})
}
