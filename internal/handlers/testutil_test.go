package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/findcamp/backend/internal/database"
	"github.com/findcamp/backend/internal/identity"
	"github.com/findcamp/backend/internal/middleware"
	"github.com/findcamp/backend/internal/services"
	"github.com/findcamp/backend/internal/storage"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/glebarez/sqlite"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"
)

type testEnv struct {
	app      *fiber.App
	db       *gorm.DB
	store    *storage.MemoryStore
	identity *identity.LocalProvider
	uploads  *services.UploadService
}

var testSetupOnce sync.Once

func setupTestEnv(t *testing.T) *testEnv {
	t.Helper()

	testSetupOnce.Do(func() {
		logger.Init()
	})

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed opening in-memory sqlite database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed getting sql.DB from gorm: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	t.Cleanup(func() {
		_ = sqlDB.Close()
	})

	if err := database.Migrate(db); err != nil {
		t.Fatalf("failed automigrating models: %v", err)
	}

	store := storage.NewMemoryStore()
	provider := identity.NewLocalProvider("test-secret")
	uploads := services.NewUploadService(store)

	authHandler := NewAuthHandler(db, provider, uploads)
	regionsHandler := NewRegionsHandler(db, uploads)
	countriesHandler := NewCountriesHandler(db, uploads)
	authMiddleware := middleware.NewAuthMiddleware(provider)

	app := fiber.New(fiber.Config{BodyLimit: 10 * 1024 * 1024})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	api := app.Group("/api")

	authRoutes := api.Group("/auth")
	authRoutes.Post("/register", authHandler.Register)
	authRoutes.Post("/login", authHandler.Login)

	api.Get("/user", authMiddleware.RequireAuth, authHandler.User)
	api.Post("/user/update", authMiddleware.RequireAuth, authHandler.UpdateProfile)
	api.Post("/user/update-image", authMiddleware.RequireAuth, authHandler.UpdateProfileImage)

	regionRoutes := api.Group("/regions")
	regionRoutes.Get("/", regionsHandler.Index)
	regionRoutes.Post("/", regionsHandler.Store)
	regionRoutes.Get("/:id", regionsHandler.Show)
	regionRoutes.Put("/:id", regionsHandler.Update)
	regionRoutes.Patch("/:id", regionsHandler.Update)
	regionRoutes.Delete("/:id", regionsHandler.Destroy)

	countryRoutes := api.Group("/countries")
	countryRoutes.Get("/", countriesHandler.Index)
	countryRoutes.Post("/", countriesHandler.Store)
	countryRoutes.Get("/:id", countriesHandler.Show)
	countryRoutes.Put("/:id", countriesHandler.Update)
	countryRoutes.Patch("/:id", countriesHandler.Update)
	countryRoutes.Delete("/:id", countriesHandler.Destroy)

	return &testEnv{app: app, db: db, store: store, identity: provider, uploads: uploads}
}

func performRequest(t *testing.T, app *fiber.App, method, path string, body io.Reader, headers map[string]string) *http.Response {
	t.Helper()

	req := httptest.NewRequest(method, path, body)
	for key, value := range headers {
		req.Header.Set(key, value)
	}

	resp, err := app.Test(req, int((10 * time.Second).Milliseconds()))
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}

	return resp
}

func performJSONRequest(t *testing.T, app *fiber.App, method, path string, payload any, headers map[string]string) *http.Response {
	t.Helper()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("failed to marshal payload: %v", err)
		}
		body = bytes.NewReader(encoded)
	}

	requestHeaders := map[string]string{}
	for key, value := range headers {
		requestHeaders[key] = value
	}
	if payload != nil {
		requestHeaders["Content-Type"] = "application/json"
	}

	return performRequest(t, app, method, path, body, requestHeaders)
}

type uploadFile struct {
	name    string
	content []byte
}

func performMultipartRequest(t *testing.T, app *fiber.App, method, path string, fields map[string]string, files map[string]uploadFile, headers map[string]string) *http.Response {
	t.Helper()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	for field, value := range fields {
		if err := writer.WriteField(field, value); err != nil {
			t.Fatalf("failed writing form field %s: %v", field, err)
		}
	}
	for field, file := range files {
		part, err := writer.CreateFormFile(field, file.name)
		if err != nil {
			t.Fatalf("failed creating form file %s: %v", field, err)
		}
		if _, err := part.Write(file.content); err != nil {
			t.Fatalf("failed writing form file %s: %v", field, err)
		}
	}
	if err := writer.Close(); err != nil {
		t.Fatalf("failed closing multipart writer: %v", err)
	}

	requestHeaders := map[string]string{"Content-Type": writer.FormDataContentType()}
	for key, value := range headers {
		requestHeaders[key] = value
	}

	return performRequest(t, app, method, path, &buf, requestHeaders)
}

func decodeJSONMap(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("failed reading response body: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(raw, &payload); err != nil {
		t.Fatalf("failed decoding JSON response: %v body=%q", err, string(raw))
	}

	return payload
}

func assertStatus(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	if resp.StatusCode != expected {
		t.Fatalf("expected status %d, got %d", expected, resp.StatusCode)
	}
}

func authHeaders(token string) map[string]string {
	return map[string]string{"Authorization": "Bearer " + token}
}

// externalAccount seeds a provider-side user and returns an id token for it.
func externalAccount(t *testing.T, env *testEnv, email, displayName string) (string, string) {
	t.Helper()

	record, err := env.identity.CreateUser(context.Background(), identity.CreateUserParams{
		Email:         email,
		DisplayName:   displayName,
		EmailVerified: true,
	})
	if err != nil {
		t.Fatalf("failed creating provider user: %v", err)
	}

	token, err := env.identity.CustomToken(context.Background(), record.UID)
	if err != nil {
		t.Fatalf("failed issuing provider token: %v", err)
	}

	return record.UID, token
}

func blobExists(t *testing.T, env *testEnv, bucket, key string) bool {
	t.Helper()

	exists, err := env.store.Exists(context.Background(), bucket, key)
	if err != nil {
		t.Fatalf("failed checking blob existence: %v", err)
	}
	return exists
}

func createTestRegion(t *testing.T, env *testEnv, name string) map[string]any {
	t.Helper()

	resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/regions",
		map[string]string{"name": name},
		map[string]uploadFile{"image": {name: "cover.jpg", content: []byte("jpg-bytes")}},
		nil,
	)
	assertStatus(t, resp, http.StatusCreated)
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}

func createTestCountry(t *testing.T, env *testEnv, name, regionID string, rating string) map[string]any {
	t.Helper()

	resp := performMultipartRequest(t, env.app, http.MethodPost, "/api/countries",
		map[string]string{"name": name, "region_id": regionID, "rating": rating},
		map[string]uploadFile{"flag": {name: "flag.png", content: []byte("png-bytes")}},
		nil,
	)
	assertStatus(t, resp, http.StatusCreated)
	body := decodeJSONMap(t, resp)
	data, ok := body["data"].(map[string]any)
	if !ok {
		t.Fatalf("expected data object, got %+v", body)
	}
	return data
}
