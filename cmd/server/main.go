package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/findcamp/backend/internal/config"
	"github.com/findcamp/backend/internal/database"
	"github.com/findcamp/backend/internal/handlers"
	"github.com/findcamp/backend/internal/identity"
	"github.com/findcamp/backend/internal/middleware"
	"github.com/findcamp/backend/internal/services"
	"github.com/findcamp/backend/internal/storage"
	"github.com/findcamp/backend/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()
	logger.Init()

	cfg := config.Load()

	db, err := database.Connect(cfg.DB)
	if err != nil {
		log.Fatalf("database connection failed: %v", err)
	}

	blobStore, err := buildBlobStore(cfg)
	if err != nil {
		log.Fatalf("storage initialization failed: %v", err)
	}

	provider, err := buildIdentityProvider(cfg)
	if err != nil {
		log.Fatalf("identity provider initialization failed: %v", err)
	}

	uploads := services.NewUploadService(blobStore)

	authHandler := handlers.NewAuthHandler(db, provider, uploads)
	regionsHandler := handlers.NewRegionsHandler(db, uploads)
	countriesHandler := handlers.NewCountriesHandler(db, uploads)
	authMiddleware := middleware.NewAuthMiddleware(provider)

	app := fiber.New(fiber.Config{BodyLimit: cfg.Server.BodyLimit})
	app.Use(recover.New(recover.Config{EnableStackTrace: true}))
	app.Use(middleware.CORS())
	app.Use(middleware.RequestLogger())

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.Status(fiber.StatusOK).JSON(fiber.Map{"status": "ok"})
	})

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

	listenAddr := fmt.Sprintf(":%s", cfg.Server.Port)

	logger.Info("server_starting", map[string]interface{}{
		"port":           cfg.Server.Port,
		"storage_driver": cfg.Storage.Driver,
	})

	errCh := make(chan error, 1)
	go func() {
		errCh <- app.Listen(listenAddr)
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-quit:
		log.Printf("shutting down server due to signal: %s", sig)
		shutdownDone := make(chan struct{})
		go func() {
			_ = app.Shutdown()
			close(shutdownDone)
		}()
		select {
		case <-shutdownDone:
		case <-time.After(10 * time.Second):
			log.Print("forced shutdown timeout reached")
		}
	case err := <-errCh:
		if err != nil {
			log.Fatalf("server error: %v", err)
		}
	}
}

func buildBlobStore(cfg *config.Config) (storage.BlobStore, error) {
	if cfg.Storage.Driver == "memory" {
		logger.Warn("storage_memory_driver", map[string]interface{}{
			"detail": "blobs are held in process memory and lost on restart",
		})
		return storage.NewMemoryStore(), nil
	}

	client, err := storage.NewMinIOClient(cfg.MinIO)
	if err != nil {
		return nil, err
	}
	if err := client.EnsureBucket(context.Background()); err != nil {
		return nil, err
	}
	return client, nil
}

func buildIdentityProvider(cfg *config.Config) (identity.Provider, error) {
	if cfg.Firebase.CredentialsFile == "" {
		logger.Warn("identity_local_provider", map[string]interface{}{
			"detail": "no firebase credentials configured, tokens are signed locally",
		})
		return identity.NewLocalProvider(cfg.Auth.TokenSecret), nil
	}
	return identity.NewFirebaseProvider(context.Background(), cfg.Firebase)
}
