package config

import (
	"os"
	"strconv"
)

type Config struct {
	DB       DBConfig
	Storage  StorageConfig
	MinIO    MinIOConfig
	Firebase FirebaseConfig
	Auth     AuthConfig
	Server   ServerConfig
}

type DBConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	SSLMode  string
}

type StorageConfig struct {
	// Driver selects the blob store backend: "minio" or "memory". The memory
	// driver keeps blobs in-process and exists for credential-less local runs.
	Driver string
}

type MinIOConfig struct {
	Endpoint       string
	PublicEndpoint string
	AccessKey      string
	SecretKey      string
	Bucket         string
	UseSSL         bool
}

type FirebaseConfig struct {
	ProjectID       string
	CredentialsFile string
	DatabaseURL     string
}

type AuthConfig struct {
	// TokenSecret signs tokens issued by the local identity provider, used
	// when no Firebase service account is configured.
	TokenSecret string
}

type ServerConfig struct {
	Port      string
	BodyLimit int
}

func Load() *Config {
	return &Config{
		DB: DBConfig{
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "5432"),
			User:     getEnv("DB_USER", "findcamp"),
			Password: getEnv("DB_PASSWORD", "findcamp_secret"),
			Name:     getEnv("DB_NAME", "findcamp"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),
		},
		Storage: StorageConfig{
			Driver: getEnv("STORAGE_DRIVER", "minio"),
		},
		MinIO: MinIOConfig{
			Endpoint:       getEnv("MINIO_ENDPOINT", "localhost:9000"),
			PublicEndpoint: getEnv("MINIO_PUBLIC_ENDPOINT", getEnv("MINIO_ENDPOINT", "localhost:9000")),
			AccessKey:      getEnv("MINIO_ACCESS_KEY", "findcamp"),
			SecretKey:      getEnv("MINIO_SECRET_KEY", "findcamp_secret"),
			Bucket:         getEnv("MINIO_BUCKET", "findcamp"),
			UseSSL:         getEnvAsBool("MINIO_USE_SSL", false),
		},
		Firebase: FirebaseConfig{
			ProjectID:       getEnv("FIREBASE_PROJECT_ID", ""),
			CredentialsFile: getEnv("FIREBASE_CREDENTIALS_FILE", ""),
			DatabaseURL:     getEnv("FIREBASE_DATABASE_URL", ""),
		},
		Auth: AuthConfig{
			TokenSecret: getEnv("AUTH_TOKEN_SECRET", "change-me-in-production"),
		},
		Server: ServerConfig{
			Port:      getEnv("SERVER_PORT", "8080"),
			BodyLimit: getEnvAsInt("SERVER_BODY_LIMIT", 10*1024*1024),
		},
	}
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.Atoi(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvAsBool(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		parsed, err := strconv.ParseBool(value)
		if err == nil {
			return parsed
		}
	}
	return fallback
}
