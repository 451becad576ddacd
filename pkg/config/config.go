package config

import (
	"fmt"
	"time"

	"lexportal-backend/pkg/env"
)

// Supported document store backends
const (
	StoreFirestore = "firestore"
	StoreMongo     = "mongo"
	StoreCockroach = "cockroach"
	StoreMemory    = "memory"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig
	Portal     PortalConfig
	Firestore  FirestoreConfig
	Mongo      MongoConfig
	Database   DatabaseConfig
	Redis      RedisConfig
	MinIO      MinIOConfig
	JWT        JWTConfig
	Completion CompletionConfig
	Push       PushConfig
	RateLimit  RateLimitConfig
	Log        LogConfig
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Port           int
	Environment    string // development, staging, production
	ServiceName    string
	AllowedOrigins []string
}

// PortalConfig holds the practice-level settings
type PortalConfig struct {
	// LawyerID identifies the practice's lawyer account. It is injected into
	// every service instead of being looked up from the store.
	LawyerID string
	// PersistLawyerRead makes the lawyer-side unread reset on open a store
	// write instead of a view-only reset.
	PersistLawyerRead bool
	// DocStore selects the document store backend
	DocStore string
}

// FirestoreConfig holds Cloud Firestore configuration
type FirestoreConfig struct {
	ProjectID       string
	CredentialsPath string
}

// MongoConfig holds MongoDB configuration
type MongoConfig struct {
	URI         string
	Database    string
	MaxPoolSize int
}

// DatabaseConfig holds CockroachDB configuration
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string
	MaxConns int
	MinConns int
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
	Timeout  time.Duration
}

// MinIOConfig holds MinIO configuration
type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret   string
	Audience string
}

// CompletionConfig holds the text-completion service configuration
type CompletionConfig struct {
	BaseURL     string
	Model       string
	APIKey      string
	Temperature float64
	Timeout     time.Duration
}

// PushConfig holds FCM device alert configuration. Alerts reuse the
// Firebase project from FirestoreConfig.
type PushConfig struct {
	Enabled bool
}

// RateLimitConfig limits assistant requests per user
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level    string // debug, info, warn, error
	Format   string // json, text
	Output   string // stdout, file
	FilePath string
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:           env.GetInt("PORT", 8080),
			Environment:    env.GetString("ENV", "development"),
			ServiceName:    env.GetString("SERVICE_NAME", "portal-service"),
			AllowedOrigins: env.GetStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
		},
		Portal: PortalConfig{
			LawyerID:          env.GetString("LAWYER_ID", ""),
			PersistLawyerRead: env.GetBool("PERSIST_LAWYER_READ", false),
			DocStore:          env.GetString("DOC_STORE", StoreFirestore),
		},
		Firestore: FirestoreConfig{
			ProjectID:       env.GetString("FIREBASE_PROJECT_ID", ""),
			CredentialsPath: env.GetString("FIREBASE_CREDENTIALS_PATH", env.GetString("GOOGLE_APPLICATION_CREDENTIALS", "")),
		},
		Mongo: MongoConfig{
			URI:         env.GetStringFromFile("MONGO_URI", "mongodb://localhost:27017"),
			Database:    env.GetString("MONGO_DATABASE", "portal"),
			MaxPoolSize: env.GetInt("MONGO_MAX_POOL_SIZE", 20),
		},
		Database: DatabaseConfig{
			Host:     env.GetString("DB_HOST", "localhost"),
			Port:     env.GetInt("DB_PORT", 26257),
			User:     env.GetString("DB_USER", "root"),
			Password: env.GetStringFromFile("DB_PASSWORD", ""),
			Database: env.GetString("DB_NAME", "portal"),
			SSLMode:  env.GetString("DB_SSL_MODE", "disable"),
			MaxConns: env.GetInt("DB_MAX_CONNS", 25),
			MinConns: env.GetInt("DB_MIN_CONNS", 5),
		},
		Redis: RedisConfig{
			Host:     env.GetString("REDIS_HOST", "localhost"),
			Port:     env.GetInt("REDIS_PORT", 6379),
			Password: env.GetStringFromFile("REDIS_PASSWORD", ""),
			DB:       env.GetInt("REDIS_DB", 0),
			PoolSize: env.GetInt("REDIS_POOL_SIZE", 10),
			Timeout:  env.GetDuration("REDIS_TIMEOUT", 5*time.Second),
		},
		MinIO: MinIOConfig{
			Endpoint:  env.GetString("MINIO_ENDPOINT", "localhost:9000"),
			AccessKey: env.GetStringFromFile("MINIO_ACCESS_KEY", "minioadmin"),
			SecretKey: env.GetStringFromFile("MINIO_SECRET_KEY", "minioadmin"),
			UseSSL:    env.GetBool("MINIO_USE_SSL", false),
			Bucket:    env.GetString("MINIO_BUCKET", "case-documents"),
		},
		JWT: JWTConfig{
			Secret:   env.GetStringFromFile("JWT_SECRET", ""),
			Audience: env.GetString("JWT_AUDIENCE", "portal-api"),
		},
		Completion: CompletionConfig{
			BaseURL:     env.GetString("LLM_BASE_URL", "https://api.openai.com/v1"),
			Model:       env.GetString("LLM_MODEL", "gpt-4o-mini"),
			APIKey:      env.GetStringFromFile("LLM_API_KEY", ""),
			Temperature: 0.2,
			Timeout:     env.GetDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Push: PushConfig{
			Enabled: env.GetBool("FCM_ENABLED", false),
		},
		RateLimit: RateLimitConfig{
			Requests: env.GetInt("AI_RATE_LIMIT", 20),
			Window:   env.GetDuration("AI_RATE_WINDOW", time.Minute),
		},
		Log: LogConfig{
			Level:    env.GetString("LOG_LEVEL", "info"),
			Format:   env.GetString("LOG_FORMAT", "json"),
			Output:   env.GetString("LOG_OUTPUT", "stdout"),
			FilePath: env.GetString("LOG_FILE_PATH", "/logs/portal.log"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Portal.LawyerID == "" {
		return fmt.Errorf("LAWYER_ID must be set")
	}

	switch c.Portal.DocStore {
	case StoreFirestore, StoreMongo, StoreCockroach, StoreMemory:
	default:
		return fmt.Errorf("unsupported DOC_STORE %q", c.Portal.DocStore)
	}

	if c.Server.Environment == "production" {
		if len(c.JWT.Secret) < 32 {
			return fmt.Errorf("JWT_SECRET must be at least 32 characters in production")
		}
		if c.Portal.DocStore == StoreMemory {
			return fmt.Errorf("DOC_STORE=memory is not allowed in production")
		}
	}

	if c.Push.Enabled && c.Firestore.ProjectID == "" {
		return fmt.Errorf("FIREBASE_PROJECT_ID must be set when FCM_ENABLED is true")
	}

	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 {
		return fmt.Errorf("AI_RATE_LIMIT and AI_RATE_WINDOW must be positive")
	}

	return nil
}
