package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Storage backends understood by the server.
const (
	BackendMinio  = "minio"
	BackendFS     = "fs"
	BackendMemory = "memory"
)

// Config stores the application configuration.
type Config struct {
	HTTPAddr       string
	RequestTimeout time.Duration

	StorageBackend string
	FSRoot         string // Root directory for the "fs" backend
	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioBucket    string
	MinioRegion    string
	MinioUseSSL    bool

	// PublicBaseURL is joined with public object keys. When empty, publish falls back to
	// root-relative URLs that only resolve when this server fronts the bucket.
	PublicBaseURL         string
	SongCount             int
	PlaybackURLTTL        time.Duration
	VerifyPublishSnapshot bool

	// Redis配置
	RedisEnabled  bool
	RedisHost     string
	RedisPort     string
	RedisPassword string
	RedisDB       int
	DraftTTL      time.Duration

	// DBName empty disables the project registry.
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string

	JWTSecret      string
	WriteRateLimit float64
	LogLevel       string
	LogFile        string
}

// getEnv gets an environment variable or returns a default value.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists {
		return value
	}
	return fallback
}

// getEnvInt gets an environment variable as int or returns a default value.
func getEnvInt(key string, fallback int) int {
	if value, exists := os.LookupEnv(key); exists {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value, exists := os.LookupEnv(key); exists {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value, exists := os.LookupEnv(key); exists {
		if b, err := strconv.ParseBool(strings.TrimSpace(value)); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value, exists := os.LookupEnv(key); exists {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return fallback
}

// Load loads configuration from environment variables (via .env file) or defaults.
func Load() *Config {
	// godotenv.Load() does not override variables that are already set.
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found or error loading .env, relying on existing environment variables and defaults.")
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment without touching .env files.
func FromEnv() *Config {
	songCount := getEnvInt("SONG_COUNT", 9)
	if songCount < 2 {
		songCount = 9
	}

	return &Config{
		HTTPAddr:       getEnv("HTTP_ADDR", ":8080"),
		RequestTimeout: getEnvDuration("REQUEST_TIMEOUT", 30*time.Second),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", BackendMinio)),
		FSRoot:         getEnv("STORAGE_FS_ROOT", "data"),
		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "127.0.0.1:9000"),
		MinioAccessKey: os.Getenv("MINIO_ACCESS_KEY"),
		MinioSecretKey: os.Getenv("MINIO_SECRET_KEY"),
		MinioBucket:    getEnv("MINIO_BUCKET", "minisite"),
		MinioRegion:    getEnv("MINIO_REGION", "us-east-1"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),

		PublicBaseURL:         strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		SongCount:             songCount,
		PlaybackURLTTL:        getEnvDuration("PLAYBACK_URL_TTL", 15*time.Minute),
		VerifyPublishSnapshot: getEnvBool("VERIFY_PUBLISH_SNAPSHOT", true),

		RedisEnabled:  getEnvBool("REDIS_ENABLED", false),
		RedisHost:     getEnv("REDIS_HOST", "127.0.0.1"),
		RedisPort:     getEnv("REDIS_PORT", "6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),
		DraftTTL:      getEnvDuration("DRAFT_TTL", 30*24*time.Hour),

		DBHost:     getEnv("DB_HOST", "127.0.0.1"),
		DBPort:     getEnv("DB_PORT", "3306"),
		DBUser:     getEnv("DB_USER", "root"),
		DBPassword: os.Getenv("DB_PASSWORD"),
		DBName:     getEnv("DB_NAME", ""),

		JWTSecret:      os.Getenv("JWT_SECRET"),
		WriteRateLimit: getEnvFloat("WRITE_RATE_LIMIT", 0),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		LogFile:        getEnv("LOG_FILE", ""),
	}
}

// RegistryEnabled reports whether a database registry is configured.
func (c *Config) RegistryEnabled() bool {
	return c.DBName != ""
}

// AuthEnabled reports whether write routes require a bearer token.
func (c *Config) AuthEnabled() bool {
	return c.JWTSecret != ""
}
