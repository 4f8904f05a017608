package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Server captures HTTP server level configuration.
type Server struct {
	Addr          string
	JWTSigningKey string
	JWTIssuer     string
	JWTAudience   string
	// MaxUploadBytes bounds request bodies on document uploads.
	MaxUploadBytes int64
	RequestTimeout time.Duration

	Database     DatabaseConfig
	Redis        RedisConfig
	Kafka        KafkaConfig
	Dictamen     DictamenConfig
	Cases        CasesConfig
	Notification NotificationConfig
	Log          LogConfig
	Bootstrap    BootstrapConfig
	RateLimit    RateLimitConfig
}

// DatabaseConfig holds postgres settings. An empty URL selects in-memory stores.
type DatabaseConfig struct {
	URL             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the directory cache connection. An empty URL disables caching.
type RedisConfig struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	CacheTTL     time.Duration
}

// KafkaConfig selects the notification transport. No brokers means notifications are only logged.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// DictamenConfig selects where medical opinions are persisted.
type DictamenConfig struct {
	Backend          string
	DynamoDBEndpoint string
	Table            string
	Region           string
}

type CasesConfig struct {
	RequiredDocumentCategories int
}

type NotificationConfig struct {
	Timeout time.Duration
}

// BootstrapConfig seeds the first administrator when the directory has none.
// An empty Email disables seeding.
type BootstrapConfig struct {
	AdminEmail    string
	AdminName     string
	AdminPassword string
}

// RateLimitConfig budgets requests per actor and minute. Redis-backed when
// REDIS_URL is set.
type RateLimitConfig struct {
	Disabled       bool
	ReadPerMinute  int
	WritePerMinute int
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	DictamenBackendMemory   = "memory"
	DictamenBackendPostgres = "postgres"
	DictamenBackendDynamoDB = "dynamodb"
)

// FromEnv builds a Server config from environment variables so main stays lean.
func FromEnv() Server {
	jwtSigningKey := os.Getenv("JWT_SIGNING_KEY")
	if jwtSigningKey == "" {
		// Use a default for development - should be overridden in production
		jwtSigningKey = "dev-secret-key-change-in-production"
	}

	databaseURL := os.Getenv("DATABASE_URL")
	dictamenBackend := strings.ToLower(os.Getenv("DICTAMEN_BACKEND"))
	if dictamenBackend == "" {
		dictamenBackend = DictamenBackendMemory
		if databaseURL != "" {
			dictamenBackend = DictamenBackendPostgres
		}
	}

	return Server{
		Addr:           envString("JUNTAS_ADDR", ":8080"),
		JWTSigningKey:  jwtSigningKey,
		JWTIssuer:      envString("JWT_ISSUER", "juntas"),
		JWTAudience:    envString("JWT_AUDIENCE", "juntas-api"),
		MaxUploadBytes: int64(envInt("MAX_UPLOAD_BYTES", 20<<20)),
		RequestTimeout: envDuration("REQUEST_TIMEOUT", 30*time.Second),
		Database: DatabaseConfig{
			URL:             databaseURL,
			MaxOpenConns:    envInt("DATABASE_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    envInt("DATABASE_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: envDuration("DATABASE_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			URL:          os.Getenv("REDIS_URL"),
			PoolSize:     envInt("REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("REDIS_MIN_IDLE_CONNS", 2),
			DialTimeout:  envDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
			CacheTTL:     envDuration("DIRECTORY_CACHE_TTL", 5*time.Minute),
		},
		Kafka: KafkaConfig{
			Brokers: splitList(os.Getenv("KAFKA_BROKERS")),
			Topic:   envString("NOTIFICATION_TOPIC", "case-notifications"),
		},
		Dictamen: DictamenConfig{
			Backend:          dictamenBackend,
			DynamoDBEndpoint: os.Getenv("DYNAMODB_ENDPOINT"),
			Table:            envString("DICTAMEN_TABLE", "dictamenes"),
			Region:           envString("AWS_REGION", "us-east-1"),
		},
		Cases: CasesConfig{
			RequiredDocumentCategories: envInt("REQUIRED_DOCUMENT_CATEGORIES", 10),
		},
		Notification: NotificationConfig{
			Timeout: envDuration("NOTIFICATION_TIMEOUT", 10*time.Second),
		},
		Log: LogConfig{
			Level:  envString("LOG_LEVEL", "info"),
			Format: envString("LOG_FORMAT", "json"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    os.Getenv("BOOTSTRAP_ADMIN_EMAIL"),
			AdminName:     envString("BOOTSTRAP_ADMIN_NAME", "Administrador"),
			AdminPassword: os.Getenv("BOOTSTRAP_ADMIN_PASSWORD"),
		},
		RateLimit: RateLimitConfig{
			Disabled:       envBool("RATE_LIMIT_DISABLED"),
			ReadPerMinute:  envInt("RATE_LIMIT_READ_PER_MINUTE", 300),
			WritePerMinute: envInt("RATE_LIMIT_WRITE_PER_MINUTE", 60),
		},
	}
}

func envString(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

// envInt ignores unparsable or negative values.
func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

func envBool(key string) bool {
	v, err := strconv.ParseBool(strings.TrimSpace(os.Getenv(key)))
	return err == nil && v
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func splitList(raw string) []string {
	var out []string
	for part := range strings.SplitSeq(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
