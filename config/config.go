package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds everything the service reads from the environment. Call Load
// after godotenv has populated the process env.
type Config struct {
	Port string

	// Postgres
	DBHost     string
	DBPort     string
	DBUser     string
	DBPassword string
	DBName     string
	DBSSLMode  string

	// Redis (bloom filter + embedding cache); empty addr disables both.
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	// Kafka; empty broker list disables event publishing.
	KafkaBrokers       []string
	KafkaTopicApproved string
	KafkaGroupID       string

	// Object storage; empty bucket falls back to UploadDir on local disk.
	S3Bucket  string
	S3Prefix  string
	S3Region  string
	UploadDir string

	// External services
	UnsplashAccessKey string
	AppAPIURL         string
	AppAPIKey         string

	// Auth
	JWTSecret         string
	AdminUsername     string
	AdminPasswordHash string

	// Dedup tuning
	SimilarityThreshold float64
	EmbedTimeout        time.Duration

	// Feed watcher
	FeedURLs []string
}

// Load reads configuration from the environment, applying defaults for
// anything unset.
func Load() Config {
	return Config{
		Port: getEnv("PORT", "8080"),

		DBHost:     getEnv("DB_HOST", "localhost"),
		DBPort:     getEnv("DB_PORT", "5432"),
		DBUser:     getEnv("DB_USER", "postgres"),
		DBPassword: getEnv("DB_PASSWORD", "postgres"),
		DBName:     getEnv("DB_NAME", "healthbrief"),
		DBSSLMode:  getEnv("DB_SSLMODE", "disable"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("REDIS_DB", 0),

		KafkaBrokers:       splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopicApproved: getEnv("KAFKA_TOPIC_APPROVED", "healthbrief.articles.approved"),
		KafkaGroupID:       getEnv("KAFKA_GROUP_ID", "healthbrief-upload-worker"),

		S3Bucket:  getEnv("S3_BUCKET", ""),
		S3Prefix:  getEnv("S3_PREFIX", "healthbrief"),
		S3Region:  getEnv("AWS_REGION", ""),
		UploadDir: getEnv("UPLOAD_DIR", "uploads"),

		UnsplashAccessKey: getEnv("UNSPLASH_ACCESS_KEY", ""),
		AppAPIURL:         getEnv("APP_DB_API_URL", ""),
		AppAPIKey:         getEnv("APP_DB_API_KEY", ""),

		JWTSecret:         getEnv("JWT_SECRET", ""),
		AdminUsername:     getEnv("ADMIN_USERNAME", "admin"),
		AdminPasswordHash: getEnv("ADMIN_PASSWORD_HASH", ""),

		SimilarityThreshold: getEnvFloat("SIMILARITY_THRESHOLD", DefaultSimilarityThreshold),
		EmbedTimeout:        getEnvDuration("EMBED_TIMEOUT", DefaultEmbedTimeout),

		FeedURLs: splitList(getEnv("FEED_URLS", "")),
	}
}

// DSN builds the Postgres connection string for gorm.
func (c Config) DSN() string {
	return fmt.Sprintf("host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		c.DBHost, c.DBPort, c.DBUser, c.DBPassword, c.DBName, c.DBSSLMode)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			return n
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}

func splitList(val string) []string {
	if val == "" {
		return nil
	}
	parts := strings.Split(val, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
