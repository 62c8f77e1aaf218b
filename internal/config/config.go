package config

import (
	"os"
	"strconv"
	"strings"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	ServerPort string
	MySQLDSN   string
	RedisAddr  string
	RedisDB    int
	RedisPass  string
	JWTSecret  string

	// Allowed CORS origins for the SPA, comma separated in CLIENT_URL.
	ClientURLs []string

	MailServerToken string
	MailFrom        string

	MinioEndpoint  string
	MinioAccessKey string
	MinioSecretKey string
	MinioUseSSL    bool
	MinioBucket    string

	DefaultAdminEmail    string
	DefaultAdminUsername string
	DefaultAdminName     string
	DefaultAdminPhoto    string
	DefaultAdminPassword string

	SwaggerHost string
}

// Load builds Config from environment with sensible defaults.
func Load() *Config {
	return &Config{
		ServerPort: getEnv("SERVER_PORT", "8080"),
		MySQLDSN:   getEnv("MYSQL_DSN", "user:password@tcp(localhost:3306)/songbook?charset=utf8mb4&parseTime=True&loc=Local"),
		RedisAddr:  getEnv("REDIS_ADDR", "localhost:6379"),
		RedisDB:    getEnvInt("REDIS_DB", 0),
		RedisPass:  os.Getenv("REDIS_PASSWORD"),
		JWTSecret:  getEnv("JWT_SECRET", "change-me"),

		ClientURLs: getEnvList("CLIENT_URL", "http://localhost:5173"),

		MailServerToken: os.Getenv("MAIL_SERVER_TOKEN"),
		MailFrom:        getEnv("MAIL_FROM", "choir@mkc.org"),

		MinioEndpoint:  getEnv("MINIO_ENDPOINT", "localhost:9000"),
		MinioAccessKey: getEnv("MINIO_ACCESS_KEY", "minioadmin"),
		MinioSecretKey: getEnv("MINIO_SECRET_KEY", "minioadmin"),
		MinioUseSSL:    getEnvBool("MINIO_USE_SSL", false),
		MinioBucket:    getEnv("MINIO_BUCKET", "songbook-media"),

		DefaultAdminEmail:    getEnv("DEFAULT_ADMIN_EMAIL", "admin@mkc.org"),
		DefaultAdminUsername: getEnv("DEFAULT_ADMIN_USERNAME", "mkc-administrator"),
		DefaultAdminName:     getEnv("DEFAULT_ADMIN_NAME", "Administrator"),
		DefaultAdminPhoto:    os.Getenv("DEFAULT_ADMIN_PHOTO_LINK"),
		DefaultAdminPassword: os.Getenv("DEFAULT_ADMIN_PASSWORD"),

		SwaggerHost: os.Getenv("SWAGGER_HOST"),
	}
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getEnvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if parsed, err := strconv.ParseBool(v); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvList(key, def string) []string {
	raw := getEnv(key, def)
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
