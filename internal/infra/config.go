package infra

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/leavend/photorefine/internal/domain"
)

// Config represents application configuration loaded from environment variables.
type Config struct {
	AppEnv             string
	Port               string
	GeminiAPIKey       string
	GeminiModel        string
	GeminiBaseURL      string
	DefaultLocale      string
	DefaultPrompt      string
	CORSAllowedOrigins []string
	MaxUploadBytes     int64
	MaxSourceDimension int
	SessionIdleTTL     time.Duration
	ExportDir          string
	HTTPReadTimeout    time.Duration
	HTTPWriteTimeout   time.Duration
	HTTPIdleTimeout    time.Duration
}

// LoadConfig loads configuration from environment variables and applies defaults where needed.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		AppEnv:             getEnv("APP_ENV", "development"),
		Port:               getEnv("PORT", "8080"),
		GeminiAPIKey:       strings.TrimSpace(getEnv("GEMINI_API_KEY", os.Getenv("API_KEY"))),
		GeminiModel:        getEnv("GEMINI_IMAGE_MODEL", "gemini-2.5-flash-image"),
		GeminiBaseURL:      os.Getenv("GEMINI_BASE_URL"),
		DefaultLocale:      getEnv("DEFAULT_LOCALE", "en"),
		DefaultPrompt:      getEnv("EDITOR_DEFAULT_PROMPT", domain.DefaultPrompt),
		CORSAllowedOrigins: splitList(os.Getenv("CORS_ALLOWED_ORIGINS")),
		MaxUploadBytes:     int64(getEnvInt("EDITOR_MAX_UPLOAD_BYTES", 20<<20)),
		MaxSourceDimension: getEnvInt("EDITOR_MAX_SOURCE_DIMENSION", 4096),
		SessionIdleTTL:     time.Second * time.Duration(getEnvInt("SESSION_IDLE_TTL_SECONDS", 1800)),
		ExportDir:          getEnv("EXPORT_DIR", "."),
		HTTPReadTimeout:    time.Second * time.Duration(getEnvInt("HTTP_READ_TIMEOUT_SECONDS", 30)),
		HTTPWriteTimeout:   time.Second * time.Duration(getEnvInt("HTTP_WRITE_TIMEOUT_SECONDS", 120)),
		HTTPIdleTimeout:    time.Second * time.Duration(getEnvInt("HTTP_IDLE_TIMEOUT_SECONDS", 60)),
	}

	if cfg.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}

	if cfg.MaxUploadBytes <= 0 {
		return nil, fmt.Errorf("EDITOR_MAX_UPLOAD_BYTES must be positive")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if v := strings.TrimSpace(part); v != "" {
			out = append(out, v)
		}
	}
	return out
}
