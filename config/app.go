package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds the application settings read from the environment.
type Config struct {
	Port        string
	GinMode     string
	CORSOrigins []string
	AutoMigrate bool

	// Auth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string
	SessionSecret      string
	SessionTTL         time.Duration

	// Chat completion
	LLMProvider       string
	OpenRouterAPIKey  string
	OpenRouterBaseURL string
	LLMModel          string
	LLMAppURL         string
	LLMAppTitle       string
	VertexProjectID   string
	VertexLocation    string
	VertexModel       string

	// Storage
	StorageBackend string
	UploadsDir     string
	PrivateDir     string
	GCSBucket      string
	SignedURLTTL   time.Duration
	PublicBaseURL  string

	ProfileCacheTTL time.Duration

	DocumentServer DocumentServerConfig
}

// DocumentServerConfig configures the external office-document editor.
type DocumentServerConfig struct {
	URL            string
	JWTSecret      string
	JWTTTL         time.Duration
	CallbackBase   string
	VerifyCallback bool
}

// Load reads configuration from environment variables.
func Load() *Config {
	return &Config{
		Port:        getEnv("PORT", "8080"),
		GinMode:     getEnv("GIN_MODE", "release"),
		CORSOrigins: splitList(getEnv("CORS_ORIGINS", "http://localhost:3000")),
		AutoMigrate: getEnvBool("AUTO_MIGRATE", true),

		GoogleClientID:     getEnv("GOOGLE_CLIENT_ID", ""),
		GoogleClientSecret: getEnv("GOOGLE_CLIENT_SECRET", ""),
		GoogleRedirectURL:  getEnv("GOOGLE_REDIRECT_URL", "http://localhost:8080/api/auth/google/callback"),
		SessionSecret:      getEnv("SESSION_SECRET", ""),
		SessionTTL:         getEnvDuration("SESSION_TTL", 30*24*time.Hour),

		LLMProvider:       strings.ToLower(getEnv("LLM_PROVIDER", "openrouter")),
		OpenRouterAPIKey:  getEnv("OPENROUTER_API_KEY", ""),
		OpenRouterBaseURL: getEnv("OPENROUTER_BASE_URL", "https://openrouter.ai/api/v1"),
		LLMModel:          getEnv("LLM_MODEL", "anthropic/claude-3-haiku"),
		LLMAppURL:         getEnv("LLM_APP_URL", "https://alumo.app"),
		LLMAppTitle:       getEnv("LLM_APP_TITLE", "Alumo"),
		VertexProjectID:   getEnv("VERTEX_PROJECT_ID", ""),
		VertexLocation:    getEnv("VERTEX_LOCATION", "us-central1"),
		VertexModel:       getEnv("VERTEX_MODEL", "gemini-1.5-flash"),

		StorageBackend: strings.ToLower(getEnv("STORAGE_BACKEND", "local")),
		UploadsDir:     getEnv("UPLOADS_DIR", "./public/uploads"),
		PrivateDir:     getEnv("PRIVATE_DIR", "./data/private"),
		GCSBucket:      getEnv("GCS_BUCKET", ""),
		SignedURLTTL:   getEnvDuration("SIGNED_URL_TTL", 4*time.Hour),
		PublicBaseURL:  strings.TrimRight(getEnv("PUBLIC_BASE_URL", "http://localhost:8080"), "/"),

		ProfileCacheTTL: getEnvDuration("PROFILE_CACHE_TTL", 5*time.Minute),

		DocumentServer: DocumentServerConfig{
			URL:            strings.TrimRight(getEnv("DOCSERVER_URL", ""), "/"),
			JWTSecret:      getEnv("DOCSERVER_JWT_SECRET", ""),
			JWTTTL:         getEnvDuration("DOCSERVER_JWT_TTL", 4*time.Hour),
			CallbackBase:   strings.TrimRight(getEnv("CALLBACK_BASE_URL", ""), "/"),
			VerifyCallback: getEnvBool("DOCSERVER_VERIFY_CALLBACK", false),
		},
	}
}

// Validate checks the settings every deployment needs.
func (c *Config) Validate() error {
	if c.SessionSecret == "" {
		return &ConfigError{Field: "SESSION_SECRET", Message: "SESSION_SECRET is required"}
	}
	switch c.LLMProvider {
	case "openrouter":
		if c.OpenRouterAPIKey == "" {
			return &ConfigError{Field: "OPENROUTER_API_KEY", Message: "OPENROUTER_API_KEY is required for the openrouter provider"}
		}
	case "vertex":
		if c.VertexProjectID == "" {
			return &ConfigError{Field: "VERTEX_PROJECT_ID", Message: "VERTEX_PROJECT_ID is required for the vertex provider"}
		}
	default:
		return &ConfigError{Field: "LLM_PROVIDER", Message: "LLM_PROVIDER must be openrouter or vertex"}
	}
	if c.StorageBackend == "gcs" && c.GCSBucket == "" {
		return &ConfigError{Field: "GCS_BUCKET", Message: "GCS_BUCKET is required when STORAGE_BACKEND=gcs"}
	}
	return nil
}

// Validate is called on every document request; the integration fails
// closed when any value is missing or malformed.
func (d DocumentServerConfig) Validate() error {
	if d.URL == "" {
		return &ConfigError{Field: "DOCSERVER_URL", Message: "DOCSERVER_URL is not set"}
	}
	if !isAbsoluteURL(d.URL) {
		return &ConfigError{Field: "DOCSERVER_URL", Message: "DOCSERVER_URL must be an absolute http(s) URL"}
	}
	if d.JWTSecret == "" {
		return &ConfigError{Field: "DOCSERVER_JWT_SECRET", Message: "DOCSERVER_JWT_SECRET is not set"}
	}
	if d.CallbackBase == "" {
		return &ConfigError{Field: "CALLBACK_BASE_URL", Message: "CALLBACK_BASE_URL is not set"}
	}
	if !isAbsoluteURL(d.CallbackBase) {
		return &ConfigError{Field: "CALLBACK_BASE_URL", Message: "CALLBACK_BASE_URL must be an absolute http(s) URL"}
	}
	if d.JWTTTL <= 0 {
		return &ConfigError{Field: "DOCSERVER_JWT_TTL", Message: "DOCSERVER_JWT_TTL must be positive"}
	}
	return nil
}

// APIScriptURL is the editor bootstrap script the browser loads.
func (d DocumentServerConfig) APIScriptURL() string {
	return d.URL + "/web-apps/apps/api/documents/api.js"
}

// ConfigError represents a configuration error.
type ConfigError struct {
	Field   string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Message
}

func isAbsoluteURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func splitList(v string) []string {
	var out []string
	for _, p := range strings.Split(v, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
