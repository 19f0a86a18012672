package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"portfolio-backend/internal/shared/telemetry"
)

// Config holds application configuration.
type Config struct {
	Port            string
	Env             string
	CORSAllowOrigin []string

	ObjectStoreType string
	LocalStoreDir   string
	AWSRegion       string
	S3Bucket        string
	S3Prefix        string
	SSEKMSKeyID     string
	SignedURLTTL    time.Duration

	SessionStore string
	DatabaseURL  string
	RedisAddr    string
	RedisPrefix  string

	LLMProvider           string
	AzureOpenAIEndpoint   string
	AzureOpenAIKey        string
	AzureOpenAIDeployment string
	AzureOpenAIAPIVersion string
	LLMTimeout            time.Duration

	Dispatcher        string
	SQSQueueURL       string
	WorkerConcurrency int
	WorkerQueueSize   int

	RequirePhoneVerification bool
	SessionStaleAfter        time.Duration
	OTelEnabled              bool
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	// Best-effort load of local env files for dev convenience. Existing env wins.
	loadEnvFiles(".env", "cmd/.env")

	env := normalizeEnv(getEnv("ENV", "dev"))
	dbURL := os.Getenv("DATABASE_URL")
	sessionStore := normalizeSessionStore(getEnv("SESSION_STORE", ""), dbURL)

	if env == "production" && sessionStore == "memory" {
		telemetry.Warn("config.memory_sessions_in_production", map[string]any{"session_store": sessionStore})
	}

	return Config{
		Port:            getEnv("PORT", "8080"),
		Env:             env,
		CORSAllowOrigin: splitAndTrim(getEnv("CORS_ALLOW_ORIGINS", "http://localhost:3000")),

		ObjectStoreType: normalizeStoreType(getEnv("OBJECT_STORE", "local")),
		LocalStoreDir:   getEnv("LOCAL_STORE_DIR", "./data"),
		AWSRegion:       getEnv("AWS_REGION", ""),
		S3Bucket:        getEnv("S3_BUCKET", "portfolio-uploads"),
		S3Prefix:        getEnv("S3_PREFIX", ""),
		SSEKMSKeyID:     getEnv("SSE_KMS_KEY_ID", ""),
		SignedURLTTL:    getDuration("SIGNED_URL_TTL", 24*time.Hour),

		SessionStore: sessionStore,
		DatabaseURL:  dbURL,
		RedisAddr:    getEnv("REDIS_ADDR", ""),
		RedisPrefix:  getEnv("REDIS_PREFIX", "review:session:"),

		LLMProvider:           normalizeLLMProvider(getEnv("LLM_PROVIDER", ""), os.Getenv("AZURE_OPENAI_API_KEY")),
		AzureOpenAIEndpoint:   getEnv("AZURE_OPENAI_ENDPOINT", ""),
		AzureOpenAIKey:        getEnv("AZURE_OPENAI_API_KEY", ""),
		AzureOpenAIDeployment: getEnv("AZURE_OPENAI_DEPLOYMENT_NAME", "gpt-35-turbo"),
		AzureOpenAIAPIVersion: getEnv("AZURE_OPENAI_API_VERSION", "2024-10-21"),
		LLMTimeout:            time.Duration(getInt("LLM_TIMEOUT_SECONDS", 60)) * time.Second,

		Dispatcher:        normalizeDispatcher(getEnv("DISPATCHER", "local")),
		SQSQueueURL:       getEnv("RA_SQS_QUEUE_URL", ""),
		WorkerConcurrency: getInt("WORKER_CONCURRENCY", 4),
		WorkerQueueSize:   getInt("WORKER_QUEUE_SIZE", 64),

		RequirePhoneVerification: getBool("REQUIRE_PHONE_VERIFICATION", false),
		SessionStaleAfter:        getDuration("SESSION_STALE_AFTER", 0),
		OTelEnabled:              getBool("OTEL_ENABLED", false),
	}
}

func loadEnvFiles(paths ...string) {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			telemetry.Warn("config.env_file_skipped", map[string]any{"path": path, "error": err.Error()})
		}
	}
}

func getEnv(key, def string) string {
	if val := strings.TrimSpace(os.Getenv(key)); val != "" {
		return val
	}
	return def
}

func getInt(key string, def int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def})
		return def
	}
	return n
}

func getBool(key string, def bool) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(key))) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return def
	}
}

func getDuration(key string, def time.Duration) time.Duration {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d < 0 {
		telemetry.Warn("config.invalid_value", map[string]any{"key": key, "value": raw, "default": def.String()})
		return def
	}
	return d
}

func splitAndTrim(raw string) []string {
	parts := strings.Split(raw, ",")
	var out []string
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}

func normalizeStoreType(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "s3":
		return "s3"
	default:
		return "local"
	}
}

// normalizeSessionStore falls back to postgres when a DATABASE_URL is present.
func normalizeSessionStore(raw, dbURL string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "postgres", "pg":
		return "postgres"
	case "redis":
		return "redis"
	case "memory":
		return "memory"
	}
	if strings.TrimSpace(dbURL) != "" {
		return "postgres"
	}
	return "memory"
}

// normalizeLLMProvider picks the mock client when no Azure key is configured.
func normalizeLLMProvider(raw, azureKey string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "azure":
		return "azure"
	case "mock":
		return "mock"
	}
	if strings.TrimSpace(azureKey) != "" {
		return "azure"
	}
	return "mock"
}

func normalizeDispatcher(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "sqs":
		return "sqs"
	default:
		return "local"
	}
}
