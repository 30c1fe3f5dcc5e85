package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	WorkerCount    int
	DatabaseURL    string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	// Conversation session handling
	StateBackend string // "memory" or "redis"
	SessionTTL   time.Duration
	Timezone     string

	// NailIt POS
	NailItBaseURL          string
	NailItSecurityToken    string
	NailItTimeout          time.Duration
	DefaultLocationID      int
	DefaultLocationName    string
	DefaultPaymentTypeID   int
	DefaultPaymentTypeName string

	// LLM providers
	OpenAIAPIKey   string
	OpenAIModel    string
	OpenAITimeout  time.Duration
	LLMTemperature float64
	LLMMaxTokens   int
	GeminiAPIKey   string
	GeminiModel    string

	// WhatsApp Cloud API
	WhatsAppVerifyToken   string
	WhatsAppAppSecret     string
	WhatsAppAccessToken   string
	WhatsAppPhoneNumberID string
	WhatsAppGraphBaseURL  string
	// WhatsApp Web bridge session database (sqlite DSN)
	WhatsAppWebStore string
	// ReplyProvider is auto, whatsapp_cloud, whatsapp_web or log.
	ReplyProvider string
	// TranscriptExcludePhones lists comma-separated test numbers kept out of transcripts.
	TranscriptExcludePhones string

	// AWS
	AWSRegion             string
	AWSAccessKeyID        string
	AWSSecretAccessKey    string
	AWSEndpointOverride   string
	ConversationQueueURL  string
	ConversationJobsTable string

	NATSURL   string
	NATSToken string

	// Booking confirmation email
	SendGridAPIKey    string
	SendGridFromEmail string
	SendGridFromName  string
	SESFromEmail      string

	CatalogSyncSpec    string
	RateLimitPerMinute int
}

// Load reads configuration from a local .env file (when present) and the environment.
func Load() *Config {
	// A missing .env is normal outside local development.
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 4),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		RedisAddr:     getEnv("REDIS_ADDR", "redis:6379"),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		StateBackend: strings.ToLower(strings.TrimSpace(getEnv("STATE_BACKEND", "redis"))),
		SessionTTL:   getEnvAsDuration("SESSION_TTL", 24*time.Hour),
		Timezone:     getEnv("SALON_TIMEZONE", "Asia/Kuwait"),

		NailItBaseURL:          getEnv("NAILIT_BASE_URL", "http://nailit.innovasolution.net"),
		NailItSecurityToken:    getEnv("NAILIT_SECURITY_TOKEN", ""),
		NailItTimeout:          getEnvAsDuration("NAILIT_TIMEOUT", 15*time.Second),
		DefaultLocationID:      getEnvAsInt("DEFAULT_LOCATION_ID", 1),
		DefaultLocationName:    getEnv("DEFAULT_LOCATION_NAME", "Al-Plaza Mall"),
		DefaultPaymentTypeID:   getEnvAsInt("DEFAULT_PAYMENT_TYPE_ID", 1),
		DefaultPaymentTypeName: getEnv("DEFAULT_PAYMENT_TYPE_NAME", "Cash on Arrival"),

		OpenAIAPIKey:   getEnv("OPENAI_API_KEY", ""),
		OpenAIModel:    getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		OpenAITimeout:  getEnvAsDuration("OPENAI_TIMEOUT", 30*time.Second),
		LLMTemperature: getEnvAsFloat("LLM_TEMPERATURE", 0.4),
		LLMMaxTokens:   getEnvAsInt("LLM_MAX_TOKENS", 400),
		GeminiAPIKey:   getEnv("GEMINI_API_KEY", ""),
		GeminiModel:    getEnv("GEMINI_MODEL", "gemini-2.5-flash"),

		WhatsAppVerifyToken:   getEnv("WHATSAPP_VERIFY_TOKEN", ""),
		WhatsAppAppSecret:     getEnv("WHATSAPP_APP_SECRET", ""),
		WhatsAppAccessToken:   getEnv("WHATSAPP_ACCESS_TOKEN", ""),
		WhatsAppPhoneNumberID: getEnv("WHATSAPP_PHONE_NUMBER_ID", ""),
		WhatsAppGraphBaseURL:  getEnv("WHATSAPP_GRAPH_BASE_URL", "https://graph.facebook.com/v20.0"),
		WhatsAppWebStore:      getEnv("WHATSAPP_WEB_STORE", "file:whatsapp-session.db?_foreign_keys=on"),
		ReplyProvider:         getEnv("REPLY_PROVIDER", "auto"),

		TranscriptExcludePhones: getEnv("TRANSCRIPT_EXCLUDE_PHONES", ""),

		AWSRegion:             getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:        getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:    getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride:   getEnv("AWS_ENDPOINT_OVERRIDE", ""),
		ConversationQueueURL:  getEnv("CONVERSATION_QUEUE_URL", ""),
		ConversationJobsTable: getEnv("CONVERSATION_JOBS_TABLE", "conversation_jobs"),

		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		SendGridAPIKey:    getEnv("SENDGRID_API_KEY", ""),
		SendGridFromEmail: getEnv("SENDGRID_FROM_EMAIL", ""),
		SendGridFromName:  getEnv("SENDGRID_FROM_NAME", "NailIt Salon"),
		SESFromEmail:      getEnv("SES_FROM_EMAIL", ""),

		CatalogSyncSpec:    getEnv("CATALOG_SYNC_SPEC", "@every 30m"),
		RateLimitPerMinute: getEnvAsInt("RATE_LIMIT_PER_MINUTE", 120),
	}
}

// UsesRedisState reports whether conversation state should live in Redis.
func (c *Config) UsesRedisState() bool {
	return c.StateBackend != "memory"
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseFloat(valueStr, 64); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}
