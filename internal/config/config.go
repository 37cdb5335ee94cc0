// Package config provides environment configuration for the support agent.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Providers and store backends understood by Validate.
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderMock      = "mock"

	BackendMongo  = "mongo"
	BackendMemory = "memory"
)

// Config holds all configuration for the application.
type Config struct {
	// Server settings
	ServerPort         string
	ServerReadTimeout  time.Duration
	ServerWriteTimeout time.Duration

	// LLM settings
	LLMProvider     string
	OpenAIAPIKey    string
	OpenAIBaseURL   string
	OpenAIModel     string
	AnthropicAPIKey string
	AnthropicModel  string
	Temperature     float64
	MaxTokens       int
	MaxRetries      int

	// Cost rates, USD per million tokens
	InputCostPerMillion  float64
	OutputCostPerMillion float64

	// Document store
	StoreBackend    string
	MongoURI        string
	MongoDatabase   string
	MongoCollection string
	MongoTimeout    time.Duration
	RecentLimit     int

	// Failed-save spool
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	SpoolInterval time.Duration

	// Completion events
	NATSURL   string
	NATSToken string

	// Live sessions
	SessionIdleTimeout time.Duration

	// Rate limiting
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// CORS; empty allows any http or https origin
	AllowedOrigins []string

	// Logging
	LogLevel string

	// Tracing
	TracingEndpoint string
	TracingEnabled  bool
}

// Load reads configuration from environment variables. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		// Server
		ServerPort:         getEnv("PORT", "8080"),
		ServerReadTimeout:  getDurationEnv("SERVER_READ_TIMEOUT", 30*time.Second),
		ServerWriteTimeout: getDurationEnv("SERVER_WRITE_TIMEOUT", 120*time.Second),

		// LLM
		LLMProvider:     strings.ToLower(strings.TrimSpace(getEnv("LLM_PROVIDER", ProviderOpenAI))),
		OpenAIAPIKey:    getEnv("OPENAI_API_KEY", ""),
		OpenAIBaseURL:   getEnv("OPENAI_BASE_URL", ""),
		OpenAIModel:     getEnv("OPENAI_MODEL", "gpt-4o-mini"),
		AnthropicAPIKey: getEnv("ANTHROPIC_API_KEY", ""),
		AnthropicModel:  getEnv("ANTHROPIC_MODEL", "claude-3-5-haiku-20241022"),
		Temperature:     getFloatEnv("LLM_TEMPERATURE", 0.7),
		MaxTokens:       getIntEnv("LLM_MAX_TOKENS", 2048),
		MaxRetries:      getIntEnv("LLM_MAX_RETRIES", 2),

		// Costs
		InputCostPerMillion:  getFloatEnv("INPUT_COST_PER_MILLION", 0.15),
		OutputCostPerMillion: getFloatEnv("OUTPUT_COST_PER_MILLION", 0.60),

		// Store
		StoreBackend:    strings.ToLower(strings.TrimSpace(getEnv("STORE_BACKEND", BackendMongo))),
		MongoURI:        getEnv("MONGODB_URI", "mongodb://localhost:27017/"),
		MongoDatabase:   getEnv("MONGODB_DATABASE", "liaplus_chatbot"),
		MongoCollection: getEnv("MONGODB_COLLECTION", "conversations"),
		MongoTimeout:    getDurationEnv("MONGODB_TIMEOUT", 10*time.Second),
		RecentLimit:     getIntEnv("RECENT_LIMIT", 10),

		// Spool
		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisDB:       getIntEnv("REDIS_DB", 0),
		SpoolInterval: getDurationEnv("SPOOL_INTERVAL", time.Minute),

		// NATS
		NATSURL:   getEnv("NATS_URL", ""),
		NATSToken: getEnv("NATS_TOKEN", ""),

		// Sessions
		SessionIdleTimeout: getDurationEnv("SESSION_IDLE_TIMEOUT", 30*time.Minute),

		// Rate limiting
		RateLimitRequests: getIntEnv("RATE_LIMIT_REQUESTS", 60),
		RateLimitWindow:   getDurationEnv("RATE_LIMIT_WINDOW", time.Minute),

		// CORS
		AllowedOrigins: getListEnv("CORS_ALLOWED_ORIGINS"),

		// Logging
		LogLevel: getEnv("LOG_LEVEL", "info"),

		// Tracing
		TracingEndpoint: getEnv("TRACING_ENDPOINT", "localhost:4318"),
		TracingEnabled:  getBoolEnv("TRACING_ENABLED", false),
	}
}

// ValidationError lists every setting that is missing or invalid.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

// Validate checks the settings needed before any conversation starts.
func (c *Config) Validate() error {
	var problems []string

	switch c.LLMProvider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			problems = append(problems, "OPENAI_API_KEY is not set")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			problems = append(problems, "ANTHROPIC_API_KEY is not set")
		}
	case ProviderMock:
	default:
		problems = append(problems, fmt.Sprintf("LLM_PROVIDER %q is not one of openai, anthropic, mock", c.LLMProvider))
	}

	switch c.StoreBackend {
	case BackendMongo:
		if c.MongoURI == "" {
			problems = append(problems, "MONGODB_URI is not set")
		}
		if c.MongoDatabase == "" {
			problems = append(problems, "MONGODB_DATABASE is not set")
		}
		if c.MongoCollection == "" {
			problems = append(problems, "MONGODB_COLLECTION is not set")
		}
	case BackendMemory:
	default:
		problems = append(problems, fmt.Sprintf("STORE_BACKEND %q is not one of mongo, memory", c.StoreBackend))
	}

	if c.InputCostPerMillion < 0 {
		problems = append(problems, "INPUT_COST_PER_MILLION must not be negative")
	}
	if c.OutputCostPerMillion < 0 {
		problems = append(problems, "OUTPUT_COST_PER_MILLION must not be negative")
	}
	if c.MaxRetries < 0 {
		problems = append(problems, "LLM_MAX_RETRIES must not be negative")
	}

	if len(problems) > 0 {
		return &ValidationError{Problems: problems}
	}
	return nil
}

// Model returns the model name for the selected provider.
func (c *Config) Model() string {
	switch c.LLMProvider {
	case ProviderAnthropic:
		return c.AnthropicModel
	case ProviderMock:
		return "mock"
	}
	return c.OpenAIModel
}

// APIKey returns the API key for the selected provider.
func (c *Config) APIKey() string {
	if c.LLMProvider == ProviderAnthropic {
		return c.AnthropicAPIKey
	}
	return c.OpenAIAPIKey
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getListEnv splits a comma-separated variable, dropping blank items.
func getListEnv(key string) []string {
	var out []string
	for _, item := range strings.Split(os.Getenv(key), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getFloatEnv(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
