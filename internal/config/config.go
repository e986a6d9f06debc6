package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends accepted by STORE_BACKEND.
const (
	StoreSQLite = "sqlite"
	StoreDynamo = "dynamo"
)

// Config holds all runtime configuration loaded from environment variables.
type Config struct {
	AppHost        string // interface to listen on; loopback unless set
	AppPort        string
	AppEnv         string
	AllowedOrigins []string // CORS allowed origins; empty allows none
	AgentKey       string   // shared bearer key the local UI presents on /v1

	AuthorityBaseURL     string
	AuthorityTimeout     time.Duration
	SessionRefreshWindow time.Duration // refresh the session when it expires within this window
	PendingScanTTL       time.Duration

	StoreBackend string
	SQLitePath   string

	AWSRegion      string
	AWSEndpointURL string // empty in prod, set to LocalStack URL in dev
	AWSAccessKeyID string
	AWSSecretKey   string
	DynamoTables   DynamoTables
	ReceiptsBucket string // empty disables the receipt archive

	RateLimitRPS      float64
	RateLimitBurst    int
	TrustProxyHeaders bool // key rate limits on X-Forwarded-For / X-Real-Ip
}

// DynamoTables holds the DynamoDB table name for each entity.
type DynamoTables struct {
	Credentials string
}

// Load reads all configuration from environment variables.
func Load() *Config {
	return &Config{
		AppHost:        getEnv("APP_HOST", "127.0.0.1"),
		AppPort:        getEnv("APP_PORT", "3080"),
		AppEnv:         getEnv("APP_ENV", "development"),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS"),
		AgentKey:       getEnv("AGENT_API_KEY", ""),

		AuthorityBaseURL:     strings.TrimRight(getEnv("AUTHORITY_BASE_URL", "http://localhost:3000/v1"), "/"),
		AuthorityTimeout:     getEnvDuration("AUTHORITY_TIMEOUT", 10*time.Second),
		SessionRefreshWindow: getEnvDuration("SESSION_REFRESH_WINDOW", 5*time.Minute),
		PendingScanTTL:       getEnvDuration("PENDING_SCAN_TTL", 10*time.Minute),

		StoreBackend: getEnv("STORE_BACKEND", StoreSQLite),
		SQLitePath:   getEnv("SQLITE_PATH", "./checkin-agent.db"),

		AWSRegion:      getEnv("AWS_REGION", "us-east-1"),
		AWSEndpointURL: getEnv("AWS_ENDPOINT_URL", ""),
		AWSAccessKeyID: getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretKey:   getEnv("AWS_SECRET_ACCESS_KEY", ""),
		DynamoTables: DynamoTables{
			Credentials: getEnv("DYNAMO_TABLE_CREDENTIALS", "checkin_credentials"),
		},
		ReceiptsBucket: getEnv("RECEIPTS_BUCKET", ""),

		RateLimitRPS:      getEnvFloat("RATE_LIMIT_RPS", 5),
		RateLimitBurst:    getEnvInt("RATE_LIMIT_BURST", 10),
		TrustProxyHeaders: getEnvBool("TRUST_PROXY_HEADERS", false),
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvList splits a comma-separated value, dropping blank entries.
func getEnvList(key string) []string {
	var out []string
	for _, v := range strings.Split(os.Getenv(key), ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

// getEnvDuration accepts Go duration strings ("90s", "5m").
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
