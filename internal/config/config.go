package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"go.uber.org/fx"
)

var Module = fx.Module("config",
	fx.Provide(Load),
	fx.Provide(NewCarrierConfigHolder),
)

// Config holds application configuration.
type Config struct {
	AppName     string
	AppVersion  string
	Environment string
	NodeID      int64

	OTLPEndpoint string
	LogFile      string

	HTTPAddr string
	// BaseURL is the public origin used to build short links. When empty the
	// request's scheme and host are used.
	BaseURL string

	DBType            string
	DBHost            string
	DBPort            string
	DBName            string
	DBUser            string
	DBPassword        string
	DBSSLMode         string
	DBPath            string
	DBMaxIdleConn     int
	DBMaxOpenConn     int
	DBConnMaxLifetime int
	DBConnMaxIdleTime int

	Auth      AuthConfig
	ShortCode ShortCodeConfig
	Outreach  OutreachConfig
	Dispatch  DispatchConfig
	Email     EmailConfig
	Places    PlacesConfig
	TextGen   TextGenConfig
	RateLimit RateLimitConfig
}

type AuthConfig struct {
	// APITokenHash is a bcrypt hash of the merchant API bearer token.
	APITokenHash string
}

type ShortCodeConfig struct {
	Length      int
	MaxAttempts int
}

type OutreachConfig struct {
	GenerateConcurrency int
	MaxSendAttempts     int
	// DispatchClaimTTL bounds how long a crashed sender blocks a request.
	DispatchClaimTTL time.Duration
}

type DispatchConfig struct {
	Backend string
	Probe   bool
	Timeout time.Duration

	TwilioAccountSID string
	TwilioAuthToken  string
	TwilioFromNumber string
}

type EmailConfig struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
}

type PlacesConfig struct {
	APIKey   string
	Timeout  time.Duration
	CacheTTL time.Duration
}

type TextGenConfig struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RedirectRate  float64
	RedirectBurst int
	TestSendRate  float64
	TestSendBurst int

	DispatchLockTTLSeconds int
}

// Load loads configuration from environment variables and .env file.
func Load() Config {
	_ = godotenv.Load()

	smtpUser := strings.TrimSpace(getenv("SMTP_USER", ""))

	cfg := Config{
		AppName:      getenv("APP_SERVICE", "reviewboost"),
		AppVersion:   getenv("APP_VERSION", "0.1.0"),
		Environment:  getenv("ENVIRONMENT", "development"),
		NodeID:       getenvInt64("NODE_ID", 1),
		OTLPEndpoint: getenv("OTLP_ENDPOINT", "localhost:4317"),
		LogFile:      strings.TrimSpace(getenv("LOG_FILE", "")),
		HTTPAddr:     ":" + getenv("PORT", "8080"),
		BaseURL:      strings.TrimRight(strings.TrimSpace(getenv("BASE_URL", "")), "/"),

		DBType:            strings.ToLower(getenv("DATABASE_TYPE", "sqlite")),
		DBHost:            getenv("DATABASE_HOST", "localhost"),
		DBPort:            getenv("DATABASE_PORT", "5432"),
		DBName:            getenv("DATABASE_NAME", "reviewboost"),
		DBUser:            getenv("DATABASE_USER", "postgres"),
		DBPassword:        getenv("DATABASE_PASSWORD", ""),
		DBSSLMode:         getenv("DATABASE_SSLMODE", "disable"),
		DBPath:            getenv("DATABASE_PATH", "reviews.db"),
		DBMaxIdleConn:     getenvInt("DATABASE_MAX_IDLE_CONN", 5),
		DBMaxOpenConn:     getenvInt("DATABASE_MAX_OPEN_CONN", 20),
		DBConnMaxLifetime: getenvInt("DATABASE_CONN_MAX_LIFETIME", 300),
		DBConnMaxIdleTime: getenvInt("DATABASE_CONN_MAX_IDLE_TIME", 60),

		Auth: AuthConfig{
			APITokenHash: strings.TrimSpace(getenv("API_TOKEN_HASH", "")),
		},
		ShortCode: ShortCodeConfig{
			Length:      getenvInt("SHORT_CODE_LENGTH", 7),
			MaxAttempts: getenvInt("SHORT_CODE_MAX_ATTEMPTS", 5),
		},
		Outreach: OutreachConfig{
			GenerateConcurrency: getenvInt("GENERATE_CONCURRENCY", 4),
			MaxSendAttempts:     getenvInt("MAX_SEND_ATTEMPTS", 3),
			DispatchClaimTTL:    getenvDuration("DISPATCH_CLAIM_TTL", 2*time.Minute),
		},
		Dispatch: DispatchConfig{
			Backend:          normalizeBackend(getenv("DISPATCH_BACKEND", getenv("SMS_BACKEND", "twilio"))),
			Probe:            getenvBool("DISPATCH_PROBE", false),
			Timeout:          getenvDuration("DISPATCH_TIMEOUT", 15*time.Second),
			TwilioAccountSID: strings.TrimSpace(getenv("TWILIO_ACCOUNT_SID", "")),
			TwilioAuthToken:  strings.TrimSpace(getenv("TWILIO_AUTH_TOKEN", "")),
			TwilioFromNumber: strings.TrimSpace(getenv("TWILIO_FROM_NUMBER", "")),
		},
		Email: EmailConfig{
			SMTPHost:     getenv("SMTP_HOST", "smtp.gmail.com"),
			SMTPPort:     getenvInt("SMTP_PORT", 587),
			SMTPUsername: smtpUser,
			SMTPPassword: strings.TrimSpace(getenv("SMTP_PASSWORD", "")),
			SMTPFrom:     strings.TrimSpace(getenv("FROM_EMAIL", smtpUser)),
		},
		Places: PlacesConfig{
			APIKey:   strings.TrimSpace(getenv("GOOGLE_MAPS_API_KEY", "")),
			Timeout:  getenvDuration("PLACES_TIMEOUT", 10*time.Second),
			CacheTTL: getenvDuration("PLACES_CACHE_TTL", 30*time.Minute),
		},
		TextGen: TextGenConfig{
			BaseURL: strings.TrimSpace(getenv("TEXTGEN_BASE_URL", "")),
			APIKey:  strings.TrimSpace(getenv("TEXTGEN_API_KEY", "")),
			Model:   strings.TrimSpace(getenv("TEXTGEN_MODEL", "")),
			Timeout: getenvDuration("TEXTGEN_TIMEOUT", 30*time.Second),
		},
		RateLimit: RateLimitConfig{
			Enabled:                getenvBool("RATE_LIMIT_ENABLED", false),
			RedisAddr:              strings.TrimSpace(getenv("REDIS_ADDR", "localhost:6379")),
			RedisPassword:          getenv("REDIS_PASSWORD", ""),
			RedisDB:                getenvInt("REDIS_DB", 0),
			RedirectRate:           getenvFloat("RATE_LIMIT_REDIRECT_RATE", 2),
			RedirectBurst:          getenvInt("RATE_LIMIT_REDIRECT_BURST", 20),
			TestSendRate:           getenvFloat("RATE_LIMIT_TEST_SEND_RATE", 0.1),
			TestSendBurst:          getenvInt("RATE_LIMIT_TEST_SEND_BURST", 3),
			DispatchLockTTLSeconds: getenvInt("DISPATCH_LOCK_TTL_SECONDS", 60),
		},
	}

	return cfg
}

const (
	BackendTwilio       = "twilio"
	BackendEmailGateway = "email_gateway"
	BackendEmail        = "email"
	BackendLog          = "log"
)

func (c Config) IsProduction() bool {
	return strings.EqualFold(strings.TrimSpace(c.Environment), "production")
}

// normalizeBackend folds accepted aliases onto the backend names.
func normalizeBackend(raw string) string {
	value := strings.ToLower(strings.TrimSpace(raw))
	value = strings.ReplaceAll(value, "-", "_")
	switch value {
	case "", BackendTwilio:
		return BackendTwilio
	case BackendEmailGateway, "gateway", "sms_gateway":
		return BackendEmailGateway
	case BackendEmail, "smtp":
		return BackendEmail
	case BackendLog, "noop", "diagnostic":
		return BackendLog
	default:
		return value
	}
}

func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func getenvBool(key string, def bool) bool {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	if value == "" {
		return def
	}
	switch value {
	case "1", "true", "yes", "y", "on":
		return true
	case "0", "false", "no", "n", "off":
		return false
	default:
		return def
	}
}

func getenvInt(key string, def int) int {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.Atoi(value)
	if err != nil {
		return def
	}
	return parsed
}

func getenvInt64(key string, def int64) int64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return def
	}
	return parsed
}

func getenvFloat(key string, def float64) float64 {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	parsed, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return def
	}
	return parsed
}

// getenvDuration accepts Go duration strings ("15s") or plain seconds.
func getenvDuration(key string, def time.Duration) time.Duration {
	value := strings.TrimSpace(os.Getenv(key))
	if value == "" {
		return def
	}
	if parsed, err := time.ParseDuration(value); err == nil {
		return parsed
	}
	if seconds, err := strconv.ParseFloat(value, 64); err == nil {
		return time.Duration(seconds * float64(time.Second))
	}
	return def
}
