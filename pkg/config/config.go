package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
)

var (
	AppEnv       string
	IsStaging    bool
	IsProduction bool

	JWTSecret         string
	Port              string
	LogLevel          string
	AllowRegistration bool
	CORSOrigins       []string

	// storage
	DBDriver      string
	DatabaseURL   string
	RedisURL      string
	CacheMaxItems int

	// MercadoLibre
	MLClientID                  string
	MLClientSecret              string
	MLAccessToken               string
	MLRefreshToken              string
	MLSellerID                  string
	MLAPIBaseURL                string
	MLTokenURL                  string
	MLMinRequestIntervalMs      int
	MLTokenRefreshHours         int
	MLTokenRefreshBeforeMinutes int

	// WooCommerce
	WooBaseURL        string
	WooConsumerKey    string
	WooConsumerSecret string
	WooWebhookSecret  string

	// SMTP
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string
	SMTPFrom     string
	SMTPFromName string

	// runtime tunables
	RateLimitWindowSeconds   int
	RateLimitCapacity        int
	UserConcurrencyLimit     int
	DuplicateWindowSeconds   int
	ConversationStaleSeconds int
	OrdersCacheTTLSeconds    int
	SyncIntervalMinutes      int
	SyncLookbackDays         int
)

// loadAppEnv loads .env unless APP_ENV is production.
func loadAppEnv() error {
	AppEnv = os.Getenv("APP_ENV")
	if AppEnv == "production" {
		return nil
	}
	if err := godotenv.Load(); err != nil {
		return fmt.Errorf("loading .env file: %w", err)
	}
	return nil
}

// Load reads the process environment into the package variables.
// It is called once by each entrypoint before anything else is built.
func Load() error {
	if err := loadAppEnv(); err != nil {
		return err
	}

	AppEnv = os.Getenv("APP_ENV")
	if !slices.Contains([]string{"staging", "production"}, AppEnv) {
		return fmt.Errorf("environment variable APP_ENV must be 'staging' or 'production'")
	}
	IsStaging = AppEnv == "staging"
	IsProduction = AppEnv == "production"

	JWTSecret = os.Getenv("JWT_SECRET_KEY")
	Port = orDefault(os.Getenv("PORT"), "5000")
	LogLevel = os.Getenv("LOG_LEVEL")
	AllowRegistration = os.Getenv("ALLOW_REGISTRATION") == "1"
	CORSOrigins = splitList(orDefault(os.Getenv("CORS_ORIGINS"),
		"http://localhost:3000,http://127.0.0.1:3000,http://localhost:5173,http://127.0.0.1:5173"))

	DBDriver = strings.ToLower(orDefault(os.Getenv("DB_DRIVER"), "sqlite"))
	DatabaseURL = orDefault(os.Getenv("DATABASE_URL"), "app.db")
	RedisURL = os.Getenv("REDIS_URL")
	CacheMaxItems = atoiOr(os.Getenv("CACHE_MAX_ITEMS"), 500)

	MLClientID = os.Getenv("ML_CLIENT_ID")
	MLClientSecret = os.Getenv("ML_CLIENT_SECRET")
	MLAccessToken = os.Getenv("ML_ACCESS_TOKEN")
	MLRefreshToken = os.Getenv("ML_REFRESH_TOKEN")
	MLSellerID = os.Getenv("ML_SELLER_ID")
	MLAPIBaseURL = strings.TrimSuffix(orDefault(os.Getenv("ML_API_BASE_URL"), "https://api.mercadolibre.com"), "/")
	MLTokenURL = orDefault(os.Getenv("ML_TOKEN_URL"), "https://api.mercadolibre.com/oauth/token")
	MLMinRequestIntervalMs = atoiOr(os.Getenv("ML_MIN_REQUEST_INTERVAL_MS"), 250)
	MLTokenRefreshHours = atoiOr(os.Getenv("ML_TOKEN_REFRESH_HOURS"), 4)
	MLTokenRefreshBeforeMinutes = atoiOr(os.Getenv("ML_TOKEN_REFRESH_BEFORE_MINUTES"), 30)

	WooBaseURL = strings.TrimSuffix(os.Getenv("WOO_BASE_URL"), "/")
	WooConsumerKey = os.Getenv("WOO_CONSUMER_KEY")
	WooConsumerSecret = os.Getenv("WOO_CONSUMER_SECRET")
	WooWebhookSecret = os.Getenv("WOO_WEBHOOK_SECRET")

	SMTPHost = os.Getenv("SMTP_HOST")
	SMTPPort = atoiOr(os.Getenv("SMTP_PORT"), 587)
	SMTPUser = os.Getenv("SMTP_USER")
	SMTPPassword = os.Getenv("SMTP_PASSWORD")
	SMTPFrom = os.Getenv("SMTP_FROM")
	SMTPFromName = os.Getenv("SMTP_FROM_NAME")

	RateLimitWindowSeconds = atoiOr(os.Getenv("RATE_LIMIT_WINDOW_SECONDS"), 10)
	RateLimitCapacity = atoiOr(os.Getenv("RATE_LIMIT_CAPACITY"), 5)
	UserConcurrencyLimit = atoiOr(os.Getenv("USER_CONCURRENCY_LIMIT"), 2)
	DuplicateWindowSeconds = atoiOr(os.Getenv("DUPLICATE_WINDOW_SECONDS"), 45)
	ConversationStaleSeconds = atoiOr(os.Getenv("CONVERSATION_STALE_SECONDS"), 300)
	OrdersCacheTTLSeconds = atoiOr(os.Getenv("ORDERS_CACHE_TTL_SECONDS"), 60)
	SyncIntervalMinutes = atoiOr(os.Getenv("SYNC_INTERVAL_MINUTES"), 0)
	SyncLookbackDays = atoiOr(os.Getenv("SYNC_LOOKBACK_DAYS"), 30)

	if IsProduction && JWTSecret == "" {
		return fmt.Errorf("JWT_SECRET_KEY must be set in production")
	}
	if JWTSecret == "" {
		JWTSecret = "dev-secret"
	}

	log.Info().Str("app_env", AppEnv).Bool("staging", IsStaging).Bool("production", IsProduction).Msg("[config] loaded")
	log.Info().
		Str("db_driver", DBDriver).
		Bool("redis", RedisURL != "").
		Bool("mercadolibre", MercadoLibreEnabled()).
		Bool("woocommerce", WooCommerceEnabled()).
		Bool("smtp", SMTPEnabled()).
		Msg("[config] integrations")
	log.Info().
		Int("window_s", RateLimitWindowSeconds).
		Int("capacity", RateLimitCapacity).
		Int("user_conc", UserConcurrencyLimit).
		Int("dup_window_s", DuplicateWindowSeconds).
		Int("ml_min_interval_ms", MLMinRequestIntervalMs).
		Msg("[config] tunables")
	return nil
}

func MercadoLibreEnabled() bool {
	return MLAccessToken != "" || MLRefreshToken != ""
}

func WooCommerceEnabled() bool {
	return WooBaseURL != "" && WooConsumerKey != "" && WooConsumerSecret != ""
}

func SMTPEnabled() bool {
	return SMTPHost != "" && SMTPFrom != ""
}

// Seconds converts one of the integer tunables to a duration.
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil {
		return v
	}
	return def
}

func orDefault(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
