package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Development secrets used when the environment sets none. Production refuses them.
const (
	devJWTSecret       = "dev_secret"
	devSessionSecret   = "dev_session_secret_change_me_32b"
	devAuthTokenSecret = "dev_auth_token_secret"
)

// Database drivers accepted by DB_DRIVER.
const (
	DriverPostgres = "postgres"
	DriverPGX      = "pgx"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	Session    SessionConfig
	Log        LogConfig
	Cache      CacheConfig
	Mail       MailConfig
	Auth       AuthConfig
	Pagination PaginationConfig
	CORS       CORSConfig
}

type DatabaseConfig struct {
	Driver       string
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret     string
	Expiration time.Duration
	Issuer     string
}

// SessionConfig controls the signed cookie carrying identity and flash messages.
type SessionConfig struct {
	CookieName string
	Secret     string
	MaxAge     time.Duration
	Secure     bool
}

type LogConfig struct {
	Level  string
	Format string
}

// CacheConfig toggles the redis backed read cache.
type CacheConfig struct {
	Enabled       bool
	StatisticsTTL time.Duration
}

// MailConfig configures the outbound mail queue.
type MailConfig struct {
	From       string
	BaseURL    string
	Workers    int
	MaxRetries int
	RetryDelay time.Duration
}

// AuthConfig governs registration, verification and password reset behaviour.
type AuthConfig struct {
	TokenSecret          string
	VerificationTTL      time.Duration
	ResetTTL             time.Duration
	PurgeSchedule        string
	RequireVerifiedEmail bool
	AllowedEmailDomains  []string
}

// PaginationConfig sets list defaults.
type PaginationConfig struct {
	DefaultSize int
}

// CORSConfig lists browser origins allowed to call the JSON API. Empty means none.
type CORSConfig struct {
	AllowedOrigins []string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	cfg := fromViper(v)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects production settings that would sign sessions or tokens with
// an empty or built-in development secret.
func (c *Config) Validate() error {
	if c.Env != EnvProduction {
		return nil
	}

	secrets := []struct {
		key, value, dev string
	}{
		{"JWT_SECRET", c.JWT.Secret, devJWTSecret},
		{"SESSION_SECRET", c.Session.Secret, devSessionSecret},
		{"AUTH_TOKEN_SECRET", c.Auth.TokenSecret, devAuthTokenSecret},
	}

	var missing []string
	for _, s := range secrets {
		if v := strings.TrimSpace(s.value); v == "" || v == s.dev {
			missing = append(missing, s.key)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("config: %s must be set in production", strings.Join(missing, ", "))
	}
	return nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Driver:       normaliseDriver(v.GetString("DB_DRIVER")),
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Enabled:  v.GetBool("REDIS_ENABLED"),
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.Session = SessionConfig{
		CookieName: v.GetString("SESSION_COOKIE_NAME"),
		Secret:     v.GetString("SESSION_SECRET"),
		MaxAge:     parseDuration(v.GetString("SESSION_MAX_AGE"), 8*time.Hour),
		Secure:     v.GetBool("SESSION_SECURE"),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Cache = CacheConfig{
		Enabled:       v.GetBool("ENABLE_CACHE"),
		StatisticsTTL: parseDuration(v.GetString("STATISTICS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Mail = MailConfig{
		From:       v.GetString("MAIL_FROM"),
		BaseURL:    strings.TrimRight(v.GetString("APP_BASE_URL"), "/"),
		Workers:    v.GetInt("MAIL_WORKERS"),
		MaxRetries: v.GetInt("MAIL_MAX_RETRIES"),
		RetryDelay: parseDuration(v.GetString("MAIL_RETRY_DELAY"), 5*time.Second),
	}

	cfg.Auth = AuthConfig{
		TokenSecret:          v.GetString("AUTH_TOKEN_SECRET"),
		VerificationTTL:      parseDuration(v.GetString("EMAIL_VERIFICATION_TTL"), 48*time.Hour),
		ResetTTL:             parseDuration(v.GetString("PASSWORD_RESET_TTL"), time.Hour),
		PurgeSchedule:        v.GetString("PASSWORD_RESET_PURGE_CRON"),
		RequireVerifiedEmail: v.GetBool("REQUIRE_VERIFIED_EMAIL"),
		AllowedEmailDomains:  splitAndTrim(v.GetString("ALLOWED_EMAIL_DOMAINS")),
	}

	cfg.Pagination = PaginationConfig{
		DefaultSize: v.GetInt("PAGE_SIZE"),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("CORS_ALLOWED_ORIGINS")),
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_DRIVER", DriverPostgres)
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "timetable")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_ENABLED", false)
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", devJWTSecret)
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("JWT_ISSUER", "timetable-admin")

	v.SetDefault("SESSION_COOKIE_NAME", "timetable_session")
	v.SetDefault("SESSION_SECRET", devSessionSecret)
	v.SetDefault("SESSION_MAX_AGE", "8h")
	v.SetDefault("SESSION_SECURE", false)

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("STATISTICS_CACHE_TTL", "5m")

	v.SetDefault("MAIL_FROM", "no-reply@timetable.local")
	v.SetDefault("APP_BASE_URL", "http://localhost:8080")
	v.SetDefault("MAIL_WORKERS", 2)
	v.SetDefault("MAIL_MAX_RETRIES", 3)
	v.SetDefault("MAIL_RETRY_DELAY", "5s")

	v.SetDefault("AUTH_TOKEN_SECRET", devAuthTokenSecret)
	v.SetDefault("EMAIL_VERIFICATION_TTL", "48h")
	v.SetDefault("PASSWORD_RESET_TTL", "1h")
	v.SetDefault("PASSWORD_RESET_PURGE_CRON", "@hourly")
	v.SetDefault("REQUIRE_VERIFIED_EMAIL", true)
	v.SetDefault("ALLOWED_EMAIL_DOMAINS", "")

	v.SetDefault("PAGE_SIZE", 20)

	v.SetDefault("CORS_ALLOWED_ORIGINS", "")
}

func normaliseDriver(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case DriverPGX:
		return DriverPGX
	default:
		return DriverPostgres
	}
}

func isMissingFile(err error) bool {
	return errors.Is(err, fs.ErrNotExist)
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
