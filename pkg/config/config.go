package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database     DatabaseConfig
	Redis        RedisConfig
	JWT          JWTConfig
	CORS         CORSConfig
	Log          LogConfig
	Admissions   AdmissionsConfig
	Letters      LettersConfig
	Provisioning ProvisioningConfig
	LMS          LMSConfig
	Cache        CacheConfig
}

type DatabaseConfig struct {
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
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret            string
	Expiration        time.Duration
	RefreshExpiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// AdmissionsConfig carries institution-wide constants consumed by the
// enrollment workflow and the identity allocator.
type AdmissionsConfig struct {
	InstitutionName      string
	EmailDomain          string
	ProgramDurationYears int
	IdentityMaxRetries   int
}

// LettersConfig configures official document issuance and storage.
type LettersConfig struct {
	StorageDir      string
	SignedURLSecret string
	SignedURLTTL    time.Duration
	AcademicYear    string
	Intake          string
	DiscountPercent int
}

// ProvisioningConfig tunes the downstream provisioning dispatcher.
type ProvisioningConfig struct {
	Workers      int
	MaxAttempts  int
	RetryBackoff time.Duration
	AccessExpiry time.Duration
}

// LMSConfig points at the external learning platform.
type LMSConfig struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// CacheConfig governs read-side caching of catalog data.
type CacheConfig struct {
	Enabled bool
	TTL     time.Duration
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
		if !errors.As(err, &notFound) {
			return nil, err
		}
	}

	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
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
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{
		Secret:            v.GetString("JWT_SECRET"),
		Expiration:        parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
		RefreshExpiration: parseDuration(v.GetString("REFRESH_TOKEN_EXPIRATION"), 168*time.Hour),
	}

	cfg.CORS = CORSConfig{
		AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS")),
	}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Admissions = AdmissionsConfig{
		InstitutionName:      v.GetString("INSTITUTION_NAME"),
		EmailDomain:          v.GetString("INSTITUTION_EMAIL_DOMAIN"),
		ProgramDurationYears: v.GetInt("PROGRAM_DURATION_YEARS"),
		IdentityMaxRetries:   v.GetInt("IDENTITY_MAX_RETRIES"),
	}

	cfg.Letters = LettersConfig{
		StorageDir:      v.GetString("LETTERS_STORAGE_DIR"),
		SignedURLSecret: v.GetString("LETTERS_SIGNED_URL_SECRET"),
		SignedURLTTL:    parseDuration(v.GetString("LETTERS_SIGNED_URL_TTL"), 24*time.Hour),
		AcademicYear:    v.GetString("LETTERS_ACADEMIC_YEAR"),
		Intake:          v.GetString("LETTERS_INTAKE"),
		DiscountPercent: v.GetInt("TUITION_DISCOUNT_PERCENT"),
	}

	cfg.Provisioning = ProvisioningConfig{
		Workers:      v.GetInt("PROVISIONING_WORKERS"),
		MaxAttempts:  v.GetInt("PROVISIONING_MAX_ATTEMPTS"),
		RetryBackoff: parseDuration(v.GetString("PROVISIONING_RETRY_BACKOFF"), 5*time.Second),
		AccessExpiry: parseDuration(v.GetString("PROVISIONING_ACCESS_EXPIRY"), 365*24*time.Hour),
	}

	cfg.LMS = LMSConfig{
		BaseURL: v.GetString("LMS_BASE_URL"),
		APIKey:  v.GetString("LMS_API_KEY"),
		Timeout: parseDuration(v.GetString("LMS_TIMEOUT"), 10*time.Second),
	}

	cfg.Cache = CacheConfig{
		Enabled: v.GetBool("ENABLE_CACHE"),
		TTL:     parseDuration(v.GetString("CACHE_TTL"), 10*time.Minute),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "uni_admissions")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "24h")
	v.SetDefault("REFRESH_TOKEN_EXPIRATION", "168h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("INSTITUTION_NAME", "Skyline University")
	v.SetDefault("INSTITUTION_EMAIL_DOMAIN", "student.skyline.edu")
	v.SetDefault("PROGRAM_DURATION_YEARS", 3)
	v.SetDefault("IDENTITY_MAX_RETRIES", 10)

	v.SetDefault("LETTERS_STORAGE_DIR", "./letters")
	v.SetDefault("LETTERS_SIGNED_URL_SECRET", "dev_letters_secret")
	v.SetDefault("LETTERS_SIGNED_URL_TTL", "24h")
	v.SetDefault("LETTERS_ACADEMIC_YEAR", "2026/2027")
	v.SetDefault("LETTERS_INTAKE", "September")
	v.SetDefault("TUITION_DISCOUNT_PERCENT", 10)

	v.SetDefault("PROVISIONING_WORKERS", 2)
	v.SetDefault("PROVISIONING_MAX_ATTEMPTS", 3)
	v.SetDefault("PROVISIONING_RETRY_BACKOFF", "5s")
	v.SetDefault("PROVISIONING_ACCESS_EXPIRY", "8760h")

	v.SetDefault("LMS_BASE_URL", "http://localhost:9090")
	v.SetDefault("LMS_API_KEY", "")
	v.SetDefault("LMS_TIMEOUT", "10s")

	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("CACHE_TTL", "10m")
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
