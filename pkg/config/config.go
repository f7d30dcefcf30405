package config

import (
	"errors"
	"os"
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

	Database   DatabaseConfig
	Redis      RedisConfig
	JWT        JWTConfig
	CORS       CORSConfig
	Log        LogConfig
	Gemini     GeminiConfig
	Classifier ClassifierConfig
	OCR        OCRConfig
	Stations   StationsConfig
	Uploads    UploadsConfig
	Insights   InsightsConfig
	Bootstrap  BootstrapConfig
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
	Secret     string
	Expiration time.Duration
	Issuer     string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// GeminiConfig holds credentials for the Gemini vision model.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// ClassifierConfig selects and tunes the issue classification backend.
type ClassifierConfig struct {
	Backend       string
	Timeout       time.Duration
	MLServiceURL  string
	MinConfidence float64
}

// OCRConfig selects the engine used for ticket text extraction.
type OCRConfig struct {
	Engine     string
	ServiceURL string
	Timeout    time.Duration
}

// StationsConfig points at the station catalog and its lookup tuning.
type StationsConfig struct {
	JSONPath        string
	SearchRadiusKm  float64
	GeoIndexEnabled bool
	Timeout         time.Duration
}

// UploadsConfig controls complaint photo storage and validation.
type UploadsConfig struct {
	Dir               string
	MaxFileSizeBytes  int64
	AllowedImageMIMEs []string
	SignedURLSecret   string
	SignedURLTTL      time.Duration
}

type InsightsConfig struct {
	CacheTTL time.Duration
}

// BootstrapConfig seeds an initial admin account when both admin fields are
// set, and the guest account that owns anonymous submissions.
type BootstrapConfig struct {
	AdminEmail          string
	AdminPassword       string
	AdminName           string
	GuestEmail          string
	AnonymousSubmission bool
}

const (
	ClassifierGemini = "gemini"
	ClassifierML     = "ml"

	OCREngineHTTP   = "http"
	OCREngineGemini = "gemini"
)

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
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
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
		Secret:     v.GetString("JWT_SECRET"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), time.Hour),
		Issuer:     v.GetString("JWT_ISSUER"),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Gemini = GeminiConfig{
		APIKey: v.GetString("GEMINI_API_KEY"),
		Model:  v.GetString("GEMINI_MODEL"),
	}

	minConfidence := v.GetFloat64("ML_MIN_CONFIDENCE")
	if minConfidence < 0 || minConfidence > 1 {
		minConfidence = 0.5
	}
	cfg.Classifier = ClassifierConfig{
		Backend:       strings.ToLower(v.GetString("CLASSIFIER_BACKEND")),
		Timeout:       parseDuration(v.GetString("CLASSIFIER_TIMEOUT"), 30*time.Second),
		MLServiceURL:  v.GetString("ML_SERVICE_URL"),
		MinConfidence: minConfidence,
	}

	cfg.OCR = OCRConfig{
		Engine:     strings.ToLower(v.GetString("OCR_ENGINE")),
		ServiceURL: v.GetString("OCR_SERVICE_URL"),
		Timeout:    parseDuration(v.GetString("OCR_TIMEOUT"), 20*time.Second),
	}

	radius := v.GetFloat64("STATION_SEARCH_RADIUS_KM")
	if radius <= 0 {
		radius = 50
	}
	cfg.Stations = StationsConfig{
		JSONPath:        v.GetString("STATIONS_JSON_PATH"),
		SearchRadiusKm:  radius,
		GeoIndexEnabled: v.GetBool("GEO_INDEX_ENABLED"),
		Timeout:         parseDuration(v.GetString("LOCATION_TIMEOUT"), 10*time.Second),
	}

	maxUpload := v.GetInt64("UPLOAD_MAX_BYTES")
	if maxUpload <= 0 {
		maxUpload = 10 * 1024 * 1024
	}
	cfg.Uploads = UploadsConfig{
		Dir:               v.GetString("UPLOAD_DIR"),
		MaxFileSizeBytes:  maxUpload,
		AllowedImageMIMEs: splitAndTrim(v.GetString("UPLOAD_ALLOWED_IMAGE_TYPES")),
		SignedURLSecret:   v.GetString("IMAGE_URL_SECRET"),
		SignedURLTTL:      parseDuration(v.GetString("IMAGE_URL_TTL"), 30*time.Minute),
	}

	cfg.Insights = InsightsConfig{
		CacheTTL: parseDuration(v.GetString("INSIGHTS_CACHE_TTL"), 5*time.Minute),
	}

	cfg.Bootstrap = BootstrapConfig{
		AdminEmail:    strings.ToLower(strings.TrimSpace(v.GetString("ADMIN_EMAIL"))),
		AdminPassword: v.GetString("ADMIN_PASSWORD"),
		AdminName:     v.GetString("ADMIN_NAME"),
		GuestEmail:    strings.ToLower(strings.TrimSpace(v.GetString("GUEST_EMAIL"))),

		AnonymousSubmission: v.GetBool("ANONYMOUS_SUBMISSIONS"),
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "railmadad")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_EXPIRATION", "60m")
	v.SetDefault("JWT_ISSUER", "railmadad")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("GEMINI_API_KEY", "")
	v.SetDefault("GEMINI_MODEL", "gemini-2.5-flash")

	v.SetDefault("CLASSIFIER_BACKEND", ClassifierGemini)
	v.SetDefault("CLASSIFIER_TIMEOUT", "30s")
	v.SetDefault("ML_SERVICE_URL", "http://localhost:8001")
	v.SetDefault("ML_MIN_CONFIDENCE", 0.5)

	v.SetDefault("OCR_ENGINE", OCREngineGemini)
	v.SetDefault("OCR_SERVICE_URL", "http://localhost:8002")
	v.SetDefault("OCR_TIMEOUT", "20s")

	v.SetDefault("STATIONS_JSON_PATH", "./data/railway_stations.json")
	v.SetDefault("STATION_SEARCH_RADIUS_KM", 50)
	v.SetDefault("GEO_INDEX_ENABLED", false)
	v.SetDefault("LOCATION_TIMEOUT", "10s")

	v.SetDefault("UPLOAD_DIR", "./uploads")
	v.SetDefault("UPLOAD_MAX_BYTES", 10*1024*1024)
	v.SetDefault("UPLOAD_ALLOWED_IMAGE_TYPES", "image/jpeg,image/png,image/gif,image/webp")
	v.SetDefault("IMAGE_URL_SECRET", "dev_image_secret")
	v.SetDefault("IMAGE_URL_TTL", "30m")

	v.SetDefault("INSIGHTS_CACHE_TTL", "5m")

	v.SetDefault("ADMIN_EMAIL", "")
	v.SetDefault("ADMIN_PASSWORD", "")
	v.SetDefault("ADMIN_NAME", "Administrator")
	v.SetDefault("GUEST_EMAIL", "guest@railway.local")
	v.SetDefault("ANONYMOUS_SUBMISSIONS", true)
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
