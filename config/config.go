package config

import (
	"errors"
	"log"
	"strings"

	"github.com/spf13/viper"
)

// Config holds all configuration values.
type Config struct {
	AppPort           string `mapstructure:"APP_PORT"`
	DatabaseURL       string `mapstructure:"DATABASE_URL"`
	DatabaseName      string `mapstructure:"DATABASE_NAME"`
	Env               string `mapstructure:"ENV"`
	JWTSecret         string `mapstructure:"JWT_SECRET"`
	LogLevel          string `mapstructure:"LOG_LEVEL"`
	MaxRequestsPerMin int    `mapstructure:"MAX_REQUESTS_PER_MIN"`

	// Redis configuration.
	RedisAddr        string `mapstructure:"REDIS_ADDR"`
	RedisPassword    string `mapstructure:"REDIS_PASSWORD"`
	RedisCacheDB     int    `mapstructure:"REDIS_CACHE_DB"`
	RedisLocalDB     int    `mapstructure:"REDIS_LOCAL_DB"`
	RedisSyncQueueDB int    `mapstructure:"REDIS_SYNC_QUEUE_DB"`

	// Origin backend the edge fronts.
	OriginURL string `mapstructure:"ORIGIN_URL"`

	// Cache lifecycle.
	CacheVersion      string   `mapstructure:"CACHE_VERSION"`
	StaticCachePrefix string   `mapstructure:"STATIC_CACHE_PREFIX"`
	APICachePrefix    string   `mapstructure:"API_CACHE_PREFIX"`
	PrecacheURLs      []string `mapstructure:"PRECACHE_URLS"`
	PrecacheAttempts  uint     `mapstructure:"PRECACHE_ATTEMPTS"`

	// Fetch interception.
	APIPathPrefix string `mapstructure:"API_PATH_PREFIX"`
	ProductsPath  string `mapstructure:"PRODUCTS_PATH"`
	OfflinePage   string `mapstructure:"OFFLINE_PAGE"`

	// Push delivery.
	PushProvider            string `mapstructure:"PUSH_PROVIDER"`
	VapidPublicKey          string `mapstructure:"VAPID_PUBLIC_KEY"`
	VapidPrivateKey         string `mapstructure:"VAPID_PRIVATE_KEY"`
	VapidSubject            string `mapstructure:"VAPID_SUBJECT"`
	FirebaseCredentialsFile string `mapstructure:"FIREBASE_CREDENTIALS_FILE"`
	BroadcastConcurrency    int    `mapstructure:"BROADCAST_CONCURRENCY"`
}

var AppConfig Config

// DefaultPrecacheURLs is the critical-resource manifest warmed on install.
var DefaultPrecacheURLs = []string{
	"/",
	"/offline.html",
	"/static/js/bundle.js",
	"/static/css/main.css",
	"/icons/icon-192x192.png",
	"/icons/icon-512x512.png",
}

func LoadConfig() {
	// Look for a config file named "config.yaml" in the current and "config" directory.
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	// Automatically use environment variables where available.
	viper.AutomaticEnv()

	// Set default values.
	viper.SetDefault("APP_PORT", "8080")
	viper.SetDefault("ENV", "development")
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("MAX_REQUESTS_PER_MIN", 200)
	viper.SetDefault("DATABASE_URL", "mongodb://localhost:27017")
	viper.SetDefault("DATABASE_NAME", "pwa-ecommerce")
	viper.SetDefault("REDIS_ADDR", "localhost:6379")
	viper.SetDefault("REDIS_PASSWORD", "")
	viper.SetDefault("REDIS_CACHE_DB", 0)
	viper.SetDefault("REDIS_LOCAL_DB", 1)
	viper.SetDefault("REDIS_SYNC_QUEUE_DB", 2)
	viper.SetDefault("ORIGIN_URL", "http://localhost:5000")
	viper.SetDefault("CACHE_VERSION", "v1.0.0")
	viper.SetDefault("STATIC_CACHE_PREFIX", "pwa-ecommerce")
	viper.SetDefault("API_CACHE_PREFIX", "api-cache")
	viper.SetDefault("PRECACHE_URLS", DefaultPrecacheURLs)
	viper.SetDefault("PRECACHE_ATTEMPTS", 3)
	viper.SetDefault("API_PATH_PREFIX", "/api/")
	viper.SetDefault("PRODUCTS_PATH", "/api/products")
	viper.SetDefault("OFFLINE_PAGE", "/offline.html")
	viper.SetDefault("PUSH_PROVIDER", "webpush")
	viper.SetDefault("VAPID_SUBJECT", "mailto:admin@pwashop.local")
	viper.SetDefault("BROADCAST_CONCURRENCY", 10)

	if err := viper.ReadInConfig(); err != nil {
		log.Println("No config file found, using environment variables only")
	}

	if err := viper.Unmarshal(&AppConfig); err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// PRECACHE_URLS from the environment arrives as a single comma-separated string.
	if len(AppConfig.PrecacheURLs) == 1 && strings.Contains(AppConfig.PrecacheURLs[0], ",") {
		AppConfig.PrecacheURLs = splitList(AppConfig.PrecacheURLs[0])
	}

	if err := AppConfig.Validate(); err != nil {
		log.Fatalf("Invalid config: %v", err)
	}
}

var ErrMissingJWTSecret = errors.New("JWT_SECRET must be set in production")

// Validate rejects settings the edge must not run with.
func (c Config) Validate() error {
	if c.Env == "production" && c.JWTSecret == "" {
		return ErrMissingJWTSecret
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func GetEnv() string {
	return AppConfig.Env
}

func IsProduction() bool {
	return GetEnv() == "production"
}
