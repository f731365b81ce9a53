package config

import (
	"errors"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application.
type Config struct {
	Port           string `mapstructure:"PORT"`
	GinMode        string `mapstructure:"GIN_MODE"`
	Environment    string `mapstructure:"ENVIRONMENT"`
	AllowedOrigins string `mapstructure:"ALLOWED_ORIGINS"`
	LogLevel       string `mapstructure:"LOG_LEVEL"`

	SecretKey            string `mapstructure:"SECRET_KEY"`
	Algorithm            string `mapstructure:"ALGORITHM"`
	AccessTokenExpireMin int    `mapstructure:"ACCESS_TOKEN_EXPIRE_MINUTES"`

	MongoURI string `mapstructure:"MONGO_URI"`
	MongoDB  string `mapstructure:"MONGO_DB"`

	CloudinaryURL string `mapstructure:"CLOUDINARY_URL"`
	StorageFolder string `mapstructure:"STORAGE_FOLDER"`

	GoogleVisionAPIKey           string `mapstructure:"GOOGLE_VISION_API_KEY"`
	GoogleApplicationCredentials string `mapstructure:"GOOGLE_APPLICATION_CREDENTIALS"`
	RemoveBGAPIKey               string `mapstructure:"REMOVE_BG_API_KEY"`
	SerpAPIKey                   string `mapstructure:"SERP_API_KEY"`
	OpenAIAPIKey                 string `mapstructure:"OPENAI_API_KEY"`
	OpenAIModel                  string `mapstructure:"OPENAI_MODEL"`

	StripeSecretKey      string `mapstructure:"STRIPE_SECRET_KEY"`
	StripePublishableKey string `mapstructure:"STRIPE_PUBLISHABLE_KEY"`
	StripeWebhookSecret  string `mapstructure:"STRIPE_WEBHOOK_SECRET"`
	StripePremiumPriceID string `mapstructure:"STRIPE_PREMIUM_PRICE_ID"`
	FrontendURL          string `mapstructure:"FRONTEND_URL"`

	GoogleClientID     string `mapstructure:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `mapstructure:"GOOGLE_CLIENT_SECRET"`
	GoogleRedirectURI  string `mapstructure:"GOOGLE_REDIRECT_URI"`

	RedisURL string `mapstructure:"REDIS_URL"`
	NatsURL  string `mapstructure:"NATS_URL"`

	VAPIDPublicKey  string `mapstructure:"VAPID_PUBLIC_KEY"`
	VAPIDPrivateKey string `mapstructure:"VAPID_PRIVATE_KEY"`
	VAPIDSubject    string `mapstructure:"VAPID_SUBJECT"`

	WorkerCount            int           `mapstructure:"WORKER_COUNT"`
	JobQueueSize           int           `mapstructure:"JOB_QUEUE_SIZE"`
	JobTimeout             time.Duration `mapstructure:"JOB_TIMEOUT"`
	RateLimitPerMinute     int           `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	AuthRateLimitPerMinute int           `mapstructure:"AUTH_RATE_LIMIT_PER_MINUTE"`
}

const devSecretKey = "secretkey123"

var defaults = map[string]interface{}{
	"PORT":                        "8080",
	"GIN_MODE":                    "debug",
	"ENVIRONMENT":                 "development",
	"ALLOWED_ORIGINS":             "http://localhost:3000,http://127.0.0.1:3000",
	"LOG_LEVEL":                   "info",
	"SECRET_KEY":                  "",
	"ALGORITHM":                   "HS256",
	"ACCESS_TOKEN_EXPIRE_MINUTES": 30,
	"MONGO_URI":                   "mongodb://localhost:27017/",
	"MONGO_DB":                    "openfashion_db",
	"STORAGE_FOLDER":              "openfashion",
	"OPENAI_MODEL":                "gpt-4o-mini",
	"FRONTEND_URL":                "http://localhost:3000",
	"VAPID_SUBJECT":               "mailto:admin@openfashion.app",
	"WORKER_COUNT":                4,
	"JOB_QUEUE_SIZE":              100,
	"JOB_TIMEOUT":                 "5m",
	"RATE_LIMIT_PER_MINUTE":       60,
	"AUTH_RATE_LIMIT_PER_MINUTE":  10,
}

// Load reads an optional .env file and then the process environment.
func Load() (*Config, error) {
	// Missing .env is normal outside local development.
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	for _, key := range []string{
		"CLOUDINARY_URL", "GOOGLE_VISION_API_KEY", "GOOGLE_APPLICATION_CREDENTIALS",
		"REMOVE_BG_API_KEY", "SERP_API_KEY", "OPENAI_API_KEY",
		"STRIPE_SECRET_KEY", "STRIPE_PUBLISHABLE_KEY", "STRIPE_WEBHOOK_SECRET", "STRIPE_PREMIUM_PRICE_ID",
		"GOOGLE_CLIENT_ID", "GOOGLE_CLIENT_SECRET", "GOOGLE_REDIRECT_URI",
		"REDIS_URL", "NATS_URL", "VAPID_PUBLIC_KEY", "VAPID_PRIVATE_KEY",
	} {
		_ = v.BindEnv(key)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.New("failed to unmarshal config: " + err.Error())
	}

	// MONGODB_URI is the name older deployments use.
	if _, set := os.LookupEnv("MONGO_URI"); !set {
		if legacy := os.Getenv("MONGODB_URI"); legacy != "" {
			cfg.MongoURI = legacy
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.SecretKey == "" {
		cfg.SecretKey = devSecretKey
	}
	return &cfg, nil
}

// Validate applies the production-only checks on secrets and payment keys.
func (c *Config) Validate() error {
	if c.AccessTokenExpireMin <= 0 {
		return errors.New("ACCESS_TOKEN_EXPIRE_MINUTES must be positive")
	}
	if c.WorkerCount <= 0 {
		return errors.New("WORKER_COUNT must be positive")
	}
	if c.JobQueueSize <= 0 {
		return errors.New("JOB_QUEUE_SIZE must be positive")
	}
	if c.RateLimitPerMinute <= 0 {
		return errors.New("RATE_LIMIT_PER_MINUTE must be positive")
	}
	if c.AuthRateLimitPerMinute <= 0 {
		return errors.New("AUTH_RATE_LIMIT_PER_MINUTE must be positive")
	}
	if !c.IsProduction() {
		return nil
	}

	if c.SecretKey == "" || c.SecretKey == devSecretKey {
		return errors.New("SECRET_KEY is required in production")
	}
	if !strings.HasPrefix(c.StripeSecretKey, "sk_live_") {
		return errors.New("STRIPE_SECRET_KEY must be a live key in production")
	}
	if c.StripeWebhookSecret == "" {
		return errors.New("STRIPE_WEBHOOK_SECRET is required in production")
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func (c *Config) TokenTTL() time.Duration {
	return time.Duration(c.AccessTokenExpireMin) * time.Minute
}

// Origins splits ALLOWED_ORIGINS into the list handed to CORS.
func (c *Config) Origins() []string {
	var out []string
	for _, o := range strings.Split(c.AllowedOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			out = append(out, o)
		}
	}
	return out
}

func (c *Config) UseMemoryStore() bool {
	return strings.HasPrefix(c.MongoURI, "memory://")
}
