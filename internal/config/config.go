package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go.uber.org/config"
)

const (
	DriverPostgres = "postgres"
	DriverMemory   = "memory"

	AuthClerk = "clerk"
	AuthLocal = "local"
)

type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	Estimator EstimatorConfig `yaml:"estimator"`
	Auth      AuthConfig      `yaml:"auth"`
	Billing   BillingConfig   `yaml:"billing"`
	Redis     RedisConfig     `yaml:"redis"`
	Kafka     KafkaConfig     `yaml:"kafka"`
	Mail      MailConfig      `yaml:"mail"`
	Push      PushConfig      `yaml:"push"`
	Jobs      JobsConfig      `yaml:"jobs"`
	Logging   LoggingConfig   `yaml:"logging"`
	Metrics   MetricsConfig   `yaml:"metrics"`
}

type ServiceConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Port        string `yaml:"port"`
	Timezone    string `yaml:"timezone"`
}

type DatabaseConfig struct {
	Driver          string        `yaml:"driver"`
	URL             string        `yaml:"url"`
	MaxConns        int32         `yaml:"max_conns"`
	MinConns        int32         `yaml:"min_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	AutoMigrate     bool          `yaml:"auto_migrate"`
}

type EstimatorConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type AuthConfig struct {
	Mode           string `yaml:"mode"`
	ClerkSecretKey     string `yaml:"clerk_secret_key"`
	ClerkWebhookSecret string `yaml:"clerk_webhook_secret"`
	JWTSecret          string `yaml:"jwt_secret"`
	JWTIssuer          string `yaml:"jwt_issuer"`
}

type BillingConfig struct {
	StripeSecretKey     string `yaml:"stripe_secret_key"`
	StripeWebhookSecret string `yaml:"stripe_webhook_secret"`
	StripePriceID       string `yaml:"stripe_price_id"`
	SuccessURL          string `yaml:"success_url"`
	CancelURL           string `yaml:"cancel_url"`
	PaddleAPIKey        string `yaml:"paddle_api_key"`
	PaddleSandbox       bool   `yaml:"paddle_sandbox"`
	PaddlePriceID       string `yaml:"paddle_price_id"`
	PaddleWebhookSecret string `yaml:"paddle_webhook_secret"`
	PremiumDays         int    `yaml:"premium_days"`
}

type RedisConfig struct {
	Addr           string        `yaml:"addr"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	LeaderboardTTL time.Duration `yaml:"leaderboard_ttl"`
}

type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

type MailConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

type PushConfig struct {
	CredentialsFile string `yaml:"credentials_file"`
	Workers         int    `yaml:"workers"`
	QueueSize       int    `yaml:"queue_size"`
}

type JobsConfig struct {
	PremiumSweep string `yaml:"premium_sweep"`
}

type LoggingConfig struct {
	Level string `yaml:"level"`
}

type MetricsConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads CONFIG_PATH (default ./config/base.yaml), expands ${VAR}
// references and applies environment overrides and defaults. A missing
// file is not an error.
func Load() (*Config, error) {
	configPath := getEnv("CONFIG_PATH", "./config/base.yaml")

	opts := []config.YAMLOption{config.Expand(os.LookupEnv)}
	if _, err := os.Stat(configPath); err == nil {
		opts = append(opts, config.File(configPath))
	} else {
		opts = append(opts, config.Source(strings.NewReader("{}")))
	}

	provider, err := config.NewYAML(opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create config provider: %w", err)
	}

	var cfg Config
	if err := provider.Get(config.Root).Populate(&cfg); err != nil {
		return nil, fmt.Errorf("failed to populate config: %w", err)
	}

	cfg.overrideFromEnv()
	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) overrideFromEnv() {
	if val := os.Getenv("APP_ENV"); val != "" {
		c.Service.Environment = val
	}
	if val := os.Getenv("PORT"); val != "" {
		c.Service.Port = val
	}
	if val := os.Getenv("TIMEZONE"); val != "" {
		c.Service.Timezone = val
	}
	if val := os.Getenv("STORAGE_DRIVER"); val != "" {
		c.Database.Driver = val
	}
	if val := os.Getenv("DATABASE_URL"); val != "" {
		c.Database.URL = val
	}
	if val := os.Getenv("AI_SERVICE_URL"); val != "" {
		c.Estimator.BaseURL = val
	}
	if val := os.Getenv("AUTH_MODE"); val != "" {
		c.Auth.Mode = val
	}
	if val := os.Getenv("CLERK_SECRET_KEY"); val != "" {
		c.Auth.ClerkSecretKey = val
	}
	if val := os.Getenv("CLERK_WEBHOOK_SECRET"); val != "" {
		c.Auth.ClerkWebhookSecret = val
	}
	if val := os.Getenv("JWT_SECRET"); val != "" {
		c.Auth.JWTSecret = val
	}
	if val := os.Getenv("STRIPE_SECRET_KEY"); val != "" {
		c.Billing.StripeSecretKey = val
	}
	if val := os.Getenv("STRIPE_WEBHOOK_SECRET"); val != "" {
		c.Billing.StripeWebhookSecret = val
	}
	if val := os.Getenv("STRIPE_PRICE_ID"); val != "" {
		c.Billing.StripePriceID = val
	}
	if val := os.Getenv("PADDLE_API_KEY"); val != "" {
		c.Billing.PaddleAPIKey = val
	}
	if val := os.Getenv("PADDLE_PRICE_ID"); val != "" {
		c.Billing.PaddlePriceID = val
	}
	if val := os.Getenv("PADDLE_WEBHOOK_SECRET"); val != "" {
		c.Billing.PaddleWebhookSecret = val
	}
	if val := os.Getenv("REDIS_ADDR"); val != "" {
		c.Redis.Addr = val
	}
	if val := os.Getenv("REDIS_PASSWORD"); val != "" {
		c.Redis.Password = val
	}
	if val := os.Getenv("REDIS_DB"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.Redis.DB = n
		}
	}
	if val := os.Getenv("KAFKA_BROKERS"); val != "" {
		c.Kafka.Brokers = strings.Split(val, ",")
	}
	if val := os.Getenv("SMTP_HOST"); val != "" {
		c.Mail.Host = val
	}
	if val := os.Getenv("SMTP_USERNAME"); val != "" {
		c.Mail.Username = val
	}
	if val := os.Getenv("SMTP_PASSWORD"); val != "" {
		c.Mail.Password = val
	}
	if val := os.Getenv("FCM_CREDENTIALS_FILE"); val != "" {
		c.Push.CredentialsFile = val
	}
	if val := os.Getenv("LOG_LEVEL"); val != "" {
		c.Logging.Level = val
	}
	if val := os.Getenv("METRICS_USERNAME"); val != "" {
		c.Metrics.Username = val
	}
	if val := os.Getenv("METRICS_PASSWORD"); val != "" {
		c.Metrics.Password = val
	}
}

func (c *Config) applyDefaults() {
	if c.Service.Name == "" {
		c.Service.Name = "ecostep-api"
	}
	if c.Service.Environment == "" {
		c.Service.Environment = "development"
	}
	if c.Service.Port == "" {
		c.Service.Port = "3333"
	}
	if c.Service.Timezone == "" {
		c.Service.Timezone = "Local"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = DriverPostgres
	}
	if c.Estimator.Timeout <= 0 {
		c.Estimator.Timeout = 10 * time.Second
	}
	if c.Auth.Mode == "" {
		c.Auth.Mode = AuthClerk
	}
	if c.Auth.JWTIssuer == "" {
		c.Auth.JWTIssuer = "ecostep"
	}
	if c.Billing.PremiumDays <= 0 {
		c.Billing.PremiumDays = 30
	}
	if c.Redis.LeaderboardTTL <= 0 {
		c.Redis.LeaderboardTTL = 30 * time.Second
	}
	if c.Kafka.Topic == "" {
		c.Kafka.Topic = "ecostep.events"
	}
	if c.Mail.Port == 0 {
		c.Mail.Port = 587
	}
	if c.Push.Workers <= 0 {
		c.Push.Workers = 5
	}
	if c.Push.QueueSize <= 0 {
		c.Push.QueueSize = 100
	}
	if c.Jobs.PremiumSweep == "" {
		c.Jobs.PremiumSweep = "@every 15m"
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
}

func (c *Config) Validate() error {
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.URL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown storage driver %q", c.Database.Driver)
	}

	switch c.Auth.Mode {
	case AuthClerk:
		if c.Auth.ClerkSecretKey == "" {
			return fmt.Errorf("CLERK_SECRET_KEY is required for clerk auth")
		}
	case AuthLocal:
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET is required for local auth")
		}
	default:
		return fmt.Errorf("unknown auth mode %q", c.Auth.Mode)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Location is the zone that defines calendar days for the ledger and
// streaks.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.Service.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", c.Service.Timezone, err)
	}
	return loc, nil
}

func (c *Config) IsDevelopment() bool {
	return c.Service.Environment == "development"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
