package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Log       LogConfig       `mapstructure:"log"`
	Security  SecurityConfig  `mapstructure:"security"`
	Email     EmailConfig     `mapstructure:"email"`
	AI        AIConfig        `mapstructure:"ai"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Metadata  MetadataConfig  `mapstructure:"metadata"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	Templates TemplatesConfig `mapstructure:"templates"`
	Tracking  TrackingConfig  `mapstructure:"tracking"`
	AMQP      AMQPConfig      `mapstructure:"amqp"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// AllowedOrigins is used by CORS and by the websocket origin check
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// URL returns the PostgreSQL connection string in URL form, as golang-migrate expects it
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	// SecretKey encrypts stored SMTP passwords. Must be 32 bytes, hex or raw.
	SecretKey string `mapstructure:"secret_key"`
	// APIToken, when set, is required as a bearer token on /api routes
	APIToken     string             `mapstructure:"api_token"`
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled       bool          `mapstructure:"enabled"`
	DefaultLimit  int           `mapstructure:"default_limit"`
	DefaultWindow time.Duration `mapstructure:"default_window"`
}

// EmailConfig holds delivery configuration
type EmailConfig struct {
	// SMTP holds dial settings shared by every campaign's primary transport
	SMTP SMTPEmailConfig `mapstructure:"smtp"`
	// Gmail is the pre-provisioned secondary transport
	Gmail GmailEmailConfig `mapstructure:"gmail"`
}

// SMTPEmailConfig holds SMTP client tuning
type SMTPEmailConfig struct {
	DialTimeout time.Duration `mapstructure:"dial_timeout"`
	// TLSPolicy is one of "opportunistic", "mandatory", "none"
	TLSPolicy string `mapstructure:"tls_policy"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// Enabled turns the secondary transport on
	Enabled bool `mapstructure:"enabled"`
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
}

// AIConfig holds content generation configuration
type AIConfig struct {
	APIKey      string        `mapstructure:"api_key"`
	Model       string        `mapstructure:"model"`
	Timeout     time.Duration `mapstructure:"timeout"`
	Temperature float32       `mapstructure:"temperature"`
}

// DiscoveryConfig holds prospect discovery configuration
type DiscoveryConfig struct {
	// ServiceURL is an optional remote discovery service streaming NDJSON prospects
	ServiceURL   string        `mapstructure:"service_url"`
	CrawlWebsite bool          `mapstructure:"crawl_website"`
	MaxPages     int           `mapstructure:"max_pages"`
	MaxProspects int           `mapstructure:"max_prospects"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// MetadataConfig holds website metadata fetcher configuration
type MetadataConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

// WorkflowConfig holds coordinator tuning
type WorkflowConfig struct {
	RenderConcurrency int `mapstructure:"render_concurrency"`
}

// TemplatesConfig holds template registry configuration
type TemplatesConfig struct {
	// Path is an optional YAML file with extra templates
	Path string `mapstructure:"path"`
}

// TrackingConfig holds open and click tracking configuration
type TrackingConfig struct {
	// BaseURL is the public origin tracked links point at. Empty disables tracking.
	BaseURL string `mapstructure:"base_url"`
}

// AMQPConfig holds the audit exporter configuration
type AMQPConfig struct {
	// URL enables the exporter when non-empty
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

// Load reads configuration from .env, config file and environment variables
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env file: %w", err)
	}

	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/outreach")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	v.SetEnvPrefix("OUTREACH")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000", "http://localhost:5173"})

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "outreach")
	v.SetDefault("database.user", "outreach")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 25)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Security defaults
	v.SetDefault("security.secret_key", "")
	v.SetDefault("security.api_token", "")
	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.default_limit", 120)
	v.SetDefault("security.rate_limiting.default_window", "1m")

	// Email defaults
	v.SetDefault("email.smtp.dial_timeout", "15s")
	v.SetDefault("email.smtp.tls_policy", "opportunistic")
	v.SetDefault("email.gmail.enabled", false)
	v.SetDefault("email.gmail.sender_address", "")
	v.SetDefault("email.gmail.sender_name", "Outreach")

	// AI defaults
	v.SetDefault("ai.api_key", "")
	v.SetDefault("ai.model", "gemini-2.5-flash")
	v.SetDefault("ai.timeout", "60s")
	v.SetDefault("ai.temperature", 0.7)

	// Discovery defaults
	v.SetDefault("discovery.service_url", "")
	v.SetDefault("discovery.crawl_website", true)
	v.SetDefault("discovery.max_pages", 20)
	v.SetDefault("discovery.max_prospects", 50)
	v.SetDefault("discovery.timeout", "5m")

	// Metadata defaults
	v.SetDefault("metadata.cache_ttl", "24h")
	v.SetDefault("metadata.timeout", "10s")

	// Workflow defaults
	v.SetDefault("workflow.render_concurrency", 4)

	// Templates defaults
	v.SetDefault("templates.path", "")

	// Tracking defaults
	v.SetDefault("tracking.base_url", "")

	// AMQP defaults
	v.SetDefault("amqp.url", "")
	v.SetDefault("amqp.exchange", "outreach.events")
}
