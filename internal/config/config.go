// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"signals-platform/internal/domain/model"
)

type RuntimeConfig struct {
	Dev bool
}

type HTTPConfig struct {
	Port            int           `yaml:"port"`
	AllowedOrigins  []string      `yaml:"allowed_origins"`
	RequestTimeout  time.Duration `yaml:"request_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	// Addresses or CIDRs allowed to set X-Forwarded-For. Empty trusts nobody.
	TrustedProxies []string `yaml:"trusted_proxies"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

// APIConfig points at the upstream REST API. BaseURL is substituted in front of every path.
type APIConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
	// ConfirmURL is the frontend page the verification email links to.
	ConfirmURL string `yaml:"confirm_url"`
}

type SessionConfig struct {
	CookieName string        `yaml:"cookie_name"`
	Secret     string        `yaml:"secret"`
	TTL        time.Duration `yaml:"ttl"`
	Secure     bool          `yaml:"secure"`
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string        `yaml:"url"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	TTL      time.Duration `yaml:"ttl"`
}

type CatalogConfig struct {
	CacheTTL time.Duration `yaml:"cache_ttl"`
}

type CheckoutConfig struct {
	// StrictOfferMatch disables the first-of-type fallback when a plan name matches nothing.
	StrictOfferMatch bool          `yaml:"strict_offer_match"`
	StateTTL         time.Duration `yaml:"state_ttl"`
	Guidance         string        `yaml:"guidance"`
}

type ContentConfig struct {
	HomepageTTL time.Duration `yaml:"homepage_ttl"`
}

// LayoutsConfig lists the dashboard surfaces and the widgets they show by default.
type LayoutsConfig struct {
	Defaults map[string][]string `yaml:"defaults"`
}

type TelegramConfig struct {
	Token        string  `yaml:"token"`
	AdminChatIDs []int64 `yaml:"admin_chat_ids"`
	// Upstream staff account the bot acts as when an admin taps Validate/Cancel.
	ServiceEmail    string `yaml:"service_email"`
	ServicePassword string `yaml:"service_password"`
}

type EventsConfig struct {
	AMQPURL  string `yaml:"amqp_url"`
	Exchange string `yaml:"exchange"`
}

type SchedulerConfig struct {
	PendingDigestCron string `yaml:"pending_digest_cron"`
}

type Config struct {
	HTTP            HTTPConfig             `yaml:"http"`
	Log             LogConfig              `yaml:"log"`
	API             APIConfig              `yaml:"api"`
	Session         SessionConfig          `yaml:"session"`
	Database        DatabaseConfig         `yaml:"database"`
	Redis           RedisConfig            `yaml:"redis"`
	Catalog         CatalogConfig          `yaml:"catalog"`
	Checkout        CheckoutConfig         `yaml:"checkout"`
	Content         ContentConfig          `yaml:"content"`
	Layouts         LayoutsConfig          `yaml:"layouts"`
	ContactChannels []model.ContactChannel `yaml:"contact_channels"`
	Telegram        TelegramConfig         `yaml:"telegram"`
	Events          EventsConfig           `yaml:"events"`
	Scheduler       SchedulerConfig        `yaml:"scheduler"`

	Runtime RuntimeConfig `yaml:"-"`
}

const defaultGuidance = "An administrator will contact you shortly on the channel you selected to complete the payment."

// LoadConfig reads the yaml file at path, applies a local .env if present,
// environment overrides and defaults, then validates the result.
func LoadConfig(path string, dev bool) (*Config, error) {
	_ = godotenv.Load()

	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	cfg, err := Parse(b)
	if err != nil {
		return nil, err
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.Runtime.Dev = dev
	return cfg, nil
}

func Parse(b []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return &cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("SIGNALS_API_BASE_URL"); v != "" {
		cfg.API.BaseURL = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("SESSION_SECRET"); v != "" {
		cfg.Session.Secret = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Telegram.Token = v
	}
	if v := os.Getenv("TELEGRAM_SERVICE_PASSWORD"); v != "" {
		cfg.Telegram.ServicePassword = v
	}
	if v := os.Getenv("AMQP_URL"); v != "" {
		cfg.Events.AMQPURL = v
	}
	if v := os.Getenv("HTTP_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.HTTP.Port = p
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Port <= 0 {
		cfg.HTTP.Port = 8080
	}
	if cfg.HTTP.RequestTimeout <= 0 {
		cfg.HTTP.RequestTimeout = 30 * time.Second
	}
	if cfg.HTTP.ShutdownTimeout <= 0 {
		cfg.HTTP.ShutdownTimeout = 10 * time.Second
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	cfg.API.BaseURL = strings.TrimRight(cfg.API.BaseURL, "/")
	if cfg.API.Timeout <= 0 {
		cfg.API.Timeout = 15 * time.Second
	}
	if cfg.Session.CookieName == "" {
		cfg.Session.CookieName = "signals_session"
	}
	if cfg.Session.TTL <= 0 {
		cfg.Session.TTL = 7 * 24 * time.Hour
	}
	cfg.Redis.TTL = normalizeTTL(cfg.Redis.TTL)
	if cfg.Catalog.CacheTTL <= 0 {
		cfg.Catalog.CacheTTL = 10 * time.Minute
	}
	if cfg.Checkout.StateTTL <= 0 {
		cfg.Checkout.StateTTL = 24 * time.Hour
	}
	if cfg.Checkout.Guidance == "" {
		cfg.Checkout.Guidance = defaultGuidance
	}
	if cfg.Content.HomepageTTL <= 0 {
		cfg.Content.HomepageTTL = 5 * time.Minute
	}
	if len(cfg.Layouts.Defaults) == 0 {
		cfg.Layouts.Defaults = map[string][]string{
			"user":  {"active_subscriptions", "pending_payments", "payment_history", "total_spent"},
			"admin": {"payment_counts", "revenue", "pending_payments", "recent_payments"},
		}
	}
	if cfg.Events.Exchange == "" {
		cfg.Events.Exchange = "signals.events"
	}
	if cfg.Scheduler.PendingDigestCron == "" {
		cfg.Scheduler.PendingDigestCron = "0 9 * * *"
	}
}

func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return errors.New("api.base_url is required")
	}
	if c.Session.Secret == "" {
		return errors.New("session.secret is required")
	}
	if c.Database.URL == "" {
		return errors.New("database.url is required")
	}
	if c.Redis.URL == "" {
		return errors.New("redis.url is required")
	}
	for i, ch := range c.ContactChannels {
		if !ch.Type.Valid() {
			return fmt.Errorf("contact_channels[%d]: unknown type %q", i, ch.Type)
		}
	}
	if c.Telegram.Token != "" && len(c.Telegram.AdminChatIDs) == 0 {
		return errors.New("telegram.admin_chat_ids is required when telegram.token is set")
	}
	return nil
}

func normalizeTTL(d time.Duration) time.Duration {
	if d <= 0 {
		return time.Hour
	}
	return d
}
