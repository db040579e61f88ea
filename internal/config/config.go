package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	AuthModeDevelopment = "development"
	AuthModeJWT         = "jwt"

	EmailProviderLog      = "log"
	EmailProviderSendGrid = "sendgrid"
	EmailProviderSES      = "ses"
)

type Config struct {
	Port     string `mapstructure:"PORT"`
	Env      string `mapstructure:"ENV"`
	AuthMode string `mapstructure:"AUTH_MODE"`

	JWTSecret string        `mapstructure:"JWT_SECRET"`
	JWTIssuer string        `mapstructure:"JWT_ISSUER"`
	JWTTTL    time.Duration `mapstructure:"JWT_TTL"`

	DatabaseURL   string `mapstructure:"DATABASE_URL"`
	DBMaxConns    int32  `mapstructure:"DB_MAX_CONNS"`
	DBMinConns    int32  `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir string `mapstructure:"MIGRATIONS_DIR"`

	RedisURL       string        `mapstructure:"REDIS_URL"`
	IdempotencyTTL time.Duration `mapstructure:"IDEMPOTENCY_TTL"`

	ClinicTimezone      string `mapstructure:"CLINIC_TIMEZONE"`
	EnforceAvailability bool   `mapstructure:"SCHEDULING_ENFORCE_AVAILABILITY"`

	EmailProvider  string        `mapstructure:"EMAIL_PROVIDER"`
	EmailFrom      string        `mapstructure:"EMAIL_FROM"`
	EmailFromName  string        `mapstructure:"EMAIL_FROM_NAME"`
	SendGridAPIKey string        `mapstructure:"SENDGRID_API_KEY"`
	AWSRegion      string        `mapstructure:"AWS_REGION"`
	NotifyTimeout  time.Duration `mapstructure:"NOTIFY_TIMEOUT"`

	CORSOrigins    []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS   float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst int           `mapstructure:"RATE_LIMIT_BURST"`
	RequestTimeout time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	MetricsEnabled bool          `mapstructure:"METRICS_ENABLED"`
}

var keys = []string{
	"PORT", "ENV", "AUTH_MODE",
	"JWT_SECRET", "JWT_ISSUER", "JWT_TTL",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"REDIS_URL", "IDEMPOTENCY_TTL",
	"CLINIC_TIMEZONE", "SCHEDULING_ENFORCE_AVAILABILITY",
	"EMAIL_PROVIDER", "EMAIL_FROM", "EMAIL_FROM_NAME", "SENDGRID_API_KEY", "AWS_REGION", "NOTIFY_TIMEOUT",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST", "REQUEST_TIMEOUT", "METRICS_ENABLED",
}

// Load reads .env (when present) and the environment. It does not validate;
// commands that need a full configuration call Validate.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()

	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("AUTH_MODE", "")
	v.SetDefault("JWT_ISSUER", "frontdesk")
	v.SetDefault("JWT_TTL", "15m")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("IDEMPOTENCY_TTL", "24h")
	v.SetDefault("CLINIC_TIMEZONE", "UTC")
	v.SetDefault("SCHEDULING_ENFORCE_AVAILABILITY", true)
	v.SetDefault("EMAIL_PROVIDER", EmailProviderLog)
	v.SetDefault("EMAIL_FROM", "noreply@clinic.com")
	v.SetDefault("EMAIL_FROM_NAME", "Clinic System")
	v.SetDefault("AWS_REGION", "us-east-1")
	v.SetDefault("NOTIFY_TIMEOUT", "10s")
	v.SetDefault("CORS_ORIGINS", "http://localhost:5173")
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("METRICS_ENABLED", true)

	for _, k := range keys {
		_ = v.BindEnv(k)
	}

	// Missing .env is fine.
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// A single env string arrives as one element; split it.
	if len(cfg.CORSOrigins) <= 1 {
		cfg.CORSOrigins = splitList(v.GetString("CORS_ORIGINS"))
	}
	cfg.EmailProvider = strings.ToLower(strings.TrimSpace(cfg.EmailProvider))

	if cfg.ResolvedAuthMode() == AuthModeDevelopment {
		log.Warn().Msg("development auth is active: every request runs as dev-user with the ADMIN role")
	}

	return cfg, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ResolvedAuthMode returns AUTH_MODE when set. Otherwise development
// environments use the dev principal and everything else requires JWTs.
func (c *Config) ResolvedAuthMode() string {
	if c.AuthMode != "" {
		return strings.ToLower(c.AuthMode)
	}
	if c.IsDev() {
		return AuthModeDevelopment
	}
	return AuthModeJWT
}

// Location loads CLINIC_TIMEZONE.
func (c *Config) Location() (*time.Location, error) {
	name := c.ClinicTimezone
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return nil, fmt.Errorf("CLINIC_TIMEZONE %q: %w", name, err)
	}
	return loc, nil
}

// Validate checks that the configuration is safe to serve with.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required")
	}

	switch mode := c.ResolvedAuthMode(); mode {
	case AuthModeDevelopment:
		if c.IsProduction() {
			return fmt.Errorf("AUTH_MODE %q is not allowed when ENV=production", mode)
		}
	case AuthModeJWT:
		if c.JWTSecret == "" {
			return fmt.Errorf("JWT_SECRET must be set when AUTH_MODE is %q", AuthModeJWT)
		}
	default:
		return fmt.Errorf("AUTH_MODE must be %q or %q, got %q", AuthModeDevelopment, AuthModeJWT, mode)
	}

	switch c.EmailProvider {
	case EmailProviderLog, EmailProviderSES:
	case EmailProviderSendGrid:
		if c.SendGridAPIKey == "" {
			return fmt.Errorf("SENDGRID_API_KEY is required when EMAIL_PROVIDER is %q", EmailProviderSendGrid)
		}
	default:
		return fmt.Errorf("EMAIL_PROVIDER must be log, sendgrid or ses, got %q", c.EmailProvider)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}
