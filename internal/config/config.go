package config

import (
	"fmt"
	"log"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	Port            string   `mapstructure:"PORT"`
	Env             string   `mapstructure:"ENV"`
	DatabaseURL     string   `mapstructure:"DATABASE_URL"`
	DBMaxConns      int32    `mapstructure:"DB_MAX_CONNS"`
	DBMinConns      int32    `mapstructure:"DB_MIN_CONNS"`
	SessionSecret   string   `mapstructure:"SESSION_SECRET"`
	SessionTTLHours int      `mapstructure:"SESSION_TTL_HOURS"`
	PortalJWTSecret string   `mapstructure:"PORTAL_JWT_SECRET"`
	PortalTTLHours  int      `mapstructure:"PORTAL_TTL_HOURS"`
	TaxRate         float64  `mapstructure:"TAX_RATE"`
	CORSOrigins     []string `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS    float64  `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst  int      `mapstructure:"RATE_LIMIT_BURST"`
	LoginRPM        float64  `mapstructure:"LOGIN_RATE_PER_MIN"`
	MaxUploadMB     int64    `mapstructure:"MAX_UPLOAD_MB"`
	ReminderMinutes int      `mapstructure:"REMINDER_CHECK_MINUTES"`
	TLSEnabled      bool     `mapstructure:"TLS_ENABLED"`
	TLSCertFile     string   `mapstructure:"TLS_CERT_FILE"`
	TLSKeyFile      string   `mapstructure:"TLS_KEY_FILE"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("SESSION_TTL_HOURS", 12)
	v.SetDefault("PORTAL_TTL_HOURS", 24)
	v.SetDefault("TAX_RATE", 0.0)
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("LOGIN_RATE_PER_MIN", 10)
	v.SetDefault("MAX_UPLOAD_MB", 25)
	v.SetDefault("REMINDER_CHECK_MINUTES", 15)

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("PORT")
	v.BindEnv("ENV")
	v.BindEnv("DATABASE_URL")
	v.BindEnv("DB_MAX_CONNS")
	v.BindEnv("DB_MIN_CONNS")
	v.BindEnv("SESSION_SECRET")
	v.BindEnv("SESSION_TTL_HOURS")
	v.BindEnv("PORTAL_JWT_SECRET")
	v.BindEnv("PORTAL_TTL_HOURS")
	v.BindEnv("TAX_RATE")
	v.BindEnv("CORS_ORIGINS")
	v.BindEnv("RATE_LIMIT_RPS")
	v.BindEnv("RATE_LIMIT_BURST")
	v.BindEnv("LOGIN_RATE_PER_MIN")
	v.BindEnv("MAX_UPLOAD_MB")
	v.BindEnv("REMINDER_CHECK_MINUTES")
	v.BindEnv("TLS_ENABLED")
	v.BindEnv("TLS_CERT_FILE")
	v.BindEnv("TLS_KEY_FILE")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.CORSOrigins == nil {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}

	if cfg.DatabaseURL == "" {
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	if cfg.IsDev() {
		if cfg.SessionSecret == "" {
			cfg.SessionSecret = "dev-session-secret-not-for-production"
			log.Println("WARNING: SESSION_SECRET not set, using insecure development default")
		}
		if cfg.PortalJWTSecret == "" {
			cfg.PortalJWTSecret = "dev-portal-secret-not-for-production"
			log.Println("WARNING: PORTAL_JWT_SECRET not set, using insecure development default")
		}
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks that the configuration is safe to run. In production both
// signing secrets must be explicitly set and long enough to resist brute
// force; the insecure development defaults are rejected.
func (c *Config) Validate() error {
	if c.IsProduction() {
		if c.SessionSecret == "" || strings.HasPrefix(c.SessionSecret, "dev-") {
			return fmt.Errorf("SESSION_SECRET must be set in production")
		}
		if c.PortalJWTSecret == "" || strings.HasPrefix(c.PortalJWTSecret, "dev-") {
			return fmt.Errorf("PORTAL_JWT_SECRET must be set in production")
		}
		if len(c.SessionSecret) < 32 {
			return fmt.Errorf("SESSION_SECRET must be at least 32 characters, got %d", len(c.SessionSecret))
		}
		if len(c.PortalJWTSecret) < 32 {
			return fmt.Errorf("PORTAL_JWT_SECRET must be at least 32 characters, got %d", len(c.PortalJWTSecret))
		}
	}

	if c.TaxRate < 0 || c.TaxRate >= 1 {
		return fmt.Errorf("TAX_RATE must be a fraction in [0, 1), got %v", c.TaxRate)
	}

	if c.SessionTTLHours <= 0 {
		return fmt.Errorf("SESSION_TTL_HOURS must be positive, got %d", c.SessionTTLHours)
	}
	if c.PortalTTLHours <= 0 {
		return fmt.Errorf("PORTAL_TTL_HOURS must be positive, got %d", c.PortalTTLHours)
	}

	// TLS validation: when TLS is enabled, cert and key files must be specified.
	if c.TLSEnabled {
		if c.TLSCertFile == "" {
			return fmt.Errorf("TLS_CERT_FILE is required when TLS_ENABLED is true")
		}
		if c.TLSKeyFile == "" {
			return fmt.Errorf("TLS_KEY_FILE is required when TLS_ENABLED is true")
		}
	}

	return nil
}
