package config

import (
	"errors"
	"log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	HTTPAddr    string `mapstructure:"HTTP_ADDR"`
	DatabaseURL string `mapstructure:"DATABASE_URL"`
	TrustProxy  bool   `mapstructure:"TRUST_PROXY"`

	JWTSecret     string        `mapstructure:"JWT_SECRET"`
	JWTIssuer     string        `mapstructure:"JWT_ISSUER"`
	LoginTokenTTL time.Duration `mapstructure:"LOGIN_TOKEN_TTL"`
	ResetTokenTTL time.Duration `mapstructure:"RESET_TOKEN_TTL"`
	BcryptCost    int           `mapstructure:"BCRYPT_COST"`

	SessionActiveWindow  time.Duration `mapstructure:"SESSION_ACTIVE_WINDOW"`
	SessionRetention     time.Duration `mapstructure:"SESSION_RETENTION"`
	SessionSweepInterval time.Duration `mapstructure:"SESSION_SWEEP_INTERVAL"`

	OTPTTL                time.Duration `mapstructure:"OTP_TTL"`
	OTPMaxAttempts        int           `mapstructure:"OTP_MAX_ATTEMPTS"`
	ResetRateWindow       time.Duration `mapstructure:"RESET_RATE_WINDOW"`
	ResetRateLimit        int           `mapstructure:"RESET_RATE_LIMIT"`
	ForgotPasswordTimeout time.Duration `mapstructure:"FORGOT_PASSWORD_TIMEOUT"`

	RedisAddr        string        `mapstructure:"REDIS_ADDR"`
	RedisPassword    string        `mapstructure:"REDIS_PASSWORD"`
	RedisDB          int           `mapstructure:"REDIS_DB"`
	GeoCacheTTL      time.Duration `mapstructure:"GEO_CACHE_TTL"`
	GeoLookupTimeout time.Duration `mapstructure:"GEO_LOOKUP_TIMEOUT"`

	ResendAPIKey string `mapstructure:"RESEND_API_KEY"`
	EmailFrom    string `mapstructure:"EMAIL_FROM"`
	AppBaseURL   string `mapstructure:"APP_BASE_URL"`
}

var defaults = map[string]any{
	"HTTP_ADDR":               ":8080",
	"DATABASE_URL":            "",
	"TRUST_PROXY":             false,
	"JWT_SECRET":              "",
	"JWT_ISSUER":              "fintrack",
	"LOGIN_TOKEN_TTL":         "24h",
	"RESET_TOKEN_TTL":         "15m",
	"BCRYPT_COST":             10,
	"SESSION_ACTIVE_WINDOW":   "30m",
	"SESSION_RETENTION":       "168h",
	"SESSION_SWEEP_INTERVAL":  "24h",
	"OTP_TTL":                 "10m",
	"OTP_MAX_ATTEMPTS":        5,
	"RESET_RATE_WINDOW":       "10m",
	"RESET_RATE_LIMIT":        3,
	"FORGOT_PASSWORD_TIMEOUT": "60s",
	"REDIS_ADDR":              "",
	"REDIS_PASSWORD":          "",
	"REDIS_DB":                0,
	"GEO_CACHE_TTL":           "24h",
	"GEO_LOOKUP_TIMEOUT":      "5s",
	"RESEND_API_KEY":          "",
	"EMAIL_FROM":              "",
	"APP_BASE_URL":            "",
}

// Load reads .env when present, then the process environment.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Printf("error load env %s", err)
	}
	return load(viper.New())
}

func load(v *viper.Viper) (*Config, error) {
	v.AutomaticEnv()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	if c.JWTSecret == "" {
		return errors.New("config: JWT_SECRET is required")
	}
	if c.HTTPAddr == "" {
		return errors.New("config: HTTP_ADDR must be set")
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		return errors.New("config: BCRYPT_COST must be between 4 and 31")
	}
	durations := map[string]time.Duration{
		"LOGIN_TOKEN_TTL":         c.LoginTokenTTL,
		"RESET_TOKEN_TTL":         c.ResetTokenTTL,
		"SESSION_ACTIVE_WINDOW":   c.SessionActiveWindow,
		"SESSION_RETENTION":       c.SessionRetention,
		"SESSION_SWEEP_INTERVAL":  c.SessionSweepInterval,
		"OTP_TTL":                 c.OTPTTL,
		"RESET_RATE_WINDOW":       c.ResetRateWindow,
		"FORGOT_PASSWORD_TIMEOUT": c.ForgotPasswordTimeout,
		"GEO_CACHE_TTL":           c.GeoCacheTTL,
		"GEO_LOOKUP_TIMEOUT":      c.GeoLookupTimeout,
	}
	for key, d := range durations {
		if d <= 0 {
			return errors.New("config: " + key + " must be a positive duration")
		}
	}
	if c.OTPMaxAttempts <= 0 || c.ResetRateLimit <= 0 {
		return errors.New("config: OTP_MAX_ATTEMPTS and RESET_RATE_LIMIT must be positive")
	}
	return nil
}
