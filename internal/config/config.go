// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 FellowHub Contributors

// Package config loads FellowHub settings from defaults, an optional YAML
// file, FELLOWHUB_* environment variables and command-line flags, in that
// order of precedence (later wins).
package config

import (
	"errors"
	"io/fs"
	"net/url"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/fellowhub/fellowhub/internal/auth"
	"github.com/fellowhub/fellowhub/internal/token"
)

// EnvPrefix is stripped from environment variable names. A double
// underscore separates nesting levels: FELLOWHUB_AUTH__ACCESS_TTL sets
// auth.access_ttl.
const EnvPrefix = "FELLOWHUB_"

// Email providers.
const (
	EmailProviderLog      = "log"
	EmailProviderPostmark = "postmark"
)

// Config is the complete runtime configuration.
type Config struct {
	Server   ServerConfig   `koanf:"server"`
	Database DatabaseConfig `koanf:"database"`
	Auth     AuthConfig     `koanf:"auth"`
	Cookies  CookieConfig   `koanf:"cookies"`
	Email    EmailConfig    `koanf:"email"`
	Log      LogConfig      `koanf:"log"`
}

// ServerConfig holds listen addresses. An empty MetricsAddr disables the
// observability server.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	MetricsAddr string `koanf:"metrics_addr"`
	TrustProxy  bool   `koanf:"trust_proxy"`
}

// DatabaseConfig holds PostgreSQL settings.
type DatabaseConfig struct {
	URL             string        `koanf:"url"`
	ConnectAttempts uint64        `koanf:"connect_attempts"`
	ConnectBackoff  time.Duration `koanf:"connect_backoff"`
	AutoMigrate     bool          `koanf:"auto_migrate"`
}

// AuthConfig holds token, session and lockout settings.
type AuthConfig struct {
	TokenSecret          string          `koanf:"token_secret"`
	TokenMode            string          `koanf:"token_mode"`
	Issuer               string          `koanf:"issuer"`
	Audience             string          `koanf:"audience"`
	AccessTTL            time.Duration   `koanf:"access_ttl"`
	RefreshTTL           time.Duration   `koanf:"refresh_ttl"`
	RememberMeTTL        time.Duration   `koanf:"remember_me_ttl"`
	VerificationTTL      time.Duration   `koanf:"verification_ttl"`
	ResetTTL             time.Duration   `koanf:"reset_ttl"`
	RequireVerifiedEmail bool            `koanf:"require_verified_email"`
	Lockout              LockoutConfig   `koanf:"lockout"`
	IPLockout            IPLockoutConfig `koanf:"ip_lockout"`
	PruneInterval        time.Duration   `koanf:"prune_interval"`
}

// LockoutConfig is the per-account lockout policy.
type LockoutConfig struct {
	MaxAttempts int           `koanf:"max_attempts"`
	Window      time.Duration `koanf:"window"`
}

// IPLockoutConfig is the optional per-IP failure counter kept in Redis.
type IPLockoutConfig struct {
	Enabled     bool          `koanf:"enabled"`
	RedisURL    string        `koanf:"redis_url"`
	MaxAttempts int           `koanf:"max_attempts"`
	Window      time.Duration `koanf:"window"`
}

// CookieConfig controls the auth cookies set by the HTTP API.
type CookieConfig struct {
	Secure bool   `koanf:"secure"`
	Domain string `koanf:"domain"`
}

// EmailConfig selects and configures the mail transport.
type EmailConfig struct {
	Provider             string        `koanf:"provider"`
	BaseURL              string        `koanf:"base_url"`
	Sender               string        `koanf:"sender"`
	Support              string        `koanf:"support"`
	PostmarkServerToken  string        `koanf:"postmark_server_token"`
	PostmarkAccountToken string        `koanf:"postmark_account_token"`
	SendTimeout          time.Duration `koanf:"send_timeout"`
}

// LogConfig controls log output.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// Defaults returns the built-in configuration.
func Defaults() map[string]any {
	return map[string]any{
		"server.addr":                  ":8080",
		"server.metrics_addr":          "127.0.0.1:9100",
		"server.trust_proxy":           false,
		"database.connect_attempts":    uint64(10),
		"database.connect_backoff":     500 * time.Millisecond,
		"database.auto_migrate":        false,
		"auth.token_mode":              string(token.ModeLocal),
		"auth.issuer":                  "fellowhub",
		"auth.access_ttl":              auth.DefaultAccessTTL,
		"auth.refresh_ttl":             auth.DefaultRefreshTTL,
		"auth.remember_me_ttl":         auth.DefaultRememberMeTTL,
		"auth.verification_ttl":        auth.DefaultVerificationTTL,
		"auth.reset_ttl":               auth.DefaultResetTTL,
		"auth.require_verified_email":  false,
		"auth.lockout.max_attempts":    auth.DefaultLockoutThreshold,
		"auth.lockout.window":          auth.DefaultLockoutWindow,
		"auth.ip_lockout.enabled":      false,
		"auth.ip_lockout.max_attempts": 20,
		"auth.ip_lockout.window":       15 * time.Minute,
		"auth.prune_interval":          time.Hour,
		"cookies.secure":               true,
		"email.provider":               EmailProviderLog,
		"email.base_url":               "http://localhost:8080",
		"email.send_timeout":           auth.DefaultEmailTimeout,
		"log.format":                   "json",
		"log.level":                    "info",
	}
}

// LoadOptions tells Load where to look.
type LoadOptions struct {
	// File is an optional YAML file. Empty skips it; a named file that does
	// not exist is an error.
	File string
	// DotEnv is loaded into the process environment when present. Existing
	// variables are not overwritten.
	DotEnv string
	// Flags are applied last. Only flags bound with BindFlag are read.
	Flags *pflag.FlagSet
}

// Load builds a Config. It does not validate it.
func Load(opts LoadOptions) (*Config, error) {
	if opts.DotEnv != "" {
		if err := godotenv.Load(opts.DotEnv); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, oops.Code("CONFIG_DOTENV_FAILED").With("path", opts.DotEnv).Wrap(err)
		}
	}

	k := koanf.New(".")
	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, oops.Code("CONFIG_DEFAULTS_FAILED").Wrap(err)
	}

	if opts.File != "" {
		if err := k.Load(file.Provider(opts.File), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_FILE_FAILED").With("path", opts.File).Wrap(err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, oops.Code("CONFIG_ENV_FAILED").Wrap(err)
	}

	if opts.Flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(opts.Flags, ".", k, flagKey(opts.Flags)), nil); err != nil {
			return nil, oops.Code("CONFIG_FLAGS_FAILED").Wrap(err)
		}
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_DECODE_FAILED").Wrap(err)
	}
	return &cfg, nil
}

// envKey maps FELLOWHUB_AUTH__ACCESS_TTL to auth.access_ttl.
func envKey(name string) string {
	name = strings.TrimPrefix(name, EnvPrefix)
	return strings.ReplaceAll(strings.ToLower(name), "__", ".")
}

// flagKey maps bound flags onto their config keys and skips the rest.
// Unset flags only fill keys no earlier source provided.
func flagKey(flags *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		keys := f.Annotations[FlagKeyAnnotation]
		if len(keys) != 1 {
			return "", nil
		}
		return keys[0], posflag.FlagVal(flags, f)
	}
}

// FlagKeyAnnotation binds a flag to a config key.
const FlagKeyAnnotation = "fellowhub_config_key"

// BindFlag annotates an existing flag with the config key it sets.
func BindFlag(flags *pflag.FlagSet, flag, key string) {
	_ = flags.SetAnnotation(flag, FlagKeyAnnotation, []string{key}) //nolint:errcheck // flag defined by caller
}

// Validate reports every problem with cfg at once.
func (c *Config) Validate() error {
	var errs []error
	add := func(key, format string, args ...any) {
		errs = append(errs, oops.Code("CONFIG_INVALID").With("key", key).Errorf(format, args...))
	}

	if c.Database.URL == "" {
		add("database.url", "database.url is required")
	}
	if len(c.Auth.TokenSecret) < token.MinSecretLength {
		add("auth.token_secret", "auth.token_secret must be at least %d bytes", token.MinSecretLength)
	}
	if _, err := token.ParseMode(c.Auth.TokenMode); err != nil {
		add("auth.token_mode", "auth.token_mode must be local or public, got %q", c.Auth.TokenMode)
	}

	positive := []struct {
		key string
		d   time.Duration
	}{
		{"auth.access_ttl", c.Auth.AccessTTL},
		{"auth.refresh_ttl", c.Auth.RefreshTTL},
		{"auth.remember_me_ttl", c.Auth.RememberMeTTL},
		{"auth.verification_ttl", c.Auth.VerificationTTL},
		{"auth.reset_ttl", c.Auth.ResetTTL},
		{"auth.lockout.window", c.Auth.Lockout.Window},
	}
	for _, p := range positive {
		if p.d <= 0 {
			add(p.key, "%s must be positive", p.key)
		}
	}
	if c.Auth.RefreshTTL < c.Auth.AccessTTL {
		add("auth.refresh_ttl", "auth.refresh_ttl must not be shorter than auth.access_ttl")
	}
	if c.Auth.RememberMeTTL < c.Auth.RefreshTTL {
		add("auth.remember_me_ttl", "auth.remember_me_ttl must not be shorter than auth.refresh_ttl")
	}
	if c.Auth.Lockout.MaxAttempts < 1 {
		add("auth.lockout.max_attempts", "auth.lockout.max_attempts must be at least 1")
	}
	if c.Auth.PruneInterval < 0 {
		add("auth.prune_interval", "auth.prune_interval must not be negative")
	}

	if c.Auth.IPLockout.Enabled {
		if c.Auth.IPLockout.RedisURL == "" {
			add("auth.ip_lockout.redis_url", "auth.ip_lockout.redis_url is required when ip lockout is enabled")
		}
		if c.Auth.IPLockout.MaxAttempts < 1 {
			add("auth.ip_lockout.max_attempts", "auth.ip_lockout.max_attempts must be at least 1")
		}
		if c.Auth.IPLockout.Window <= 0 {
			add("auth.ip_lockout.window", "auth.ip_lockout.window must be positive")
		}
	}

	if u, err := url.Parse(c.Email.BaseURL); err != nil || !u.IsAbs() {
		add("email.base_url", "email.base_url must be an absolute URL")
	}
	switch c.Email.Provider {
	case EmailProviderLog:
	case EmailProviderPostmark:
		if c.Email.PostmarkServerToken == "" {
			add("email.postmark_server_token", "email.postmark_server_token is required for postmark")
		}
		if c.Email.PostmarkAccountToken == "" {
			add("email.postmark_account_token", "email.postmark_account_token is required for postmark")
		}
		if c.Email.Sender == "" {
			add("email.sender", "email.sender is required for postmark")
		}
	default:
		add("email.provider", "email.provider must be log or postmark, got %q", c.Email.Provider)
	}

	switch c.Log.Format {
	case "json", "text":
	default:
		add("log.format", "log.format must be json or text, got %q", c.Log.Format)
	}

	return errors.Join(errs...)
}

// TokenConfig converts the auth section into codec settings.
func (c *Config) TokenConfig() token.Config {
	return token.Config{
		Secret:   []byte(c.Auth.TokenSecret),
		Mode:     token.Mode(c.Auth.TokenMode),
		Issuer:   c.Auth.Issuer,
		Audience: c.Auth.Audience,
	}
}

// SessionConfig converts the auth section into session lifetimes.
func (c *Config) SessionConfig() auth.SessionConfig {
	cfg := auth.DefaultSessionConfig()
	cfg.AccessTTL = c.Auth.AccessTTL
	cfg.RefreshTTL = c.Auth.RefreshTTL
	cfg.RememberMeTTL = c.Auth.RememberMeTTL
	return cfg
}

// ServiceConfig converts the auth section into credential service settings.
func (c *Config) ServiceConfig() auth.Config {
	return auth.Config{
		Lockout: auth.LockoutPolicy{
			MaxAttempts: c.Auth.Lockout.MaxAttempts,
			Window:      c.Auth.Lockout.Window,
		},
		VerificationTTL:      c.Auth.VerificationTTL,
		ResetTTL:             c.Auth.ResetTTL,
		RequireVerifiedEmail: c.Auth.RequireVerifiedEmail,
		EmailTimeout:         c.Email.SendTimeout,
	}
}
