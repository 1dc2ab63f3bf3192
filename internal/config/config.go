// Package config loads service configuration from defaults, an optional
// config file and the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/insightdelivered/statement-extractor/internal/admission"
)

// Store backends.
const (
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

type Config struct {
	Server    ServerConfig    `mapstructure:",squash"`
	CORS      CORSConfig      `mapstructure:",squash"`
	Upload    UploadConfig    `mapstructure:",squash"`
	Admission AdmissionConfig `mapstructure:",squash"`
	Redis     RedisConfig     `mapstructure:",squash"`
	Log       LogConfig       `mapstructure:",squash"`
	Version   string          `mapstructure:"APP_VERSION"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"SERVER_HOST"`
	Port            int           `mapstructure:"SERVER_PORT"`
	ReadTimeout     time.Duration `mapstructure:"SERVER_READ_TIMEOUT"`
	WriteTimeout    time.Duration `mapstructure:"SERVER_WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `mapstructure:"SERVER_IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `mapstructure:"SERVER_SHUTDOWN_TIMEOUT"`
	// ProxyHeader names the header holding the client address, such as
	// X-Forwarded-For. Empty uses the connection's remote address.
	ProxyHeader    string   `mapstructure:"SERVER_PROXY_HEADER"`
	TrustedProxies []string `mapstructure:"SERVER_TRUSTED_PROXIES"`
}

// Addr returns host:port for listening.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type CORSConfig struct {
	Origins []string `mapstructure:"CORS_ORIGINS"`
}

type UploadConfig struct {
	MaxBytes int64  `mapstructure:"UPLOAD_MAX_BYTES"`
	MaxPages int    `mapstructure:"UPLOAD_MAX_PAGES"`
	TempDir  string `mapstructure:"UPLOAD_TEMP_DIR"`
}

type AdmissionConfig struct {
	Store        string        `mapstructure:"ADMISSION_STORE"`
	Shards       int           `mapstructure:"ADMISSION_SHARDS"`
	BlacklistTTL time.Duration `mapstructure:"ADMISSION_BLACKLIST_TTL"`

	ParseMaxRequests int           `mapstructure:"ADMISSION_PARSE_MAX_REQUESTS"`
	ParseWindow      time.Duration `mapstructure:"ADMISSION_PARSE_WINDOW"`
	ParseStrict      bool          `mapstructure:"ADMISSION_PARSE_STRICT"`

	APIMaxRequests int           `mapstructure:"ADMISSION_API_MAX_REQUESTS"`
	APIWindow      time.Duration `mapstructure:"ADMISSION_API_WINDOW"`
	APIStrict      bool          `mapstructure:"ADMISSION_API_STRICT"`
}

// ParsePolicy is the policy guarding statement parsing.
func (a AdmissionConfig) ParsePolicy() admission.Policy {
	return admission.Policy{Name: "parse", MaxRequests: a.ParseMaxRequests, Window: a.ParseWindow, Strict: a.ParseStrict}
}

// APIPolicy is the policy guarding the remaining API routes.
func (a AdmissionConfig) APIPolicy() admission.Policy {
	return admission.Policy{Name: "api", MaxRequests: a.APIMaxRequests, Window: a.APIWindow, Strict: a.APIStrict}
}

type RedisConfig struct {
	Addr     string `mapstructure:"REDIS_ADDR"`
	Password string `mapstructure:"REDIS_PASSWORD"`
	DB       int    `mapstructure:"REDIS_DB"`
	Prefix   string `mapstructure:"REDIS_PREFIX"`
}

type LogConfig struct {
	Level  string `mapstructure:"LOG_LEVEL"`
	Format string `mapstructure:"LOG_FORMAT"`
	File   string `mapstructure:"LOG_FILE"`
}

// DefaultOrigins are the front-end origins allowed by CORS out of the box.
var DefaultOrigins = []string{
	"http://localhost:8080",
	"http://localhost:8081",
	"http://127.0.0.1:8080",
	"http://127.0.0.1:8081",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_PORT", 5000)
	v.SetDefault("SERVER_READ_TIMEOUT", "30s")
	v.SetDefault("SERVER_WRITE_TIMEOUT", "30s")
	v.SetDefault("SERVER_IDLE_TIMEOUT", "60s")
	v.SetDefault("SERVER_SHUTDOWN_TIMEOUT", "10s")
	v.SetDefault("SERVER_PROXY_HEADER", "")
	v.SetDefault("SERVER_TRUSTED_PROXIES", []string{})

	v.SetDefault("CORS_ORIGINS", DefaultOrigins)

	v.SetDefault("UPLOAD_MAX_BYTES", 16<<20)
	v.SetDefault("UPLOAD_MAX_PAGES", 50)
	v.SetDefault("UPLOAD_TEMP_DIR", os.TempDir())

	v.SetDefault("ADMISSION_STORE", StoreMemory)
	v.SetDefault("ADMISSION_SHARDS", admission.DefaultShards)
	v.SetDefault("ADMISSION_BLACKLIST_TTL", "0s")
	v.SetDefault("ADMISSION_PARSE_MAX_REQUESTS", admission.DefaultMaxRequests)
	v.SetDefault("ADMISSION_PARSE_WINDOW", admission.DefaultWindow.String())
	v.SetDefault("ADMISSION_PARSE_STRICT", true)
	v.SetDefault("ADMISSION_API_MAX_REQUESTS", 60)
	v.SetDefault("ADMISSION_API_WINDOW", "60s")
	v.SetDefault("ADMISSION_API_STRICT", false)

	v.SetDefault("REDIS_ADDR", "localhost:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_PREFIX", "statement")

	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("LOG_FILE", "")

	v.SetDefault("APP_VERSION", "1.0.0")
}

// Load builds the configuration. Values come from, in increasing priority:
// defaults, the config file at path (or CONFIG_FILE, or ./.env when it
// exists), and environment variables. BACKEND_PORT is accepted as an alias
// for SERVER_PORT.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.AutomaticEnv()
	if err := v.BindEnv("SERVER_PORT", "SERVER_PORT", "BACKEND_PORT"); err != nil {
		return nil, err
	}

	if path == "" {
		path = os.Getenv("CONFIG_FILE")
	}
	if path == "" {
		if _, err := os.Stat(".env"); err == nil {
			path = ".env"
		}
	}
	if path != "" {
		v.SetConfigFile(path)
		if ext := filepath.Ext(path); ext == "" || ext == ".env" {
			v.SetConfigType("env")
		}
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) normalize() {
	c.Admission.Store = strings.ToLower(strings.TrimSpace(c.Admission.Store))
	c.CORS.Origins = trimAll(c.CORS.Origins)
	c.Server.TrustedProxies = trimAll(c.Server.TrustedProxies)
}

func trimAll(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT %d out of range", c.Server.Port))
	}
	if c.Upload.MaxBytes <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_BYTES must be positive"))
	}
	if c.Upload.MaxPages <= 0 {
		errs = append(errs, errors.New("UPLOAD_MAX_PAGES must be positive"))
	}
	switch c.Admission.Store {
	case StoreMemory, StoreRedis:
	default:
		errs = append(errs, fmt.Errorf("ADMISSION_STORE %q must be %q or %q", c.Admission.Store, StoreMemory, StoreRedis))
	}
	if c.Admission.Store == StoreRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("REDIS_ADDR is required for the redis store"))
	}
	if c.Admission.BlacklistTTL < 0 {
		errs = append(errs, errors.New("ADMISSION_BLACKLIST_TTL must not be negative"))
	}
	for _, p := range []admission.Policy{c.Admission.ParsePolicy(), c.Admission.APIPolicy()} {
		if p.MaxRequests <= 0 || p.Window <= 0 {
			errs = append(errs, fmt.Errorf("admission policy %s must have positive limits", p.Name))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
