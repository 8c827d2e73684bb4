package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	RateLimitBackendStore = "store"
	RateLimitBackendRedis = "redis"
)

// AppConfig 汇总运行服务所需的基础配置。
type AppConfig struct {
	ListenAddr        string
	Port              string
	GinMode           string
	LogLevel          string
	DatabasePath      string
	DatabaseURL       string
	RateLimitBackend  string
	RedisAddr         string
	RedisPassword     string
	RedisPrefix       string
	RateLimitMaxPosts int
	RateLimitWindow   time.Duration
	DuplicateWindow   time.Duration
	TrustedProxyCIDRs []string
	TrustAllProxies   bool
	RequesterHashKey  string
	ShutdownTimeout   time.Duration
}

// fileConfig mirrors AppConfig for the optional YAML file. Durations stay strings
// so that "1h" style values parse with time.ParseDuration.
type fileConfig struct {
	ListenAddr        string   `yaml:"listenAddr"`
	Port              string   `yaml:"port"`
	GinMode           string   `yaml:"ginMode"`
	LogLevel          string   `yaml:"logLevel"`
	DatabasePath      string   `yaml:"databasePath"`
	DatabaseURL       string   `yaml:"databaseURL"`
	RateLimitBackend  string   `yaml:"rateLimitBackend"`
	RedisAddr         string   `yaml:"redisAddr"`
	RedisPassword     string   `yaml:"redisPassword"`
	RedisPrefix       string   `yaml:"redisPrefix"`
	RateLimitMaxPosts int      `yaml:"rateLimitMaxPosts"`
	RateLimitWindow   string   `yaml:"rateLimitWindow"`
	DuplicateWindow   string   `yaml:"duplicateWindow"`
	TrustedProxyCIDRs []string `yaml:"trustedProxyCidrs"`
	TrustAllProxies   bool     `yaml:"trustAllProxies"`
	RequesterHashKey  string   `yaml:"requesterHashKey"`
	ShutdownTimeout   string   `yaml:"shutdownTimeout"`
}

// Defaults 返回未做任何覆盖时的配置。
func Defaults() AppConfig {
	return AppConfig{
		Port:              "8080",
		GinMode:           "release",
		LogLevel:          "info",
		DatabasePath:      "agentboard.db",
		RateLimitBackend:  RateLimitBackendStore,
		RedisPrefix:       "agentboard:ratelimit",
		RateLimitMaxPosts: 10,
		RateLimitWindow:   time.Hour,
		DuplicateWindow:   time.Hour,
		ShutdownTimeout:   10 * time.Second,
	}
}

// Load 先读取 CONFIG_FILE 指向的 YAML（可选），再用环境变量覆盖，最后校验。
func Load() (AppConfig, error) {
	cfg := Defaults()

	if path := strings.TrimSpace(os.Getenv("CONFIG_FILE")); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return cfg, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}

	if cfg.ListenAddr == "" {
		cfg.ListenAddr = fmt.Sprintf(":%s", cfg.Port)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyFile(cfg *AppConfig, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}

	setString(&cfg.ListenAddr, fc.ListenAddr)
	setString(&cfg.Port, fc.Port)
	setString(&cfg.GinMode, fc.GinMode)
	setString(&cfg.LogLevel, fc.LogLevel)
	setString(&cfg.DatabasePath, fc.DatabasePath)
	setString(&cfg.DatabaseURL, fc.DatabaseURL)
	setString(&cfg.RateLimitBackend, fc.RateLimitBackend)
	setString(&cfg.RedisAddr, fc.RedisAddr)
	setString(&cfg.RedisPassword, fc.RedisPassword)
	setString(&cfg.RedisPrefix, fc.RedisPrefix)
	setString(&cfg.RequesterHashKey, fc.RequesterHashKey)
	if fc.RateLimitMaxPosts != 0 {
		cfg.RateLimitMaxPosts = fc.RateLimitMaxPosts
	}
	if len(fc.TrustedProxyCIDRs) > 0 {
		cfg.TrustedProxyCIDRs = fc.TrustedProxyCIDRs
	}
	if fc.TrustAllProxies {
		cfg.TrustAllProxies = true
	}
	if err := setDuration(&cfg.RateLimitWindow, fc.RateLimitWindow, "rateLimitWindow"); err != nil {
		return err
	}
	if err := setDuration(&cfg.DuplicateWindow, fc.DuplicateWindow, "duplicateWindow"); err != nil {
		return err
	}
	return setDuration(&cfg.ShutdownTimeout, fc.ShutdownTimeout, "shutdownTimeout")
}

func applyEnv(cfg *AppConfig) error {
	setString(&cfg.Port, os.Getenv("PORT"))
	setString(&cfg.ListenAddr, os.Getenv("LISTEN_ADDR"))
	setString(&cfg.GinMode, os.Getenv("GIN_MODE"))
	setString(&cfg.LogLevel, os.Getenv("LOG_LEVEL"))
	setString(&cfg.DatabasePath, os.Getenv("DATABASE_PATH"))
	setString(&cfg.DatabaseURL, os.Getenv("DATABASE_URL"))
	setString(&cfg.RateLimitBackend, os.Getenv("RATE_LIMIT_BACKEND"))
	setString(&cfg.RedisAddr, os.Getenv("REDIS_ADDR"))
	setString(&cfg.RedisPassword, os.Getenv("REDIS_PASSWORD"))
	setString(&cfg.RedisPrefix, os.Getenv("REDIS_PREFIX"))
	setString(&cfg.RequesterHashKey, os.Getenv("REQUESTER_HASH_KEY"))

	if v := strings.TrimSpace(os.Getenv("RATE_LIMIT_MAX_POSTS")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("config: invalid RATE_LIMIT_MAX_POSTS: %w", err)
		}
		cfg.RateLimitMaxPosts = n
	}
	if v := strings.TrimSpace(os.Getenv("TRUSTED_PROXY_CIDRS")); v != "" {
		cfg.TrustedProxyCIDRs = splitCSV(v)
	}
	if v := strings.TrimSpace(os.Getenv("TRUST_ALL_PROXIES")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("config: invalid TRUST_ALL_PROXIES: %w", err)
		}
		cfg.TrustAllProxies = b
	}
	if err := setDuration(&cfg.RateLimitWindow, os.Getenv("RATE_LIMIT_WINDOW"), "RATE_LIMIT_WINDOW"); err != nil {
		return err
	}
	if err := setDuration(&cfg.DuplicateWindow, os.Getenv("DUPLICATE_WINDOW"), "DUPLICATE_WINDOW"); err != nil {
		return err
	}
	return setDuration(&cfg.ShutdownTimeout, os.Getenv("SHUTDOWN_TIMEOUT"), "SHUTDOWN_TIMEOUT")
}

// Validate 检查互相依赖的配置项。
func (c AppConfig) Validate() error {
	switch c.RateLimitBackend {
	case RateLimitBackendStore:
	case RateLimitBackendRedis:
		if strings.TrimSpace(c.RedisAddr) == "" {
			return errors.New("config: REDIS_ADDR is required when RATE_LIMIT_BACKEND=redis")
		}
	default:
		return fmt.Errorf("config: unknown rate limit backend %q", c.RateLimitBackend)
	}
	if c.RateLimitMaxPosts <= 0 {
		return errors.New("config: rate limit max posts must be > 0")
	}
	if c.RateLimitWindow <= 0 || c.DuplicateWindow <= 0 {
		return errors.New("config: rate limit and duplicate windows must be > 0")
	}
	for _, entry := range c.TrustedProxyCIDRs {
		if strings.Contains(entry, "/") {
			if _, _, err := net.ParseCIDR(entry); err != nil {
				return fmt.Errorf("config: invalid trusted proxy %q: %w", entry, err)
			}
			continue
		}
		if net.ParseIP(entry) == nil {
			return fmt.Errorf("config: invalid trusted proxy %q", entry)
		}
	}
	return nil
}

func setString(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, value, name string) error {
	v := strings.TrimSpace(value)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("config: invalid %s: %w", name, err)
	}
	*dst = d
	return nil
}

func splitCSV(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
