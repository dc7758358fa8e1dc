// Package config loads client settings from flags with environment fallback.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/and161185/gastroguide/internal/storage"
	"github.com/joho/godotenv"
)

// Storage backends.
const (
	BackendFile     = "file"
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendRedis    = "redis"
)

// Config is the client configuration shared by gg and gg-web.
type Config struct {
	APIURL        string
	GRPCAddr      string
	GRPCInsecure  bool
	Backend       string
	Dir           string
	DSN           string
	RedisAddr     string
	RedisPassword string
	Namespace     string
	Passphrase    string
	LoginPath     string
	HomePath      string
	AuthPrefix    string
	Listen        string
	Timeout       time.Duration
	DemoSeed      bool
	Debug         bool
}

// Load reads an optional .env file, then parses args into a Config whose defaults come
// from GG_* variables. It returns the positional arguments left after the flags.
func Load(name string, args []string) (Config, []string, error) {
	// a missing .env is the normal case
	_ = godotenv.Load()

	var c Config
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	fs.StringVar(&c.APIURL, "api", getEnv("GG_API_URL", "http://localhost:8080"), "remote API base URL")
	fs.StringVar(&c.GRPCAddr, "grpc", getEnv("GG_GRPC_ADDR", ""), "optional gRPC endpoint of the remote API")
	fs.BoolVar(&c.GRPCInsecure, "grpc-insecure", getBool("GG_GRPC_INSECURE", false), "dial the gRPC endpoint without TLS")
	fs.StringVar(&c.Backend, "storage", getEnv("GG_STORAGE", BackendFile), "storage backend: file|memory|postgres|redis")
	fs.StringVar(&c.Dir, "dir", getEnv("GG_DIR", storage.DefaultDir()), "state directory of the file backend")
	fs.StringVar(&c.DSN, "dsn", getEnv("GG_DSN", ""), "PostgreSQL DSN")
	fs.StringVar(&c.RedisAddr, "redis", getEnv("GG_REDIS_ADDR", "localhost:6379"), "redis address")
	fs.StringVar(&c.RedisPassword, "redis-password", getEnv("GG_REDIS_PASSWORD", ""), "redis password")
	fs.StringVar(&c.Namespace, "namespace", getEnv("GG_NAMESPACE", "gastroguide"), "key namespace of the postgres and redis backends")
	fs.StringVar(&c.Passphrase, "passphrase", getEnv("GG_PASSPHRASE", ""), "encrypt stored values with this passphrase")
	fs.StringVar(&c.LoginPath, "login-path", getEnv("GG_LOGIN_PATH", "/login"), "login surface")
	fs.StringVar(&c.HomePath, "home-path", getEnv("GG_HOME_PATH", "/home2"), "default authenticated landing page")
	fs.StringVar(&c.AuthPrefix, "auth-prefix", getEnv("GG_AUTH_PREFIX", "/api/v1/auth"), "authentication endpoint family")
	fs.StringVar(&c.Listen, "listen", getEnv("GG_LISTEN", "127.0.0.1:4200"), "gg-web listen address")
	fs.BoolVar(&c.DemoSeed, "demo", getBool("GG_DEMO_SEED", false), "seed an empty reel feed with demo content")
	fs.BoolVar(&c.Debug, "debug", getBool("GG_DEBUG", false), "development logging")
	timeout, err := getDuration("GG_TIMEOUT", 30*time.Second)
	if err != nil {
		return Config{}, nil, err
	}
	fs.DurationVar(&c.Timeout, "timeout", timeout, "remote call timeout")

	if err := fs.Parse(args); err != nil {
		return Config{}, nil, fmt.Errorf("flags: %w", err)
	}
	if err := c.Validate(); err != nil {
		return Config{}, nil, err
	}
	return c, fs.Args(), nil
}

// Validate checks backend-specific requirements.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendMemory:
	case BackendPostgres:
		if c.DSN == "" {
			return errors.New("config: postgres storage needs -dsn or GG_DSN")
		}
	case BackendRedis:
		if c.RedisAddr == "" {
			return errors.New("config: redis storage needs -redis or GG_REDIS_ADDR")
		}
	default:
		return fmt.Errorf("config: unknown storage backend %q", c.Backend)
	}
	if c.Timeout <= 0 {
		return errors.New("config: timeout must be positive")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
