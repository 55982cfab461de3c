package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/isdelr/ender-auth/internal/auth"
	"github.com/samber/oops"
	"golang.org/x/crypto/bcrypt"
)

// Config holds the application configuration.
type Config struct {
	ServerPort  int
	Environment string // "production" enables secure cookies and JSON logs
	LogLevel    string
	CORSOrigins []string

	Database DatabaseConfig
	Token    TokenConfig
	Password PasswordConfig
}

// DatabaseConfig selects and locates the credential storage backend.
type DatabaseConfig struct {
	Driver string // "sqlite" or "postgres"
	Path   string // SQLite file path
	URL    string // Postgres connection string
}

// TokenConfig configures session token signing.
type TokenConfig struct {
	Secret    string
	Algorithm string
	TTL       time.Duration
}

// PasswordConfig configures password hashing cost.
type PasswordConfig struct {
	Hasher        string // "bcrypt" or "argon2id"
	BcryptCost    int
	Argon2Time    uint32
	Argon2Memory  uint32 // KiB
	Argon2Threads uint8
}

// IsProduction reports whether the app runs in production mode.
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}

// Load loads configuration from environment variables or sets defaults.
func Load() (*Config, error) {
	port, err := getEnvInt("PORT", 8080)
	if err != nil {
		return nil, err
	}

	ttl, err := time.ParseDuration(getEnv("TOKEN_TTL", "24h"))
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "TOKEN_TTL").Wrap(err)
	}

	bcryptCost, err := getEnvInt("BCRYPT_COST", bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	argonTime, err := getEnvInt("ARGON2_TIME", 1)
	if err != nil {
		return nil, err
	}
	argonMemory, err := getEnvInt("ARGON2_MEMORY_KB", 64*1024)
	if err != nil {
		return nil, err
	}
	argonThreads, err := getEnvInt("ARGON2_THREADS", 4)
	if err != nil {
		return nil, err
	}
	if argonTime < 0 || argonMemory < 0 || argonThreads < 0 || argonThreads > 255 {
		return nil, oops.Code("CONFIG_INVALID").With("key", "ARGON2_*").Errorf("argon2 parameters out of range")
	}

	cfg := &Config{
		ServerPort:  port,
		Environment: getEnv("APP_ENV", "development"),
		LogLevel:    getEnv("LOG_LEVEL", "info"),
		CORSOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		Database: DatabaseConfig{
			Driver: strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
			Path:   getEnv("DATABASE_PATH", "./ender.db"),
			URL:    getEnv("DATABASE_URL", ""),
		},
		Token: TokenConfig{
			Secret:    getEnv("JWT_SECRET", ""),
			Algorithm: strings.ToUpper(getEnv("JWT_ALGORITHM", "HS512")),
			TTL:       ttl,
		},
		Password: PasswordConfig{
			Hasher:        strings.ToLower(getEnv("PASSWORD_HASHER", "bcrypt")),
			BcryptCost:    bcryptCost,
			Argon2Time:    uint32(argonTime),
			Argon2Memory:  uint32(argonMemory),
			Argon2Threads: uint8(argonThreads),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the values that cannot be defaulted sensibly. Key length
// and algorithm are checked again when the token issuer is built.
func (c *Config) Validate() error {
	if c.Token.Secret == "" {
		return oops.Code("TOKEN_SIGNING_KEY_MISSING").With("key", "JWT_SECRET").Wrap(auth.ErrSigningKeyMissing)
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return oops.Code("CONFIG_INVALID").With("key", "PORT").Errorf("port %d out of range", c.ServerPort)
	}
	if c.Token.TTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "TOKEN_TTL").Errorf("token ttl must be positive")
	}

	switch c.Database.Driver {
	case "sqlite":
		if c.Database.Path == "" {
			return oops.Code("CONFIG_INVALID").With("key", "DATABASE_PATH").Errorf("sqlite requires a database path")
		}
	case "postgres":
		if c.Database.URL == "" {
			return oops.Code("CONFIG_INVALID").With("key", "DATABASE_URL").Errorf("postgres requires a database url")
		}
	default:
		return oops.Code("CONFIG_INVALID").With("key", "DATABASE_DRIVER").Errorf("unsupported database driver %q", c.Database.Driver)
	}

	switch c.Password.Hasher {
	case "bcrypt":
		if c.Password.BcryptCost < bcrypt.MinCost || c.Password.BcryptCost > bcrypt.MaxCost {
			return oops.Code("CONFIG_INVALID").With("key", "BCRYPT_COST").Errorf("bcrypt cost %d out of range", c.Password.BcryptCost)
		}
	case "argon2id":
		if c.Password.Argon2Time == 0 || c.Password.Argon2Memory == 0 || c.Password.Argon2Threads == 0 {
			return oops.Code("CONFIG_INVALID").With("key", "ARGON2_*").Errorf("argon2 parameters must be positive")
		}
	default:
		return oops.Code("CONFIG_INVALID").With("key", "PASSWORD_HASHER").Errorf("unsupported password hasher %q", c.Password.Hasher)
	}

	return nil
}

// Helper to get an environment variable with a default value.
// Empty values count as unset.
func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	raw, exists := os.LookupEnv(key)
	if !exists || raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, oops.Code("CONFIG_INVALID").With("key", key).Wrap(err)
	}
	return v, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
