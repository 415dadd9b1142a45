// Package config reads vault settings from the environment, after loading a
// .env file when one is present.
package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
)

const (
	BackendFile  = "file"
	BackendBolt  = "bolt"
	BackendMongo = "mongo"
)

type MongoConfig struct {
	URI        string
	Database   string
	Collection string
	VaultName  string
}

type Config struct {
	Backend string
	Path    string
	Mongo   MongoConfig

	IDLength       int
	MasterHashLogN int
	AuthRatePerSec float64
	AuthBurst      int

	LogLevel  string
	LogFile   string
	AuditFile string
}

// Load reads .env files (missing ones are ignored) and then the process
// environment. Variables already set in the environment win.
func Load(envFiles ...string) (*Config, error) {
	_ = godotenv.Load(envFiles...)

	c := &Config{
		Backend: strings.ToLower(getEnv("VAULT_BACKEND", "")),
		Path:    getEnv("VAULT_PATH", ""),
		Mongo: MongoConfig{
			URI:        getEnv("MONGO_URI", ""),
			Database:   getEnv("MONGO_DB", ""),
			Collection: getEnv("MONGO_COLLECTION", ""),
			VaultName:  getEnv("VAULT_NAME", ""),
		},
		LogLevel:  getEnv("LOG_LEVEL", ""),
		LogFile:   getEnv("LOG_FILE", ""),
		AuditFile: getEnv("AUDIT_FILE", ""),
	}

	var err error
	if c.IDLength, err = getEnvInt("ID_LENGTH", 0); err != nil {
		return nil, err
	}
	if c.MasterHashLogN, err = getEnvInt("MASTER_HASH_LOG_N", 0); err != nil {
		return nil, err
	}
	if c.AuthBurst, err = getEnvInt("AUTH_BURST", 0); err != nil {
		return nil, err
	}
	if v := getEnv("AUTH_RATE_PER_SEC", ""); v != "" {
		if c.AuthRatePerSec, err = strconv.ParseFloat(v, 64); err != nil {
			return nil, fmt.Errorf("AUTH_RATE_PER_SEC: %w", err)
		}
	}

	c.setDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) setDefaults() {
	if c.Backend == "" {
		c.Backend = BackendFile
	}
	if c.Path == "" {
		switch c.Backend {
		case BackendBolt:
			c.Path = "database/accounts.db"
		default:
			c.Path = "database/accounts.json"
		}
	}
	if c.Mongo.Database == "" {
		c.Mongo.Database = "passem"
	}
	if c.Mongo.Collection == "" {
		c.Mongo.Collection = "vaults"
	}
	if c.Mongo.VaultName == "" {
		c.Mongo.VaultName = "default"
	}
	if c.IDLength <= 0 {
		c.IDLength = 32
	}
	if c.MasterHashLogN <= 0 {
		c.MasterHashLogN = 14
	}
	if c.AuthRatePerSec > 0 && c.AuthBurst <= 0 {
		c.AuthBurst = 1
	}
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.LogFile == "" {
		c.LogFile = "logs/application.log"
	}
	if c.AuditFile == "" {
		c.AuditFile = "logs/audit.log"
	}
}

func (c *Config) Validate() error {
	switch c.Backend {
	case BackendFile, BackendBolt:
	case BackendMongo:
		if c.Mongo.URI == "" {
			return fmt.Errorf("MONGO_URI is required for the %s backend", BackendMongo)
		}
	default:
		return fmt.Errorf("unknown VAULT_BACKEND %q", c.Backend)
	}
	if c.MasterHashLogN < 10 || c.MasterHashLogN > 20 {
		return fmt.Errorf("MASTER_HASH_LOG_N %d out of range [10, 20]", c.MasterHashLogN)
	}
	if c.AuthRatePerSec < 0 {
		return fmt.Errorf("AUTH_RATE_PER_SEC must not be negative")
	}
	return nil
}

// NewLogger opens LogFile for append and returns a logger writing to it at
// LogLevel. "-" logs to stderr. The returned closer releases the file.
func (c *Config) NewLogger() (zerolog.Logger, io.Closer, error) {
	level, err := zerolog.ParseLevel(strings.ToLower(c.LogLevel))
	if err != nil {
		return zerolog.Nop(), nil, fmt.Errorf("LOG_LEVEL: %w", err)
	}
	if c.LogFile == "-" {
		return zerolog.New(os.Stderr).Level(level).With().Timestamp().Logger(), io.NopCloser(nil), nil
	}
	if err := os.MkdirAll(filepath.Dir(c.LogFile), 0o700); err != nil {
		return zerolog.Nop(), nil, err
	}
	f, err := os.OpenFile(c.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return zerolog.Nop(), nil, err
	}
	return zerolog.New(f).Level(level).With().Timestamp().Logger(), f, nil
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) (int, error) {
	v, ok := os.LookupEnv(key)
	if !ok || v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}
