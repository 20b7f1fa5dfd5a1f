package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	env "github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// MemoryRoot selects an in-memory filesystem instead of a directory.
const MemoryRoot = ":memory:"

var validate = validator.New()

// Config is the runtime configuration, read from MOUNTFS_* variables.
type Config struct {
	DataDir        string `env:"MOUNTFS_DATA_DIR,default=.mountfs" validate:"required"`
	IntRoot        string `env:"MOUNTFS_INT_ROOT"`
	ExtRoot        string `env:"MOUNTFS_EXT_ROOT"`
	CardDevice     string `env:"MOUNTFS_CARD_DEVICE"`
	MemoryCapacity uint64 `env:"MOUNTFS_MEMORY_CAPACITY,default=1048576" validate:"gt=0"`
	DeviceName     string `env:"MOUNTFS_DEVICE_NAME,default=mountfs" validate:"required,max=32"`
	StatePath      string `env:"MOUNTFS_STATE_DB"`
	Passphrase     string `env:"MOUNTFS_PASSPHRASE"`
	LogLevel       string `env:"MOUNTFS_LOG_LEVEL,default=ERROR" validate:"oneof=DEBUG INFO WARN ERROR"`
}

// LoadConfig reads dir/.env when present, then the environment.
func LoadConfig(dir string) (Config, error) {
	if dir != "" {
		if err := godotenv.Load(filepath.Join(dir, ".env")); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("failed to load .env: %w", err)
		}
	} else {
		_ = godotenv.Load()
	}

	var cfg Config
	if _, err := env.UnmarshalFromEnviron(&cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read environment: %w", err)
	}
	return cfg, nil
}

// ParseConfig builds a config from an explicit variable set.
func ParseConfig(vars map[string]string) (Config, error) {
	var cfg Config
	if err := env.Unmarshal(env.EnvSet(vars), &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to read config: %w", err)
	}
	return cfg, cfg.Validate()
}

// Validate checks field constraints and fills derived paths.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.IntRoot == "" {
		c.IntRoot = filepath.Join(c.DataDir, "int")
	}
	if c.ExtRoot == "" {
		c.ExtRoot = filepath.Join(c.DataDir, "ext")
	}
	if c.StatePath == "" {
		c.StatePath = filepath.Join(c.DataDir, "state.db")
	}
	return nil
}
