package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"

	"github.com/bunnystorage/storage_sdk_go/internal/logger"
)

// Config represents the configuration shared by the CLI and the sandbox.
type Config struct {
	Storage StorageConfig `yaml:"storage"`
	Sandbox SandboxConfig `yaml:"sandbox"`
	Vault   VaultConfig   `yaml:"vault"`
	Logger  LoggerConfig  `yaml:"logger"`
}

// StorageConfig identifies the storage zone to talk to
type StorageConfig struct {
	AccessKey   string `yaml:"access_key" envconfig:"BUNNY_ACCESS_KEY"`
	StorageZone string `yaml:"storage_zone" envconfig:"BUNNY_STORAGE_ZONE"`
	Region      string `yaml:"region" envconfig:"BUNNY_REGION"`
	BaseURL     string `yaml:"base_url" envconfig:"BUNNY_BASE_URL"`
	// Timeout bounds each request; zero means no limit.
	Timeout time.Duration `yaml:"timeout" envconfig:"BUNNY_TIMEOUT"`

	// Vault path holding the access key under "access_key" (optional)
	AccessKeyVaultPath string `yaml:"access_key_vault_path" envconfig:"BUNNY_ACCESS_KEY_VAULT_PATH"`
}

// SandboxConfig configures the local sandbox server
type SandboxConfig struct {
	Addr    string        `yaml:"addr" envconfig:"SANDBOX_ADDR"`
	Zone    string        `yaml:"zone" envconfig:"SANDBOX_ZONE"`
	Seed    string        `yaml:"seed" envconfig:"SANDBOX_SEED"`
	Latency time.Duration `yaml:"latency" envconfig:"SANDBOX_LATENCY"`
	// Fail is "rate=<float>,code=<status>"
	Fail string `yaml:"fail" envconfig:"SANDBOX_FAIL"`
}

// VaultConfig represents HashiCorp Vault configuration
type VaultConfig struct {
	Enabled   bool   `yaml:"enabled" envconfig:"VAULT_ENABLED"`
	Address   string `yaml:"address" envconfig:"VAULT_ADDR"`
	Token     string `yaml:"token" envconfig:"VAULT_TOKEN"`
	TokenPath string `yaml:"token_path" envconfig:"VAULT_TOKEN_PATH"`
	Namespace string `yaml:"namespace" envconfig:"VAULT_NAMESPACE"`
	Mount     string `yaml:"mount" envconfig:"VAULT_MOUNT"`
}

// LoggerConfig represents logger configuration
type LoggerConfig struct {
	Level      string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format     string `yaml:"format" envconfig:"LOG_FORMAT"` // json or console
	OutputPath string `yaml:"output_path" envconfig:"LOG_OUTPUT_PATH"`
}

// Logger returns the settings in the form internal/logger expects.
func (c LoggerConfig) Logger() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, OutputPath: c.OutputPath}
}

// Default returns the configuration used when neither file nor environment
// override a value.
func Default() *Config {
	return &Config{
		Sandbox: SandboxConfig{
			Addr: ":8787",
			Zone: "sandbox",
		},
		Vault: VaultConfig{
			Address: "http://localhost:8200",
			Mount:   "secret",
		},
		Logger: LoggerConfig{
			Level:      "info",
			Format:     "console",
			OutputPath: "stderr",
		},
	}
}

// Load loads configuration from file and environment variables.
// Environment variables take precedence over file configuration, which takes
// precedence over Default.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath != "" {
		if err := loadFromFile(configPath, cfg); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", configPath, err)
		}
	}

	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("config: process environment variables: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config: invalid configuration: %w", err)
	}
	return cfg, nil
}

// loadFromFile loads configuration from YAML file
func loadFromFile(path string, cfg *Config) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	decoder := yaml.NewDecoder(f)
	decoder.KnownFields(true)

	if err := decoder.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Storage.Timeout < 0 {
		return fmt.Errorf("storage timeout must not be negative: %s", c.Storage.Timeout)
	}
	if c.Sandbox.Latency < 0 {
		return fmt.Errorf("sandbox latency must not be negative: %s", c.Sandbox.Latency)
	}
	if strings.TrimSpace(c.Sandbox.Zone) == "" {
		return errors.New("sandbox zone is required")
	}
	if c.Vault.Enabled && c.Vault.Address == "" {
		return errors.New("vault address is required when vault is enabled")
	}
	if c.Storage.AccessKeyVaultPath != "" && !c.Vault.Enabled {
		return errors.New("storage access_key_vault_path requires vault to be enabled")
	}
	return nil
}

// GetVaultToken returns the Vault token from config or file
func (c *VaultConfig) GetVaultToken() (string, error) {
	if c.Token != "" {
		return c.Token, nil
	}

	if c.TokenPath != "" {
		token, err := os.ReadFile(c.TokenPath)
		if err != nil {
			return "", fmt.Errorf("failed to read vault token from file: %w", err)
		}
		return strings.TrimSpace(string(token)), nil
	}

	return "", errors.New("vault token not configured")
}
