package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/starkware-libs/papyrus-go/pkg/storage"
	"github.com/starkware-libs/papyrus-go/pkg/types"
)

// Config is the engine's operator-facing configuration,
// loadable from a YAML file with environment-variable overrides.
type Config struct {
	PathPrefix        string `yaml:"path_prefix"`
	ChainID           string `yaml:"chain_id"`
	EnforceFileExists bool   `yaml:"enforce_file_exists"`
	MinSize           uint64 `yaml:"min_size"`
	MaxSize           uint64 `yaml:"max_size"`
	GrowthStep        uint64 `yaml:"growth_step"`
	Scope             string `yaml:"scope"`
	MaxReaders        uint64 `yaml:"max_readers"`

	// ChunkSize is consumed by the RPC layer, not the engine; it is
	// carried here so one file configures both.
	ChunkSize uint64 `yaml:"chunk_size"`

	LogLevel string `yaml:"log_level"`
	LogJSON  bool   `yaml:"log_json"`
}

// Default returns the configuration a fresh full-archive node starts
// from.
func Default() Config {
	return Config{
		PathPrefix: "./data",
		ChainID:    "SN_MAIN",
		Scope:      string(types.ScopeFullArchive),
		LogLevel:   "info",
	}
}

// Load reads path (when non-empty) over the defaults, then applies
// PAPYRUS_* environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("config: reading %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return cfg, fmt.Errorf("config: parsing %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv("PAPYRUS_PATH_PREFIX"); ok {
		c.PathPrefix = v
	}
	if v, ok := os.LookupEnv("PAPYRUS_CHAIN_ID"); ok {
		c.ChainID = v
	}
	if v, ok := os.LookupEnv("PAPYRUS_SCOPE"); ok {
		c.Scope = v
	}
	if v, ok := os.LookupEnv("PAPYRUS_ENFORCE_FILE_EXISTS"); ok {
		c.EnforceFileExists = v == "true" || v == "1"
	}
	if v, ok := os.LookupEnv("PAPYRUS_MAX_READERS"); ok {
		if n, err := strconv.ParseUint(v, 10, 64); err == nil {
			c.MaxReaders = n
		}
	}
}

// Validate rejects configurations Open would refuse anyway, with clearer
// messages.
func (c Config) Validate() error {
	if c.ChainID == "" {
		return fmt.Errorf("config: chain_id must be set")
	}
	switch types.Scope(c.Scope) {
	case types.ScopeFullArchive, types.ScopeStateOnly:
	default:
		return fmt.Errorf("config: unknown scope %q", c.Scope)
	}
	if c.MinSize > c.MaxSize && c.MaxSize != 0 {
		return fmt.Errorf("config: min_size %d exceeds max_size %d", c.MinSize, c.MaxSize)
	}
	return nil
}

// Storage maps the loaded configuration onto the engine's open
// parameters.
func (c Config) Storage() storage.Config {
	return storage.Config{
		PathPrefix:        c.PathPrefix,
		ChainID:           c.ChainID,
		EnforceFileExists: c.EnforceFileExists,
		MinSize:           c.MinSize,
		MaxSize:           c.MaxSize,
		GrowthStep:        c.GrowthStep,
		Scope:             types.Scope(c.Scope),
		MaxReaders:        c.MaxReaders,
	}
}
