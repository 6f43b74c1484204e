package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/tailscale/hujson"
)

// Config holds all configuration options.
type Config struct {
	Image      string `json:"image"`
	CacheSlots int    `json:"cache_slots"` //nolint:tagliatelle // snake_case for config file
}

// ConfigFileName is the default config file name, JSON with comments.
const ConfigFileName = ".sectorfs.json"

// maxCacheSlots bounds the cache capacity a config may request.
const maxCacheSlots = 4096

// Config errors.
var (
	errImageEmpty      = errors.New("image path must not be empty")
	errCacheSlotsRange = errors.New("cache_slots must be between 1 and 4096")
)

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Image:      "disk.img",
		CacheSlots: 64,
	}
}

// LoadConfig loads configuration with the following precedence
// (highest wins):
// 1. Defaults
// 2. Config file (explicit configPath, else .sectorfs.json in workDir)
// 3. CLI overrides (applied by the caller via Changed flags).
func LoadConfig(workDir, configPath string) (Config, error) {
	cfg := DefaultConfig()

	path := configPath
	explicit := path != ""

	if !explicit {
		path = filepath.Join(workDir, ConfigFileName)
	}

	fileCfg, loaded, err := loadConfigFile(path, explicit)
	if err != nil {
		return Config{}, err
	}

	if loaded {
		cfg = mergeConfig(cfg, fileCfg)
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// loadConfigFile reads and parses one config file. A missing file is an
// error only when the path was given explicitly.
func loadConfigFile(path string, explicit bool) (Config, bool, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path comes from the operator
	if err != nil {
		if os.IsNotExist(err) && !explicit {
			return Config{}, false, nil
		}

		return Config{}, false, fmt.Errorf("reading config %s: %w", path, err)
	}

	standardized, err := hujson.Standardize(data)
	if err != nil {
		return Config{}, false, fmt.Errorf("parsing config %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(standardized, &cfg); err != nil {
		return Config{}, false, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, true, nil
}

// mergeConfig overlays set fields of over onto base.
func mergeConfig(base, over Config) Config {
	if over.Image != "" {
		base.Image = over.Image
	}

	if over.CacheSlots != 0 {
		base.CacheSlots = over.CacheSlots
	}

	return base
}

func validateConfig(cfg Config) error {
	if cfg.Image == "" {
		return errImageEmpty
	}

	if cfg.CacheSlots < 1 || cfg.CacheSlots > maxCacheSlots {
		return errCacheSlotsRange
	}

	return nil
}
