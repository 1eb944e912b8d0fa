package config

import (
	"io"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"
)

// Load reads configuration from the standard config path.
// Search order:
//  1. $XDG_CONFIG_HOME/ikup/config.toml
//  2. ~/.config/ikup/config.toml
//
// If no file exists, returns DefaultConfig() with env overrides applied.
func Load() (*Config, error) {
	paths := configSearchPaths()
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return LoadFromFile(p)
		}
	}
	cfg := DefaultConfig()
	applyEnvOverrides(cfg)
	return cfg, nil
}

// LoadFromFile reads configuration from a specific file path.
func LoadFromFile(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg := DefaultConfig()
			applyEnvOverrides(cfg)
			return cfg, nil
		}
		return nil, err
	}
	defer f.Close()
	return LoadFromReader(f)
}

// LoadFromReader reads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.NewDecoder(r).Decode(cfg); err != nil {
		return nil, err
	}
	applyEnvOverrides(cfg)
	return cfg, nil
}

// DefaultConfig returns the default configuration with sensible defaults.
func DefaultConfig() *Config {
	home, _ := os.UserHomeDir()
	cacheDir := filepath.Join(xdgCacheHome(home), "ikup")

	return &Config{
		IDDatabase: IDDatabaseConfig{
			Dir:                filepath.Join(xdgStateHome(home), "ikup", "ids"),
			IDSpace:            "8bit_diacritic",
			MaxNumIDs:          1024,
			CleanupProbability: 0.01,
			MaxDBAge:           Duration{30 * 24 * time.Hour},
			BusyTimeout:        Duration{5 * time.Second},
		},
		Cache: CacheConfig{
			Dir:        filepath.Join(cacheDir, "objects"),
			MaxBytes:   512 * 1024 * 1024,
			MaxEntries: 4096,
		},
		Upload: UploadConfig{
			Method:                 "direct",
			ChunkSize:              4096,
			StallTimeout:           Duration{10 * time.Second},
			AllowConcurrentUploads: false,
			FileMaxSize:            0,
			StreamMaxSize:          0,
		},
		Display: DisplayConfig{
			RestoreCursor: "auto",
			UseLineFeeds:  true,
			Scale:         1.0,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// applyEnvOverrides checks IKUP_* environment variables and overrides
// matching configuration values, mirroring the PPULSE_* override cascade
// this package's loader was adapted from.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IKUP_ID_DATABASE_DIR"); v != "" {
		cfg.IDDatabase.Dir = v
	}
	if v := os.Getenv("IKUP_CACHE_DIR"); v != "" {
		cfg.Cache.Dir = v
	}
	if v := os.Getenv("IKUP_ID_SPACE"); v != "" {
		cfg.IDDatabase.IDSpace = v
	}
	if v := os.Getenv("IKUP_ID_SUBSPACE"); v != "" {
		cfg.IDDatabase.IDSubspace = v
	}
	if v := os.Getenv("IKUP_MAX_NUM_IDS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IDDatabase.MaxNumIDs = n
		}
	}
	if v := os.Getenv("IKUP_CLEANUP_PROBABILITY"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.IDDatabase.CleanupProbability = f
		}
	}
	if v := os.Getenv("IKUP_MAX_DB_AGE_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.IDDatabase.MaxDBAge = Duration{time.Duration(n) * 24 * time.Hour}
		}
	}
	if v := os.Getenv("IKUP_UPLOAD_METHOD"); v != "" {
		cfg.Upload.Method = v
	}
	if v := os.Getenv("IKUP_CHUNK_SIZE"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Upload.ChunkSize = n
		}
	}
	if v := os.Getenv("IKUP_UPLOAD_STALL_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Upload.StallTimeout = Duration{d}
		}
	}
	if v := os.Getenv("IKUP_ALLOW_CONCURRENT_UPLOADS"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Upload.AllowConcurrentUploads = b
		}
	}
}

// configSearchPaths returns the ordered list of config file paths to try.
func configSearchPaths() []string {
	home, _ := os.UserHomeDir()
	var paths []string

	xdg := xdgConfigHome(home)
	paths = append(paths, filepath.Join(xdg, "ikup", "config.toml"))

	defaultXDG := filepath.Join(home, ".config")
	if xdg != defaultXDG {
		paths = append(paths, filepath.Join(defaultXDG, "ikup", "config.toml"))
	}

	return paths
}

// xdgConfigHome returns XDG_CONFIG_HOME or ~/.config as fallback.
func xdgConfigHome(home string) string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".config")
}

// xdgCacheHome returns XDG_CACHE_HOME or ~/.cache as fallback.
func xdgCacheHome(home string) string {
	if v := os.Getenv("XDG_CACHE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".cache")
}

// xdgStateHome returns XDG_STATE_HOME or ~/.local/state as fallback; the id
// database is persistent state, not disposable cache, so it lives here
// rather than under xdgCacheHome.
func xdgStateHome(home string) string {
	if v := os.Getenv("XDG_STATE_HOME"); v != "" {
		return v
	}
	return filepath.Join(home, ".local", "state")
}
