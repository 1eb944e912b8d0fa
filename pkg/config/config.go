package config

import (
	"fmt"

	"gitlab.com/tinyland/lab/ikup/pkg/idspace"
	"gitlab.com/tinyland/lab/ikup/pkg/transport"
)

// Config is the effective, fully-resolved ikup configuration: file defaults,
// overlaid by a config file, overlaid by IKUP_* environment variables.
type Config struct {
	IDDatabase IDDatabaseConfig `toml:"id_database"`
	Cache      CacheConfig      `toml:"cache"`
	Upload     UploadConfig     `toml:"upload"`
	Display    DisplayConfig    `toml:"display"`
	Log        LogConfig        `toml:"log"`
}

// IDDatabaseConfig controls where and how the persistent id database lives.
type IDDatabaseConfig struct {
	Dir                string   `toml:"dir"`
	IDSpace            string   `toml:"id_space"`
	IDSubspace         string   `toml:"id_subspace"`
	MaxNumIDs          int      `toml:"max_num_ids"`
	CleanupProbability float64  `toml:"cleanup_probability"`
	MaxDBAge           Duration `toml:"max_db_age"`
	BusyTimeout        Duration `toml:"busy_timeout"`
}

// Space parses IDSpace, falling back to Space8BitDiacritic when unset.
func (c IDDatabaseConfig) Space() (idspace.Space, error) {
	if c.IDSpace == "" {
		return idspace.Space8BitDiacritic, nil
	}
	return idspace.ParseSpace(c.IDSpace)
}

// Subspace parses IDSubspace, returning (nil, nil) when unset.
func (c IDDatabaseConfig) Subspace() (*idspace.Subspace, error) {
	if c.IDSubspace == "" {
		return nil, nil
	}
	sub, err := idspace.ParseSubspace(c.IDSubspace)
	if err != nil {
		return nil, err
	}
	return &sub, nil
}

// CacheConfig controls the on-disk transcode cache.
type CacheConfig struct {
	Dir        string `toml:"dir"`
	MaxBytes   int64  `toml:"max_bytes"`
	MaxEntries int    `toml:"max_entries"`
}

// UploadConfig controls transport selection and stall detection.
type UploadConfig struct {
	Method                 string   `toml:"method"`
	ChunkSize              int      `toml:"chunk_size"`
	StallTimeout           Duration `toml:"stall_timeout"`
	AllowConcurrentUploads bool     `toml:"allow_concurrent_uploads"`
	FileMaxSize            int64    `toml:"file_max_size"`
	StreamMaxSize          int64    `toml:"stream_max_size"`
}

// TransportKind parses Method into a transport.Kind, defaulting to direct.
func (c UploadConfig) TransportKind() (transport.Kind, error) {
	switch c.Method {
	case "", "direct":
		return transport.KindDirect, nil
	case "stream":
		return transport.KindStream, nil
	case "file":
		return transport.KindFile, nil
	case "temp":
		return transport.KindTemp, nil
	default:
		return "", fmt.Errorf("config: unknown upload method %q", c.Method)
	}
}

// DisplayConfig controls placeholder rendering defaults.
type DisplayConfig struct {
	RestoreCursor string  `toml:"restore_cursor"` // "true", "false", or "auto"
	UseLineFeeds  bool    `toml:"use_line_feeds"`
	Scale         float64 `toml:"scale"`
	MaxCols       int     `toml:"max_cols"`
	MaxRows       int     `toml:"max_rows"`
}

// LogConfig controls the structured logger.
type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file"`
}
