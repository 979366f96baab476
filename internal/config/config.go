// Package config loads blobdrop runtime configuration from TOML files
// with environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

const (
	DefaultAPIURL     = "http://127.0.0.1:7411"
	DefaultDBFileName = ".blobdrop.db"
	DefaultLogLevel   = "info"
	configFileName    = ".blobdrop.toml"
	configDirEnvKey   = "BLOBDROP_CONFIG_DIR"
	apiURLEnvKey      = "BLOBDROP_API_URL"
	storeRootEnvKey   = "BLOBDROP_STORE_ROOT"

	DefaultShareMaxUploadBytes    int64 = 2 << 30 // 2 GiB
	DefaultShareMultipartMemory   int64 = 8 << 20 // 8 MiB
	DefaultTransferChunkSize      int64 = 512 * 1024
	DefaultTransferLargeChunkSize int64 = 1 << 20
	// Blobs with a transport size above this use the larger chunk,
	// trading progress granularity for fewer round trips.
	DefaultTransferLargeThreshold int64 = 200 << 20
	DefaultTransferConcurrency          = 4
	DefaultTransferRetryBudget          = 3
	DefaultTransferBackoffMS            = 400
)

// TransferConfig tunes the chunked download manager.
type TransferConfig struct {
	ChunkSize      int64 `toml:"chunk_size"`
	LargeChunkSize int64 `toml:"large_chunk_size"`
	LargeThreshold int64 `toml:"large_threshold"`
	Concurrency    int   `toml:"concurrency"`
	RetryBudget    int   `toml:"retry_budget"`
	BackoffMS      int   `toml:"backoff_ms"`
}

// ShareConfig tunes the upload path.
type ShareConfig struct {
	MaxUploadBytes     int64 `toml:"max_upload_bytes"`
	MultipartMaxMemory int64 `toml:"multipart_max_memory"`
}

// Config defines runtime configuration for blobdrop.
type Config struct {
	APIURL    string         `toml:"api_url"`
	DBPath    string         `toml:"db_path"`
	StoreRoot string         `toml:"store_root"`
	LogLevel  string         `toml:"log_level"`
	Transfer  TransferConfig `toml:"transfer"`
	Share     ShareConfig    `toml:"share"`
}

// Default returns default configuration values.
func Default() Config {
	return Config{
		APIURL:   DefaultAPIURL,
		LogLevel: DefaultLogLevel,
		Transfer: TransferConfig{
			ChunkSize:      DefaultTransferChunkSize,
			LargeChunkSize: DefaultTransferLargeChunkSize,
			LargeThreshold: DefaultTransferLargeThreshold,
			Concurrency:    DefaultTransferConcurrency,
			RetryBudget:    DefaultTransferRetryBudget,
			BackoffMS:      DefaultTransferBackoffMS,
		},
		Share: ShareConfig{
			MaxUploadBytes:     DefaultShareMaxUploadBytes,
			MultipartMaxMemory: DefaultShareMultipartMemory,
		},
	}
}

// Load resolves configuration from the first config file found in the
// override dir, the working directory ancestry, then the home
// directory, with env overrides applied last.
func Load() (*Config, error) {
	cfg := Default()

	path, found, err := findConfigFile()
	if err != nil {
		return nil, err
	}
	if found {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	applyDefaults(&cfg)

	return &cfg, nil
}

func findConfigFile() (string, bool, error) {
	if dir := strings.TrimSpace(os.Getenv(configDirEnvKey)); dir != "" {
		path := filepath.Join(dir, configFileName)
		ok, err := fileExists(path)
		return path, ok, err
	}

	wd, err := os.Getwd()
	if err == nil {
		for dir := wd; ; dir = filepath.Dir(dir) {
			path := filepath.Join(dir, configFileName)
			ok, err := fileExists(path)
			if err != nil {
				return "", false, err
			}
			if ok {
				return path, true, nil
			}
			if dir == filepath.Dir(dir) {
				break
			}
		}
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", false, nil
	}
	path := filepath.Join(home, configFileName)
	ok, err := fileExists(path)
	return path, ok, err
}

func fileExists(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	return !info.IsDir(), nil
}

func applyEnvOverrides(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv(apiURLEnvKey)); v != "" {
		cfg.APIURL = v
	}
	if v := strings.TrimSpace(os.Getenv(storeRootEnvKey)); v != "" {
		cfg.StoreRoot = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.APIURL == "" {
		cfg.APIURL = DefaultAPIURL
	}
	if cfg.DBPath == "" {
		if home, err := os.UserHomeDir(); err == nil {
			cfg.DBPath = filepath.Join(home, DefaultDBFileName)
		}
	}
	if cfg.StoreRoot == "" && cfg.DBPath != "" {
		cfg.StoreRoot = filepath.Join(filepath.Dir(cfg.DBPath), ".blobdrop", "blobs")
	}
	if cfg.Transfer.ChunkSize <= 0 {
		cfg.Transfer.ChunkSize = DefaultTransferChunkSize
	}
	if cfg.Transfer.LargeChunkSize <= 0 {
		cfg.Transfer.LargeChunkSize = DefaultTransferLargeChunkSize
	}
	if cfg.Transfer.LargeThreshold <= 0 {
		cfg.Transfer.LargeThreshold = DefaultTransferLargeThreshold
	}
	if cfg.Transfer.Concurrency <= 0 {
		cfg.Transfer.Concurrency = DefaultTransferConcurrency
	}
	if cfg.Transfer.RetryBudget <= 0 {
		cfg.Transfer.RetryBudget = DefaultTransferRetryBudget
	}
	if cfg.Transfer.BackoffMS <= 0 {
		cfg.Transfer.BackoffMS = DefaultTransferBackoffMS
	}
	if cfg.Share.MaxUploadBytes <= 0 {
		cfg.Share.MaxUploadBytes = DefaultShareMaxUploadBytes
	}
	if cfg.Share.MultipartMaxMemory <= 0 {
		cfg.Share.MultipartMaxMemory = DefaultShareMultipartMemory
	}
}
