package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"bindery/internal/fileutil"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains the directory roots used by the pipeline.
type Paths struct {
	HarvestDir    string `toml:"harvest_dir"`
	ProcessingDir string `toml:"processing_dir"`
	StagingDir    string `toml:"staging_dir"`
	LogDir        string `toml:"log_dir"`
}

// Network contains configuration for the preservation network interface.
type Network struct {
	Endpoint       string `toml:"endpoint"`
	ProviderUUID   string `toml:"provider_uuid"`
	RequestTimeout int    `toml:"request_timeout"`
	ContainerSize  int    `toml:"container_size"`
}

// Harvest contains configuration for fetching deposit content.
type Harvest struct {
	RequestTimeout int `toml:"request_timeout"`
	MaxAttempts    int `toml:"max_attempts"`
}

// Pipeline contains configuration for sweep orchestration.
type Pipeline struct {
	BatchSize   int `toml:"batch_size"`
	MaxAttempts int `toml:"max_attempts"`
}

// Scan contains content-policy configuration.
type Scan struct {
	DisallowedExtensions []string `toml:"disallowed_extensions"`
}

// Journals contains configuration for journal liveness and health checks.
type Journals struct {
	MinOJSVersion  string `toml:"min_ojs_version"`
	SilenceDays    int    `toml:"silence_days"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Notifications contains configuration for ntfy operator alerts.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Errors         bool   `toml:"errors"`
	HealthCheck    bool   `toml:"health_check"`
	RunSummary     bool   `toml:"run_summary"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
}

// Config encapsulates all configuration values for the client.
//
// Configuration sections by subsystem:
//   - Paths: harvest, processing, staging and log directories
//   - Network: preservation network endpoint and container sizing
//   - Harvest: fetch timeouts and the retry attempt cap
//   - Pipeline: batch commit size and generic retry cap
//   - Scan: content-policy rules
//   - Journals: ping version whitelist and health-check cutoff
//   - Notifications: ntfy operator alert settings
//   - Logging: log format and level
type Config struct {
	Paths         Paths         `toml:"paths"`
	Network       Network       `toml:"network"`
	Harvest       Harvest       `toml:"harvest"`
	Pipeline      Pipeline      `toml:"pipeline"`
	Scan          Scan          `toml:"scan"`
	Journals      Journals      `toml:"journals"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default
// configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/bindery/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned
// config has all path fields expanded and normalized. When no file exists
// at the resolved path, defaults are used and exists is false.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	defaults := Default()
	cfg = &defaults

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, openErr := os.Open(resolvedPath)
		if openErr != nil {
			return nil, "", false, fmt.Errorf("open config: %w", openErr)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if decodeErr := decoder.Decode(cfg); decodeErr != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", decodeErr)
		}
	}

	if err = cfg.normalize(); err != nil {
		return nil, "", false, err
	}
	if err = cfg.Validate(); err != nil {
		return nil, "", false, err
	}
	return cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		if _, err := os.Stat(expanded); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, statErr := os.Stat(defaultPath); statErr == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	return defaultPath, false, nil
}

// EnsureDirectories creates every configured directory root.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.HarvestDir, c.Paths.ProcessingDir, c.Paths.StagingDir, c.Paths.LogDir} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}

// WriteSample writes the embedded sample configuration to path, creating
// parent directories. It refuses to overwrite an existing file.
func WriteSample(path string) error {
	expanded, err := expandPath(path)
	if err != nil {
		return err
	}
	if _, err := os.Stat(expanded); err == nil {
		return fmt.Errorf("config file already exists at %s", expanded)
	} else if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("stat config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(expanded), 0o755); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}
	if err := fileutil.WriteFileAtomic(expanded, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
