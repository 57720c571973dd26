package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeNetwork()
	c.normalizeHarvest()
	c.normalizePipeline()
	c.normalizeScan()
	c.normalizeJournals()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if c.Paths.HarvestDir, err = expandPath(c.Paths.HarvestDir); err != nil {
		return fmt.Errorf("paths.harvest_dir: %w", err)
	}
	if c.Paths.ProcessingDir, err = expandPath(c.Paths.ProcessingDir); err != nil {
		return fmt.Errorf("paths.processing_dir: %w", err)
	}
	if c.Paths.StagingDir, err = expandPath(c.Paths.StagingDir); err != nil {
		return fmt.Errorf("paths.staging_dir: %w", err)
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeNetwork() {
	c.Network.Endpoint = strings.TrimRight(strings.TrimSpace(c.Network.Endpoint), "/")
	c.Network.ProviderUUID = strings.TrimSpace(c.Network.ProviderUUID)
	if c.Network.RequestTimeout <= 0 {
		c.Network.RequestTimeout = defaultNetworkTimeout
	}
	if c.Network.ContainerSize <= 0 {
		c.Network.ContainerSize = defaultContainerSize
	}
}

func (c *Config) normalizeHarvest() {
	if c.Harvest.RequestTimeout <= 0 {
		c.Harvest.RequestTimeout = defaultHarvestTimeout
	}
	if c.Harvest.MaxAttempts <= 0 {
		c.Harvest.MaxAttempts = defaultHarvestMaxAttempts
	}
}

func (c *Config) normalizePipeline() {
	if c.Pipeline.BatchSize <= 0 {
		c.Pipeline.BatchSize = defaultBatchSize
	}
	if c.Pipeline.MaxAttempts <= 0 {
		c.Pipeline.MaxAttempts = defaultPipelineMaxAttempts
	}
}

func (c *Config) normalizeScan() {
	cleaned := make([]string, 0, len(c.Scan.DisallowedExtensions))
	for _, ext := range c.Scan.DisallowedExtensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		cleaned = append(cleaned, ext)
	}
	c.Scan.DisallowedExtensions = cleaned
}

func (c *Config) normalizeJournals() {
	c.Journals.MinOJSVersion = strings.TrimSpace(c.Journals.MinOJSVersion)
	if c.Journals.MinOJSVersion == "" {
		c.Journals.MinOJSVersion = defaultMinOJSVersion
	}
	if c.Journals.SilenceDays <= 0 {
		c.Journals.SilenceDays = defaultSilenceDays
	}
	if c.Journals.RequestTimeout <= 0 {
		c.Journals.RequestTimeout = defaultJournalTimeout
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = defaultLogFormat
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
}

// ExpandPath resolves ~ and relative segments to an absolute path.
func ExpandPath(path string) (string, error) {
	return expandPath(path)
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", nil
	}
	if trimmed == "~" || strings.HasPrefix(trimmed, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if trimmed == "~" {
			trimmed = home
		} else {
			trimmed = filepath.Join(home, trimmed[2:])
		}
	}
	abs, err := filepath.Abs(trimmed)
	if err != nil {
		return "", fmt.Errorf("absolute path: %w", err)
	}
	return abs, nil
}
