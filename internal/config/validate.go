package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validatePaths(); err != nil {
		return err
	}
	if err := c.validateNetwork(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

func (c *Config) validatePaths() error {
	if c.Paths.HarvestDir == "" {
		return errors.New("paths.harvest_dir must be set")
	}
	if c.Paths.ProcessingDir == "" {
		return errors.New("paths.processing_dir must be set")
	}
	if c.Paths.StagingDir == "" {
		return errors.New("paths.staging_dir must be set")
	}
	distinct := map[string]string{}
	for name, dir := range map[string]string{
		"paths.harvest_dir":    c.Paths.HarvestDir,
		"paths.processing_dir": c.Paths.ProcessingDir,
		"paths.staging_dir":    c.Paths.StagingDir,
	} {
		if other, seen := distinct[dir]; seen {
			return fmt.Errorf("%s and %s must not share directory %s", name, other, dir)
		}
		distinct[dir] = name
	}
	return nil
}

func (c *Config) validateNetwork() error {
	if c.Network.Endpoint == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/bindery/config.toml"
		}
		return fmt.Errorf("network.endpoint is required; edit %s (create with 'bindery config init')", defaultPath)
	}
	parsed, err := url.Parse(c.Network.Endpoint)
	if err != nil || parsed.Host == "" || !strings.HasPrefix(parsed.Scheme, "http") {
		return fmt.Errorf("network.endpoint %q is not a valid http(s) URL", c.Network.Endpoint)
	}
	return nil
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format must be console or json, got %q", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("logging.level must be debug, info, warn or error, got %q", c.Logging.Level)
	}
	return nil
}
