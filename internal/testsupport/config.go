package testsupport

import (
	"path/filepath"
	"testing"

	"bindery/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Default()
	cfg.Paths.HarvestDir = filepath.Join(base, "harvest")
	cfg.Paths.ProcessingDir = filepath.Join(base, "processing")
	cfg.Paths.StagingDir = filepath.Join(base, "staging")
	cfg.Paths.LogDir = filepath.Join(base, "logs")
	cfg.Network.Endpoint = "http://127.0.0.1:1/api/sword"
	cfg.Network.ProviderUUID = "9A8B7C6D-5E4F-4A3B-2C1D-0E9F8A7B6C5D"

	for _, opt := range opts {
		opt(&cfg)
	}

	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("ensure directories: %v", err)
	}
	return &cfg
}

// WithEndpoint points the network client at the given URL.
func WithEndpoint(url string) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Network.Endpoint = url
	}
}

// WithBatchSize overrides the pipeline batch size.
func WithBatchSize(size int) ConfigOption {
	return func(cfg *config.Config) {
		cfg.Pipeline.BatchSize = size
	}
}
