package config

const (
	defaultHarvestDir    = "~/.local/share/bindery/harvest"
	defaultProcessingDir = "~/.local/share/bindery/processing"
	defaultStagingDir    = "~/.local/share/bindery/staging"
	defaultLogDir        = "~/.local/share/bindery/logs"

	defaultNetworkTimeout = 120
	defaultContainerSize  = 100

	defaultHarvestTimeout     = 300
	defaultHarvestMaxAttempts = 5

	defaultBatchSize           = 25
	defaultPipelineMaxAttempts = 3

	defaultMinOJSVersion  = "2.4.8"
	defaultSilenceDays    = 30
	defaultJournalTimeout = 30

	defaultNotifyTimeout = 10

	defaultLogFormat = "console"
	defaultLogLevel  = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			HarvestDir:    defaultHarvestDir,
			ProcessingDir: defaultProcessingDir,
			StagingDir:    defaultStagingDir,
			LogDir:        defaultLogDir,
		},
		Network: Network{
			RequestTimeout: defaultNetworkTimeout,
			ContainerSize:  defaultContainerSize,
		},
		Harvest: Harvest{
			RequestTimeout: defaultHarvestTimeout,
			MaxAttempts:    defaultHarvestMaxAttempts,
		},
		Pipeline: Pipeline{
			BatchSize:   defaultBatchSize,
			MaxAttempts: defaultPipelineMaxAttempts,
		},
		Scan: Scan{
			DisallowedExtensions: []string{".exe", ".dll", ".bat", ".com", ".scr"},
		},
		Journals: Journals{
			MinOJSVersion:  defaultMinOJSVersion,
			SilenceDays:    defaultSilenceDays,
			RequestTimeout: defaultJournalTimeout,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyTimeout,
			Errors:         true,
			HealthCheck:    true,
			RunSummary:     true,
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
