package config

const (
	defaultStagingDir      = "~/.local/share/medialog/staging"
	defaultLogDir          = "~/.local/share/medialog/logs"
	defaultResultsDB       = "~/.local/share/medialog/results.db"
	defaultStaleAfterHours = 24
	defaultConcurrency     = 3
	defaultFidoBinary      = "fido"
	defaultFidoTimeout     = 60
	defaultLogFormat       = "console"
	defaultLogLevel        = "info"
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			StagingDir: defaultStagingDir,
			LogDir:     defaultLogDir,
			ResultsDB:  defaultResultsDB,
		},
		Staging: Staging{
			StaleAfterHours: defaultStaleAfterHours,
		},
		Engines: Engines{
			Concurrency: defaultConcurrency,
			Signature:   SignatureEngine{Enabled: true},
			Sniff:       SniffEngine{Enabled: true},
			Fido: FidoEngine{
				Enabled:        false,
				Binary:         defaultFidoBinary,
				TimeoutSeconds: defaultFidoTimeout,
			},
		},
		Logging: Logging{
			Format: defaultLogFormat,
			Level:  defaultLogLevel,
		},
	}
}
