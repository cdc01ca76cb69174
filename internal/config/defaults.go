package config

import "time"

// Defaults returns the base layer every merge starts from.
func Defaults() Config {
	return Config{
		Compile: CompileConfig{
			Engine:    EngineLatexmk,
			Passes:    2,
			Timeout:   5 * time.Minute,
			OutputDir: ".",
			AuxDir:    ".texbuilder",
			Suffixes: map[string]string{
				"student":    "-Eleve",
				"teacher":    "-Prof",
				"corrected":  "-Corrige",
				"accessible": "-Accessible",
			},
		},
		Batch: BatchConfig{
			Workers:  2,
			Excludes: []string{"_archives/**", "**/.texbuilder/**"},
		},
		Upload: UploadConfig{
			Retry: RetryConfig{
				Backoff:    RetryBackoffExponential,
				Initial:    500 * time.Millisecond,
				Max:        10 * time.Second,
				MaxRetries: 3,
			},
		},
		Poly: PolyConfig{
			Suffix:     "-poly",
			RectoVerso: true,
		},
		Events: EventsConfig{
			Subject: "texbuilder.results",
		},
		Watch: WatchConfig{
			Debounce: 2 * time.Second,
		},
		Daemon: DaemonConfig{
			Interval: time.Hour,
		},
		Logging: LoggingConfig{
			Level: LogLevelInfo,
		},
	}
}
