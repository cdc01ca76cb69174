package config

import (
	"maps"
	"slices"
	"time"
)

// Config is the merged, read-only configuration built once at startup.
type Config struct {
	Compile CompileConfig `yaml:"compile"`
	Batch   BatchConfig   `yaml:"batch"`
	Upload  UploadConfig  `yaml:"upload"`
	Poly    PolyConfig    `yaml:"poly"`
	Index   IndexConfig   `yaml:"index"`
	Events  EventsConfig  `yaml:"events"`
	Metrics MetricsConfig `yaml:"metrics"`
	Watch   WatchConfig   `yaml:"watch"`
	Daemon  DaemonConfig  `yaml:"daemon"`
	Logging LoggingConfig `yaml:"logging"`
}

// CompileConfig drives the external LaTeX toolchain.
type CompileConfig struct {
	Engine    Engine            `yaml:"engine"`     // latexmk|pdflatex|lualatex|xelatex
	Binary    string            `yaml:"binary"`     // overrides the engine's executable name
	Passes    int               `yaml:"passes"`     // passes for non-latexmk engines
	Timeout   time.Duration     `yaml:"timeout"`    // hard limit per invocation
	OutputDir string            `yaml:"output_dir"` // relative to the document directory unless absolute
	AuxDir    string            `yaml:"aux_dir"`    // per-directory scratch space for derived sources
	Suffixes  map[string]string `yaml:"suffixes"`   // variant name -> artifact suffix
}

// BatchConfig controls directory-wide runs.
type BatchConfig struct {
	Workers  int      `yaml:"workers"`
	Excludes []string `yaml:"excludes"`
}

// UploadConfig configures artifact mirroring. Empty Dir disables it.
type UploadConfig struct {
	Dir   string      `yaml:"dir"`
	Retry RetryConfig `yaml:"retry"`
}

// RetryConfig holds raw backoff settings; see retry.NewPolicy.
type RetryConfig struct {
	Backoff    RetryBackoffMode `yaml:"backoff"`
	Initial    time.Duration    `yaml:"initial"`
	Max        time.Duration    `yaml:"max"`
	MaxRetries int              `yaml:"max_retries"`
}

// PolyConfig holds aggregation defaults.
type PolyConfig struct {
	Suffix     string `yaml:"suffix"`
	RectoVerso bool   `yaml:"recto_verso"`
	Template   string `yaml:"template"`
}

// IndexConfig locates the sqlite document index. Empty disables it.
type IndexConfig struct {
	Path string `yaml:"path"`
}

// EventsConfig configures NATS publication of batch outcomes. Empty URL disables it.
type EventsConfig struct {
	URL     string `yaml:"url"`
	Subject string `yaml:"subject"`
	Token   string `yaml:"-"`
}

// MetricsConfig configures the Prometheus textfile export. Empty path disables it.
type MetricsConfig struct {
	Textfile string `yaml:"textfile"`
}

// WatchConfig configures the file watcher.
type WatchConfig struct {
	Debounce time.Duration `yaml:"debounce"`
}

// DaemonConfig configures periodic batch runs.
type DaemonConfig struct {
	Interval time.Duration `yaml:"interval"`
	Roots    []string      `yaml:"roots"`
	// Listen is the status server address; empty disables it.
	Listen string `yaml:"listen"`
}

// LoggingConfig selects the log level.
type LoggingConfig struct {
	Level LogLevel `yaml:"level"`
}

// Clone returns a deep copy so layers never share maps or slices.
func (c Config) Clone() Config {
	out := c
	out.Compile.Suffixes = maps.Clone(c.Compile.Suffixes)
	out.Batch.Excludes = slices.Clone(c.Batch.Excludes)
	out.Daemon.Roots = slices.Clone(c.Daemon.Roots)
	return out
}

// Suffix returns the artifact suffix configured for a variant.
func (c CompileConfig) Suffix(variant string) string {
	return c.Suffixes[variant]
}
