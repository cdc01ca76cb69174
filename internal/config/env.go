package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// EnvPrefix marks variables read by the secrets and environment layers.
const EnvPrefix = "TEXBUILDER_"

type setter func(*Config, string) error

var envSetters = map[string]setter{
	"TEXBUILDER_COMPILE_ENGINE": func(c *Config, v string) error {
		engine, err := NormalizeEngine(v)
		c.Compile.Engine = engine
		return err
	},
	"TEXBUILDER_COMPILE_BINARY":     func(c *Config, v string) error { c.Compile.Binary = v; return nil },
	"TEXBUILDER_COMPILE_PASSES":     intSetter(func(c *Config) *int { return &c.Compile.Passes }),
	"TEXBUILDER_COMPILE_TIMEOUT":    durationSetter(func(c *Config) *time.Duration { return &c.Compile.Timeout }),
	"TEXBUILDER_COMPILE_OUTPUT_DIR": func(c *Config, v string) error { c.Compile.OutputDir = v; return nil },
	"TEXBUILDER_BATCH_WORKERS":      intSetter(func(c *Config) *int { return &c.Batch.Workers }),
	"TEXBUILDER_BATCH_EXCLUDES": func(c *Config, v string) error {
		c.Batch.Excludes = splitList(v)
		return nil
	},
	"TEXBUILDER_UPLOAD_DIR":         func(c *Config, v string) error { c.Upload.Dir = v; return nil },
	"TEXBUILDER_UPLOAD_MAX_RETRIES": intSetter(func(c *Config) *int { return &c.Upload.Retry.MaxRetries }),
	"TEXBUILDER_UPLOAD_BACKOFF": func(c *Config, v string) error {
		mode := NormalizeRetryBackoff(v)
		if mode == "" {
			return fmt.Errorf("unknown backoff %q", v)
		}
		c.Upload.Retry.Backoff = mode
		return nil
	},
	"TEXBUILDER_INDEX_PATH":       func(c *Config, v string) error { c.Index.Path = v; return nil },
	"TEXBUILDER_EVENTS_URL":       func(c *Config, v string) error { c.Events.URL = v; return nil },
	"TEXBUILDER_EVENTS_SUBJECT":   func(c *Config, v string) error { c.Events.Subject = v; return nil },
	"TEXBUILDER_EVENTS_TOKEN":     func(c *Config, v string) error { c.Events.Token = v; return nil },
	"TEXBUILDER_METRICS_TEXTFILE": func(c *Config, v string) error { c.Metrics.Textfile = v; return nil },
	"TEXBUILDER_WATCH_DEBOUNCE":   durationSetter(func(c *Config) *time.Duration { return &c.Watch.Debounce }),
	"TEXBUILDER_DAEMON_INTERVAL":  durationSetter(func(c *Config) *time.Duration { return &c.Daemon.Interval }),
	"TEXBUILDER_DAEMON_LISTEN":    func(c *Config, v string) error { c.Daemon.Listen = v; return nil },
	"TEXBUILDER_LOG_LEVEL": func(c *Config, v string) error {
		c.Logging.Level = NormalizeLogLevel(v)
		return nil
	},
}

// EnvKeys lists the recognized variables, sorted.
func EnvKeys() []string {
	keys := make([]string, 0, len(envSetters))
	for k := range envSetters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func applyVars(cfg Config, values map[string]string) (Config, error) {
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		set, ok := envSetters[key]
		if !ok {
			continue
		}
		if err := set(&cfg, strings.TrimSpace(values[key])); err != nil {
			return cfg, fmt.Errorf("%s: %w", key, err)
		}
	}
	return cfg, nil
}

func intSetter(field func(*Config) *int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not an integer: %q", v)
		}
		*field(c) = n
		return nil
	}
}

func durationSetter(field func(*Config) *time.Duration) setter {
	return func(c *Config, v string) error {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("not a duration: %q", v)
		}
		*field(c) = d
		return nil
	}
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
