package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Layer is one immutable configuration source. Apply receives a private copy
// of the configuration merged so far and returns the next one.
type Layer struct {
	Name  string
	Apply func(Config) (Config, error)
}

// Merge folds layers over Defaults in order; later layers win.
func Merge(layers ...Layer) (Config, error) {
	cfg := Defaults()
	for _, layer := range layers {
		if layer.Apply == nil {
			continue
		}
		next, err := layer.Apply(cfg.Clone())
		if err != nil {
			return Config{}, fmt.Errorf("config layer %s: %w", layer.Name, err)
		}
		cfg = next
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// FileLayer decodes a YAML file onto the current configuration. Keys absent
// from the file keep their previous value. An empty path yields a no-op layer.
func FileLayer(path string) Layer {
	return Layer{Name: "file", Apply: func(cfg Config) (Config, error) {
		if path == "" {
			return cfg, nil
		}
		// #nosec G304 -- path is provided by the operator
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		return decodeYAML(cfg, data)
	}}
}

// YAMLLayer decodes in-memory YAML, mainly for embedding and tests.
func YAMLLayer(data []byte) Layer {
	return Layer{Name: "yaml", Apply: func(cfg Config) (Config, error) {
		return decodeYAML(cfg, data)
	}}
}

func decodeYAML(cfg Config, data []byte) (Config, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return cfg, fmt.Errorf("decode yaml: %w", err)
	}
	return cfg, nil
}

// SecretsLayer reads a dotenv file holding TEXBUILDER_* keys. A missing file
// is not an error: secrets are optional.
func SecretsLayer(path string) Layer {
	return Layer{Name: "secrets", Apply: func(cfg Config) (Config, error) {
		if path == "" {
			return cfg, nil
		}
		values, err := godotenv.Read(path)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return cfg, nil
			}
			return cfg, fmt.Errorf("read %s: %w", path, err)
		}
		return applyVars(cfg, values)
	}}
}

// EnvLayer applies TEXBUILDER_* variables from an environ-style list.
func EnvLayer(environ []string) Layer {
	return Layer{Name: "env", Apply: func(cfg Config) (Config, error) {
		values := make(map[string]string)
		for _, kv := range environ {
			key, value, ok := strings.Cut(kv, "=")
			if ok && strings.HasPrefix(key, EnvPrefix) {
				values[key] = value
			}
		}
		return applyVars(cfg, values)
	}}
}

// LoadOptions names the sources Load merges.
type LoadOptions struct {
	File    string
	EnvFile string
	Environ []string
}

// Load merges defaults < file < secrets < environment.
func Load(opts LoadOptions) (Config, error) {
	return Merge(
		FileLayer(opts.File),
		SecretsLayer(opts.EnvFile),
		EnvLayer(opts.Environ),
	)
}
