// Package config loads service configuration from a YAML file and
// GCODEMUX_-prefixed environment variables, with environment values taking
// precedence over the file.
package config

import (
	"os"
	"regexp"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Storage   StorageConfig   `koanf:"storage"`
	Pipeline  PipelineConfig  `koanf:"pipeline"`
	Logging   LoggingConfig   `koanf:"logging"`
	Telemetry TelemetryConfig `koanf:"telemetry"`
	Fetch     FetchConfig     `koanf:"fetch"`
}

type ServerConfig struct {
	Host           string   `koanf:"host"`
	Port           int      `koanf:"port"`
	RequestTimeout string   `koanf:"request_timeout"` // Duration string like "30s"
	APIKeys        []string `koanf:"api_keys"`        // Empty list disables auth
}

type StorageConfig struct {
	Driver string `koanf:"driver"` // sqlite, memory, none
	DSN    string `koanf:"dsn"`
}

type PipelineConfig struct {
	// Strict fails whole streams on malformed parameters instead of
	// classifying the offending line as unknown.
	Strict bool `koanf:"strict"`
}

type LoggingConfig struct {
	Level string `koanf:"level"` // debug, info, warn, error
}

type TelemetryConfig struct {
	Enabled bool   `koanf:"enabled"`
	Service string `koanf:"service"`
}

type FetchConfig struct {
	Timeout  string `koanf:"timeout"` // Duration string like "10s"
	MaxBytes int64  `koanf:"max_bytes"`
}

// DefaultPath is where Load looks for the config file.
const DefaultPath = "config.yaml"

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// Load reads DefaultPath plus the environment.
func Load() (*Config, error) {
	return LoadFile(DefaultPath)
}

// LoadFile reads the given config file plus the environment. A missing file
// is fine, the environment and defaults cover everything.
func LoadFile(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
	}

	// GCODEMUX_SERVER__PORT=9000 becomes server.port.
	if err := k.Load(env.Provider("GCODEMUX_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, "GCODEMUX_")), "__", ".", -1)
	}), nil); err != nil {
		return nil, err
	}

	// Default values
	if !k.Exists("server.port") {
		k.Set("server.port", 8080)
	}
	if !k.Exists("server.request_timeout") {
		k.Set("server.request_timeout", "30s")
	}
	if !k.Exists("storage.driver") {
		k.Set("storage.driver", "memory")
	}
	if !k.Exists("logging.level") {
		k.Set("logging.level", "info")
	}
	if !k.Exists("telemetry.service") {
		k.Set("telemetry.service", "gcodemux")
	}
	if !k.Exists("fetch.timeout") {
		k.Set("fetch.timeout", "10s")
	}
	if !k.Exists("fetch.max_bytes") {
		k.Set("fetch.max_bytes", int64(8<<20))
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, err
	}

	// Substitute environment variables in values that carry secrets
	cfg.Storage.DSN = substituteEnvVars(cfg.Storage.DSN)
	for i := range cfg.Server.APIKeys {
		cfg.Server.APIKeys[i] = substituteEnvVars(cfg.Server.APIKeys[i])
	}

	return &cfg, nil
}

func substituteEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}
