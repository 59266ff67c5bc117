package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration is a time.Duration that unmarshals from a YAML string like "30s".
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	dur, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	d.Duration = dur
	return nil
}

// ServerConfig holds settings for the readiness page server.
type ServerConfig struct {
	Address         string   `yaml:"address"`
	ShutdownTimeout Duration `yaml:"shutdown_timeout"`
}

// StorageConfig holds check history settings. An empty Path disables history.
type StorageConfig struct {
	Path string `yaml:"path"`
}

// BackendConfig holds settings for the stub backend health API.
type BackendConfig struct {
	Address     string   `yaml:"address"`
	Service     string   `yaml:"service"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// Config is the root runtime configuration. The backend base URL is not part
// of it; see ResolveBaseURL.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Backend BackendConfig `yaml:"backend"`
}

// DefaultPath is the config file read when no --config flag is given.
const DefaultPath = "readycheck.yml"

// Default returns the configuration used when no config file exists.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg, true)
	return cfg
}

// Load reads and parses the config file at path. A missing file is reported
// with an error wrapping fs.ErrNotExist.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// storage.path may be set to "" on purpose, so track whether it was present.
	type rawConfig struct {
		Server  ServerConfig  `yaml:"server"`
		Storage *struct {
			Path *string `yaml:"path"`
		} `yaml:"storage"`
		Backend BackendConfig `yaml:"backend"`
	}

	var raw rawConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg := &Config{
		Server:  raw.Server,
		Backend: raw.Backend,
	}
	storageSet := raw.Storage != nil && raw.Storage.Path != nil
	if storageSet {
		cfg.Storage.Path = *raw.Storage.Path
	}
	applyDefaults(cfg, !storageSet)

	if cfg.Server.ShutdownTimeout.Duration < 0 {
		return nil, fmt.Errorf("server: shutdown_timeout must not be negative")
	}
	for i, o := range cfg.Backend.CORSOrigins {
		if o == "" {
			return nil, fmt.Errorf("backend: cors_origins[%d] is empty", i)
		}
	}

	return cfg, nil
}

func applyDefaults(cfg *Config, storage bool) {
	if cfg.Server.Address == "" {
		cfg.Server.Address = ":3000"
	}
	if cfg.Server.ShutdownTimeout.Duration == 0 {
		cfg.Server.ShutdownTimeout = Duration{30 * time.Second}
	}
	if storage && cfg.Storage.Path == "" {
		cfg.Storage.Path = "readycheck.db"
	}
	if cfg.Backend.Address == "" {
		cfg.Backend.Address = ":8000"
	}
	if cfg.Backend.Service == "" {
		cfg.Backend.Service = "backend"
	}
}
