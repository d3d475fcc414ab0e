package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the environment variable prefix for config overrides,
// e.g. FRAMED_LISTEN_PORT=19001 sets listen.port.
const envPrefix = "FRAMED_"

// Config is the daemon configuration, loaded from YAML with
// environment overrides.
type Config struct {
	Listen struct {
		Addr string `koanf:"addr"`
		Port int    `koanf:"port"`
	} `koanf:"listen"`

	TLS struct {
		Enabled            bool   `koanf:"enabled"`
		CertFile           string `koanf:"cert_file"`
		KeyFile            string `koanf:"key_file"`
		PKCS12File         string `koanf:"pkcs12_file"`
		PKCS12Password     string `koanf:"pkcs12_password"`
		AcceptInvalidCerts bool   `koanf:"accept_invalid_certs"`
		MutualAuth         bool   `koanf:"mutual_auth"`
		WatchCertificates  bool   `koanf:"watch_certificates"`
	} `koanf:"tls"`

	Auth struct {
		Secret  string        `koanf:"secret"`
		Timeout time.Duration `koanf:"timeout"`
	} `koanf:"auth"`

	AllowedIPs []string `koanf:"allowed_ips"`

	Limits struct {
		MaxPayload   int           `koanf:"max_payload"`
		AcceptRate   float64       `koanf:"accept_rate"`
		AcceptBurst  int           `koanf:"accept_burst"`
		ReadTimeout  time.Duration `koanf:"read_timeout"`
		WriteTimeout time.Duration `koanf:"write_timeout"`
	} `koanf:"limits"`

	Log struct {
		Level  string `koanf:"level"`
		Format string `koanf:"format"`
	} `koanf:"log"`

	Echo bool `koanf:"echo"`
}

// defaults returns the baseline configuration.
func defaults() *Config {
	cfg := &Config{}
	cfg.Listen.Port = 9000
	cfg.Log.Level = "info"
	cfg.Log.Format = "text"
	return cfg
}

// loadConfig loads the configuration file (if any) and applies
// environment overrides. Priority: env > file > defaults.
func loadConfig(path string) (*Config, error) {
	cfg := defaults()

	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("load %s: %w", path, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	return cfg, nil
}
