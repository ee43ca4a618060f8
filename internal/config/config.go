// Package config loads hostlink configuration from YAML or TOML files.
//
// Config file locations (priority order):
//  1. $HOSTLINK_CONFIG
//  2. ./hostlink.yaml or ./hostlink.toml
//  3. $XDG_CONFIG_HOME/hostlink/config.yaml
//  4. ~/.config/hostlink/config.yaml
//  5. /etc/hostlink/config.yaml
//
// Files ending in .toml are decoded as TOML, everything else as YAML. Unknown
// keys are rejected in both formats.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// validate is a package-level singleton; validators cache struct metadata
var validate = validator.New()

// Load finds and loads the config file, or returns defaults if none found
func Load() (*Config, string, error) {
	path := FindConfigPath()

	if path == "" {
		return DefaultConfig(), "", nil
	}

	return LoadFromPath(path)
}

// LoadFromPath loads config from a specific path
func LoadFromPath(path string) (*Config, string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, path, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if isTOML(path) {
		meta, err := toml.Decode(string(data), &cfg)
		if err != nil {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
		if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			keys := make([]string, 0, len(undecoded))
			for _, k := range undecoded {
				keys = append(keys, k.String())
			}
			return nil, path, fmt.Errorf("parse config: unknown keys %s", strings.Join(keys, ", "))
		}
	} else {
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return nil, path, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, path, err
	}

	return &cfg, path, nil
}

// Save writes config to the specified path in the format its extension names
func (c *Config) Save(path string) error {
	if err := EnsureConfigDir(path); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}

	var buf bytes.Buffer
	if isTOML(path) {
		if err := toml.NewEncoder(&buf).Encode(c); err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
	} else {
		data, err := yaml.Marshal(c)
		if err != nil {
			return fmt.Errorf("marshal config: %w", err)
		}
		buf.Write(data)
	}

	return os.WriteFile(path, buf.Bytes(), 0600)
}

// DefaultConfig returns sensible defaults for a new installation
func DefaultConfig() *Config {
	return &Config{
		Version: 1,
		Transport: TransportConfig{
			ConnectTimeout:  Duration(10 * time.Second),
			ReadTimeout:     Duration(30 * time.Second),
			Default:         "tcp",
			AgentPort:       7101,
			MaxPayloadBytes: 8 << 20,
		},
		Discovery: DiscoveryConfig{
			Method:      "none",
			MaxAttempts: 3,
			ScanTimeout: Duration(2 * time.Minute),
		},
		SSH: SSHConfig{
			Port:           22,
			CommandTimeout: Duration(30 * time.Second),
		},
		Agent: AgentConfig{
			ListenAddr:       "127.0.0.1:7101",
			HandshakeTimeout: Duration(5 * time.Second),
			IdleTimeout:      Duration(5 * time.Minute),
			RequestTimeout:   Duration(30 * time.Second),
		},
		Store: StoreConfig{Path: "./hostlink.db"},
	}
}

// applyDefaults fills in missing values with defaults
func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.Version == 0 {
		c.Version = def.Version
	}

	t := &c.Transport
	if t.ConnectTimeout == 0 {
		t.ConnectTimeout = def.Transport.ConnectTimeout
	}
	if t.ReadTimeout == 0 {
		t.ReadTimeout = def.Transport.ReadTimeout
	}
	t.Default = strings.ToLower(strings.TrimSpace(t.Default))
	if t.Default == "" {
		t.Default = def.Transport.Default
	}
	if t.AgentPort == 0 {
		t.AgentPort = def.Transport.AgentPort
	}
	if t.MaxPayloadBytes == 0 {
		t.MaxPayloadBytes = def.Transport.MaxPayloadBytes
	}

	d := &c.Discovery
	d.Method = strings.ToLower(strings.TrimSpace(d.Method))
	if d.Method == "" {
		d.Method = def.Discovery.Method
	}
	if d.MaxAttempts == 0 {
		d.MaxAttempts = def.Discovery.MaxAttempts
	}
	if d.ScanTimeout == 0 {
		d.ScanTimeout = def.Discovery.ScanTimeout
	}

	if c.SSH.Port == 0 {
		c.SSH.Port = def.SSH.Port
	}
	if c.SSH.CommandTimeout == 0 {
		c.SSH.CommandTimeout = def.SSH.CommandTimeout
	}

	a := &c.Agent
	if a.ListenAddr == "" {
		a.ListenAddr = def.Agent.ListenAddr
	}
	if a.HandshakeTimeout == 0 {
		a.HandshakeTimeout = def.Agent.HandshakeTimeout
	}
	if a.IdleTimeout == 0 {
		a.IdleTimeout = def.Agent.IdleTimeout
	}
	if a.RequestTimeout == 0 {
		a.RequestTimeout = def.Agent.RequestTimeout
	}

	if c.Store.Path == "" {
		c.Store.Path = def.Store.Path
	}
}

// Validate checks field constraints and reports every violation at once
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validate config: %w", err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		field := strings.TrimPrefix(fe.Namespace(), "Config.")
		if fe.Param() != "" {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s", field, fe.Tag(), fe.Param()))
		} else {
			msgs = append(msgs, fmt.Sprintf("%s: failed %s", field, fe.Tag()))
		}
	}
	return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
}

// Summary returns a human-readable config summary
func (c *Config) Summary() string {
	summary := fmt.Sprintf("Transport: %s, connect %s, read %s\n",
		c.Transport.Default, c.Transport.ConnectTimeout.Duration(), c.Transport.ReadTimeout.Duration())
	summary += fmt.Sprintf("Discovery: %s, max attempts %d\n", c.Discovery.Method, c.Discovery.MaxAttempts)
	summary += fmt.Sprintf("Agent: %s, Store: %s", c.Agent.ListenAddr, c.Store.Path)
	return summary
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}
