package config

import (
	"fmt"
	"time"
)

// Config is the root configuration structure
type Config struct {
	Version   int             `yaml:"version" toml:"version" validate:"eq=1"`
	Transport TransportConfig `yaml:"transport" toml:"transport"`
	Discovery DiscoveryConfig `yaml:"discovery" toml:"discovery"`
	SSH       SSHConfig       `yaml:"ssh" toml:"ssh"`
	Agent     AgentConfig     `yaml:"agent" toml:"agent"`
	Store     StoreConfig     `yaml:"store" toml:"store"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
}

// TransportConfig holds client-side dial settings
type TransportConfig struct {
	ConnectTimeout     Duration `yaml:"connect_timeout" toml:"connect_timeout" validate:"gt=0"`
	ReadTimeout        Duration `yaml:"read_timeout" toml:"read_timeout" validate:"gt=0"`
	Default            string   `yaml:"default" toml:"default" validate:"oneof=tcp tls ssh"`
	Token              string   `yaml:"token,omitempty" toml:"token,omitempty"`
	AgentPort          int      `yaml:"agent_port" toml:"agent_port" validate:"min=1,max=65535"`
	MaxPayloadBytes    uint32   `yaml:"max_payload_bytes" toml:"max_payload_bytes" validate:"gt=0"`
	ServerName         string   `yaml:"server_name,omitempty" toml:"server_name,omitempty"`
	CAFile             string   `yaml:"ca_file,omitempty" toml:"ca_file,omitempty" validate:"omitempty,file"`
	InsecureSkipVerify bool     `yaml:"insecure_skip_verify,omitempty" toml:"insecure_skip_verify,omitempty"`
}

// DiscoveryConfig selects and tunes the discovery source
type DiscoveryConfig struct {
	// Method is none, nmap, inventory or static
	Method            string   `yaml:"method" toml:"method" validate:"oneof=none nmap inventory static"`
	Targets           []string `yaml:"targets,omitempty" toml:"targets,omitempty" validate:"required_if=Method nmap,dive,required"`
	Ports             string   `yaml:"ports,omitempty" toml:"ports,omitempty"`
	MaxAttempts       int      `yaml:"max_attempts" toml:"max_attempts" validate:"min=1"`
	ScanTimeout       Duration `yaml:"scan_timeout" toml:"scan_timeout" validate:"gt=0"`
	SkipHostDiscovery bool     `yaml:"skip_host_discovery,omitempty" toml:"skip_host_discovery,omitempty"`
	SSHFallback       bool     `yaml:"ssh_fallback,omitempty" toml:"ssh_fallback,omitempty"`
	Inventory         string   `yaml:"inventory,omitempty" toml:"inventory,omitempty" validate:"required_if=Method inventory"`
	// Candidates are host:port addresses tried in order by the static method
	Candidates []string `yaml:"candidates,omitempty" toml:"candidates,omitempty" validate:"required_if=Method static,dive,hostname_port"`
}

// SSHConfig holds defaults for the agentless ssh transport
type SSHConfig struct {
	User           string   `yaml:"user,omitempty" toml:"user,omitempty"`
	KeyPath        string   `yaml:"key_path,omitempty" toml:"key_path,omitempty"`
	Password       string   `yaml:"password,omitempty" toml:"password,omitempty"`
	Passphrase     string   `yaml:"passphrase,omitempty" toml:"passphrase,omitempty"`
	KnownHosts     string   `yaml:"known_hosts,omitempty" toml:"known_hosts,omitempty"`
	Port           int      `yaml:"port" toml:"port" validate:"min=1,max=65535"`
	CommandTimeout Duration `yaml:"command_timeout" toml:"command_timeout" validate:"gt=0"`
}

// AgentConfig holds management agent settings
type AgentConfig struct {
	ListenAddr       string   `yaml:"listen_addr" toml:"listen_addr" validate:"required"`
	Token            string   `yaml:"token,omitempty" toml:"token,omitempty"`
	MetricsAddr      string   `yaml:"metrics_addr,omitempty" toml:"metrics_addr,omitempty"`
	DataFile         string   `yaml:"data_file,omitempty" toml:"data_file,omitempty"`
	// WatchData caches the data file and reloads it when it changes
	WatchData        bool     `yaml:"watch_data,omitempty" toml:"watch_data,omitempty"`
	TLSCert          string   `yaml:"tls_cert,omitempty" toml:"tls_cert,omitempty" validate:"required_with=TLSKey"`
	TLSKey           string   `yaml:"tls_key,omitempty" toml:"tls_key,omitempty" validate:"required_with=TLSCert"`
	HandshakeTimeout Duration `yaml:"handshake_timeout" toml:"handshake_timeout" validate:"gt=0"`
	IdleTimeout      Duration `yaml:"idle_timeout" toml:"idle_timeout" validate:"gt=0"`
	RequestTimeout   Duration `yaml:"request_timeout" toml:"request_timeout" validate:"gt=0"`
}

// StoreConfig holds snapshot database settings
type StoreConfig struct {
	Path string `yaml:"path" toml:"path" validate:"required"`
}

// LoggingConfig overrides the logger defaults; environment variables still win
type LoggingConfig struct {
	Level   string `yaml:"level,omitempty" toml:"level,omitempty" validate:"omitempty,oneof=trace debug info warn warning error disabled off none"`
	JSON    bool   `yaml:"json,omitempty" toml:"json,omitempty"`
	NoColor bool   `yaml:"no_color,omitempty" toml:"no_color,omitempty"`
}

// Duration wraps time.Duration for YAML and TOML unmarshaling
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler
func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	return d.UnmarshalText([]byte(s))
}

// MarshalYAML implements yaml.Marshaler
func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

// UnmarshalText implements encoding.TextUnmarshaler, used by the TOML decoder
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	*d = Duration(parsed)
	return nil
}

// MarshalText implements encoding.TextMarshaler
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Duration returns the underlying time.Duration
func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}
