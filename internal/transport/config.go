package transport

import (
	"time"

	"hostlink/internal/domain"
	"hostlink/internal/protocol"
)

const (
	// DefaultAgentPort is where a management agent listens unless configured otherwise
	DefaultAgentPort = 7101
	DefaultSSHPort   = 22
)

// Config controls how channels are opened
type Config struct {
	// ConnectTimeout bounds a single dial, including the handshake
	ConnectTimeout time.Duration
	// ReadTimeout bounds a single request when ctx carries no deadline
	ReadTimeout time.Duration
	// Token is sent in the agent hello when the descriptor carries none
	Token string
	// AgentPort is used for discovered candidates without an explicit port
	AgentPort int
	// MaxAttempts limits how many discovered candidates are tried
	MaxAttempts int
	Limits      protocol.Limits
	SSH         SSHConfig
	// TLS fills the TLS settings a descriptor leaves empty, which covers
	// discovered candidates and bootstrap payloads
	TLS TLSConfig
}

// TLSConfig holds client TLS defaults for agent connections
type TLSConfig struct {
	ServerName         string
	CAFile             string
	InsecureSkipVerify bool
}

// withTLSDefaults returns d with its empty TLS settings taken from c.TLS
func (c Config) withTLSDefaults(d domain.TransportDescriptor) domain.TransportDescriptor {
	if d.ServerName == "" {
		d.ServerName = c.TLS.ServerName
	}
	if d.CAFile == "" {
		d.CAFile = c.TLS.CAFile
	}
	if c.TLS.InsecureSkipVerify {
		d.InsecureSkipVerify = true
	}
	return d
}

// SSHConfig holds defaults for the ssh transport
type SSHConfig struct {
	User           string
	Password       string
	KeyFile        string
	Passphrase     string
	KnownHostsFile string
	Port           int
	CommandTimeout time.Duration
}

// DefaultConfig returns sensible defaults
func DefaultConfig() Config {
	return Config{
		ConnectTimeout: 10 * time.Second,
		ReadTimeout:    30 * time.Second,
		AgentPort:      DefaultAgentPort,
		MaxAttempts:    3,
		Limits:         protocol.DefaultLimits(),
		SSH: SSHConfig{
			Port:           DefaultSSHPort,
			CommandTimeout: 30 * time.Second,
		},
	}
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = def.ConnectTimeout
	}
	if c.ReadTimeout <= 0 {
		c.ReadTimeout = def.ReadTimeout
	}
	if c.AgentPort == 0 {
		c.AgentPort = def.AgentPort
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.Limits.MaxPayloadBytes == 0 {
		c.Limits = def.Limits
	}
	if c.SSH.Port == 0 {
		c.SSH.Port = def.SSH.Port
	}
	if c.SSH.CommandTimeout <= 0 {
		c.SSH.CommandTimeout = def.SSH.CommandTimeout
	}
}
