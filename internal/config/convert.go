package config

import (
	"crypto/tls"
	"fmt"
	"strconv"

	"hostlink/internal/agent"
	"hostlink/internal/domain"
	"hostlink/internal/logging"
	"hostlink/internal/protocol"
	"hostlink/internal/transport"
)

// TransportConfig returns the selector configuration
func (c *Config) TransportConfig() transport.Config {
	return transport.Config{
		ConnectTimeout: c.Transport.ConnectTimeout.Duration(),
		ReadTimeout:    c.Transport.ReadTimeout.Duration(),
		Token:          c.Transport.Token,
		AgentPort:      c.Transport.AgentPort,
		MaxAttempts:    c.Discovery.MaxAttempts,
		Limits:         protocol.Limits{MaxPayloadBytes: c.Transport.MaxPayloadBytes},
		SSH: transport.SSHConfig{
			User:           c.SSH.User,
			Password:       c.SSH.Password,
			KeyFile:        c.SSH.KeyPath,
			Passphrase:     c.SSH.Passphrase,
			KnownHostsFile: c.SSH.KnownHosts,
			Port:           c.SSH.Port,
			CommandTimeout: c.SSH.CommandTimeout.Duration(),
		},
		TLS: transport.TLSConfig{
			ServerName:         c.Transport.ServerName,
			CAFile:             c.Transport.CAFile,
			InsecureSkipVerify: c.Transport.InsecureSkipVerify,
		},
	}
}

// Descriptor returns the transport descriptor used when a caller names an
// endpoint without choosing a transport
func (c *Config) Descriptor() domain.TransportDescriptor {
	return domain.TransportDescriptor{
		Transport:          c.Transport.Default,
		Token:              c.Transport.Token,
		User:               c.SSH.User,
		ServerName:         c.Transport.ServerName,
		CAFile:             c.Transport.CAFile,
		InsecureSkipVerify: c.Transport.InsecureSkipVerify,
	}
}

// Discoverer builds the configured discovery source; nil for method none
func (c *Config) Discoverer() (transport.Discoverer, error) {
	d := c.Discovery
	switch d.Method {
	case "", "none":
		return nil, nil
	case "nmap":
		opts := []transport.NmapOption{
			transport.WithScanTimeout(d.ScanTimeout.Duration()),
			transport.WithSkipHostDiscovery(d.SkipHostDiscovery),
			transport.WithSSHFallback(d.SSHFallback),
			transport.WithCandidateTransport(c.agentTransport()),
		}
		ports := d.Ports
		if ports == "" {
			ports = strconv.Itoa(c.Transport.AgentPort)
		}
		if _, err := transport.ParsePorts(ports); err != nil {
			return nil, fmt.Errorf("discovery ports: %w", err)
		}
		opts = append(opts, transport.WithPortRange(ports))
		return transport.NewNmapDiscoverer(d.Targets, opts...), nil
	case "inventory":
		return transport.InventoryDiscoverer{Path: d.Inventory, AgentPort: c.Transport.AgentPort}, nil
	case "static":
		candidates := make([]transport.Candidate, 0, len(d.Candidates))
		for _, addr := range d.Candidates {
			candidates = append(candidates, transport.Candidate{
				Address:   addr,
				Transport: c.agentTransport(),
				Source:    "config",
			})
		}
		return transport.StaticDiscoverer{Candidates: candidates}, nil
	}
	return nil, fmt.Errorf("unknown discovery method %q", d.Method)
}

// agentTransport is the transport for discovered agents; ssh is not an agent
// transport so it falls back to tcp
func (c *Config) agentTransport() string {
	if c.Transport.Default == domain.TransportTLS {
		return domain.TransportTLS
	}
	return domain.TransportTCP
}

// AgentConfig returns the agent server configuration, loading the TLS
// key pair when one is configured
func (c *Config) AgentConfig() (agent.Config, error) {
	cfg := agent.Config{
		ListenAddr:       c.Agent.ListenAddr,
		Token:            c.Agent.Token,
		HandshakeTimeout: c.Agent.HandshakeTimeout.Duration(),
		IdleTimeout:      c.Agent.IdleTimeout.Duration(),
		RequestTimeout:   c.Agent.RequestTimeout.Duration(),
		Limits:           protocol.Limits{MaxPayloadBytes: c.Transport.MaxPayloadBytes},
	}
	if c.Agent.TLSCert != "" {
		cert, err := tls.LoadX509KeyPair(c.Agent.TLSCert, c.Agent.TLSKey)
		if err != nil {
			return agent.Config{}, fmt.Errorf("load agent tls key pair: %w", err)
		}
		cfg.TLS = &tls.Config{
			MinVersion:   tls.VersionTLS12,
			Certificates: []tls.Certificate{cert},
		}
	}
	return cfg, nil
}

// AgentSource returns the data source the agent serves: the data file when
// set, local facts otherwise
func (c *Config) AgentSource() agent.DataSource {
	if c.Agent.DataFile != "" {
		if c.Agent.WatchData {
			return agent.NewCachedFileSource(c.Agent.DataFile)
		}
		return agent.FileSource{Path: c.Agent.DataFile}
	}
	return agent.LocalFacts{}
}

// LoggingConfig returns the logger setup for profile with file overrides
// applied. Environment variables are applied on top by the caller.
func (c *Config) LoggingConfig(profile logging.Profile) logging.Config {
	cfg := logging.DefaultConfig(profile)
	if lvl, ok := logging.ParseLevel(c.Logging.Level); ok {
		cfg.Level = lvl
	}
	if c.Logging.JSON {
		cfg.JSON = true
	}
	if c.Logging.NoColor {
		cfg.NoColor = true
	}
	return cfg
}
