package domain

import (
	"strings"
)

// ConnectMode selects the strategy used to open a channel
type ConnectMode string

const (
	// ModeDiscovered locates a management agent on the network
	ModeDiscovered ConnectMode = "discovered"
	// ModeEndpoint dials an explicit address with a transport descriptor
	ModeEndpoint ConnectMode = "endpoint"
	// ModePayload derives the channel from a pre-serialized bootstrap blob
	ModePayload ConnectMode = "payload"
)

// Transport names understood by the selector
const (
	TransportTCP = "tcp" // framed agent protocol over plain TCP
	TransportTLS = "tls" // framed agent protocol over TLS
	TransportSSH = "ssh" // agentless fact gathering over SSH
)

// TransportDescriptor describes how to reach an explicit endpoint
type TransportDescriptor struct {
	// Transport is one of TransportTCP, TransportTLS, TransportSSH. Empty means TCP.
	Transport string `json:"transport" yaml:"transport"`
	// Token authenticates against an agent (tcp/tls)
	Token string `json:"token,omitempty" yaml:"token,omitempty"`

	// SSH credentials
	User       string `json:"user,omitempty" yaml:"user,omitempty"`
	Password   string `json:"-" yaml:"-"`
	PrivateKey []byte `json:"-" yaml:"-"`
	Passphrase string `json:"-" yaml:"-"`

	// TLS settings
	ServerName         string `json:"server_name,omitempty" yaml:"server_name,omitempty"`
	CAFile             string `json:"ca_file,omitempty" yaml:"ca_file,omitempty"`
	InsecureSkipVerify bool   `json:"insecure_skip_verify,omitempty" yaml:"insecure_skip_verify,omitempty"`
}

// Name returns the normalized transport name
func (d TransportDescriptor) Name() string {
	name := strings.ToLower(strings.TrimSpace(d.Transport))
	if name == "" {
		return TransportTCP
	}
	return name
}

// ConnectionParams is the tagged variant passed to the transport selector.
// Build it with Discovered, Endpoint or Payload.
type ConnectionParams struct {
	Mode       ConnectMode
	Address    string
	Descriptor TransportDescriptor
	payload    []byte
}

// Discovered returns params that locate an agent through discovery
func Discovered() ConnectionParams {
	return ConnectionParams{Mode: ModeDiscovered}
}

// Endpoint returns params for an explicit address
func Endpoint(address string, descriptor TransportDescriptor) ConnectionParams {
	return ConnectionParams{
		Mode:       ModeEndpoint,
		Address:    strings.TrimSpace(address),
		Descriptor: descriptor,
	}
}

// Payload returns params for a bootstrap blob. The blob is copied.
func Payload(blob []byte) ConnectionParams {
	cp := make([]byte, len(blob))
	copy(cp, blob)
	return ConnectionParams{Mode: ModePayload, payload: cp}
}

// PayloadBytes returns a copy of the bootstrap blob
func (p ConnectionParams) PayloadBytes() []byte {
	cp := make([]byte, len(p.payload))
	copy(cp, p.payload)
	return cp
}

// Validate checks the variant is internally consistent
func (p ConnectionParams) Validate() error {
	switch p.Mode {
	case ModeDiscovered:
		return nil
	case ModeEndpoint:
		if p.Address == "" {
			return NewError(ConnectionRefused, "endpoint address is required")
		}
		switch p.Descriptor.Name() {
		case TransportTCP, TransportTLS, TransportSSH:
			return nil
		}
		return Errorf(UnsupportedType, "unknown transport %q", p.Descriptor.Transport)
	case ModePayload:
		if len(p.payload) == 0 {
			return NewError(InvalidPayload, "bootstrap payload is empty")
		}
		return nil
	}
	return Errorf(Internal, "unknown connect mode %q", p.Mode)
}
