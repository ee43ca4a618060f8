package transport

import (
	"context"
	"net"
	"os"
	"strconv"

	"hostlink/internal/codec"
	"hostlink/internal/domain"
)

// Candidate is a possible management agent found by discovery
type Candidate struct {
	Address   string
	Transport string
	Source    string
}

// Discoverer finds candidate agents, best candidates first
type Discoverer interface {
	Discover(ctx context.Context) ([]Candidate, error)
	Name() string
}

// StaticDiscoverer returns a fixed candidate list
type StaticDiscoverer struct {
	Candidates []Candidate
}

func (s StaticDiscoverer) Discover(ctx context.Context) ([]Candidate, error) {
	out := make([]Candidate, len(s.Candidates))
	copy(out, s.Candidates)
	return out, nil
}

func (s StaticDiscoverer) Name() string {
	return "static"
}

// InventoryDiscoverer reads candidates from an Ansible YAML inventory. Each
// host yields one candidate at ansible_host and hostlink_port, defaulting to
// the agent port. A string host var hostlink_transport selects the transport.
type InventoryDiscoverer struct {
	Path      string
	AgentPort int
}

func (d InventoryDiscoverer) Name() string {
	return "inventory"
}

func (d InventoryDiscoverer) Discover(ctx context.Context) ([]Candidate, error) {
	f, err := os.Open(d.Path)
	if err != nil {
		return nil, domain.Wrap(domain.DiscoveryFailed, err, "open inventory")
	}
	defer f.Close()

	hosts, err := codec.ParseInventory(f)
	if err != nil {
		return nil, err
	}

	port := d.AgentPort
	if port == 0 {
		port = DefaultAgentPort
	}

	candidates := make([]Candidate, 0, len(hosts))
	for _, h := range hosts {
		p := port
		if h.Port > 0 {
			p = h.Port
		}
		transport := domain.TransportTCP
		if v, ok := h.Vars.Get("hostlink_transport"); ok {
			if s, ok := v.Str(); ok && s != "" {
				transport = s
			}
		}
		candidates = append(candidates, Candidate{
			Address:   net.JoinHostPort(h.Address, strconv.Itoa(p)),
			Transport: transport,
			Source:    "inventory:" + h.Name,
		})
	}
	return candidates, nil
}
