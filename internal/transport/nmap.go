package transport

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"hostlink/internal/domain"
	"hostlink/internal/logging"

	nmap "github.com/Ullaakut/nmap/v3"
	"github.com/rs/zerolog"
)

// NmapDiscoverer scans network targets for hosts with an agent port open
type NmapDiscoverer struct {
	targets           []string
	portRange         string
	timeout           time.Duration
	skipHostDiscovery bool
	transport         string
	sshFallback       bool
	log               zerolog.Logger
}

// NmapOption is a functional option for configuring NmapDiscoverer
type NmapOption func(*NmapDiscoverer)

// WithPortRange sets the agent ports to scan
// Format: "7101" or "7100-7110" or "7101,7201". An invalid range is ignored;
// check it with ParsePorts first.
func WithPortRange(ports string) NmapOption {
	return func(n *NmapDiscoverer) {
		if validated, err := ParsePorts(ports); err == nil {
			n.portRange = validated
		}
	}
}

// WithScanTimeout sets the timeout for the entire nmap scan
func WithScanTimeout(d time.Duration) NmapOption {
	return func(n *NmapDiscoverer) {
		n.timeout = d
	}
}

// WithSkipHostDiscovery sets whether to skip ping and treat all hosts as online (-Pn)
// Useful for networks that block ICMP
func WithSkipHostDiscovery(skip bool) NmapOption {
	return func(n *NmapDiscoverer) {
		n.skipHostDiscovery = skip
	}
}

// WithCandidateTransport sets the transport used for agent candidates (tcp or tls)
func WithCandidateTransport(transport string) NmapOption {
	return func(n *NmapDiscoverer) {
		n.transport = transport
	}
}

// WithSSHFallback also scans port 22 and offers open SSH ports as agentless
// candidates after every agent candidate
func WithSSHFallback(enabled bool) NmapOption {
	return func(n *NmapDiscoverer) {
		n.sshFallback = enabled
	}
}

// NewNmapDiscoverer creates a discoverer for CIDR ranges or individual IPs
func NewNmapDiscoverer(targets []string, opts ...NmapOption) *NmapDiscoverer {
	d := &NmapDiscoverer{
		targets:   targets,
		portRange: strconv.Itoa(DefaultAgentPort),
		timeout:   2 * time.Minute,
		transport: domain.TransportTCP,
		log:       logging.For("discovery"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

func (n *NmapDiscoverer) Name() string {
	return "nmap"
}

// Discover runs one scan over all targets
func (n *NmapDiscoverer) Discover(ctx context.Context) ([]Candidate, error) {
	if len(n.targets) == 0 {
		return nil, domain.NewError(domain.DiscoveryFailed, "no discovery targets configured")
	}

	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}

	ports := n.portRange
	if n.sshFallback {
		ports += "," + strconv.Itoa(DefaultSSHPort)
	}

	opts := []nmap.Option{
		nmap.WithTargets(n.targets...),
		nmap.WithPorts(ports),
	}
	if n.skipHostDiscovery {
		opts = append(opts, nmap.WithSkipHostDiscovery())
	}

	scanner, err := nmap.NewScanner(ctx, opts...)
	if err != nil {
		return nil, domain.Wrap(domain.DiscoveryFailed, err, "failed to create scanner")
	}

	n.log.Info().Strs("targets", n.targets).Str("ports", ports).Msg("scanning for agents")
	result, warnings, err := scanner.Run()
	if err != nil {
		if ctx.Err() != nil {
			return nil, domain.Wrap(domain.Timeout, err, "scan did not finish")
		}
		return nil, domain.Wrap(domain.DiscoveryFailed, err, "scan failed")
	}
	if warnings != nil && len(*warnings) > 0 {
		n.log.Warn().Strs("warnings", *warnings).Msg("nmap warnings")
	}

	candidates := n.candidatesFromRun(result)
	n.log.Info().Int("candidates", len(candidates)).Msg("scan complete")
	return candidates, nil
}

// candidatesFromRun converts scan results into candidates, keeping scan
// order. Agent ports come first, SSH fallbacks last.
func (n *NmapDiscoverer) candidatesFromRun(result *nmap.Run) []Candidate {
	if result == nil {
		return nil
	}

	var agents, sshHosts []Candidate
	for _, host := range result.Hosts {
		if host.Status.State != "up" || len(host.Addresses) == 0 {
			continue
		}

		var ip string
		for _, addr := range host.Addresses {
			if addr.AddrType == "ipv4" {
				ip = addr.Addr
				break
			}
		}
		if ip == "" {
			ip = host.Addresses[0].Addr
		}

		for _, port := range host.Ports {
			if port.State.State != "open" {
				continue
			}
			c := Candidate{
				Address:   net.JoinHostPort(ip, strconv.Itoa(int(port.ID))),
				Transport: n.transport,
				Source:    "nmap",
			}
			if n.sshFallback && port.ID == DefaultSSHPort {
				c.Transport = domain.TransportSSH
				sshHosts = append(sshHosts, c)
				continue
			}
			agents = append(agents, c)
		}
	}
	return append(agents, sshHosts...)
}

// ParsePorts validates a port range string in nmap format
func ParsePorts(portRange string) (string, error) {
	if strings.TrimSpace(portRange) == "" {
		return "", fmt.Errorf("empty port range")
	}
	for _, part := range strings.Split(portRange, ",") {
		part = strings.TrimSpace(part)
		if lo, hi, isRange := strings.Cut(part, "-"); isRange {
			start, err := strconv.Atoi(strings.TrimSpace(lo))
			if err != nil || start < 1 || start > 65535 {
				return "", fmt.Errorf("invalid port number: %s", lo)
			}
			end, err := strconv.Atoi(strings.TrimSpace(hi))
			if err != nil || end < 1 || end > 65535 || end < start {
				return "", fmt.Errorf("invalid port number: %s", hi)
			}
			continue
		}
		port, err := strconv.Atoi(part)
		if err != nil || port < 1 || port > 65535 {
			return "", fmt.Errorf("invalid port number: %s", part)
		}
	}
	return portRange, nil
}
