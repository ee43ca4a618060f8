package codec

import (
	"fmt"
	"io"
	"sort"

	"hostlink/internal/domain"

	"gopkg.in/yaml.v3"
)

// InventoryHost is one host entry from an Ansible YAML inventory
type InventoryHost struct {
	Name    string
	Address string // ansible_host, falls back to Name
	Port    int    // hostlink_port, 0 when unset
	Group   string
	Vars    domain.Value
}

// ansibleInventory represents the Ansible inventory structure
type ansibleInventory struct {
	All ansibleGroup `yaml:"all"`
}

type ansibleGroup struct {
	Children map[string]ansibleGroup `yaml:"children,omitempty"`
	Hosts    map[string]ansibleHost  `yaml:"hosts,omitempty"`
	Vars     map[string]any          `yaml:"vars,omitempty"`
}

type ansibleHost struct {
	AnsibleHost  string         `yaml:"ansible_host,omitempty"`
	HostlinkPort int            `yaml:"hostlink_port,omitempty"`
	Vars         map[string]any `yaml:",inline"`
}

// ParseInventory reads an Ansible YAML inventory and returns its hosts sorted
// by name. A host listed in several groups is reported once, under the first
// group visited: direct hosts of "all" first, then child groups depth first in
// name order. Group vars are merged under host vars.
func ParseInventory(r io.Reader) ([]InventoryHost, error) {
	var inv ansibleInventory
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&inv); err != nil {
		return nil, domain.Wrap(domain.InvalidPayload, err, "failed to parse Ansible inventory")
	}

	seen := make(map[string]InventoryHost)
	if err := collectGroup("all", inv.All, nil, seen); err != nil {
		return nil, err
	}

	hosts := make([]InventoryHost, 0, len(seen))
	for _, h := range seen {
		hosts = append(hosts, h)
	}
	sort.Slice(hosts, func(i, j int) bool { return hosts[i].Name < hosts[j].Name })
	return hosts, nil
}

func collectGroup(name string, g ansibleGroup, inherited map[string]any, seen map[string]InventoryHost) error {
	vars := mergeVars(inherited, g.Vars)

	hostNames := make([]string, 0, len(g.Hosts))
	for h := range g.Hosts {
		hostNames = append(hostNames, h)
	}
	sort.Strings(hostNames)

	for _, hostName := range hostNames {
		if _, exists := seen[hostName]; exists {
			continue
		}
		h := g.Hosts[hostName]
		merged := mergeVars(vars, h.Vars)
		v, err := domain.FromAny(merged)
		if err != nil {
			e := domain.Classify(err)
			return domain.Errorf(domain.InvalidPayload, "host %s: %s", hostName, e.Message)
		}
		addr := h.AnsibleHost
		if addr == "" {
			addr = hostName
		}
		seen[hostName] = InventoryHost{
			Name:    hostName,
			Address: addr,
			Port:    h.HostlinkPort,
			Group:   name,
			Vars:    v,
		}
	}

	children := make([]string, 0, len(g.Children))
	for c := range g.Children {
		children = append(children, c)
	}
	sort.Strings(children)

	for _, child := range children {
		if err := collectGroup(child, g.Children[child], vars, seen); err != nil {
			return fmt.Errorf("group %s: %w", child, err)
		}
	}
	return nil
}

func mergeVars(base, over map[string]any) map[string]any {
	out := make(map[string]any, len(base)+len(over))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range over {
		out[k] = v
	}
	return out
}
