package facts

import (
	"fmt"
	"strconv"
	"strings"
)

// Command defines a shell command whose output is parsed into facts
type Command struct {
	Name    string                                      // e.g., "os_release"
	Command string                                      // e.g., "cat /etc/os-release"
	Parser  func(output string) (map[string]any, error) // Parse command output into facts
}

// DefaultCommands are the standard fact-gathering commands run on a host,
// either locally by the agent or remotely over SSH
var DefaultCommands = []Command{
	{
		Name:    "hostname",
		Command: "hostname -f 2>/dev/null || hostname",
		Parser:  parseHostname,
	},
	{
		Name:    "os_release",
		Command: "cat /etc/os-release 2>/dev/null",
		Parser:  parseOSRelease,
	},
	{
		Name:    "uname",
		Command: "uname -a",
		Parser:  parseUname,
	},
	{
		Name:    "cpu",
		Command: "nproc 2>/dev/null || getconf _NPROCESSORS_ONLN",
		Parser:  parseNproc,
	},
	{
		Name:    "meminfo",
		Command: "cat /proc/meminfo 2>/dev/null",
		Parser:  parseMeminfo,
	},
	{
		Name:    "docker_check",
		Command: "docker ps -q 2>/dev/null | head -1",
		Parser:  parseDockerCheck,
	},
	{
		Name:    "k8s_check",
		Command: "kubectl version --client=true --output=yaml 2>/dev/null || ls /etc/rancher/k3s 2>/dev/null",
		Parser:  parseK8sCheck,
	},
}

// parseHostname extracts hostname from hostname command
func parseHostname(output string) (map[string]any, error) {
	hostname := strings.TrimSpace(output)
	if hostname == "" {
		return nil, fmt.Errorf("empty hostname")
	}

	facts := map[string]any{
		"hostname": hostname,
	}

	if idx := strings.Index(hostname, "."); idx > 0 {
		facts["hostname_short"] = hostname[:idx]
		facts["domain"] = hostname[idx+1:]
	}

	return facts, nil
}

// parseOSRelease parses /etc/os-release
// Format: KEY=value or KEY="value"
func parseOSRelease(output string) (map[string]any, error) {
	if strings.TrimSpace(output) == "" {
		return nil, fmt.Errorf("empty os-release output")
	}

	osInfo := make(map[string]string)
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		osInfo[strings.TrimSpace(key)] = strings.Trim(strings.TrimSpace(value), "\"'")
	}

	if len(osInfo) == 0 {
		return nil, fmt.Errorf("no OS information found")
	}

	facts := make(map[string]any)
	for src, dst := range map[string]string{
		"NAME":        "os_name",
		"VERSION":     "os_version",
		"ID":          "os_id",
		"VERSION_ID":  "os_version_id",
		"PRETTY_NAME": "os_pretty_name",
	} {
		if v, ok := osInfo[src]; ok {
			facts[dst] = v
		}
	}
	facts["os_release"] = osInfo

	return facts, nil
}

// parseUname parses uname -a output
// Format: Linux hostname 5.15.0-76-generic #83-Ubuntu SMP Thu Jun 15 19:16:32 UTC 2023 x86_64 x86_64 x86_64 GNU/Linux
func parseUname(output string) (map[string]any, error) {
	output = strings.TrimSpace(output)
	if output == "" {
		return nil, fmt.Errorf("empty uname output")
	}

	parts := strings.Fields(output)
	if len(parts) < 3 {
		return nil, fmt.Errorf("invalid uname output format")
	}

	facts := map[string]any{
		"kernel_name":    parts[0],
		"kernel_release": parts[2],
		"uname":          output,
	}

	for i := len(parts) - 1; i >= 0; i-- {
		switch parts[i] {
		case "x86_64", "aarch64", "arm64", "armv7l", "riscv64":
			facts["architecture"] = parts[i]
			return facts, nil
		}
	}

	return facts, nil
}

func parseNproc(output string) (map[string]any, error) {
	n, err := strconv.Atoi(strings.TrimSpace(output))
	if err != nil || n <= 0 {
		return nil, fmt.Errorf("invalid cpu count %q", strings.TrimSpace(output))
	}
	return map[string]any{"cpu_cores": n}, nil
}

// parseMeminfo reads MemTotal and MemAvailable from /proc/meminfo (values in kB)
func parseMeminfo(output string) (map[string]any, error) {
	facts := make(map[string]any)
	for _, line := range strings.Split(output, "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		kb, err := strconv.ParseInt(fields[1], 10, 64)
		if err != nil {
			continue
		}
		switch fields[0] {
		case "MemTotal:":
			facts["memory_mb"] = kb / 1024
		case "MemAvailable:":
			facts["memory_available_mb"] = kb / 1024
		}
	}
	if len(facts) == 0 {
		return nil, fmt.Errorf("no memory information found")
	}
	return facts, nil
}

// parseDockerCheck checks if Docker is running
// Output: container ID if running, empty if not
func parseDockerCheck(output string) (map[string]any, error) {
	return map[string]any{
		"has_docker": strings.TrimSpace(output) != "",
	}, nil
}

// parseK8sCheck checks if Kubernetes is present.
// The command tries kubectl first, then checks for the k3s directory.
func parseK8sCheck(output string) (map[string]any, error) {
	output = strings.TrimSpace(output)

	facts := map[string]any{
		"has_k8s": false,
	}

	if output == "" {
		return facts, nil
	}

	if strings.Contains(output, "clientVersion") || strings.Contains(output, "gitVersion") {
		facts["has_k8s"] = true
		facts["k8s_distribution"] = "k8s"

		for _, line := range strings.Split(output, "\n") {
			if !strings.Contains(line, "gitVersion") {
				continue
			}
			if idx := strings.Index(line, "v1."); idx >= 0 {
				end := idx + 2
				for end < len(line) && (line[end] >= '0' && line[end] <= '9' || line[end] == '.') {
					end++
				}
				facts["k8s_version"] = line[idx:end]
			}
			break
		}
	} else if strings.Contains(output, "k3s") {
		facts["has_k8s"] = true
		facts["k8s_distribution"] = "k3s"
	}

	return facts, nil
}
