package facts

import (
	"testing"
)

func checkFacts(t *testing.T, fn string, facts map[string]any, checks map[string]any) {
	t.Helper()
	for key, want := range checks {
		got, ok := facts[key]
		if !ok {
			t.Errorf("%s() missing key %s", fn, key)
			continue
		}
		if got != want {
			t.Errorf("%s() key %s = %v, want %v", fn, key, got, want)
		}
	}
}

func TestParseOSRelease(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checks  map[string]any
	}{
		{
			name: "ubuntu",
			input: `NAME="Ubuntu"
VERSION="22.04.3 LTS (Jammy Jellyfish)"
ID=ubuntu
ID_LIKE=debian
PRETTY_NAME="Ubuntu 22.04.3 LTS"
VERSION_ID="22.04"
HOME_URL="https://www.ubuntu.com/"`,
			checks: map[string]any{
				"os_name":       "Ubuntu",
				"os_id":         "ubuntu",
				"os_version_id": "22.04",
			},
		},
		{
			name: "alpine with comments",
			input: `# generated
NAME="Alpine Linux"
ID=alpine
VERSION_ID=3.19.1`,
			checks: map[string]any{
				"os_name":       "Alpine Linux",
				"os_version_id": "3.19.1",
			},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "invalid", input: "not a valid os-release file", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := parseOSRelease(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseOSRelease() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			checkFacts(t, "parseOSRelease", facts, tt.checks)
			if _, ok := facts["os_release"].(map[string]string); !ok {
				t.Error("parseOSRelease() should keep the full os-release map")
			}
		})
	}
}

func TestParseUname(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantErr bool
		checks  map[string]any
	}{
		{
			name:  "linux x86_64",
			input: "Linux hostname 5.15.0-76-generic #83-Ubuntu SMP Thu Jun 15 19:16:32 UTC 2023 x86_64 x86_64 x86_64 GNU/Linux",
			checks: map[string]any{
				"kernel_name":    "Linux",
				"kernel_release": "5.15.0-76-generic",
				"architecture":   "x86_64",
			},
		},
		{
			name:  "linux aarch64",
			input: "Linux rpi4 6.1.21-v8+ #1642 SMP PREEMPT Mon Apr  3 17:24:16 BST 2023 aarch64 GNU/Linux",
			checks: map[string]any{
				"kernel_release": "6.1.21-v8+",
				"architecture":   "aarch64",
			},
		},
		{name: "empty", input: "", wantErr: true},
		{name: "too short", input: "Linux hostname", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := parseUname(tt.input)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseUname() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr {
				checkFacts(t, "parseUname", facts, tt.checks)
			}
		})
	}
}

func TestParseHostname(t *testing.T) {
	facts, err := parseHostname("web-1.lab.example.com\n")
	if err != nil {
		t.Fatalf("parseHostname() error = %v", err)
	}
	checkFacts(t, "parseHostname", facts, map[string]any{
		"hostname":       "web-1.lab.example.com",
		"hostname_short": "web-1",
		"domain":         "lab.example.com",
	})

	if _, err := parseHostname("  "); err == nil {
		t.Error("parseHostname() should reject empty output")
	}
}

func TestParseMeminfo(t *testing.T) {
	facts, err := parseMeminfo(`MemTotal:       16318480 kB
MemFree:         1234567 kB
MemAvailable:    8159240 kB`)
	if err != nil {
		t.Fatalf("parseMeminfo() error = %v", err)
	}
	checkFacts(t, "parseMeminfo", facts, map[string]any{
		"memory_mb":           int64(15936),
		"memory_available_mb": int64(7968),
	})

	if _, err := parseMeminfo("garbage"); err == nil {
		t.Error("parseMeminfo() should fail without MemTotal")
	}
}

func TestParseNproc(t *testing.T) {
	facts, err := parseNproc("8\n")
	if err != nil {
		t.Fatalf("parseNproc() error = %v", err)
	}
	checkFacts(t, "parseNproc", facts, map[string]any{"cpu_cores": 8})

	for _, bad := range []string{"", "zero", "0"} {
		if _, err := parseNproc(bad); err == nil {
			t.Errorf("parseNproc(%q) should fail", bad)
		}
	}
}

func TestParseDockerCheck(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"a1b2c3d4e5f6\n", true},
		{"", false},
		{"   \n", false},
	}
	for _, tt := range tests {
		facts, _ := parseDockerCheck(tt.input)
		if facts["has_docker"] != tt.want {
			t.Errorf("parseDockerCheck(%q) has_docker = %v, want %v", tt.input, facts["has_docker"], tt.want)
		}
	}
}

func TestParseK8sCheck(t *testing.T) {
	tests := []struct {
		name   string
		input  string
		checks map[string]any
	}{
		{
			name: "kubectl",
			input: `clientVersion:
  gitVersion: v1.28.4
  major: "1"`,
			checks: map[string]any{"has_k8s": true, "k8s_distribution": "k8s", "k8s_version": "v1.28.4"},
		},
		{
			name:   "k3s directory",
			input:  "/etc/rancher/k3s/k3s.yaml",
			checks: map[string]any{"has_k8s": true, "k8s_distribution": "k3s"},
		},
		{
			name:   "nothing",
			input:  "",
			checks: map[string]any{"has_k8s": false},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			facts, err := parseK8sCheck(tt.input)
			if err != nil {
				t.Fatalf("parseK8sCheck() error = %v", err)
			}
			checkFacts(t, "parseK8sCheck", facts, tt.checks)
		})
	}
}
