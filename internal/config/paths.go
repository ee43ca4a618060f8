package config

import (
	"os"
	"path/filepath"
)

const (
	// EnvConfigPath names an explicit config file
	EnvConfigPath = "HOSTLINK_CONFIG"
	// ConfigFileName is looked up in the working directory
	ConfigFileName = "hostlink.yaml"
	// ConfigDirName is the directory under the XDG, home and /etc roots
	ConfigDirName = "hostlink"
)

// SearchPaths lists config file candidates, highest priority first:
// $HOSTLINK_CONFIG, the working directory, $XDG_CONFIG_HOME/hostlink,
// ~/.config/hostlink and /etc/hostlink. Every directory is checked for a YAML
// file before a TOML one.
func SearchPaths() []string {
	var paths []string
	if explicit := os.Getenv(EnvConfigPath); explicit != "" {
		paths = append(paths, explicit)
	}
	for _, name := range []string{ConfigFileName, "hostlink.toml"} {
		if abs, err := filepath.Abs(name); err == nil {
			name = abs
		}
		paths = append(paths, name)
	}
	for _, dir := range configDirs() {
		paths = append(paths,
			filepath.Join(dir, "config.yaml"),
			filepath.Join(dir, "config.toml"),
		)
	}
	return paths
}

func configDirs() []string {
	var dirs []string
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		dirs = append(dirs, filepath.Join(xdg, ConfigDirName))
	}
	if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs, filepath.Join(home, ".config", ConfigDirName))
	}
	return append(dirs, filepath.Join("/etc", ConfigDirName))
}

// FindConfigPath returns the first existing file from SearchPaths, or ""
func FindConfigPath() string {
	for _, p := range SearchPaths() {
		if isFile(p) {
			return p
		}
	}
	return ""
}

// EnsureConfigDir creates the parent directory of configPath
func EnsureConfigDir(configPath string) error {
	return os.MkdirAll(filepath.Dir(configPath), 0o755)
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
