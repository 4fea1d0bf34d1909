// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// EnvVar names the environment variable holding the config file path.
const EnvVar = "ACONFIGD_CONFIG"

// Role identifies which aconfigd instance a configuration drives.
type Role string

const (
	// RoleSystem manages the platform partitions.
	RoleSystem Role = "system"
	// RoleMainline manages apex containers.
	RoleMainline Role = "mainline"
)

// Config is the daemon configuration.
type Config struct {
	// Role selects the system or mainline instance. It picks the
	// default socket name and records file, and which role section
	// of the file applies.
	Role Role `yaml:"role"`

	// Storage configures where daemon-owned storage files live.
	Storage StorageConfig `yaml:"storage"`

	// Containers configures where default storage files are found.
	Containers ContainersConfig `yaml:"containers"`

	// Socket configures the control socket.
	Socket SocketConfig `yaml:"socket"`

	// Build configures how the device build fingerprint is read.
	Build BuildConfig `yaml:"build"`

	// Log configures daemon logging.
	Log LogConfig `yaml:"log"`

	// Per-role overrides, applied after the base config is loaded.
	System   *ConfigOverrides `yaml:"system,omitempty"`
	Mainline *ConfigOverrides `yaml:"mainline,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per role.
type ConfigOverrides struct {
	Storage *StorageConfig `yaml:"storage,omitempty"`
	Socket  *SocketConfig  `yaml:"socket,omitempty"`
	Log     *LogConfig     `yaml:"log,omitempty"`
}

// StorageConfig configures the storage root.
type StorageConfig struct {
	// Root holds the flags/, maps/, and boot/ directories.
	// Default: /metadata/aconfig
	Root string `yaml:"root"`

	// Records is the persisted storage records file.
	// Default: ${ACONFIGD_ROOT}/storage_records.cbor for the system
	// role, ${ACONFIGD_ROOT}/mainline_storage_records.cbor for mainline.
	Records string `yaml:"records"`
}

// ContainersConfig configures container discovery.
type ContainersConfig struct {
	// Platform lists the partitions initialized by platform-init.
	Platform []string `yaml:"platform"`

	// PartitionsRoot is the directory holding the platform partitions.
	// Default storage files are read from
	// <partitions_root>/<partition>/etc/aconfig/.
	PartitionsRoot string `yaml:"partitions_root"`

	// ApexDir is where apexes are mounted. Default: /apex
	ApexDir string `yaml:"apex_dir"`

	// BootstrapApexDir is where bootstrap apexes are mounted.
	// Default: /bootstrap-apex
	BootstrapApexDir string `yaml:"bootstrap_apex_dir"`
}

// SocketConfig configures the control socket.
type SocketConfig struct {
	// Name is the init socket name. When ANDROID_SOCKET_<name> is set
	// the daemon serves on that descriptor instead of binding Path.
	// Default: aconfigd_<role>
	Name string `yaml:"name"`

	// Path is the socket bound when no init socket is passed.
	// Default: /dev/socket/<name>
	Path string `yaml:"path"`

	// Mode is the octal permission of a bound socket. Default: 0660
	Mode string `yaml:"mode"`
}

// BuildConfig configures the build fingerprint lookup.
type BuildConfig struct {
	// PropFile is the build.prop file. Default: /system/build.prop
	PropFile string `yaml:"prop_file"`

	// FingerprintProperty names the fingerprint property.
	// Default: ro.build.fingerprint
	FingerprintProperty string `yaml:"fingerprint_property"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level"`

	// Format is json or text. Default: json
	Format string `yaml:"format"`
}

// Default returns the default configuration of the system role.
// Role-derived fields are left empty until the config is finalized by
// Load or LoadFile.
func Default() *Config {
	return &Config{
		Role: RoleSystem,
		Storage: StorageConfig{
			Root: "/metadata/aconfig",
		},
		Containers: ContainersConfig{
			Platform:         []string{"system", "system_ext", "product", "vendor"},
			PartitionsRoot:   "/",
			ApexDir:          "/apex",
			BootstrapApexDir: "/bootstrap-apex",
		},
		Socket: SocketConfig{
			Mode: "0660",
		},
		Build: BuildConfig{
			PropFile:            "/system/build.prop",
			FingerprintProperty: "ro.build.fingerprint",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads configuration from the file named by ACONFIGD_CONFIG.
// When the variable is not set the defaults are used: init starts the
// daemon without arguments on devices that ship no config file.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvVar)
	if configPath == "" {
		cfg := Default()
		cfg.finalize()
		return cfg, nil
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merged over
// Default.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}
	cfg.finalize()
	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// finalize applies the role section, fills role-derived defaults, and
// expands variables.
func (c *Config) finalize() {
	c.applyRoleOverrides()
	c.applyRoleDefaults()
	c.expandVariables()
}

// applyRoleOverrides applies the section matching the role.
func (c *Config) applyRoleOverrides() {
	var overrides *ConfigOverrides
	switch c.Role {
	case RoleSystem:
		overrides = c.System
	case RoleMainline:
		overrides = c.Mainline
	}
	if overrides == nil {
		return
	}

	if overrides.Storage != nil {
		if overrides.Storage.Root != "" {
			c.Storage.Root = overrides.Storage.Root
		}
		if overrides.Storage.Records != "" {
			c.Storage.Records = overrides.Storage.Records
		}
	}

	if overrides.Socket != nil {
		if overrides.Socket.Name != "" {
			c.Socket.Name = overrides.Socket.Name
		}
		if overrides.Socket.Path != "" {
			c.Socket.Path = overrides.Socket.Path
		}
		if overrides.Socket.Mode != "" {
			c.Socket.Mode = overrides.Socket.Mode
		}
	}

	if overrides.Log != nil {
		if overrides.Log.Level != "" {
			c.Log.Level = overrides.Log.Level
		}
		if overrides.Log.Format != "" {
			c.Log.Format = overrides.Log.Format
		}
	}
}

// applyRoleDefaults fills the fields whose defaults depend on the role.
func (c *Config) applyRoleDefaults() {
	if c.Socket.Name == "" {
		c.Socket.Name = "aconfigd_" + string(c.Role)
	}
	if c.Socket.Path == "" {
		c.Socket.Path = "/dev/socket/" + c.Socket.Name
	}
	if c.Storage.Records == "" {
		if c.Role == RoleMainline {
			c.Storage.Records = "${ACONFIGD_ROOT}/mainline_storage_records.cbor"
		} else {
			c.Storage.Records = "${ACONFIGD_ROOT}/storage_records.cbor"
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"ACONFIGD_ROOT": c.Storage.Root,
		"HOME":          os.Getenv("HOME"),
	}

	c.Storage.Root = expandVars(c.Storage.Root, vars)
	vars["ACONFIGD_ROOT"] = c.Storage.Root // Update for dependent paths.

	c.Storage.Records = expandVars(c.Storage.Records, vars)
	c.Containers.PartitionsRoot = expandVars(c.Containers.PartitionsRoot, vars)
	c.Containers.ApexDir = expandVars(c.Containers.ApexDir, vars)
	c.Containers.BootstrapApexDir = expandVars(c.Containers.BootstrapApexDir, vars)
	c.Socket.Path = expandVars(c.Socket.Path, vars)
	c.Build.PropFile = expandVars(c.Build.PropFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Role != RoleSystem && c.Role != RoleMainline {
		errs = append(errs, fmt.Errorf("invalid role: %q", c.Role))
	}

	if c.Storage.Root == "" {
		errs = append(errs, errors.New("storage.root is required"))
	} else if !filepath.IsAbs(c.Storage.Root) {
		errs = append(errs, fmt.Errorf("storage.root must be absolute: %s", c.Storage.Root))
	}
	if c.Storage.Records == "" {
		errs = append(errs, errors.New("storage.records is required"))
	}

	for _, container := range c.Containers.Platform {
		if container == "" || strings.ContainsRune(container, '/') {
			errs = append(errs, fmt.Errorf("containers.platform: invalid container name %q", container))
		}
	}
	if c.Containers.PartitionsRoot == "" {
		errs = append(errs, errors.New("containers.partitions_root is required"))
	}
	if c.Containers.ApexDir == "" {
		errs = append(errs, errors.New("containers.apex_dir is required"))
	}
	if c.Containers.BootstrapApexDir == "" {
		errs = append(errs, errors.New("containers.bootstrap_apex_dir is required"))
	}

	if c.Socket.Name == "" && c.Socket.Path == "" {
		errs = append(errs, errors.New("socket.name or socket.path is required"))
	}
	if _, err := c.SocketMode(); err != nil {
		errs = append(errs, err)
	}

	if c.Build.FingerprintProperty == "" {
		errs = append(errs, errors.New("build.fingerprint_property is required"))
	}

	if _, err := c.LogLevel(); err != nil {
		errs = append(errs, err)
	}
	if c.Log.Format != "json" && c.Log.Format != "text" {
		errs = append(errs, fmt.Errorf("log.format must be json or text, got %q", c.Log.Format))
	}

	return errors.Join(errs...)
}

// SocketMode parses Socket.Mode as an octal permission. Empty means
// no explicit mode.
func (c *Config) SocketMode() (fs.FileMode, error) {
	if c.Socket.Mode == "" {
		return 0, nil
	}
	mode, err := strconv.ParseUint(c.Socket.Mode, 8, 32)
	if err != nil || mode > 0o777 {
		return 0, fmt.Errorf("socket.mode must be an octal permission, got %q", c.Socket.Mode)
	}
	return fs.FileMode(mode), nil
}

// LogLevel parses Log.Level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}

// StorageDirs returns the directories the daemon writes under the
// storage root.
func (c *Config) StorageDirs() []string {
	return []string{
		filepath.Join(c.Storage.Root, "flags"),
		filepath.Join(c.Storage.Root, "maps"),
		filepath.Join(c.Storage.Root, "boot"),
	}
}

// EnsurePaths creates the storage root and its directories if they
// don't exist.
func (c *Config) EnsurePaths() error {
	paths := append([]string{c.Storage.Root, filepath.Dir(c.Storage.Records)}, c.StorageDirs()...)
	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}
