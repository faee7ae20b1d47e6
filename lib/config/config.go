// Copyright 2026 The Slurm Node Agent Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// EnvironmentVariable names the config file when --config is not given.
const EnvironmentVariable = "SLURMD_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	Development Environment = "development"
	Staging     Environment = "staging"
	Production  Environment = "production"
)

// Config is the agent's local configuration.
type Config struct {
	Environment Environment `yaml:"environment"`

	Node       NodeConfig       `yaml:"node"`
	Controller ControllerConfig `yaml:"controller"`
	Paths      PathsConfig      `yaml:"paths"`
	RPC        RPCConfig        `yaml:"rpc"`
	Credential CredentialConfig `yaml:"credential"`
	Logging    LoggingConfig    `yaml:"logging"`
	Metrics    MetricsConfig    `yaml:"metrics"`

	// Per-environment overrides, applied after the base config loads.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides holds the fields an environment section may change.
type ConfigOverrides struct {
	Logging *LoggingConfig `yaml:"logging,omitempty"`
	RPC     *RPCConfig     `yaml:"rpc,omitempty"`
}

// NodeConfig describes this node.
type NodeConfig struct {
	// Name is the node name reported to the controller. Default: the
	// machine hostname.
	Name string `yaml:"name"`

	// ListenAddress is where the RPC engine binds. An empty host part
	// binds all interfaces; an empty address uses the SlurmdPort from
	// the cluster config.
	ListenAddress string `yaml:"listen_address"`

	// TmpDir is the scratch filesystem sized for registration.
	// Default: /tmp
	TmpDir string `yaml:"tmp_dir"`
}

// ControllerConfig controls how the controller is found.
type ControllerConfig struct {
	// Server is a static controller address ("host" or "host:port").
	// Empty means discover it through the _slurmctld._tcp SRV record.
	Server string `yaml:"server"`

	// ResolvConf is the resolver configuration used for discovery.
	// Default: /etc/resolv.conf
	ResolvConf string `yaml:"resolv_conf"`

	// VolatileBootstrap keeps the bootstrap config in an anonymous
	// memory file rather than on disk.
	VolatileBootstrap bool `yaml:"volatile_bootstrap"`

	// RegisterTimeout bounds the node registration call at startup.
	// Default: 10s
	RegisterTimeout time.Duration `yaml:"register_timeout"`
}

// PathsConfig configures directory and file locations.
type PathsConfig struct {
	// SpoolDir holds agent state. Default: /var/spool/slurmd
	SpoolDir string `yaml:"spool_dir"`

	// ConfigCache receives the fetched config bundle.
	// Default: ${SLURMD_SPOOL}/conf-cache
	ConfigCache string `yaml:"config_cache"`

	// ClusterConfig is a provisioned main config. When it exists the
	// configless bootstrap is skipped.
	ClusterConfig string `yaml:"cluster_config"`
}

// RPCConfig tunes the message engine.
type RPCConfig struct {
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	MaxRequestSize int64         `yaml:"max_request_size"`
}

// CredentialConfig configures job credential checks.
type CredentialConfig struct {
	// PublicKeyFile holds the controller's raw 32-byte Ed25519 public
	// key. Empty disables signature checks.
	PublicKeyFile string `yaml:"public_key_file"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level"`

	// Format is json or text.
	Format string `yaml:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// ListenAddress serves /metrics. Empty disables the endpoint.
	ListenAddress string `yaml:"listen_address"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		Environment: Production,
		Node: NodeConfig{
			TmpDir: "/tmp",
		},
		Controller: ControllerConfig{
			ResolvConf:      "/etc/resolv.conf",
			RegisterTimeout: 10 * time.Second,
		},
		Paths: PathsConfig{
			SpoolDir:      "/var/spool/slurmd",
			ConfigCache:   "${SLURMD_SPOOL}/conf-cache",
			ClusterConfig: "/etc/slurm/slurm.conf",
		},
		RPC: RPCConfig{
			ReadTimeout:    30 * time.Second,
			WriteTimeout:   10 * time.Second,
			MaxRequestSize: 4 << 20,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load loads the file named by SLURMD_CONFIG, or returns the expanded
// defaults when the variable is unset.
func Load() (*Config, error) {
	path := os.Getenv(EnvironmentVariable)
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, nil
	}
	return LoadFile(path)
}

// LoadFile loads configuration from path over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()
	return cfg, nil
}

func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides
	switch c.Environment {
	case Development:
		overrides = c.Development
		// Development defaults: readable, chatty logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Level: "debug", Format: "text"},
			}
		}
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
	}
	if overrides == nil {
		return
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}
	if overrides.RPC != nil {
		if overrides.RPC.ReadTimeout != 0 {
			c.RPC.ReadTimeout = overrides.RPC.ReadTimeout
		}
		if overrides.RPC.WriteTimeout != 0 {
			c.RPC.WriteTimeout = overrides.RPC.WriteTimeout
		}
		if overrides.RPC.MaxRequestSize != 0 {
			c.RPC.MaxRequestSize = overrides.RPC.MaxRequestSize
		}
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}
	c.Paths.SpoolDir = expandVars(c.Paths.SpoolDir, vars)
	vars["SLURMD_SPOOL"] = c.Paths.SpoolDir

	c.Paths.ConfigCache = expandVars(c.Paths.ConfigCache, vars)
	c.Paths.ClusterConfig = expandVars(c.Paths.ClusterConfig, vars)
	c.Node.TmpDir = expandVars(c.Node.TmpDir, vars)
	c.Controller.ResolvConf = expandVars(c.Controller.ResolvConf, vars)
	c.Credential.PublicKeyFile = expandVars(c.Credential.PublicKeyFile, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		name := parts[1]
		defaultValue := parts[2]

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

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}
	if c.Paths.SpoolDir == "" {
		errs = append(errs, errors.New("paths.spool_dir is required"))
	} else if !filepath.IsAbs(c.Paths.SpoolDir) {
		errs = append(errs, fmt.Errorf("paths.spool_dir must be absolute, got %q", c.Paths.SpoolDir))
	}
	if c.Paths.ConfigCache == "" {
		errs = append(errs, errors.New("paths.config_cache is required"))
	}
	if _, err := ParseLevel(c.Logging.Level); err != nil {
		errs = append(errs, err)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "text" {
		errs = append(errs, fmt.Errorf("logging.format must be json or text, got %q", c.Logging.Format))
	}
	if c.RPC.ReadTimeout < 0 || c.RPC.WriteTimeout < 0 {
		errs = append(errs, errors.New("rpc timeouts must not be negative"))
	}
	if c.RPC.MaxRequestSize < 0 {
		errs = append(errs, errors.New("rpc.max_request_size must not be negative"))
	}

	return errors.Join(errs...)
}

// EnsurePaths creates the spool and cache directories.
func (c *Config) EnsurePaths() error {
	for _, path := range []string{c.Paths.SpoolDir, c.Paths.ConfigCache} {
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}
	return nil
}

// ParseLevel converts a level name to a slog.Level.
func ParseLevel(name string) (slog.Level, error) {
	switch strings.ToLower(name) {
	case "debug":
		return slog.LevelDebug, nil
	case "info", "":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	return 0, fmt.Errorf("logging.level must be debug, info, warn, or error, got %q", name)
}
