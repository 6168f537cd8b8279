// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package config loads shell configuration.
//
// Sources, lowest precedence first: flag defaults, the YAML config file,
// flags set on the command line.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/decouple-mfe/mfeshell/internal/logging"
	"github.com/decouple-mfe/mfeshell/internal/shell"
)

// ServicesConfigKey is the subtree exposed to plugins through the config
// service.
const ServicesConfigKey = "services.config"

// Default values.
const (
	DefaultLogFormat    = "text"
	DefaultLogLevel     = "info"
	DefaultPluginsDir   = "plugins"
	DefaultInitialPath  = "/"
	DefaultRetryBase    = 100 * time.Millisecond
	DefaultFetchTimeout = 30 * time.Second
	DefaultCallTimeout  = 2 * time.Second
)

// defaults fill keys that neither the file nor the flags set.
var defaults = map[string]any{
	"log.format":                   DefaultLogFormat,
	"log.level":                    DefaultLogLevel,
	"plugins.dir":                  DefaultPluginsDir,
	"plugins.enforce-capabilities": true,
	"plugins.call-timeout":         DefaultCallTimeout,
	"remote.retry-base":            DefaultRetryBase,
	"remote.fetch-timeout":         DefaultFetchTimeout,
	"initial-path":                 DefaultInitialPath,
}

// Config is the shell configuration.
type Config struct {
	Log         LogConfig     `koanf:"log"`
	Plugins     PluginsConfig `koanf:"plugins"`
	Routes      []shell.Route `koanf:"routes"`
	Remote      RemoteConfig  `koanf:"remote"`
	Metrics     MetricsConfig `koanf:"metrics"`
	InitialPath string        `koanf:"initial-path"`
	Watch       bool          `koanf:"watch"`

	k *koanf.Koanf
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// PluginsConfig configures plugin discovery.
type PluginsConfig struct {
	Dir string `koanf:"dir"`
	// Builtin lists the compiled-in plugins to register. Empty registers all.
	Builtin []string `koanf:"builtin"`
	// Enforce restricts Lua plugins to the capabilities in their manifest.
	Enforce bool `koanf:"enforce-capabilities"`
	// CallTimeout bounds one call into a Lua script. Zero disables it.
	CallTimeout time.Duration `koanf:"call-timeout"`
}

// RemoteConfig configures plugin resolution.
type RemoteConfig struct {
	LoadTimeout  time.Duration `koanf:"load-timeout"`
	Retries      uint64        `koanf:"retries"`
	RetryBase    time.Duration `koanf:"retry-base"`
	FetchTimeout time.Duration `koanf:"fetch-timeout"`
}

// MetricsConfig configures the observability server.
type MetricsConfig struct {
	// Addr is the listen address. Empty disables the server.
	Addr string `koanf:"addr"`
}

// flagKeys maps flag names to configuration keys.
var flagKeys = map[string]string{
	"log-format":           "log.format",
	"log-level":            "log.level",
	"plugins-dir":          "plugins.dir",
	"enforce-capabilities": "plugins.enforce-capabilities",
	"lua-call-timeout":     "plugins.call-timeout",
	"load-timeout":         "remote.load-timeout",
	"retries":              "remote.retries",
	"retry-base":           "remote.retry-base",
	"fetch-timeout":        "remote.fetch-timeout",
	"metrics-addr":         "metrics.addr",
	"initial-path":         "initial-path",
	"watch":                "watch",
}

// RegisterFlags adds the configuration flags to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("log-format", DefaultLogFormat, "log format (json or text)")
	fs.String("log-level", DefaultLogLevel, "log level (debug, info, warn, error)")
	fs.String("plugins-dir", DefaultPluginsDir, "directory scanned for plugin manifests")
	fs.Bool("enforce-capabilities", true, "restrict Lua plugins to their declared capabilities")
	fs.Duration("lua-call-timeout", DefaultCallTimeout, "bound on one call into a Lua plugin (0 = none)")
	fs.Duration("load-timeout", 0, "bound on a single plugin load (0 = none)")
	fs.Uint64("retries", 0, "retries for a failing plugin load")
	fs.Duration("retry-base", DefaultRetryBase, "initial backoff between load retries")
	fs.Duration("fetch-timeout", DefaultFetchTimeout, "timeout for fetching remote plugin source")
	fs.String("metrics-addr", "", "metrics/health HTTP address (empty = disabled)")
	fs.String("initial-path", DefaultInitialPath, "shell path to open at startup")
	fs.Bool("watch", false, "reload Lua plugins when their files change")
}

// Load reads path (if not empty) and then the flags in fs.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			if errors.Is(err, os.ErrNotExist) {
				return nil, oops.In("config").With("path", path).Hint("config file not found").Wrap(err)
			}
			return nil, oops.In("config").With("path", path).Hint("failed to parse config file").Wrap(err)
		}
	}

	if fs != nil {
		provider := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			return key, posflag.FlagVal(fs, f)
		})
		if err := k.Load(provider, nil); err != nil {
			return nil, oops.In("config").Hint("failed to load flags").Wrap(err)
		}
	}

	for key, val := range defaults {
		if !k.Exists(key) {
			if err := k.Set(key, val); err != nil {
				return nil, oops.In("config").With("key", key).Wrap(err)
			}
		}
	}

	cfg := &Config{k: k}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, oops.In("config").Hint("failed to decode config").Wrap(err)
	}
	if len(cfg.Routes) == 0 {
		cfg.Routes = shell.DefaultRoutes()
	}
	if err := cfg.Validate(); err != nil {
		return nil, oops.In("config").Wrap(err)
	}
	return cfg, nil
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.Log.Format != "json" && c.Log.Format != "text" {
		return fmt.Errorf("log.format must be 'json' or 'text', got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Plugins.CallTimeout < 0 {
		return fmt.Errorf("plugins.call-timeout must not be negative")
	}
	if c.Remote.LoadTimeout < 0 {
		return fmt.Errorf("remote.load-timeout must not be negative")
	}
	if _, err := shell.NewRouteTable(c.Routes); err != nil {
		return fmt.Errorf("routes: %w", err)
	}
	if c.InitialPath == "" || c.InitialPath[0] != '/' {
		return fmt.Errorf("initial-path must start with '/', got %q", c.InitialPath)
	}
	return nil
}

// Koanf returns the loaded configuration tree.
func (c *Config) Koanf() *koanf.Koanf {
	if c.k == nil {
		c.k = koanf.New(".")
	}
	return c.k
}

// BuiltinEnabled reports whether the compiled-in plugin name should be
// registered.
func (c *Config) BuiltinEnabled(name string) bool {
	if len(c.Plugins.Builtin) == 0 {
		return true
	}
	for _, b := range c.Plugins.Builtin {
		if b == name {
			return true
		}
	}
	return false
}
