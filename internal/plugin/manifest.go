// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package plugin

import (
	"fmt"
	"net/url"
	"path"
	"regexp"
	"strings"

	"github.com/Masterminds/semver/v3"
	"gopkg.in/yaml.v3"

	"github.com/decouple-mfe/mfeshell/internal/plugin/capability"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Type identifies the plugin runtime.
type Type string

// Plugin types supported by the shell.
const (
	// TypeLua plugins are Lua scripts run in a sandboxed state.
	TypeLua Type = "lua"
	// TypeGo plugins are compiled into the shell binary; their manifest
	// only carries metadata.
	TypeGo Type = "go"
)

// Manifest represents a plugin.yaml file.
type Manifest struct {
	Name    string `yaml:"name" jsonschema:"pattern=^[A-Za-z]([A-Za-z0-9-]*[A-Za-z0-9])?$,maxLength=64"`
	Version string `yaml:"version" jsonschema:"minLength=1"`
	Type    Type   `yaml:"type" jsonschema:"enum=lua,enum=go"`
	// Contract is a semver constraint the host contract version must satisfy.
	Contract    string `yaml:"contract,omitempty"`
	Title       string `yaml:"title,omitempty"`
	Description string `yaml:"description,omitempty"`
	// Capabilities lists the shell services a Lua plugin may use, as glob
	// patterns over names like "navigate" or "config.env".
	Capabilities []string   `yaml:"capabilities,omitempty"`
	LuaPlugin    *LuaConfig `yaml:"lua-plugin,omitempty"`
}

// LuaConfig locates the script of a Lua plugin. Exactly one of Entry and
// URL is set.
type LuaConfig struct {
	// Entry is a path relative to the plugin directory.
	Entry string `yaml:"entry,omitempty"`
	// URL is fetched over HTTP when the plugin is first resolved.
	URL string `yaml:"url,omitempty" jsonschema:"format=uri"`
}

// maxNameLength is the maximum allowed length for plugin names.
const maxNameLength = 64

// namePattern validates plugin names: must start with a letter, followed by
// letters, digits, or hyphens. Cannot end with a hyphen.
var namePattern = regexp.MustCompile(`^[A-Za-z]([A-Za-z0-9-]*[A-Za-z0-9])?$`)

// ParseManifest parses and validates a plugin.yaml file.
func ParseManifest(data []byte) (*Manifest, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("manifest data is empty")
	}

	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("invalid YAML: %w", err)
	}

	if err := m.Validate(); err != nil {
		return nil, err
	}

	return &m, nil
}

// Validate checks manifest constraints.
func (m *Manifest) Validate() error {
	if m.Name == "" || !namePattern.MatchString(m.Name) {
		return fmt.Errorf("name %q must start with a letter, contain only letters, digits, hyphens, and not end with a hyphen", m.Name)
	}
	if len(m.Name) > maxNameLength {
		return fmt.Errorf("name must be %d characters or less, got %d", maxNameLength, len(m.Name))
	}

	if m.Version == "" {
		return fmt.Errorf("version is required")
	}
	if _, err := semver.NewVersion(m.Version); err != nil {
		return fmt.Errorf("version %q is not a semantic version: %w", m.Version, err)
	}

	if m.Contract != "" {
		if _, err := semver.NewConstraint(m.Contract); err != nil {
			return fmt.Errorf("contract %q is not a version constraint: %w", m.Contract, err)
		}
	}

	if _, err := capability.Compile(m.Capabilities); err != nil {
		return fmt.Errorf("capabilities: %w", err)
	}

	switch m.Type {
	case TypeLua:
		if m.LuaPlugin == nil {
			return fmt.Errorf("lua-plugin is required when type is lua")
		}
		return m.LuaPlugin.validate()
	case TypeGo:
		if m.LuaPlugin != nil {
			return fmt.Errorf("lua-plugin is not allowed when type is go")
		}
	default:
		return fmt.Errorf("type must be 'lua' or 'go', got %q", m.Type)
	}

	return nil
}

func (c *LuaConfig) validate() error {
	switch {
	case c.Entry == "" && c.URL == "":
		return fmt.Errorf("lua-plugin.entry or lua-plugin.url is required")
	case c.Entry != "" && c.URL != "":
		return fmt.Errorf("lua-plugin.entry and lua-plugin.url are mutually exclusive")
	case c.Entry != "":
		clean := path.Clean(c.Entry)
		if path.IsAbs(clean) || clean == ".." || strings.HasPrefix(clean, "../") {
			return fmt.Errorf("lua-plugin.entry %q must stay inside the plugin directory", c.Entry)
		}
	default:
		u, err := url.Parse(c.URL)
		if err != nil {
			return fmt.Errorf("lua-plugin.url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("lua-plugin.url must use http or https, got %q", u.Scheme)
		}
	}
	return nil
}

// Compatible reports whether the manifest accepts the host contract version.
// A manifest without a constraint accepts any version.
func (m *Manifest) Compatible(contractVersion string) error {
	if m.Contract == "" {
		return nil
	}
	c, err := semver.NewConstraint(m.Contract)
	if err != nil {
		return fmt.Errorf("contract %q is not a version constraint: %w", m.Contract, err)
	}
	v, err := semver.NewVersion(contractVersion)
	if err != nil {
		return fmt.Errorf("host contract version %q: %w", contractVersion, err)
	}
	if ok, errs := c.Validate(v); !ok {
		if len(errs) > 0 {
			return fmt.Errorf("plugin %s requires contract %s: %w", m.Name, m.Contract, errs[0])
		}
		return fmt.Errorf("plugin %s requires contract %s, host provides %s", m.Name, m.Contract, contractVersion)
	}
	return nil
}

// CompatibleWithHost checks the manifest against contract.ContractVersion.
func (m *Manifest) CompatibleWithHost() error {
	return m.Compatible(contract.ContractVersion)
}
