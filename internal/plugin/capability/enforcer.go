// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package capability restricts which shell services a scripted plugin may
// use.
//
// Capabilities are dotted names such as "navigate", "track" or
// "config.apiUrl". A plugin's manifest grants them with gobwas/glob
// patterns using '.' as the separator: '*' matches one segment, so
// "config.*" matches "config.env" but not "config.db.password", while '**'
// matches any number of segments.
package capability

import (
	"fmt"
	"slices"
	"sync"

	"github.com/gobwas/glob"
	"github.com/samber/oops"
)

// CodeDenied is the oops code of a capability check that failed.
const CodeDenied = "CAPABILITY_DENIED"

// Capabilities checked by the Lua shell bindings.
const (
	Navigate = "navigate"
	Track    = "track"
	Auth     = "auth"
	Log      = "log"
)

// Config returns the capability for reading config key.
func Config(key string) string {
	return "config." + key
}

// Policy is the compiled set of grants of one plugin. The zero Policy
// allows nothing.
type Policy struct {
	patterns []string
	globs    []glob.Glob
}

// Compile builds a Policy from manifest patterns.
func Compile(patterns []string) (*Policy, error) {
	p := &Policy{
		patterns: slices.Clone(patterns),
		globs:    make([]glob.Glob, 0, len(patterns)),
	}
	for i, pattern := range patterns {
		if pattern == "" {
			return nil, fmt.Errorf("capability %d: empty pattern", i)
		}
		g, err := glob.Compile(pattern, '.')
		if err != nil {
			return nil, fmt.Errorf("capability %d (%q): %w", i, pattern, err)
		}
		p.globs = append(p.globs, g)
	}
	return p, nil
}

// Allows reports whether a grant matches capability. The empty capability
// is never allowed.
func (p *Policy) Allows(capability string) bool {
	if p == nil || capability == "" {
		return false
	}
	for _, g := range p.globs {
		if g.Match(capability) {
			return true
		}
	}
	return false
}

// Patterns returns a copy of the grant patterns.
func (p *Policy) Patterns() []string {
	if p == nil {
		return nil
	}
	return slices.Clone(p.patterns)
}

// Enforcer holds the policy of every compiled plugin and denies plugins it
// has no policy for. It is safe for concurrent use; the zero value is
// ready.
type Enforcer struct {
	mu       sync.RWMutex
	policies map[string]*Policy
}

// NewEnforcer creates an Enforcer with no policies.
func NewEnforcer() *Enforcer {
	return &Enforcer{policies: make(map[string]*Policy)}
}

// SetGrants compiles capabilities and makes them the policy of plugin,
// replacing any earlier one. On error the old policy stays.
func (e *Enforcer) SetGrants(plugin string, capabilities []string) error {
	if plugin == "" {
		return fmt.Errorf("plugin name cannot be empty")
	}
	p, err := Compile(capabilities)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.policies == nil {
		e.policies = make(map[string]*Policy)
	}
	e.policies[plugin] = p
	return nil
}

// Policy returns the policy of plugin.
func (e *Enforcer) Policy(plugin string) (*Policy, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	p, ok := e.policies[plugin]
	return p, ok
}

// Check reports whether plugin holds capability.
func (e *Enforcer) Check(plugin, capability string) bool {
	p, _ := e.Policy(plugin)
	return p.Allows(capability)
}

// Require is Check returning a CodeDenied error naming the plugin and the
// missing capability.
func (e *Enforcer) Require(plugin, capability string) error {
	if e.Check(plugin, capability) {
		return nil
	}
	return oops.Code(CodeDenied).
		In("capability").
		With("plugin", plugin).
		With("capability", capability).
		Errorf("plugin %s lacks capability %q", plugin, capability)
}
