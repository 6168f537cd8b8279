// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package lua runs micro-frontends written in Lua inside sandboxed states.
package lua

import (
	"context"
	"fmt"
	"time"

	lua "github.com/yuin/gopher-lua"
)

type safeLibrary struct {
	name string
	fn   lua.LGFunction
}

// defaultSafeLibraries leaves out os, io, debug, package, coroutine and
// channel.
func defaultSafeLibraries() []safeLibrary {
	return []safeLibrary{
		{lua.BaseLibName, lua.OpenBase},
		{lua.TabLibName, lua.OpenTable},
		{lua.StringLibName, lua.OpenString},
		{lua.MathLibName, lua.OpenMath},
	}
}

// blockedGlobals are base functions that load code or reach the filesystem.
var blockedGlobals = []string{"dofile", "loadfile", "loadstring", "load", "require", "collectgarbage"}

// Limits bounds what one plugin script may consume.
type Limits struct {
	CallStackSize int
	RegistrySize  int
	// CallTimeout bounds one call into the script: loading it, a render or
	// a lifecycle hook. Zero means unbounded.
	CallTimeout time.Duration
}

// DefaultLimits suit scripts that render text and keep little state.
func DefaultLimits() Limits {
	return Limits{
		CallStackSize: 120,
		RegistrySize:  1024 * 20,
		CallTimeout:   2 * time.Second,
	}
}

// Sandbox opens restricted Lua states and runs script calls within its
// limits.
type Sandbox struct {
	libraries []safeLibrary
	limits    Limits
}

// NewSandbox creates a sandbox with limits.
func NewSandbox(limits Limits) *Sandbox {
	return &Sandbox{
		libraries: defaultSafeLibraries(),
		limits:    limits,
	}
}

// Limits returns the sandbox limits.
func (s *Sandbox) Limits() Limits {
	return s.limits
}

// Open creates a state with only the safe libraries and no blocked globals.
func (s *Sandbox) Open() (*lua.LState, error) {
	L := lua.NewState(lua.Options{
		SkipOpenLibs:  true,
		CallStackSize: s.limits.CallStackSize,
		RegistrySize:  s.limits.RegistrySize,
	})

	for _, lib := range s.libraries {
		err := L.CallByParam(lua.P{
			Fn:      L.NewFunction(lib.fn),
			NRet:    0,
			Protect: true,
		}, lua.LString(lib.name))
		if err != nil {
			L.Close()
			return nil, fmt.Errorf("failed to open library %s: %w", lib.name, err)
		}
	}
	for _, name := range blockedGlobals {
		L.SetGlobal(name, lua.LNil)
	}
	return L, nil
}

// Run calls fn with L bound to ctx, cut short after CallTimeout. A script
// still running when ctx ends fails with a Lua error.
func (s *Sandbox) Run(ctx context.Context, L *lua.LState, fn func() error) error {
	if s.limits.CallTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.limits.CallTimeout)
		defer cancel()
	}
	L.SetContext(ctx)
	defer L.RemoveContext()
	return fn()
}
