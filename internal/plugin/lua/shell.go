// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package lua

import (
	"fmt"
	"log/slog"
	"strings"
	"sync"

	lua "github.com/yuin/gopher-lua"

	"github.com/decouple-mfe/mfeshell/internal/plugin/capability"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// bindings backs the shell global of one state.
type bindings struct {
	name     string
	logger   *slog.Logger
	services contract.ServiceBag
	enforcer *capability.Enforcer

	mu      sync.Mutex
	pending []string
}

// takePending returns and clears navigations requested by the script.
func (b *bindings) takePending() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	p := b.pending
	b.pending = nil
	return p
}

// require raises a Lua error unless the plugin holds want.
func (b *bindings) require(L *lua.LState, want string) {
	if b.enforcer == nil {
		return
	}
	if err := b.enforcer.Require(b.name, want); err != nil {
		L.RaiseError("%s", err.Error())
	}
}

// registerShell installs the shell.* host functions and routes print to the
// plugin logger.
func registerShell(ls *lua.LState, b *bindings) {
	mod := ls.NewTable()

	ls.SetField(mod, "navigate", ls.NewFunction(b.navigateFn))
	ls.SetField(mod, "track", ls.NewFunction(b.trackFn))
	ls.SetField(mod, "config", ls.NewFunction(b.configFn))
	ls.SetField(mod, "is_authenticated", ls.NewFunction(b.isAuthenticatedFn))
	ls.SetField(mod, "log", ls.NewFunction(b.logFn))
	ls.SetField(mod, "name", lua.LString(b.name))

	ls.SetGlobal("shell", mod)
	ls.SetGlobal("print", ls.NewFunction(b.printFn))
}

// navigateFn queues a plugin-relative navigation. It runs after the current
// script call returns so the script is never re-entered.
func (b *bindings) navigateFn(L *lua.LState) int {
	path := L.CheckString(1)
	b.require(L, capability.Navigate)
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	b.mu.Lock()
	b.pending = append(b.pending, path)
	b.mu.Unlock()
	return 0
}

func (b *bindings) trackFn(L *lua.LState) int {
	event := L.CheckString(1)
	b.require(L, capability.Track)
	var props map[string]any
	if t, ok := L.Get(2).(*lua.LTable); ok {
		props = tableToMap(t)
	}
	if b.services.Telemetry != nil {
		b.services.Telemetry.Track(event, props)
	}
	return 0
}

func (b *bindings) configFn(L *lua.LState) int {
	key := L.CheckString(1)
	b.require(L, capability.Config(key))
	if b.services.Config == nil {
		L.Push(lua.LNil)
		return 1
	}
	v, ok := b.services.Config.Get(key)
	if !ok {
		L.Push(lua.LNil)
		return 1
	}
	L.Push(toLValue(v))
	return 1
}

func (b *bindings) isAuthenticatedFn(L *lua.LState) int {
	b.require(L, capability.Auth)
	authenticated := b.services.Auth != nil && b.services.Auth.IsAuthenticated()
	L.Push(lua.LBool(authenticated))
	return 1
}

func (b *bindings) logFn(L *lua.LState) int {
	level := L.CheckString(1)
	message := L.CheckString(2)
	b.require(L, capability.Log)

	logger := b.logger.With("plugin", b.name)
	switch level {
	case "debug":
		logger.Debug(message)
	case "info":
		logger.Info(message)
	case "warn":
		logger.Warn(message)
	case "error":
		logger.Error(message)
	default:
		logger.Info(message)
	}
	return 0
}

func (b *bindings) printFn(L *lua.LState) int {
	parts := make([]string, 0, L.GetTop())
	for i := 1; i <= L.GetTop(); i++ {
		parts = append(parts, L.ToStringMeta(L.Get(i)).String())
	}
	b.logger.Info(strings.Join(parts, "\t"), "plugin", b.name, "source", "print")
	return 0
}

func toLValue(v any) lua.LValue {
	switch val := v.(type) {
	case nil:
		return lua.LNil
	case string:
		return lua.LString(val)
	case bool:
		return lua.LBool(val)
	case int:
		return lua.LNumber(val)
	case int64:
		return lua.LNumber(val)
	case float64:
		return lua.LNumber(val)
	default:
		return lua.LString(fmt.Sprint(val))
	}
}

func fromLValue(v lua.LValue) any {
	switch val := v.(type) {
	case lua.LString:
		return string(val)
	case lua.LNumber:
		return float64(val)
	case lua.LBool:
		return bool(val)
	case *lua.LTable:
		return tableToMap(val)
	default:
		return v.String()
	}
}

func tableToMap(t *lua.LTable) map[string]any {
	m := make(map[string]any)
	t.ForEach(func(k, v lua.LValue) {
		m[k.String()] = fromLValue(v)
	})
	return m
}
