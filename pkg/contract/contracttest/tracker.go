// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package contracttest

import (
	"sync"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Tracker counts lifecycle calls across every instance of a fake module.
type Tracker struct {
	mu        sync.Mutex
	mounts    int
	unmounts  int
	live      int
	instances []*FakePlugin
	mountErr  error
}

// FailMounts makes every later Mount return err.
func (t *Tracker) FailMounts(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.mountErr = err
}

// Module returns a module whose instances report to t.
func (t *Tracker) Module(name string) *contract.Module {
	return &contract.Module{
		Name:    name,
		Version: "0.0.0-test",
		New: func() contract.Plugin {
			p := &FakePlugin{tracker: t}
			t.mu.Lock()
			t.instances = append(t.instances, p)
			t.mu.Unlock()
			return p
		},
	}
}

// Mounts returns the number of successful Mount calls.
func (t *Tracker) Mounts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.mounts
}

// Unmounts returns the number of Unmount calls on mounted instances.
func (t *Tracker) Unmounts() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.unmounts
}

// Live returns the number of currently mounted instances.
func (t *Tracker) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

// Last returns the most recently created instance, or nil.
func (t *Tracker) Last() *FakePlugin {
	t.mu.Lock()
	defer t.mu.Unlock()
	if len(t.instances) == 0 {
		return nil
	}
	return t.instances[len(t.instances)-1]
}

// FakePlugin is a contract.Plugin that remembers its mount options.
type FakePlugin struct {
	tracker *Tracker

	mu      sync.Mutex
	opts    contract.MountOptions
	surface contract.Surface
	mounted bool
}

// Mount records opts.
func (p *FakePlugin) Mount(surface contract.Surface, opts contract.MountOptions) error {
	p.tracker.mu.Lock()
	err := p.tracker.mountErr
	if err == nil {
		p.tracker.mounts++
		p.tracker.live++
	}
	p.tracker.mu.Unlock()
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.opts = opts
	p.surface = surface
	p.mounted = true
	surface.Render("fake:" + opts.Navigation.InitialPath)
	return nil
}

// Unmount clears the instance.
func (p *FakePlugin) Unmount() {
	p.mu.Lock()
	wasMounted := p.mounted
	p.mounted = false
	p.mu.Unlock()
	if !wasMounted {
		return
	}

	p.tracker.mu.Lock()
	p.tracker.unmounts++
	p.tracker.live--
	p.tracker.mu.Unlock()
}

// Options returns the options passed to Mount.
func (p *FakePlugin) Options() contract.MountOptions {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.opts
}

// Navigate simulates an internal route change by calling OnNavigate, even
// after unmount, so tests can observe host-side guarding.
func (p *FakePlugin) Navigate(path string) {
	p.mu.Lock()
	onNavigate := p.opts.Navigation.OnNavigate
	p.mu.Unlock()
	if onNavigate != nil {
		onNavigate(path)
	}
}
