// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package surface provides the host-owned mount target handed to plugins.
package surface

import (
	"log/slog"
	"slices"
	"sync"
)

// Frame is one rendered snapshot of a surface.
type Frame struct {
	Surface string
	Seq     uint64
	Content string
}

// Buffer is an in-memory contract.Surface. Plugins render text into it and
// the host delivers link activations back through Click.
type Buffer struct {
	id string

	mu        sync.RWMutex
	content   string
	seq       uint64
	listeners map[uint64]func(link string)
	nextID    uint64
	subs      []chan Frame
}

// New creates an empty surface.
func New(id string) *Buffer {
	return &Buffer{
		id:        id,
		listeners: make(map[uint64]func(string)),
	}
}

// ID returns the surface identifier.
func (b *Buffer) ID() string {
	return b.id
}

// Render replaces the surface content and publishes a frame to subscribers.
func (b *Buffer) Render(content string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.content = content
	b.seq++
	frame := Frame{Surface: b.id, Seq: b.seq, Content: content}
	for _, ch := range b.subs {
		select {
		case ch <- frame:
		default:
			slog.Warn("frame dropped: subscriber buffer full",
				"surface", b.id,
				"seq", frame.Seq)
		}
	}
}

// Listen registers fn for link activations. The returned function removes
// it and is safe to call more than once.
func (b *Buffer) Listen(fn func(link string)) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			delete(b.listeners, id)
		})
	}
}

// Click delivers a link activation to the registered listeners, in
// registration order. It reports whether any listener received it.
func (b *Buffer) Click(link string) bool {
	b.mu.RLock()
	ids := make([]uint64, 0, len(b.listeners))
	for id := range b.listeners {
		ids = append(ids, id)
	}
	fns := make([]func(string), 0, len(ids))
	slices.Sort(ids)
	for _, id := range ids {
		fns = append(fns, b.listeners[id])
	}
	b.mu.RUnlock()

	// Listeners run unlocked; they usually render.
	for _, fn := range fns {
		fn(link)
	}
	return len(fns) > 0
}

// Content returns the last rendered content.
func (b *Buffer) Content() string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.content
}

// Seq returns the number of renders so far.
func (b *Buffer) Seq() uint64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.seq
}

// Listeners returns the number of registered link listeners.
func (b *Buffer) Listeners() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

// Clear empties the content without notifying subscribers.
func (b *Buffer) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.content = ""
}

// Subscribe returns a channel receiving every later frame.
func (b *Buffer) Subscribe() chan Frame {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Frame, 16)
	b.subs = append(b.subs, ch)
	return ch
}

// Unsubscribe removes and closes ch.
func (b *Buffer) Unsubscribe(ch chan Frame) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, sub := range b.subs {
		if sub == ch {
			b.subs = append(b.subs[:i], b.subs[i+1:]...)
			close(ch)
			return
		}
	}
}
