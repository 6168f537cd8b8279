// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package loader

import (
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

// Status is the state of a mount session.
type Status int

// Session states.
const (
	StatusIdle Status = iota
	StatusLoading
	StatusMounted
	StatusFailed
)

// String returns the lowercase status name.
func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoading:
		return "loading"
	case StatusMounted:
		return "mounted"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Slot identifies one mount point: a plugin name paired with the base path
// it owns. Two slots are the same slot when both fields are equal.
type Slot struct {
	Name     string
	BasePath string
}

// IsZero reports whether s is the empty slot.
func (s Slot) IsZero() bool {
	return s == Slot{}
}

// String formats the slot as name@basePath.
func (s Slot) String() string {
	return s.Name + "@" + s.BasePath
}

// Origin identifies the mounted instance a plugin navigation came from.
type Origin struct {
	Slot       Slot
	Generation uint64
}

// Current reports whether o is the instance s describes.
func (o Origin) Current(s Session) bool {
	return s.Status == StatusMounted && s.Slot == o.Slot && s.Generation == o.Generation
}

// Session is a snapshot of the controller's mount session.
type Session struct {
	// ID changes on every activation and labels its log lines.
	ID         ulid.ULID
	Slot       Slot
	Status     Status
	Generation uint64
	// Path is the latest shell-absolute path seen for the slot.
	Path string
	// Err is set when Status is StatusFailed.
	Err error
}

var (
	entropy     = ulid.Monotonic(rand.Reader, 0)
	entropyLock sync.Mutex
)

func newSessionID() ulid.ULID {
	entropyLock.Lock()
	defer entropyLock.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now()), entropy)
}
