// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package loader

import (
	"context"
	"sync"
)

// Outcome is how an activation attempt ended.
type Outcome int

// Attempt outcomes.
const (
	OutcomePending Outcome = iota
	OutcomeMounted
	OutcomeFailed
	// OutcomeDiscarded means a newer activation or a deactivation superseded
	// the attempt before its load finished. Nothing was mounted.
	OutcomeDiscarded
)

// String returns the lowercase outcome name.
func (o Outcome) String() string {
	switch o {
	case OutcomePending:
		return "pending"
	case OutcomeMounted:
		return "mounted"
	case OutcomeFailed:
		return "failed"
	case OutcomeDiscarded:
		return "discarded"
	default:
		return "unknown"
	}
}

// Attempt tracks one activation.
type Attempt struct {
	generation uint64
	done       chan struct{}
	once       sync.Once

	mu      sync.Mutex
	outcome Outcome
	err     error
}

func newAttempt(generation uint64) *Attempt {
	return &Attempt{generation: generation, done: make(chan struct{})}
}

// Generation returns the generation allocated to the attempt.
func (a *Attempt) Generation() uint64 {
	return a.generation
}

// Done is closed once the attempt settles.
func (a *Attempt) Done() <-chan struct{} {
	return a.done
}

// Outcome returns the current outcome.
func (a *Attempt) Outcome() Outcome {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.outcome
}

// Err returns the failure, if the attempt failed.
func (a *Attempt) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.err
}

// Wait blocks until the attempt settles or ctx ends.
func (a *Attempt) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-a.done:
		return a.Outcome(), a.Err()
	case <-ctx.Done():
		return OutcomePending, ctx.Err()
	}
}

func (a *Attempt) finish(outcome Outcome, err error) {
	a.once.Do(func() {
		a.mu.Lock()
		a.outcome = outcome
		a.err = err
		a.mu.Unlock()
		close(a.done)
	})
}
