// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package errutil_test

import (
	"errors"
	"testing"

	"github.com/samber/oops"
	"github.com/stretchr/testify/assert"

	"github.com/decouple-mfe/mfeshell/pkg/errutil"
)

// recorder captures assertion failures instead of failing the test.
type recorder struct {
	testing.TB
	failed bool
}

func (r *recorder) Helper() {}
func (r *recorder) Errorf(string, ...any) { r.failed = true }
func (r *recorder) FailNow() { r.failed = true; panic(r) }
func (r *recorder) Fatalf(string, ...any) { r.FailNow() }
func (r *recorder) Logf(string, ...any) {}
func (r *recorder) Name() string { return "recorder" }

// fails reports whether fn recorded a failure.
func fails(fn func(t testing.TB)) (failed bool) {
	r := &recorder{}
	defer func() {
		if p := recover(); p != nil && p != any(r) {
			panic(p)
		}
		failed = r.failed
	}()
	fn(r)
	return r.failed
}

func TestAssertErrorCode(t *testing.T) {
	err := oops.Code("MOUNT_FAILED").Errorf("mount failed")
	errutil.AssertErrorCode(t, err, "MOUNT_FAILED")

	assert.True(t, fails(func(tb testing.TB) { errutil.AssertErrorCode(tb, err, "LOAD_FAILED") }))
	assert.True(t, fails(func(tb testing.TB) { errutil.AssertErrorCode(tb, errors.New("plain"), "LOAD_FAILED") }))
	assert.True(t, fails(func(tb testing.TB) { errutil.AssertErrorCode(tb, nil, "LOAD_FAILED") }))
}

func TestAssertErrorContext(t *testing.T) {
	err := oops.With("plugin", "mfeC").Errorf("mount failed")
	errutil.AssertErrorContext(t, err, "plugin", "mfeC")

	assert.True(t, fails(func(tb testing.TB) { errutil.AssertErrorContext(tb, err, "plugin", "mfeA") }))
	assert.True(t, fails(func(tb testing.TB) { errutil.AssertErrorContext(tb, err, "slot", "mfeC") }))
}

func TestAssertPluginError(t *testing.T) {
	err := oops.Code("LOAD_FAILED").With("plugin", "mfeB").Errorf("fetch failed")
	errutil.AssertPluginError(t, err, "LOAD_FAILED", "mfeB")

	assert.True(t, fails(func(tb testing.TB) { errutil.AssertPluginError(tb, err, "LOAD_FAILED", "mfeA") }))
}
