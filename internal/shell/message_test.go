// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package shell_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/internal/shell"
)

func TestUserMessage(t *testing.T) {
	slot := loader.Slot{Name: "mfeA", BasePath: "/mfe-a"}

	tests := []struct {
		name    string
		session loader.Session
		want    string
	}{
		{"idle", loader.Session{Status: loader.StatusIdle}, ""},
		{"mounted", loader.Session{Slot: slot, Status: loader.StatusMounted}, ""},
		{"loading", loader.Session{Slot: slot, Status: loader.StatusLoading}, "Loading mfeA…"},
		{
			"unknown plugin",
			loader.Session{Slot: slot, Status: loader.StatusFailed, Err: remote.ErrUnknownPlugin("mfeA")},
			`Unknown plugin "mfeA"`,
		},
		{
			"plain failure",
			loader.Session{Slot: slot, Status: loader.StatusFailed, Err: errors.New("connection refused")},
			"Error loading mfeA: connection refused",
		},
		{
			"failure without error",
			loader.Session{Slot: slot, Status: loader.StatusFailed},
			"Error loading mfeA: unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, shell.UserMessage(tt.session))
		})
	}
}

func TestUserMessage_LoadFailureNamesCause(t *testing.T) {
	s := loader.Session{
		Slot:   loader.Slot{Name: "mfeB", BasePath: "/mfe-b"},
		Status: loader.StatusFailed,
		Err:    remote.ErrLoad("mfeB", errors.New("timeout")),
	}
	msg := shell.UserMessage(s)
	assert.Contains(t, msg, "Error loading mfeB: ")
	assert.Contains(t, msg, "timeout")
}
