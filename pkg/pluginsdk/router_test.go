// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

package pluginsdk_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/pluginsdk"
)

func TestMemoryRouter_FirstRenderDoesNotNavigate(t *testing.T) {
	var reported []string
	var rendered []string

	router := pluginsdk.NewMemoryRouter(contract.NavigationHandle{
		InitialPath: "/settings/profile",
		OnNavigate:  func(p string) { reported = append(reported, p) },
	}, func(p string) { rendered = append(rendered, p) })

	assert.Empty(t, reported, "initial location must not be reported")
	assert.Equal(t, []string{"/settings/profile"}, rendered)
	assert.Equal(t, "/settings/profile", router.Location())
}

func TestMemoryRouter_SecondRenderNavigates(t *testing.T) {
	var reported []string
	router := pluginsdk.NewMemoryRouter(contract.NavigationHandle{
		InitialPath: "/",
		OnNavigate:  func(p string) { reported = append(reported, p) },
	}, nil)

	require.True(t, router.Navigate("/about"))
	require.True(t, router.Navigate("/settings"))

	assert.Equal(t, []string{"/about", "/settings"}, reported)
	assert.Equal(t, []string{"/", "/about", "/settings"}, router.Entries())
}

func TestMemoryRouter_SamePathIsNoop(t *testing.T) {
	calls := 0
	router := pluginsdk.NewMemoryRouter(contract.NavigationHandle{
		InitialPath: "/about",
		OnNavigate:  func(string) { calls++ },
	}, nil)

	assert.False(t, router.Navigate("/about"))
	assert.Equal(t, 0, calls)
}

func TestMemoryRouter_Back(t *testing.T) {
	var reported []string
	router := pluginsdk.NewMemoryRouter(contract.NavigationHandle{
		InitialPath: "/",
		OnNavigate:  func(p string) { reported = append(reported, p) },
	}, nil)

	assert.False(t, router.Back(), "cannot go back from the first entry")

	router.Navigate("/reports")
	require.True(t, router.Back())

	assert.Equal(t, "/", router.Location())
	assert.Equal(t, []string{"/reports", "/"}, reported)
}

func TestMemoryRouter_NoCallbacksAfterClose(t *testing.T) {
	calls := 0
	renders := 0
	router := pluginsdk.NewMemoryRouter(contract.NavigationHandle{
		InitialPath: "/",
		OnNavigate:  func(string) { calls++ },
	}, func(string) { renders++ })

	router.Close()

	assert.False(t, router.Navigate("/roles"))
	assert.False(t, router.Back())
	assert.Equal(t, 0, calls)
	assert.Equal(t, 1, renders)
}

func TestMemoryRouter_NormalisesMissingSlash(t *testing.T) {
	var reported []string
	router := pluginsdk.NewMemoryRouter(contract.NavigationHandle{
		InitialPath: "audit",
		OnNavigate:  func(p string) { reported = append(reported, p) },
	}, nil)

	assert.Equal(t, "/audit", router.Location())
	router.Navigate("roles")
	assert.Equal(t, []string{"/roles"}, reported)
}
