// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

// Package plugin discovers plugin manifests and registers the plugins they
// describe with the remote registry.
package plugin

import (
	"context"

	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
)

// Host compiles plugin source for a specific runtime type.
type Host interface {
	// Compile turns source into a module. Each call to the module's New
	// returns an independent instance.
	Compile(ctx context.Context, manifest *Manifest, source []byte) (*contract.Module, error)

	// Close shuts down the host. Later Compile calls fail.
	Close(ctx context.Context) error
}

// Fetcher retrieves plugin source from a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Registrar accepts plugin loaders.
type Registrar interface {
	Register(name string, loader remote.Loader) error
}
