// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

//go:build integration

package plugin_test

import (
	"context"
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/decouple-mfe/mfeshell/internal/plugin"
	"github.com/decouple-mfe/mfeshell/internal/plugin/capability"
	pluginlua "github.com/decouple-mfe/mfeshell/internal/plugin/lua"
	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/internal/surface"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/contract/contracttest"
)

var _ = Describe("Bundled plugins", func() {
	var (
		ctx      context.Context
		mgr      *plugin.Manager
		registry *remote.Registry
	)

	BeforeEach(func() {
		ctx = context.Background()
		mgr = plugin.NewManager(filepath.Join("..", "..", "plugins"),
			plugin.WithLuaHost(pluginlua.NewHost(pluginlua.WithEnforcer(capability.NewEnforcer()))))
		registry = remote.NewRegistry()
	})

	AfterEach(func() {
		Expect(mgr.Close(ctx)).To(Succeed())
	})

	It("discovers every bundled manifest", func() {
		_, err := mgr.RegisterAll(ctx, registry)
		Expect(err).NotTo(HaveOccurred())
		Expect(mgr.ListPlugins()).To(Equal([]string{"mfeA", "mfeB", "mfeC"}))
		Expect(registry.Names()).To(Equal([]string{"mfeC"}))
	})

	It("validates every bundled manifest against the schema", func() {
		found, err := mgr.Discover(ctx)
		Expect(err).NotTo(HaveOccurred())
		for _, dp := range found {
			data, err := readManifest(dp.Dir)
			Expect(err).NotTo(HaveOccurred())
			Expect(plugin.ValidateSchema(data)).To(Succeed(), dp.Manifest.Name)
		}
	})

	Describe("admin", func() {
		var (
			buf      *surface.Buffer
			tel      *contracttest.Telemetry
			reported []string
			instance contract.Plugin
		)

		mountAt := func(path string) {
			_, err := mgr.RegisterAll(ctx, registry)
			Expect(err).NotTo(HaveOccurred())

			mod, err := registry.Resolve(ctx, "mfeC")
			Expect(err).NotTo(HaveOccurred())

			instance = mod.New()
			Expect(instance.Mount(buf, contract.MountOptions{
				Services: contracttest.Services(tel, map[string]any{"env": "staging"}),
				Navigation: contract.NavigationHandle{
					InitialPath: path,
					OnNavigate:  func(p string) { reported = append(reported, p) },
				},
			})).To(Succeed())
		}

		BeforeEach(func() {
			buf = surface.New("main")
			tel = &contracttest.Telemetry{}
			reported = nil
		})

		AfterEach(func() {
			if instance != nil {
				instance.Unmount()
			}
		})

		It("renders the audit trail with the configured environment", func() {
			mountAt("/audit")
			Expect(buf.Content()).To(ContainSubstring("Audit Log"))
			Expect(buf.Content()).To(ContainSubstring("(staging)"))
			Expect(tel.Events()).To(Equal([]string{"mfeC:mounted"}))
		})

		It("redirects the legacy audit link and reports it", func() {
			mountAt("/")
			Expect(buf.Click("/audit/latest")).To(BeTrue())
			Expect(reported).To(Equal([]string{"/audit/latest", "/audit"}))
			Expect(buf.Content()).To(ContainSubstring("Deep-linked audit trail"))
		})

		It("shows the user list to signed-in users", func() {
			mountAt("/")
			Expect(buf.Content()).To(ContainSubstring("Admin user list."))
		})
	})
})

func readManifest(dir string) ([]byte, error) {
	return os.ReadFile(filepath.Join(dir, plugin.ManifestFile)) //nolint:gosec // test fixture path
}
