// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Decouple MFE Contributors

//go:build integration

package shell_test

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/decouple-mfe/mfeshell/internal/loader"
	"github.com/decouple-mfe/mfeshell/internal/remote"
	"github.com/decouple-mfe/mfeshell/internal/shell"
	"github.com/decouple-mfe/mfeshell/internal/surface"
	"github.com/decouple-mfe/mfeshell/pkg/contract"
	"github.com/decouple-mfe/mfeshell/pkg/contract/contracttest"
)

// slowModule registers mod behind a loader that takes delay on first use.
func slowModule(registry *remote.Registry, mod *contract.Module, delay time.Duration) {
	Expect(registry.Register(mod.Name, func(ctx context.Context) (*contract.Module, error) {
		select {
		case <-time.After(delay):
			return mod, nil
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	})).To(Succeed())
}

var _ = Describe("Navigation under slow loads", func() {
	var (
		ctx      context.Context
		router   *shell.Router
		buf      *surface.Buffer
		trackers map[string]*contracttest.Tracker
		sources  map[string]int
		hookMu   sync.Mutex
	)

	live := func() int {
		total := 0
		for _, tr := range trackers {
			total += tr.Live()
		}
		return total
	}

	BeforeEach(func() {
		ctx = context.Background()
		table, err := shell.NewRouteTable(shell.DefaultRoutes())
		Expect(err).NotTo(HaveOccurred())

		registry := remote.NewRegistry()
		trackers = make(map[string]*contracttest.Tracker)
		for i, name := range []string{"mfeA", "mfeB", "mfeC"} {
			tracker := &contracttest.Tracker{}
			trackers[name] = tracker
			slowModule(registry, tracker.Module(name), time.Duration(30-10*i)*time.Millisecond)
		}

		sources = make(map[string]int)
		buf = surface.New("main")
		router = shell.NewRouter(table, registry, buf,
			contracttest.Services(&contracttest.Telemetry{}, nil),
			shell.WithNavigationHook(func(source, _ string) {
				hookMu.Lock()
				sources[source]++
				hookMu.Unlock()
			}))
	})

	AfterEach(func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		Expect(router.Close(closeCtx)).To(Succeed())
		Expect(live()).To(BeZero())
	})

	It("mounts only the last slot of a burst", func() {
		var last *loader.Attempt
		for _, path := range []string{"/mfe-a", "/mfe-b", "/mfe-c", "/mfe-a/settings", "/mfe-b/reports"} {
			a, err := router.Navigate(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(a).NotTo(BeNil())
			last = a
		}

		Eventually(last.Done()).Should(BeClosed())
		Expect(last.Outcome()).To(Equal(loader.OutcomeMounted))
		Expect(router.Session().Slot.Name).To(Equal("mfeB"))
		Expect(buf.Content()).To(Equal("fake:/reports"))

		Consistently(live, 100*time.Millisecond).Should(Equal(1))
		Expect(trackers["mfeA"].Mounts()).To(BeZero())
		Expect(trackers["mfeC"].Mounts()).To(BeZero())
	})

	It("mounts a loading slot at the latest path seen while loading", func() {
		a, err := router.Navigate(ctx, "/mfe-a")
		Expect(err).NotTo(HaveOccurred())
		for _, path := range []string{"/mfe-a/about", "/mfe-a/settings", "/mfe-a/settings/profile"} {
			again, err := router.Navigate(ctx, path)
			Expect(err).NotTo(HaveOccurred())
			Expect(again).To(BeNil())
		}

		Eventually(a.Done()).Should(BeClosed())
		Expect(a.Outcome()).To(Equal(loader.OutcomeMounted))
		Expect(trackers["mfeA"].Last().Options().Navigation.InitialPath).To(Equal("/settings/profile"))
		Expect(trackers["mfeA"].Mounts()).To(Equal(1))
	})

	It("keeps at most one instance live across concurrent navigation", func() {
		paths := []string{"/mfe-a", "/mfe-b/reports", "/", "/mfe-c/audit", "/mfe-a/about"}

		var wg sync.WaitGroup
		for w := 0; w < 4; w++ {
			wg.Add(1)
			go func(offset int) {
				defer GinkgoRecover()
				defer wg.Done()
				for i := 0; i < 20; i++ {
					_, err := router.Navigate(ctx, paths[(offset+i)%len(paths)])
					Expect(err).NotTo(HaveOccurred())
					Expect(live()).To(BeNumerically("<=", 1))
				}
			}(w)
		}
		wg.Wait()

		final, err := router.Navigate(ctx, "/mfe-c")
		Expect(err).NotTo(HaveOccurred())
		if final == nil {
			final = router.Attempt()
		}
		Eventually(final.Done()).Should(BeClosed())
		Eventually(func() loader.Status { return router.Session().Status }).Should(Equal(loader.StatusMounted))
		Expect(router.Session().Slot.Name).To(Equal("mfeC"))
		Consistently(live, 100*time.Millisecond).Should(Equal(1))
	})

	It("drops navigation reported by an unmounted plugin", func() {
		a, err := router.Navigate(ctx, "/mfe-a")
		Expect(err).NotTo(HaveOccurred())
		Eventually(a.Done()).Should(BeClosed())
		stale := trackers["mfeA"].Last()

		b, err := router.Navigate(ctx, "/mfe-b")
		Expect(err).NotTo(HaveOccurred())
		stale.Navigate("/settings")

		Eventually(b.Done()).Should(BeClosed())
		Expect(router.Location()).To(Equal("/mfe-b"))
		Expect(router.History()).NotTo(ContainElement("/mfe-a/settings"))

		hookMu.Lock()
		defer hookMu.Unlock()
		Expect(sources).To(Equal(map[string]int{shell.SourceShell: 2}))
	})

	It("recovers a failed slot through retry", func() {
		trackers["mfeB"].FailMounts(context.DeadlineExceeded)

		a, err := router.Navigate(ctx, "/mfe-b")
		Expect(err).NotTo(HaveOccurred())
		Eventually(a.Done()).Should(BeClosed())
		Expect(a.Outcome()).To(Equal(loader.OutcomeFailed))
		Expect(shell.UserMessage(router.Session())).To(HavePrefix("Error loading mfeB:"))

		again, err := router.Navigate(ctx, "/mfe-b/reports")
		Expect(err).NotTo(HaveOccurred())
		Expect(again).To(BeNil())

		trackers["mfeB"].FailMounts(nil)
		retry, err := router.Retry(ctx)
		Expect(err).NotTo(HaveOccurred())
		Eventually(retry.Done()).Should(BeClosed())
		Expect(retry.Outcome()).To(Equal(loader.OutcomeMounted))
		Expect(buf.Content()).To(Equal("fake:/reports"))
	})
})
