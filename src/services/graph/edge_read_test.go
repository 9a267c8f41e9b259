package graph_test

import (
	"context"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
	"socialgraph/src/test_artefacts/stubs"
)

var _ = Describe("Edge reads", func() {
	var (
		env  *testEnv
		ctx  context.Context
		from domain.NodeRef

		followsType *entities.EdgeType
		targets     []domain.NodeRef
	)

	BeforeEach(func() {
		ctx = context.Background()
		env = newTestEnv()
		from = stubs.NewNodeStub().Get()

		var err error
		followsType, err = env.service.Types().CreateEdgeType(ctx, "follows", "follows")
		Expect(err).NotTo(HaveOccurred())

		// Three edges a minute apart; targets[2] is the newest.
		targets = []domain.NodeRef{
			stubs.NewNodeStub().Get(),
			stubs.NewNodeStub().Get(),
			stubs.NewNodeStub().Get(),
		}
		for _, target := range targets {
			_, err := env.service.AddEdge(ctx, from, target, followsType.ID, nil)
			Expect(err).NotTo(HaveOccurred())
			env.clock.Advance(1 * time.Minute)
		}
	})

	Context("when ranging over edges", func() {
		It("returns pages newest first", func() {
			items, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(3))
			Expect(items[0].To).To(Equal(targets[2]))
			Expect(items[1].To).To(Equal(targets[1]))
			Expect(items[2].To).To(Equal(targets[0]))
		})

		It("honors offset and limit", func() {
			items, err := env.service.EdgeRange(ctx, from, followsType.ID, 1, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].To).To(Equal(targets[1]))
		})

		When("the origin has no edges", func() {
			It("returns an empty page without touching the list", func() {
				other := stubs.NewNodeStub().Get()

				items, err := env.service.EdgeRange(ctx, other, followsType.ID, 0, 10)

				Expect(err).NotTo(HaveOccurred())
				Expect(items).To(BeEmpty())
			})
		})

		When("the counter disagrees with a warm list", func() {
			It("serves the warm list without consulting the counter", func() {
				// ARRANGE: warm the list, then zero the durable counter and
				// drop its cache entry behind the engine's back
				_, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)
				Expect(err).NotTo(HaveOccurred())

				_, err = env.store.AdjustCount(ctx, from, followsType.ID, "", -3, 0)
				Expect(err).NotTo(HaveOccurred())
				for _, key := range env.cache.Keys() {
					if strings.HasPrefix(key, "count:") {
						Expect(env.cache.Delete(ctx, key)).To(Succeed())
					}
				}

				// ACT
				items, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(items).To(HaveLen(3))
				Expect(items[0].To).To(Equal(targets[2]))
			})
		})

		When("the cache has been cleared", func() {
			It("rebuilds the list from the store and serves the same page", func() {
				before, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)
				Expect(err).NotTo(HaveOccurred())

				Expect(env.service.ClearCache(ctx)).To(Succeed())

				after, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(after).To(HaveLen(len(before)))
				for i := range before {
					Expect(after[i].To).To(Equal(before[i].To))
				}
			})
		})
	})

	Context("when ranging over a time window", func() {
		It("returns only edges inside the bounds, newest first", func() {
			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

			items, err := env.service.EdgeTimeRange(ctx, from, followsType.ID,
				base.Add(1*time.Minute), base, 10)

			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(2))
			Expect(items[0].To).To(Equal(targets[1]))
			Expect(items[1].To).To(Equal(targets[0]))
		})

		It("caps the result at the limit", func() {
			base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

			items, err := env.service.EdgeTimeRange(ctx, from, followsType.ID,
				base.Add(1*time.Hour), base, 1)

			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(HaveLen(1))
			Expect(items[0].To).To(Equal(targets[2]))
		})
	})

	Context("when fetching a single edge", func() {
		It("serves it after the cache is cleared", func() {
			Expect(env.service.ClearCache(ctx)).To(Succeed())

			edge, err := env.service.GetEdge(ctx, from, targets[0], followsType.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(edge).NotTo(BeNil())
			Expect(edge.ToID).To(Equal(targets[0].ID))
		})

		It("returns nil without error for a missing edge", func() {
			edge, err := env.service.GetEdge(ctx, from, stubs.NewNodeStub().Get(), followsType.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(edge).To(BeNil())
		})

		It("reports existence through HasEdge", func() {
			exists, err := env.service.HasEdge(ctx, from, targets[0], followsType.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeTrue())

			exists, err = env.service.HasEdge(ctx, from, stubs.NewNodeStub().Get(), followsType.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(exists).To(BeFalse())
		})
	})

	Context("when fetching many edges at once", func() {
		It("preserves the requested order", func() {
			requested := []domain.NodeRef{targets[2], targets[0], targets[1]}

			edges, err := env.service.GetEdges(ctx, from, followsType.ID, requested)

			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(3))
			Expect(edges[0].ToID).To(Equal(targets[2].ID))
			Expect(edges[1].ToID).To(Equal(targets[0].ID))
			Expect(edges[2].ToID).To(Equal(targets[1].ID))
		})

		It("skips missing destinations and survives a cold cache", func() {
			Expect(env.service.ClearCache(ctx)).To(Succeed())
			requested := []domain.NodeRef{targets[0], stubs.NewNodeStub().Get(), targets[1]}

			edges, err := env.service.GetEdges(ctx, from, followsType.ID, requested)

			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(2))
			Expect(edges[0].ToID).To(Equal(targets[0].ID))
			Expect(edges[1].ToID).To(Equal(targets[1].ID))
		})
	})

	Context("when counting edges", func() {
		It("recovers the count from the store after a cache clear", func() {
			Expect(env.service.ClearCache(ctx)).To(Succeed())

			count, err := env.service.EdgeCount(ctx, from, followsType.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(3)))
		})
	})
})
