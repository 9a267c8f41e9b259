package graph_test

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
	"socialgraph/src/services/graph"
	"socialgraph/src/test_artefacts/stubs"
)

var _ = Describe("Edge writes", func() {
	var (
		env  *testEnv
		ctx  context.Context
		from domain.NodeRef
		to   domain.NodeRef

		followsType *entities.EdgeType
	)

	BeforeEach(func() {
		ctx = context.Background()
		env = newTestEnv()
		from = stubs.NewNodeStub().Get()
		to = stubs.NewNodeStub().Get()

		var err error
		followsType, err = env.service.Types().CreateEdgeType(ctx, "follows", "follows")
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when adding an edge", func() {
		When("the triple does not exist yet", func() {
			It("stores the edge and serves it back", func() {
				// ACT
				created, err := env.service.AddEdge(ctx, from, to, followsType.ID, map[string]any{"weight": 5})

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(created.Auto).To(BeFalse())
				Expect(created.Time).To(Equal(env.clock.Now().UTC()))

				fetched, err := env.service.GetEdge(ctx, from, to, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched).NotTo(BeNil())
				Expect(fetched.Attributes).To(MatchJSON(`{"weight": 5}`))

				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))
			})

			It("defaults missing attributes to an empty object", func() {
				created, err := env.service.AddEdge(ctx, from, to, followsType.ID, nil)

				Expect(err).NotTo(HaveOccurred())
				Expect(created.Attributes).To(MatchJSON(`{}`))
			})
		})

		When("the counter cache is already warm", func() {
			It("increments it in place", func() {
				// ARRANGE: warm the counter with its current value
				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(BeZero())

				// ACT
				_, err = env.service.AddEdge(ctx, from, to, followsType.ID, nil)
				Expect(err).NotTo(HaveOccurred())

				// ASSERT
				count, err = env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))
			})
		})

		When("the triple already exists", func() {
			It("returns a duplicate error and leaves state untouched", func() {
				_, err := env.service.AddEdge(ctx, from, to, followsType.ID, nil)
				Expect(err).NotTo(HaveOccurred())

				// ACT
				_, err = env.service.AddEdge(ctx, from, to, followsType.ID, nil)

				// ASSERT
				Expect(err).To(MatchError(domain.ErrDuplicateEdge))
				Expect(env.store.EdgeRowCount()).To(Equal(1))

				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))
			})
		})

		When("a registered mutation hook fails", func() {
			It("rolls back the store and invalidates the touched cache keys", func() {
				env.service.OnEdgeMutation(func(ctx context.Context, mutation domain.EdgeMutation) error {
					return fmt.Errorf("downstream rejected the mutation")
				})

				// ACT
				_, err := env.service.AddEdge(ctx, from, to, followsType.ID, nil)

				// ASSERT
				Expect(err).To(HaveOccurred())
				Expect(env.store.EdgeRowCount()).To(BeZero())
				Expect(env.cache.Keys()).To(BeEmpty())

				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(BeZero())
			})
		})
	})

	Context("when changing an edge", func() {
		When("the edge exists", func() {
			It("replaces the attributes and restamps the time", func() {
				_, err := env.service.AddEdge(ctx, from, to, followsType.ID, map[string]any{"weight": 1})
				Expect(err).NotTo(HaveOccurred())
				createdAt := env.clock.Now().UTC()

				env.clock.Advance(1 * time.Minute)

				// ACT
				changed, err := env.service.ChangeEdge(ctx, from, to, followsType.ID, map[string]any{"weight": 2})

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(changed.Attributes).To(MatchJSON(`{"weight": 2}`))
				Expect(changed.Time.After(createdAt)).To(BeTrue())

				fetched, err := env.service.GetEdge(ctx, from, to, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched.Attributes).To(MatchJSON(`{"weight": 2}`))

				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))
			})

			It("re-ranks the edge to the most recent position", func() {
				newest := stubs.NewNodeStub().Get()
				_, err := env.service.AddEdge(ctx, from, to, followsType.ID, nil)
				Expect(err).NotTo(HaveOccurred())
				env.clock.Advance(1 * time.Minute)
				_, err = env.service.AddEdge(ctx, from, newest, followsType.ID, nil)
				Expect(err).NotTo(HaveOccurred())

				// Warm the list; the later edge leads.
				items, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(items[0].To).To(Equal(newest))

				env.clock.Advance(1 * time.Minute)

				// ACT: rewrite the older of the two
				_, err = env.service.ChangeEdge(ctx, from, to, followsType.ID, map[string]any{"weight": 9})
				Expect(err).NotTo(HaveOccurred())

				// ASSERT
				items, err = env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)
				Expect(err).NotTo(HaveOccurred())
				Expect(items).To(HaveLen(2))
				Expect(items[0].To).To(Equal(to))
				Expect(items[1].To).To(Equal(newest))
			})
		})

		When("the edge does not exist", func() {
			It("creates it like an add", func() {
				// ACT
				changed, err := env.service.ChangeEdge(ctx, from, to, followsType.ID, map[string]any{"weight": 2})

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(changed.Auto).To(BeFalse())
				Expect(changed.Attributes).To(MatchJSON(`{"weight": 2}`))
				Expect(env.store.EdgeRowCount()).To(Equal(1))

				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(Equal(int64(1)))

				fetched, err := env.service.GetEdge(ctx, from, to, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched).NotTo(BeNil())
			})
		})
	})

	Context("when deleting an edge", func() {
		When("the edge exists", func() {
			It("removes it and decrements the counter", func() {
				_, err := env.service.AddEdge(ctx, from, to, followsType.ID, nil)
				Expect(err).NotTo(HaveOccurred())

				// ACT
				deleted, err := env.service.DeleteEdge(ctx, from, to, followsType.ID)

				// ASSERT
				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(BeTrue())

				fetched, err := env.service.GetEdge(ctx, from, to, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(fetched).To(BeNil())

				count, err := env.service.EdgeCount(ctx, from, followsType.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(count).To(BeZero())
			})
		})

		When("the edge does not exist", func() {
			It("reports false without error", func() {
				deleted, err := env.service.DeleteEdge(ctx, from, to, followsType.ID)

				Expect(err).NotTo(HaveOccurred())
				Expect(deleted).To(BeFalse())
			})
		})
	})

	Context("when deleting all edges of an origin", func() {
		It("removes every edge and zeroes the counter", func() {
			targets := []domain.NodeRef{
				stubs.NewNodeStub().Get(),
				stubs.NewNodeStub().Get(),
				stubs.NewNodeStub().Get(),
			}
			for _, target := range targets {
				_, err := env.service.AddEdge(ctx, from, target, followsType.ID, nil)
				Expect(err).NotTo(HaveOccurred())
				env.clock.Advance(1 * time.Second)
			}

			// ACT
			removed, err := env.service.DeleteAllEdges(ctx, from, followsType.ID)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(removed).To(Equal(3))
			Expect(env.store.EdgeRowCount()).To(BeZero())

			count, err := env.service.EdgeCount(ctx, from, followsType.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			items, err := env.service.EdgeRange(ctx, from, followsType.ID, 0, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(items).To(BeEmpty())
		})
	})

	Context("when a publisher is attached", func() {
		It("receives the committed mutations after the write", func() {
			publisher := &capturingPublisher{}
			env = newTestEnv(graph.WithPublisher(publisher))

			var err error
			followsType, err = env.service.Types().CreateEdgeType(ctx, "follows", "follows")
			Expect(err).NotTo(HaveOccurred())

			// ACT
			_, err = env.service.AddEdge(ctx, from, to, followsType.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			// ASSERT
			Expect(publisher.edgeMutations).To(HaveLen(1))
			Expect(publisher.edgeMutations[0].Kind).To(Equal(domain.EdgeCreated))
			Expect(publisher.edgeMutations[0].Edge.FromID).To(Equal(from.ID))
		})

		It("does not publish anything for a failed write", func() {
			publisher := &capturingPublisher{}
			env = newTestEnv(graph.WithPublisher(publisher))

			var err error
			followsType, err = env.service.Types().CreateEdgeType(ctx, "follows", "follows")
			Expect(err).NotTo(HaveOccurred())
			env.service.OnEdgeMutation(func(ctx context.Context, mutation domain.EdgeMutation) error {
				return fmt.Errorf("downstream rejected the mutation")
			})

			// ACT
			_, err = env.service.AddEdge(ctx, from, to, followsType.ID, nil)

			// ASSERT
			Expect(err).To(HaveOccurred())
			Expect(publisher.edgeMutations).To(BeEmpty())
		})
	})
})

var _ = Describe("Attribute normalization", func() {
	It("produces canonical bytes for equal maps regardless of key order", func() {
		first, err := domain.NormalizeAttributes(map[string]any{"b": 2, "a": 1})
		Expect(err).NotTo(HaveOccurred())

		second, err := domain.NormalizeAttributes(map[string]any{"a": 1, "b": 2})
		Expect(err).NotTo(HaveOccurred())

		Expect(string(first)).To(Equal(string(second)))
		Expect(json.Valid(first)).To(BeTrue())
	})
})
