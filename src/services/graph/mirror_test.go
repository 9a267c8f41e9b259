package graph_test

import (
	"context"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
	"socialgraph/src/services/graph"
	"socialgraph/src/test_artefacts/stubs"
)

var _ = Describe("Symmetric edge mirroring", func() {
	var (
		env *testEnv
		ctx context.Context

		alice domain.NodeRef
		bob   domain.NodeRef

		follows    *entities.EdgeType
		followedBy *entities.EdgeType
	)

	BeforeEach(func() {
		ctx = context.Background()
		env = newTestEnv()
		alice = stubs.NewNodeStub().Get()
		bob = stubs.NewNodeStub().Get()

		var err error
		follows, err = env.service.Types().CreateEdgeType(ctx, "follows", "follows")
		Expect(err).NotTo(HaveOccurred())
		followedBy, err = env.service.Types().CreateEdgeType(ctx, "followed_by", "followed by")
		Expect(err).NotTo(HaveOccurred())

		_, err = env.service.Types().Associate(ctx, follows.ID, followedBy.ID)
		Expect(err).NotTo(HaveOccurred())
	})

	Context("when creating an edge of an associated type", func() {
		It("creates the reverse edge flagged as auto", func() {
			// ACT
			created, err := env.service.AddEdge(ctx, alice, bob, follows.ID, map[string]any{"since": 2024})

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(created.Auto).To(BeFalse())

			mirror, err := env.service.GetEdge(ctx, bob, alice, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mirror).NotTo(BeNil())
			Expect(mirror.Auto).To(BeTrue())
			Expect(mirror.Attributes).To(MatchJSON(`{"since": 2024}`))
		})

		It("maintains counters on both sides", func() {
			_, err := env.service.AddEdge(ctx, alice, bob, follows.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			aliceCount, err := env.service.EdgeCount(ctx, alice, follows.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(aliceCount).To(Equal(int64(1)))

			bobCount, err := env.service.EdgeCount(ctx, bob, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(bobCount).To(Equal(int64(1)))
		})

		When("the reverse edge already exists", func() {
			It("leaves it alone", func() {
				manual, err := env.service.AddEdge(ctx, bob, alice, followedBy.ID, map[string]any{"manual": true})
				Expect(err).NotTo(HaveOccurred())
				Expect(manual.Auto).To(BeFalse())

				// The mirror of bob's edge is alice->bob follows, created auto.
				autoMirror, err := env.service.GetEdge(ctx, alice, bob, follows.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(autoMirror).NotTo(BeNil())
				Expect(autoMirror.Auto).To(BeTrue())

				Expect(env.store.EdgeRowCount()).To(Equal(2))
			})
		})
	})

	Context("when deleting an edge of an associated type", func() {
		It("deletes the reverse edge with it", func() {
			_, err := env.service.AddEdge(ctx, alice, bob, follows.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			// ACT
			deleted, err := env.service.DeleteEdge(ctx, alice, bob, follows.ID)

			// ASSERT
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())
			Expect(env.store.EdgeRowCount()).To(BeZero())

			mirror, err := env.service.GetEdge(ctx, bob, alice, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mirror).To(BeNil())

			bobCount, err := env.service.EdgeCount(ctx, bob, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(bobCount).To(BeZero())
		})

		It("works starting from the auto side too", func() {
			_, err := env.service.AddEdge(ctx, alice, bob, follows.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			deleted, err := env.service.DeleteEdge(ctx, bob, alice, followedBy.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())
			Expect(env.store.EdgeRowCount()).To(BeZero())
		})
	})

	Context("when changing an edge of an associated type", func() {
		It("does not rewrite the mirror's attributes", func() {
			_, err := env.service.AddEdge(ctx, alice, bob, follows.ID, map[string]any{"since": 2024})
			Expect(err).NotTo(HaveOccurred())
			env.clock.Advance(1 * time.Minute)

			_, err = env.service.ChangeEdge(ctx, alice, bob, follows.ID, map[string]any{"since": 2025})
			Expect(err).NotTo(HaveOccurred())

			mirror, err := env.service.GetEdge(ctx, bob, alice, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mirror.Attributes).To(MatchJSON(`{"since": 2024}`))
		})
	})

	Context("with a self-symmetric type", func() {
		var friends *entities.EdgeType

		BeforeEach(func() {
			var err error
			friends, err = env.service.Types().CreateEdgeType(ctx, "friends", "friends with")
			Expect(err).NotTo(HaveOccurred())
			_, err = env.service.Types().Associate(ctx, friends.ID, friends.ID)
			Expect(err).NotTo(HaveOccurred())
		})

		It("mirrors within the same type", func() {
			_, err := env.service.AddEdge(ctx, alice, bob, friends.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			mirror, err := env.service.GetEdge(ctx, bob, alice, friends.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(mirror).NotTo(BeNil())
			Expect(mirror.Auto).To(BeTrue())
		})

		It("tears both directions down on delete", func() {
			_, err := env.service.AddEdge(ctx, alice, bob, friends.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			deleted, err := env.service.DeleteEdge(ctx, bob, alice, friends.ID)

			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())
			Expect(env.store.EdgeRowCount()).To(BeZero())
		})
	})

	Context("with no association declared", func() {
		It("creates nothing beyond the edge itself", func() {
			plain, err := env.service.Types().CreateEdgeType(ctx, "blocks", "blocks")
			Expect(err).NotTo(HaveOccurred())

			_, err = env.service.AddEdge(ctx, alice, bob, plain.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			Expect(env.store.EdgeRowCount()).To(Equal(1))
		})
	})
})

var _ = Describe("Node lifecycle cleanup", func() {
	var (
		env *testEnv
		ctx context.Context

		user domain.NodeRef

		follows    *entities.EdgeType
		followedBy *entities.EdgeType
	)

	BeforeEach(func() {
		ctx = context.Background()
		env = newTestEnv()
		user = stubs.NewNodeStub().Get()

		var err error
		follows, err = env.service.Types().CreateEdgeType(ctx, "follows", "follows")
		Expect(err).NotTo(HaveOccurred())
		followedBy, err = env.service.Types().CreateEdgeType(ctx, "followed_by", "followed by")
		Expect(err).NotTo(HaveOccurred())
		_, err = env.service.Types().Associate(ctx, follows.ID, followedBy.ID)
		Expect(err).NotTo(HaveOccurred())

		env.service.RegisterNodeKind("user")
	})

	Context("when a registered node is deleted", func() {
		It("removes its outgoing edges and their mirrors", func() {
			others := []domain.NodeRef{
				stubs.NewNodeStub().Get(),
				stubs.NewNodeStub().Get(),
			}
			for _, other := range others {
				_, err := env.service.AddEdge(ctx, user, other, follows.ID, nil)
				Expect(err).NotTo(HaveOccurred())
				env.clock.Advance(1 * time.Second)
			}
			Expect(env.store.EdgeRowCount()).To(Equal(4))

			// ACT
			Expect(env.service.NodeDeleted(ctx, user)).To(Succeed())

			// ASSERT
			Expect(env.store.EdgeRowCount()).To(BeZero())

			count, err := env.service.EdgeCount(ctx, user, follows.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(BeZero())

			for _, other := range others {
				incoming, err := env.service.GetEdge(ctx, other, user, followedBy.ID)
				Expect(err).NotTo(HaveOccurred())
				Expect(incoming).To(BeNil())
			}
		})

		It("publishes the node event when a publisher is attached", func() {
			publisher := &capturingPublisher{}
			env = newTestEnv(graph.WithPublisher(publisher))
			env.service.RegisterNodeKind("user")

			Expect(env.service.NodeDeleted(ctx, user)).To(Succeed())

			Expect(publisher.nodeEvents).To(HaveLen(1))
			Expect(publisher.nodeEvents[0].Kind).To(Equal(domain.NodeDeleted))
			Expect(publisher.nodeEvents[0].Node).To(Equal(user))
		})
	})

	Context("when the node kind is not registered", func() {
		It("ignores the event", func() {
			other := stubs.NewNodeStub().Get()
			_, err := env.service.AddEdge(ctx, user, other, follows.ID, nil)
			Expect(err).NotTo(HaveOccurred())

			device := domain.NodeRef{Kind: "device", ID: "d1"}
			Expect(env.service.NodeDeleted(ctx, device)).To(Succeed())

			Expect(env.store.EdgeRowCount()).To(Equal(2))
		})
	})
})
