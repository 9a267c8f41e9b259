package graph_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"socialgraph/src/domain"
)

var _ = Describe("TypeDirectory", func() {
	var (
		env *testEnv
		ctx context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		env = newTestEnv()
	})

	Context("when managing edge types", func() {
		It("creates and resolves types by name and id", func() {
			created, err := env.service.Types().CreateEdgeType(ctx, "follows", "follows")
			Expect(err).NotTo(HaveOccurred())

			byName, err := env.service.Types().ByName(ctx, "follows")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(created.ID))

			byID, err := env.service.Types().ByID(ctx, created.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Name).To(Equal("follows"))
			Expect(byID.ReadAs).To(Equal("follows"))
		})

		It("reports unknown types", func() {
			_, err := env.service.Types().ByName(ctx, "nonexistent")

			Expect(err).To(MatchError(domain.ErrEdgeTypeNotFound))
		})

		It("deletes types and forgets them", func() {
			created, err := env.service.Types().CreateEdgeType(ctx, "temporary", "")
			Expect(err).NotTo(HaveOccurred())

			Expect(env.service.Types().DeleteEdgeType(ctx, created.ID)).To(Succeed())

			_, err = env.service.Types().ByID(ctx, created.ID)
			Expect(err).To(MatchError(domain.ErrEdgeTypeNotFound))
		})
	})

	Context("when associating edge types", func() {
		It("creates the reverse pair automatically", func() {
			follows, err := env.service.Types().CreateEdgeType(ctx, "follows", "follows")
			Expect(err).NotTo(HaveOccurred())
			followedBy, err := env.service.Types().CreateEdgeType(ctx, "followed_by", "followed by")
			Expect(err).NotTo(HaveOccurred())

			// ACT
			_, err = env.service.Types().Associate(ctx, follows.ID, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())

			// ASSERT: both directions resolve
			direct, err := env.service.Types().AssociationForDirect(ctx, follows.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(direct.InverseTypeID).To(Equal(followedBy.ID))

			reverse, err := env.service.Types().AssociationForDirect(ctx, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(reverse.InverseTypeID).To(Equal(follows.ID))
		})

		It("stores a single row for a self-symmetric type", func() {
			friends, err := env.service.Types().CreateEdgeType(ctx, "friends", "friends with")
			Expect(err).NotTo(HaveOccurred())

			association, err := env.service.Types().Associate(ctx, friends.ID, friends.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(association.SelfSymmetric()).To(BeTrue())

			resolved, err := env.service.Types().AssociationForDirect(ctx, friends.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(resolved.InverseTypeID).To(Equal(friends.ID))
		})

		It("removes both directions on dissociate", func() {
			follows, err := env.service.Types().CreateEdgeType(ctx, "follows", "follows")
			Expect(err).NotTo(HaveOccurred())
			followedBy, err := env.service.Types().CreateEdgeType(ctx, "followed_by", "followed by")
			Expect(err).NotTo(HaveOccurred())
			_, err = env.service.Types().Associate(ctx, follows.ID, followedBy.ID)
			Expect(err).NotTo(HaveOccurred())

			// ACT
			Expect(env.service.Types().Dissociate(ctx, follows.ID)).To(Succeed())

			// ASSERT
			_, err = env.service.Types().AssociationForDirect(ctx, follows.ID)
			Expect(err).To(MatchError(domain.ErrAssociationNotFound))

			_, err = env.service.Types().AssociationForDirect(ctx, followedBy.ID)
			Expect(err).To(MatchError(domain.ErrAssociationNotFound))
		})

		It("reports a missing association on dissociate", func() {
			follows, err := env.service.Types().CreateEdgeType(ctx, "follows", "follows")
			Expect(err).NotTo(HaveOccurred())

			err = env.service.Types().Dissociate(ctx, follows.ID)

			Expect(err).To(MatchError(domain.ErrAssociationNotFound))
		})
	})
})
