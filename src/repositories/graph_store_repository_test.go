package repositories_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"socialgraph/src/domain"
	"socialgraph/src/domain/entities"
	"socialgraph/src/helper/env"
	"socialgraph/src/infra/postgres"
	"socialgraph/src/repositories"
	"socialgraph/src/services/graph"
	"socialgraph/src/test_artefacts/comparer"
	"socialgraph/src/test_artefacts/test_seeder"

	"github.com/google/go-cmp/cmp"
	"github.com/jackc/pgx/v5/pgxpool"
)

func TestRepositories(t *testing.T) {
	RegisterFailHandler(Fail)
	RunSpecs(t, "Repositories Suite")
}

// Runs against a real database; skipped unless TEST_DB_HOST is set.
var _ = Describe("GraphStoreRepository", func() {
	var (
		pool       *pgxpool.Pool
		repository *repositories.GraphStoreRepository
		seeder     test_seeder.TestSeeder
		ctx        context.Context

		followsTypeID int64
	)

	BeforeEach(func() {
		if os.Getenv("TEST_DB_HOST") == "" {
			Skip("TEST_DB_HOST not set, skipping database suite")
		}

		ctx = context.Background()

		dbHost := env.MustGetString("TEST_DB_HOST")
		dbPort := env.GetString("TEST_DB_PORT", "5432")
		dbname := env.MustGetString("TEST_DB_NAME")
		dbUser := env.MustGetString("TEST_DB_USER")
		dbPassword := env.MustGetString("TEST_DB_PASSWORD")
		maxConnections := env.GetInt("TEST_DB_MAX_POOL_CONNECTIONS", 10)

		var err error
		pool, err = postgres.NewPostgresClient(dbHost, dbPort, dbname, dbUser, dbPassword, maxConnections)
		Expect(err).NotTo(HaveOccurred())

		repository = repositories.NewGraphStoreRepository(pool)
		seeder = test_seeder.New(pool)
		seeder.TruncateTables(ctx)

		followsTypeID = seeder.InsertEdgeType(ctx, "follows", "follows")
	})

	AfterEach(func() {
		if pool != nil {
			pool.Close()
		}
	})

	newEdge := func(from, to domain.NodeRef, at time.Time) *entities.Edge {
		return &entities.Edge{
			FromKind:   from.Kind,
			FromID:     from.ID,
			ToKind:     to.Kind,
			ToID:       to.ID,
			TypeID:     followsTypeID,
			Attributes: json.RawMessage(`{"weight":1}`),
			Scope:      "",
			Time:       at,
		}
	}

	Context("edge rows", func() {
		It("round trips an edge through insert and select", func() {
			from := domain.NodeRef{Kind: "user", ID: "u1"}
			to := domain.NodeRef{Kind: "user", ID: "u2"}
			edge := newEdge(from, to, time.Now().UTC().Truncate(time.Millisecond))

			Expect(repository.CreateEdge(ctx, edge)).To(Succeed())
			Expect(edge.ID).NotTo(BeZero())

			fetched, err := repository.GetEdge(ctx, from, to, followsTypeID, "")
			Expect(err).NotTo(HaveOccurred())

			diff := cmp.Diff(edge, fetched,
				comparer.IgnoreFieldsFor[entities.Edge]("Time"),
				comparer.JSONRawMessage(),
			)
			Expect(diff).To(BeEmpty())
			Expect(fetched.Time).To(BeTemporally("~", edge.Time, time.Millisecond))
		})

		It("rejects a duplicate triple", func() {
			from := domain.NodeRef{Kind: "user", ID: "u1"}
			to := domain.NodeRef{Kind: "user", ID: "u2"}

			Expect(repository.CreateEdge(ctx, newEdge(from, to, time.Now().UTC()))).To(Succeed())
			err := repository.CreateEdge(ctx, newEdge(from, to, time.Now().UTC()))

			Expect(err).To(MatchError(domain.ErrDuplicateEdge))
		})

		It("lists edges oldest first and reports distinct scopes", func() {
			from := domain.NodeRef{Kind: "user", ID: "u1"}
			base := time.Now().UTC().Truncate(time.Millisecond)

			first := newEdge(from, domain.NodeRef{Kind: "user", ID: "u2"}, base)
			second := newEdge(from, domain.NodeRef{Kind: "user", ID: "u3"}, base.Add(time.Second))
			scoped := newEdge(from, domain.NodeRef{Kind: "user", ID: "u4"}, base)
			scoped.Scope = "tenant-a"

			Expect(repository.CreateEdge(ctx, first)).To(Succeed())
			Expect(repository.CreateEdge(ctx, second)).To(Succeed())
			Expect(repository.CreateEdge(ctx, scoped)).To(Succeed())

			edges, err := repository.ListEdges(ctx, from, followsTypeID, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(edges).To(HaveLen(2))
			Expect(edges[0].ToID).To(Equal("u2"))
			Expect(edges[1].ToID).To(Equal("u3"))

			scopes, err := repository.EdgeScopes(ctx, from, followsTypeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(scopes).To(ConsistOf("", "tenant-a"))
		})

		It("reports a missing edge with the sentinel", func() {
			_, err := repository.GetEdge(ctx,
				domain.NodeRef{Kind: "user", ID: "nobody"},
				domain.NodeRef{Kind: "user", ID: "nothing"},
				followsTypeID, "")

			Expect(err).To(MatchError(domain.ErrEdgeNotFound))
		})
	})

	Context("counter rows", func() {
		It("creates the row on first adjust and moves it afterwards", func() {
			from := domain.NodeRef{Kind: "user", ID: "u1"}

			created, err := repository.AdjustCount(ctx, from, followsTypeID, "", 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeTrue())

			created, err = repository.AdjustCount(ctx, from, followsTypeID, "", 1, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(created).To(BeFalse())

			count, err := repository.GetCount(ctx, from, followsTypeID, "")
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(int64(2)))
		})

		It("reports a missing counter with the sentinel", func() {
			_, err := repository.GetCount(ctx, domain.NodeRef{Kind: "user", ID: "nobody"}, followsTypeID, "")

			Expect(err).To(MatchError(domain.ErrCountNotFound))
		})
	})

	Context("transactions", func() {
		It("rolls back every row written by a failed callback", func() {
			from := domain.NodeRef{Kind: "user", ID: "u1"}
			to := domain.NodeRef{Kind: "user", ID: "u2"}

			err := repository.WithinTransaction(ctx, func(tx graph.StoreTx) error {
				if err := tx.CreateEdge(ctx, newEdge(from, to, time.Now().UTC())); err != nil {
					return err
				}
				if _, err := tx.AdjustCount(ctx, from, followsTypeID, "", 1, 1); err != nil {
					return err
				}
				return context.Canceled
			})
			Expect(err).To(MatchError(context.Canceled))

			Expect(seeder.CountEdges(ctx)).To(BeZero())
			_, err = repository.GetCount(ctx, from, followsTypeID, "")
			Expect(err).To(MatchError(domain.ErrCountNotFound))
		})
	})

	Context("edge type tables", func() {
		It("resolves types by id and name", func() {
			byID, err := repository.GetEdgeTypeByID(ctx, followsTypeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(byID.Name).To(Equal("follows"))

			byName, err := repository.GetEdgeTypeByName(ctx, "follows")
			Expect(err).NotTo(HaveOccurred())
			Expect(byName.ID).To(Equal(followsTypeID))
		})

		It("round trips associations", func() {
			inverseID := seeder.InsertEdgeType(ctx, "followed_by", "followed by")

			association := &entities.EdgeTypeAssociation{DirectTypeID: followsTypeID, InverseTypeID: inverseID}
			Expect(repository.CreateAssociation(ctx, association)).To(Succeed())

			fetched, err := repository.GetAssociationByDirect(ctx, followsTypeID)
			Expect(err).NotTo(HaveOccurred())
			Expect(fetched.InverseTypeID).To(Equal(inverseID))

			deleted, err := repository.DeleteAssociation(ctx, fetched.ID)
			Expect(err).NotTo(HaveOccurred())
			Expect(deleted).To(BeTrue())

			_, err = repository.GetAssociationByDirect(ctx, followsTypeID)
			Expect(err).To(MatchError(domain.ErrAssociationNotFound))
		})
	})
})
