//go:build datagen_postgres
// +build datagen_postgres

package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"socialgraph/src/helper/env"
	"socialgraph/src/infra/postgres"

	"github.com/go-faker/faker/v4"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// EdgeBundle is one origin node plus a fan-out of outgoing edges, inserted
// together so the counter row matches the edge rows.
type EdgeBundle struct {
	FromKind string
	FromID   string
	TypeID   int64
	Edges    []SeedEdge
}

type SeedEdge struct {
	ToKind     string
	ToID       string
	Attributes json.RawMessage
	CreatedAt  time.Time
}

var (
	originKinds = []string{"user", "organization", "page"}
	targetKinds = []string{"user", "page", "group"}
	seedTypes   = []string{"follows", "likes", "member_of"}
)

func newSQLClient() (*pgxpool.Pool, error) {
	dbHost := env.MustGetString("DB_HOST")
	dbPort := env.GetString("DB_PORT", "5432")
	dbname := env.MustGetString("DB_NAME")
	dbUser := env.MustGetString("DB_USER")
	dbPassword := env.MustGetString("DB_PASSWORD")
	maxConnections := 50
	return postgres.NewPostgresClient(dbHost, dbPort, dbname, dbUser, dbPassword, maxConnections)
}

func ensureEdgeTypes(ctx context.Context, db *pgxpool.Pool) (map[string]int64, error) {
	typeIDs := make(map[string]int64, len(seedTypes))
	for _, name := range seedTypes {
		var id int64
		err := db.QueryRow(ctx, `
			INSERT INTO edge_types (name, read_as)
			VALUES ($1, $2)
			ON CONFLICT (name) DO UPDATE SET read_as = EXCLUDED.read_as
			RETURNING id
		`, name, name).Scan(&id)
		if err != nil {
			return nil, fmt.Errorf("failed to upsert edge type %q: %w", name, err)
		}
		typeIDs[name] = id
	}
	return typeIDs, nil
}

func generateBundle(typeIDs map[string]int64, fanOut int) EdgeBundle {
	fromKind := originKinds[rand.Intn(len(originKinds))]
	typeName := seedTypes[rand.Intn(len(seedTypes))]

	bundle := EdgeBundle{
		FromKind: fromKind,
		FromID:   fmt.Sprintf("%s_%s_%d", fromKind, faker.Username(), rand.Intn(1000000)),
		TypeID:   typeIDs[typeName],
		Edges:    make([]SeedEdge, 0, fanOut),
	}

	base := time.Now().UTC().Add(-time.Duration(rand.Intn(720)) * time.Hour)
	for i := 0; i < fanOut; i++ {
		toKind := targetKinds[rand.Intn(len(targetKinds))]
		attrs, _ := json.Marshal(map[string]any{
			"source": "datagen",
			"weight": rand.Intn(100),
		})
		bundle.Edges = append(bundle.Edges, SeedEdge{
			ToKind:     toKind,
			ToID:       fmt.Sprintf("%s_%s_%d", toKind, faker.Username(), rand.Intn(1000000)),
			Attributes: attrs,
			CreatedAt:  base.Add(time.Duration(i) * time.Minute),
		})
	}
	return bundle
}

func insertBundles(ctx context.Context, db *pgxpool.Pool, bundles []EdgeBundle) error {
	tx, err := db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	rows := make([][]any, 0, len(bundles)*8)
	for _, bundle := range bundles {
		for _, edge := range bundle.Edges {
			rows = append(rows, []any{
				bundle.FromKind, bundle.FromID, edge.ToKind, edge.ToID,
				bundle.TypeID, edge.Attributes, false, "", edge.CreatedAt,
			})
		}
	}

	_, err = tx.CopyFrom(ctx,
		pgx.Identifier{"edges"},
		[]string{"from_kind", "from_id", "to_kind", "to_id", "type_id", "attributes", "auto", "scope", "created_at"},
		pgx.CopyFromRows(rows),
	)
	if err != nil {
		return fmt.Errorf("failed to copy edges: %w", err)
	}

	for _, bundle := range bundles {
		_, err = tx.Exec(ctx, `
			INSERT INTO edge_counts (from_kind, from_id, type_id, scope, count)
			VALUES ($1, $2, $3, '', $4)
			ON CONFLICT (from_kind, from_id, type_id, scope)
			DO UPDATE SET count = edge_counts.count + EXCLUDED.count
		`, bundle.FromKind, bundle.FromID, bundle.TypeID, len(bundle.Edges))
		if err != nil {
			return fmt.Errorf("failed to upsert counter: %w", err)
		}
	}

	return tx.Commit(ctx)
}

func main() {
	var (
		numOrigins   = flag.Int("origins", -1, "origin nodes to seed (-1 = until interrupted)")
		fanOut       = flag.Int("fan-out", 20, "edges per origin")
		bulkSize     = flag.Int("bulk-size", 100, "origins per transaction")
		numConsumers = flag.Int("consumers", 8, "concurrent insert workers")
	)
	flag.Parse()

	rand.Seed(time.Now().UnixNano())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := newSQLClient()
	if err != nil {
		log.Fatalf("Failed to connect: %v", err)
	}
	defer db.Close()

	typeIDs, err := ensureEdgeTypes(ctx, db)
	if err != nil {
		log.Fatalf("Failed to seed edge types: %v", err)
	}

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-stop
		log.Println("Interrupted, draining...")
		cancel()
	}()

	bundleChan := make(chan EdgeBundle, (*bulkSize)*(*numConsumers))
	var totalEdges, totalErrors int64
	startTime := time.Now()

	go func() {
		ticker := time.NewTicker(2 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed := time.Since(startTime).Seconds()
				log.Printf("edges=%d errors=%d rate=%.0f/s",
					atomic.LoadInt64(&totalEdges), atomic.LoadInt64(&totalErrors),
					float64(atomic.LoadInt64(&totalEdges))/elapsed)
			}
		}
	}()

	var wg sync.WaitGroup
	for i := 0; i < *numConsumers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			batch := make([]EdgeBundle, 0, *bulkSize)
			flush := func() {
				if len(batch) == 0 {
					return
				}
				if err := insertBundles(ctx, db, batch); err != nil {
					atomic.AddInt64(&totalErrors, 1)
					log.Printf("Failed to insert batch: %v", err)
				} else {
					for _, bundle := range batch {
						atomic.AddInt64(&totalEdges, int64(len(bundle.Edges)))
					}
				}
				batch = batch[:0]
			}
			for bundle := range bundleChan {
				batch = append(batch, bundle)
				if len(batch) >= *bulkSize {
					flush()
				}
			}
			flush()
		}()
	}

	produced := 0
	for *numOrigins < 0 || produced < *numOrigins {
		select {
		case <-ctx.Done():
			goto done
		case bundleChan <- generateBundle(typeIDs, *fanOut):
			produced++
		}
	}

done:
	close(bundleChan)
	wg.Wait()
	log.Printf("Seeded %d origins, %d edges in %s", produced, atomic.LoadInt64(&totalEdges), time.Since(startTime))
}
