package main

import (
	"context"
	"log"
	"log/slog"
	nethttp "net/http"
	"os"
	"time"

	"socialgraph/src/adapters/http"
	"socialgraph/src/helper/env"
	"socialgraph/src/infra/kafka"
	"socialgraph/src/infra/postgres"
	"socialgraph/src/infra/redis"
	"socialgraph/src/repositories"
	"socialgraph/src/services/events"
	"socialgraph/src/services/graph"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting graph API server with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newSQLClient,
			newRedisClient,
			newGraphStoreRepository,
			newGraphCacheRepository,
			newGraphService,
			newServer,
		),

		// Invocations
		fx.Invoke(registerServerHooks),
	)

	if err := app.Start(context.Background()); err != nil {
		log.Fatalf("Failed to start application: %v", err)
	}

	<-app.Done()
}

func newLogger() *slog.Logger {
	logLevel := env.GetString("LOG_LEVEL", "info")
	var level slog.Level

	switch logLevel {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}

	h := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})
	logger := slog.New(h)
	slog.SetDefault(logger)
	return logger
}

func newSQLClient() (*pgxpool.Pool, error) {
	dbHost := env.MustGetString("DB_HOST")
	dbPort := env.GetString("DB_PORT", "5432")
	dbname := env.MustGetString("DB_NAME")
	dbUser := env.MustGetString("DB_USER")
	dbPassword := env.MustGetString("DB_PASSWORD")
	maxConnections := env.GetInt("DB_MAX_POOL_CONNECTIONS", 25)

	return postgres.NewPostgresClient(dbHost, dbPort, dbname, dbUser, dbPassword, maxConnections)
}

func newRedisClient() *redis.RedisClient {
	redisHosts := env.MustGetString("REDIS_HOSTS")
	redisPoolSize := env.GetInt("REDIS_POOL_SIZE", 50)
	redisDefaultTTLSeconds := env.GetInt("REDIS_DEFAULT_TTL_SECONDS", 0)
	redisDefaultTTL := time.Duration(redisDefaultTTLSeconds) * time.Second

	return redis.NewRedisClient(redisHosts, redisPoolSize, redisDefaultTTL)
}

func newGraphStoreRepository(pool *pgxpool.Pool) *repositories.GraphStoreRepository {
	return repositories.NewGraphStoreRepository(pool)
}

func newGraphCacheRepository(redisClient *redis.RedisClient) *repositories.GraphCacheRepository {
	return repositories.NewGraphCacheRepository(redisClient)
}

func newGraphService(
	logger *slog.Logger,
	store *repositories.GraphStoreRepository,
	cache *repositories.GraphCacheRepository,
) (*graph.GraphService, error) {
	opts := []graph.Option{
		graph.WithScope(env.GetString("GRAPH_SCOPE", "")),
	}

	// The publisher is optional: without brokers configured, mutations stay
	// local to the store and cache.
	if brokers := env.GetString("KAFKA_BROKERS", ""); brokers != "" {
		groupID := env.GetString("KAFKA_SERVER_GROUP_ID", "social-graph-api")
		batchSize := env.GetInt("KAFKA_BATCH_SIZE", 100)

		kafkaClient, err := kafka.NewKafkaClient(logger, brokers, groupID, batchSize)
		if err != nil {
			return nil, err
		}

		publisher := events.NewGraphEventPublisher(
			logger,
			kafkaClient,
			env.GetString("KAFKA_EDGE_MUTATIONS_TOPIC", "social-graph.edge-mutations"),
			env.GetString("KAFKA_NODE_EVENTS_TOPIC", "social-graph.node-events"),
		)
		opts = append(opts, graph.WithPublisher(publisher))
	}

	service, err := graph.NewGraphService(store, cache, logger, opts...)
	if err != nil {
		return nil, err
	}

	for _, kind := range env.GetStringSlice("GRAPH_NODE_KINDS", nil) {
		service.RegisterNodeKind(kind)
	}
	return service, nil
}

func newServer(
	logger *slog.Logger,
	graphService *graph.GraphService,
) *http.Server {
	port := env.GetInt("SERVER_PORT", 8888)

	return http.NewServer(logger, port, graphService)
}

func registerServerHooks(lc fx.Lifecycle, srv *http.Server) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.Start(); err != nil && err != nethttp.ErrServerClosed {
					log.Fatalf("Server failed: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
			defer cancel()

			log.Println("Shutting down server...")
			if err := srv.Shutdown(shutdownCtx); err != nil {
				log.Printf("Server forced to shutdown: %v", err)
				return err
			}
			log.Println("Server exited gracefully")
			return nil
		},
	})
}
