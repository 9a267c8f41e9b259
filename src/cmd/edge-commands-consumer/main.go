package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialgraph/src/adapters/kafka/consumers"
	"socialgraph/src/helper/env"
	"socialgraph/src/infra/kafka"
	"socialgraph/src/infra/postgres"
	"socialgraph/src/infra/redis"
	"socialgraph/src/repositories"
	"socialgraph/src/services/graph"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/fx"
)

func main() {
	log.SetOutput(os.Stdout)
	log.Println("Starting edge commands consumer with Uber Fx...")

	app := fx.New(
		// Providers
		fx.Provide(
			newLogger,
			newSQLClient,
			newRedisClient,
			newKafkaClient,
			newGraphStoreRepository,
			newGraphCacheRepository,
			newGraphService,
			newEdgeCommandsConsumer,
		),

		// Invocations
		fx.Invoke(startConsumer),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		log.Fatalf("Failed to start consumer application: %v", err)
	}

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c

	log.Println("Shutting down edge commands consumer...")

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()

	if err := app.Stop(stopCtx); err != nil {
		log.Printf("Failed to stop application gracefully: %v", err)
	}

	log.Println("Edge commands consumer shutdown complete")
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

func newKafkaClient(logger *slog.Logger) (*kafka.KafkaClient, error) {
	brokers := env.MustGetString("KAFKA_BROKERS")
	groupID := env.MustGetString("KAFKA_EDGE_COMMANDS_GROUP_ID")
	batchSize := env.GetInt("KAFKA_BATCH_SIZE", 100)

	return kafka.NewKafkaClient(logger, brokers, groupID, batchSize)
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
	service, err := graph.NewGraphService(store, cache, logger,
		graph.WithScope(env.GetString("GRAPH_SCOPE", "")),
	)
	if err != nil {
		return nil, err
	}

	for _, kind := range env.GetStringSlice("GRAPH_NODE_KINDS", nil) {
		service.RegisterNodeKind(kind)
	}
	return service, nil
}

func newEdgeCommandsConsumer(
	logger *slog.Logger,
	graphService *graph.GraphService,
) *consumers.EdgeCommandsConsumer {
	return consumers.NewEdgeCommandsConsumer(logger, graphService)
}

func startConsumer(
	lc fx.Lifecycle,
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	edgeCommandsConsumer *consumers.EdgeCommandsConsumer,
) {
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			topic := env.MustGetString("KAFKA_EDGE_COMMANDS_TOPIC")
			logger.Info("Starting edge commands consumer", "topic", topic)

			go func() {
				if err := edgeCommandsConsumer.Start(ctx, kafkaClient, topic); err != nil {
					logger.Error("Consumer failed", "error", err)
				}
			}()

			return nil
		},
		OnStop: func(ctx context.Context) error {
			logger.Info("Shutting down Kafka client...")
			if err := kafkaClient.Close(); err != nil {
				logger.Error("Failed to close Kafka client", "error", err)
				return err
			}
			logger.Info("Kafka client shut down gracefully")
			return nil
		},
	})
}
