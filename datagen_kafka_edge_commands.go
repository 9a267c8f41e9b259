//go:build datagen_kafka_edge_commands
// +build datagen_kafka_edge_commands

package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math/rand"
	"os"
	"os/signal"
	"syscall"
	"time"

	"socialgraph/src/helper/env"
	"socialgraph/src/infra/kafka"

	"github.com/go-faker/faker/v4"
)

// EdgeCommandMessage mirrors the schema consumed by the edge commands
// consumer.
type EdgeCommandMessage struct {
	Action     string         `json:"action"`
	FromKind   string         `json:"from_kind"`
	FromID     string         `json:"from_id"`
	ToKind     string         `json:"to_kind"`
	ToID       string         `json:"to_id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

var (
	nodeKinds = []string{"user", "organization", "page", "group"}
	edgeTypes = []string{"follows", "member_of", "likes", "blocks", "friends"}
	// Add-heavy mix so deletes usually hit existing edges.
	actions = []string{"add", "add", "add", "add", "change", "delete"}
)

func generateNodeID(kind string) string {
	return fmt.Sprintf("%s_%s_%d", kind, faker.Username(), rand.Intn(1000000))
}

func generateCommand(knownNodes *[]string) EdgeCommandMessage {
	fromKind := nodeKinds[rand.Intn(len(nodeKinds))]
	toKind := nodeKinds[rand.Intn(len(nodeKinds))]

	var fromID string
	// Reuse known origins so counters and edge lists accumulate realistically.
	if len(*knownNodes) > 0 && rand.Float32() < 0.5 {
		fromID = (*knownNodes)[rand.Intn(len(*knownNodes))]
	} else {
		fromID = generateNodeID(fromKind)
		*knownNodes = append(*knownNodes, fromID)
	}

	return EdgeCommandMessage{
		Action:   actions[rand.Intn(len(actions))],
		FromKind: fromKind,
		FromID:   fromID,
		ToKind:   toKind,
		ToID:     generateNodeID(toKind),
		Type:     edgeTypes[rand.Intn(len(edgeTypes))],
		Attributes: map[string]any{
			"source": "datagen",
			"weight": rand.Intn(100),
		},
	}
}

func main() {
	var (
		rate      = flag.Int("rate", 100, "messages per second")
		batchSize = flag.Int("batch", 50, "messages per produced batch")
		duration  = flag.Duration("duration", 0, "how long to run (0 = until interrupted)")
	)
	flag.Parse()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	brokers := env.MustGetString("KAFKA_BROKERS")
	topic := env.GetString("KAFKA_EDGE_COMMANDS_TOPIC", "social-graph.edge-commands")

	kafkaClient, err := kafka.NewKafkaClient(logger, brokers, "datagen-edge-commands", *batchSize)
	if err != nil {
		log.Fatalf("Failed to create kafka client: %v", err)
	}
	defer kafkaClient.Close()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	var deadline <-chan time.Time
	if *duration > 0 {
		deadline = time.After(*duration)
	}

	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	var knownNodes []string
	total := 0

	log.Printf("Producing %d edge commands/s to %s", *rate, topic)

	for {
		select {
		case <-stop:
			log.Printf("Interrupted after %d messages", total)
			return
		case <-deadline:
			log.Printf("Done after %d messages", total)
			return
		case <-ticker.C:
			remaining := *rate
			for remaining > 0 {
				size := *batchSize
				if remaining < size {
					size = remaining
				}

				messages := make([]kafka.Message, 0, size)
				for i := 0; i < size; i++ {
					command := generateCommand(&knownNodes)
					value, err := json.Marshal(command)
					if err != nil {
						log.Printf("Failed to marshal command: %v", err)
						continue
					}
					messages = append(messages, kafka.Message{
						Key:   fmt.Sprintf("%s:%s", command.FromKind, command.FromID),
						Value: value,
					})
				}

				if err := kafkaClient.Producer(messages, topic); err != nil {
					log.Printf("Failed to produce batch: %v", err)
				}
				total += len(messages)
				remaining -= size
			}
		}
	}
}
