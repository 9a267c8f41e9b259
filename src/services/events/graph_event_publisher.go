package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"socialgraph/src/domain"
	"socialgraph/src/infra/kafka"

	"github.com/google/uuid"
)

// GraphEventPublisher fans committed graph mutations out to Kafka. Messages
// are keyed by the origin node so every consumer sees one node's mutations
// in order.
type GraphEventPublisher struct {
	logger      *slog.Logger
	kafkaClient *kafka.KafkaClient
	edgeTopic   string
	nodeTopic   string
}

func NewGraphEventPublisher(
	logger *slog.Logger,
	kafkaClient *kafka.KafkaClient,
	edgeTopic string,
	nodeTopic string,
) *GraphEventPublisher {
	return &GraphEventPublisher{
		logger:      logger,
		kafkaClient: kafkaClient,
		edgeTopic:   edgeTopic,
		nodeTopic:   nodeTopic,
	}
}

type edgeMutationEvent struct {
	EventID          string              `json:"event_id"`
	Kind             domain.MutationKind `json:"kind"`
	Edge             edgePayload         `json:"edge"`
	OccurredAtMillis int64               `json:"occurred_at_millis"`
}

type edgePayload struct {
	FromKind   string          `json:"from_kind"`
	FromID     string          `json:"from_id"`
	ToKind     string          `json:"to_kind"`
	ToID       string          `json:"to_id"`
	TypeID     int64           `json:"type_id"`
	Attributes json.RawMessage `json:"attributes"`
	Auto       bool            `json:"auto"`
	Scope      string          `json:"scope,omitempty"`
}

type nodeLifecycleEvent struct {
	EventID  string              `json:"event_id"`
	Kind     domain.MutationKind `json:"kind"`
	NodeKind string              `json:"node_kind"`
	NodeID   string              `json:"node_id"`
}

// PublishEdgeMutations publishes one message per committed edge mutation.
func (p *GraphEventPublisher) PublishEdgeMutations(ctx context.Context, mutations []domain.EdgeMutation) error {
	if len(mutations) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(mutations))
	for _, mutation := range mutations {
		edge := mutation.Edge
		event := edgeMutationEvent{
			EventID: uuid.NewString(),
			Kind:    mutation.Kind,
			Edge: edgePayload{
				FromKind:   edge.FromKind,
				FromID:     edge.FromID,
				ToKind:     edge.ToKind,
				ToID:       edge.ToID,
				TypeID:     edge.TypeID,
				Attributes: edge.Attributes,
				Auto:       edge.Auto,
				Scope:      edge.Scope,
			},
			OccurredAtMillis: edge.Time.UnixMilli(),
		}

		value, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal edge mutation event",
				"event_id", event.EventID, "kind", mutation.Kind, "error", err)
			continue
		}

		messages = append(messages, kafka.Message{
			Key:   fmt.Sprintf("%s:%s", edge.FromKind, edge.FromID),
			Value: value,
			Headers: map[string]string{
				"event_type":     string(mutation.Kind),
				"event_id":       event.EventID,
				"source_service": "social-graph-api",
				"schema_version": "v1",
			},
		})
	}

	if err := p.kafkaClient.Producer(messages, p.edgeTopic); err != nil {
		return fmt.Errorf("failed to publish edge mutations to topic %s: %w", p.edgeTopic, err)
	}

	p.logger.Debug("Published edge mutations", "topic", p.edgeTopic, "count", len(messages))
	return nil
}

// PublishNodeEvents publishes node lifecycle events.
func (p *GraphEventPublisher) PublishNodeEvents(ctx context.Context, events []domain.NodeEvent) error {
	if len(events) == 0 {
		return nil
	}

	messages := make([]kafka.Message, 0, len(events))
	for _, nodeEvent := range events {
		event := nodeLifecycleEvent{
			EventID:  uuid.NewString(),
			Kind:     nodeEvent.Kind,
			NodeKind: nodeEvent.Node.Kind,
			NodeID:   nodeEvent.Node.ID,
		}

		value, err := json.Marshal(event)
		if err != nil {
			p.logger.Error("Failed to marshal node lifecycle event",
				"event_id", event.EventID, "kind", nodeEvent.Kind, "error", err)
			continue
		}

		messages = append(messages, kafka.Message{
			Key:   nodeEvent.Node.String(),
			Value: value,
			Headers: map[string]string{
				"event_type":     string(nodeEvent.Kind),
				"event_id":       event.EventID,
				"source_service": "social-graph-api",
				"schema_version": "v1",
			},
		})
	}

	if err := p.kafkaClient.Producer(messages, p.nodeTopic); err != nil {
		return fmt.Errorf("failed to publish node events to topic %s: %w", p.nodeTopic, err)
	}

	p.logger.Debug("Published node events", "topic", p.nodeTopic, "count", len(messages))
	return nil
}
