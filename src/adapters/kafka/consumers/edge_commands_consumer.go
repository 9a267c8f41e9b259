package consumers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"socialgraph/src/domain"
	"socialgraph/src/infra/kafka"
	"socialgraph/src/services/graph"
)

// EdgeCommandMessage is the schema of the edge-commands topic. Attributes
// apply to add and change only; delete_all ignores the destination.
type EdgeCommandMessage struct {
	Action     string         `json:"action"`
	FromKind   string         `json:"from_kind"`
	FromID     string         `json:"from_id"`
	ToKind     string         `json:"to_kind"`
	ToID       string         `json:"to_id"`
	Type       string         `json:"type"`
	Attributes map[string]any `json:"attributes"`
}

const (
	ActionAddEdge    = "add"
	ActionChangeEdge = "change"
	ActionDeleteEdge = "delete"
	ActionDeleteAll  = "delete_all"
)

// EdgeCommandsConsumer applies edge write commands arriving over Kafka.
// Commands are idempotent at the engine level (duplicate adds are absorbed,
// changes of missing edges create them, deletes of missing edges are no-ops),
// so batch redelivery after a failure is safe.
type EdgeCommandsConsumer struct {
	logger       *slog.Logger
	graphService *graph.GraphService
}

func NewEdgeCommandsConsumer(
	logger *slog.Logger,
	graphService *graph.GraphService,
) *EdgeCommandsConsumer {
	return &EdgeCommandsConsumer{
		logger:       logger,
		graphService: graphService,
	}
}

func (c *EdgeCommandsConsumer) Start(ctx context.Context, kafkaClient *kafka.KafkaClient, topic string) error {
	c.logger.Info("Starting edge commands consumer", "topic", topic)

	handler := func(messages []kafka.Message) error {
		return c.handleMessages(ctx, messages)
	}

	return kafkaClient.Consumer(ctx, handler, topic)
}

func (c *EdgeCommandsConsumer) handleMessages(ctx context.Context, messages []kafka.Message) error {
	if len(messages) == 0 {
		return nil
	}

	c.logger.Info("Processing edge commands batch", "count", len(messages))

	for _, msg := range messages {
		var command EdgeCommandMessage
		if err := json.Unmarshal(msg.Value, &command); err != nil {
			c.logger.Error("Failed to unmarshal edge command",
				"error", err,
				"key", msg.Key,
				"value", string(msg.Value))
			return fmt.Errorf("failed to unmarshal edge command with key %s: %w", msg.Key, err)
		}

		if err := c.apply(ctx, command); err != nil {
			c.logger.Error("Failed to apply edge command",
				"error", err,
				"action", command.Action,
				"key", msg.Key)
			return fmt.Errorf("failed to apply edge command with key %s: %w", msg.Key, err)
		}
	}

	c.logger.Info("Successfully processed edge commands batch", "count", len(messages))
	return nil
}

func (c *EdgeCommandsConsumer) apply(ctx context.Context, command EdgeCommandMessage) error {
	if command.FromKind == "" || command.FromID == "" || command.Type == "" {
		return fmt.Errorf("invalid edge command: from node and type are required")
	}

	edgeType, err := c.graphService.Types().ByName(ctx, command.Type)
	if err != nil {
		return fmt.Errorf("failed to resolve edge type %q: %w", command.Type, err)
	}

	from := domain.NodeRef{Kind: command.FromKind, ID: command.FromID}
	to := domain.NodeRef{Kind: command.ToKind, ID: command.ToID}

	switch command.Action {
	case ActionAddEdge:
		_, err := c.graphService.AddEdge(ctx, from, to, edgeType.ID, command.Attributes)
		if errors.Is(err, domain.ErrDuplicateEdge) {
			c.logger.Warn("Skipping duplicate edge add", "from", from.String(), "to", to.String(), "type", command.Type)
			return nil
		}
		return err

	case ActionChangeEdge:
		_, err := c.graphService.ChangeEdge(ctx, from, to, edgeType.ID, command.Attributes)
		return err

	case ActionDeleteEdge:
		_, err := c.graphService.DeleteEdge(ctx, from, to, edgeType.ID)
		return err

	case ActionDeleteAll:
		_, err := c.graphService.DeleteAllEdges(ctx, from, edgeType.ID)
		return err

	default:
		return fmt.Errorf("unknown edge command action %q", command.Action)
	}
}
