package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/tnqbao/gau-kv-orchestrator/entity"
	"github.com/tnqbao/gau-kv-orchestrator/infra"
	"github.com/tnqbao/gau-kv-orchestrator/infra/produce"
	"github.com/tnqbao/gau-kv-orchestrator/repository"
	"gorm.io/datatypes"
)

type AuditConsumer struct {
	channel    *amqp.Channel
	infra      *infra.Infra
	repository *repository.Repository
}

func NewAuditConsumer(channel *amqp.Channel, infra *infra.Infra, repo *repository.Repository) *AuditConsumer {
	return &AuditConsumer{
		channel:    channel,
		infra:      infra,
		repository: repo,
	}
}

func (c *AuditConsumer) Start(ctx context.Context) error {
	msgs, err := c.channel.Consume(
		produce.AuditRecordQueue,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("failed to register audit record consumer: %w", err)
	}

	c.infra.Logger.InfoWithContextf(ctx, "[Audit Consumer] Started listening for audit records on queue: %s", produce.AuditRecordQueue)

	go func() {
		for {
			select {
			case <-ctx.Done():
				c.infra.Logger.InfoWithContextf(ctx, "[Audit Consumer] Shutting down...")
				return
			case msg, ok := <-msgs:
				if !ok {
					c.infra.Logger.WarningWithContextf(ctx, "[Audit Consumer] Channel closed")
					return
				}
				c.handleRecord(ctx, msg)
			}
		}
	}()

	return nil
}

func (c *AuditConsumer) handleRecord(ctx context.Context, msg amqp.Delivery) {
	var payload produce.AuditRecordMessage
	if err := json.Unmarshal(msg.Body, &payload); err != nil {
		c.infra.Logger.ErrorWithContextf(ctx, err, "[Audit Consumer] Failed to unmarshal message: %v", err)
		_ = msg.Nack(false, false)
		return
	}

	if payload.CollectionID == "" || payload.Operation == "" {
		c.infra.Logger.WarningWithContextf(ctx, "[Audit Consumer] Dropping malformed record: %s", string(msg.Body))
		_ = msg.Nack(false, false)
		return
	}

	record := &entity.AuditLog{
		CollectionID: payload.CollectionID,
		Operation:    payload.Operation,
		Owner:        payload.Owner,
		Details:      datatypes.JSON(payload.Details),
		CreatedAt:    time.Unix(payload.Timestamp, 0).UTC(),
	}

	maxRetries := 3
	var err error
	for attempt := 1; attempt <= maxRetries; attempt++ {
		err = c.repository.AuditLogRepo.Create(record)
		if err == nil {
			c.infra.Logger.InfoWithContextf(ctx, "[Audit Consumer] Stored %s record for collection %s",
				payload.Operation, payload.CollectionID)
			_ = msg.Ack(false)
			return
		}

		c.infra.Logger.ErrorWithContextf(ctx, err, "[Audit Consumer] Attempt %d/%d failed: %v", attempt, maxRetries, err)

		if attempt < maxRetries {
			time.Sleep(time.Duration(attempt) * 2 * time.Second)
		}
	}

	// After max retries, reject and requeue
	c.infra.Logger.ErrorWithContextf(ctx, err, "[Audit Consumer] Failed after %d attempts, requeueing message", maxRetries)
	_ = msg.Nack(false, true)
}
