package produce

import (
	"context"
	"encoding/json"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

const (
	AuditExchange         = "audit.exchange"
	AuditRecordQueue      = "audit.record"
	AuditRecordRoutingKey = "audit.record"
)

type AuditService struct {
	channel *amqp.Channel
}

// AuditRecordMessage is published once per finished item-set operation and
// once per collection for batch operations.
type AuditRecordMessage struct {
	CollectionID string          `json:"collection_id"`
	Operation    string          `json:"operation"`
	Owner        string          `json:"owner"`
	Details      json.RawMessage `json:"details,omitempty"`
	Timestamp    int64           `json:"timestamp"`
}

func InitAuditService(channel *amqp.Channel) *AuditService {
	service := &AuditService{
		channel: channel,
	}

	// Declare exchange
	err := channel.ExchangeDeclare(
		AuditExchange,
		"topic",
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to declare Audit exchange: " + err.Error())
	}

	// Declare audit record queue
	_, err = channel.QueueDeclare(
		AuditRecordQueue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		panic("Failed to declare Audit record queue: " + err.Error())
	}

	// Bind audit record queue to exchange
	err = channel.QueueBind(
		AuditRecordQueue,
		AuditRecordRoutingKey,
		AuditExchange,
		false,
		nil,
	)
	if err != nil {
		panic("Failed to bind Audit record queue: " + err.Error())
	}

	return service
}

// PublishRecord is fire-and-forget: a publish failure is the caller's to
// log, never to fail a finished job over.
func (s *AuditService) PublishRecord(ctx context.Context, collectionID, operation, owner string, details json.RawMessage) error {
	message := AuditRecordMessage{
		CollectionID: collectionID,
		Operation:    operation,
		Owner:        owner,
		Details:      details,
		Timestamp:    time.Now().Unix(),
	}

	body, err := json.Marshal(message)
	if err != nil {
		return err
	}

	return s.channel.PublishWithContext(
		ctx,
		AuditExchange,
		AuditRecordRoutingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         body,
			DeliveryMode: amqp.Persistent,
		},
	)
}
