package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ReingestJob asks the background worker to resume or refresh one document's
// embeddings. The external ID plus tenant is enough to re-load everything
// else from the store.
type ReingestJob struct {
	DocumentExternalID string `json:"document_external_id"`
	TenantID           uint   `json:"tenant_id"`
}

type ReingestPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewReingestPublisher(conn *amqp.Connection, queueName string) *ReingestPublisher {
	return &ReingestPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

// ScheduleReingest publishes a durable job for the document.
func (p *ReingestPublisher) ScheduleReingest(ctx context.Context, docExternalID string, tenantID uint) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(ReingestJob{DocumentExternalID: docExternalID, TenantID: tenantID})
	if err != nil {
		return fmt.Errorf("marshal reingest job failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish reingest job failed: %w", err)
	}
	return nil
}
