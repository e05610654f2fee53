package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"

	"vecbridge/internal/errs"
	"vecbridge/internal/platform/rabbitmq"
)

// ReingestWorker consumes reingest jobs and resumes the documents they name.
type ReingestWorker struct {
	conn      *amqp.Connection
	resume    ResumeFunc
	queueName string

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ResumeFunc resumes one document's pipeline.
type ResumeFunc func(ctx context.Context, tenantID uint, externalID string) error

func NewReingestWorker(conn *amqp.Connection, resume ResumeFunc, queueName string) *ReingestWorker {
	return &ReingestWorker{
		conn:      conn,
		resume:    resume,
		queueName: queueName,
	}
}

func (w *ReingestWorker) Start(ctx context.Context) error {
	if w.cancel != nil {
		return nil
	}

	workerCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	ch, err := w.conn.Channel()
	if err != nil {
		cancel()
		return fmt.Errorf("open worker channel failed: %w", err)
	}

	_, err = ch.QueueDeclare(
		w.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("declare worker queue failed: %w", err)
	}

	deliveries, err := ch.Consume(
		w.queueName,
		"",
		false,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		_ = ch.Close()
		cancel()
		return fmt.Errorf("consume queue failed: %w", err)
	}

	w.wg.Add(1)
	go func() {
		defer w.wg.Done()
		defer ch.Close()

		for {
			select {
			case <-workerCtx.Done():
				return
			case d, ok := <-deliveries:
				if !ok {
					return
				}
				w.handle(workerCtx, d)
			}
		}
	}()

	return nil
}

func (w *ReingestWorker) handle(ctx context.Context, d amqp.Delivery) {
	var job rabbitmq.ReingestJob
	if err := json.Unmarshal(d.Body, &job); err != nil {
		log.Printf("worker decode reingest job failed: %v", err)
		_ = d.Nack(false, false)
		return
	}

	if err := w.resume(ctx, job.TenantID, job.DocumentExternalID); err != nil {
		// Transient provider errors are worth redelivering; anything else
		// (document gone, unrecoverable content) is dropped.
		requeue := errs.Retryable(err)
		log.Printf("worker resume document %s failed (requeue=%t): %v", job.DocumentExternalID, requeue, err)
		_ = d.Nack(false, requeue)
		return
	}

	_ = d.Ack(false)
}

func (w *ReingestWorker) Close() {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
}
