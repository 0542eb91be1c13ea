package job

import (
	"context"
	"log"
	"time"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/adapters/persistence/repositories"
	"loyaltyhub/internal/infrastructure/mq"
)

const maxRetryCount = 5

// OutboxSender drains pending outbox events to Kafka. Events that keep
// failing are marked FAILED after maxRetryCount attempts and left for
// manual inspection.
type OutboxSender struct {
	outboxRepo repositories.OutboxRepository
	producer   *mq.Producer
	stopCh     chan struct{}
	interval   time.Duration
	batchSize  int
}

// NewOutboxSender creates a new outbox sender
func NewOutboxSender(outboxRepo repositories.OutboxRepository, producer *mq.Producer) *OutboxSender {
	return &OutboxSender{
		outboxRepo: outboxRepo,
		producer:   producer,
		stopCh:     make(chan struct{}),
		interval:   time.Second,
		batchSize:  100,
	}
}

// Start runs the drain loop until the context is cancelled or Stop is
// called. Intended to run in its own goroutine.
func (s *OutboxSender) Start(ctx context.Context) {
	log.Println("🚀 Outbox sender started")

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Println("Outbox sender stopping, context cancelled")
			return
		case <-s.stopCh:
			log.Println("Outbox sender stopped")
			return
		case <-ticker.C:
			s.processPendingEvents(ctx)
		}
	}
}

// Stop signals the drain loop to exit
func (s *OutboxSender) Stop() {
	close(s.stopCh)
}

func (s *OutboxSender) processPendingEvents(ctx context.Context) {
	events, err := s.outboxRepo.ListPending(ctx, s.batchSize)
	if err != nil {
		log.Printf("⚠️  Outbox query failed: %v", err)
		return
	}

	for _, event := range events {
		s.sendEvent(ctx, event)
	}
}

func (s *OutboxSender) sendEvent(ctx context.Context, event *models.OutboxEvent) {
	err := s.producer.Send(event.Topic, event.MessageKey, event.Payload)
	if err == nil {
		if markErr := s.outboxRepo.MarkSent(ctx, event.ID); markErr != nil {
			log.Printf("⚠️  Failed to mark outbox event %d sent: %v", event.ID, markErr)
		}
		return
	}

	log.Printf("⚠️  Outbox delivery failed: id=%d, topic=%s, err=%v", event.ID, event.Topic, err)

	if retryErr := s.outboxRepo.IncrementRetry(ctx, event.ID); retryErr != nil {
		log.Printf("⚠️  Failed to bump retry count for outbox event %d: %v", event.ID, retryErr)
	}
	if event.RetryCount+1 >= maxRetryCount {
		if failErr := s.outboxRepo.MarkFailed(ctx, event.ID); failErr != nil {
			log.Printf("⚠️  Failed to mark outbox event %d failed: %v", event.ID, failErr)
		} else {
			log.Printf("⚠️  Outbox event %d exceeded %d retries, marked failed", event.ID, maxRetryCount)
		}
	}
}
