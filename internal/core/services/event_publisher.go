package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"loyaltyhub/internal/adapters/persistence/models"
	"loyaltyhub/internal/adapters/persistence/repositories"

	"github.com/google/uuid"
)

// Kafka topics for loyalty domain events
const (
	TopicPointsEvents = "loyalty.points.events"
	TopicTierEvents   = "loyalty.tier.events"
)

// Event types published to the outbox
const (
	EventAdjustmentCreated  = "adjustment.created"
	EventReversalCreated    = "reversal.created"
	EventPointsEarned       = "points.earned"
	EventPointsRedeemed     = "points.redeemed"
	EventPointsExpired      = "points.expired"
	EventTierUpgraded       = "tier.upgraded"
	EventTierDowngraded     = "tier.downgraded"
	EventTierGraceStarted   = "tier.downgrade.grace_started"
)

// EventPublisher writes domain events to the transactional outbox.
// The outbox sender job drains them to Kafka, so a failed broker never
// blocks or loses a ledger write.
type EventPublisher struct {
	outboxRepo repositories.OutboxRepository
}

// NewEventPublisher creates a new event publisher
func NewEventPublisher(outboxRepo repositories.OutboxRepository) *EventPublisher {
	return &EventPublisher{outboxRepo: outboxRepo}
}

// Publish enqueues one event. Publish failures are logged and swallowed:
// events are best-effort and must never fail the business operation.
func (p *EventPublisher) Publish(ctx context.Context, topic, eventType string, membershipID uint, payload interface{}) {
	if p == nil || p.outboxRepo == nil {
		return
	}

	body, err := json.Marshal(map[string]interface{}{
		"event_id":      uuid.New().String(),
		"event_type":    eventType,
		"membership_id": membershipID,
		"occurred_at":   time.Now().UTC().Format(time.RFC3339),
		"data":          payload,
	})
	if err != nil {
		log.Printf("⚠️  Failed to marshal %s event: %v", eventType, err)
		return
	}

	event := &models.OutboxEvent{
		MessageKey: fmt.Sprintf("membership-%d", membershipID),
		Topic:      topic,
		EventType:  eventType,
		Payload:    string(body),
	}
	if err := p.outboxRepo.Enqueue(ctx, event); err != nil {
		log.Printf("⚠️  Failed to enqueue %s event: %v", eventType, err)
	}
}
