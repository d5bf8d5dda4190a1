package events

import (
	"context"
	"log"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
)

type LogPublisher struct{}

func NewLogPublisher() *LogPublisher {
	return &LogPublisher{}
}

func (p *LogPublisher) Publish(_ context.Context, topic string, event domain.EventEnvelope) error {
	log.Printf("outbox publish topic=%s event_id=%s event_type=%s tenant=%s subject=%s actor=%s", topic, event.EventID, event.EventType, event.TenantID, event.Subject, event.Actor)
	return nil
}
