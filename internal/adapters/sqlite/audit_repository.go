package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/atvirokodosprendimai/validapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/google/uuid"
)

type auditEventModel struct {
	ID         int64     `gorm:"column:id;primaryKey;autoIncrement"`
	EventID    string    `gorm:"column:event_id;not null"`
	TenantID   string    `gorm:"column:tenant_id;not null"`
	Subject    string    `gorm:"column:subject;not null"`
	Action     string    `gorm:"column:action;not null"`
	Actor      string    `gorm:"column:actor;not null"`
	DetailJSON string    `gorm:"column:detail_json"`
	OccurredAt time.Time `gorm:"column:occurred_at;not null"`
}

func (auditEventModel) TableName() string {
	return "audit_events"
}

// AuditRepository appends audit rows and, in the same transaction, enqueues
// the matching outbox event so delivery can never observe an event the trail
// does not have.
type AuditRepository struct {
	db *gormsqlite.DB
}

func NewAuditRepository(db *gormsqlite.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

func (r *AuditRepository) Record(ctx context.Context, event domain.AuditEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	if event.Actor == "" {
		event.Actor = "api"
	}
	if event.EventID == "" {
		event.EventID = uuid.NewString()
	}

	envelope := domain.EventEnvelope{
		EventID:    event.EventID,
		EventType:  event.Action,
		TenantID:   event.TenantID,
		Subject:    event.Subject,
		Actor:      event.Actor,
		OccurredAt: event.OccurredAt,
		Payload:    event.DetailJSON,
	}
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	auditRow := auditEventModel{
		EventID:    event.EventID,
		TenantID:   event.TenantID,
		Subject:    event.Subject,
		Action:     event.Action,
		Actor:      event.Actor,
		DetailJSON: string(event.DetailJSON),
		OccurredAt: event.OccurredAt,
	}
	outboxRow := outboxEventModel{
		EventID:       event.EventID,
		TenantID:      event.TenantID,
		Topic:         topicForAction(event.Action),
		PayloadJSON:   string(payload),
		Status:        "pending",
		NextAttemptAt: event.OccurredAt,
		CreatedAt:     event.OccurredAt,
	}

	err = r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		if err := tx.Create(&auditRow).Error; err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}
		if err := tx.Create(&outboxRow).Error; err != nil {
			return fmt.Errorf("enqueue outbox event: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("record audit event: %w", err)
	}
	return nil
}

// topicForAction maps "rule.updated" to "rules", "validation.checked" to
// "validation", and so on.
func topicForAction(action string) string {
	prefix, _, found := strings.Cut(action, ".")
	if !found || prefix == "" {
		return "events"
	}
	if prefix == "rule" {
		return "rules"
	}
	return prefix
}

func (r *AuditRepository) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	var rows []auditEventModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		query := tx.Model(&auditEventModel{}).Where("tenant_id = ?", filter.TenantID)
		if filter.Subject != "" {
			query = query.Where("subject = ?", filter.Subject)
		}
		if filter.Action != "" {
			query = query.Where("action = ?", filter.Action)
		}
		if filter.AfterID > 0 {
			query = query.Where("id < ?", filter.AfterID)
		}
		return query.Order("id DESC").Limit(filter.Limit).Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list audit events: %w", err)
	}

	result := make([]domain.AuditEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.AuditEvent{
			ID:         row.ID,
			EventID:    row.EventID,
			TenantID:   row.TenantID,
			Subject:    row.Subject,
			Action:     row.Action,
			Actor:      row.Actor,
			DetailJSON: json.RawMessage(row.DetailJSON),
			OccurredAt: row.OccurredAt,
		})
	}
	return result, nil
}
