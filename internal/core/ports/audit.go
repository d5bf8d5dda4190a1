package ports

import (
	"context"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
)

// AuditRecorder appends an audit row and enqueues the matching outbox event in
// one write transaction.
type AuditRecorder interface {
	Record(ctx context.Context, event domain.AuditEvent) error
}

type AuditTrailRepository interface {
	List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}
