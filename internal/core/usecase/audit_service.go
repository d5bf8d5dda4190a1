package usecase

import (
	"context"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/atvirokodosprendimai/validapi/internal/core/ports"
)

type AuditService struct {
	repo ports.AuditTrailRepository
}

func NewAuditService(repo ports.AuditTrailRepository) *AuditService {
	return &AuditService{repo: repo}
}

func (s *AuditService) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	if filter.TenantID == "" {
		return nil, domain.ErrInvalidFilter
	}
	if filter.Limit <= 0 {
		filter.Limit = 100
	}
	if filter.Limit > 1000 {
		filter.Limit = 1000
	}
	return s.repo.List(ctx, filter)
}
