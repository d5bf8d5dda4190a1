package ports

import (
	"context"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
)

type RuleRepository interface {
	List(ctx context.Context) ([]domain.Rule, error)
	Get(ctx context.Context, name string) (domain.Rule, error)
	Upsert(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	Delete(ctx context.Context, name string) (bool, error)
}
