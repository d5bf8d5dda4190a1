package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/atvirokodosprendimai/validapi/internal/core/ports"
)

// RuleService manages the rule-description store. The store mirrors the
// compiled-in checks for introspection; editing it never changes what the
// validator does, which is why Drift exists.
type RuleService struct {
	repo     ports.RuleRepository
	recorder ports.AuditRecorder
}

func NewRuleService(repo ports.RuleRepository, recorder ports.AuditRecorder) *RuleService {
	return &RuleService{repo: repo, recorder: recorder}
}

func (s *RuleService) List(ctx context.Context) ([]domain.Rule, error) {
	return s.repo.List(ctx)
}

func (s *RuleService) Get(ctx context.Context, name string) (domain.Rule, error) {
	if err := domain.ValidateRuleName(name); err != nil {
		return domain.Rule{}, err
	}
	return s.repo.Get(ctx, name)
}

func (s *RuleService) Upsert(ctx context.Context, rule domain.Rule, tenantID, actor string) (domain.Rule, error) {
	if err := rule.Validate(); err != nil {
		return domain.Rule{}, err
	}

	stored, err := s.repo.Upsert(ctx, rule)
	if err != nil {
		return domain.Rule{}, err
	}

	err = s.recorder.Record(ctx, domain.AuditEvent{
		TenantID: tenantID,
		Subject:  rule.Name,
		Action:   "rule.updated",
		Actor:    actor,
	})
	if err != nil {
		return domain.Rule{}, fmt.Errorf("record rule audit: %w", err)
	}
	return stored, nil
}

func (s *RuleService) Delete(ctx context.Context, name, tenantID, actor string) (bool, error) {
	if err := domain.ValidateRuleName(name); err != nil {
		return false, err
	}

	deleted, err := s.repo.Delete(ctx, name)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	err = s.recorder.Record(ctx, domain.AuditEvent{
		TenantID: tenantID,
		Subject:  name,
		Action:   "rule.deleted",
		Actor:    actor,
	})
	if err != nil {
		return false, fmt.Errorf("record rule audit: %w", err)
	}
	return true, nil
}

// DriftEntry reports one divergence between the compiled-in rule table and the
// stored rows.
type DriftEntry struct {
	Name   string `json:"name"`
	Reason string `json:"reason"`
}

const (
	DriftMissing = "missing" // built-in rule has no stored row
	DriftPattern = "pattern" // stored pattern differs from the built-in
	DriftMessage = "message" // stored message differs from the built-in
	DriftUnknown = "unknown" // stored row has no built-in counterpart
)

// Drift compares the store against the built-ins. An empty result means the
// store still describes what the validator actually enforces.
func (s *RuleService) Drift(ctx context.Context) ([]DriftEntry, error) {
	stored, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}

	byName := make(map[string]domain.Rule, len(stored))
	for _, rule := range stored {
		byName[rule.Name] = rule
	}

	entries := []DriftEntry{}
	builtins := domain.BuiltinRules()
	builtinNames := make(map[string]bool, len(builtins))
	for _, builtin := range builtins {
		builtinNames[builtin.Name] = true
		row, ok := byName[builtin.Name]
		switch {
		case !ok:
			entries = append(entries, DriftEntry{Name: builtin.Name, Reason: DriftMissing})
		case row.Pattern != builtin.Pattern:
			entries = append(entries, DriftEntry{Name: builtin.Name, Reason: DriftPattern})
		case row.Message != builtin.Message:
			entries = append(entries, DriftEntry{Name: builtin.Name, Reason: DriftMessage})
		}
	}
	for _, rule := range stored {
		if !builtinNames[rule.Name] {
			entries = append(entries, DriftEntry{Name: rule.Name, Reason: DriftUnknown})
		}
	}
	return entries, nil
}

// SeedBuiltins inserts any built-in rule rows missing from the store. Rows
// that already exist are left alone, edited or not.
func (s *RuleService) SeedBuiltins(ctx context.Context) error {
	for _, builtin := range domain.BuiltinRules() {
		_, err := s.repo.Get(ctx, builtin.Name)
		if err == nil {
			continue
		}
		if !errors.Is(err, domain.ErrNotFound) {
			return fmt.Errorf("check rule %s: %w", builtin.Name, err)
		}
		if _, err := s.repo.Upsert(ctx, builtin); err != nil {
			return fmt.Errorf("seed rule %s: %w", builtin.Name, err)
		}
	}
	return nil
}
