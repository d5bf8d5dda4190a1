package sqlite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/atvirokodosprendimai/validapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ruleModel struct {
	Name      string    `gorm:"column:rule_name;primaryKey"`
	Pattern   string    `gorm:"column:pattern;not null"`
	Message   string    `gorm:"column:message;not null"`
	CreatedAt time.Time `gorm:"column:created_at;not null"`
	UpdatedAt time.Time `gorm:"column:updated_at;not null"`
}

func (ruleModel) TableName() string {
	return "validation_rules"
}

type RuleRepository struct {
	db *gormsqlite.DB
}

func NewRuleRepository(db *gormsqlite.DB) *RuleRepository {
	return &RuleRepository{db: db}
}

func (r *RuleRepository) List(ctx context.Context) ([]domain.Rule, error) {
	var models []ruleModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Order("rule_name ASC").Find(&models).Error
	})
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}

	rules := make([]domain.Rule, 0, len(models))
	for _, model := range models {
		rules = append(rules, toRule(model))
	}
	return rules, nil
}

func (r *RuleRepository) Get(ctx context.Context, name string) (domain.Rule, error) {
	var model ruleModel
	err := r.db.ReadTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Where("rule_name = ?", name).First(&model).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Rule{}, domain.ErrNotFound
		}
		return domain.Rule{}, fmt.Errorf("get rule: %w", err)
	}
	return toRule(model), nil
}

func (r *RuleRepository) Upsert(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	now := time.Now().UTC()
	model := ruleModel{
		Name:      rule.Name,
		Pattern:   rule.Pattern,
		Message:   rule.Message,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "rule_name"}},
			DoUpdates: clause.AssignmentColumns([]string{"pattern", "message", "updated_at"}),
		}).Create(&model).Error
	})
	if err != nil {
		return domain.Rule{}, fmt.Errorf("upsert rule: %w", err)
	}

	return r.Get(ctx, rule.Name)
}

func (r *RuleRepository) Delete(ctx context.Context, name string) (bool, error) {
	var affected int64
	err := r.db.WriteTX(ctx, func(tx *gormsqlite.Tx) error {
		res := tx.Where("rule_name = ?", name).Delete(&ruleModel{})
		affected = res.RowsAffected
		return res.Error
	})
	if err != nil {
		return false, fmt.Errorf("delete rule: %w", err)
	}
	return affected > 0, nil
}

func toRule(model ruleModel) domain.Rule {
	return domain.Rule{
		Name:      model.Name,
		Pattern:   model.Pattern,
		Message:   model.Message,
		CreatedAt: model.CreatedAt,
		UpdatedAt: model.UpdatedAt,
	}
}
