package usecase

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/atvirokodosprendimai/validapi/internal/core/ports"
)

const AuditSubjectValidation = "validation"

// ValidationInput carries the fields that were present in a request, keyed by
// field name, already reduced to their string form. Absent fields must not
// appear in the map; present-but-empty values must.
type ValidationInput struct {
	TenantID string
	Actor    string
	Fields   map[domain.Field]string
}

// ValidationService runs the compiled-in checks over the present fields and
// records a summary of each request in the audit trail. The recorded detail
// names the failed rules only, never the submitted values.
type ValidationService struct {
	recorder ports.AuditRecorder
}

func NewValidationService(recorder ports.AuditRecorder) *ValidationService {
	return &ValidationService{recorder: recorder}
}

type validationDetail struct {
	Checked []domain.Field            `json:"checked"`
	Valid   bool                      `json:"valid"`
	Failed  map[domain.Field][]string `json:"failed,omitempty"`
}

func (s *ValidationService) Validate(ctx context.Context, in ValidationInput) (domain.Report, error) {
	report := domain.BuildReport(in.Fields)

	detail := validationDetail{Checked: []domain.Field{}, Valid: report.Valid}
	for _, field := range domain.FieldOrder {
		result, ok := report.Fields[field]
		if !ok {
			continue
		}
		detail.Checked = append(detail.Checked, field)
		if result.Valid {
			continue
		}
		if detail.Failed == nil {
			detail.Failed = make(map[domain.Field][]string)
		}
		for _, msg := range result.Errors {
			detail.Failed[field] = append(detail.Failed[field], domain.RuleForMessage(msg))
		}
	}

	detailJSON, err := json.Marshal(detail)
	if err != nil {
		return domain.Report{}, fmt.Errorf("marshal validation detail: %w", err)
	}

	err = s.recorder.Record(ctx, domain.AuditEvent{
		TenantID:   in.TenantID,
		Subject:    AuditSubjectValidation,
		Action:     "validation.checked",
		Actor:      in.Actor,
		DetailJSON: detailJSON,
	})
	if err != nil {
		return domain.Report{}, fmt.Errorf("record validation audit: %w", err)
	}

	return report, nil
}
