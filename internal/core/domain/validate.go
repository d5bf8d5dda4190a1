package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Field identifies one of the validated input fields. FieldOrder fixes the
// order in which per-field errors are concatenated into a report.
type Field string

const (
	FieldEmail    Field = "email"
	FieldPassword Field = "password"
	FieldPhone    Field = "phone"
)

var FieldOrder = []Field{FieldEmail, FieldPassword, FieldPhone}

// Rule names, shared with the seeded validation_rules table.
const (
	RuleEmailFormat     = "email_format"
	RulePasswordLength  = "password_length"
	RulePasswordNumber  = "password_number"
	RulePasswordSpecial = "password_special"
	RulePhoneFormat     = "phone_format"
)

// Messages returned to callers. Fixed literals, never interpolated with input.
const (
	MsgEmailFormat     = "Invalid email format"
	MsgPasswordLength  = "Password must be at least 8 characters long"
	MsgPasswordNumber  = "Password must contain at least one number"
	MsgPasswordSpecial = "Password must contain at least one special character"
	MsgPhoneFormat     = "Invalid phone number format"
)

const minPasswordLength = 8

var messageRules = map[string]string{
	MsgEmailFormat:     RuleEmailFormat,
	MsgPasswordLength:  RulePasswordLength,
	MsgPasswordNumber:  RulePasswordNumber,
	MsgPasswordSpecial: RulePasswordSpecial,
	MsgPhoneFormat:     RulePhoneFormat,
}

// RuleForMessage maps an error message back to its rule name, for audit and
// event payloads that must not echo user-facing text.
func RuleForMessage(msg string) string {
	if name, ok := messageRules[msg]; ok {
		return name
	}
	return "unknown"
}

// The email pattern is deliberately loose: local@domain.tld shaped, no RFC 5322
// ambitions. Tightening it would change documented accept/reject behavior.
var (
	emailPattern           = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	passwordDigitPattern   = regexp.MustCompile(`[0-9]`)
	passwordSpecialPattern = regexp.MustCompile(`[!@#$%^&*()_+\-=\[\]{};':"\\|,.<>/?]`)
	phonePattern           = regexp.MustCompile(`^\+[1-9][0-9]{7,14}$`)
)

// FieldResult is the outcome of validating a single field.
// Valid is true exactly when Errors is empty.
type FieldResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

func newFieldResult(errs []string) FieldResult {
	if errs == nil {
		errs = []string{}
	}
	return FieldResult{Valid: len(errs) == 0, Errors: errs}
}

// Normalize maps an absent value to the empty string and strips surrounding
// whitespace from a present one. Every check applies it before matching.
func Normalize(value string) string {
	return strings.TrimSpace(value)
}

// CheckEmail validates a single address against the loose local@domain.tld
// pattern.
func CheckEmail(value string) FieldResult {
	if emailPattern.MatchString(Normalize(value)) {
		return newFieldResult(nil)
	}
	return newFieldResult([]string{MsgEmailFormat})
}

// CheckPassword runs the three password checks in fixed order: length, digit,
// special character. All three are evaluated regardless of earlier failures so
// callers see every applicable error at once.
func CheckPassword(value string) FieldResult {
	normalized := Normalize(value)

	var errs []string
	if utf8.RuneCountInString(normalized) < minPasswordLength {
		errs = append(errs, MsgPasswordLength)
	}
	if !passwordDigitPattern.MatchString(normalized) {
		errs = append(errs, MsgPasswordNumber)
	}
	if !passwordSpecialPattern.MatchString(normalized) {
		errs = append(errs, MsgPasswordSpecial)
	}
	return newFieldResult(errs)
}

// CheckPhone validates an E.164-shaped number: leading +, non-zero first
// digit, 8 to 15 digits total, nothing else.
func CheckPhone(value string) FieldResult {
	if phonePattern.MatchString(Normalize(value)) {
		return newFieldResult(nil)
	}
	return newFieldResult([]string{MsgPhoneFormat})
}

// Check dispatches to the field's validator. Unknown fields are rejected
// upstream by the request schema; this returns an empty failure for safety.
func Check(field Field, value string) FieldResult {
	switch field {
	case FieldEmail:
		return CheckEmail(value)
	case FieldPassword:
		return CheckPassword(value)
	case FieldPhone:
		return CheckPhone(value)
	default:
		return newFieldResult([]string{"Unknown field"})
	}
}

// Report aggregates the results of the fields that were actually present in a
// request. Valid is the AND of all field results; Errors concatenates each
// field's errors in FieldOrder.
type Report struct {
	Valid  bool                  `json:"valid"`
	Errors []string              `json:"errors"`
	Fields map[Field]FieldResult `json:"fields"`
}

// BuildReport validates every present field and assembles the aggregate
// report. Absent fields contribute no result and no errors; a report over zero
// fields is valid.
func BuildReport(present map[Field]string) Report {
	report := Report{
		Valid:  true,
		Errors: []string{},
		Fields: make(map[Field]FieldResult, len(present)),
	}

	for _, field := range FieldOrder {
		value, ok := present[field]
		if !ok {
			continue
		}
		result := Check(field, value)
		report.Fields[field] = result
		if !result.Valid {
			report.Valid = false
			report.Errors = append(report.Errors, result.Errors...)
		}
	}
	return report
}
