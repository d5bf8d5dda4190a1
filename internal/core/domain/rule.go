package domain

import (
	"errors"
	"regexp"
	"time"
)

var (
	ErrInvalidRuleName = errors.New("invalid rule name")
	ErrInvalidPattern  = errors.New("invalid pattern")
	ErrInvalidMessage  = errors.New("invalid message")
	ErrInvalidFilter   = errors.New("invalid filter")
	ErrNotFound        = errors.New("not found")
)

var ruleNamePattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// Rule is one row of the rule-description store: a named pattern plus the
// message shown when it fails. The store exists for introspection and
// auditing; the validator's checks are compiled in and never read it.
type Rule struct {
	Name      string
	Pattern   string
	Message   string
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r Rule) Validate() error {
	if err := ValidateRuleName(r.Name); err != nil {
		return err
	}
	if r.Pattern == "" {
		return ErrInvalidPattern
	}
	if _, err := regexp.Compile(r.Pattern); err != nil {
		return ErrInvalidPattern
	}
	if r.Message == "" {
		return ErrInvalidMessage
	}
	return nil
}

func ValidateRuleName(name string) error {
	if name == "" || !ruleNamePattern.MatchString(name) {
		return ErrInvalidRuleName
	}
	return nil
}

// BuiltinRules returns the compiled-in rule table in declaration order. The
// seed migration inserts the same rows; drift detection compares against this.
func BuiltinRules() []Rule {
	return []Rule{
		{Name: RuleEmailFormat, Pattern: emailPattern.String(), Message: MsgEmailFormat},
		{Name: RulePasswordLength, Pattern: `^.{8,}$`, Message: MsgPasswordLength},
		{Name: RulePasswordNumber, Pattern: passwordDigitPattern.String(), Message: MsgPasswordNumber},
		{Name: RulePasswordSpecial, Pattern: passwordSpecialPattern.String(), Message: MsgPasswordSpecial},
		{Name: RulePhoneFormat, Pattern: phonePattern.String(), Message: MsgPhoneFormat},
	}
}
