package domain

import (
	"errors"
	"regexp"
	"testing"
)

func TestRuleValidate(t *testing.T) {
	valid := Rule{Name: "email_format", Pattern: `^x+$`, Message: "bad"}
	if err := valid.Validate(); err != nil {
		t.Fatalf("expected valid rule, got %v", err)
	}

	tests := []struct {
		rule Rule
		want error
	}{
		{Rule{Name: "", Pattern: "x", Message: "m"}, ErrInvalidRuleName},
		{Rule{Name: "Email", Pattern: "x", Message: "m"}, ErrInvalidRuleName},
		{Rule{Name: "1rule", Pattern: "x", Message: "m"}, ErrInvalidRuleName},
		{Rule{Name: "ok_rule", Pattern: "", Message: "m"}, ErrInvalidPattern},
		{Rule{Name: "ok_rule", Pattern: "[unclosed", Message: "m"}, ErrInvalidPattern},
		{Rule{Name: "ok_rule", Pattern: "x", Message: ""}, ErrInvalidMessage},
	}
	for _, tt := range tests {
		if err := tt.rule.Validate(); !errors.Is(err, tt.want) {
			t.Fatalf("rule %+v: expected %v, got %v", tt.rule, tt.want, err)
		}
	}
}

func TestBuiltinRulesAreSelfConsistent(t *testing.T) {
	builtins := BuiltinRules()
	if len(builtins) != 5 {
		t.Fatalf("expected 5 builtin rules, got %d", len(builtins))
	}

	seen := make(map[string]bool)
	for _, rule := range builtins {
		if err := rule.Validate(); err != nil {
			t.Fatalf("builtin %s does not validate: %v", rule.Name, err)
		}
		if seen[rule.Name] {
			t.Fatalf("duplicate builtin rule %s", rule.Name)
		}
		seen[rule.Name] = true
		if RuleForMessage(rule.Message) != rule.Name {
			t.Fatalf("message of %s does not map back to its rule name", rule.Name)
		}
	}
}

func TestBuiltinPatternsMatchCompiledBehavior(t *testing.T) {
	byName := make(map[string]Rule)
	for _, rule := range BuiltinRules() {
		byName[rule.Name] = rule
	}

	email := regexp.MustCompile(byName[RuleEmailFormat].Pattern)
	if !email.MatchString("user@test.com") || email.MatchString("user@") {
		t.Fatal("stored email pattern diverges from compiled behavior")
	}

	phone := regexp.MustCompile(byName[RulePhoneFormat].Pattern)
	if !phone.MatchString("+14155552671") || phone.MatchString("4155552671") {
		t.Fatal("stored phone pattern diverges from compiled behavior")
	}
}
