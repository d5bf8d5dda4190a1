package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/atvirokodosprendimai/validapi/internal/core/usecase"
)

const testAPIKey = "test-api-key"

type stubRuleRepo struct {
	listFn   func(ctx context.Context) ([]domain.Rule, error)
	getFn    func(ctx context.Context, name string) (domain.Rule, error)
	upsertFn func(ctx context.Context, rule domain.Rule) (domain.Rule, error)
	deleteFn func(ctx context.Context, name string) (bool, error)
}

func (s *stubRuleRepo) List(ctx context.Context) ([]domain.Rule, error) {
	if s.listFn != nil {
		return s.listFn(ctx)
	}
	return domain.BuiltinRules(), nil
}

func (s *stubRuleRepo) Get(ctx context.Context, name string) (domain.Rule, error) {
	if s.getFn != nil {
		return s.getFn(ctx, name)
	}
	return domain.Rule{}, domain.ErrNotFound
}

func (s *stubRuleRepo) Upsert(ctx context.Context, rule domain.Rule) (domain.Rule, error) {
	if s.upsertFn != nil {
		return s.upsertFn(ctx, rule)
	}
	now := time.Now().UTC()
	rule.CreatedAt = now
	rule.UpdatedAt = now
	return rule, nil
}

func (s *stubRuleRepo) Delete(ctx context.Context, name string) (bool, error) {
	if s.deleteFn != nil {
		return s.deleteFn(ctx, name)
	}
	return true, nil
}

type stubRecorder struct {
	events []domain.AuditEvent
}

func (s *stubRecorder) Record(_ context.Context, event domain.AuditEvent) error {
	s.events = append(s.events, event)
	return nil
}

type stubAuditTrailRepo struct {
	listFn func(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error)
}

func (s *stubAuditTrailRepo) List(ctx context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
	if s.listFn != nil {
		return s.listFn(ctx, filter)
	}
	return nil, nil
}

type stubAPIKeyRepo struct{}

func (s *stubAPIKeyRepo) FindByTokenHash(_ context.Context, tokenHash string) (domain.APIKey, error) {
	if tokenHash != usecase.HashToken(testAPIKey) {
		return domain.APIKey{}, domain.ErrNotFound
	}
	return domain.APIKey{TokenHash: tokenHash, TenantID: "tenant-a", Name: "test-client", Active: true, CreatedAt: time.Now().UTC()}, nil
}

func (s *stubAPIKeyRepo) Upsert(context.Context, domain.APIKey) error { return nil }

type routerDeps struct {
	rules    *stubRuleRepo
	recorder *stubRecorder
	audit    *stubAuditTrailRepo
}

func testRouter(deps routerDeps) http.Handler {
	if deps.rules == nil {
		deps.rules = &stubRuleRepo{}
	}
	if deps.recorder == nil {
		deps.recorder = &stubRecorder{}
	}
	if deps.audit == nil {
		deps.audit = &stubAuditTrailRepo{}
	}

	validation := usecase.NewValidationService(deps.recorder)
	rules := usecase.NewRuleService(deps.rules, deps.recorder)
	auth := usecase.NewAuthService(&stubAPIKeyRepo{})
	audit := usecase.NewAuditService(deps.audit)
	return NewHandler(validation, rules, auth, audit).Router()
}

func withAuth(req *http.Request) { req.Header.Set("X-API-Key", testAPIKey) }

func TestProtectedRouteWithoutAuth(t *testing.T) {
	h := testRouter(routerDeps{})
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rec.Code)
	}
}

func TestHealthzOpen(t *testing.T) {
	h := testRouter(routerDeps{})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

type validateResponse struct {
	Valid  bool                          `json:"valid"`
	Errors []string                      `json:"errors"`
	Fields map[string]domain.FieldResult `json:"fields"`
}

func postValidate(t *testing.T, h http.Handler, body string) (*httptest.ResponseRecorder, validateResponse) {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(body))
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var resp validateResponse
	if rec.Code == http.StatusOK {
		if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
			t.Fatalf("decode response: %v", err)
		}
	}
	return rec, resp
}

func TestValidateAllFieldsMixedResults(t *testing.T) {
	h := testRouter(routerDeps{})
	rec, resp := postValidate(t, h, `{"email":"user@","password":"Pass","phone":"+14155552671"}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("validation failures must still be 200, got %d: %s", rec.Code, rec.Body.String())
	}
	if resp.Valid {
		t.Fatal("expected aggregate invalid")
	}
	want := []string{
		domain.MsgEmailFormat,
		domain.MsgPasswordLength,
		domain.MsgPasswordNumber,
		domain.MsgPasswordSpecial,
	}
	if !reflect.DeepEqual(resp.Errors, want) {
		t.Fatalf("expected field-ordered errors %v, got %v", want, resp.Errors)
	}
	if !resp.Fields["phone"].Valid {
		t.Fatal("expected phone valid")
	}
	if len(resp.Fields) != 3 {
		t.Fatalf("expected 3 field results, got %d", len(resp.Fields))
	}
}

func TestValidateAbsentVersusNullVersusEmpty(t *testing.T) {
	h := testRouter(routerDeps{})

	// Absent key: no field result, no errors.
	_, resp := postValidate(t, h, `{"password":"Passw0rd!"}`)
	if !resp.Valid {
		t.Fatalf("expected valid, got %v", resp.Errors)
	}
	if _, ok := resp.Fields["email"]; ok {
		t.Fatal("absent email must not produce a field result")
	}

	// Present null: validated and failing.
	_, resp = postValidate(t, h, `{"email":null}`)
	if resp.Valid {
		t.Fatal("expected null email invalid")
	}
	if !reflect.DeepEqual(resp.Fields["email"].Errors, []string{domain.MsgEmailFormat}) {
		t.Fatalf("expected format error for null email, got %v", resp.Fields["email"].Errors)
	}

	// Present empty string: same outcome as null.
	_, resp = postValidate(t, h, `{"email":""}`)
	if resp.Valid {
		t.Fatal("expected empty email invalid")
	}
}

func TestValidateTrimsWhitespace(t *testing.T) {
	h := testRouter(routerDeps{})

	_, resp := postValidate(t, h, `{"email":"  user@test.com  ","phone":"  +14155552671  "}`)
	if !resp.Valid {
		t.Fatalf("expected trimmed values valid, got %v", resp.Errors)
	}
}

func TestValidateStringifiesScalars(t *testing.T) {
	h := testRouter(routerDeps{})

	_, resp := postValidate(t, h, `{"email":42}`)
	if resp.Valid {
		t.Fatal("expected numeric email invalid")
	}
	if !reflect.DeepEqual(resp.Fields["email"].Errors, []string{domain.MsgEmailFormat}) {
		t.Fatalf("expected format error, got %v", resp.Fields["email"].Errors)
	}
}

func TestValidateRejectsUnknownKeys(t *testing.T) {
	h := testRouter(routerDeps{})

	req := httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(`{"email":"a@b.c","username":"x"}`))
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown key, got %d", rec.Code)
	}
}

func TestValidateRejectsNonObjectBody(t *testing.T) {
	h := testRouter(routerDeps{})

	for _, body := range []string{`[1,2]`, `"text"`, `{broken`} {
		req := httptest.NewRequest(http.MethodPost, "/v1/validate", strings.NewReader(body))
		withAuth(req)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		if rec.Code != http.StatusBadRequest {
			t.Fatalf("body %q: expected 400, got %d", body, rec.Code)
		}
	}
}

func TestValidateRecordsAudit(t *testing.T) {
	recorder := &stubRecorder{}
	h := testRouter(routerDeps{recorder: recorder})

	postValidate(t, h, `{"email":"user@test.com"}`)

	if len(recorder.events) != 1 {
		t.Fatalf("expected 1 audit event, got %d", len(recorder.events))
	}
	event := recorder.events[0]
	if event.TenantID != "tenant-a" || event.Actor != "test-client" {
		t.Fatalf("expected tenant/actor from api key, got %+v", event)
	}
}

func TestGetRuleNotFound(t *testing.T) {
	h := testRouter(routerDeps{})

	req := httptest.NewRequest(http.MethodGet, "/v1/rules/absent_rule", nil)
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestUpsertRuleInvalidPattern(t *testing.T) {
	h := testRouter(routerDeps{})

	req := httptest.NewRequest(http.MethodPut, "/v1/rules/email_format", strings.NewReader(`{"pattern":"[","message":"m"}`))
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestUpsertRuleSuccess(t *testing.T) {
	recorder := &stubRecorder{}
	rules := &stubRuleRepo{}
	h := testRouter(routerDeps{rules: rules, recorder: recorder})

	req := httptest.NewRequest(http.MethodPut, "/v1/rules/email_format", strings.NewReader(`{"pattern":"^.+@.+$","message":"Invalid email format"}`))
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var resp ruleResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Name != "email_format" || resp.Pattern != "^.+@.+$" {
		t.Fatalf("unexpected rule response %+v", resp)
	}
	if len(recorder.events) != 1 || recorder.events[0].Action != "rule.updated" {
		t.Fatalf("expected rule.updated audit event, got %+v", recorder.events)
	}
}

func TestDeleteRule(t *testing.T) {
	h := testRouter(routerDeps{})

	req := httptest.NewRequest(http.MethodDelete, "/v1/rules/email_format", nil)
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp map[string]bool
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp["deleted"] {
		t.Fatal("expected deleted true")
	}
}

func TestRuleDriftInSync(t *testing.T) {
	h := testRouter(routerDeps{})

	req := httptest.NewRequest(http.MethodGet, "/v1/rules:drift", nil)
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var resp struct {
		Drift  []usecase.DriftEntry `json:"drift"`
		InSync bool                 `json:"in_sync"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.InSync || len(resp.Drift) != 0 {
		t.Fatalf("expected store in sync, got %+v", resp)
	}
}

func TestListAuditBadLimit(t *testing.T) {
	h := testRouter(routerDeps{})

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?limit=abc", nil)
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
}

func TestListAuditFilterPassedThrough(t *testing.T) {
	audit := &stubAuditTrailRepo{listFn: func(_ context.Context, filter domain.AuditFilter) ([]domain.AuditEvent, error) {
		if filter.TenantID != "tenant-a" || filter.Subject != "email_format" || filter.Limit != 10 {
			t.Fatalf("unexpected filter %+v", filter)
		}
		return []domain.AuditEvent{{ID: 1, Subject: "email_format", Action: "rule.updated"}}, nil
	}}
	h := testRouter(routerDeps{audit: audit})

	req := httptest.NewRequest(http.MethodGet, "/v1/audit?subject=email_format&limit=10", nil)
	withAuth(req)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestStringifyJSONValue(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{`"text"`, "text"},
		{`null`, ""},
		{`42`, "42"},
		{`true`, "true"},
	}
	for _, tt := range tests {
		if got := stringifyJSONValue(json.RawMessage(tt.raw)); got != tt.want {
			t.Fatalf("stringify %s: expected %q, got %q", tt.raw, tt.want, got)
		}
	}
}
