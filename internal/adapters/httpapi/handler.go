package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/atvirokodosprendimai/validapi/internal/core/usecase"
	"github.com/go-chi/chi/v5"
)

type ctxKey string

const (
	timeFormat             = "2006-01-02T15:04:05.999999999Z07:00"
	tenantIDCtxKey  ctxKey = "tenant_id"
	apiActorCtxKey  ctxKey = "api_actor"
	maxJSONBodySize        = 1 << 20
)

type Handler struct {
	validationService *usecase.ValidationService
	ruleService       *usecase.RuleService
	authService       *usecase.AuthService
	auditService      *usecase.AuditService
}

func NewHandler(validationService *usecase.ValidationService, ruleService *usecase.RuleService, authService *usecase.AuthService, auditService *usecase.AuditService) *Handler {
	return &Handler{
		validationService: validationService,
		ruleService:       ruleService,
		authService:       authService,
		auditService:      auditService,
	}
}

func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Get("/healthz", h.healthz)
	r.Get("/openapi.json", h.openapi)

	r.Group(func(pr chi.Router) {
		pr.Use(h.requireAPIKey)
		pr.Post("/v1/validate", h.validate)

		pr.Get("/v1/rules", h.listRules)
		pr.Get("/v1/rules:drift", h.ruleDrift)
		pr.Get("/v1/rules/{rule}", h.getRule)
		pr.Put("/v1/rules/{rule}", h.upsertRule)
		pr.Delete("/v1/rules/{rule}", h.deleteRule)

		pr.Get("/v1/audit", h.listAudit)
	})

	return r
}

type upsertRuleRequest struct {
	Pattern string `json:"pattern"`
	Message string `json:"message"`
}

type ruleResponse struct {
	Name      string `json:"rule_name"`
	Pattern   string `json:"pattern"`
	Message   string `json:"message"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

func (h *Handler) validate(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)
	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	var shape any
	if err := json.Unmarshal(body, &shape); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := validatePayloadShape(shape); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// The schema guarantees a flat object of known keys, so this cannot fail.
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	// Presence decides whether a field is checked: an absent key contributes
	// no result, while a present null or empty string goes through validation
	// and fails the format checks.
	fields := make(map[domain.Field]string, len(raw))
	for _, field := range domain.FieldOrder {
		value, ok := raw[string(field)]
		if !ok {
			continue
		}
		fields[field] = stringifyJSONValue(value)
	}

	report, err := h.validationService.Validate(r.Context(), usecase.ValidationInput{
		TenantID: tenantIDFromContext(r.Context()),
		Actor:    actorFromContext(r.Context()),
		Fields:   fields,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, report)
}

// stringifyJSONValue reduces a JSON scalar to the string the validator sees:
// null becomes empty, strings are unwrapped, numbers and booleans keep their
// literal text.
func stringifyJSONValue(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	text := strings.TrimSpace(string(raw))
	if text == "null" {
		return ""
	}
	return text
}

func (h *Handler) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := h.ruleService.List(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	result := make([]ruleResponse, 0, len(rules))
	for _, rule := range rules {
		result = append(result, toRuleResponse(rule))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": result})
}

func (h *Handler) getRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "rule")

	rule, err := h.ruleService.Get(r.Context(), name)
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) upsertRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "rule")
	r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodySize)

	var req upsertRuleRequest
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	if err := ensureEOF(decoder); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}

	rule, err := h.ruleService.Upsert(r.Context(), domain.Rule{
		Name:    name,
		Pattern: req.Pattern,
		Message: req.Message,
	}, tenantIDFromContext(r.Context()), actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toRuleResponse(rule))
}

func (h *Handler) deleteRule(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "rule")

	deleted, err := h.ruleService.Delete(r.Context(), name, tenantIDFromContext(r.Context()), actorFromContext(r.Context()))
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": deleted})
}

func (h *Handler) ruleDrift(w http.ResponseWriter, r *http.Request) {
	entries, err := h.ruleService.Drift(r.Context())
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"drift": entries, "in_sync": len(entries) == 0})
}

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	limit, ok := parseLimit(w, r)
	if !ok {
		return
	}

	var afterID int64
	if raw := r.URL.Query().Get("after"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			writeError(w, http.StatusBadRequest, "after must be integer")
			return
		}
		afterID = parsed
	}

	events, err := h.auditService.List(r.Context(), domain.AuditFilter{
		TenantID: tenantIDFromContext(r.Context()),
		Subject:  r.URL.Query().Get("subject"),
		Action:   r.URL.Query().Get("action"),
		AfterID:  afterID,
		Limit:    limit,
	})
	if err != nil {
		handleDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"items": events})
}

func (h *Handler) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

func (h *Handler) openapi(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, openapiSpec())
}

func (h *Handler) requireAPIKey(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(r.Header.Get("X-API-Key"))
		if token == "" {
			auth := strings.TrimSpace(r.Header.Get("Authorization"))
			if strings.HasPrefix(strings.ToLower(auth), "bearer ") {
				token = strings.TrimSpace(auth[7:])
			}
		}

		apiKey, err := h.authService.Authenticate(r.Context(), token)
		if err != nil {
			if errors.Is(err, usecase.ErrUnauthorized) {
				writeError(w, http.StatusUnauthorized, "unauthorized")
				return
			}
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}

		ctx := context.WithValue(r.Context(), tenantIDCtxKey, apiKey.TenantID)
		ctx = context.WithValue(ctx, apiActorCtxKey, apiKey.Name)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func toRuleResponse(rule domain.Rule) ruleResponse {
	return ruleResponse{
		Name:      rule.Name,
		Pattern:   rule.Pattern,
		Message:   rule.Message,
		CreatedAt: rule.CreatedAt.UTC().Format(timeFormat),
		UpdatedAt: rule.UpdatedAt.UTC().Format(timeFormat),
	}
}

func parseLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	limit := 100
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "limit must be integer")
			return 0, false
		}
		limit = parsed
	}
	return limit, true
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := json.Marshal(body)
	if err != nil {
		log.Printf("encode json response: %v", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(append(data, '\n')); err != nil {
		log.Printf("write response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidRuleName),
		errors.Is(err, domain.ErrInvalidPattern),
		errors.Is(err, domain.ErrInvalidMessage),
		errors.Is(err, domain.ErrInvalidFilter):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func ensureEOF(decoder *json.Decoder) error {
	var extra json.RawMessage
	if err := decoder.Decode(&extra); err != nil {
		if err == io.EOF {
			return nil
		}
		return err
	}
	return errors.New("extra json tokens")
}

func tenantIDFromContext(ctx context.Context) string {
	tenant, _ := ctx.Value(tenantIDCtxKey).(string)
	return tenant
}

func actorFromContext(ctx context.Context) string {
	actor, _ := ctx.Value(apiActorCtxKey).(string)
	if actor == "" {
		return "api"
	}
	return actor
}

func openapiSpec() map[string]any {
	return map[string]any{
		"openapi": "3.0.3",
		"info": map[string]any{
			"title":   "validapi",
			"version": "1.0.0",
		},
		"paths": map[string]any{
			"/v1/validate": map[string]any{
				"post": map[string]any{"summary": "Validate email, password, and phone fields"},
			},
			"/v1/rules": map[string]any{
				"get": map[string]any{"summary": "List rule descriptions"},
			},
			"/v1/rules/{rule}": map[string]any{
				"get":    map[string]any{"summary": "Get rule description"},
				"put":    map[string]any{"summary": "Upsert rule description"},
				"delete": map[string]any{"summary": "Delete rule description"},
			},
			"/v1/rules:drift": map[string]any{
				"get": map[string]any{"summary": "Compare stored rules against built-ins"},
			},
			"/v1/audit": map[string]any{
				"get": map[string]any{"summary": "List audit events"},
			},
		},
	}
}
