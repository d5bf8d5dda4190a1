package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/atvirokodosprendimai/validapi/internal/adapters/events"
	"github.com/atvirokodosprendimai/validapi/internal/adapters/httpapi"
	sqliteadapter "github.com/atvirokodosprendimai/validapi/internal/adapters/sqlite"
	"github.com/atvirokodosprendimai/validapi/internal/adapters/sqlite/gormsqlite"
	"github.com/atvirokodosprendimai/validapi/internal/core/domain"
	"github.com/atvirokodosprendimai/validapi/internal/core/ports"
	"github.com/atvirokodosprendimai/validapi/internal/core/usecase"
	"github.com/atvirokodosprendimai/validapi/migrations"
)

type Config struct {
	Addr             string
	DBPath           string
	BootstrapAPIKey  string
	BootstrapTenant  string
	BootstrapKeyName string
	WebhookURL       string
	WebhookSecret    string
}

type resourceCloser struct {
	closers []io.Closer
}

func (r resourceCloser) Close() error {
	var firstErr error
	for _, c := range r.closers {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func NewServer(ctx context.Context, cfg Config) (*http.Server, io.Closer, error) {
	db, err := gormsqlite.Open(cfg.DBPath)
	if err != nil {
		return nil, nil, fmt.Errorf("open sqlite: %w", err)
	}

	writeSQLDB, err := db.WriteSQLDB()
	if err != nil {
		_ = db.Close()
		return nil, nil, fmt.Errorf("resolve writer sql db: %w", err)
	}

	migrateCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := migrations.Up(migrateCtx, writeSQLDB); err != nil {
		_ = db.Close()
		return nil, nil, err
	}

	ruleRepo := sqliteadapter.NewRuleRepository(db)
	apiKeyRepo := sqliteadapter.NewAPIKeyRepository(db)
	auditRepo := sqliteadapter.NewAuditRepository(db)
	outboxRepo := sqliteadapter.NewOutboxRepository(db)

	validationService := usecase.NewValidationService(auditRepo)
	ruleService := usecase.NewRuleService(ruleRepo, auditRepo)
	authService := usecase.NewAuthService(apiKeyRepo)
	auditService := usecase.NewAuditService(auditRepo)

	var publisher ports.EventPublisher = events.NewLogPublisher()
	if cfg.WebhookURL != "" {
		publisher = events.NewWebhookPublisher(cfg.WebhookURL, cfg.WebhookSecret, 0)
	}
	dispatcher := usecase.NewOutboxDispatcher(outboxRepo, publisher, 2*time.Second, 100)
	dispatcher.Start(context.Background())

	seedCtx, seedCancel := context.WithTimeout(ctx, 5*time.Second)
	err = ruleService.SeedBuiltins(seedCtx)
	seedCancel()
	if err != nil {
		_ = dispatcher.Close()
		_ = db.Close()
		return nil, nil, fmt.Errorf("seed builtin rules: %w", err)
	}

	if cfg.BootstrapAPIKey != "" {
		tenant := cfg.BootstrapTenant
		if tenant == "" {
			tenant = "default"
		}
		name := cfg.BootstrapKeyName
		if name == "" {
			name = "bootstrap"
		}

		bootstrapCtx, bootstrapCancel := context.WithTimeout(ctx, 5*time.Second)
		err := apiKeyRepo.Upsert(bootstrapCtx, domain.APIKey{
			TokenHash: usecase.HashToken(cfg.BootstrapAPIKey),
			TenantID:  tenant,
			Name:      name,
			Active:    true,
			CreatedAt: time.Now().UTC(),
		})
		bootstrapCancel()
		if err != nil {
			_ = dispatcher.Close()
			_ = db.Close()
			return nil, nil, fmt.Errorf("bootstrap api key: %w", err)
		}
	}

	handler := httpapi.NewHandler(validationService, ruleService, authService, auditService)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	return server, resourceCloser{closers: []io.Closer{dispatcher, db}}, nil
}
