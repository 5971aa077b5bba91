// Package app wires configuration into a ready reconciliation service. The
// HTTP/gRPC server and the batch CLI share it.
package app

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-ap-reconciler/internal/client"
	"github.com/pesio-ai/be-ap-reconciler/internal/config"
	"github.com/pesio-ai/be-ap-reconciler/internal/database"
	"github.com/pesio-ai/be-ap-reconciler/internal/logger"
	"github.com/pesio-ai/be-ap-reconciler/internal/output"
	"github.com/pesio-ai/be-ap-reconciler/internal/reconcile"
	"github.com/pesio-ai/be-ap-reconciler/internal/repository"
	"github.com/pesio-ai/be-ap-reconciler/internal/service"
)

// App holds the wired service and everything that must be closed with it
type App struct {
	Reconciler *service.ReconciliationService
	Batch      *service.BatchService
	Files      *output.FileStore
	DB         *database.DB

	closers []func()
}

// Close releases connections in reverse order of creation
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
}

// New builds the application from cfg
func New(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{}
	ok := false
	defer func() {
		if !ok {
			a.Close()
		}
	}()

	if cfg.Database.Enabled {
		db, err := database.New(ctx, database.Config{
			Host:        cfg.Database.Host,
			Port:        cfg.Database.Port,
			User:        cfg.Database.User,
			Password:    cfg.Database.Password,
			Database:    cfg.Database.Database,
			SSLMode:     cfg.Database.SSLMode,
			MaxConns:    cfg.Database.MaxConns,
			MinConns:    cfg.Database.MinConns,
			MaxConnTime: cfg.Database.MaxConnTime,
			MaxIdleTime: cfg.Database.MaxIdleTime,
			HealthCheck: cfg.Database.HealthCheck,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		a.DB = db
		a.closers = append(a.closers, db.Close)
		log.Info().Msg("Database connection established")
	}

	catalog, err := loadCatalog(ctx, cfg, a.DB)
	if err != nil {
		return nil, err
	}
	log.Info().
		Str("source", cfg.Catalog.Source).
		Int("purchase_orders", len(catalog.PurchaseOrders)).
		Msg("Purchase order catalog loaded")

	opts, err := cfg.Reconciliation.Options()
	if err != nil {
		return nil, err
	}
	pipeline, err := reconcile.NewPipeline(catalog, opts, nil)
	if err != nil {
		return nil, err
	}

	var next client.DocumentExtractor
	if cfg.Extraction.GRPCAddr != "" {
		docClient, err := client.NewDocumentGRPCClient(cfg.Extraction.GRPCAddr, cfg.Extraction.Timeout)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { docClient.Close() })
		next = docClient
		log.Info().Str("extraction_grpc", cfg.Extraction.GRPCAddr).Msg("Document extraction client initialized")
	}
	extractor := client.NewFileExtractor(next)

	a.Files = output.NewFileStore(output.NewFileWriter(cfg.Batch.OutputDir))

	var store service.RecordStore = a.Files
	var audit service.ReasoningAuditor
	if a.DB != nil {
		store = service.ChainStore{repository.NewReconciliationRepository(a.DB), a.Files}
		audit = repository.NewReasoningAuditRepository(a.DB)
	}

	var explainer client.Explainer
	if cfg.Explanation.Enabled {
		explainer = client.NewExplanationClient(client.ExplanationConfig{
			BaseURL:     cfg.Explanation.BaseURL,
			APIKey:      cfg.Explanation.APIKey,
			Model:       cfg.Explanation.Model,
			Temperature: cfg.Explanation.Temperature,
			MaxTokens:   cfg.Explanation.MaxTokens,
			Timeout:     cfg.Explanation.Timeout,
		})
	}

	var publisher client.EventPublisher
	if cfg.NATS.Enabled {
		p, err := client.NewDecisionPublisher(cfg.NATS.URL, cfg.NATS.SubjectPrefix, log.Component("notification").Logger)
		if err != nil {
			// Decisions are still stored; events are best effort.
			log.Warn().Err(err).Str("url", cfg.NATS.URL).Msg("NATS unavailable, decision events disabled")
		} else {
			a.closers = append(a.closers, p.Close)
			publisher = p
		}
	}

	a.Reconciler = service.NewReconciliationService(pipeline, extractor, store, audit, explainer, publisher, log.Component("reconciliation"))
	a.Batch = service.NewBatchService(a.Reconciler, cfg.Batch.Concurrency, log.Component("batch"))

	ok = true
	return a, nil
}

func loadCatalog(ctx context.Context, cfg *config.Config, db *database.DB) (*reconcile.Catalog, error) {
	if cfg.Catalog.Source == "postgres" {
		if db == nil {
			return nil, fmt.Errorf("catalog source postgres requires database.enabled")
		}
		return repository.NewPurchaseOrderRepository(db).LoadCatalog(ctx)
	}
	return reconcile.LoadCatalogFile(cfg.Catalog.Path)
}
