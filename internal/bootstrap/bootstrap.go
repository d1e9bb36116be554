// Package bootstrap wires the CPQ dependency graph from resolved config into
// a runnable Application. Both the HTTP server (cmd/server) and the
// operational CLI (cmd/cpqctl) build on the same wiring so the two surfaces
// never drift apart on how a store, the ledger, or the execution queue gets
// constructed.
package bootstrap

import (
	"context"

	"go.uber.org/zap"

	"cpq-engine-api/internal/approvalrouter"
	"cpq-engine-api/internal/approvalstore"
	"cpq-engine-api/internal/audit"
	"cpq-engine-api/internal/config"
	"cpq-engine-api/internal/cpqruntime"
	"cpq-engine-api/internal/execqueue"
	"cpq-engine-api/internal/explain"
	"cpq-engine-api/internal/fingerprintstore"
	"cpq-engine-api/internal/flowengine"
	"cpq-engine-api/internal/ledger"
	"cpq-engine-api/internal/middleware"
	"cpq-engine-api/internal/policyevalstore"
	mongorepo "cpq-engine-api/internal/repository/mongo"
	"cpq-engine-api/internal/quoteservice"
	"cpq-engine-api/internal/quotestore"
	"cpq-engine-api/internal/service"
	"cpq-engine-api/internal/snapshotstore"
)

// Application holds every wired component a caller (HTTP server or CLI) may
// need. Mongo is the only component with a Close: everything else is either
// stateless or shares Mongo's lifetime.
type Application struct {
	Config *config.Config
	Logger *zap.Logger
	Mongo  *mongorepo.Client

	ActorRepo      *mongorepo.ActorRepository
	JWT            *service.JWTService
	ActorAuth      *service.ActorAuthService
	AuthMiddleware *middleware.AuthMiddleware

	Ledger ledger.Ledger

	QuoteService *quoteservice.Service
}

// Wire connects to MongoDB and constructs every store, engine, and service
// the application needs. Callers own the returned Application's lifetime and
// must call Close when done.
func Wire(cfg *config.Config, logger *zap.Logger) (*Application, error) {
	mongoClient, err := mongorepo.NewClient(cfg.MongoURI, cfg.MongoDB)
	if err != nil {
		return nil, err
	}

	db := mongoClient.DB()

	actorRepo := mongorepo.NewActorRepository(db)
	jwtService := service.NewJWTService(cfg.JWTSecret)
	actorAuth := service.NewActorAuthService(actorRepo, jwtService)
	authMiddleware := middleware.NewAuthMiddleware(jwtService, actorRepo)

	// Ledger: HMAC signer seeded with every retired key so historical
	// entries still verify, then rotated back onto the current active key.
	signer := ledger.NewLedgerSigner(cfg.LedgerSigningKeyID, cfg.LedgerSigningKey)
	for keyId, key := range cfg.LedgerPriorKeys {
		signer.Rotate(keyId, key)
	}
	signer.Rotate(cfg.LedgerSigningKeyID, cfg.LedgerSigningKey)

	ledgerStore := ledger.NewMongoStore(db)
	entryLedger := ledger.NewDefaultLedger(ledgerStore, signer)

	auditStore := audit.NewMongoStore(db)
	auditSink := audit.NewZapSink(logger, auditStore)

	// Snapshots are recorded through, never rebuilt from archived pricing
	// inputs we don't retain, so the snapshot store runs without a Rebuilder.
	quoteStore := quotestore.NewMongoStore(db)
	snapshotStore := snapshotstore.NewSnapshotStore(snapshotstore.NewMongoStore(db), entryLedger, nil, cfg.PolicyVersionDrift)
	policyEvalStore := policyevalstore.NewMongoStore(db)
	fingerprintStore := fingerprintstore.NewMongoStore(db)
	approvalStore := approvalstore.NewMongoStore(db)
	approvalRouterSvc := approvalrouter.NewRoleRouter(context.Background(), actorRepo)

	execStore := execqueue.NewMongoStore(db)
	idempotencyStore := execqueue.NewMongoIdempotencyStore(db)
	execQueue := execqueue.NewQueue(execStore, idempotencyStore,
		execqueue.WithClaimTTL(cfg.ExecClaimTTL),
		execqueue.WithBackoff(cfg.ExecBackoffBase, cfg.ExecBackoffMaxWait),
		execqueue.WithAuditSink(audit.TransitionAdapter{Sink: auditSink}),
	)

	runtime := cpqruntime.NewRuntime()
	flow := flowengine.NewDefaultEngine()
	explainer := explain.NewAssembler(snapshotStore, policyEvalStore)

	quoteSvc := quoteservice.New(&quoteservice.Service{
		Quotes:         quoteStore,
		Ledger:         entryLedger,
		Flow:           flow,
		Runtime:        runtime,
		Snapshots:      snapshotStore,
		PolicyEvals:    policyEvalStore,
		Fingerprints:   fingerprintStore,
		Approvals:      approvalStore,
		ApprovalRouter: approvalRouterSvc,
		Audit:          auditSink,
		Explainer:      explainer,
		ExecQueue:      execQueue,
	})

	return &Application{
		Config:         cfg,
		Logger:         logger,
		Mongo:          mongoClient,
		ActorRepo:      actorRepo,
		JWT:            jwtService,
		ActorAuth:      actorAuth,
		AuthMiddleware: authMiddleware,
		Ledger:         entryLedger,
		QuoteService:   quoteSvc,
	}, nil
}

// Close releases the Mongo connection. Safe to call with a background
// context; callers typically bound it with their own timeout.
func (a *Application) Close(ctx context.Context) error {
	return a.Mongo.Close(ctx)
}

// NewLogger builds the zap logger backing the audit sink: development
// encoding (readable, non-sampled) outside production, the production
// preset (JSON, sampled) in it.
func NewLogger(cfg *config.Config) (*zap.Logger, error) {
	if cfg.Environment.IsProduction() {
		return zap.NewProduction()
	}
	return zap.NewDevelopment()
}
