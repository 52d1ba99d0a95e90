package main

import (
	"context"

	appctx "contabil/internal/core/context"
	"contabil/internal/domain/ledger"
	"contabil/internal/domain/periods"
	"contabil/internal/domain/sequence"
	"contabil/internal/domain/vat"
	"contabil/internal/infrastructure/config"
	"contabil/internal/infrastructure/storage/postgres"
	"contabil/internal/infrastructure/storage/postgres/ledger_repo"
	"contabil/internal/infrastructure/storage/postgres/period_repo"
	"contabil/internal/infrastructure/storage/postgres/sequence_repo"
	"contabil/internal/infrastructure/storage/postgres/vat_repo"
	"contabil/pkg/logger"
)

// app holds the services a command works with.
type app struct {
	cfg       *config.Config
	pool      *postgres.Pool
	txManager *postgres.TxManager
	audit     *postgres.AuditRecorder
	sequences *sequence.Service
	guard     *periods.Guard
	ledger    *ledger.Service
	vat       *vat.Engine
}

// newApp connects to the database and wires the accounting core.
func newApp(ctx context.Context, cfg *config.Config) (*app, error) {
	if err := cfg.RequireDatabase(); err != nil {
		return nil, err
	}

	poolCfg := postgres.DefaultPoolConfig(cfg.Database.URL)
	poolCfg.MaxConns = cfg.Database.MaxConns
	poolCfg.ApplicationName = "contabil-cli"
	pool, err := postgres.NewPool(ctx, poolCfg)
	if err != nil {
		return nil, err
	}

	txOpts := postgres.DefaultTxOptions()
	txOpts.StatementTimeout = cfg.Database.StatementTimeout
	txOpts.LockTimeout = cfg.Database.LockTimeout
	txm := postgres.NewTxManagerWithOptions(pool, txOpts)

	chart, err := config.LoadChart(cfg.ChartFile)
	if err != nil {
		pool.Close()
		return nil, err
	}
	recorder, err := postgres.NewAuditRecorder(txm)
	if err != nil {
		pool.Close()
		return nil, err
	}
	outbox := postgres.NewOutboxPublisher(txm)
	ledgerRepo := ledger_repo.New(txm)

	a := &app{
		cfg:       cfg,
		pool:      pool,
		txManager: txm,
		audit:     recorder,
		sequences: sequence.NewService(sequence_repo.New(txm), txm),
	}
	a.guard = periods.NewGuard(period_repo.New(txm), ledgerRepo, txm, recorder, outbox, cfg.Retry)
	a.ledger = ledger.NewService(ledger.Dependencies{
		Repo:      ledgerRepo,
		Chart:     chart,
		Guard:     a.guard,
		Numbers:   a.sequences,
		TxManager: txm,
		Audit:     recorder,
		Events:    outbox,
		Retry:     cfg.Retry,
	}, cfg.Ledger)
	a.vat = vat.NewEngine(vat_repo.New(txm), a.ledger, txm, outbox, cfg.Retry, cfg.VAT)
	return a, nil
}

func (a *app) Close() {
	a.pool.Close()
}

// commandContext returns a context carrying the logger and the CLI actor.
func commandContext(ctx context.Context, log *logger.Logger, actor string) context.Context {
	ctx = logger.WithLogger(ctx, log)
	ctx = appctx.WithTrace(ctx, appctx.NewTraceContext())
	return appctx.WithActor(ctx, &appctx.ActorContext{ActorID: actor, Source: "cli"})
}
