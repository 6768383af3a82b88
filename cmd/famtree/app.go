package main

import (
	"context"
	"database/sql"
	"errors"
	"io"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"famtree/internal/consultation"
	genealogymetrics "famtree/internal/genealogy/metrics"
	"famtree/internal/genealogy/service"
	csvstore "famtree/internal/genealogy/store/csv"
	"famtree/internal/notify"
	"famtree/internal/platform/config"
	"famtree/internal/platform/logger"
	"famtree/internal/platform/metrics"
	"famtree/internal/platform/sqlite"
	"famtree/pkg/platform/audit"
	auditsqlite "famtree/pkg/platform/audit/store/sqlite"
)

// app holds the wired components for one command invocation.
type app struct {
	cfg           config.Config
	logger        *slog.Logger
	db            *sql.DB
	svc           *service.Service
	consultations *consultation.Store
	audit         *audit.Publisher
	metrics       *prometheus.Registry
	closers       []func() error
}

// openApp wires storage, notification and the genealogy service from cfg,
// then loads the persisted graph.
func openApp(ctx context.Context, cfg config.Config, logOut io.Writer) (*app, error) {
	log, err := logger.New(logOut, cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: log, metrics: metrics.NewRegistry()}

	store, err := csvstore.New(cfg.Storage.DataDir, cfg.Storage.PersonsFile, cfg.Storage.LinksFile, csvstore.WithLogger(log))
	if err != nil {
		return nil, err
	}

	a.db, err = sqlite.Open(ctx, cfg.Storage.DatabasePath())
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, a.db.Close)
	a.consultations = consultation.New(a.db)
	a.audit = audit.NewPublisher(auditsqlite.New(a.db))

	var notifier service.Notifier
	switch cfg.Notifier.Kind {
	case "amqp":
		n, err := notify.DialAMQP(cfg.Notifier.URL, cfg.Notifier.Exchange, cfg.Notifier.RoutingKey, notify.WithLogger(log))
		if err != nil {
			_ = a.Close()
			return nil, err
		}
		a.closers = append(a.closers, n.Close)
		notifier = n
	default:
		notifier = notify.NewLogNotifier(log)
	}

	opts := []service.Option{
		service.WithLogger(log),
		service.WithAuditPublisher(a.audit),
		service.WithMetrics(genealogymetrics.New(a.metrics)),
		service.WithConsultationLog(a.consultations),
	}
	if cfg.Tree.MaxDepth > 0 {
		opts = append(opts, service.WithMaxDepth(cfg.Tree.MaxDepth))
	}
	a.svc, err = service.New(store, store, notifier, opts...)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	if err := a.svc.Load(ctx); err != nil {
		_ = a.Close()
		return nil, err
	}
	return a, nil
}

// Close releases resources in reverse order of acquisition.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
