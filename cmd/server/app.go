package main

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/config"
	"github.com/payrecon/reconciler/internal/dal"
	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/events"
	"github.com/payrecon/reconciler/internal/ledger"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
	"github.com/payrecon/reconciler/internal/simulation"
	"github.com/payrecon/reconciler/internal/source"
)

// app is the wired service and everything it needs to shut down.
type app struct {
	svc     *reconciliation.Service
	entries *repository.EntryRepo
	book    *ledger.Book
	// period is the default run period: the generated span in simulated
	// mode, the lookback window otherwise.
	periodStart, periodEnd time.Time
	closers                []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func routing(c config.AccountsCfg) reconciliation.AccountRouting {
	r := reconciliation.AccountRouting{
		FeeAccountID:              c.Fee,
		TaxLiabilityAccountID:     c.TaxLiability,
		DefaultAccountID:          c.Default,
		UndepositedFundsAccountID: c.UndepositedFunds,
	}
	if len(c.ByType) > 0 {
		r.ByType = make(map[domain.VarianceType]string, len(c.ByType))
		for k, v := range c.ByType {
			r.ByType[domain.VarianceType(strings.ToUpper(k))] = v
		}
	}
	return r
}

func buildApp(ctx context.Context, cfg *config.Root, db *sql.DB, log logrus.FieldLogger) (*app, error) {
	a := &app{}
	names, err := cfg.Sources.Names()
	if err != nil {
		return nil, err
	}

	var sources []domain.PayoutSource
	var deposits []domain.LedgerEntry
	switch cfg.Sources.Mode {
	case config.ModeSimulated:
		start, _ := cfg.Simulation.StartTime()
		u := simulation.Generate(simulation.Config{
			Seed:             cfg.Simulation.Seed,
			PayoutsPerSource: cfg.Simulation.PayoutsPerSource,
			Start:            start,
			Days:             cfg.Simulation.Days,
			Sources:          names,
		})
		sources = u.Sources()
		deposits = u.Deposits()
		a.periodStart, a.periodEnd = u.Period()
		log.WithFields(logrus.Fields{"sources": names, "deposits": len(deposits)}).Info("generated simulated universe")
	case config.ModeFiles:
		for _, n := range names {
			src, err := source.New(n, cfg.Sources.File(n), log)
			if err != nil {
				return nil, err
			}
			sources = append(sources, src)
		}
		if deposits, err = ledger.LoadDeposits(cfg.Sources.Deposits); err != nil {
			return nil, err
		}
		a.periodEnd = time.Now().UTC()
		a.periodStart = a.periodEnd.AddDate(0, 0, -cfg.Reconcile.LookbackDays)
		log.WithFields(logrus.Fields{"sources": names, "deposits": len(deposits)}).Info("loaded export files")
	}

	book, err := ledger.NewBook(1)
	if err != nil {
		return nil, err
	}
	book.AddDeposits(deposits...)
	a.book = book

	opts := reconciliation.Options{
		Workers:       cfg.Reconcile.Workers,
		AccountFilter: cfg.Reconcile.AccountFilter,
		Routing:       routing(cfg.Accounts),
		Runs:          repository.NewRunRepo(db),
	}

	if cfg.Redis.Enabled {
		client, err := dal.NewRedis(ctx, cfg.Redis)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.closers = append(a.closers, client.Close)
		opts.Locker = reconciliation.NewRedisLocker(client, cfg.Redis.LockTTL)
		log.WithField("addr", cfg.Redis.Addr).Info("fix locks held in redis")
	}

	if cfg.RabbitMQ.Enabled {
		conn, ch, err := events.Dial(cfg.RabbitMQ.URL, cfg.RabbitMQ.Exchange)
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("rabbitmq: %w", err)
		}
		a.closers = append(a.closers, conn.Close, ch.Close)
		opts.Publisher = events.NewAMQPPublisher(ch, cfg.RabbitMQ.Exchange, log)
		log.WithField("exchange", cfg.RabbitMQ.Exchange).Info("publishing run events")
	}

	a.entries = repository.NewEntryRepo(db)
	a.svc = reconciliation.NewService(sources, book, a.entries, log, opts)
	return a, nil
}
