package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/api"
	"github.com/payrecon/reconciler/internal/config"
	"github.com/payrecon/reconciler/internal/logger"
	"github.com/payrecon/reconciler/internal/repository"
)

func main() {
	configPath := flag.String("config", "", "Path to a YAML config file")
	runOnce := flag.Bool("run-once", false, "Reconcile one period, print the JSON report and exit")
	startStr := flag.String("start", "", "Period start (YYYY-MM-DD), with -run-once")
	endStr := flag.String("end", "", "Period end (YYYY-MM-DD), with -run-once")
	autoFix := flag.Bool("auto-fix", false, "Apply fixes during -run-once (also reconcile.auto_fix)")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	lg, err := logger.New("reconciler", cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	lg.WithField("path", cfg.Database.Path).Info("initializing database")
	db, err := repository.InitDB(cfg.Database.Path)
	if err != nil {
		lg.WithError(err).Fatal("failed to init DB")
	}
	defer db.Close()

	a, err := buildApp(ctx, cfg, db, lg)
	if err != nil {
		lg.WithError(err).Fatal("failed to wire reconciler")
	}
	defer a.Close()

	if *runOnce {
		if err := runPeriod(ctx, a, os.Stdout, *startStr, *endStr, *autoFix || cfg.Reconcile.AutoFix); err != nil {
			lg.WithError(err).Error("reconciliation failed")
			a.Close()
			os.Exit(1)
		}
		return
	}

	router := api.NewRouter(a.svc, a.entries, lg, api.Config{
		AutoFix:      cfg.Reconcile.AutoFix,
		LookbackDays: cfg.Reconcile.LookbackDays,
	})
	serve(ctx, lg, ":"+cfg.Server.Port, router)
}

// runPeriod reconciles one period and writes the report as JSON. Empty
// dates fall back to the app's default period.
func runPeriod(ctx context.Context, a *app, w io.Writer, startStr, endStr string, autoFix bool) error {
	start, end := a.periodStart, a.periodEnd
	if startStr != "" {
		t, err := time.Parse("2006-01-02", startStr)
		if err != nil {
			return fmt.Errorf("parse start date: %w", err)
		}
		start = t
	}
	if endStr != "" {
		t, err := time.Parse("2006-01-02", endStr)
		if err != nil {
			return fmt.Errorf("parse end date: %w", err)
		}
		end = t.AddDate(0, 0, 1)
	}

	report, err := a.svc.Run(ctx, start, end, autoFix)
	if err != nil {
		return err
	}

	output, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	_, err = fmt.Fprintln(w, string(output))
	return err
}

func serve(ctx context.Context, lg *logrus.Logger, addr string, handler http.Handler) {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lg.Info("Payout Reconciler")
	lg.Infof("Listening on http://localhost%s", addr)
	lg.Info("Endpoints:")
	lg.Info("  POST   /api/v1/reconcile")
	lg.Info("  POST   /api/v1/reconciliation/fix/{payoutID}")
	lg.Info("  GET    /api/v1/payouts")
	lg.Info("  GET    /api/v1/entries")
	lg.Info("  GET    /api/v1/entries/summary")
	lg.Info("  GET    /api/v1/runs")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			lg.WithError(err).Error("server failed")
		}
	case <-ctx.Done():
		lg.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			lg.WithError(err).Warn("shutdown")
		}
	}
}
