package reconciliation

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/events"
)

// Options tunes a Service. Zero values select the defaults.
type Options struct {
	// Workers bounds concurrent payout processing. Defaults to 4.
	Workers int
	// AccountFilter restricts exact and fuzzy deposit matches to ledger
	// accounts whose name contains it.
	AccountFilter string
	Routing       AccountRouting
	Locker        Locker
	Publisher     events.Publisher
	Runs          domain.RunStore
}

// RunReport is the outcome of one Run.
type RunReport struct {
	Run     domain.Run                   `json:"run"`
	Entries []domain.ReconciliationEntry `json:"entries"`
	Fixes   []FixResult                  `json:"fixes,omitempty"`
}

// AuditReport is the stored view of a set of entries.
type AuditReport struct {
	Entries        []domain.ReconciliationEntry `json:"entries"`
	TotalVariance  decimal.Decimal              `json:"total_variance"`
	ActionRequired bool                         `json:"action_required"`
}

// Service reconciles processor payouts against ledger deposits.
type Service struct {
	sources []domain.PayoutSource
	ledger  domain.Ledger
	store   domain.AuditStore
	matcher *Matcher
	fixer   *Fixer
	opts    Options
	log     logrus.FieldLogger
	now     func() time.Time
}

// NewService creates a new reconciliation service. Sources are processed in
// the order given.
func NewService(
	sources []domain.PayoutSource,
	ledger domain.Ledger,
	store domain.AuditStore,
	log logrus.FieldLogger,
	opts Options,
) *Service {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.Publisher == nil {
		opts.Publisher = events.Nop{}
	}
	log = log.WithField("component", "reconciliation")
	return &Service{
		sources: sources,
		ledger:  ledger,
		store:   store,
		matcher: NewMatcher(ledger, log),
		fixer:   NewFixer(ledger, store, opts.Locker, log),
		opts:    opts,
		log:     log,
		now:     time.Now,
	}
}

// RunForPeriod reconciles every payout created in [start, end) and returns
// the entries in source order.
func (s *Service) RunForPeriod(ctx context.Context, start, end time.Time, autoFix bool) ([]domain.ReconciliationEntry, error) {
	rep, err := s.Run(ctx, start, end, autoFix)
	if rep == nil {
		return nil, err
	}
	return rep.Entries, err
}

type job struct {
	src    domain.PayoutSource
	payout domain.Payout
}

type outcome struct {
	entry domain.ReconciliationEntry
	fix   *FixResult
	done  bool
}

// Run is RunForPeriod plus the run summary and fix results. A source that
// fails to list payouts is reported in Run.SourceErrors and the other
// sources still run. The only error returned is context cancellation, in
// which case the report holds the payouts processed before it.
func (s *Service) Run(ctx context.Context, start, end time.Time, autoFix bool) (*RunReport, error) {
	run := domain.Run{
		ID:          uuid.NewString(),
		PeriodStart: start,
		PeriodEnd:   end,
		AutoFix:     autoFix,
		StartedAt:   s.now(),
		Counts:      map[domain.ReconciliationStatus]int{},
	}
	logger := s.log.WithField("run_id", run.ID)

	jobs, srcErrs := s.fetchPayouts(ctx, start, end)
	run.SourceErrors = srcErrs
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("fetch payouts: %w", err)
	}
	logger.WithField("payouts", len(jobs)).Info("fetched payouts")

	results := make([]outcome, len(jobs))
	g := new(errgroup.Group)
	g.SetLimit(s.opts.Workers)
	for i, j := range jobs {
		if ctx.Err() != nil {
			break
		}
		i, j := i, j
		g.Go(func() error {
			entry, fix := s.processPayout(ctx, j.src, j.payout, autoFix)
			// A payout interrupted by cancellation is not reported.
			if entry.Status == domain.StatusError && ctx.Err() != nil {
				return nil
			}
			results[i] = outcome{entry: entry, fix: fix, done: true}
			return nil
		})
	}
	_ = g.Wait()

	rep := &RunReport{Entries: make([]domain.ReconciliationEntry, 0, len(jobs))}
	for _, r := range results {
		if !r.done {
			continue
		}
		rep.Entries = append(rep.Entries, r.entry)
		run.Counts[r.entry.Status]++
		if r.fix != nil {
			rep.Fixes = append(rep.Fixes, *r.fix)
			if r.fix.Success {
				run.FixesApplied++
			}
		}
	}
	run.Total = len(rep.Entries)
	run.FinishedAt = s.now()
	rep.Run = run

	if err := ctx.Err(); err != nil {
		logger.WithField("processed", run.Total).Warn("run canceled")
		return rep, fmt.Errorf("run %s: %w", run.ID, err)
	}

	s.recordRun(ctx, logger, run)

	logger.WithFields(logrus.Fields{
		"total":    run.Total,
		"matched":  run.Counts[domain.StatusMatched],
		"variance": run.Counts[domain.StatusVarianceDetected],
		"missing":  run.Counts[domain.StatusMissingDeposit],
		"fixed":    run.Counts[domain.StatusFixed],
		"errors":   run.Counts[domain.StatusError],
	}).Info("run complete")
	return rep, nil
}

// fetchPayouts lists payouts from every source concurrently. The returned
// jobs keep source order, then each source's own order.
func (s *Service) fetchPayouts(ctx context.Context, start, end time.Time) ([]job, []string) {
	perSource := make([][]domain.Payout, len(s.sources))
	errs := make([]error, len(s.sources))

	g := new(errgroup.Group)
	for i, src := range s.sources {
		i, src := i, src
		g.Go(func() error {
			payouts, err := src.ListPayouts(ctx, domain.PayoutStatusPaid, start, end)
			if err != nil {
				errs[i] = fmt.Errorf("%s: list payouts: %w", src.Source(), err)
				return nil
			}
			perSource[i] = payouts
			return nil
		})
	}
	_ = g.Wait()

	var jobs []job
	var srcErrs []string
	for i, src := range s.sources {
		if errs[i] != nil {
			s.log.WithError(errs[i]).WithField("source", src.Source()).Error("source unavailable")
			srcErrs = append(srcErrs, errs[i].Error())
			continue
		}
		for _, p := range perSource[i] {
			if p.Source == "" {
				p.Source = src.Source()
			}
			jobs = append(jobs, job{src: src, payout: p})
		}
	}
	return jobs, srcErrs
}

// processPayout runs one payout through classify, match, evaluate, persist
// and, when enabled, fix. Collaborator failures become an ERROR entry.
func (s *Service) processPayout(ctx context.Context, src domain.PayoutSource, p domain.Payout, autoFix bool) (domain.ReconciliationEntry, *FixResult) {
	logger := s.log.WithFields(logrus.Fields{"payout_id": p.ID, "source": p.Source})

	details, err := src.GetDetailEntries(ctx, p.ID)
	if err != nil {
		return s.errorEntry(ctx, p, fmt.Errorf("get detail entries: %w", err)), nil
	}
	for i, d := range details {
		if err := d.Validate(); err != nil {
			return s.errorEntry(ctx, p, fmt.Errorf("detail entry %d: %w", i, err)), nil
		}
	}
	totals := Classify(details)

	from, to := Window(p.CreatedAt)
	var filter *string
	if s.opts.AccountFilter != "" {
		filter = &s.opts.AccountFilter
	}
	id := p.ID
	deposit, err := s.matcher.FindDeposit(ctx, p.NetAmount, from, to, filter, &id)
	if err != nil {
		return s.errorEntry(ctx, p, err), nil
	}

	entry := Evaluate(p, totals, deposit)
	entry.UpdatedAt = s.now()
	if err := s.store.Save(ctx, entry); err != nil {
		return s.errorEntry(ctx, p, fmt.Errorf("save entry: %w", err)), nil
	}

	logger.WithFields(logrus.Fields{
		"status":   entry.Status,
		"net":      entry.NetDeposit.StringFixed(2),
		"tax":      entry.SalesTaxCollected.StringFixed(2),
		"refunds":  entry.RefundAmount.StringFixed(2),
		"variance": entry.VarianceAmount.StringFixed(2),
	}).Info("processed payout")

	if !autoFix || entry.Status != domain.StatusVarianceDetected {
		return entry, nil
	}
	res := s.fixer.Apply(ctx, &entry, deposit, s.opts.Routing)
	if res.Success {
		s.publishFix(ctx, entry, res)
	}
	return entry, &res
}

// errorEntry records a failed payout. Nothing is persisted once the context
// is done.
func (s *Service) errorEntry(ctx context.Context, p domain.Payout, err error) domain.ReconciliationEntry {
	entry := domain.ReconciliationEntry{
		Date:           p.CreatedAt.Format("2006-01-02"),
		PayoutID:       p.ID,
		Source:         p.Source,
		Status:         domain.StatusError,
		NetDeposit:     p.NetAmount,
		VarianceReason: err.Error(),
		UpdatedAt:      s.now(),
	}
	logger := s.log.WithFields(logrus.Fields{"payout_id": p.ID, "source": p.Source})
	if ctx.Err() != nil {
		return entry
	}
	logger.WithError(err).Error("payout failed")
	if saveErr := s.store.Save(ctx, entry); saveErr != nil {
		logger.WithError(saveErr).Warn("could not persist error entry")
	}
	return entry
}

// FixPayout applies the correction for a stored VARIANCE_DETECTED entry.
// The deposit is looked up again: by the id recorded on the entry, or by
// the normal matching tiers when none was recorded.
func (s *Service) FixPayout(ctx context.Context, payoutID string) FixResult {
	res := FixResult{PayoutID: payoutID}

	fail := func(err error) FixResult {
		res.Message, res.Err = err.Error(), err
		return res
	}

	entry, err := s.store.Get(ctx, payoutID)
	if err != nil {
		return fail(err)
	}
	if entry.Status != domain.StatusVarianceDetected {
		return fail(fmt.Errorf("%w: status is %s", domain.ErrNotFixable, entry.Status))
	}

	date, err := time.Parse("2006-01-02", entry.Date)
	if err != nil {
		return fail(fmt.Errorf("entry date %q: %w", entry.Date, err))
	}
	from, to := Window(date)

	var deposit *domain.LedgerEntry
	if entry.DepositID != "" {
		deposit, err = s.matcher.DepositByID(ctx, entry.DepositID, from, to)
	} else {
		var filter *string
		if s.opts.AccountFilter != "" {
			filter = &s.opts.AccountFilter
		}
		deposit, err = s.matcher.FindDeposit(ctx, entry.NetDeposit, from, to, filter, &payoutID)
	}
	if err != nil {
		return fail(err)
	}

	res = s.fixer.Apply(ctx, entry, deposit, s.opts.Routing)
	if res.Success {
		s.publishFix(ctx, *entry, res)
	}
	return res
}

// Report returns the stored entries matching f with their total absolute
// variance. FIXED and MATCHED entries contribute nothing to the total.
func (s *Service) Report(ctx context.Context, f domain.EntryFilter) (*AuditReport, error) {
	entries, err := s.store.Query(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("query entries: %w", err)
	}
	rep := &AuditReport{Entries: entries, TotalVariance: decimal.Zero}
	for _, e := range entries {
		if e.NeedsAction() {
			rep.ActionRequired = true
			rep.TotalVariance = rep.TotalVariance.Add(e.VarianceAmount.Abs())
		}
	}
	return rep, nil
}

// Runs returns the most recent runs, newest first.
func (s *Service) Runs(ctx context.Context, limit int) ([]domain.Run, error) {
	if s.opts.Runs == nil {
		return nil, nil
	}
	return s.opts.Runs.List(ctx, limit)
}

func (s *Service) recordRun(ctx context.Context, logger logrus.FieldLogger, run domain.Run) {
	if s.opts.Runs != nil {
		if err := s.opts.Runs.Record(ctx, run); err != nil {
			logger.WithError(err).Warn("could not record run")
		}
	}

	counts := make(map[string]int, len(run.Counts))
	for st, n := range run.Counts {
		counts[string(st)] = n
	}
	evt := events.RunCompleted{
		RunID:        run.ID,
		PeriodStart:  run.PeriodStart,
		PeriodEnd:    run.PeriodEnd,
		Total:        run.Total,
		Counts:       counts,
		FixesApplied: run.FixesApplied,
		Ts:           run.FinishedAt.Unix(),
	}
	if err := s.opts.Publisher.Publish(ctx, events.KeyRunCompleted, evt); err != nil {
		logger.WithError(err).Warn("could not publish run event")
	}
}

func (s *Service) publishFix(ctx context.Context, entry domain.ReconciliationEntry, res FixResult) {
	evt := events.FixApplied{
		PayoutID:     entry.PayoutID,
		Source:       string(entry.Source),
		VarianceType: string(entry.VarianceType),
		Amount:       entry.VarianceAmount.Abs().StringFixed(2),
		Ts:           s.now().Unix(),
	}
	if res.Receipt != nil {
		evt.JournalID = res.Receipt.ID
		evt.Duplicate = res.Receipt.Duplicate
	}
	if err := s.opts.Publisher.Publish(ctx, events.KeyFixApplied, evt); err != nil {
		s.log.WithError(err).WithField("payout_id", entry.PayoutID).Warn("could not publish fix event")
	}
}
