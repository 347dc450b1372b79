package reconciliation_test

import (
	"context"
	"sync"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/ledger"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
	"github.com/payrecon/reconciler/internal/simulation"
)

var routing = reconciliation.AccountRouting{
	FeeAccountID:              "60100",
	TaxLiabilityAccountID:     "21500",
	DefaultAccountID:          "60900",
	UndepositedFundsAccountID: "12000",
}

func newSimulatedService(t *testing.T, u *simulation.Universe, bookOpts ...ledger.Option) (*reconciliation.Service, *ledger.Book, *repository.EntryRepo) {
	t.Helper()
	db, err := repository.InitDB(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	book, err := ledger.NewBook(1, bookOpts...)
	require.NoError(t, err)
	book.AddDeposits(u.Deposits()...)

	store := repository.NewEntryRepo(db)
	log, _ := test.NewNullLogger()
	svc := reconciliation.NewService(u.Sources(), book, store, log, reconciliation.Options{
		Workers: 8,
		Routing: routing,
		Runs:    repository.NewRunRepo(db),
	})
	return svc, book, store
}

func TestSimulatedUniverse_EveryScenarioClassified(t *testing.T) {
	u := simulation.Generate(simulation.Config{Seed: 2024, PayoutsPerSource: 40})
	svc, _, _ := newSimulatedService(t, u)
	start, end := u.Period()

	entries, err := svc.RunForPeriod(context.Background(), start, end, false)
	require.NoError(t, err)
	require.Len(t, entries, 4*40)

	seen := map[simulation.Scenario]bool{}
	for _, e := range entries {
		exp, ok := u.Expect(e.PayoutID)
		require.True(t, ok, e.PayoutID)
		sc, _ := u.Scenario(e.PayoutID)
		seen[sc] = true
		assert.Equal(t, exp.Status, e.Status, "%s (%s): %s", e.PayoutID, sc, e.VarianceReason)
		assert.Equal(t, exp.VarianceType, e.VarianceType, "%s (%s): %s", e.PayoutID, sc, e.VarianceReason)
	}
	assert.Len(t, seen, len(simulation.DefaultMix)-2)
}

func TestSimulatedUniverse_AutoFixIsIdempotent(t *testing.T) {
	u := simulation.Generate(simulation.Config{Seed: 99, PayoutsPerSource: 20})
	svc, book, store := newSimulatedService(t, u)
	start, end := u.Period()
	ctx := context.Background()

	first, err := svc.Run(ctx, start, end, true)
	require.NoError(t, err)

	variances := first.Run.Counts[domain.StatusFixed]
	require.Positive(t, variances)
	assert.Equal(t, variances, first.Run.FixesApplied)
	assert.Len(t, book.Journals(), variances)

	for _, e := range first.Entries {
		if e.Status != domain.StatusFixed {
			continue
		}
		posted := book.JournalsFor(reconciliation.IdempotencyKey(e.PayoutID))
		require.Len(t, posted, 1, e.PayoutID)
		debits, credits := posted[0].Entry.Totals()
		assert.True(t, debits.Equal(credits))
		assert.True(t, debits.Equal(e.VarianceAmount.Abs()))
	}

	// A second pass recomputes from scratch; every fix resolves to the
	// document already posted.
	second, err := svc.Run(ctx, start, end, true)
	require.NoError(t, err)
	assert.Len(t, book.Journals(), variances)
	for _, f := range second.Fixes {
		require.True(t, f.Success, f.Message)
		assert.True(t, f.Receipt.Duplicate)
	}

	rep, err := svc.Report(ctx, domain.EntryFilter{Status: domain.StatusFixed})
	require.NoError(t, err)
	assert.Len(t, rep.Entries, variances)
	assert.False(t, rep.ActionRequired)

	runs, err := svc.Runs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, second.Run.ID, runs[0].ID)

	stored, err := store.Get(ctx, first.Entries[0].PayoutID)
	require.NoError(t, err)
	assert.Equal(t, first.Entries[0].Status, stored.Status)
}

func TestSimulatedUniverse_ManualFix(t *testing.T) {
	u := simulation.Generate(simulation.Config{
		Seed:             11,
		PayoutsPerSource: 3,
		Sources:          []domain.PayoutSourceName{domain.SourceShopify},
		Mix:              []simulation.Scenario{simulation.FeeMismatch},
	})
	svc, book, store := newSimulatedService(t, u)
	start, end := u.Period()
	ctx := context.Background()

	entries, err := svc.RunForPeriod(ctx, start, end, false)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.Empty(t, book.Journals())

	id := entries[0].PayoutID
	res := svc.FixPayout(ctx, id)
	require.True(t, res.Success, res.Message)

	stored, err := store.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusFixed, stored.Status)
	assert.Len(t, book.Journals(), 1)

	again := svc.FixPayout(ctx, id)
	assert.False(t, again.Success)
	assert.Len(t, book.Journals(), 1)
}

func TestSimulatedUniverse_ConcurrentFixesPostOnce(t *testing.T) {
	u := simulation.Generate(simulation.Config{
		Seed:             5,
		PayoutsPerSource: 1,
		Sources:          []domain.PayoutSourceName{domain.SourceStripe},
		Mix:              []simulation.Scenario{simulation.FeeMismatch},
	})
	svc, book, store := newSimulatedService(t, u, ledger.WithDedupe(ledger.DedupeNone))
	start, end := u.Period()
	ctx := context.Background()

	entries, err := svc.RunForPeriod(ctx, start, end, false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, domain.StatusVarianceDetected, entries[0].Status)

	deposits := u.Deposits()
	require.Len(t, deposits, 1)

	log, _ := test.NewNullLogger()
	fixer := reconciliation.NewFixer(book, store, reconciliation.NewMemoryLocker(), log)

	results := make([]reconciliation.FixResult, 4)
	var wg sync.WaitGroup
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			entry := entries[0]
			dep := deposits[0]
			results[i] = fixer.Apply(ctx, &entry, &dep, routing)
		}(i)
	}
	wg.Wait()

	duplicates := 0
	for _, res := range results {
		require.True(t, res.Success, res.Message)
		if res.Receipt.Duplicate {
			duplicates++
		}
	}
	assert.Equal(t, len(results)-1, duplicates)
	assert.Len(t, book.JournalsFor(reconciliation.IdempotencyKey(entries[0].PayoutID)), 1)

	// A manual fix after the fact is refused and posts nothing.
	again := svc.FixPayout(ctx, entries[0].PayoutID)
	assert.ErrorIs(t, again.Err, domain.ErrNotFixable)
	assert.Len(t, book.Journals(), 1)
}

func TestSimulatedUniverse_RerunWithoutLedgerDedupe(t *testing.T) {
	u := simulation.Generate(simulation.Config{Seed: 42, PayoutsPerSource: 10})
	svc, book, _ := newSimulatedService(t, u, ledger.WithDedupe(ledger.DedupeNone))
	start, end := u.Period()
	ctx := context.Background()

	first, err := svc.Run(ctx, start, end, true)
	require.NoError(t, err)
	require.Positive(t, first.Run.FixesApplied)

	second, err := svc.Run(ctx, start, end, true)
	require.NoError(t, err)
	assert.Equal(t, first.Run.FixesApplied, second.Run.FixesApplied)
	for _, f := range second.Fixes {
		require.True(t, f.Success, f.Message)
		assert.True(t, f.Receipt.Duplicate)
	}
	assert.Len(t, book.Journals(), first.Run.FixesApplied)
}
