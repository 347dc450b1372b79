package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
)

type runCall struct {
	start, end time.Time
	autoFix    bool
}

type fakeReconciler struct {
	mu       sync.Mutex
	runs     []runCall
	runErr   error
	fix      func(id string) reconciliation.FixResult
	fixCalls int32
	report   *reconciliation.AuditReport
	filters  []domain.EntryFilter
	history  []domain.Run
}

func (f *fakeReconciler) Run(_ context.Context, start, end time.Time, autoFix bool) (*reconciliation.RunReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runs = append(f.runs, runCall{start, end, autoFix})
	if f.runErr != nil {
		return nil, f.runErr
	}
	return &reconciliation.RunReport{
		Run: domain.Run{ID: "run-1", Total: 1, Counts: map[domain.ReconciliationStatus]int{domain.StatusMatched: 1}},
		Entries: []domain.ReconciliationEntry{
			{PayoutID: "po_1", Status: domain.StatusMatched, Source: domain.SourceStripe},
		},
	}, nil
}

func (f *fakeReconciler) FixPayout(_ context.Context, id string) reconciliation.FixResult {
	atomic.AddInt32(&f.fixCalls, 1)
	return f.fix(id)
}

func (f *fakeReconciler) Report(_ context.Context, filter domain.EntryFilter) (*reconciliation.AuditReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.filters = append(f.filters, filter)
	return f.report, nil
}

func (f *fakeReconciler) Runs(_ context.Context, limit int) ([]domain.Run, error) {
	if limit < len(f.history) {
		return f.history[:limit], nil
	}
	return f.history, nil
}

type fakeEntries struct {
	entries []domain.ReconciliationEntry
	last    domain.EntryFilter
	err     error
}

func (f *fakeEntries) Query(_ context.Context, filter domain.EntryFilter) ([]domain.ReconciliationEntry, error) {
	f.last = filter
	return f.entries, f.err
}

func (f *fakeEntries) Count(context.Context, domain.EntryFilter) (int, error) {
	return len(f.entries), f.err
}

func (f *fakeEntries) Summary(context.Context) (*repository.EntrySummary, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &repository.EntrySummary{
		TotalCount: len(f.entries),
		ByStatus:   map[string]int{"MATCHED": len(f.entries)},
	}, nil
}

type testServer struct {
	svc     *fakeReconciler
	entries *fakeEntries
	handler http.Handler
}

var fixedNow = time.Date(2024, 2, 10, 15, 0, 0, 0, time.UTC)

func newTestServer(t *testing.T, cfg Config) *testServer {
	t.Helper()
	logger, _ := test.NewNullLogger()
	ts := &testServer{svc: &fakeReconciler{}, entries: &fakeEntries{}}

	h := NewHandlers(ts.svc, ts.entries, logger, cfg)
	h.now = func() time.Time { return fixedNow }
	ts.handler = newRouterWith(h)
	return ts
}

func (ts *testServer) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	rec := httptest.NewRecorder()
	ts.handler.ServeHTTP(rec, req)

	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return rec, out
}

func TestReconcile(t *testing.T) {
	t.Run("explicit period", func(t *testing.T) {
		ts := newTestServer(t, Config{})
		rec, out := ts.do(t, http.MethodPost, "/api/v1/reconcile", `{"start":"2024-01-01","end":"2024-01-31","auto_fix":true}`)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		require.Len(t, ts.svc.runs, 1)
		call := ts.svc.runs[0]
		assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), call.start)
		assert.Equal(t, time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), call.end, "a bare end date covers the whole day")
		assert.True(t, call.autoFix)

		run := out["run"].(map[string]any)
		assert.Equal(t, "run-1", run["id"])
		assert.Len(t, out["entries"], 1)
	})

	t.Run("defaults", func(t *testing.T) {
		ts := newTestServer(t, Config{AutoFix: true, LookbackDays: 3})
		rec, _ := ts.do(t, http.MethodPost, "/api/v1/reconcile", "")

		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, ts.svc.runs, 1)
		call := ts.svc.runs[0]
		assert.Equal(t, fixedNow, call.end)
		assert.Equal(t, fixedNow.AddDate(0, 0, -3), call.start)
		assert.True(t, call.autoFix)
	})

	t.Run("auto_fix false overrides the default", func(t *testing.T) {
		ts := newTestServer(t, Config{AutoFix: true})
		ts.do(t, http.MethodPost, "/api/v1/reconcile", `{"auto_fix":false}`)
		require.Len(t, ts.svc.runs, 1)
		assert.False(t, ts.svc.runs[0].autoFix)
	})

	t.Run("bad requests", func(t *testing.T) {
		for _, body := range []string{
			`{"start":"yesterday"}`,
			`{"start":"2024-02-01","end":"2024-01-01"}`,
			`{"start":"2024-01-01T00:00:00Z","end":"2024-01-01T00:00:00Z"}`,
			`{"start":`,
		} {
			ts := newTestServer(t, Config{})
			rec, out := ts.do(t, http.MethodPost, "/api/v1/reconcile", body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, body)
			assert.NotEmpty(t, out["error"])
			assert.Empty(t, ts.svc.runs)
		}
	})

	t.Run("cancelled run", func(t *testing.T) {
		ts := newTestServer(t, Config{})
		ts.svc.runErr = context.Canceled
		rec, out := ts.do(t, http.MethodPost, "/api/v1/reconcile", `{}`)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Equal(t, "context canceled", out["error"])
	})
}

func TestFixPayout(t *testing.T) {
	tests := []struct {
		name   string
		result reconciliation.FixResult
		want   int
	}{
		{
			name:   "applied",
			result: reconciliation.FixResult{Success: true, Receipt: &domain.Receipt{ID: "je_1"}},
			want:   http.StatusOK,
		},
		{
			name:   "unknown payout",
			result: reconciliation.FixResult{Message: "not found", Err: domain.ErrEntryNotFound},
			want:   http.StatusNotFound,
		},
		{
			name:   "already fixed",
			result: reconciliation.FixResult{Message: "not fixable", Err: domain.ErrNotFixable},
			want:   http.StatusConflict,
		},
		{
			name:   "ledger failure",
			result: reconciliation.FixResult{Message: "boom", Err: errors.New("boom")},
			want:   http.StatusUnprocessableEntity,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := newTestServer(t, Config{})
			ts.svc.fix = func(id string) reconciliation.FixResult {
				res := tt.result
				res.PayoutID = id
				return res
			}

			rec, out := ts.do(t, http.MethodPost, "/api/v1/reconciliation/fix/po_42", "")
			assert.Equal(t, tt.want, rec.Code)
			assert.Equal(t, "po_42", out["payout_id"])
			assert.Equal(t, tt.result.Success, out["success"])
			assert.NotContains(t, out, "Err")
		})
	}
}

func TestFixPayout_ConcurrentRequestsShareOneFix(t *testing.T) {
	ts := newTestServer(t, Config{})
	entered := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	ts.svc.fix = func(id string) reconciliation.FixResult {
		once.Do(func() { close(entered) })
		<-release
		return reconciliation.FixResult{PayoutID: id, Success: true}
	}

	const n = 5
	codes := make([]int, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			req := httptest.NewRequest(http.MethodPost, "/api/v1/reconciliation/fix/po_7", nil)
			rec := httptest.NewRecorder()
			ts.handler.ServeHTTP(rec, req)
			codes[i] = rec.Code
		}(i)
	}

	<-entered
	time.Sleep(100 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), atomic.LoadInt32(&ts.svc.fixCalls))
	for _, c := range codes {
		assert.Equal(t, http.StatusOK, c)
	}
}

func TestAuditReport(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.svc.report = &reconciliation.AuditReport{
		Entries: []domain.ReconciliationEntry{
			{PayoutID: "po_1", Status: domain.StatusVarianceDetected, VarianceAmount: decimal.RequireFromString("0.50")},
			{PayoutID: "po_2", Status: domain.StatusMissingDeposit, VarianceAmount: decimal.RequireFromString("50")},
		},
		TotalVariance:  decimal.RequireFromString("50.5"),
		ActionRequired: true,
	}

	rec, out := ts.do(t, http.MethodGet, "/api/v1/payouts?source=stripe&status=variance_detected&from=2024-01-01&to=2024-01-31", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "50.50", out["total_variance"])
	assert.Equal(t, true, out["action_required"])
	assert.Equal(t, float64(2), out["count"])

	require.Len(t, ts.svc.filters, 1)
	f := ts.svc.filters[0]
	assert.Equal(t, domain.SourceStripe, f.Source)
	assert.Equal(t, domain.StatusVarianceDetected, f.Status)
	assert.Equal(t, 0, f.Limit)
	require.NotNil(t, f.From)
	require.NotNil(t, f.To)
	assert.Equal(t, "2024-01-31", f.To.Format("2006-01-02"))

	rec, out = ts.do(t, http.MethodGet, "/api/v1/payouts?source=venmo", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, out["error"], "unsupported payout source")
}

func TestListEntries(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.entries.entries = []domain.ReconciliationEntry{{PayoutID: "po_1"}, {PayoutID: "po_2"}}

	rec, out := ts.do(t, http.MethodGet, "/api/v1/entries?page=3&limit=10&variance_type=fee_mismatch", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(2), out["total"])
	assert.Equal(t, float64(3), out["page"])
	assert.Equal(t, float64(10), out["limit"])
	assert.Equal(t, 20, ts.entries.last.Offset)
	assert.Equal(t, domain.VarianceFeeMismatch, ts.entries.last.VarianceType)

	ts.do(t, http.MethodGet, "/api/v1/entries", "")
	assert.Equal(t, 50, ts.entries.last.Limit)
	assert.Equal(t, 0, ts.entries.last.Offset)

	rec, _ = ts.do(t, http.MethodGet, "/api/v1/entries?from=last-week", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	ts.entries.err = errors.New("database is locked")
	rec, out = ts.do(t, http.MethodGet, "/api/v1/entries", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "database is locked", out["error"])
}

func TestGetEntrySummary(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.entries.entries = []domain.ReconciliationEntry{{PayoutID: "po_1"}}

	rec, out := ts.do(t, http.MethodGet, "/api/v1/entries/summary", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, float64(1), out["total_count"])
}

func TestListRuns(t *testing.T) {
	ts := newTestServer(t, Config{})
	ts.svc.history = []domain.Run{{ID: "r3"}, {ID: "r2"}, {ID: "r1"}}

	rec, out := ts.do(t, http.MethodGet, "/api/v1/runs?limit=2", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, out["runs"], 2)

	ts.svc.history = nil
	_, out = ts.do(t, http.MethodGet, "/api/v1/runs", "")
	assert.Equal(t, []any{}, out["runs"])
	assert.Equal(t, float64(20), out["limit"])
}
