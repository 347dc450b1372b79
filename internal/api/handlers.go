package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/reconciliation"
	"github.com/payrecon/reconciler/internal/repository"
)

// Reconciler is the part of reconciliation.Service the API drives.
type Reconciler interface {
	Run(ctx context.Context, start, end time.Time, autoFix bool) (*reconciliation.RunReport, error)
	FixPayout(ctx context.Context, payoutID string) reconciliation.FixResult
	Report(ctx context.Context, f domain.EntryFilter) (*reconciliation.AuditReport, error)
	Runs(ctx context.Context, limit int) ([]domain.Run, error)
}

// EntryStore is the read side of the audit store.
type EntryStore interface {
	Query(ctx context.Context, f domain.EntryFilter) ([]domain.ReconciliationEntry, error)
	Count(ctx context.Context, f domain.EntryFilter) (int, error)
	Summary(ctx context.Context) (*repository.EntrySummary, error)
}

// Config holds request defaults.
type Config struct {
	// AutoFix applies to reconcile requests that do not set auto_fix.
	AutoFix bool
	// LookbackDays is the period length when a request names no start.
	LookbackDays int
}

// Handlers groups all HTTP handler methods and their dependencies.
type Handlers struct {
	svc     Reconciler
	entries EntryStore
	cfg     Config
	log     logrus.FieldLogger
	now     func() time.Time
	// fixes collapses concurrent fix requests for the same payout.
	fixes singleflight.Group
}

func NewHandlers(svc Reconciler, entries EntryStore, log logrus.FieldLogger, cfg Config) *Handlers {
	if cfg.LookbackDays <= 0 {
		cfg.LookbackDays = 7
	}
	return &Handlers{
		svc:     svc,
		entries: entries,
		cfg:     cfg,
		log:     log.WithField("component", "api"),
		now:     time.Now,
	}
}

// --- helpers ---

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, v any) {
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.log.WithError(err).Warn("encode response")
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// parseTime accepts RFC3339 or a bare date. With nextDay a bare date moves
// to the following midnight, so an exclusive period end covers the whole day.
func parseTime(s string, nextDay bool) (*time.Time, error) {
	if s == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return nil, fmt.Errorf("invalid time %q: want RFC3339 or YYYY-MM-DD", s)
	}
	if nextDay {
		t = t.AddDate(0, 0, 1)
	}
	return &t, nil
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 1 {
		return def
	}
	return v
}

// parseFilter reads status, source, variance_type, from, to, page and
// limit. defLimit 0 means no limit unless the request sets one.
func parseFilter(r *http.Request, defLimit int) (domain.EntryFilter, int, error) {
	q := r.URL.Query()
	f := domain.EntryFilter{
		Status:       domain.ReconciliationStatus(strings.ToUpper(q.Get("status"))),
		VarianceType: domain.VarianceType(strings.ToUpper(q.Get("variance_type"))),
	}
	if s := q.Get("source"); s != "" {
		src, err := domain.ParseSource(s)
		if err != nil {
			return f, 0, err
		}
		f.Source = src
	}
	var err error
	if f.From, err = parseTime(q.Get("from"), false); err != nil {
		return f, 0, err
	}
	if f.To, err = parseTime(q.Get("to"), false); err != nil {
		return f, 0, err
	}

	page := parseIntDefault(q.Get("page"), 1)
	f.Limit = parseIntDefault(q.Get("limit"), defLimit)
	if f.Limit > 0 {
		f.Offset = (page - 1) * f.Limit
	}
	return f, page, nil
}

// --- Reconcile ---

type reconcileRequest struct {
	Start   string `json:"start"`
	End     string `json:"end"`
	AutoFix *bool  `json:"auto_fix"`
}

func (h *Handlers) Reconcile(w http.ResponseWriter, r *http.Request) {
	var req reconcileRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	end, err := parseTime(req.End, true)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "end: "+err.Error())
		return
	}
	if end == nil {
		now := h.now().UTC()
		end = &now
	}
	start, err := parseTime(req.Start, false)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, "start: "+err.Error())
		return
	}
	if start == nil {
		s := end.AddDate(0, 0, -h.cfg.LookbackDays)
		start = &s
	}
	if !start.Before(*end) {
		h.writeError(w, http.StatusBadRequest, "start must be before end")
		return
	}

	autoFix := h.cfg.AutoFix
	if req.AutoFix != nil {
		autoFix = *req.AutoFix
	}

	report, err := h.svc.Run(r.Context(), *start, *end, autoFix)
	if err != nil {
		h.writeError(w, http.StatusServiceUnavailable, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, report)
}

// --- FixPayout ---

func (h *Handlers) FixPayout(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "payoutID")
	if id == "" {
		h.writeError(w, http.StatusBadRequest, "payoutID is required")
		return
	}

	v, _, shared := h.fixes.Do(id, func() (any, error) {
		return h.svc.FixPayout(r.Context(), id), nil
	})
	res := v.(reconciliation.FixResult)
	if shared {
		h.log.WithField("payout_id", id).Debug("fix request joined an in-flight fix")
	}

	status := http.StatusOK
	switch {
	case res.Success:
	case errors.Is(res.Err, domain.ErrEntryNotFound):
		status = http.StatusNotFound
	case errors.Is(res.Err, domain.ErrNotFixable):
		status = http.StatusConflict
	default:
		status = http.StatusUnprocessableEntity
	}
	h.writeJSON(w, status, res)
}

// --- AuditReport ---

func (h *Handlers) AuditReport(w http.ResponseWriter, r *http.Request) {
	filter, _, err := parseFilter(r, 0)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	report, err := h.svc.Report(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"entries":         report.Entries,
		"count":           len(report.Entries),
		"total_variance":  report.TotalVariance.StringFixed(2),
		"action_required": report.ActionRequired,
	})
}

// --- ListEntries ---

func (h *Handlers) ListEntries(w http.ResponseWriter, r *http.Request) {
	filter, page, err := parseFilter(r, 50)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	entries, err := h.entries.Query(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	total, err := h.entries.Count(r.Context(), filter)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if entries == nil {
		entries = []domain.ReconciliationEntry{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"entries": entries,
		"total":   total,
		"page":    page,
		"limit":   filter.Limit,
	})
}

// --- GetEntrySummary ---

func (h *Handlers) GetEntrySummary(w http.ResponseWriter, r *http.Request) {
	summary, err := h.entries.Summary(r.Context())
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	h.writeJSON(w, http.StatusOK, summary)
}

// --- ListRuns ---

func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := parseIntDefault(r.URL.Query().Get("limit"), 20)
	runs, err := h.svc.Runs(r.Context(), limit)
	if err != nil {
		h.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []domain.Run{}
	}

	h.writeJSON(w, http.StatusOK, map[string]any{
		"runs":  runs,
		"limit": limit,
	})
}
