package simulation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/payrecon/reconciler/internal/domain"
)

// Source serves one processor's payouts from a Universe.
type Source struct {
	u       *Universe
	name    domain.PayoutSourceName
	latency time.Duration
}

func NewSource(u *Universe, name domain.PayoutSourceName) *Source {
	return &Source{u: u, name: name}
}

// WithLatency delays every call, honoring the context.
func (s *Source) WithLatency(d time.Duration) *Source {
	s.latency = d
	return s
}

func (s *Source) Source() domain.PayoutSourceName { return s.name }

// ListPayouts returns payouts created in [begin, end). An empty status
// matches any status.
func (s *Source) ListPayouts(ctx context.Context, status string, begin, end time.Time) ([]domain.Payout, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	var out []domain.Payout
	for _, p := range s.u.payouts[s.name] {
		if status != "" && !strings.EqualFold(p.Status, status) {
			continue
		}
		if p.CreatedAt.Before(begin) || !p.CreatedAt.Before(end) {
			continue
		}
		out = append(out, p)
	}
	return out, nil
}

func (s *Source) GetDetailEntries(ctx context.Context, payoutID string) ([]domain.DetailEntry, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	if s.u.owners[payoutID] != s.name {
		return nil, fmt.Errorf("%s: unknown payout %q", s.name, payoutID)
	}
	entries, ok := s.u.Details(payoutID)
	if !ok {
		return nil, fmt.Errorf("%s: no detail entries for payout %q", s.name, payoutID)
	}
	return entries, nil
}

func (s *Source) wait(ctx context.Context) error {
	if s.latency <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(s.latency)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

var _ domain.PayoutSource = (*Source)(nil)
