package source

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/payrecon/reconciler/internal/domain"
)

// ErrUnknownPayout is returned for a payout id the export does not contain.
var ErrUnknownPayout = errors.New("unknown payout")

// Parser turns the raw bytes of an export into an Export.
type Parser func(data []byte) (*Export, error)

// FileSource serves payouts from an export file. The file is re-parsed
// only when its content hash changes.
type FileSource struct {
	name  domain.PayoutSourceName
	path  string
	parse Parser
	log   logrus.FieldLogger

	mu     sync.Mutex
	hash   string
	export *Export
}

func newFileSource(name domain.PayoutSourceName, path string, parse Parser, log logrus.FieldLogger) *FileSource {
	return &FileSource{
		name:  name,
		path:  path,
		parse: parse,
		log:   log.WithFields(logrus.Fields{"component": "source", "source": name, "path": path}),
	}
}

func NewStripeCSV(path string, log logrus.FieldLogger) *FileSource {
	return newFileSource(domain.SourceStripe, path, ParseStripeCSV, log)
}

func NewSquareJSON(path string, log logrus.FieldLogger) *FileSource {
	return newFileSource(domain.SourceSquare, path, ParseSquareJSON, log)
}

func NewShopifyCSV(path string, log logrus.FieldLogger) *FileSource {
	return newFileSource(domain.SourceShopify, path, ParseShopifyCSV, log)
}

func NewPayPalJSON(path string, log logrus.FieldLogger) *FileSource {
	return newFileSource(domain.SourcePayPal, path, ParsePayPalJSON, log)
}

// New returns the file source for a processor.
func New(name domain.PayoutSourceName, path string, log logrus.FieldLogger) (*FileSource, error) {
	f, err := FormatFor(name)
	if err != nil {
		return nil, err
	}
	return newFileSource(name, path, f.Parse, log), nil
}

func (s *FileSource) Source() domain.PayoutSourceName { return s.name }

func (s *FileSource) load() (*Export, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil, fmt.Errorf("read export: %w", err)
	}
	hash := fmt.Sprintf("%x", sha256.Sum256(data))

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.export != nil && hash == s.hash {
		return s.export, nil
	}

	exp, err := s.parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s export: %w", s.name, err)
	}
	s.hash, s.export = hash, exp

	s.log.WithFields(logrus.Fields{
		"payouts":    len(exp.Payouts),
		"invalid":    len(exp.Invalid),
		"unassigned": exp.Unassigned,
	}).Info("loaded export")
	return exp, nil
}

// ListPayouts returns payouts created in [begin, end). An empty status
// matches any status.
func (s *FileSource) ListPayouts(ctx context.Context, status string, begin, end time.Time) ([]domain.Payout, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exp, err := s.load()
	if err != nil {
		return nil, err
	}
	var out []domain.Payout
	for _, p := range exp.Payouts {
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

func (s *FileSource) GetDetailEntries(ctx context.Context, payoutID string) ([]domain.DetailEntry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	exp, err := s.load()
	if err != nil {
		return nil, err
	}
	if err := exp.Invalid[payoutID]; err != nil {
		return nil, err
	}
	entries, ok := exp.Details[payoutID]
	if !ok {
		known := false
		for _, p := range exp.Payouts {
			if p.ID == payoutID {
				known = true
				break
			}
		}
		if !known {
			return nil, fmt.Errorf("%s payout %q: %w", s.name, payoutID, ErrUnknownPayout)
		}
	}
	out := make([]domain.DetailEntry, len(entries))
	copy(out, entries)
	return out, nil
}

var _ domain.PayoutSource = (*FileSource)(nil)
