// Package simulation generates a deterministic set of payouts, detail
// entries and ledger deposits covering every reconciliation outcome. It
// backs the simulated payout sources and the demo ledger.
package simulation

import (
	"fmt"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/money"
)

type Scenario string

const (
	PerfectMatch     Scenario = "PERFECT_MATCH"
	FeeMismatch      Scenario = "FEE_MISMATCH"
	MissingDeposit   Scenario = "MISSING_DEPOSIT"
	RefundDrift      Scenario = "REFUND_DRIFT"
	InternationalFee Scenario = "INTERNATIONAL_FEE"
	MissingTax       Scenario = "MISSING_TAX"
)

// DefaultMix weights perfect matches to be the common case.
var DefaultMix = []Scenario{
	PerfectMatch, PerfectMatch, PerfectMatch,
	FeeMismatch, MissingDeposit, RefundDrift, InternationalFee, MissingTax,
}

// Expected is the reconciliation outcome a scenario is built to produce.
type Expected struct {
	Status       domain.ReconciliationStatus
	VarianceType domain.VarianceType
}

var expectations = map[Scenario]Expected{
	PerfectMatch:     {Status: domain.StatusMatched},
	FeeMismatch:      {Status: domain.StatusVarianceDetected, VarianceType: domain.VarianceFeeMismatch},
	MissingDeposit:   {Status: domain.StatusMissingDeposit},
	RefundDrift:      {Status: domain.StatusVarianceDetected, VarianceType: domain.VarianceRefundDrift},
	InternationalFee: {Status: domain.StatusVarianceDetected, VarianceType: domain.VarianceInternationalFee},
	MissingTax:       {Status: domain.StatusVarianceDetected, VarianceType: domain.VarianceMissingTax},
}

// Config controls generation. Zero values select the defaults.
type Config struct {
	Seed             int64
	PayoutsPerSource int
	// Start is the earliest payout creation time; payouts spread over Days.
	Start   time.Time
	Days    int
	Sources []domain.PayoutSourceName
	Mix     []Scenario
}

func (c Config) withDefaults() Config {
	if c.Seed == 0 {
		c.Seed = 42
	}
	if c.PayoutsPerSource <= 0 {
		c.PayoutsPerSource = 12
	}
	if c.Start.IsZero() {
		c.Start = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	}
	if c.Days <= 0 {
		c.Days = 30
	}
	if len(c.Sources) == 0 {
		c.Sources = domain.AllSources
	}
	if len(c.Mix) == 0 {
		c.Mix = DefaultMix
	}
	return c
}

// Universe is the generated world shared by the simulated sources and the
// ledger. It is read-only once generated.
type Universe struct {
	cfg       Config
	payouts   map[domain.PayoutSourceName][]domain.Payout
	details   map[string][]domain.DetailEntry
	scenarios map[string]Scenario
	owners    map[string]domain.PayoutSourceName
	deposits  []domain.LedgerEntry
}

var (
	feeRate   = decimal.RequireFromString("0.029")
	fixedFee  = decimal.RequireFromString("0.30")
	taxRate   = decimal.RequireFromString("0.08875")
	feeDrift  = decimal.RequireFromString("0.50")
	bumpStep  = decimal.RequireFromString("25.00")
	minMargin = decimal.RequireFromString("1.00")
)

var cardBrands = []string{"VISA", "MASTERCARD", "AMEX", "DISCOVER", "JCB"}

// Generate builds a universe. The same Config always yields the same data.
func Generate(cfg Config) *Universe {
	cfg = cfg.withDefaults()
	rng := rand.New(rand.NewSource(cfg.Seed))

	u := &Universe{
		cfg:       cfg,
		payouts:   make(map[domain.PayoutSourceName][]domain.Payout),
		details:   make(map[string][]domain.DetailEntry),
		scenarios: make(map[string]Scenario),
		owners:    make(map[string]domain.PayoutSourceName),
	}

	var missing []string
	for _, src := range cfg.Sources {
		for i := 0; i < cfg.PayoutsPerSource; i++ {
			sc := cfg.Mix[rng.Intn(len(cfg.Mix))]
			p, entries, dep := u.generatePayout(rng, src, sc)
			u.payouts[src] = append(u.payouts[src], p)
			u.details[p.ID] = entries
			u.scenarios[p.ID] = sc
			u.owners[p.ID] = src
			if dep != nil {
				u.deposits = append(u.deposits, *dep)
			}
			if sc == MissingDeposit {
				missing = append(missing, p.ID)
			}
		}
	}

	for _, id := range missing {
		u.separateMissing(id)
	}

	for src := range u.payouts {
		ps := u.payouts[src]
		sort.SliceStable(ps, func(i, j int) bool { return ps[i].CreatedAt.Before(ps[j].CreatedAt) })
	}
	sort.SliceStable(u.deposits, func(i, j int) bool { return u.deposits[i].TxnDate.Before(u.deposits[j].TxnDate) })
	return u
}

func randomAmount(rng *rand.Rand, min, max int64) decimal.Decimal {
	return money.FromMinor(min*100 + rng.Int63n((max-min)*100))
}

func (u *Universe) generatePayout(rng *rand.Rand, src domain.PayoutSourceName, sc Scenario) (domain.Payout, []domain.DetailEntry, *domain.LedgerEntry) {
	created := u.cfg.Start.
		AddDate(0, 0, rng.Intn(u.cfg.Days)).
		Add(time.Duration(rng.Intn(24))*time.Hour + time.Duration(rng.Intn(60))*time.Minute)
	arrival := created.AddDate(0, 0, 2)

	sales := randomAmount(rng, 100, 2000)
	if sc == RefundDrift {
		// The processing fee must stay above the refund netted against it.
		sales = randomAmount(rng, 2500, 6000)
	}
	tax := money.Round(sales.Mul(taxRate))
	charge := sales.Add(tax)
	fee := money.Round(charge.Mul(feeRate)).Add(fixedFee)
	brand := cardBrands[rng.Intn(len(cardBrands))]

	id := fmt.Sprintf("po_%s_%08x", strings.ToLower(string(src)), rng.Uint32())
	entries := []domain.DetailEntry{{
		Type:        domain.EntryCharge,
		GrossAmount: charge,
		FeeAmount:   fee.Neg(),
		TaxAmount:   tax,
		Metadata:    map[string]string{domain.MetaCardBrand: brand, "source_id": "ch_" + id[3:]},
	}}

	deducted := fee
	processingFee := fee
	ledgerFee := fee

	switch sc {
	case FeeMismatch:
		// The bookkeeper recorded a higher fee than the processor charged.
		ledgerFee = fee.Add(feeDrift)
	case RefundDrift:
		refund := randomAmount(rng, 10, 50)
		intl := charge.Mul(money.InternationalRate)
		for refund.Sub(tax).Abs().LessThan(minMargin) || refund.Sub(intl).Abs().LessThan(minMargin) {
			refund = refund.Add(decimal.NewFromInt(3))
		}
		reversal := money.Round(refund.Mul(feeRate))
		entries = append(entries, domain.DetailEntry{
			Type:        domain.EntryRefund,
			GrossAmount: refund.Neg(),
			FeeAmount:   reversal,
		})
		deducted = deducted.Sub(reversal).Add(refund)
		processingFee = fee.Sub(reversal)
		// The refund was netted against the fee instead of against sales.
		ledgerFee = fee.Sub(reversal).Sub(refund)
	case InternationalFee:
		intl := money.Round(charge.Mul(money.InternationalRate))
		fe := domain.DetailEntry{Type: domain.EntryFee, FeeAmount: intl.Neg()}
		if rng.Intn(2) == 0 {
			fe.Metadata = map[string]string{domain.MetaFeeDescription: "International Card Fee"}
		}
		entries = append(entries, fe)
		deducted = deducted.Add(intl)
		processingFee = deducted
	case MissingTax:
		fe := domain.DetailEntry{Type: domain.EntryFee, FeeAmount: tax.Neg()}
		if rng.Intn(2) == 0 {
			fe.Metadata = map[string]string{domain.MetaFeeDescription: "Sales Tax Withholding"}
		}
		entries = append(entries, fe)
		deducted = deducted.Add(tax)
	}

	net := charge.Sub(deducted)
	p := domain.Payout{
		ID:            id,
		Source:        src,
		Status:        domain.PayoutStatusPaid,
		NetAmount:     net,
		ProcessingFee: processingFee,
		Currency:      "USD",
		CreatedAt:     created,
		ArrivalDate:   &arrival,
	}

	if sc == MissingDeposit {
		return p, entries, nil
	}
	memo := fmt.Sprintf("%s transfer %s", displayName(src), id)
	if sc == PerfectMatch && rng.Intn(2) == 0 {
		// Bank feed memo without the payout id; found by amount.
		memo = fmt.Sprintf("%s TRANSFER", src)
	}
	dep := &domain.LedgerEntry{
		ID:          fmt.Sprintf("dep_%08x", rng.Uint32()),
		TxnDate:     arrival,
		TotalAmount: net,
		FeeAmount:   ledgerFee.Neg(),
		Memo:        memo,
		AccountName: "Business Checking",
		Currency:    "USD",
	}
	return p, entries, dep
}

func displayName(src domain.PayoutSourceName) string {
	s := strings.ToLower(string(src))
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// separateMissing shifts a missing-deposit payout's amounts until no
// deposit in its window is within the fuzzy tolerance, so the payout
// cannot be matched to another payout's deposit.
func (u *Universe) separateMissing(id string) {
	src, idx := u.find(id)
	p := &u.payouts[src][idx]
	from, to := p.CreatedAt.AddDate(0, 0, -3), p.CreatedAt.AddDate(0, 0, 3)

	for u.collides(p.NetAmount, from, to) {
		p.NetAmount = p.NetAmount.Add(bumpStep)
		charge := &u.details[id][0]
		charge.GrossAmount = charge.GrossAmount.Add(bumpStep)
	}
}

func (u *Universe) collides(amount decimal.Decimal, from, to time.Time) bool {
	for _, d := range u.deposits {
		if d.TxnDate.Before(from) || d.TxnDate.After(to) {
			continue
		}
		if d.TotalAmount.Sub(amount).Abs().LessThanOrEqual(money.FuzzyTolerance) {
			return true
		}
	}
	return false
}

func (u *Universe) find(id string) (domain.PayoutSourceName, int) {
	src := u.owners[id]
	for i := range u.payouts[src] {
		if u.payouts[src][i].ID == id {
			return src, i
		}
	}
	return src, -1
}

// Deposits returns every ledger deposit, ordered by date.
func (u *Universe) Deposits() []domain.LedgerEntry {
	out := make([]domain.LedgerEntry, len(u.deposits))
	copy(out, u.deposits)
	return out
}

// Payouts returns one processor's payouts, ordered by creation time.
func (u *Universe) Payouts(src domain.PayoutSourceName) []domain.Payout {
	out := make([]domain.Payout, len(u.payouts[src]))
	copy(out, u.payouts[src])
	return out
}

// Details returns a copy of a payout's detail entries.
func (u *Universe) Details(payoutID string) ([]domain.DetailEntry, bool) {
	entries, ok := u.details[payoutID]
	if !ok {
		return nil, false
	}
	out := make([]domain.DetailEntry, len(entries))
	copy(out, entries)
	return out, true
}

// Scenario returns the scenario a payout was generated for.
func (u *Universe) Scenario(payoutID string) (Scenario, bool) {
	sc, ok := u.scenarios[payoutID]
	return sc, ok
}

// Expect returns the outcome the reconciler should reach for a payout.
func (u *Universe) Expect(payoutID string) (Expected, bool) {
	sc, ok := u.scenarios[payoutID]
	if !ok {
		return Expected{}, false
	}
	return expectations[sc], true
}

// Period returns the span covering every generated payout.
func (u *Universe) Period() (start, end time.Time) {
	return u.cfg.Start, u.cfg.Start.AddDate(0, 0, u.cfg.Days)
}

// Sources returns a simulated PayoutSource per configured processor.
func (u *Universe) Sources() []domain.PayoutSource {
	out := make([]domain.PayoutSource, 0, len(u.cfg.Sources))
	for _, src := range u.cfg.Sources {
		out = append(out, NewSource(u, src))
	}
	return out
}
