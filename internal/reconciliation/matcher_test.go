package reconciliation

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/payrecon/reconciler/internal/domain"
	"github.com/payrecon/reconciler/internal/domain/mocks"
)

func strPtr(s string) *string { return &s }

func TestSelectDeposit(t *testing.T) {
	tests := []struct {
		name       string
		candidates []domain.LedgerEntry
		amount     string
		filter     *string
		payoutID   *string
		wantID     string
		wantKind   MatchKind
	}{
		{
			name: "id in memo beats a closer fuzzy candidate",
			candidates: []domain.LedgerEntry{
				{ID: "dep_fuzzy", TotalAmount: d("97.05")},
				{ID: "dep_id", TotalAmount: d("50.00"), Memo: "Stripe payout po_123"},
			},
			amount:   "97.00",
			payoutID: strPtr("po_123"),
			wantID:   "dep_id",
			wantKind: MatchID,
		},
		{
			name: "id match ignores the account filter",
			candidates: []domain.LedgerEntry{
				{ID: "dep_id", TotalAmount: d("97.00"), Memo: "po_123", AccountName: "Savings"},
			},
			amount:   "97.00",
			filter:   strPtr("checking"),
			payoutID: strPtr("po_123"),
			wantID:   "dep_id",
			wantKind: MatchID,
		},
		{
			name: "exact beats an earlier fuzzy candidate",
			candidates: []domain.LedgerEntry{
				{ID: "dep_fuzzy", TotalAmount: d("96.99")},
				{ID: "dep_exact", TotalAmount: d("97.00")},
			},
			amount:   "97.00",
			wantID:   "dep_exact",
			wantKind: MatchExact,
		},
		{
			name: "first exact wins",
			candidates: []domain.LedgerEntry{
				{ID: "dep_a", TotalAmount: d("97.00")},
				{ID: "dep_b", TotalAmount: d("97.00")},
			},
			amount:   "97.00",
			wantID:   "dep_a",
			wantKind: MatchExact,
		},
		{
			name: "smallest difference wins",
			candidates: []domain.LedgerEntry{
				{ID: "dep_far", TotalAmount: d("92.00")},
				{ID: "dep_near", TotalAmount: d("98.50")},
			},
			amount:   "97.00",
			wantID:   "dep_near",
			wantKind: MatchFuzzy,
		},
		{
			name: "equal difference keeps the first candidate",
			candidates: []domain.LedgerEntry{
				{ID: "dep_low", TotalAmount: d("95.00")},
				{ID: "dep_high", TotalAmount: d("105.00")},
			},
			amount:   "100.00",
			wantID:   "dep_low",
			wantKind: MatchFuzzy,
		},
		{
			name:       "difference of exactly the tolerance matches",
			candidates: []domain.LedgerEntry{{ID: "dep_edge", TotalAmount: d("110.00")}},
			amount:     "100.00",
			wantID:     "dep_edge",
			wantKind:   MatchFuzzy,
		},
		{
			name:       "difference above the tolerance does not match",
			candidates: []domain.LedgerEntry{{ID: "dep_out", TotalAmount: d("110.01")}},
			amount:     "100.00",
			wantKind:   MatchNone,
		},
		{
			name: "account filter excludes other accounts but keeps unnamed ones",
			candidates: []domain.LedgerEntry{
				{ID: "dep_savings", TotalAmount: d("97.00"), AccountName: "Savings"},
				{ID: "dep_unnamed", TotalAmount: d("97.00")},
			},
			amount:   "97.00",
			filter:   strPtr("Checking"),
			wantID:   "dep_unnamed",
			wantKind: MatchExact,
		},
		{
			name: "account filter is case-insensitive",
			candidates: []domain.LedgerEntry{
				{ID: "dep_chk", TotalAmount: d("97.00"), AccountName: "Business CHECKING 1234"},
			},
			amount:   "97.00",
			filter:   strPtr("checking"),
			wantID:   "dep_chk",
			wantKind: MatchExact,
		},
		{
			name:       "empty payout id never matches an empty memo",
			candidates: []domain.LedgerEntry{{ID: "dep_far", TotalAmount: d("500.00")}},
			amount:     "97.00",
			payoutID:   strPtr(""),
			wantKind:   MatchNone,
		},
		{
			name:     "no candidates",
			amount:   "97.00",
			wantKind: MatchNone,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, kind := SelectDeposit(tt.candidates, d(tt.amount), tt.filter, tt.payoutID)
			assert.Equal(t, tt.wantKind, kind)
			if tt.wantID == "" {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestMatcher_FindDeposit(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	log, _ := test.NewNullLogger()
	m := NewMatcher(ledger, log)

	payoutDate := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	from, to := Window(payoutDate)
	assert.Equal(t, time.Date(2024, 1, 12, 12, 0, 0, 0, time.UTC), from)
	assert.Equal(t, time.Date(2024, 1, 18, 12, 0, 0, 0, time.UTC), to)

	ledger.EXPECT().ListDeposits(gomock.Any(), from, to).Return([]domain.LedgerEntry{
		{ID: "dep_1", TotalAmount: d("97.00")},
	}, nil)

	got, err := m.FindDeposit(context.Background(), d("97.00"), from, to, nil, strPtr("po_1"))
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dep_1", got.ID)
}

func TestMatcher_FindDeposit_LedgerError(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	log, _ := test.NewNullLogger()
	m := NewMatcher(ledger, log)

	boom := errors.New("ledger unavailable")
	ledger.EXPECT().ListDeposits(gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, boom)

	got, err := m.FindDeposit(context.Background(), d("97.00"), time.Now(), time.Now(), nil, nil)
	assert.Nil(t, got)
	assert.ErrorIs(t, err, boom)
}

func TestMatcher_DepositByID(t *testing.T) {
	ctrl := gomock.NewController(t)
	ledger := mocks.NewMockLedger(ctrl)
	log, _ := test.NewNullLogger()
	m := NewMatcher(ledger, log)

	ledger.EXPECT().ListDeposits(gomock.Any(), gomock.Any(), gomock.Any()).Return([]domain.LedgerEntry{
		{ID: "dep_1"}, {ID: "dep_2"},
	}, nil).Times(2)

	got, err := m.DepositByID(context.Background(), "dep_2", time.Now(), time.Now())
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "dep_2", got.ID)

	got, err = m.DepositByID(context.Background(), "dep_9", time.Now(), time.Now())
	require.NoError(t, err)
	assert.Nil(t, got)
}
