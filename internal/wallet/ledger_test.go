package wallet

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	regmem "github.com/radieske/esports-bet-core/internal/registry/memory"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	stmem "github.com/radieske/esports-bet-core/internal/store/memory"
)

func newLedger(t *testing.T) (*Ledger, *regmem.Registry) {
	t.Helper()
	reg := regmem.New()
	reg.PutUser("alice", true)
	reg.PutUser("bob", false)
	l := NewLedger(stmem.New(), reg, zap.NewNop())
	require.NoError(t, l.OpenWallet(context.Background(), "alice"))
	require.NoError(t, l.OpenWallet(context.Background(), "bob"))
	return l, reg
}

func sumSigned(entries []domain.LedgerEntry) money.Money {
	total := money.Zero()
	for _, e := range entries {
		total = total.Add(e.Signed())
	}
	return total
}

func TestDepositWithdrawKeepsBalanceEqualToLedger(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)

	_, err := l.Deposit(ctx, "alice", money.MustParse("100.00"), "pix")
	require.NoError(t, err)
	e, err := l.Withdraw(ctx, "alice", money.MustParse("35.50"), "saque")
	require.NoError(t, err)
	assert.Equal(t, "64.50", e.BalanceAfter.String())
	assert.Equal(t, domain.EntryWithdrawal, e.Kind)

	bal, err := l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	hist, err := l.HistoryOf(ctx, "alice", domain.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, hist, 2)
	assert.Equal(t, domain.EntryWithdrawal, hist[0].Kind, "newest first")
	assert.Equal(t, bal.String(), sumSigned(hist).String())
}

func TestDebitRefusalsDoNotMutate(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, err := l.Deposit(ctx, "alice", money.MustParse("10.00"), "")
	require.NoError(t, err)

	cases := []struct {
		name string
		m    Movement
		want error
	}{
		{"insufficient", Movement{UserID: "alice", Amount: money.MustParse("10.01"), Kind: domain.EntryStake}, domain.ErrInsufficientFunds},
		{"inactive", Movement{UserID: "bob", Amount: money.MustParse("1.00"), Kind: domain.EntryStake}, domain.ErrAccountInactive},
		{"unknown", Movement{UserID: "carol", Amount: money.MustParse("1.00"), Kind: domain.EntryStake}, domain.ErrUnknownUser},
		{"zero amount", Movement{UserID: "alice", Amount: money.Zero(), Kind: domain.EntryStake}, domain.ErrValidation},
		{"negative amount", Movement{UserID: "alice", Amount: money.MustParse("-1"), Kind: domain.EntryStake}, domain.ErrValidation},
		{"credit kind", Movement{UserID: "alice", Amount: money.MustParse("1"), Kind: domain.EntryPayout}, domain.ErrValidation},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Debit(ctx, tc.m)
			assert.ErrorIs(t, err, tc.want)
		})
	}

	bal, err := l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "10.00", bal.String())
	hist, err := l.HistoryOf(ctx, "alice", domain.HistoryFilter{})
	require.NoError(t, err)
	assert.Len(t, hist, 1)
}

func TestCreditUnknownWallet(t *testing.T) {
	l, _ := newLedger(t)
	_, err := l.Credit(context.Background(), Movement{UserID: "carol", Amount: money.MustParse("5"), Kind: domain.EntryRefund})
	assert.ErrorIs(t, err, domain.ErrUnknownUser)

	err = l.OpenWallet(context.Background(), "carol")
	assert.ErrorIs(t, err, domain.ErrUnknownUser)
}

func TestConcurrentDebitsNeverOverdraw(t *testing.T) {
	ctx := context.Background()
	l, _ := newLedger(t)
	_, err := l.Deposit(ctx, "alice", money.MustParse("100.00"), "")
	require.NoError(t, err)

	var ok, refused atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := l.Debit(ctx, Movement{UserID: "alice", Amount: money.MustParse("30.00"), Kind: domain.EntryStake})
			if err == nil {
				ok.Add(1)
				return
			}
			if assert.ErrorIs(t, err, domain.ErrInsufficientFunds) {
				refused.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.EqualValues(t, 3, ok.Load())
	assert.EqualValues(t, 47, refused.Load())
	bal, err := l.BalanceOf(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, "10.00", bal.String())
}

func TestOnEntryCalledAfterCommit(t *testing.T) {
	l, _ := newLedger(t)
	var kinds []domain.EntryKind
	l.OnEntry = func(k domain.EntryKind) { kinds = append(kinds, k) }

	_, err := l.Deposit(context.Background(), "alice", money.MustParse("1"), "")
	require.NoError(t, err)
	_, err = l.Withdraw(context.Background(), "alice", money.MustParse("2"), "")
	require.Error(t, err)

	assert.Equal(t, []domain.EntryKind{domain.EntryDeposit}, kinds)
}
