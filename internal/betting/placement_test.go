package betting

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
	stmem "github.com/radieske/esports-bet-core/internal/store/memory"
)

func TestPlaceBetDebitsStakeAndLocksOdds(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.user(t, "alice", "50.00")

	bet := f.place(t, "alice", "m1", "t1", "20.00")

	assert.Equal(t, domain.BetPending, bet.Status)
	assert.Equal(t, "2.00", bet.OddsLocked.StringFixed(2))
	assert.Equal(t, "40.00", bet.PotentialPayout.String())
	assert.Nil(t, bet.SettledAt)
	assert.Equal(t, "30.00", f.balance(t, "alice"))

	hist, err := f.mgr.GetWalletHistory(ctx, "alice", domain.HistoryFilter{Kinds: []domain.EntryKind{domain.EntryStake}})
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "20.00", hist[0].Amount.String())
	assert.Equal(t, bet.ID, hist[0].RelatedBetID)

	stored := f.bet(t, bet.ID)
	assert.Equal(t, "40.00", stored.PotentialPayout.String())

	placed, _, _ := f.pub.counts()
	assert.Equal(t, 1, placed)
	assert.Equal(t, "20.00", f.pub.placed[0].Stake)
	assert.Equal(t, hist[0].ID, f.pub.placed[0].StakeEntryID)

	snap, ok, err := f.cache.Get(ctx, "m1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "20.00", snap.TotalPool.String())
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.BetsPlaced))
}

func TestSecondBetOnSameMatchIsDuplicate(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "alice", "50.00")
	f.place(t, "alice", "m1", "t1", "20.00")

	_, err := f.mgr.PlaceBet(context.Background(), "alice", "m1", "t2", money.MustParse("5.00"))
	assert.ErrorIs(t, err, domain.ErrDuplicateBet)
	assert.Equal(t, "30.00", f.balance(t, "alice"))
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Refused.WithLabelValues("place bet", "DUPLICATE_BET")))

	// outra partida continua liberada
	f.place(t, "alice", "m2", "t2", "5.00")
	assert.Equal(t, "25.00", f.balance(t, "alice"))
}

func TestStakeBoundaries(t *testing.T) {
	cases := []struct {
		stake string
		want  error
	}{
		{"1.00", nil},
		{"10000.00", nil},
		{"0.99", domain.ErrStakeOutOfRange},
		{"10000.01", domain.ErrStakeOutOfRange},
		{"0.00", domain.ErrValidation},
		{"-5.00", domain.ErrValidation},
	}
	f := newFixture(t, nil)
	for i, tc := range cases {
		t.Run(tc.stake, func(t *testing.T) {
			user := fmt.Sprintf("u%d", i)
			f.user(t, user, "20000.00")

			bet, err := f.mgr.PlaceBet(context.Background(), user, "m1", "t1", money.MustParse(tc.stake))
			if tc.want == nil {
				require.NoError(t, err)
				assert.Equal(t, tc.stake, bet.Stake.String())
				return
			}
			assert.ErrorIs(t, err, tc.want)
			assert.Nil(t, bet)
			assert.Equal(t, "20000.00", f.balance(t, user))
		})
	}
}

func TestValidatePlacementOrder(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "alice", "100.00")
	f.user(t, "poor", "5.00")
	f.reg.PutUser("ivan", false)
	f.place(t, "alice", "m2", "t1", "10.00")

	cases := []struct {
		name              string
		user, match, side string
		stake             string
		want              error
	}{
		{"empty match id", "alice", "", "t1", "10.00", domain.ErrValidation},
		{"unknown user before stake range", "ghost", "m1", "t1", "0.50", domain.ErrUnknownUser},
		{"inactive user", "ivan", "m1", "t1", "10.00", domain.ErrAccountInactive},
		{"stake range before match", "alice", "nope", "t1", "20000.00", domain.ErrStakeOutOfRange},
		{"unknown match", "alice", "nope", "t1", "10.00", domain.ErrMatchNotBettable},
		{"live match", "alice", "m-live", "t1", "10.00", domain.ErrMatchNotBettable},
		{"start time passed", "alice", "m-started", "t1", "10.00", domain.ErrMatchNotBettable},
		{"betting disabled", "alice", "m-closed", "t1", "10.00", domain.ErrMatchNotBettable},
		{"side not in match", "alice", "m1", "t9", "10.00", domain.ErrInvalidSideSelection},
		{"duplicate before funds", "alice", "m2", "t2", "500.00", domain.ErrDuplicateBet},
		{"insufficient funds", "poor", "m1", "t1", "10.00", domain.ErrInsufficientFunds},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := f.mgr.ValidatePlacement(context.Background(), tc.user, tc.match, tc.side, money.MustParse(tc.stake))
			assert.ErrorIs(t, err, tc.want)
		})
	}

	assert.NoError(t, f.mgr.ValidatePlacement(context.Background(), "alice", "m1", "t2", money.MustParse("90.00")))
}

func TestConcurrentPlacementsSameUserAndMatch(t *testing.T) {
	f := newFixture(t, nil)
	f.user(t, "alice", "1000.00")

	const n = 20
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok, dupes int
		other     []error
	)
	for i := 0; i < n; i++ {
		side := "t1"
		if i%2 == 1 {
			side = "t2"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.mgr.PlaceBet(context.Background(), "alice", "m1", side, money.MustParse("10.00"))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, domain.ErrDuplicateBet):
				dupes++
			default:
				other = append(other, err)
			}
		}()
	}
	wg.Wait()

	assert.Empty(t, other)
	assert.Equal(t, 1, ok)
	assert.Equal(t, n-1, dupes)
	assert.Equal(t, "990.00", f.balance(t, "alice"))
	assert.Equal(t, f.balance(t, "alice"), f.ledgerSum(t, "alice"))

	bets, err := f.mgr.ListBetsForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Len(t, bets, 1)
}

func TestLockedOddsFollowPoolsAtPlacement(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	for _, u := range []string{"a", "b", "c", "d"} {
		f.user(t, u, "1000.00")
	}
	f.place(t, "a", "m1", "t1", "100.00")
	f.place(t, "b", "m1", "t2", "200.00")

	payout, o, err := f.mgr.QuotePayout(ctx, "m1", "t1", money.MustParse("10.00"))
	require.NoError(t, err)
	assert.Equal(t, "2.85", o.StringFixed(2))
	assert.Equal(t, "28.50", payout.String())

	_, o, err = f.mgr.QuotePayout(ctx, "m1", "t2", money.MustParse("10.00"))
	require.NoError(t, err)
	assert.Equal(t, "1.43", o.StringFixed(2))

	bet := f.place(t, "c", "m1", "t1", "10.00")
	assert.Equal(t, "2.85", bet.OddsLocked.StringFixed(2))
	assert.Equal(t, "28.50", bet.PotentialPayout.String())

	// odds travadas não mudam com o pool
	f.place(t, "d", "m1", "t1", "500.00")
	stored := f.bet(t, bet.ID)
	assert.Equal(t, "2.85", stored.OddsLocked.StringFixed(2))
	assert.Equal(t, "28.50", stored.PotentialPayout.String())

	_, _, err = f.mgr.QuotePayout(ctx, "m1", "t9", money.MustParse("10.00"))
	assert.ErrorIs(t, err, domain.ErrInvalidSideSelection)
}

func TestCancelBetRefundsOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.user(t, "bob", "100.00")
	bet := f.place(t, "bob", "m1", "t2", "30.00")
	assert.Equal(t, "70.00", f.balance(t, "bob"))

	cancelled, err := f.mgr.CancelBet(ctx, bet.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.BetCancelled, cancelled.Status)
	require.NotNil(t, cancelled.SettledAt)
	assert.Equal(t, "100.00", f.balance(t, "bob"))

	refunds, err := f.mgr.GetWalletHistory(ctx, "bob", domain.HistoryFilter{Kinds: []domain.EntryKind{domain.EntryRefund}})
	require.NoError(t, err)
	require.Len(t, refunds, 1)
	assert.Equal(t, "30.00", refunds[0].Amount.String())

	_, err = f.mgr.CancelBet(ctx, bet.ID)
	assert.ErrorIs(t, err, domain.ErrCannotCancel)
	assert.Equal(t, "100.00", f.balance(t, "bob"))
	assert.Equal(t, f.balance(t, "bob"), f.ledgerSum(t, "bob"))

	_, cancelledEvents, _ := f.pub.counts()
	assert.Equal(t, 1, cancelledEvents)
	assert.Equal(t, "user", f.pub.cancelled[0].Reason)

	// a aposta cancelada continua ocupando (bob, m1)
	_, err = f.mgr.PlaceBet(ctx, "bob", "m1", "t1", money.MustParse("10.00"))
	assert.ErrorIs(t, err, domain.ErrDuplicateBet)
	bobBets, err := f.mgr.ListBetsForUser(ctx, "bob")
	require.NoError(t, err)
	assert.Len(t, bobBets, 1)
	assert.Equal(t, "100.00", f.balance(t, "bob"))
}

func TestCancelBetRefusals(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t, nil)
	f.user(t, "bob", "100.00")
	bet := f.place(t, "bob", "m1", "t2", "30.00")

	require.True(t, f.reg.SetStatus("m1", domain.MatchLive))
	_, err := f.mgr.CancelBet(ctx, bet.ID)
	assert.ErrorIs(t, err, domain.ErrCannotCancel)
	assert.Equal(t, domain.BetPending, f.bet(t, bet.ID).Status)
	assert.Equal(t, "70.00", f.balance(t, "bob"))

	_, err = f.mgr.CancelBet(ctx, "9b2c6f1e-4a1d-4e55-8a55-0c1f7b0d9e21")
	assert.ErrorIs(t, err, domain.ErrBetNotFound)

	_, err = f.mgr.CancelBet(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestPlacementStakeTakenWithoutBetIsCompensated(t *testing.T) {
	var faulty *commitFailStore
	f := newFixture(t, func(m *stmem.Store) store.Store {
		faulty = &commitFailStore{Store: m}
		return faulty
	})
	f.user(t, "alice", "50.00")

	faulty.arm(true)
	bet, err := f.mgr.PlaceBet(context.Background(), "alice", "m1", "t1", money.MustParse("20.00"))

	assert.Nil(t, bet)
	assert.ErrorIs(t, err, domain.ErrInconsistentState)
	assert.Equal(t, "50.00", f.balance(t, "alice"))
	assert.Equal(t, f.balance(t, "alice"), f.ledgerSum(t, "alice"))

	hist, err := f.mgr.GetWalletHistory(context.Background(), "alice", domain.HistoryFilter{})
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, domain.EntryRefund, hist[0].Kind)
	assert.Equal(t, domain.EntryStake, hist[1].Kind)
	assert.Equal(t, hist[1].RelatedBetID, hist[0].RelatedBetID)

	bets, err := f.mgr.ListBetsForUser(context.Background(), "alice")
	require.NoError(t, err)
	assert.Empty(t, bets)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.InconsistentState))
}

func TestPlacementCommitReportedFailedButPersisted(t *testing.T) {
	var faulty *commitFailStore
	f := newFixture(t, func(m *stmem.Store) store.Store {
		faulty = &commitFailStore{Store: m}
		return faulty
	})
	f.user(t, "alice", "50.00")

	faulty.arm(false)
	bet, err := f.mgr.PlaceBet(context.Background(), "alice", "m1", "t1", money.MustParse("20.00"))
	require.NoError(t, err)
	assert.Equal(t, domain.BetPending, bet.Status)
	assert.Equal(t, "30.00", f.balance(t, "alice"))
	assert.Equal(t, 0.0, testutil.ToFloat64(f.metrics.InconsistentState))
}

func TestPublishFailureDoesNotUndoPlacement(t *testing.T) {
	f := newFixture(t, nil)
	f.pub.err = errors.New("broker down")
	f.user(t, "alice", "50.00")

	bet := f.place(t, "alice", "m1", "t1", "20.00")
	assert.Equal(t, domain.BetPending, f.bet(t, bet.ID).Status)
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.PublishFailures.WithLabelValues("bet_placed")))
}

func TestNewManagerRequiresCollaborators(t *testing.T) {
	_, err := NewManager(Deps{Log: zap.NewNop()})
	assert.Error(t, err)

	_, err = NewManager(Deps{
		Store: stmem.New(),
		Odds:  odds.NewEngine(odds.DefaultPolicy()),
		Log:   zap.NewNop(),
	})
	assert.ErrorContains(t, err, "ledger")
}
