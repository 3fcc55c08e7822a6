package betting

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	regmem "github.com/radieske/esports-bet-core/internal/registry/memory"
	"github.com/radieske/esports-bet-core/internal/shared/metrics"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
	stmem "github.com/radieske/esports-bet-core/internal/store/memory"
	"github.com/radieske/esports-bet-core/internal/wallet"
	"github.com/radieske/esports-bet-core/pkg/contracts/events"
)

var t0 = time.Date(2025, 3, 10, 18, 0, 0, 0, time.UTC)

type fixture struct {
	mgr     *Manager
	mem     *stmem.Store
	reg     *regmem.Registry
	ledger  *wallet.Ledger
	cache   *odds.MemoryCache
	pub     *capturePublisher
	metrics *metrics.Betting
}

// newFixture monta o Manager sobre store e registry em memória
// wrap permite envolver o store (falhas simuladas)
func newFixture(t *testing.T, wrap func(*stmem.Store) store.Store) *fixture {
	t.Helper()

	mem := stmem.New()
	var st store.Store = mem
	if wrap != nil {
		st = wrap(mem)
	}

	reg := regmem.New()
	reg.Now = func() time.Time { return t0 }
	for _, id := range []string{"m1", "m2", "m3"} {
		reg.PutMatch(domain.Match{
			ID:             id,
			Sides:          domain.Sides{A: "t1", B: "t2"},
			Status:         domain.MatchScheduled,
			BettingEnabled: true,
			StartsAt:       t0.Add(2 * time.Hour),
		})
	}
	reg.PutMatch(domain.Match{
		ID: "m-live", Sides: domain.Sides{A: "t1", B: "t2"},
		Status: domain.MatchLive, BettingEnabled: true, StartsAt: t0.Add(-time.Hour),
	})
	reg.PutMatch(domain.Match{
		ID: "m-started", Sides: domain.Sides{A: "t1", B: "t2"},
		Status: domain.MatchScheduled, BettingEnabled: true, StartsAt: t0.Add(-time.Minute),
	})
	reg.PutMatch(domain.Match{
		ID: "m-closed", Sides: domain.Sides{A: "t1", B: "t2"},
		Status: domain.MatchScheduled, BettingEnabled: false, StartsAt: t0.Add(time.Hour),
	})

	ledger := wallet.NewLedger(st, reg, zap.NewNop())
	ledger.Now = func() time.Time { return t0 }

	f := &fixture{
		mem:     mem,
		reg:     reg,
		ledger:  ledger,
		cache:   odds.NewMemoryCache(),
		pub:     &capturePublisher{},
		metrics: metrics.NewBetting(prometheus.NewRegistry()),
	}

	mgr, err := NewManager(Deps{
		Store:             st,
		Ledger:            ledger,
		Odds:              odds.NewEngine(odds.DefaultPolicy()),
		Matches:           reg,
		Users:             reg,
		SettleConcurrency: 4,
		Cache:             f.cache,
		Publisher:         f.pub,
		Metrics:           f.metrics,
		Log:               zap.NewNop(),
	})
	require.NoError(t, err)
	mgr.Now = func() time.Time { return t0 }
	f.mgr = mgr
	return f
}

// user cadastra um usuário ativo com carteira e saldo inicial
func (f *fixture) user(t *testing.T, id, balance string) {
	t.Helper()
	ctx := context.Background()
	f.reg.PutUser(id, true)
	require.NoError(t, f.ledger.OpenWallet(ctx, id))
	if b := money.MustParse(balance); b.IsPositive() {
		_, err := f.ledger.Deposit(ctx, id, b, "seed")
		require.NoError(t, err)
	}
}

func (f *fixture) place(t *testing.T, userID, matchID, sideID, stake string) *domain.Bet {
	t.Helper()
	bet, err := f.mgr.PlaceBet(context.Background(), userID, matchID, sideID, money.MustParse(stake))
	require.NoError(t, err)
	return bet
}

func (f *fixture) balance(t *testing.T, userID string) string {
	t.Helper()
	bal, err := f.mgr.GetWalletBalance(context.Background(), userID)
	require.NoError(t, err)
	return bal.String()
}

// ledgerSum soma as entradas do usuário com o sinal do kind
func (f *fixture) ledgerSum(t *testing.T, userID string) string {
	t.Helper()
	hist, err := f.mgr.GetWalletHistory(context.Background(), userID, domain.HistoryFilter{})
	require.NoError(t, err)
	total := money.Zero()
	for _, e := range hist {
		total = total.Add(e.Signed())
	}
	return total.String()
}

func (f *fixture) bet(t *testing.T, id string) *domain.Bet {
	t.Helper()
	b, err := f.mgr.GetBet(context.Background(), id)
	require.NoError(t, err)
	return b
}

type capturePublisher struct {
	mu        sync.Mutex
	placed    []events.BetPlaced
	cancelled []events.BetCancelled
	settled   []events.BetSettled
	err       error
}

func (p *capturePublisher) PublishBetPlaced(_ context.Context, e events.BetPlaced) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.placed = append(p.placed, e)
	return nil
}

func (p *capturePublisher) PublishBetCancelled(_ context.Context, e events.BetCancelled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.cancelled = append(p.cancelled, e)
	return nil
}

func (p *capturePublisher) PublishBetSettled(_ context.Context, e events.BetSettled) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.settled = append(p.settled, e)
	return nil
}

func (p *capturePublisher) counts() (placed, cancelled, settled int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.placed), len(p.cancelled), len(p.settled)
}

// commitFailStore faz o próximo commit reportar falha depois de efetivado
// dropBet simula a perda da aposta: o débito é gravado sem a linha de bets
type commitFailStore struct {
	*stmem.Store
	mu      sync.Mutex
	armed   bool
	dropBet bool
}

func (s *commitFailStore) arm(dropBet bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.armed, s.dropBet = true, dropBet
}

func (s *commitFailStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	armed, drop := s.armed, s.dropBet
	s.armed = false
	s.mu.Unlock()

	if !armed {
		return s.Store.WithinTx(ctx, fn)
	}
	err := s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		if drop {
			tx = dropBetTx{tx}
		}
		return fn(ctx, tx)
	})
	if err != nil {
		return err
	}
	return errors.Join(store.ErrCommit, errors.New("connection reset by peer"))
}

type dropBetTx struct{ store.Tx }

func (dropBetTx) InsertBet(context.Context, *domain.Bet) error { return nil }

// creditFailStore recusa créditos para um usuário, simulando carteira indisponível
type creditFailStore struct {
	*stmem.Store
	mu      sync.Mutex
	failFor string
}

func (s *creditFailStore) set(userID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failFor = userID
}

func (s *creditFailStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) error {
	s.mu.Lock()
	failFor := s.failFor
	s.mu.Unlock()
	return s.Store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		return fn(ctx, creditFailTx{Tx: tx, failFor: failFor})
	})
}

type creditFailTx struct {
	store.Tx
	failFor string
}

func (t creditFailTx) CreditWallet(ctx context.Context, userID string, amount money.Money) (money.Money, error) {
	if userID == t.failFor {
		return money.Zero(), errors.New("wallet storage unavailable")
	}
	return t.Tx.CreditWallet(ctx, userID, amount)
}
