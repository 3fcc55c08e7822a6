// Package memory implementa store.Store em memória, para testes e execução local.
// Cada unidade transacional segura um único mutex e registra um journal de desfazer
// que é aplicado em ordem reversa no rollback.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
)

type Store struct {
	mu sync.RWMutex

	wallets  map[string]money.Money
	entries  []domain.LedgerEntry
	bets     map[string]*domain.Bet
	betOrder []string
	placed   map[string]string // user|match -> betID; nunca liberado, nem após cancelamento
}

func New() *Store {
	return &Store{
		wallets: make(map[string]money.Money),
		bets:    make(map[string]*domain.Bet),
		placed:  make(map[string]string),
	}
}

func placedKey(userID, matchID string) string { return userID + "|" + matchID }

// WithinTx serializa todas as unidades; erro ou panic desfazem o journal
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{s: s}
	defer func() {
		if p := recover(); p != nil {
			tx.rollback()
			panic(p)
		}
		if err != nil {
			tx.rollback()
		}
	}()

	return fn(ctx, tx)
}

func (s *Store) OpenWallet(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.wallets[userID]; !ok {
		s.wallets[userID] = money.Zero()
	}
	return nil
}

func (s *Store) Balance(_ context.Context, userID string) (money.Money, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bal, ok := s.wallets[userID]
	if !ok {
		return money.Zero(), domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}
	return bal, nil
}

// History devolve as entradas do usuário da mais nova para a mais antiga
func (s *Store) History(_ context.Context, userID string, f domain.HistoryFilter) ([]domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.wallets[userID]; !ok {
		return nil, domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}

	out := make([]domain.LedgerEntry, 0)
	for i := len(s.entries) - 1; i >= 0; i-- {
		e := s.entries[i]
		if e.UserID != userID || !f.Matches(&e) {
			continue
		}
		out = append(out, e)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) FindEntry(_ context.Context, betID string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for i := len(s.entries) - 1; i >= 0; i-- {
		if s.entries[i].RelatedBetID == betID && s.entries[i].Kind == kind {
			e := s.entries[i]
			return &e, nil
		}
	}
	return nil, nil
}

func (s *Store) GetBet(_ context.Context, betID string) (*domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.bets[betID]
	if !ok {
		return nil, domain.Newf(domain.CodeBetNotFound, "bet %s not found", betID)
	}
	cp := *b
	return &cp, nil
}

// ListBets devolve as apostas mais recentes primeiro
func (s *Store) ListBets(_ context.Context, f domain.BetFilter) ([]domain.Bet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Bet, 0)
	for i := len(s.betOrder) - 1; i >= 0; i-- {
		b := s.bets[s.betOrder[i]]
		if !f.Matches(b) {
			continue
		}
		out = append(out, *b)
		if f.Limit > 0 && len(out) == f.Limit {
			break
		}
	}
	return out, nil
}

func (s *Store) HasBet(_ context.Context, userID, matchID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.placed[placedKey(userID, matchID)]
	return ok, nil
}

func (s *Store) PoolTotals(_ context.Context, matchID string) (domain.Pool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pool := domain.Pool{Total: money.Zero(), Sides: make(map[string]money.Money)}
	for _, b := range s.bets {
		if b.MatchID != matchID || b.Status == domain.BetCancelled {
			continue
		}
		pool.Total = pool.Total.Add(b.Stake)
		pool.Sides[b.SelectedSideID] = pool.Sides[b.SelectedSideID].Add(b.Stake)
	}
	return pool, nil
}

func (s *Store) MatchesWithPendingBets(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]struct{})
	for _, b := range s.bets {
		if b.Status == domain.BetPending {
			seen[b.MatchID] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for id := range seen {
		out = append(out, id)
	}
	sort.Strings(out)
	return out, nil
}

func (s *Store) UserStats(_ context.Context, userID string) (domain.UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.UserStats{TotalStaked: money.Zero(), TotalWinnings: money.Zero()}
	for _, b := range s.bets {
		if b.UserID != userID {
			continue
		}
		st.TotalBets++
		st.TotalStaked = st.TotalStaked.Add(b.Stake)
		switch b.Status {
		case domain.BetWon:
			st.Won++
			st.TotalWinnings = st.TotalWinnings.Add(b.PotentialPayout.Sub(b.Stake))
		case domain.BetLost:
			st.Lost++
		case domain.BetPending:
			st.Pending++
		case domain.BetCancelled:
			st.Cancelled++
		}
	}
	st.WinRate = store.WinRate(st.Won, st.TotalBets)
	return st, nil
}

func (s *Store) Statistics(_ context.Context) (domain.Statistics, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := domain.Statistics{TotalStaked: money.Zero()}
	for _, b := range s.bets {
		st.TotalBets++
		st.TotalStaked = st.TotalStaked.Add(b.Stake)
		switch b.Status {
		case domain.BetPending:
			st.Pending++
		case domain.BetWon:
			st.Won++
		case domain.BetLost:
			st.Lost++
		case domain.BetCancelled:
			st.Cancelled++
		}
	}
	return st, nil
}

// memTx opera com o mutex do Store já adquirido
type memTx struct {
	s    *Store
	undo []func()
}

func (t *memTx) rollback() {
	for i := len(t.undo) - 1; i >= 0; i-- {
		t.undo[i]()
	}
	t.undo = nil
}

func (t *memTx) setBalance(userID string, prev, next money.Money) {
	t.s.wallets[userID] = next
	t.undo = append(t.undo, func() { t.s.wallets[userID] = prev })
}

func (t *memTx) CreditWallet(_ context.Context, userID string, amount money.Money) (money.Money, error) {
	bal, ok := t.s.wallets[userID]
	if !ok {
		return money.Zero(), domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}
	next := bal.Add(amount)
	t.setBalance(userID, bal, next)
	return next, nil
}

func (t *memTx) DebitWallet(_ context.Context, userID string, amount money.Money) (money.Money, error) {
	bal, ok := t.s.wallets[userID]
	if !ok {
		return money.Zero(), domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}
	if bal.LessThan(amount) {
		return bal, domain.Newf(domain.CodeInsufficientFunds, "balance %s below %s", bal, amount)
	}
	next := bal.Sub(amount)
	t.setBalance(userID, bal, next)
	return next, nil
}

func (t *memTx) AppendEntry(_ context.Context, e *domain.LedgerEntry) error {
	if e.ID == "" {
		return fmt.Errorf("ledger entry without id")
	}
	n := len(t.s.entries)
	t.s.entries = append(t.s.entries, *e)
	t.undo = append(t.undo, func() { t.s.entries = t.s.entries[:n] })
	return nil
}

func (t *memTx) InsertBet(_ context.Context, b *domain.Bet) error {
	if _, ok := t.s.bets[b.ID]; ok {
		return fmt.Errorf("bet %s already exists", b.ID)
	}
	key := placedKey(b.UserID, b.MatchID)
	if existing, ok := t.s.placed[key]; ok {
		return domain.Newf(domain.CodeDuplicateBet, "user %s already has bet %s on match %s", b.UserID, existing, b.MatchID)
	}

	cp := *b
	t.s.bets[b.ID] = &cp
	t.s.betOrder = append(t.s.betOrder, b.ID)
	t.s.placed[key] = b.ID
	n := len(t.s.betOrder) - 1
	t.undo = append(t.undo, func() {
		delete(t.s.bets, b.ID)
		delete(t.s.placed, key)
		t.s.betOrder = t.s.betOrder[:n]
	})
	return nil
}

func (t *memTx) TransitionBet(_ context.Context, betID string, from, to domain.BetStatus, at time.Time) (bool, error) {
	b, ok := t.s.bets[betID]
	if !ok {
		return false, domain.Newf(domain.CodeBetNotFound, "bet %s not found", betID)
	}
	if b.Status != from {
		return false, nil
	}

	prev := *b
	b.Status = to
	if to.Terminal() {
		settled := at
		b.SettledAt = &settled
	}
	t.undo = append(t.undo, func() { *b = prev })
	return true, nil
}
