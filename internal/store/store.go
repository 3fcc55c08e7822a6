// Package store define a unidade transacional do core e as consultas de leitura
// sobre carteiras, ledger e apostas.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// ErrCommit envolve falhas no commit: o resultado da transação é desconhecido
// e o chamador deve reconciliar o estado
var ErrCommit = errors.New("commit failed")

// Tx expõe as mutações permitidas dentro de uma unidade transacional
type Tx interface {
	// CreditWallet soma amount ao saldo e devolve o novo saldo (ErrUnknownUser se não existir)
	CreditWallet(ctx context.Context, userID string, amount money.Money) (money.Money, error)

	// DebitWallet subtrai amount somente se balance >= amount (ErrInsufficientFunds caso contrário)
	DebitWallet(ctx context.Context, userID string, amount money.Money) (money.Money, error)

	// AppendEntry grava uma entrada imutável no ledger
	AppendEntry(ctx context.Context, e *domain.LedgerEntry) error

	// InsertBet grava a aposta; ErrDuplicateBet se já existir qualquer aposta para (user, match)
	InsertBet(ctx context.Context, b *domain.Bet) error

	// TransitionBet muda o status apenas se o status atual for from; false indica no-op
	TransitionBet(ctx context.Context, betID string, from, to domain.BetStatus, at time.Time) (bool, error)
}

// Store é o acesso a persistência usado pelo ledger e pelo gerenciador de apostas
type Store interface {
	// WithinTx executa fn numa transação: commit se fn retornar nil, rollback em erro ou panic
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// OpenWallet cria a carteira com saldo zero (idempotente)
	OpenWallet(ctx context.Context, userID string) error
	Balance(ctx context.Context, userID string) (money.Money, error)
	History(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.LedgerEntry, error)
	FindEntry(ctx context.Context, betID string, kind domain.EntryKind) (*domain.LedgerEntry, error)

	GetBet(ctx context.Context, betID string) (*domain.Bet, error)
	ListBets(ctx context.Context, f domain.BetFilter) ([]domain.Bet, error)
	// HasBet considera apostas em qualquer status, inclusive canceladas
	HasBet(ctx context.Context, userID, matchID string) (bool, error)
	PoolTotals(ctx context.Context, matchID string) (domain.Pool, error)
	MatchesWithPendingBets(ctx context.Context) ([]string, error)
	UserStats(ctx context.Context, userID string) (domain.UserStats, error)
	Statistics(ctx context.Context) (domain.Statistics, error)
}

// WinRate calcula won/total*100 (0 quando não há apostas)
func WinRate(won, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(won) / float64(total) * 100.0
}
