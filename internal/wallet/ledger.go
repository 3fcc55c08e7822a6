// Package wallet é o único escritor de saldo: toda mutação grava o saldo novo e a
// entrada do ledger na mesma unidade transacional.
package wallet

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/registry"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
)

// Movement descreve uma alteração de saldo
type Movement struct {
	UserID       string
	Amount       money.Money
	Kind         domain.EntryKind
	Note         string
	RelatedBetID string
}

// Ledger opera carteiras sobre um store.Store
type Ledger struct {
	store store.Store
	users registry.UserDirectory
	log   *zap.Logger

	Now   func() time.Time
	NewID func() string

	OnEntry func(domain.EntryKind) // métricas
}

func NewLedger(st store.Store, users registry.UserDirectory, log *zap.Logger) *Ledger {
	return &Ledger{
		store: st,
		users: users,
		log:   log,
		Now:   time.Now,
		NewID: uuid.NewString,
	}
}

// OpenWallet cria a carteira do usuário com saldo zero (idempotente)
func (l *Ledger) OpenWallet(ctx context.Context, userID string) error {
	ok, err := l.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return domain.Newf(domain.CodeUnknownUser, "user %s not found", userID)
	}
	return l.store.OpenWallet(ctx, userID)
}

// Credit aumenta o saldo numa transação própria; nunca falha por saldo
func (l *Ledger) Credit(ctx context.Context, m Movement) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = l.CreditTx(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.recorded(entry)
	return entry, nil
}

// Debit diminui o saldo numa transação própria
func (l *Ledger) Debit(ctx context.Context, m Movement) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := l.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		var err error
		entry, err = l.DebitTx(ctx, tx, m)
		return err
	})
	if err != nil {
		return nil, err
	}
	l.recorded(entry)
	return entry, nil
}

// CreditTx credita dentro de uma transação aberta pelo chamador
func (l *Ledger) CreditTx(ctx context.Context, tx store.Tx, m Movement) (*domain.LedgerEntry, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	if !m.Kind.IsCredit() {
		return nil, domain.Newf(domain.CodeValidation, "%s is not a credit kind", m.Kind)
	}
	bal, err := tx.CreditWallet(ctx, m.UserID, m.Amount)
	if err != nil {
		return nil, err
	}
	return l.append(ctx, tx, m, bal)
}

// DebitTx debita dentro de uma transação aberta pelo chamador
// Exige conta ativa e saldo >= amount; em recusa nada é alterado
func (l *Ledger) DebitTx(ctx context.Context, tx store.Tx, m Movement) (*domain.LedgerEntry, error) {
	if err := validate(m); err != nil {
		return nil, err
	}
	if !m.Kind.IsDebit() {
		return nil, domain.Newf(domain.CodeValidation, "%s is not a debit kind", m.Kind)
	}
	if err := l.ensureActive(ctx, m.UserID); err != nil {
		return nil, err
	}
	bal, err := tx.DebitWallet(ctx, m.UserID, m.Amount)
	if err != nil {
		return nil, err
	}
	return l.append(ctx, tx, m, bal)
}

// Deposit credita fundos externos (DEPOSIT)
func (l *Ledger) Deposit(ctx context.Context, userID string, amount money.Money, note string) (*domain.LedgerEntry, error) {
	return l.Credit(ctx, Movement{UserID: userID, Amount: amount, Kind: domain.EntryDeposit, Note: note})
}

// Withdraw debita fundos para fora da plataforma (WITHDRAWAL)
func (l *Ledger) Withdraw(ctx context.Context, userID string, amount money.Money, note string) (*domain.LedgerEntry, error) {
	return l.Debit(ctx, Movement{UserID: userID, Amount: amount, Kind: domain.EntryWithdrawal, Note: note})
}

func (l *Ledger) BalanceOf(ctx context.Context, userID string) (money.Money, error) {
	return l.store.Balance(ctx, userID)
}

// HistoryOf devolve o extrato do mais novo para o mais antigo
func (l *Ledger) HistoryOf(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.LedgerEntry, error) {
	return l.store.History(ctx, userID, f)
}

func (l *Ledger) ensureActive(ctx context.Context, userID string) error {
	active, err := l.users.IsActive(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user status: %w", err)
	}
	if active {
		return nil
	}
	exists, err := l.users.Exists(ctx, userID)
	if err != nil {
		return fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return domain.Newf(domain.CodeUnknownUser, "user %s not found", userID)
	}
	return domain.Newf(domain.CodeAccountInactive, "user %s is inactive", userID)
}

func (l *Ledger) append(ctx context.Context, tx store.Tx, m Movement, bal money.Money) (*domain.LedgerEntry, error) {
	e := &domain.LedgerEntry{
		ID:           l.NewID(),
		UserID:       m.UserID,
		Kind:         m.Kind,
		Amount:       m.Amount,
		BalanceAfter: bal,
		Note:         m.Note,
		RelatedBetID: m.RelatedBetID,
		CreatedAt:    l.Now().UTC(),
	}
	if err := tx.AppendEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// recorded é chamado apenas após commit
func (l *Ledger) recorded(e *domain.LedgerEntry) {
	l.log.Debug("ledger entry recorded",
		zap.String("userId", e.UserID),
		zap.String("kind", string(e.Kind)),
		zap.String("amount", e.Amount.String()),
		zap.String("balanceAfter", e.BalanceAfter.String()),
	)
	if l.OnEntry != nil {
		l.OnEntry(e.Kind)
	}
}

// Recorded expõe o pós-commit para chamadores que usam CreditTx/DebitTx
func (l *Ledger) Recorded(entries ...*domain.LedgerEntry) {
	for _, e := range entries {
		if e != nil {
			l.recorded(e)
		}
	}
}

func validate(m Movement) error {
	if m.UserID == "" {
		return domain.Newf(domain.CodeValidation, "userId required")
	}
	if !m.Amount.IsPositive() {
		return domain.Newf(domain.CodeValidation, "amount must be positive, got %s", m.Amount)
	}
	return nil
}
