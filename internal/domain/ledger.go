package domain

import (
	"time"

	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// EntryKind é o tipo de movimentação no ledger; define a direção do valor
type EntryKind string

const (
	EntryDeposit    EntryKind = "DEPOSIT"
	EntryWithdrawal EntryKind = "WITHDRAWAL"
	EntryStake      EntryKind = "STAKE"
	EntryPayout     EntryKind = "PAYOUT"
	EntryRefund     EntryKind = "REFUND"
)

// IsCredit indica se o tipo aumenta o saldo
func (k EntryKind) IsCredit() bool {
	return k == EntryDeposit || k == EntryPayout || k == EntryRefund
}

// IsDebit indica se o tipo diminui o saldo
func (k EntryKind) IsDebit() bool {
	return k == EntryWithdrawal || k == EntryStake
}

// LedgerEntry é o registro imutável de uma alteração de saldo
// Amount é sempre positivo; o sinal vem do Kind
type LedgerEntry struct {
	ID           string      `json:"id"`
	UserID       string      `json:"userId"`
	Kind         EntryKind   `json:"kind"`
	Amount       money.Money `json:"amount"`
	BalanceAfter money.Money `json:"balanceAfter"`
	Note         string      `json:"note,omitempty"`
	RelatedBetID string      `json:"relatedBetId,omitempty"`
	CreatedAt    time.Time   `json:"createdAt"`
}

// Signed retorna o delta com sinal aplicado ao saldo
func (e LedgerEntry) Signed() money.Money {
	if e.Kind.IsDebit() {
		return e.Amount.Neg()
	}
	return e.Amount
}

// HistoryFilter restringe o extrato; campos vazios não restringem
type HistoryFilter struct {
	Kinds []EntryKind
	From  time.Time
	To    time.Time
	Limit int
}

// Matches aplica o filtro a uma entrada
func (f HistoryFilter) Matches(e *LedgerEntry) bool {
	if len(f.Kinds) > 0 {
		found := false
		for _, k := range f.Kinds {
			if e.Kind == k {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if !f.From.IsZero() && e.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && e.CreatedAt.After(f.To) {
		return false
	}
	return true
}
