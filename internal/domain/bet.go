// Package domain reúne os tipos do core de apostas: Bet, LedgerEntry, dados de partida
// e a taxonomia de erros.
package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// BetStatus é o estado de uma aposta
type BetStatus string

const (
	BetPending   BetStatus = "PENDING"
	BetWon       BetStatus = "WON"
	BetLost      BetStatus = "LOST"
	BetCancelled BetStatus = "CANCELLED"
)

// Terminal indica WON, LOST ou CANCELLED; nenhuma transição sai deles
func (s BetStatus) Terminal() bool {
	return s == BetWon || s == BetLost || s == BetCancelled
}

func (s BetStatus) Valid() bool {
	return s == BetPending || s.Terminal()
}

// Bet é a aposta de um usuário em um dos lados de uma partida
type Bet struct {
	ID              string          `json:"betId"`
	UserID          string          `json:"userId"`
	MatchID         string          `json:"matchId"`
	SelectedSideID  string          `json:"selectedSideId"`
	Stake           money.Money     `json:"stake"`
	OddsLocked      decimal.Decimal `json:"oddsLocked"`
	PotentialPayout money.Money     `json:"potentialPayout"`
	Status          BetStatus       `json:"status"`
	PlacedAt        time.Time       `json:"placedAt"`
	SettledAt       *time.Time      `json:"settledAt,omitempty"`
}

// MarshalJSON fixa oddsLocked em 2 casas ("2.00"), como os campos monetários
func (b Bet) MarshalJSON() ([]byte, error) {
	type alias Bet
	return json.Marshal(struct {
		alias
		OddsLocked string `json:"oddsLocked"`
	}{alias(b), b.OddsLocked.StringFixed(2)})
}

// BetFilter filtra listagens de apostas; campos vazios não restringem
type BetFilter struct {
	UserID  string
	MatchID string
	Status  BetStatus
	From    time.Time
	To      time.Time
	Limit   int
}

// Matches aplica o filtro a uma aposta (usado pelo store em memória)
func (f BetFilter) Matches(b *Bet) bool {
	if f.UserID != "" && b.UserID != f.UserID {
		return false
	}
	if f.MatchID != "" && b.MatchID != f.MatchID {
		return false
	}
	if f.Status != "" && b.Status != f.Status {
		return false
	}
	if !f.From.IsZero() && b.PlacedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && b.PlacedAt.After(f.To) {
		return false
	}
	return true
}

// Pool são os totais de stakes não canceladas de uma partida
type Pool struct {
	Total money.Money
	Sides map[string]money.Money
}

// Side retorna o pool de um lado (zero se ninguém apostou nele)
func (p Pool) Side(sideID string) money.Money {
	if p.Sides == nil {
		return money.Zero()
	}
	return p.Sides[sideID]
}

// UserStats agrega o histórico de apostas de um usuário
// TotalWinnings é o lucro líquido somente das apostas ganhas: SUM(potentialPayout - stake) WHERE WON
type UserStats struct {
	TotalBets     int         `json:"totalBets"`
	TotalStaked   money.Money `json:"totalStaked"`
	TotalWinnings money.Money `json:"totalWinnings"`
	Won           int         `json:"won"`
	Lost          int         `json:"lost"`
	Pending       int         `json:"pending"`
	Cancelled     int         `json:"cancelled"`
	WinRate       float64     `json:"winRate"`
}

// Statistics são os números globais de apostas
type Statistics struct {
	TotalBets   int         `json:"totalBets"`
	TotalStaked money.Money `json:"totalStaked"`
	Pending     int         `json:"pending"`
	Won         int         `json:"won"`
	Lost        int         `json:"lost"`
	Cancelled   int         `json:"cancelled"`
}
