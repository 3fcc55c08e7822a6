// Package odds calcula odds pari-mutuel a partir dos pools de apostas.
package odds

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// divisionScale é a precisão da divisão total/lado antes da margem
const divisionScale = 4

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// Policy são os parâmetros da casa
type Policy struct {
	HouseMargin decimal.Decimal
	MinOdds     decimal.Decimal
	DefaultOdds decimal.Decimal
}

func DefaultPolicy() Policy {
	return Policy{
		HouseMargin: decimal.RequireFromString("0.95"),
		MinOdds:     decimal.RequireFromString("1.01"),
		DefaultOdds: decimal.RequireFromString("2.00"),
	}
}

// Validate rejeita margens fora de (0,1] e odds mínimas abaixo de 1
func (p Policy) Validate() error {
	if !p.HouseMargin.IsPositive() || p.HouseMargin.GreaterThan(one) {
		return errors.New("house margin must be in (0, 1]")
	}
	if p.MinOdds.LessThan(one) {
		return errors.New("min odds must be >= 1")
	}
	if p.DefaultOdds.LessThan(p.MinOdds) {
		return errors.New("default odds must be >= min odds")
	}
	return nil
}

// Engine não guarda estado além da política
type Engine struct {
	policy Policy
}

func NewEngine(p Policy) *Engine { return &Engine{policy: p} }

func (e *Engine) Policy() Policy { return e.policy }

// CurrentOdds aplica total/lado * margem, com piso em MinOdds e 2 casas half-up
// Pool vazio em qualquer um dos lados devolve DefaultOdds
func (e *Engine) CurrentOdds(total, side money.Money) decimal.Decimal {
	if total.IsZero() || side.IsZero() {
		return e.policy.DefaultOdds
	}
	raw := total.Decimal().DivRound(side.Decimal(), divisionScale)
	adjusted := raw.Mul(e.policy.HouseMargin)
	if adjusted.LessThan(e.policy.MinOdds) {
		adjusted = e.policy.MinOdds
	}
	return adjusted.Round(2)
}

// Pair calcula as odds dos dois lados para o pool informado
func (e *Engine) Pair(pool domain.Pool, sides domain.Sides) (decimal.Decimal, decimal.Decimal) {
	return e.CurrentOdds(pool.Total, pool.Side(sides.A)), e.CurrentOdds(pool.Total, pool.Side(sides.B))
}

// Snapshot monta a fotografia de exibição de uma partida
func (e *Engine) Snapshot(matchID string, sides domain.Sides, pool domain.Pool, at time.Time) Snapshot {
	a, b := e.Pair(pool, sides)
	return Snapshot{
		MatchID:   matchID,
		SideAID:   sides.A,
		SideBID:   sides.B,
		SideAOdds: a,
		SideBOdds: b,
		TotalPool: pool.Total,
		SideAPool: pool.Side(sides.A),
		SideBPool: pool.Side(sides.B),
		Margin:    BookmakerMargin(a, b),
		UpdatedAt: at,
	}
}

// BookmakerMargin retorna (1/a + 1/b - 1) * 100 em percentual, sem arredondar;
// cada 1/odds tem 4 casas, então o resultado já sai com no máximo 2
func BookmakerMargin(a, b decimal.Decimal) decimal.Decimal {
	if !a.IsPositive() || !b.IsPositive() {
		return decimal.Zero
	}
	implied := one.DivRound(a, divisionScale).Add(one.DivRound(b, divisionScale))
	return implied.Sub(one).Mul(hundred)
}
