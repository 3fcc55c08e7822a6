package betting

import (
	"context"
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	"github.com/radieske/esports-bet-core/internal/shared/money"
)

// OddsSnapshot sempre recalcula a partir dos pools atuais e atualiza o snapshot de exibição
// Falha no cache não impede a resposta
func (m *Manager) OddsSnapshot(ctx context.Context, matchID string) (odds.Snapshot, error) {
	snap, err := m.computeSnapshot(ctx, matchID, false)
	if err != nil {
		return odds.Snapshot{}, err
	}
	if m.cache != nil {
		if err := m.cache.Put(ctx, snap); err != nil {
			m.metrics.OddsCacheErrors.Inc()
			m.log.Warn("odds snapshot cache failed", zap.String("matchId", matchID), zap.Error(err))
		}
	}
	return snap, nil
}

func (m *Manager) computeSnapshot(ctx context.Context, matchID string, persist bool) (odds.Snapshot, error) {
	sides, err := m.matches.GetSides(ctx, matchID)
	if err != nil {
		return odds.Snapshot{}, err
	}
	pool, err := m.store.PoolTotals(ctx, matchID)
	if err != nil {
		return odds.Snapshot{}, fmt.Errorf("pool totals: %w", err)
	}
	snap := m.odds.Snapshot(matchID, sides, pool, m.now())
	if persist {
		if err := m.cache.Put(ctx, snap); err != nil {
			return snap, fmt.Errorf("cache snapshot: %w", err)
		}
	}
	return snap, nil
}

// CachedOdds devolve o último snapshot de exibição, recalculando se não houver
func (m *Manager) CachedOdds(ctx context.Context, matchID string) (odds.Snapshot, error) {
	if m.cache != nil {
		if s, ok, err := m.cache.Get(ctx, matchID); err == nil && ok {
			return *s, nil
		}
	}
	return m.OddsSnapshot(ctx, matchID)
}

// BookmakerMargin é a margem implícita das odds atuais, em percentual
func (m *Manager) BookmakerMargin(ctx context.Context, matchID string) (decimal.Decimal, error) {
	snap, err := m.computeSnapshot(ctx, matchID, false)
	if err != nil {
		return decimal.Zero, err
	}
	return snap.Margin, nil
}

// IsAtRiskLimit é true quando o pool total passa do limite (zero usa o limite configurado)
func (m *Manager) IsAtRiskLimit(ctx context.Context, matchID string, limit money.Money) (bool, error) {
	if limit.IsZero() {
		limit = m.riskLimit
	}
	pool, err := m.store.PoolTotals(ctx, matchID)
	if err != nil {
		return false, fmt.Errorf("pool totals: %w", err)
	}
	return pool.Total.GreaterThan(limit), nil
}

// QuotePayout calcula o retorno potencial com as odds deste instante, sem travar nada
func (m *Manager) QuotePayout(ctx context.Context, matchID, sideID string, stake money.Money) (money.Money, decimal.Decimal, error) {
	if !stake.IsPositive() {
		return money.Zero(), decimal.Zero, domain.Newf(domain.CodeValidation, "stake must be positive, got %s", stake)
	}
	sides, err := m.matches.GetSides(ctx, matchID)
	if err != nil {
		return money.Zero(), decimal.Zero, err
	}
	if !sides.Has(sideID) {
		return money.Zero(), decimal.Zero, domain.Newf(domain.CodeInvalidSide, "side %s is not part of match %s", sideID, matchID)
	}
	pool, err := m.store.PoolTotals(ctx, matchID)
	if err != nil {
		return money.Zero(), decimal.Zero, fmt.Errorf("pool totals: %w", err)
	}
	o := m.odds.CurrentOdds(pool.Total, pool.Side(sideID))
	return stake.Mul(o), o, nil
}

// RecalculateOdds atualiza o snapshot de exibição das partidas informadas
func (m *Manager) RecalculateOdds(ctx context.Context, matchIDs []string) error {
	if m.cache == nil {
		return nil
	}
	var errs []error
	for _, id := range matchIDs {
		if _, err := m.computeSnapshot(ctx, id, true); err != nil {
			m.metrics.OddsCacheErrors.Inc()
			errs = append(errs, fmt.Errorf("match %s: %w", id, err))
		}
	}
	return errors.Join(errs...)
}
