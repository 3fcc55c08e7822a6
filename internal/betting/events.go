package betting

import (
	"context"

	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/pkg/contracts/events"
)

// Efeitos pós-commit: eventos e snapshot de odds são best effort.
// Falhas são logadas e contadas, nunca desfazem o que já foi gravado.

func (m *Manager) afterPlacement(ctx context.Context, bet *domain.Bet, stakeEntry *domain.LedgerEntry) {
	m.refreshSnapshot(ctx, bet.MatchID)
	if m.publ == nil {
		return
	}
	ev := events.BetPlaced{
		BetID:           bet.ID,
		UserID:          bet.UserID,
		MatchID:         bet.MatchID,
		SelectedSideID:  bet.SelectedSideID,
		Stake:           bet.Stake.String(),
		OddsLocked:      bet.OddsLocked.StringFixed(2),
		PotentialPayout: bet.PotentialPayout.String(),
	}
	if stakeEntry != nil {
		ev.StakeEntryID = stakeEntry.ID
	}
	m.publish(ctx, "bet_placed", bet.ID, func(ctx context.Context) error {
		return m.publ.PublishBetPlaced(ctx, ev)
	})
}

func (m *Manager) afterCancel(ctx context.Context, bet *domain.Bet, refund *domain.LedgerEntry, reason string) {
	if m.publ == nil {
		return
	}
	ev := events.BetCancelled{
		BetID:    bet.ID,
		UserID:   bet.UserID,
		MatchID:  bet.MatchID,
		Refunded: bet.Stake.String(),
		Reason:   reason,
	}
	if refund != nil {
		ev.RefundEntryID = refund.ID
	}
	m.publish(ctx, "bet_cancelled", bet.ID, func(ctx context.Context) error {
		return m.publ.PublishBetCancelled(ctx, ev)
	})
}

func (m *Manager) afterSettle(ctx context.Context, bet *domain.Bet, status domain.BetStatus, winner string) {
	if m.publ == nil {
		return
	}
	ev := events.BetSettled{
		BetID:         bet.ID,
		UserID:        bet.UserID,
		MatchID:       bet.MatchID,
		Status:        string(status),
		WinningSideID: winner,
	}
	if status == domain.BetWon {
		ev.Payout = bet.PotentialPayout.String()
	}
	m.publish(ctx, "bet_settled", bet.ID, func(ctx context.Context) error {
		return m.publ.PublishBetSettled(ctx, ev)
	})
}

func (m *Manager) publish(ctx context.Context, topic, betID string, fn func(context.Context) error) {
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.publishTimeout)
	defer cancel()
	if err := fn(pctx); err != nil {
		m.metrics.PublishFailures.WithLabelValues(topic).Inc()
		m.log.Warn("event publish failed", zap.String("topic", topic), zap.String("betId", betID), zap.Error(err))
	}
}

// refreshSnapshot recalcula e grava o snapshot de exibição; nunca usado para travar odds
func (m *Manager) refreshSnapshot(ctx context.Context, matchID string) {
	if m.cache == nil {
		return
	}
	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.publishTimeout)
	defer cancel()
	if _, err := m.computeSnapshot(cctx, matchID, true); err != nil {
		m.metrics.OddsCacheErrors.Inc()
		m.log.Warn("odds snapshot refresh failed", zap.String("matchId", matchID), zap.Error(err))
	}
}
