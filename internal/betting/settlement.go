package betting

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/wallet"
)

// SettlementReport resume uma passada de liquidação (ou anulação) de uma partida
type SettlementReport struct {
	MatchID       string      `json:"matchId"`
	WinningSideID string      `json:"winningSideId,omitempty"`
	Won           int         `json:"won"`
	Lost          int         `json:"lost"`
	Voided        int         `json:"voided"`
	Skipped       int         `json:"skipped"` // já saíram de PENDING por outro caminho
	Failed        int         `json:"failed"`
	TotalPaid     money.Money `json:"totalPaid"`
	TotalRefunded money.Money `json:"totalRefunded"`
	FailedBetIDs  []string    `json:"failedBetIds,omitempty"`
}

type outcome int

const (
	outcomeWon outcome = iota
	outcomeLost
	outcomeVoided
	outcomeSkipped
	outcomeFailed
)

func (r *SettlementReport) add(o outcome, bet *domain.Bet) {
	switch o {
	case outcomeWon:
		r.Won++
		r.TotalPaid = r.TotalPaid.Add(bet.PotentialPayout)
	case outcomeLost:
		r.Lost++
	case outcomeVoided:
		r.Voided++
		r.TotalRefunded = r.TotalRefunded.Add(bet.Stake)
	case outcomeSkipped:
		r.Skipped++
	case outcomeFailed:
		r.Failed++
		r.FailedBetIDs = append(r.FailedBetIDs, bet.ID)
	}
}

// SettleMatch liquida todas as apostas PENDING de uma partida COMPLETED
// Vencedoras: WON + PAYOUT no mesmo commit; perdedoras: LOST sem lançamento
// Falha numa aposta é isolada e a aposta continua PENDING para a próxima passada
func (m *Manager) SettleMatch(ctx context.Context, matchID string) (*SettlementReport, error) {
	res, err := m.matches.GetResult(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.MatchCompleted || res.WinningSideID == "" {
		return nil, domain.Newf(domain.CodeMatchNotCompleted, "match %s is %s without a recorded winner", matchID, res.Status)
	}
	winner := res.WinningSideID

	return m.processPending(ctx, matchID, winner, func(bet *domain.Bet) (domain.BetStatus, *wallet.Movement) {
		if bet.SelectedSideID != winner {
			return domain.BetLost, nil
		}
		return domain.BetWon, &wallet.Movement{
			UserID:       bet.UserID,
			Amount:       bet.PotentialPayout,
			Kind:         domain.EntryPayout,
			Note:         "payout for match " + matchID,
			RelatedBetID: bet.ID,
		}
	})
}

// VoidMatch cancela e reembolsa as apostas PENDING de uma partida CANCELLED
func (m *Manager) VoidMatch(ctx context.Context, matchID string) (*SettlementReport, error) {
	res, err := m.matches.GetResult(ctx, matchID)
	if err != nil {
		return nil, err
	}
	if res.Status != domain.MatchCancelled {
		return nil, domain.Newf(domain.CodeValidation, "match %s is %s, only cancelled matches can be voided", matchID, res.Status)
	}

	report, err := m.processPending(ctx, matchID, "", func(bet *domain.Bet) (domain.BetStatus, *wallet.Movement) {
		return domain.BetCancelled, &wallet.Movement{
			UserID:       bet.UserID,
			Amount:       bet.Stake,
			Kind:         domain.EntryRefund,
			Note:         "match " + matchID + " cancelled",
			RelatedBetID: bet.ID,
		}
	})
	if err == nil && report.Voided > 0 {
		m.refreshSnapshot(ctx, matchID)
	}
	return report, err
}

func (m *Manager) processPending(
	ctx context.Context,
	matchID, winner string,
	decide func(bet *domain.Bet) (domain.BetStatus, *wallet.Movement),
) (*SettlementReport, error) {
	pending, err := m.store.ListBets(ctx, domain.BetFilter{MatchID: matchID, Status: domain.BetPending})
	if err != nil {
		return nil, fmt.Errorf("list pending bets: %w", err)
	}

	report := &SettlementReport{MatchID: matchID, WinningSideID: winner, TotalPaid: money.Zero(), TotalRefunded: money.Zero()}
	var mu sync.Mutex

	var g errgroup.Group
	g.SetLimit(m.concurrency)
	for i := range pending {
		bet := &pending[i]
		g.Go(func() error {
			o := m.settleOne(ctx, bet, winner, decide)
			mu.Lock()
			report.add(o, bet)
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	m.log.Info("match processed",
		zap.String("matchId", matchID),
		zap.String("winningSideId", winner),
		zap.Int("won", report.Won),
		zap.Int("lost", report.Lost),
		zap.Int("voided", report.Voided),
		zap.Int("skipped", report.Skipped),
		zap.Int("failed", report.Failed),
		zap.String("totalPaid", report.TotalPaid.String()),
	)
	return report, nil
}

func (m *Manager) settleOne(
	ctx context.Context,
	bet *domain.Bet,
	winner string,
	decide func(bet *domain.Bet) (domain.BetStatus, *wallet.Movement),
) outcome {
	to, credit := decide(bet)
	entry, err := m.resolve(ctx, bet, to, credit)
	if errors.Is(err, errNotPending) {
		return outcomeSkipped
	}
	if err != nil {
		m.metrics.SettlementErrors.Inc()
		m.log.Error("bet settlement failed",
			zap.String("betId", bet.ID),
			zap.String("matchId", bet.MatchID),
			zap.String("userId", bet.UserID),
			zap.String("target", string(to)),
			zap.Error(err),
		)
		return outcomeFailed
	}

	switch to {
	case domain.BetWon:
		m.metrics.BetsSettled.WithLabelValues("won").Inc()
		m.afterSettle(ctx, bet, to, winner)
		return outcomeWon
	case domain.BetLost:
		m.metrics.BetsSettled.WithLabelValues("lost").Inc()
		m.afterSettle(ctx, bet, to, winner)
		return outcomeLost
	default:
		m.metrics.BetsSettled.WithLabelValues("voided").Inc()
		m.afterCancel(ctx, bet, entry, "match_cancelled")
		return outcomeVoided
	}
}

// SettleAllCompletedMatches percorre as partidas com apostas PENDING:
// COMPLETED são liquidadas, CANCELLED são anuladas, as demais ficam para depois
func (m *Manager) SettleAllCompletedMatches(ctx context.Context) ([]SettlementReport, error) {
	ids, err := m.store.MatchesWithPendingBets(ctx)
	if err != nil {
		return nil, fmt.Errorf("matches with pending bets: %w", err)
	}

	var reports []SettlementReport
	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return reports, err
		}
		res, err := m.matches.GetResult(ctx, id)
		if err != nil {
			m.log.Warn("match result unavailable", zap.String("matchId", id), zap.Error(err))
			continue
		}

		var r *SettlementReport
		switch res.Status {
		case domain.MatchCompleted:
			r, err = m.SettleMatch(ctx, id)
		case domain.MatchCancelled:
			r, err = m.VoidMatch(ctx, id)
		default:
			continue
		}
		if err != nil {
			m.log.Warn("match settlement skipped", zap.String("matchId", id), zap.Error(err))
			continue
		}
		reports = append(reports, *r)
	}
	return reports, nil
}
