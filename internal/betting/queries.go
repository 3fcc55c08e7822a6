package betting

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/odds"
	"github.com/radieske/esports-bet-core/internal/shared/money"
)

func (m *Manager) GetBet(ctx context.Context, betID string) (*domain.Bet, error) {
	if err := checkBetID(betID); err != nil {
		return nil, err
	}
	return m.store.GetBet(ctx, betID)
}

// checkBetID recusa ids vazios ou fora do formato UUID antes de chegar ao store
func checkBetID(betID string) error {
	if betID == "" {
		return domain.Newf(domain.CodeValidation, "betId is required")
	}
	if _, err := uuid.Parse(betID); err != nil {
		return domain.Newf(domain.CodeValidation, "malformed betId %q", betID)
	}
	return nil
}

func (m *Manager) ListBetsForUser(ctx context.Context, userID string) ([]domain.Bet, error) {
	return m.listBets(ctx, domain.BetFilter{UserID: userID})
}

func (m *Manager) ListBetsForMatch(ctx context.Context, matchID string) ([]domain.Bet, error) {
	return m.listBets(ctx, domain.BetFilter{MatchID: matchID})
}

func (m *Manager) ListPendingBets(ctx context.Context) ([]domain.Bet, error) {
	return m.listBets(ctx, domain.BetFilter{Status: domain.BetPending})
}

func (m *Manager) ListBetsByStatus(ctx context.Context, status domain.BetStatus) ([]domain.Bet, error) {
	if !status.Valid() {
		return nil, domain.Newf(domain.CodeValidation, "unknown bet status %q", status)
	}
	return m.listBets(ctx, domain.BetFilter{Status: status})
}

// ListBetsBetween filtra por placedAt no intervalo fechado [from, to]
func (m *Manager) ListBetsBetween(ctx context.Context, from, to time.Time) ([]domain.Bet, error) {
	if !from.IsZero() && !to.IsZero() && to.Before(from) {
		return nil, domain.Newf(domain.CodeValidation, "invalid range: %s is before %s", to, from)
	}
	return m.listBets(ctx, domain.BetFilter{From: from, To: to})
}

func (m *Manager) ListUserBetsByStatus(ctx context.Context, userID string, status domain.BetStatus) ([]domain.Bet, error) {
	if !status.Valid() {
		return nil, domain.Newf(domain.CodeValidation, "unknown bet status %q", status)
	}
	return m.listBets(ctx, domain.BetFilter{UserID: userID, Status: status})
}

func (m *Manager) listBets(ctx context.Context, f domain.BetFilter) ([]domain.Bet, error) {
	bets, err := m.store.ListBets(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}
	return bets, nil
}

func (m *Manager) GetWalletBalance(ctx context.Context, userID string) (money.Money, error) {
	return m.ledger.BalanceOf(ctx, userID)
}

func (m *Manager) GetWalletHistory(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.LedgerEntry, error) {
	return m.ledger.HistoryOf(ctx, userID, f)
}

// UserReport: TotalWinnings é o lucro das apostas ganhas apenas (payout - stake), perdas não entram
func (m *Manager) UserReport(ctx context.Context, userID string) (domain.UserStats, error) {
	ok, err := m.users.Exists(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("check user: %w", err)
	}
	if !ok {
		return domain.UserStats{}, domain.Newf(domain.CodeUnknownUser, "user %s not found", userID)
	}
	st, err := m.store.UserStats(ctx, userID)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	return st, nil
}

// MatchReport é a visão de risco de uma partida
type MatchReport struct {
	MatchID     string          `json:"matchId"`
	SideAID     string          `json:"sideAId"`
	SideBID     string          `json:"sideBId"`
	BetsA       int             `json:"betsA"`
	BetsB       int             `json:"betsB"`
	PoolA       money.Money     `json:"poolA"`
	PoolB       money.Money     `json:"poolB"`
	Total       money.Money     `json:"total"`
	OddsA       decimal.Decimal `json:"oddsA"`
	OddsB       decimal.Decimal `json:"oddsB"`
	Margin      decimal.Decimal `json:"margin"`
	AtRiskLimit bool            `json:"atRiskLimit"`
}

func (r MatchReport) MarshalJSON() ([]byte, error) {
	type alias MatchReport
	return json.Marshal(struct {
		alias
		OddsA  string `json:"oddsA"`
		OddsB  string `json:"oddsB"`
		Margin string `json:"margin"`
	}{alias(r), r.OddsA.StringFixed(2), r.OddsB.StringFixed(2), r.Margin.StringFixed(2)})
}

func (m *Manager) MatchReport(ctx context.Context, matchID string) (*MatchReport, error) {
	sides, err := m.matches.GetSides(ctx, matchID)
	if err != nil {
		return nil, err
	}
	bets, err := m.store.ListBets(ctx, domain.BetFilter{MatchID: matchID})
	if err != nil {
		return nil, fmt.Errorf("list bets: %w", err)
	}

	r := &MatchReport{MatchID: matchID, SideAID: sides.A, SideBID: sides.B}
	for i := range bets {
		b := &bets[i]
		if b.Status == domain.BetCancelled {
			continue
		}
		switch b.SelectedSideID {
		case sides.A:
			r.BetsA++
			r.PoolA = r.PoolA.Add(b.Stake)
		case sides.B:
			r.BetsB++
			r.PoolB = r.PoolB.Add(b.Stake)
		}
	}
	r.Total = r.PoolA.Add(r.PoolB)
	r.OddsA = m.odds.CurrentOdds(r.Total, r.PoolA)
	r.OddsB = m.odds.CurrentOdds(r.Total, r.PoolB)
	r.Margin = odds.BookmakerMargin(r.OddsA, r.OddsB)
	r.AtRiskLimit = r.Total.GreaterThan(m.riskLimit)
	return r, nil
}

func (m *Manager) Statistics(ctx context.Context) (domain.Statistics, error) {
	st, err := m.store.Statistics(ctx)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("statistics: %w", err)
	}
	return st, nil
}
