package betting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
	"github.com/radieske/esports-bet-core/internal/wallet"
)

// ValidatePlacement devolve o primeiro motivo de recusa, ou nil
// Ordem: usuário existe e ativo, faixa de stake, partida apostável, lado válido,
// aposta única por partida, saldo suficiente
func (m *Manager) ValidatePlacement(ctx context.Context, userID, matchID, sideID string, stake money.Money) error {
	_, err := m.validate(ctx, userID, matchID, sideID, stake)
	return err
}

func (m *Manager) validate(ctx context.Context, userID, matchID, sideID string, stake money.Money) (domain.Sides, error) {
	if userID == "" || matchID == "" || sideID == "" {
		return domain.Sides{}, domain.Newf(domain.CodeValidation, "userId, matchId and sideId are required")
	}
	if !stake.IsPositive() {
		return domain.Sides{}, domain.Newf(domain.CodeValidation, "stake must be positive, got %s", stake)
	}

	exists, err := m.users.Exists(ctx, userID)
	if err != nil {
		return domain.Sides{}, fmt.Errorf("check user: %w", err)
	}
	if !exists {
		return domain.Sides{}, domain.Newf(domain.CodeUnknownUser, "user %s not found", userID)
	}
	active, err := m.users.IsActive(ctx, userID)
	if err != nil {
		return domain.Sides{}, fmt.Errorf("check user status: %w", err)
	}
	if !active {
		return domain.Sides{}, domain.Newf(domain.CodeAccountInactive, "user %s is inactive", userID)
	}

	if !m.WithinLimits(userID, stake) {
		return domain.Sides{}, domain.Newf(domain.CodeStakeOutOfRange, "stake %s outside [%s, %s]",
			stake, m.limits.Min, m.limits.MaxFor(userID))
	}

	bettable, err := m.matches.IsBettable(ctx, matchID)
	if err != nil {
		return domain.Sides{}, fmt.Errorf("check match: %w", err)
	}
	if !bettable {
		return domain.Sides{}, domain.Newf(domain.CodeMatchNotBettable, "match %s is not open for betting", matchID)
	}

	sides, err := m.matches.GetSides(ctx, matchID)
	if err != nil {
		if errors.Is(err, domain.ErrMatchNotFound) {
			return domain.Sides{}, domain.Newf(domain.CodeMatchNotBettable, "match %s is not open for betting", matchID)
		}
		return domain.Sides{}, fmt.Errorf("get sides: %w", err)
	}
	if !sides.Has(sideID) {
		return domain.Sides{}, domain.Newf(domain.CodeInvalidSide, "side %s is not part of match %s", sideID, matchID)
	}

	dup, err := m.store.HasBet(ctx, userID, matchID)
	if err != nil {
		return domain.Sides{}, fmt.Errorf("check duplicate: %w", err)
	}
	if dup {
		return domain.Sides{}, domain.Newf(domain.CodeDuplicateBet, "user %s already has a bet on match %s", userID, matchID)
	}

	bal, err := m.store.Balance(ctx, userID)
	if err != nil {
		return domain.Sides{}, err
	}
	if bal.LessThan(stake) {
		return domain.Sides{}, domain.Newf(domain.CodeInsufficientFunds, "balance %s below stake %s", bal, stake)
	}
	return sides, nil
}

// WithinLimits indica se o stake está em [min, MaxFor(user)]
func (m *Manager) WithinLimits(userID string, stake money.Money) bool {
	return stake.GreaterThanOrEqual(m.limits.Min) && !stake.GreaterThan(m.limits.MaxFor(userID))
}

// PlaceBet valida, trava as odds do instante e grava débito + aposta numa única transação
// Qualquer falha antes do commit termina em "sem aposta, sem débito"
func (m *Manager) PlaceBet(ctx context.Context, userID, matchID, sideID string, stake money.Money) (*domain.Bet, error) {
	start := time.Now()
	defer func() { m.metrics.PlacementDuration.Observe(time.Since(start).Seconds()) }()

	if _, err := m.validate(ctx, userID, matchID, sideID, stake); err != nil {
		return nil, m.refuse("place bet", err)
	}

	pool, err := m.store.PoolTotals(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("pool totals: %w", err)
	}
	locked := m.odds.CurrentOdds(pool.Total, pool.Side(sideID))

	bet := &domain.Bet{
		ID:              m.NewID(),
		UserID:          userID,
		MatchID:         matchID,
		SelectedSideID:  sideID,
		Stake:           stake,
		OddsLocked:      locked,
		PotentialPayout: stake.Mul(locked),
		Status:          domain.BetPending,
		PlacedAt:        m.now(),
	}

	var stakeEntry *domain.LedgerEntry
	err = m.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		e, err := m.ledger.DebitTx(ctx, tx, wallet.Movement{
			UserID:       userID,
			Amount:       stake,
			Kind:         domain.EntryStake,
			Note:         "stake on match " + matchID,
			RelatedBetID: bet.ID,
		})
		if err != nil {
			return err
		}
		if err := tx.InsertBet(ctx, bet); err != nil {
			return err
		}
		stakeEntry = e
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrCommit) {
			return m.reconcilePlacement(ctx, bet, err)
		}
		return nil, m.refuse("place bet", err)
	}

	m.ledger.Recorded(stakeEntry)
	m.metrics.BetsPlaced.Inc()
	m.log.Info("bet placed",
		zap.String("betId", bet.ID),
		zap.String("userId", userID),
		zap.String("matchId", matchID),
		zap.String("stake", stake.String()),
		zap.String("oddsLocked", locked.StringFixed(2)),
	)

	m.afterPlacement(ctx, bet, stakeEntry)
	return bet, nil
}

// reconcilePlacement decide o resultado quando o commit falhou com desfecho desconhecido:
// aposta gravada => sucesso; stake sem aposta => reembolso compensatório e InconsistentState
func (m *Manager) reconcilePlacement(ctx context.Context, bet *domain.Bet, cause error) (*domain.Bet, error) {
	rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	if stored, err := m.store.GetBet(rctx, bet.ID); err == nil {
		m.log.Warn("commit reported failure but bet is persisted",
			zap.String("betId", bet.ID), zap.NamedError("cause", cause))
		m.metrics.BetsPlaced.Inc()
		stakeEntry, _ := m.store.FindEntry(rctx, bet.ID, domain.EntryStake)
		m.afterPlacement(rctx, stored, stakeEntry)
		return stored, nil
	}

	stakeEntry, err := m.store.FindEntry(rctx, bet.ID, domain.EntryStake)
	if err != nil {
		m.critical("placement outcome unknown", bet, errors.Join(cause, err))
		return nil, domain.Newf(domain.CodeInconsistentState, "placement of bet %s could not be reconciled", bet.ID)
	}
	if stakeEntry == nil {
		// nada foi gravado
		return nil, fmt.Errorf("place bet: %w", cause)
	}

	m.critical("stake taken without bet; refunding", bet, cause)
	refund, err := m.ledger.Credit(rctx, wallet.Movement{
		UserID:       bet.UserID,
		Amount:       stakeEntry.Amount,
		Kind:         domain.EntryRefund,
		Note:         "compensation: bet " + bet.ID + " was not persisted",
		RelatedBetID: bet.ID,
	})
	if err != nil {
		m.critical("compensating refund failed", bet, err)
	} else {
		m.log.Warn("compensating refund issued", zap.String("betId", bet.ID), zap.String("entryId", refund.ID))
	}
	return nil, domain.Newf(domain.CodeInconsistentState, "stake for bet %s was taken without a bet and refunded", bet.ID)
}

// CancelBet só é permitido com a aposta PENDING e a partida ainda aberta
// A transição e o reembolso saem no mesmo commit
func (m *Manager) CancelBet(ctx context.Context, betID string) (*domain.Bet, error) {
	if err := checkBetID(betID); err != nil {
		return nil, m.refuse("cancel bet", err)
	}
	bet, err := m.store.GetBet(ctx, betID)
	if err != nil {
		return nil, m.refuse("cancel bet", err)
	}
	if bet.Status != domain.BetPending {
		return nil, m.refuse("cancel bet", domain.Newf(domain.CodeCannotCancel, "bet %s is %s", betID, bet.Status))
	}
	open, err := m.matches.IsBettable(ctx, bet.MatchID)
	if err != nil {
		return nil, fmt.Errorf("check match: %w", err)
	}
	if !open {
		return nil, m.refuse("cancel bet", domain.Newf(domain.CodeCannotCancel, "match %s is no longer open", bet.MatchID))
	}

	refund, err := m.resolve(ctx, bet, domain.BetCancelled, &wallet.Movement{
		UserID:       bet.UserID,
		Amount:       bet.Stake,
		Kind:         domain.EntryRefund,
		Note:         "bet cancelled",
		RelatedBetID: bet.ID,
	})
	if errors.Is(err, errNotPending) {
		return nil, m.refuse("cancel bet", domain.Newf(domain.CodeCannotCancel, "bet %s is no longer pending", betID))
	}
	if err != nil {
		return nil, m.refuse("cancel bet", err)
	}

	m.metrics.BetsCancelled.Inc()
	m.log.Info("bet cancelled", zap.String("betId", bet.ID), zap.String("refund", bet.Stake.String()))
	m.afterCancel(ctx, bet, refund, "user")
	m.refreshSnapshot(ctx, bet.MatchID)

	bet.Status = domain.BetCancelled
	settled := refund.CreatedAt
	bet.SettledAt = &settled
	return bet, nil
}

var errNotPending = errors.New("bet is not pending")

// resolve aplica PENDING -> to e, se houver, o crédito correspondente na mesma transação
func (m *Manager) resolve(ctx context.Context, bet *domain.Bet, to domain.BetStatus, credit *wallet.Movement) (*domain.LedgerEntry, error) {
	var entry *domain.LedgerEntry
	err := m.store.WithinTx(ctx, func(ctx context.Context, tx store.Tx) error {
		changed, err := tx.TransitionBet(ctx, bet.ID, domain.BetPending, to, m.now())
		if err != nil {
			return err
		}
		if !changed {
			return errNotPending
		}
		if credit == nil {
			return nil
		}
		entry, err = m.ledger.CreditTx(ctx, tx, *credit)
		return err
	})
	if err != nil {
		return nil, err
	}
	m.ledger.Recorded(entry)
	return entry, nil
}

// refuse registra a recusa sem nível de erro; falhas de infraestrutura seguem para o chamador
func (m *Manager) refuse(op string, err error) error {
	if domain.IsBusinessRefusal(err) {
		m.metrics.Refused.WithLabelValues(op, string(domain.CodeOf(err))).Inc()
		m.log.Debug(op+" refused", zap.String("code", string(domain.CodeOf(err))), zap.Error(err))
		return err
	}
	if errors.Is(err, domain.ErrInconsistentState) {
		return err
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (m *Manager) critical(msg string, bet *domain.Bet, err error) {
	m.metrics.InconsistentState.Inc()
	m.log.Error(msg,
		zap.String("severity", "critical"),
		zap.String("betId", bet.ID),
		zap.String("userId", bet.UserID),
		zap.String("matchId", bet.MatchID),
		zap.String("stake", bet.Stake.String()),
		zap.Error(err),
	)
}
