// Package postgres implementa store.Store sobre database/sql + lib/pq.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/radieske/esports-bet-core/internal/domain"
	"github.com/radieske/esports-bet-core/internal/shared/money"
	"github.com/radieske/esports-bet-core/internal/store"
)

//go:embed schema.sql
var schemaSQL string

const uniqueViolation = "23505"

// Store persiste carteiras, ledger e apostas no Postgres
type Store struct{ db *sql.DB }

func New(db *sql.DB) *Store { return &Store{db: db} }

// Migrate aplica o schema (idempotente)
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// WithinTx abre a transação, executa fn e garante commit ou rollback em todo caminho de saída
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx store.Tx) error) (err error) {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = sqlTx.Rollback()
			panic(p)
		}
	}()

	if err = fn(ctx, &pgTx{tx: sqlTx}); err != nil {
		_ = sqlTx.Rollback()
		return err
	}
	if err = sqlTx.Commit(); err != nil {
		return fmt.Errorf("%w: %v", store.ErrCommit, err)
	}
	return nil
}

func (s *Store) OpenWallet(ctx context.Context, userID string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO wallets(user_id, balance, version) VALUES($1, 0, 1) ON CONFLICT (user_id) DO NOTHING`, userID)
	if err != nil {
		return fmt.Errorf("open wallet: %w", err)
	}
	return nil
}

func (s *Store) Balance(ctx context.Context, userID string) (money.Money, error) {
	var bal money.Money
	err := s.db.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id=$1`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero(), domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}
	if err != nil {
		return money.Zero(), fmt.Errorf("get balance: %w", err)
	}
	return bal, nil
}

// History devolve o extrato do mais novo para o mais antigo
func (s *Store) History(ctx context.Context, userID string, f domain.HistoryFilter) ([]domain.LedgerEntry, error) {
	if _, err := s.Balance(ctx, userID); err != nil {
		return nil, err
	}

	q := strings.Builder{}
	q.WriteString(`SELECT id, user_id, kind, amount, balance_after, note, related_bet_id, created_at
		FROM ledger_entries WHERE user_id=$1`)
	args := []any{userID}
	if len(f.Kinds) > 0 {
		kinds := make([]string, len(f.Kinds))
		for i, k := range f.Kinds {
			kinds[i] = string(k)
		}
		args = append(args, pq.Array(kinds))
		fmt.Fprintf(&q, " AND kind = ANY($%d)", len(args))
	}
	if !f.From.IsZero() {
		args = append(args, f.From)
		fmt.Fprintf(&q, " AND created_at >= $%d", len(args))
	}
	if !f.To.IsZero() {
		args = append(args, f.To)
		fmt.Fprintf(&q, " AND created_at <= $%d", len(args))
	}
	q.WriteString(" ORDER BY seq DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&q, " LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	out := make([]domain.LedgerEntry, 0)
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *e)
	}
	return out, rows.Err()
}

func (s *Store) FindEntry(ctx context.Context, betID string, kind domain.EntryKind) (*domain.LedgerEntry, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT id, user_id, kind, amount, balance_after, note, related_bet_id, created_at
		FROM ledger_entries WHERE related_bet_id=$1 AND kind=$2
		ORDER BY seq DESC LIMIT 1`, betID, string(kind))
	e, err := scanEntry(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return e, err
}

const betColumns = `id, user_id, match_id, selected_side_id, stake, odds_locked, potential_payout, status, placed_at, settled_at`

func (s *Store) GetBet(ctx context.Context, betID string) (*domain.Bet, error) {
	b, err := scanBet(s.db.QueryRowContext(ctx, `SELECT `+betColumns+` FROM bets WHERE id=$1`, betID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Newf(domain.CodeBetNotFound, "bet %s not found", betID)
	}
	return b, err
}

// ListBets devolve as apostas mais recentes primeiro
func (s *Store) ListBets(ctx context.Context, f domain.BetFilter) ([]domain.Bet, error) {
	var conds []string
	var args []any
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, fmt.Sprintf(cond, len(args)))
	}
	if f.UserID != "" {
		add("user_id = $%d", f.UserID)
	}
	if f.MatchID != "" {
		add("match_id = $%d", f.MatchID)
	}
	if f.Status != "" {
		add("status = $%d", string(f.Status))
	}
	if !f.From.IsZero() {
		add("placed_at >= $%d", f.From)
	}
	if !f.To.IsZero() {
		add("placed_at <= $%d", f.To)
	}

	q := `SELECT ` + betColumns + ` FROM bets`
	if len(conds) > 0 {
		q += " WHERE " + strings.Join(conds, " AND ")
	}
	q += " ORDER BY placed_at DESC"
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query bets: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Bet, 0)
	for rows.Next() {
		b, err := scanBet(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *b)
	}
	return out, rows.Err()
}

func (s *Store) HasBet(ctx context.Context, userID, matchID string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM bets WHERE user_id=$1 AND match_id=$2)`,
		userID, matchID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check bet: %w", err)
	}
	return exists, nil
}

func (s *Store) PoolTotals(ctx context.Context, matchID string) (domain.Pool, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT selected_side_id, COALESCE(SUM(stake), 0)
		FROM bets WHERE match_id=$1 AND status <> 'CANCELLED'
		GROUP BY selected_side_id`, matchID)
	if err != nil {
		return domain.Pool{}, fmt.Errorf("query pool: %w", err)
	}
	defer rows.Close()

	pool := domain.Pool{Total: money.Zero(), Sides: make(map[string]money.Money)}
	for rows.Next() {
		var side string
		var sum money.Money
		if err := rows.Scan(&side, &sum); err != nil {
			return domain.Pool{}, fmt.Errorf("scan pool: %w", err)
		}
		pool.Sides[side] = sum
		pool.Total = pool.Total.Add(sum)
	}
	return pool, rows.Err()
}

func (s *Store) MatchesWithPendingBets(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT match_id FROM bets WHERE status='PENDING' ORDER BY match_id`)
	if err != nil {
		return nil, fmt.Errorf("query pending matches: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// UserStats mantém a definição de ganhos: lucro líquido somente das apostas WON
func (s *Store) UserStats(ctx context.Context, userID string) (domain.UserStats, error) {
	var st domain.UserStats
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(stake), 0),
		       COALESCE(SUM(potential_payout - stake) FILTER (WHERE status='WON'), 0),
		       COUNT(*) FILTER (WHERE status='WON'),
		       COUNT(*) FILTER (WHERE status='LOST'),
		       COUNT(*) FILTER (WHERE status='PENDING'),
		       COUNT(*) FILTER (WHERE status='CANCELLED')
		FROM bets WHERE user_id=$1`, userID).
		Scan(&st.TotalBets, &st.TotalStaked, &st.TotalWinnings, &st.Won, &st.Lost, &st.Pending, &st.Cancelled)
	if err != nil {
		return domain.UserStats{}, fmt.Errorf("user stats: %w", err)
	}
	st.WinRate = store.WinRate(st.Won, st.TotalBets)
	return st, nil
}

func (s *Store) Statistics(ctx context.Context) (domain.Statistics, error) {
	var st domain.Statistics
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
		       COALESCE(SUM(stake), 0),
		       COUNT(*) FILTER (WHERE status='PENDING'),
		       COUNT(*) FILTER (WHERE status='WON'),
		       COUNT(*) FILTER (WHERE status='LOST'),
		       COUNT(*) FILTER (WHERE status='CANCELLED')
		FROM bets`).
		Scan(&st.TotalBets, &st.TotalStaked, &st.Pending, &st.Won, &st.Lost, &st.Cancelled)
	if err != nil {
		return domain.Statistics{}, fmt.Errorf("statistics: %w", err)
	}
	return st, nil
}

// pgTx implementa store.Tx sobre *sql.Tx
type pgTx struct{ tx *sql.Tx }

func (t *pgTx) CreditWallet(ctx context.Context, userID string, amount money.Money) (money.Money, error) {
	var bal money.Money
	err := t.tx.QueryRowContext(ctx, `
		UPDATE wallets SET balance = balance + $1, version = version + 1, updated_at = NOW()
		WHERE user_id=$2 RETURNING balance`, amount, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero(), domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}
	if err != nil {
		return money.Zero(), fmt.Errorf("credit wallet: %w", err)
	}
	return bal, nil
}

// DebitWallet usa update condicional: duas chamadas concorrentes nunca enxergam o mesmo saldo pré-débito
func (t *pgTx) DebitWallet(ctx context.Context, userID string, amount money.Money) (money.Money, error) {
	var bal money.Money
	err := t.tx.QueryRowContext(ctx, `
		UPDATE wallets SET balance = balance - $1, version = version + 1, updated_at = NOW()
		WHERE user_id=$2 AND balance >= $1 RETURNING balance`, amount, userID).Scan(&bal)
	if err == nil {
		return bal, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return money.Zero(), fmt.Errorf("debit wallet: %w", err)
	}

	// nenhuma linha afetada: carteira inexistente ou saldo insuficiente
	err = t.tx.QueryRowContext(ctx, `SELECT balance FROM wallets WHERE user_id=$1`, userID).Scan(&bal)
	if errors.Is(err, sql.ErrNoRows) {
		return money.Zero(), domain.Newf(domain.CodeUnknownUser, "wallet %s not found", userID)
	}
	if err != nil {
		return money.Zero(), fmt.Errorf("read wallet: %w", err)
	}
	return bal, domain.Newf(domain.CodeInsufficientFunds, "balance %s below %s", bal, amount)
}

func (t *pgTx) AppendEntry(ctx context.Context, e *domain.LedgerEntry) error {
	var related any
	if e.RelatedBetID != "" {
		related = e.RelatedBetID
	}
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO ledger_entries(id, user_id, kind, amount, balance_after, note, related_bet_id, created_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8)`,
		e.ID, e.UserID, string(e.Kind), e.Amount, e.BalanceAfter, e.Note, related, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert ledger entry: %w", err)
	}
	return nil
}

func (t *pgTx) InsertBet(ctx context.Context, b *domain.Bet) error {
	_, err := t.tx.ExecContext(ctx, `
		INSERT INTO bets(id, user_id, match_id, selected_side_id, stake, odds_locked, potential_payout, status, placed_at)
		VALUES($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		b.ID, b.UserID, b.MatchID, b.SelectedSideID, b.Stake, b.OddsLocked, b.PotentialPayout, string(b.Status), b.PlacedAt)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return domain.Newf(domain.CodeDuplicateBet, "user %s already has a bet on match %s", b.UserID, b.MatchID)
	}
	if err != nil {
		return fmt.Errorf("insert bet: %w", err)
	}
	return nil
}

func (t *pgTx) TransitionBet(ctx context.Context, betID string, from, to domain.BetStatus, at time.Time) (bool, error) {
	var settled any
	if to.Terminal() {
		settled = at
	}
	res, err := t.tx.ExecContext(ctx,
		`UPDATE bets SET status=$1, settled_at=$2 WHERE id=$3 AND status=$4`,
		string(to), settled, betID, string(from))
	if err != nil {
		return false, fmt.Errorf("transition bet: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("transition bet rows: %w", err)
	}
	if n == 1 {
		return true, nil
	}

	var exists bool
	if err := t.tx.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM bets WHERE id=$1)`, betID).Scan(&exists); err != nil {
		return false, fmt.Errorf("check bet: %w", err)
	}
	if !exists {
		return false, domain.Newf(domain.CodeBetNotFound, "bet %s not found", betID)
	}
	return false, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*domain.LedgerEntry, error) {
	var e domain.LedgerEntry
	var kind string
	var related sql.NullString
	if err := row.Scan(&e.ID, &e.UserID, &kind, &e.Amount, &e.BalanceAfter, &e.Note, &related, &e.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan ledger entry: %w", err)
	}
	e.Kind = domain.EntryKind(kind)
	e.RelatedBetID = related.String
	return &e, nil
}

func scanBet(row scanner) (*domain.Bet, error) {
	var b domain.Bet
	var status string
	var settled sql.NullTime
	if err := row.Scan(&b.ID, &b.UserID, &b.MatchID, &b.SelectedSideID, &b.Stake, &b.OddsLocked,
		&b.PotentialPayout, &status, &b.PlacedAt, &settled); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan bet: %w", err)
	}
	b.Status = domain.BetStatus(status)
	if settled.Valid {
		t := settled.Time
		b.SettledAt = &t
	}
	return &b, nil
}
