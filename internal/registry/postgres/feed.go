package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/radieske/esports-bet-core/internal/domain"
)

// FeedRepo é o lado de escrita do cadastro, usado apenas pelo simulador de partidas
type FeedRepo struct {
	DB *sql.DB
}

func NewFeedRepo(db *sql.DB) *FeedRepo { return &FeedRepo{DB: db} }

func (r *FeedRepo) UpsertUser(ctx context.Context, userID string, active bool) error {
	const q = `
		INSERT INTO users (id, username, active) VALUES ($1, $1, $2)
		ON CONFLICT (id) DO UPDATE SET active = EXCLUDED.active;
	`
	if _, err := r.DB.ExecContext(ctx, q, userID, active); err != nil {
		return fmt.Errorf("upsert user: %w", err)
	}
	return nil
}

func (r *FeedRepo) UpsertMatch(ctx context.Context, m domain.Match) error {
	const q = `
		INSERT INTO matches (id, title, side_a_id, side_b_id, status, betting_enabled, starts_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			status = EXCLUDED.status,
			betting_enabled = EXCLUDED.betting_enabled,
			starts_at = EXCLUDED.starts_at,
			winning_side_id = NULL,
			updated_at = NOW();
	`
	_, err := r.DB.ExecContext(ctx, q,
		m.ID, m.Title, m.Sides.A, m.Sides.B, string(m.Status), m.BettingEnabled, m.StartsAt)
	if err != nil {
		return fmt.Errorf("upsert match %s: %w", m.ID, err)
	}
	return nil
}

// DueMatches retorna partidas ainda abertas (SCHEDULED/LIVE) cujo início já passou
func (r *FeedRepo) DueMatches(ctx context.Context, now time.Time) ([]domain.Match, error) {
	const q = `
		SELECT id, title, side_a_id, side_b_id, status, betting_enabled, starts_at
		FROM matches
		WHERE status IN ('SCHEDULED','LIVE') AND starts_at <= $1
		ORDER BY starts_at;
	`
	rows, err := r.DB.QueryContext(ctx, q, now)
	if err != nil {
		return nil, fmt.Errorf("query due matches: %w", err)
	}
	defer rows.Close()

	var out []domain.Match
	for rows.Next() {
		var m domain.Match
		var status string
		if err := rows.Scan(&m.ID, &m.Title, &m.Sides.A, &m.Sides.B, &status, &m.BettingEnabled, &m.StartsAt); err != nil {
			return nil, fmt.Errorf("scan match: %w", err)
		}
		m.Status = domain.MatchStatus(status)
		out = append(out, m)
	}
	return out, rows.Err()
}

// RecordResult grava o novo estado; o vencedor só é mantido quando COMPLETED
func (r *FeedRepo) RecordResult(ctx context.Context, matchID string, res domain.MatchResult) error {
	const q = `
		UPDATE matches
		SET status = $2, winning_side_id = NULLIF($3, ''), updated_at = NOW()
		WHERE id = $1;
	`
	winner := ""
	if res.Status == domain.MatchCompleted {
		winner = res.WinningSideID
	}
	tag, err := r.DB.ExecContext(ctx, q, matchID, string(res.Status), winner)
	if err != nil {
		return fmt.Errorf("record result %s: %w", matchID, err)
	}
	if n, _ := tag.RowsAffected(); n == 0 {
		return domain.Newf(domain.CodeMatchNotFound, "match %s not found", matchID)
	}
	return nil
}
