// Package postgres lê partidas e usuários mantidos pelos serviços administrativos.
// O core só consulta estas tabelas; o schema embutido existe para ambientes locais.
package postgres

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/radieske/esports-bet-core/internal/domain"
)

//go:embed schema.sql
var schemaSQL string

// ReadRepo implementa registry.MatchRegistry e registry.UserDirectory
type ReadRepo struct {
	DB  *sql.DB
	Now func() time.Time
}

func NewReadRepo(db *sql.DB) *ReadRepo { return &ReadRepo{DB: db, Now: time.Now} }

func (r *ReadRepo) Migrate(ctx context.Context) error {
	if _, err := r.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply registry schema: %w", err)
	}
	return nil
}

func (r *ReadRepo) getMatch(ctx context.Context, matchID string) (*domain.Match, error) {
	const q = `
		SELECT id, title, side_a_id, side_b_id, status, betting_enabled, starts_at, COALESCE(winning_side_id, '')
		FROM matches
		WHERE id = $1;
	`
	var m domain.Match
	var status string
	err := r.DB.QueryRowContext(ctx, q, matchID).
		Scan(&m.ID, &m.Title, &m.Sides.A, &m.Sides.B, &status, &m.BettingEnabled, &m.StartsAt, &m.WinningSideID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.Newf(domain.CodeMatchNotFound, "match %s not found", matchID)
	}
	if err != nil {
		return nil, fmt.Errorf("query match: %w", err)
	}
	m.Status = domain.MatchStatus(status)
	return &m, nil
}

func (r *ReadRepo) IsBettable(ctx context.Context, matchID string) (bool, error) {
	m, err := r.getMatch(ctx, matchID)
	if errors.Is(err, domain.ErrMatchNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return m.Bettable(r.Now()), nil
}

func (r *ReadRepo) GetSides(ctx context.Context, matchID string) (domain.Sides, error) {
	m, err := r.getMatch(ctx, matchID)
	if err != nil {
		return domain.Sides{}, err
	}
	return m.Sides, nil
}

func (r *ReadRepo) GetResult(ctx context.Context, matchID string) (domain.MatchResult, error) {
	m, err := r.getMatch(ctx, matchID)
	if err != nil {
		return domain.MatchResult{}, err
	}
	return domain.MatchResult{Status: m.Status, WinningSideID: m.WinningSideID}, nil
}

func (r *ReadRepo) Exists(ctx context.Context, userID string) (bool, error) {
	var ok bool
	if err := r.DB.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM users WHERE id=$1)`, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return ok, nil
}

func (r *ReadRepo) IsActive(ctx context.Context, userID string) (bool, error) {
	var active bool
	err := r.DB.QueryRowContext(ctx, `SELECT active FROM users WHERE id=$1`, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query user: %w", err)
	}
	return active, nil
}
